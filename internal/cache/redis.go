package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/presina-online/presina-server/internal/room"
)

// Rdb is the shared Redis client. Like the database, Redis is optional; when
// ConnectRedis fails the server simply skips history publishing.
var Rdb *redis.Client

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func ConnectRedis(ctx context.Context) error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	db := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := Rdb.Ping(ctx).Err(); err != nil {
		Rdb = nil
		return fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return nil
}

func Available() bool {
	return Rdb != nil
}

// PublishGameRecord queues a finished game onto the history list for the
// archival worker to drain.
func PublishGameRecord(ctx context.Context, rec room.GameRecord) error {
	queue := getEnv("REDIS_HISTORY_QUEUE", "presina_game_history")
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling game record: %w", err)
	}
	if err := Rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("pushing game record to %s: %w", queue, err)
	}
	return nil
}
