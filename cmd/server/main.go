package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/presina-online/presina-server/internal/auth"
	"github.com/presina-online/presina-server/internal/cache"
	"github.com/presina-online/presina-server/internal/config"
	"github.com/presina-online/presina-server/internal/database"
	"github.com/presina-online/presina-server/internal/handlers"
	"github.com/presina-online/presina-server/internal/middleware"
	"github.com/presina-online/presina-server/internal/room"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	if err := auth.Init(); err != nil {
		log.Fatalf("failed to initialize auth keys: %v", err)
	}

	ctx := context.Background()

	// Postgres and Redis are both optional. Without them the server still
	// runs full games; accounts, stats and history archival are disabled.
	if err := database.Connect(ctx); err != nil {
		log.WithField("error", err).Warn("running without database, accounts and stats disabled")
	}
	if err := cache.ConnectRedis(ctx); err != nil {
		log.WithField("error", err).Warn("running without redis, game history disabled")
	}

	hub := handlers.NewHub(log)
	manager := room.NewManager(log, hub)
	manager.SetTimeouts(cfg.TurnTimeout, cfg.OfflineTimeout)
	manager.SetGameOverHook(func(rec room.GameRecord) {
		recordGameOver(log, rec)
	})

	go sweepRooms(log, manager, cfg.SweepInterval)

	wsHandler := handlers.NewWSHandler(hub, manager, log)
	apiHandler := handlers.NewAPIHandler(manager, log)
	userHandler := handlers.NewUserHandler(log)

	logMW := middleware.LogMiddleware(log)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/health", logMW(http.HandlerFunc(apiHandler.Health)))
	mux.Handle("/rooms", logMW(http.HandlerFunc(apiHandler.ListRooms)))
	mux.Handle("/rooms/search", logMW(http.HandlerFunc(apiHandler.SearchRooms)))
	if database.Available() {
		mux.Handle("/register", logMW(http.HandlerFunc(userHandler.Register)))
		mux.Handle("/login", logMW(http.HandlerFunc(userHandler.Login)))
	}

	log.Infof("presina server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// recordGameOver persists per-player stats and queues the record for the
// history worker. Best effort on both counts.
func recordGameOver(log *logrus.Logger, rec room.GameRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if database.Available() {
		for _, p := range rec.Players {
			if p.UserID == uuid.Nil {
				continue
			}
			err := database.RecordGameResult(ctx, p.UserID, p.Won, p.Lives,
				p.TotalTricksWon, p.TotalBetsCorrect, p.TotalBetsWrong)
			if err != nil {
				log.WithFields(logrus.Fields{
					"room_id": rec.RoomID,
					"user_id": p.UserID,
					"error":   err,
				}).Error("failed to record game result")
			}
		}
	}

	if cache.Available() {
		if err := cache.PublishGameRecord(ctx, rec); err != nil {
			log.WithFields(logrus.Fields{
				"room_id": rec.RoomID,
				"error":   err,
			}).Error("failed to publish game record")
		}
	}

	log.WithFields(logrus.Fields{
		"room_id": rec.RoomID,
		"players": len(rec.Players),
	}).Info("game finished")
}

func sweepRooms(log *logrus.Logger, manager *room.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if removed := manager.SweepStale(); removed > 0 {
			log.Info(fmt.Sprintf("swept %d stale rooms", removed))
		}
	}
}
