package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RecordGameResult folds one finished game into a user's lifetime stats row.
// Guests never reach this path; they have no user id.
func RecordGameResult(ctx context.Context, userID uuid.UUID, won bool, livesLeft, tricksWon, betsCorrect, betsWrong int) error {
	wins := 0
	if won {
		wins = 1
	}
	_, err := DB.Exec(ctx, `
		INSERT INTO player_stats (user_id, games_played, games_won, tricks_won, bets_correct, bets_wrong, lives_left_total)
		VALUES ($1, 1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			games_played     = player_stats.games_played + 1,
			games_won        = player_stats.games_won + $2,
			tricks_won       = player_stats.tricks_won + $3,
			bets_correct     = player_stats.bets_correct + $4,
			bets_wrong       = player_stats.bets_wrong + $5,
			lives_left_total = player_stats.lives_left_total + $6`,
		userID, wins, tricksWon, betsCorrect, betsWrong, livesLeft)
	if err != nil {
		return fmt.Errorf("recording game result for %s: %w", userID, err)
	}
	return nil
}

// GetPlayerStats returns one user's lifetime stats.
type PlayerStats struct {
	UserID         uuid.UUID `json:"user_id"`
	GamesPlayed    int       `json:"games_played"`
	GamesWon       int       `json:"games_won"`
	TricksWon      int       `json:"tricks_won"`
	BetsCorrect    int       `json:"bets_correct"`
	BetsWrong      int       `json:"bets_wrong"`
	LivesLeftTotal int       `json:"lives_left_total"`
}

func GetPlayerStats(ctx context.Context, userID uuid.UUID) (*PlayerStats, error) {
	s := &PlayerStats{UserID: userID}
	err := DB.QueryRow(ctx, `
		SELECT games_played, games_won, tricks_won, bets_correct, bets_wrong, lives_left_total
		FROM player_stats WHERE user_id = $1`, userID).
		Scan(&s.GamesPlayed, &s.GamesWon, &s.TricksWon, &s.BetsCorrect, &s.BetsWrong, &s.LivesLeftTotal)
	if err != nil {
		return nil, fmt.Errorf("fetching stats for %s: %w", userID, err)
	}
	return s, nil
}
