// Command release-claims finds tweets stuck in the casting state after a
// crash and marks them failed so their owners can retry. A stuck tweet may
// already be on Farcaster, so the recorded error asks for a check first.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"cast-bridge/internal/logger"
)

const releaseReason = "Cast claim expired before completion. Check Farcaster for an existing cast before retrying."

func main() {
	olderThan := flag.Duration("older-than", 15*time.Minute, "release claims older than this")
	apply := flag.Bool("apply", false, "update rows instead of only listing them")
	flag.Parse()

	_ = godotenv.Load()
	logger.New(os.Getenv("LOG_LEVEL"))

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		os.Getenv("DB_PASSWORD"),
		getEnv("DB_NAME", "cast_bridge"),
		getEnv("DB_SSLMODE", "disable"),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	cutoff := time.Now().Add(-*olderThan)

	rows, err := db.Query(`
		SELECT id, tweet_id, user_id, claimed_at
		FROM tweets
		WHERE cast_status = 'casting' AND claimed_at < $1
		ORDER BY claimed_at
	`, cutoff)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query stuck claims")
	}

	var ids []int64
	for rows.Next() {
		var (
			id        int64
			tweetID   string
			userID    int64
			claimedAt time.Time
		)
		if err := rows.Scan(&id, &tweetID, &userID, &claimedAt); err != nil {
			log.Fatal().Err(err).Msg("Failed to scan row")
		}
		log.Info().
			Str("tweet_id", tweetID).
			Int64("user_id", userID).
			Time("claimed_at", claimedAt).
			Msg("Stuck claim")
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to read stuck claims")
	}
	rows.Close()

	if len(ids) == 0 {
		log.Info().Msg("No stuck claims")
		return
	}
	if !*apply {
		log.Info().Int("count", len(ids)).Msg("Dry run, pass -apply to release")
		return
	}

	released := int64(0)
	for _, id := range ids {
		result, err := db.Exec(`
			UPDATE tweets
			SET cast_status = 'failed', cast_error = $1, claimed_at = NULL
			WHERE id = $2 AND cast_status = 'casting'
		`, releaseReason, id)
		if err != nil {
			log.Error().Err(err).Int64("id", id).Msg("Failed to release claim")
			continue
		}
		n, _ := result.RowsAffected()
		released += n
	}

	log.Info().Int64("released", released).Msg("Stuck claims released")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
