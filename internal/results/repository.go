package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Frostie0/braina-game-server/internal/game"
)

// Repository stores terminal game summaries in Postgres. One row per game,
// written once at game end; nothing is read or written here mid-game.
type Repository struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Repository{db: db}, nil
}

// NewRepository wraps an existing connection.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Close() error {
	return r.db.Close()
}

const insertResultQuery = `
INSERT INTO game_results (game_code, variant, winner_id, is_draw, results, ended_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (game_code, ended_at) DO NOTHING`

// Record persists one terminal summary.
func (r *Repository) Record(ctx context.Context, result game.Result) error {
	resultsBytes, err := json.Marshal(result.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	var winner sql.NullString
	if result.Winner != "" {
		winner = sql.NullString{String: result.Winner, Valid: true}
	}

	if _, err := r.db.ExecContext(ctx, insertResultQuery,
		result.Code,
		string(result.Variant),
		winner,
		result.Draw,
		resultsBytes,
		result.EndedAt,
	); err != nil {
		return fmt.Errorf("failed to insert game result: %w", err)
	}

	log.Info().
		Str("game_code", result.Code).
		Str("variant", string(result.Variant)).
		Int("players", len(result.Results)).
		Msg("game result stored")
	return nil
}
