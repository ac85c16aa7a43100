// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lopezmichael/digimon-tcg-standings/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers the hot-path ingestion lookups.
// Existence checks and entity resolution run once per standing/pairing row,
// so preparing them eliminates parse overhead inside the sync loops.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Organizer/store resolution
		"store_by_organizer": "SELECT store_id, name, limitless_organizer_id, is_online FROM stores WHERE limitless_organizer_id = $1",

		// Sync-time idempotency: whole-tournament skip
		"tournament_by_external_id": "SELECT tournament_id FROM tournaments WHERE limitless_id = $1",

		// Entity resolution
		"player_by_username":  "SELECT player_id FROM players WHERE limitless_username = $1",
		"player_display_name": "SELECT display_name FROM players WHERE player_id = $1",
		"archetype_by_name":   "SELECT archetype_id FROM deck_archetypes WHERE archetype_name = $1",

		// Format inference fallback
		"latest_format_before": "SELECT format_id FROM formats WHERE release_date <= $1 ORDER BY release_date DESC LIMIT 1",

		// Repair-time idempotency: row-level existence checks
		"result_exists": "SELECT 1 FROM results WHERE tournament_id = $1 AND player_id = $2 LIMIT 1",
		"match_exists":  "SELECT 1 FROM matches WHERE tournament_id = $1 AND round_number = $2 AND player_id = $3 AND opponent_id = $4 LIMIT 1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
