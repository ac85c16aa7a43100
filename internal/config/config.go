// Package config provides centralized configuration loaded from environment
// variables, plus the curated organizer registry and table names.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// --------------------------------------------------------------------------
// Organizer registry — the Tier 1 organizers synced by default
// --------------------------------------------------------------------------

var Tier1Organizers = map[string]string{
	"452": "Eagle's Nest",
	"281": "PHOENIX REBORN",
	"559": "DMV Drakes",
	"578": "MasterRukasu",
}

// Tier1OrganizerIDs returns the registry keys in a stable order.
func Tier1OrganizerIDs() []string {
	return []string{"452", "281", "559", "578"}
}

// --------------------------------------------------------------------------
// Table names — single source of truth, matches schema.sql
// --------------------------------------------------------------------------

const (
	StoresTable       = "stores"
	PlayersTable      = "players"
	TournamentsTable  = "tournaments"
	ResultsTable      = "results"
	MatchesTable      = "matches"
	FormatsTable      = "formats"
	ArchetypesTable   = "deck_archetypes"
	DeckMapTable      = "limitless_deck_map"
	DeckRequestsTable = "deck_requests"
	SyncStateTable    = "limitless_sync_state"
	IngestionLogTable = "ingestion_log"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Limitless API
	LimitlessBaseURL string
	UserAgent        string
	RequestDelay     time.Duration

	// Sync behavior
	MinPlayers int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("POSTGRES_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or POSTGRES_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 4),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		LimitlessBaseURL: envOr("LIMITLESS_API_BASE", "https://play.limitlesstcg.com/api"),
		UserAgent:        envOr("LIMITLESS_USER_AGENT", "DigiLab/1.0 (LimitlessSync)"),
		RequestDelay:     time.Duration(envInt("LIMITLESS_REQUEST_DELAY_MS", 500)) * time.Millisecond,

		MinPlayers: envInt("SYNC_MIN_PLAYERS", 4),
	}, nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
