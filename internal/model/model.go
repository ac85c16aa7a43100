// Package model defines the persistent entities the ingestion pipeline
// reads and writes. Field names mirror the column names in schema.sql.
package model

import "time"

// UnknownArchetypeName is the catalog entry used for the Limitless "other"
// deck bucket and for decks nobody has classified yet.
const UnknownArchetypeName = "UNKNOWN"

// Store is a local game store associated with a Limitless organizer.
// Stores are curated by hand and never created by the sync pipeline.
type Store struct {
	ID          int64
	Name        string
	OrganizerID string // limitless_organizer_id
	IsOnline    bool
}

// Player is a local player record, created lazily on first sighting.
type Player struct {
	ID          int64
	DisplayName string
	Username    string // limitless_username, unique when present
}

// Tournament is one ingested event. ExternalID is the Limitless tournament
// id and acts as the idempotency key for whole-tournament skips.
type Tournament struct {
	ID          int64
	StoreID     int64
	ExternalID  string
	EventDate   string // YYYY-MM-DD
	EventType   string
	Format      *string
	PlayerCount int
	Rounds      *int
	Notes       *string
}

// Result is one player's final standing in a tournament.
// Unique per (TournamentID, PlayerID).
type Result struct {
	ID               int64
	TournamentID     int64
	PlayerID         int64
	ArchetypeID      *int64
	PendingRequestID *int64
	Placement        *int
	Wins             int
	Losses           int
	Ties             int
	Notes            *string
	DecklistJSON     []byte
	SourceURL        *string
}

// Match is one player-perspective of a round pairing. Every pairing with an
// opponent produces two rows, one per perspective.
// Unique per (TournamentID, RoundNumber, PlayerID, OpponentID).
type Match struct {
	ID           int64
	TournamentID int64
	RoundNumber  int
	PlayerID     int64
	OpponentID   int64
	MatchPoints  int
}

// DeckMapping associates a Limitless deck id with a local archetype.
// ArchetypeID stays nil until an admin (or the classifier) curates it.
type DeckMapping struct {
	ExternalDeckID string
	DeckName       string
	ArchetypeID    *int64
}

// ClassificationRequest is a pending curation task for an unmapped deck id.
type ClassificationRequest struct {
	ID       int64
	DeckName string
	Status   string
}

// Archetype is a named deck strategy category.
type Archetype struct {
	ID   int64
	Name string
}

// SyncState tracks per-organizer sync progress. LastTournamentDate is
// monotonic non-decreasing.
type SyncState struct {
	OrganizerID        string
	LastSyncedAt       time.Time
	LastTournamentDate string
	TournamentsSynced  int
}

// IngestionLogEntry is one append-only audit row for a sync attempt.
type IngestionLogEntry struct {
	RunID           string
	Source          string
	Action          string
	Status          string
	RecordsAffected int
	ErrorMessage    string
	Metadata        map[string]any
}

// RepairCandidate is a result missing deck data, joined with the external
// tournament id the deck-data repair pass must re-fetch.
type RepairCandidate struct {
	ResultID     int64
	TournamentID int64
	PlayerID     int64
	ExternalID   string
}

// UnclassifiedResult is a stored result eligible for classifier backfill:
// its archetype is the Unknown catch-all and it carries a decklist payload.
type UnclassifiedResult struct {
	ResultID     int64
	DecklistJSON []byte
}
