package sync

import (
	"context"
	"fmt"
	"log/slog"
)

// ResetStats reports the rows removed by a reset.
type ResetStats struct {
	Matches     int64
	Results     int64
	Tournaments int64
	SyncStates  int64
	Players     int64
}

// Summary returns a human-readable summary of the reset.
func (s ResetStats) Summary() string {
	return fmt.Sprintf("matches=%d results=%d tournaments=%d sync_states=%d players=%d",
		s.Matches, s.Results, s.Tournaments, s.SyncStates, s.Players)
}

// Reset removes ingested rows in dependency order: matches, results,
// tournaments, sync state. A non-empty organizerIDs scopes the delete to
// those organizers' stores and leaves players alone (they are shared
// across stores); an empty list wipes every store and the players too.
// Curated tables (stores, archetypes, deck mappings, classification
// requests) and the ingestion log are never touched.
func Reset(ctx context.Context, st Store, organizerIDs []string, logger *slog.Logger) (ResetStats, error) {
	stats := ResetStats{}

	var storeIDs []int64
	for _, org := range organizerIDs {
		gameStore, err := st.StoreByOrganizer(ctx, org)
		if err != nil {
			return stats, fmt.Errorf("look up store for organizer %s: %w", org, err)
		}
		storeIDs = append(storeIDs, gameStore.ID)
	}

	var err error
	if stats.Matches, err = st.DeleteMatches(ctx, storeIDs); err != nil {
		return stats, fmt.Errorf("delete matches: %w", err)
	}
	logger.Info("deleted matches", "rows", stats.Matches)

	if stats.Results, err = st.DeleteResults(ctx, storeIDs); err != nil {
		return stats, fmt.Errorf("delete results: %w", err)
	}
	logger.Info("deleted results", "rows", stats.Results)

	if stats.Tournaments, err = st.DeleteTournaments(ctx, storeIDs); err != nil {
		return stats, fmt.Errorf("delete tournaments: %w", err)
	}
	logger.Info("deleted tournaments", "rows", stats.Tournaments)

	if stats.SyncStates, err = st.DeleteSyncStates(ctx, organizerIDs); err != nil {
		return stats, fmt.Errorf("delete sync states: %w", err)
	}
	logger.Info("deleted sync states", "rows", stats.SyncStates)

	if len(organizerIDs) == 0 {
		if stats.Players, err = st.DeletePlayers(ctx); err != nil {
			return stats, fmt.Errorf("delete players: %w", err)
		}
		logger.Info("deleted players", "rows", stats.Players)
	}

	logger.Info("reset complete", "summary", stats.Summary())
	return stats, nil
}
