package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lopezmichael/digimon-tcg-standings/internal/limitless"
	"github.com/lopezmichael/digimon-tcg-standings/internal/model"
	"github.com/lopezmichael/digimon-tcg-standings/internal/store"
)

// RepairStats tracks counts and errors from a repair pass.
type RepairStats struct {
	TournamentsScanned int
	ResultsInserted    int
	MatchesInserted    int
	DecksRepaired      int
	Errors             []string
}

// AddErrorf records a formatted error message.
func (s *RepairStats) AddErrorf(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the repair pass.
func (s *RepairStats) Summary() string {
	return fmt.Sprintf("scanned=%d results=%d matches=%d decks=%d errors=%d",
		s.TournamentsScanned, s.ResultsInserted, s.MatchesInserted,
		s.DecksRepaired, len(s.Errors))
}

// Repairer completes tournaments the sync pass left half-ingested. It
// re-fetches standings and pairings and inserts only the rows that are
// missing, so repeated runs converge without duplicating anything.
type Repairer struct {
	store  Store
	client Fetcher
	runID  string
	logger *slog.Logger
}

// NewRepairer returns a Repairer.
func NewRepairer(st Store, client Fetcher, runID string, logger *slog.Logger) *Repairer {
	return &Repairer{store: st, client: client, runID: runID, logger: logger}
}

// Run scans for tournaments with no results and tournaments with results
// but no matches, then re-materializes the missing rows. organizerID
// scopes the scan to one store; empty means every store.
func (r *Repairer) Run(ctx context.Context, organizerID string) (RepairStats, error) {
	stats := RepairStats{}

	storeIDs, source, err := r.scope(ctx, organizerID)
	if err != nil {
		return stats, err
	}

	noResults, err := r.store.TournamentsWithoutResults(ctx, storeIDs)
	if err != nil {
		return stats, fmt.Errorf("scan tournaments without results: %w", err)
	}
	noMatches, err := r.store.TournamentsWithoutMatches(ctx, storeIDs)
	if err != nil {
		return stats, fmt.Errorf("scan tournaments without matches: %w", err)
	}
	r.logger.Info("repair scan complete",
		"without_results", len(noResults), "without_matches", len(noMatches))

	for _, t := range append(noResults, noMatches...) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		r.repairTournament(ctx, t, &stats)
	}

	entry := &model.IngestionLogEntry{
		RunID:           r.runID,
		Source:          source,
		Action:          "repair",
		Status:          "success",
		RecordsAffected: stats.ResultsInserted + stats.MatchesInserted,
		Metadata: map[string]any{
			"tournaments_scanned": stats.TournamentsScanned,
			"results":             stats.ResultsInserted,
			"matches":             stats.MatchesInserted,
		},
	}
	if err := r.store.AppendIngestionLog(ctx, entry); err != nil {
		r.logger.Warn("ingestion log write failed", "action", "repair", "error", err)
	}

	r.logger.Info("repair complete", "summary", stats.Summary())
	return stats, nil
}

func (r *Repairer) scope(ctx context.Context, organizerID string) ([]int64, string, error) {
	if organizerID == "" {
		return nil, "limitless_repair", nil
	}
	gameStore, err := r.store.StoreByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, "", fmt.Errorf("look up store for organizer %s: %w", organizerID, err)
	}
	return []int64{gameStore.ID}, "limitless_organizer_" + organizerID, nil
}

// repairTournament re-runs the fetch-and-materialize step with per-row
// existence checks instead of the whole-tournament skip.
func (r *Repairer) repairTournament(ctx context.Context, t model.Tournament, stats *RepairStats) {
	stats.TournamentsScanned++

	res, err := newResolver(ctx, r.store)
	if err != nil {
		stats.AddErrorf("tournament %s: prime resolver caches: %v", t.ExternalID, err)
		return
	}

	standings := r.client.Standings(ctx, t.ExternalID)
	if len(standings) == 0 {
		r.logger.Warn("standings unavailable, cannot repair", "tournament_id", t.ExternalID)
		return
	}
	sourceURL := r.client.StandingsURL(t.ExternalID)

	for _, st := range standings {
		if st.Player == "" {
			continue
		}
		playerID, err := res.Player(ctx, st.Player, st.Name)
		if err != nil {
			stats.AddErrorf("tournament %s: resolve player %s: %v", t.ExternalID, st.Player, err)
			continue
		}
		exists, err := r.store.ResultExists(ctx, t.ID, playerID)
		if err != nil {
			stats.AddErrorf("tournament %s: result existence check: %v", t.ExternalID, err)
			continue
		}
		if exists {
			continue
		}
		archetypeID, requestID, err := res.Deck(ctx, st.Deck)
		if err != nil {
			stats.AddErrorf("tournament %s: resolve deck for %s: %v", t.ExternalID, st.Player, err)
			continue
		}
		result := &model.Result{
			TournamentID:     t.ID,
			PlayerID:         playerID,
			ArchetypeID:      archetypeID,
			PendingRequestID: requestID,
			Placement:        st.Placing,
			Wins:             st.Record.Wins,
			Losses:           st.Record.Losses,
			Ties:             st.Record.Ties,
			Notes:            dropNotes(st.Drop),
			DecklistJSON:     st.Decklist,
			SourceURL:        &sourceURL,
		}
		if err := r.store.InsertResult(ctx, result); err != nil {
			if !errors.Is(err, store.ErrDuplicate) {
				stats.AddErrorf("tournament %s: insert result for %s: %v", t.ExternalID, st.Player, err)
			}
			continue
		}
		stats.ResultsInserted++
	}

	for _, p := range r.client.Pairings(ctx, t.ExternalID) {
		if p.Player2 == "" {
			continue // bye
		}
		p1ID, ok1 := res.CachedPlayer(p.Player1)
		p2ID, ok2 := res.CachedPlayer(p.Player2)
		if !ok1 || !ok2 {
			continue
		}
		p1Points, p2Points := matchPoints(p.Winner.String(), p.Player1, p.Player2)

		rows := []model.Match{
			{TournamentID: t.ID, RoundNumber: p.Round, PlayerID: p1ID, OpponentID: p2ID, MatchPoints: p1Points},
			{TournamentID: t.ID, RoundNumber: p.Round, PlayerID: p2ID, OpponentID: p1ID, MatchPoints: p2Points},
		}
		for i := range rows {
			m := &rows[i]
			exists, err := r.store.MatchExists(ctx, m.TournamentID, m.RoundNumber, m.PlayerID, m.OpponentID)
			if err != nil {
				stats.AddErrorf("tournament %s: match existence check: %v", t.ExternalID, err)
				continue
			}
			if exists {
				continue
			}
			if err := r.store.InsertMatch(ctx, m); err != nil {
				if !errors.Is(err, store.ErrDuplicate) {
					stats.AddErrorf("tournament %s: insert match round %d: %v", t.ExternalID, m.RoundNumber, err)
				}
				continue
			}
			stats.MatchesInserted++
		}
	}

	r.logger.Info("tournament repaired", "tournament_id", t.ExternalID)
}

// RepairDecks fills missing archetypes on stored results by re-fetching
// standings and applying curated deck mappings. Standings rows are
// matched to results by player display name. organizerID scopes the
// pass; empty means every store.
func (r *Repairer) RepairDecks(ctx context.Context, organizerID string) (RepairStats, error) {
	stats := RepairStats{}

	mapped, err := r.store.MappedDecks(ctx)
	if err != nil {
		return stats, fmt.Errorf("load deck mappings: %w", err)
	}
	unknownID, err := r.store.ArchetypeIDByName(ctx, model.UnknownArchetypeName)
	if err != nil {
		return stats, fmt.Errorf("look up %s archetype: %w", model.UnknownArchetypeName, err)
	}
	candidates, err := r.store.ResultsMissingArchetype(ctx, organizerID)
	if err != nil {
		return stats, fmt.Errorf("scan results missing archetype: %w", err)
	}
	if len(candidates) == 0 {
		r.logger.Info("no results missing deck data")
		return stats, nil
	}

	// Group by tournament so each one is fetched once.
	order := make([]string, 0)
	grouped := make(map[string][]model.RepairCandidate)
	for _, c := range candidates {
		if _, ok := grouped[c.ExternalID]; !ok {
			order = append(order, c.ExternalID)
		}
		grouped[c.ExternalID] = append(grouped[c.ExternalID], c)
	}
	r.logger.Info("deck repair scan complete",
		"results", len(candidates), "tournaments", len(order))

	unmapped := make(map[string]string) // deck id -> name, still awaiting curation
	for _, externalID := range order {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.TournamentsScanned++

		standings := r.client.Standings(ctx, externalID)
		if len(standings) == 0 {
			continue
		}
		decksByName := make(map[string]*limitless.Deck, len(standings))
		for i := range standings {
			if standings[i].Deck != nil {
				decksByName[standings[i].Name] = standings[i].Deck
			}
		}

		for _, c := range grouped[externalID] {
			displayName, err := r.store.PlayerDisplayName(ctx, c.PlayerID)
			if err != nil {
				stats.AddErrorf("result %d: look up player name: %v", c.ResultID, err)
				continue
			}
			deck, ok := decksByName[displayName]
			if !ok {
				continue
			}
			var archetypeID int64
			if deck.ID == limitless.CatchAllDeckID {
				archetypeID = unknownID
			} else if id, ok := mapped[deck.ID]; ok {
				archetypeID = id
			} else {
				unmapped[deck.ID] = deck.Name
				continue
			}
			if err := r.store.SetResultArchetype(ctx, c.ResultID, archetypeID); err != nil {
				stats.AddErrorf("result %d: set archetype: %v", c.ResultID, err)
				continue
			}
			stats.DecksRepaired++
		}
	}

	for id, name := range unmapped {
		r.logger.Info("deck id awaiting curation", "deck_id", id, "deck_name", name)
	}
	r.logger.Info("deck repair complete", "summary", stats.Summary())
	return stats, nil
}
