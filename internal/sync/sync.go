// Package sync orchestrates ingestion of Limitless tournament data into
// the local store: listing tournaments per organizer, materializing
// results and matches, repairing partially-ingested tournaments, and
// resetting ingested rows.
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

// Store is the slice of the persistence layer the sync pipeline uses.
// *store.DB satisfies it.
type Store interface {
	StoreByOrganizer(ctx context.Context, organizerID string) (*model.Store, error)
	TournamentExists(ctx context.Context, externalID string) (bool, error)
	InsertTournament(ctx context.Context, t *model.Tournament) (int64, error)
	LatestFormatBefore(ctx context.Context, eventDate string) (string, error)

	PlayerByUsername(ctx context.Context, username string) (int64, error)
	InsertPlayer(ctx context.Context, displayName, username string) (int64, error)
	PlayersWithUsernames(ctx context.Context) (map[string]int64, error)
	PlayerDisplayName(ctx context.Context, playerID int64) (string, error)

	DeckMappings(ctx context.Context) (map[string]*int64, error)
	MappedDecks(ctx context.Context) (map[string]int64, error)
	InsertDeckMapping(ctx context.Context, externalDeckID, deckName string) error
	InsertClassificationRequest(ctx context.Context, deckName string) (int64, error)
	ArchetypeIDByName(ctx context.Context, name string) (int64, error)

	InsertResult(ctx context.Context, r *model.Result) error
	InsertMatch(ctx context.Context, m *model.Match) error
	ResultExists(ctx context.Context, tournamentID, playerID int64) (bool, error)
	MatchExists(ctx context.Context, tournamentID int64, roundNumber int, playerID, opponentID int64) (bool, error)
	SetResultArchetype(ctx context.Context, resultID, archetypeID int64) error

	TournamentsWithoutResults(ctx context.Context, storeIDs []int64) ([]model.Tournament, error)
	TournamentsWithoutMatches(ctx context.Context, storeIDs []int64) ([]model.Tournament, error)
	ResultsMissingArchetype(ctx context.Context, organizerID string) ([]model.RepairCandidate, error)

	UpsertSyncState(ctx context.Context, organizerID string, synced int, lastDate string) error
	AppendIngestionLog(ctx context.Context, e *model.IngestionLogEntry) error

	DeleteMatches(ctx context.Context, storeIDs []int64) (int64, error)
	DeleteResults(ctx context.Context, storeIDs []int64) (int64, error)
	DeleteTournaments(ctx context.Context, storeIDs []int64) (int64, error)
	DeleteSyncStates(ctx context.Context, organizerIDs []string) (int64, error)
	DeletePlayers(ctx context.Context) (int64, error)
}

// Fetcher is the slice of the Limitless API client the pipeline uses.
// *limitless.Client satisfies it. Fetch failures surface as absences
// (nil/empty), already logged by the client.
type Fetcher interface {
	ListTournaments(ctx context.Context, organizerID, since string) []limitless.TournamentSummary
	Details(ctx context.Context, tournamentID string) *limitless.TournamentDetails
	Standings(ctx context.Context, tournamentID string) []limitless.Standing
	Pairings(ctx context.Context, tournamentID string) []limitless.Pairing
	StandingsURL(tournamentID string) string
}

// Syncer ingests tournaments for one organizer at a time.
type Syncer struct {
	store  Store
	client Fetcher
	runID  string
	logger *slog.Logger

	// DryRun previews counts without writing anything.
	DryRun bool
	// Limit caps the number of tournaments processed per organizer
	// when positive.
	Limit int
	// MinPlayers is the smallest tournament worth ingesting.
	MinPlayers int
}

// NewSyncer returns a Syncer with the default minimum player cutoff.
func NewSyncer(st Store, client Fetcher, runID string, logger *slog.Logger) *Syncer {
	return &Syncer{
		store:      st,
		client:     client,
		runID:      runID,
		logger:     logger,
		MinPlayers: 4,
	}
}

// SyncOrganizer ingests every unseen tournament for an organizer dated
// on or after since (YYYY-MM-DD). Tournament-level failures are recorded
// in the returned Stats; the error return is reserved for conditions
// that invalidate the whole pass.
func (s *Syncer) SyncOrganizer(ctx context.Context, organizerID, since string) (Stats, error) {
	stats := Stats{OrganizerID: organizerID}

	gameStore, err := s.store.StoreByOrganizer(ctx, organizerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if !s.DryRun {
				s.logIngestion(ctx, organizerID, "sync", "error", 0,
					fmt.Sprintf("no store configured for organizer %s", organizerID), nil)
			}
			return stats, fmt.Errorf("no store configured for organizer %s", organizerID)
		}
		return stats, fmt.Errorf("look up store for organizer %s: %w", organizerID, err)
	}

	s.logger.Info("syncing organizer",
		"organizer_id", organizerID, "store", gameStore.Name, "since", since, "dry_run", s.DryRun)

	tournaments := s.client.ListTournaments(ctx, organizerID, since)
	stats.TournamentsFound = len(tournaments)
	if s.Limit > 0 && len(tournaments) > s.Limit {
		tournaments = tournaments[:s.Limit]
	}

	for _, t := range tournaments {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		ts, err := s.syncTournament(ctx, t, gameStore.ID)
		if err != nil {
			stats.TournamentsSkipped++
			stats.AddErrorf("tournament %s: %v", t.ID, err)
			s.logger.Error("tournament sync failed", "tournament_id", t.ID, "error", err)
			if !s.DryRun {
				s.logIngestion(ctx, organizerID, "sync_tournament", "error", 0, err.Error(),
					map[string]any{"tournament_id": t.ID})
			}
			continue
		}
		if ts == nil {
			stats.TournamentsSkipped++
			continue
		}
		stats.TournamentsSynced++
		stats.ResultsInserted += ts.results
		stats.MatchesInserted += ts.matches
		stats.PlayersCreated += ts.playersCreated
		stats.RequestsCreated += ts.requestsCreated
		if t.Date > stats.LastTournamentDate {
			stats.LastTournamentDate = t.Date
		}
	}

	if !s.DryRun && stats.TournamentsSynced > 0 {
		if err := s.store.UpsertSyncState(ctx, organizerID, stats.TournamentsSynced, stats.LastTournamentDate); err != nil {
			stats.AddErrorf("update sync state: %v", err)
			s.logger.Error("sync state update failed", "organizer_id", organizerID, "error", err)
		}
		s.logIngestion(ctx, organizerID, "sync", "success",
			stats.ResultsInserted+stats.MatchesInserted, "",
			map[string]any{
				"tournaments_synced":  stats.TournamentsSynced,
				"tournaments_skipped": stats.TournamentsSkipped,
				"results":             stats.ResultsInserted,
				"matches":             stats.MatchesInserted,
				"players_created":     stats.PlayersCreated,
			})
	}

	s.logger.Info("organizer sync complete", "organizer_id", organizerID, "summary", stats.Summary())
	return stats, nil
}

// syncTournament ingests one tournament. A nil tournamentStats with a
// nil error means the tournament was skipped (already ingested, too
// small, or details unavailable).
func (s *Syncer) syncTournament(ctx context.Context, t limitless.TournamentSummary, storeID int64) (*tournamentStats, error) {
	exists, err := s.store.TournamentExists(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("existence check: %w", err)
	}
	if exists {
		s.logger.Debug("tournament already ingested", "tournament_id", t.ID)
		return nil, nil
	}
	if t.Players > 0 && t.Players < s.MinPlayers {
		s.logger.Debug("tournament below player cutoff",
			"tournament_id", t.ID, "players", t.Players)
		return nil, nil
	}

	details := s.client.Details(ctx, t.ID)
	if details == nil {
		s.logger.Warn("tournament details unavailable, skipping", "tournament_id", t.ID)
		return nil, nil
	}

	format := s.inferFormat(ctx, t.Name, t.Date)

	if s.DryRun {
		standings := s.client.Standings(ctx, t.ID)
		pairings := s.client.Pairings(ctx, t.ID)
		s.logger.Info("dry run: would ingest tournament",
			"tournament_id", t.ID, "name", t.Name, "date", t.Date,
			"standings", len(standings), "pairings", len(pairings))
		return &tournamentStats{results: len(standings), matches: 2 * countPaired(pairings)}, nil
	}

	notes := fmt.Sprintf("Imported from Limitless TCG (organizer %s)", t.OrganizerID.String())
	rounds := details.TotalRounds()
	tournamentID, err := s.store.InsertTournament(ctx, &model.Tournament{
		StoreID:     storeID,
		ExternalID:  t.ID,
		EventDate:   t.Date,
		EventType:   "online",
		Format:      format,
		PlayerCount: t.Players,
		Rounds:      rounds,
		Notes:       &notes,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost a race with a concurrent run. Treat like the
			// up-front existence check.
			s.logger.Debug("tournament already ingested", "tournament_id", t.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("insert tournament: %w", err)
	}

	res, err := newResolver(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("prime resolver caches: %w", err)
	}

	ts := &tournamentStats{}
	s.ingestStandings(ctx, t.ID, tournamentID, res, ts)
	s.ingestPairings(ctx, t.ID, tournamentID, res, ts)
	ts.playersCreated = res.playersCreated
	ts.requestsCreated = res.requestsCreated

	s.logger.Info("tournament ingested",
		"tournament_id", t.ID, "name", t.Name,
		"results", ts.results, "matches", ts.matches)
	return ts, nil
}

func (s *Syncer) ingestStandings(ctx context.Context, externalID string, tournamentID int64, res *resolver, ts *tournamentStats) {
	standings := s.client.Standings(ctx, externalID)
	sourceURL := s.client.StandingsURL(externalID)

	for _, st := range standings {
		if st.Player == "" {
			continue
		}
		playerID, err := res.Player(ctx, st.Player, st.Name)
		if err != nil {
			s.logger.Error("resolve player failed",
				"tournament_id", externalID, "username", st.Player, "error", err)
			continue
		}
		archetypeID, requestID, err := res.Deck(ctx, st.Deck)
		if err != nil {
			s.logger.Error("resolve deck failed",
				"tournament_id", externalID, "username", st.Player, "error", err)
			continue
		}
		result := &model.Result{
			TournamentID:     tournamentID,
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
		if err := s.store.InsertResult(ctx, result); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				s.logger.Debug("result already present",
					"tournament_id", externalID, "username", st.Player)
				continue
			}
			s.logger.Error("insert result failed",
				"tournament_id", externalID, "username", st.Player, "error", err)
			continue
		}
		ts.results++
	}
}

func (s *Syncer) ingestPairings(ctx context.Context, externalID string, tournamentID int64, res *resolver, ts *tournamentStats) {
	for _, p := range s.client.Pairings(ctx, externalID) {
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
			{TournamentID: tournamentID, RoundNumber: p.Round, PlayerID: p1ID, OpponentID: p2ID, MatchPoints: p1Points},
			{TournamentID: tournamentID, RoundNumber: p.Round, PlayerID: p2ID, OpponentID: p1ID, MatchPoints: p2Points},
		}
		for i := range rows {
			if err := s.store.InsertMatch(ctx, &rows[i]); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					continue
				}
				s.logger.Error("insert match failed",
					"tournament_id", externalID, "round", p.Round, "error", err)
				continue
			}
			ts.matches++
		}
	}
}

// countPaired counts pairings with an opponent (byes excluded).
func countPaired(pairings []limitless.Pairing) int {
	n := 0
	for _, p := range pairings {
		if p.Player2 != "" {
			n++
		}
	}
	return n
}

func (s *Syncer) logIngestion(ctx context.Context, organizerID, action, status string, records int, errMsg string, metadata map[string]any) {
	entry := &model.IngestionLogEntry{
		RunID:           s.runID,
		Source:          "limitless_organizer_" + organizerID,
		Action:          action,
		Status:          status,
		RecordsAffected: records,
		ErrorMessage:    errMsg,
		Metadata:        metadata,
	}
	if err := s.store.AppendIngestionLog(ctx, entry); err != nil {
		s.logger.Warn("ingestion log write failed", "action", action, "error", err)
	}
}
