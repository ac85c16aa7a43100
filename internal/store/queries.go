package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lopezmichael/digimon-tcg-standings/internal/config"
	"github.com/lopezmichael/digimon-tcg-standings/internal/model"
)

// --------------------------------------------------------------------------
// Stores & tournaments
// --------------------------------------------------------------------------

// StoreByOrganizer resolves the local store curated for a Limitless
// organizer. Returns ErrNotFound when no store carries the organizer id.
func (d *DB) StoreByOrganizer(ctx context.Context, organizerID string) (*model.Store, error) {
	var s model.Store
	err := d.pool.QueryRow(ctx, "store_by_organizer", organizerID).
		Scan(&s.ID, &s.Name, &s.OrganizerID, &s.IsOnline)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// TournamentExists reports whether a tournament with this Limitless id has
// already been ingested.
func (d *DB) TournamentExists(ctx context.Context, externalID string) (bool, error) {
	var id int64
	err := d.pool.QueryRow(ctx, "tournament_by_external_id", externalID).Scan(&id)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// InsertTournament creates a tournament row and returns its surrogate id.
func (d *DB) InsertTournament(ctx context.Context, t *model.Tournament) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO `+config.TournamentsTable+`
			(store_id, event_date, event_type, format, player_count,
			 rounds, limitless_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING tournament_id`,
		t.StoreID, t.EventDate, t.EventType, t.Format, t.PlayerCount,
		t.Rounds, t.ExternalID, t.Notes,
	).Scan(&id)
	return id, classifyErr(err)
}

// LatestFormatBefore returns the most recently released format whose release
// date is on or before the given event date.
func (d *DB) LatestFormatBefore(ctx context.Context, eventDate string) (string, error) {
	var formatID string
	err := d.pool.QueryRow(ctx, "latest_format_before", eventDate).Scan(&formatID)
	if err != nil {
		return "", notFound(err)
	}
	return formatID, nil
}

// --------------------------------------------------------------------------
// Players
// --------------------------------------------------------------------------

// PlayerByUsername looks up a player by Limitless username.
func (d *DB) PlayerByUsername(ctx context.Context, username string) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, "player_by_username", username).Scan(&id)
	if err != nil {
		return 0, notFound(err)
	}
	return id, nil
}

// InsertPlayer creates a player row and returns its surrogate id.
func (d *DB) InsertPlayer(ctx context.Context, displayName, username string) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO `+config.PlayersTable+`
			(display_name, limitless_username, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING player_id`,
		displayName, username,
	).Scan(&id)
	return id, classifyErr(err)
}

// PlayersWithUsernames preloads the player resolution cache.
func (d *DB) PlayersWithUsernames(ctx context.Context) (map[string]int64, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT limitless_username, player_id
		FROM `+config.PlayersTable+`
		WHERE limitless_username IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make(map[string]int64)
	for rows.Next() {
		var username string
		var id int64
		if err := rows.Scan(&username, &id); err != nil {
			return nil, err
		}
		players[username] = id
	}
	return players, rows.Err()
}

// PlayerDisplayName returns a player's display name.
func (d *DB) PlayerDisplayName(ctx context.Context, playerID int64) (string, error) {
	var name string
	err := d.pool.QueryRow(ctx, "player_display_name", playerID).Scan(&name)
	if err != nil {
		return "", notFound(err)
	}
	return name, nil
}

// --------------------------------------------------------------------------
// Deck mappings & classification requests
// --------------------------------------------------------------------------

// DeckMappings preloads the deck resolution cache. Values are nil for
// mappings still pending curation.
func (d *DB) DeckMappings(ctx context.Context) (map[string]*int64, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT limitless_deck_id, archetype_id
		FROM ` + config.DeckMapTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mappings := make(map[string]*int64)
	for rows.Next() {
		var deckID string
		var archetypeID *int64
		if err := rows.Scan(&deckID, &archetypeID); err != nil {
			return nil, err
		}
		mappings[deckID] = archetypeID
	}
	return mappings, rows.Err()
}

// MappedDecks returns only the curated mappings (non-nil archetype).
func (d *DB) MappedDecks(ctx context.Context) (map[string]int64, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT limitless_deck_id, archetype_id
		FROM `+config.DeckMapTable+`
		WHERE archetype_id IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mapped := make(map[string]int64)
	for rows.Next() {
		var deckID string
		var archetypeID int64
		if err := rows.Scan(&deckID, &archetypeID); err != nil {
			return nil, err
		}
		mapped[deckID] = archetypeID
	}
	return mapped, rows.Err()
}

// InsertDeckMapping creates an uncurated mapping for a new external deck id.
func (d *DB) InsertDeckMapping(ctx context.Context, externalDeckID, deckName string) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO `+config.DeckMapTable+`
			(limitless_deck_id, limitless_deck_name, archetype_id)
		VALUES ($1, $2, NULL)`,
		externalDeckID, deckName,
	)
	return classifyErr(err)
}

// InsertClassificationRequest queues a deck for curation and returns the
// request id.
func (d *DB) InsertClassificationRequest(ctx context.Context, deckName string) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO `+config.DeckRequestsTable+`
			(deck_name, primary_color, status, submitted_at)
		VALUES ($1, 'Unknown', 'pending', NOW())
		RETURNING request_id`,
		deckName,
	).Scan(&id)
	return id, classifyErr(err)
}

// --------------------------------------------------------------------------
// Results & matches
// --------------------------------------------------------------------------

// InsertResult creates one result row. Returns ErrDuplicate when the
// (tournament, player) pair already exists.
func (d *DB) InsertResult(ctx context.Context, r *model.Result) error {
	var decklist any
	if len(r.DecklistJSON) > 0 {
		decklist = r.DecklistJSON
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO `+config.ResultsTable+`
			(tournament_id, player_id, archetype_id, pending_deck_request_id,
			 placement, wins, losses, ties, notes, decklist_json, source_url,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		r.TournamentID, r.PlayerID, r.ArchetypeID, r.PendingRequestID,
		r.Placement, r.Wins, r.Losses, r.Ties, r.Notes, decklist, r.SourceURL,
	)
	return classifyErr(err)
}

// InsertMatch creates one player-perspective match row. Returns ErrDuplicate
// when the perspective already exists.
func (d *DB) InsertMatch(ctx context.Context, m *model.Match) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO `+config.MatchesTable+`
			(tournament_id, round_number, player_id, opponent_id,
			 match_points, submitted_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		m.TournamentID, m.RoundNumber, m.PlayerID, m.OpponentID, m.MatchPoints,
	)
	return classifyErr(err)
}

// ResultExists is the repair-time row-level idempotency check.
func (d *DB) ResultExists(ctx context.Context, tournamentID, playerID int64) (bool, error) {
	var one int
	err := d.pool.QueryRow(ctx, "result_exists", tournamentID, playerID).Scan(&one)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MatchExists is the repair-time row-level idempotency check.
func (d *DB) MatchExists(ctx context.Context, tournamentID int64, roundNumber int, playerID, opponentID int64) (bool, error) {
	var one int
	err := d.pool.QueryRow(ctx, "match_exists", tournamentID, roundNumber, playerID, opponentID).Scan(&one)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetResultArchetype assigns an archetype to a stored result.
func (d *DB) SetResultArchetype(ctx context.Context, resultID, archetypeID int64) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE `+config.ResultsTable+`
		SET archetype_id = $1, updated_at = NOW()
		WHERE result_id = $2`,
		archetypeID, resultID,
	)
	return err
}

// --------------------------------------------------------------------------
// Repair scans
// --------------------------------------------------------------------------

// TournamentsWithoutResults finds ingested tournaments with a Limitless id
// and zero result rows. A nil storeIDs slice scans every store.
func (d *DB) TournamentsWithoutResults(ctx context.Context, storeIDs []int64) ([]model.Tournament, error) {
	return d.scanTournaments(ctx, `
		SELECT t.tournament_id, t.store_id, t.limitless_id, t.event_date
		FROM `+config.TournamentsTable+` t
		WHERE t.limitless_id IS NOT NULL
		  AND ($1::bigint[] IS NULL OR t.store_id = ANY($1))
		  AND NOT EXISTS (
			SELECT 1 FROM `+config.ResultsTable+` r
			WHERE r.tournament_id = t.tournament_id)
		ORDER BY t.event_date`, storeIDs)
}

// TournamentsWithoutMatches finds ingested tournaments that have results but
// zero match rows. A nil storeIDs slice scans every store.
func (d *DB) TournamentsWithoutMatches(ctx context.Context, storeIDs []int64) ([]model.Tournament, error) {
	return d.scanTournaments(ctx, `
		SELECT t.tournament_id, t.store_id, t.limitless_id, t.event_date
		FROM `+config.TournamentsTable+` t
		WHERE t.limitless_id IS NOT NULL
		  AND ($1::bigint[] IS NULL OR t.store_id = ANY($1))
		  AND EXISTS (
			SELECT 1 FROM `+config.ResultsTable+` r
			WHERE r.tournament_id = t.tournament_id)
		  AND NOT EXISTS (
			SELECT 1 FROM `+config.MatchesTable+` m
			WHERE m.tournament_id = t.tournament_id)
		ORDER BY t.event_date`, storeIDs)
}

func (d *DB) scanTournaments(ctx context.Context, sql string, storeIDs []int64) ([]model.Tournament, error) {
	rows, err := d.pool.Query(ctx, sql, storeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tournaments []model.Tournament
	for rows.Next() {
		var t model.Tournament
		if err := rows.Scan(&t.ID, &t.StoreID, &t.ExternalID, &t.EventDate); err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

// ResultsMissingArchetype finds results that have no archetype yet, grouped
// by tournament for the deck-data repair pass. An empty organizerID scans
// every store.
func (d *DB) ResultsMissingArchetype(ctx context.Context, organizerID string) ([]model.RepairCandidate, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT r.result_id, r.tournament_id, r.player_id, t.limitless_id
		FROM `+config.ResultsTable+` r
		JOIN `+config.TournamentsTable+` t ON r.tournament_id = t.tournament_id
		JOIN `+config.StoresTable+` s ON t.store_id = s.store_id
		WHERE ($1 = '' OR s.limitless_organizer_id = $1)
		  AND r.archetype_id IS NULL
		  AND t.limitless_id IS NOT NULL
		ORDER BY t.limitless_id`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []model.RepairCandidate
	for rows.Next() {
		var c model.RepairCandidate
		if err := rows.Scan(&c.ResultID, &c.TournamentID, &c.PlayerID, &c.ExternalID); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// --------------------------------------------------------------------------
// Archetypes & classification backfill
// --------------------------------------------------------------------------

// ArchetypeIDByName resolves one archetype by name.
func (d *DB) ArchetypeIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, "archetype_by_name", name).Scan(&id)
	if err != nil {
		return 0, notFound(err)
	}
	return id, nil
}

// ArchetypesByName returns the full archetype catalog keyed by name.
func (d *DB) ArchetypesByName(ctx context.Context) (map[string]int64, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT archetype_name, archetype_id
		FROM ` + config.ArchetypesTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	archetypes := make(map[string]int64)
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, err
		}
		archetypes[name] = id
	}
	return archetypes, rows.Err()
}

// UnclassifiedResults returns results stuck on the Unknown catch-all that
// carry a decklist payload, for the classifier backfill pass.
func (d *DB) UnclassifiedResults(ctx context.Context) ([]model.UnclassifiedResult, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT r.result_id, r.decklist_json
		FROM `+config.ResultsTable+` r
		JOIN `+config.ArchetypesTable+` a ON r.archetype_id = a.archetype_id
		WHERE a.archetype_name = $1
		  AND r.decklist_json IS NOT NULL`,
		model.UnknownArchetypeName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.UnclassifiedResult
	for rows.Next() {
		var r model.UnclassifiedResult
		if err := rows.Scan(&r.ResultID, &r.DecklistJSON); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// --------------------------------------------------------------------------
// Sync state & ingestion log
// --------------------------------------------------------------------------

// UpsertSyncState records a completed sync pass. The last tournament date is
// monotonic non-decreasing; the synced counter is cumulative.
func (d *DB) UpsertSyncState(ctx context.Context, organizerID string, synced int, lastDate string) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO `+config.SyncStateTable+`
			(organizer_id, last_synced_at, last_tournament_date, tournaments_synced)
		VALUES ($1, NOW(), $2, $3)
		ON CONFLICT (organizer_id) DO UPDATE SET
			last_synced_at = NOW(),
			last_tournament_date = GREATEST(`+config.SyncStateTable+`.last_tournament_date, EXCLUDED.last_tournament_date),
			tournaments_synced = `+config.SyncStateTable+`.tournaments_synced + EXCLUDED.tournaments_synced`,
		organizerID, lastDate, synced,
	)
	return err
}

// AppendIngestionLog writes one audit row. The log is append-only; nothing
// in the pipeline updates or deletes it.
func (d *DB) AppendIngestionLog(ctx context.Context, e *model.IngestionLogEntry) error {
	var metadata []byte
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal log metadata: %w", err)
		}
		metadata = b
	}
	var errMsg any
	if e.ErrorMessage != "" {
		errMsg = e.ErrorMessage
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO `+config.IngestionLogTable+`
			(run_id, source, action, status, records_affected, error_message,
			 metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		e.RunID, e.Source, e.Action, e.Status, e.RecordsAffected, errMsg, metadata,
	)
	return err
}

// --------------------------------------------------------------------------
// Reset deletes — dependency order is enforced by the reset operator
// --------------------------------------------------------------------------

// DeleteMatches removes match rows for the given stores (nil = all stores).
func (d *DB) DeleteMatches(ctx context.Context, storeIDs []int64) (int64, error) {
	tag, err := d.pool.Exec(ctx, `
		DELETE FROM `+config.MatchesTable+` m
		USING `+config.TournamentsTable+` t
		WHERE m.tournament_id = t.tournament_id
		  AND ($1::bigint[] IS NULL OR t.store_id = ANY($1))`, storeIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteResults removes result rows for the given stores (nil = all stores).
func (d *DB) DeleteResults(ctx context.Context, storeIDs []int64) (int64, error) {
	tag, err := d.pool.Exec(ctx, `
		DELETE FROM `+config.ResultsTable+` r
		USING `+config.TournamentsTable+` t
		WHERE r.tournament_id = t.tournament_id
		  AND ($1::bigint[] IS NULL OR t.store_id = ANY($1))`, storeIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteTournaments removes tournament rows for the given stores
// (nil = all stores).
func (d *DB) DeleteTournaments(ctx context.Context, storeIDs []int64) (int64, error) {
	tag, err := d.pool.Exec(ctx, `
		DELETE FROM `+config.TournamentsTable+`
		WHERE ($1::bigint[] IS NULL OR store_id = ANY($1))`, storeIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteSyncStates removes sync state for the given organizers (nil = all).
func (d *DB) DeleteSyncStates(ctx context.Context, organizerIDs []string) (int64, error) {
	tag, err := d.pool.Exec(ctx, `
		DELETE FROM `+config.SyncStateTable+`
		WHERE ($1::text[] IS NULL OR organizer_id = ANY($1))`, organizerIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeletePlayers removes every player row. Only valid after a global reset
// has removed all results and matches.
func (d *DB) DeletePlayers(ctx context.Context) (int64, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM `+config.PlayersTable)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
