package sync

import (
	"context"
	"fmt"

	"github.com/lopezmichael/digimon-tcg-standings/internal/limitless"
	"github.com/lopezmichael/digimon-tcg-standings/internal/model"
	"github.com/lopezmichael/digimon-tcg-standings/internal/store"
)

// fakeStore is an in-memory Store. It enforces the same uniqueness rules
// as the real schema so duplicate handling can be exercised.
type fakeStore struct {
	nextID int64

	stores       map[string]model.Store // organizer id -> store
	tournaments  []model.Tournament
	players      map[string]int64 // username -> id
	displayNames map[int64]string
	mappings     map[string]*int64 // deck id -> archetype id
	mappingNames map[string]string
	archetypes   map[string]int64 // name -> id
	requests     []string
	results      []model.Result
	matches      []model.Match
	syncStates   map[string]model.SyncState
	logEntries   []model.IngestionLogEntry
	formats      map[string]string // format id -> release date

	// Optional error injections.
	insertResultErr error
	insertMatchErr  error
}

func newFakeStore() *fakeStore {
	f := &fakeStore{
		stores:       map[string]model.Store{},
		players:      map[string]int64{},
		displayNames: map[int64]string{},
		mappings:     map[string]*int64{},
		mappingNames: map[string]string{},
		archetypes:   map[string]int64{},
		syncStates:   map[string]model.SyncState{},
		formats:      map[string]string{},
	}
	f.addArchetype(model.UnknownArchetypeName)
	return f
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addStore(organizerID, name string) model.Store {
	s := model.Store{ID: f.id(), Name: name, OrganizerID: organizerID, IsOnline: true}
	f.stores[organizerID] = s
	return s
}

func (f *fakeStore) addArchetype(name string) int64 {
	id := f.id()
	f.archetypes[name] = id
	return id
}

func (f *fakeStore) StoreByOrganizer(_ context.Context, organizerID string) (*model.Store, error) {
	s, ok := f.stores[organizerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (f *fakeStore) TournamentExists(_ context.Context, externalID string) (bool, error) {
	for _, t := range f.tournaments {
		if t.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertTournament(_ context.Context, t *model.Tournament) (int64, error) {
	for _, existing := range f.tournaments {
		if existing.ExternalID == t.ExternalID {
			return 0, fmt.Errorf("tournament %s: %w", t.ExternalID, store.ErrDuplicate)
		}
	}
	row := *t
	row.ID = f.id()
	f.tournaments = append(f.tournaments, row)
	return row.ID, nil
}

func (f *fakeStore) LatestFormatBefore(_ context.Context, eventDate string) (string, error) {
	best, bestDate := "", ""
	for id, release := range f.formats {
		if release <= eventDate && release > bestDate {
			best, bestDate = id, release
		}
	}
	if best == "" {
		return "", store.ErrNotFound
	}
	return best, nil
}

func (f *fakeStore) PlayerByUsername(_ context.Context, username string) (int64, error) {
	if id, ok := f.players[username]; ok {
		return id, nil
	}
	return 0, store.ErrNotFound
}

func (f *fakeStore) InsertPlayer(_ context.Context, displayName, username string) (int64, error) {
	if _, ok := f.players[username]; ok {
		return 0, fmt.Errorf("player %s: %w", username, store.ErrDuplicate)
	}
	id := f.id()
	f.players[username] = id
	f.displayNames[id] = displayName
	return id, nil
}

func (f *fakeStore) PlayersWithUsernames(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(f.players))
	for u, id := range f.players {
		out[u] = id
	}
	return out, nil
}

func (f *fakeStore) PlayerDisplayName(_ context.Context, playerID int64) (string, error) {
	name, ok := f.displayNames[playerID]
	if !ok {
		return "", store.ErrNotFound
	}
	return name, nil
}

func (f *fakeStore) DeckMappings(_ context.Context) (map[string]*int64, error) {
	out := make(map[string]*int64, len(f.mappings))
	for deckID, archetypeID := range f.mappings {
		out[deckID] = archetypeID
	}
	return out, nil
}

func (f *fakeStore) MappedDecks(_ context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for deckID, archetypeID := range f.mappings {
		if archetypeID != nil {
			out[deckID] = *archetypeID
		}
	}
	return out, nil
}

func (f *fakeStore) InsertDeckMapping(_ context.Context, externalDeckID, deckName string) error {
	if _, ok := f.mappings[externalDeckID]; ok {
		return fmt.Errorf("deck mapping %s: %w", externalDeckID, store.ErrDuplicate)
	}
	f.mappings[externalDeckID] = nil
	f.mappingNames[externalDeckID] = deckName
	return nil
}

func (f *fakeStore) InsertClassificationRequest(_ context.Context, deckName string) (int64, error) {
	f.requests = append(f.requests, deckName)
	return f.id(), nil
}

func (f *fakeStore) ArchetypeIDByName(_ context.Context, name string) (int64, error) {
	id, ok := f.archetypes[name]
	if !ok {
		return 0, store.ErrNotFound
	}
	return id, nil
}

func (f *fakeStore) InsertResult(_ context.Context, r *model.Result) error {
	if f.insertResultErr != nil {
		return f.insertResultErr
	}
	for _, existing := range f.results {
		if existing.TournamentID == r.TournamentID && existing.PlayerID == r.PlayerID {
			return fmt.Errorf("result: %w", store.ErrDuplicate)
		}
	}
	row := *r
	row.ID = f.id()
	f.results = append(f.results, row)
	return nil
}

func (f *fakeStore) InsertMatch(_ context.Context, m *model.Match) error {
	if f.insertMatchErr != nil {
		return f.insertMatchErr
	}
	for _, existing := range f.matches {
		if existing.TournamentID == m.TournamentID && existing.RoundNumber == m.RoundNumber &&
			existing.PlayerID == m.PlayerID && existing.OpponentID == m.OpponentID {
			return fmt.Errorf("match: %w", store.ErrDuplicate)
		}
	}
	row := *m
	row.ID = f.id()
	f.matches = append(f.matches, row)
	return nil
}

func (f *fakeStore) ResultExists(_ context.Context, tournamentID, playerID int64) (bool, error) {
	for _, r := range f.results {
		if r.TournamentID == tournamentID && r.PlayerID == playerID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MatchExists(_ context.Context, tournamentID int64, roundNumber int, playerID, opponentID int64) (bool, error) {
	for _, m := range f.matches {
		if m.TournamentID == tournamentID && m.RoundNumber == roundNumber &&
			m.PlayerID == playerID && m.OpponentID == opponentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) SetResultArchetype(_ context.Context, resultID, archetypeID int64) error {
	for i := range f.results {
		if f.results[i].ID == resultID {
			id := archetypeID
			f.results[i].ArchetypeID = &id
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) TournamentsWithoutResults(_ context.Context, storeIDs []int64) ([]model.Tournament, error) {
	var out []model.Tournament
	for _, t := range f.tournaments {
		if !f.inScope(t.StoreID, storeIDs) {
			continue
		}
		if f.resultCount(t.ID) == 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) TournamentsWithoutMatches(_ context.Context, storeIDs []int64) ([]model.Tournament, error) {
	var out []model.Tournament
	for _, t := range f.tournaments {
		if !f.inScope(t.StoreID, storeIDs) {
			continue
		}
		if f.resultCount(t.ID) > 0 && f.matchCount(t.ID) == 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ResultsMissingArchetype(_ context.Context, organizerID string) ([]model.RepairCandidate, error) {
	var out []model.RepairCandidate
	for _, r := range f.results {
		if r.ArchetypeID != nil {
			continue
		}
		t, ok := f.tournamentByID(r.TournamentID)
		if !ok {
			continue
		}
		if organizerID != "" {
			s, ok := f.storeByID(t.StoreID)
			if !ok || s.OrganizerID != organizerID {
				continue
			}
		}
		out = append(out, model.RepairCandidate{
			ResultID:     r.ID,
			TournamentID: r.TournamentID,
			PlayerID:     r.PlayerID,
			ExternalID:   t.ExternalID,
		})
	}
	return out, nil
}

func (f *fakeStore) UpsertSyncState(_ context.Context, organizerID string, synced int, lastDate string) error {
	state := f.syncStates[organizerID]
	state.OrganizerID = organizerID
	state.TournamentsSynced += synced
	if lastDate > state.LastTournamentDate {
		state.LastTournamentDate = lastDate
	}
	f.syncStates[organizerID] = state
	return nil
}

func (f *fakeStore) AppendIngestionLog(_ context.Context, e *model.IngestionLogEntry) error {
	f.logEntries = append(f.logEntries, *e)
	return nil
}

func (f *fakeStore) DeleteMatches(_ context.Context, storeIDs []int64) (int64, error) {
	var kept []model.Match
	var deleted int64
	for _, m := range f.matches {
		t, ok := f.tournamentByID(m.TournamentID)
		if ok && f.inScope(t.StoreID, storeIDs) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	f.matches = kept
	return deleted, nil
}

func (f *fakeStore) DeleteResults(_ context.Context, storeIDs []int64) (int64, error) {
	var kept []model.Result
	var deleted int64
	for _, r := range f.results {
		t, ok := f.tournamentByID(r.TournamentID)
		if ok && f.inScope(t.StoreID, storeIDs) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.results = kept
	return deleted, nil
}

func (f *fakeStore) DeleteTournaments(_ context.Context, storeIDs []int64) (int64, error) {
	var kept []model.Tournament
	var deleted int64
	for _, t := range f.tournaments {
		if f.inScope(t.StoreID, storeIDs) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	f.tournaments = kept
	return deleted, nil
}

func (f *fakeStore) DeleteSyncStates(_ context.Context, organizerIDs []string) (int64, error) {
	if len(organizerIDs) == 0 {
		n := int64(len(f.syncStates))
		f.syncStates = map[string]model.SyncState{}
		return n, nil
	}
	var deleted int64
	for _, id := range organizerIDs {
		if _, ok := f.syncStates[id]; ok {
			delete(f.syncStates, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeStore) DeletePlayers(_ context.Context) (int64, error) {
	n := int64(len(f.players))
	f.players = map[string]int64{}
	f.displayNames = map[int64]string{}
	return n, nil
}

func (f *fakeStore) inScope(storeID int64, storeIDs []int64) bool {
	if len(storeIDs) == 0 {
		return true
	}
	for _, id := range storeIDs {
		if id == storeID {
			return true
		}
	}
	return false
}

func (f *fakeStore) tournamentByID(id int64) (model.Tournament, bool) {
	for _, t := range f.tournaments {
		if t.ID == id {
			return t, true
		}
	}
	return model.Tournament{}, false
}

func (f *fakeStore) storeByID(id int64) (model.Store, bool) {
	for _, s := range f.stores {
		if s.ID == id {
			return s, true
		}
	}
	return model.Store{}, false
}

func (f *fakeStore) resultCount(tournamentID int64) int {
	n := 0
	for _, r := range f.results {
		if r.TournamentID == tournamentID {
			n++
		}
	}
	return n
}

func (f *fakeStore) matchCount(tournamentID int64) int {
	n := 0
	for _, m := range f.matches {
		if m.TournamentID == tournamentID {
			n++
		}
	}
	return n
}

// fakeFetcher serves canned API payloads keyed by tournament id.
type fakeFetcher struct {
	tournaments map[string][]limitless.TournamentSummary // organizer id -> listing
	details     map[string]*limitless.TournamentDetails
	standings   map[string][]limitless.Standing
	pairings    map[string][]limitless.Pairing
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		tournaments: map[string][]limitless.TournamentSummary{},
		details:     map[string]*limitless.TournamentDetails{},
		standings:   map[string][]limitless.Standing{},
		pairings:    map[string][]limitless.Pairing{},
	}
}

func (f *fakeFetcher) ListTournaments(_ context.Context, organizerID, since string) []limitless.TournamentSummary {
	var out []limitless.TournamentSummary
	for _, t := range f.tournaments[organizerID] {
		if t.Date >= since {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeFetcher) Details(_ context.Context, tournamentID string) *limitless.TournamentDetails {
	return f.details[tournamentID]
}

func (f *fakeFetcher) Standings(_ context.Context, tournamentID string) []limitless.Standing {
	return f.standings[tournamentID]
}

func (f *fakeFetcher) Pairings(_ context.Context, tournamentID string) []limitless.Pairing {
	return f.pairings[tournamentID]
}

func (f *fakeFetcher) StandingsURL(tournamentID string) string {
	return "https://play.limitlesstcg.com/tournament/" + tournamentID + "/standings"
}
