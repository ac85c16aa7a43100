package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/lopezmichael/digimon-tcg-standings/internal/limitless"
	"github.com/lopezmichael/digimon-tcg-standings/internal/model"
	"github.com/lopezmichael/digimon-tcg-standings/internal/store"
)

// resolver maps Limitless usernames and deck ids to local rows, creating
// players and deck mappings lazily. Caches are primed from the store once
// per tournament so repeat lookups stay in memory.
type resolver struct {
	store Store

	players   map[string]int64  // limitless username -> player id
	decks     map[string]*int64 // limitless deck id -> archetype id (nil = unmapped)
	unknownID int64             // archetype id of the Unknown catch-all

	playersCreated  int
	requestsCreated int
}

func newResolver(ctx context.Context, st Store) (*resolver, error) {
	players, err := st.PlayersWithUsernames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load player cache: %w", err)
	}
	decks, err := st.DeckMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load deck mapping cache: %w", err)
	}
	unknownID, err := st.ArchetypeIDByName(ctx, model.UnknownArchetypeName)
	if err != nil {
		return nil, fmt.Errorf("look up %s archetype: %w", model.UnknownArchetypeName, err)
	}
	return &resolver{
		store:     st,
		players:   players,
		decks:     decks,
		unknownID: unknownID,
	}, nil
}

// Player returns the local id for a Limitless username, creating the
// player on first sighting. displayName falls back to the username.
func (r *resolver) Player(ctx context.Context, username, displayName string) (int64, error) {
	if id, ok := r.players[username]; ok {
		return id, nil
	}
	id, err := r.store.PlayerByUsername(ctx, username)
	if err == nil {
		r.players[username] = id
		return id, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}
	if displayName == "" {
		displayName = username
	}
	id, err = r.store.InsertPlayer(ctx, displayName, username)
	if err != nil {
		return 0, err
	}
	r.players[username] = id
	r.playersCreated++
	return id, nil
}

// CachedPlayer reports the local id for a username already resolved in
// this run. Pairings only reference players the standings introduced.
func (r *resolver) CachedPlayer(username string) (int64, bool) {
	id, ok := r.players[username]
	return id, ok
}

// Deck resolves a standing's deck bucket to (archetypeID, requestID).
// The catch-all bucket maps to the fixed Unknown archetype. An unseen
// deck id gets a null-archetype mapping plus one classification request;
// until somebody curates the mapping, results reference the request.
func (r *resolver) Deck(ctx context.Context, deck *limitless.Deck) (*int64, *int64, error) {
	if deck == nil || deck.ID == "" {
		return nil, nil, nil
	}
	if deck.ID == limitless.CatchAllDeckID {
		id := r.unknownID
		return &id, nil, nil
	}
	if archetypeID, ok := r.decks[deck.ID]; ok {
		return archetypeID, nil, nil
	}

	name := deck.Name
	if name == "" {
		name = "Unknown"
	}
	if err := r.store.InsertDeckMapping(ctx, deck.ID, name); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, nil, fmt.Errorf("insert deck mapping %s: %w", deck.ID, err)
		}
		// Another run mapped it between our cache load and now.
		r.decks[deck.ID] = nil
		return nil, nil, nil
	}
	requestID, err := r.store.InsertClassificationRequest(ctx, "[Limitless] "+name)
	if err != nil {
		return nil, nil, fmt.Errorf("insert classification request for %s: %w", deck.ID, err)
	}
	r.decks[deck.ID] = nil
	r.requestsCreated++
	return nil, &requestID, nil
}
