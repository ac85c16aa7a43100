package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lopezmichael/digimon-tcg-standings/internal/limitless"
	"github.com/lopezmichael/digimon-tcg-standings/internal/model"
)

func TestRepairCompletesTournamentWithoutResults(t *testing.T) {
	st, f := scenario()
	// Tournament row exists but the standings/pairings pass never ran.
	st.tournaments = append(st.tournaments, model.Tournament{
		ID: st.id(), StoreID: st.stores["452"].ID, ExternalID: "t100", EventDate: "2025-01-10",
	})

	repairer := NewRepairer(st, f, "run-1", testLogger())
	stats, err := repairer.Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TournamentsScanned)
	assert.Equal(t, 3, stats.ResultsInserted)
	assert.Equal(t, 4, stats.MatchesInserted)
	assert.Empty(t, stats.Errors)
	assert.Len(t, st.results, 3)
	assert.Len(t, st.matches, 4)
}

func TestRepairBackfillsMissingMatchesOnly(t *testing.T) {
	st, f := scenario()
	storeID := st.stores["452"].ID
	tournamentID := st.id()
	st.tournaments = append(st.tournaments, model.Tournament{
		ID: tournamentID, StoreID: storeID, ExternalID: "t100", EventDate: "2025-01-10",
	})
	// Results made it in before the original run died.
	for _, username := range []string{"ken", "tai", "matt"} {
		playerID, err := st.InsertPlayer(context.Background(), username, username)
		require.NoError(t, err)
		require.NoError(t, st.InsertResult(context.Background(), &model.Result{
			TournamentID: tournamentID, PlayerID: playerID,
		}))
	}

	repairer := NewRepairer(st, f, "run-1", testLogger())
	stats, err := repairer.Run(context.Background(), "452")
	require.NoError(t, err)

	assert.Equal(t, 0, stats.ResultsInserted)
	assert.Equal(t, 4, stats.MatchesInserted)
	assert.Len(t, st.results, 3)
}

func TestRepairIsIdempotent(t *testing.T) {
	st, f := scenario()
	st.tournaments = append(st.tournaments, model.Tournament{
		ID: st.id(), StoreID: st.stores["452"].ID, ExternalID: "t100", EventDate: "2025-01-10",
	})
	repairer := NewRepairer(st, f, "run-1", testLogger())

	_, err := repairer.Run(context.Background(), "")
	require.NoError(t, err)
	again, err := repairer.Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 0, again.ResultsInserted)
	assert.Equal(t, 0, again.MatchesInserted)
	assert.Len(t, st.results, 3)
	assert.Len(t, st.matches, 4)
}

func TestRepairScopedToOrganizer(t *testing.T) {
	st, f := scenario()
	other := st.addStore("281", "PHOENIX REBORN")
	st.tournaments = append(st.tournaments,
		model.Tournament{ID: st.id(), StoreID: st.stores["452"].ID, ExternalID: "t100", EventDate: "2025-01-10"},
		model.Tournament{ID: st.id(), StoreID: other.ID, ExternalID: "t300", EventDate: "2025-01-12"},
	)
	f.standings["t300"] = f.standings["t100"]

	repairer := NewRepairer(st, f, "run-1", testLogger())
	stats, err := repairer.Run(context.Background(), "452")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TournamentsScanned)
	for _, r := range st.results {
		tourney, ok := st.tournamentByID(r.TournamentID)
		require.True(t, ok)
		assert.Equal(t, "t100", tourney.ExternalID)
	}
}

func TestRepairDecks(t *testing.T) {
	st, f := scenario()
	blueFlareID := st.addArchetype("Blue Flare")
	st.mappings["blue-flare"] = &blueFlareID

	storeID := st.stores["452"].ID
	tournamentID := st.id()
	st.tournaments = append(st.tournaments, model.Tournament{
		ID: tournamentID, StoreID: storeID, ExternalID: "t100", EventDate: "2025-01-10",
	})
	// Results exist but were ingested before decks were curated. Display
	// names must match the standings rows.
	ids := map[string]int64{}
	for username, display := range map[string]string{"ken": "Ken I.", "tai": "Tai K.", "matt": "Matt I."} {
		playerID, err := st.InsertPlayer(context.Background(), display, username)
		require.NoError(t, err)
		ids[username] = playerID
		require.NoError(t, st.InsertResult(context.Background(), &model.Result{
			TournamentID: tournamentID, PlayerID: playerID,
		}))
	}

	repairer := NewRepairer(st, f, "run-1", testLogger())
	stats, err := repairer.RepairDecks(context.Background(), "452")
	require.NoError(t, err)

	// ken via curated mapping, tai via the catch-all bucket. matt has no
	// deck in the standings and stays untouched.
	assert.Equal(t, 2, stats.DecksRepaired)
	byPlayer := map[int64]model.Result{}
	for _, r := range st.results {
		byPlayer[r.PlayerID] = r
	}
	require.NotNil(t, byPlayer[ids["ken"]].ArchetypeID)
	assert.Equal(t, blueFlareID, *byPlayer[ids["ken"]].ArchetypeID)
	require.NotNil(t, byPlayer[ids["tai"]].ArchetypeID)
	assert.Equal(t, st.archetypes[model.UnknownArchetypeName], *byPlayer[ids["tai"]].ArchetypeID)
	assert.Nil(t, byPlayer[ids["matt"]].ArchetypeID)
}

func TestRepairDecksLeavesUnmappedAlone(t *testing.T) {
	st, f := scenario()
	storeID := st.stores["452"].ID
	tournamentID := st.id()
	st.tournaments = append(st.tournaments, model.Tournament{
		ID: tournamentID, StoreID: storeID, ExternalID: "t100", EventDate: "2025-01-10",
	})
	playerID, err := st.InsertPlayer(context.Background(), "Ken I.", "ken")
	require.NoError(t, err)
	require.NoError(t, st.InsertResult(context.Background(), &model.Result{
		TournamentID: tournamentID, PlayerID: playerID,
	}))
	f.standings["t100"] = []limitless.Standing{
		{Player: "ken", Name: "Ken I.", Deck: &limitless.Deck{ID: "uncurated", Name: "Uncurated"}},
	}

	repairer := NewRepairer(st, f, "run-1", testLogger())
	stats, err := repairer.RepairDecks(context.Background(), "452")
	require.NoError(t, err)

	assert.Equal(t, 0, stats.DecksRepaired)
	assert.Nil(t, st.results[0].ArchetypeID)
}
