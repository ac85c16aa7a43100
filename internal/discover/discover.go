// Package discover scans recent tournaments across all organizers to
// find candidates worth adding to the curated store list.
package discover

import (
	"context"
	"log/slog"
	"sort"

	"github.com/lopezmichael/digimon-tcg-standings/internal/limitless"
)

const (
	// scanPages is how many listing pages of recent tournaments to scan.
	scanPages = 10
	// sampleSize is how many tournaments per organizer to sample for
	// deck-submission coverage.
	sampleSize = 3
	// minTournaments filters out one-off organizers.
	minTournaments = 2
)

// Fetcher is the slice of the API client discovery uses.
type Fetcher interface {
	RecentTournaments(ctx context.Context, page int) []limitless.TournamentSummary
	Standings(ctx context.Context, tournamentID string) []limitless.Standing
}

// Candidate is an organizer seen in the recent-tournament scan.
type Candidate struct {
	OrganizerID     string
	TournamentCount int
	TotalPlayers    int
	LatestDate      string
	SampleName      string // name of the most recent tournament seen

	// Deck coverage over the sampled standings.
	SampledStandings int
	WithDecklist     int
}

// DeckCoverage is the share of sampled standings that submitted a deck.
func (c Candidate) DeckCoverage() float64 {
	if c.SampledStandings == 0 {
		return 0
	}
	return float64(c.WithDecklist) / float64(c.SampledStandings)
}

// Scan walks recent tournament pages, groups them by organizer, skips
// the ids in exclude (organizers already being synced), and samples
// standings to measure how often players submit decks. Candidates come
// back sorted by tournament count, busiest first.
func Scan(ctx context.Context, client Fetcher, exclude []string, logger *slog.Logger) []Candidate {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	byOrganizer := make(map[string]*Candidate)
	tournaments := make(map[string][]limitless.TournamentSummary)

	for page := 1; page <= scanPages; page++ {
		if ctx.Err() != nil {
			break
		}
		batch := client.RecentTournaments(ctx, page)
		if len(batch) == 0 {
			break
		}
		for _, t := range batch {
			orgID := t.OrganizerID.String()
			if orgID == "" || excluded[orgID] {
				continue
			}
			c, ok := byOrganizer[orgID]
			if !ok {
				c = &Candidate{OrganizerID: orgID}
				byOrganizer[orgID] = c
			}
			c.TournamentCount++
			c.TotalPlayers += t.Players
			if t.Date > c.LatestDate {
				c.LatestDate = t.Date
				c.SampleName = t.Name
			}
			tournaments[orgID] = append(tournaments[orgID], t)
		}
	}

	candidates := make([]Candidate, 0, len(byOrganizer))
	for orgID, c := range byOrganizer {
		if c.TournamentCount < minTournaments {
			continue
		}
		sample := tournaments[orgID]
		if len(sample) > sampleSize {
			sample = sample[:sampleSize]
		}
		for _, t := range sample {
			if ctx.Err() != nil {
				break
			}
			for _, st := range client.Standings(ctx, t.ID) {
				c.SampledStandings++
				if len(st.Decklist) > 0 || st.Deck != nil {
					c.WithDecklist++
				}
			}
		}
		candidates = append(candidates, *c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].TournamentCount != candidates[j].TournamentCount {
			return candidates[i].TournamentCount > candidates[j].TournamentCount
		}
		return candidates[i].OrganizerID < candidates[j].OrganizerID
	})

	logger.Info("discovery scan complete",
		"pages", scanPages, "candidates", len(candidates))
	return candidates
}
