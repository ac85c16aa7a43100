package sync

import "fmt"

// Stats tracks counts and errors from one organizer sync pass.
type Stats struct {
	OrganizerID        string
	TournamentsFound   int
	TournamentsSynced  int
	TournamentsSkipped int
	ResultsInserted    int
	MatchesInserted    int
	PlayersCreated     int
	RequestsCreated    int
	LastTournamentDate string
	Errors             []string
}

// Add merges another organizer's Stats into this one.
func (s *Stats) Add(other Stats) {
	s.TournamentsFound += other.TournamentsFound
	s.TournamentsSynced += other.TournamentsSynced
	s.TournamentsSkipped += other.TournamentsSkipped
	s.ResultsInserted += other.ResultsInserted
	s.MatchesInserted += other.MatchesInserted
	s.PlayersCreated += other.PlayersCreated
	s.RequestsCreated += other.RequestsCreated
	if other.LastTournamentDate > s.LastTournamentDate {
		s.LastTournamentDate = other.LastTournamentDate
	}
	s.Errors = append(s.Errors, other.Errors...)
}

// AddErrorf records a formatted error message.
func (s *Stats) AddErrorf(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the sync pass.
func (s *Stats) Summary() string {
	return fmt.Sprintf(
		"synced=%d skipped=%d results=%d matches=%d players_created=%d deck_requests=%d errors=%d",
		s.TournamentsSynced, s.TournamentsSkipped, s.ResultsInserted,
		s.MatchesInserted, s.PlayersCreated, s.RequestsCreated, len(s.Errors),
	)
}

// tournamentStats tracks the rows materialized for a single tournament.
type tournamentStats struct {
	results         int
	matches         int
	playersCreated  int
	requestsCreated int
}
