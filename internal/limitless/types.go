package limitless

import (
	"bytes"
	"encoding/json"
)

// TournamentSummary is one row of the paginated tournament listing.
type TournamentSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Date        string     `json:"date"`
	Players     int        `json:"players"`
	OrganizerID FlexString `json:"organizerId"`
}

// TournamentDetails is the per-tournament detail payload. Only the phase
// structure is consumed, to count rounds.
type TournamentDetails struct {
	Phases []Phase `json:"phases"`
}

// Phase holds a round specification that the API serves either as a round
// count or as a list of round objects.
type Phase struct {
	Rounds json.RawMessage `json:"rounds"`
}

// TotalRounds sums rounds across all phases. Returns nil when the payload
// carries no usable round information.
func (d *TournamentDetails) TotalRounds() *int {
	total := 0
	for _, phase := range d.Phases {
		if len(phase.Rounds) == 0 {
			continue
		}
		var n int
		if err := json.Unmarshal(phase.Rounds, &n); err == nil {
			total += n
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(phase.Rounds, &list); err == nil {
			total += len(list)
		}
	}
	if total == 0 {
		return nil
	}
	return &total
}

// Standing is one player's final record in a tournament.
type Standing struct {
	Player   string          `json:"player"`
	Name     string          `json:"name"`
	Placing  *int            `json:"placing"`
	Record   Record          `json:"record"`
	Deck     *Deck           `json:"deck"`
	Decklist json.RawMessage `json:"decklist"`
	Drop     json.RawMessage `json:"drop"`
}

// Record is a win/loss/tie triple.
type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Ties   int `json:"ties"`
}

// Deck identifies the archetype bucket Limitless assigned to a standing.
// The id "other" is the API's own catch-all.
type Deck struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CatchAllDeckID is the Limitless bucket for decks it could not classify.
const CatchAllDeckID = "other"

// Pairing is one round's matchup. Player2 is empty for byes. Winner holds a
// username, the tie sentinel "0", or the double-loss sentinel "-1".
type Pairing struct {
	Round   int        `json:"round"`
	Player1 string     `json:"player1"`
	Player2 string     `json:"player2"`
	Winner  FlexString `json:"winner"`
}

// FlexString decodes a JSON value that may arrive as a string or a number,
// normalizing both to their string form. The API is inconsistent about
// winner fields and organizer ids.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

func (f FlexString) String() string { return string(f) }
