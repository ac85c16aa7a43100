package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lopezmichael/digimon-tcg-standings/internal/store"
)

// setCodeRe matches a BT/EX set-code token in a tournament name, with or
// without the dash ("BT-19", "ex7").
var setCodeRe = regexp.MustCompile(`(?i)\b(BT|EX)-?(\d{1,2})\b`)

// inferFormat determines the format for a tournament: a set-code token in
// the name wins, otherwise the latest format released on or before the
// event date. Returns nil when neither source yields one.
func (s *Syncer) inferFormat(ctx context.Context, name, eventDate string) *string {
	if m := setCodeRe.FindStringSubmatch(name); m != nil {
		code := strings.ToUpper(m[1]) + m[2]
		return &code
	}
	formatID, err := s.store.LatestFormatBefore(ctx, eventDate)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("format lookup failed", "event_date", eventDate, "error", err)
		}
		return nil
	}
	return &formatID
}

// matchPoints derives Swiss match points for both sides of a pairing.
// The winner field carries a username, "0" for a tie, or "-1" for a
// double loss; anything unrecognized is scored as a tie.
func matchPoints(winner, player1, player2 string) (p1, p2 int) {
	switch winner {
	case player1:
		return 3, 0
	case player2:
		return 0, 3
	case "0":
		return 1, 1
	case "-1":
		return 0, 0
	default:
		return 1, 1
	}
}

// dropNotes renders a standing's drop field, which the API serves as a
// round number or a free-form string. Zero, empty, and null mean the
// player finished the event.
func dropNotes(raw []byte) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var round int
	if err := json.Unmarshal(raw, &round); err == nil {
		if round == 0 {
			return nil
		}
		s := fmt.Sprintf("Dropped at round %d", round)
		return &s
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return nil
		}
		s := "Dropped: " + text
		return &s
	}
	return nil
}
