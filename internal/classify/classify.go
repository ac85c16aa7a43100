// Package classify assigns deck archetypes to decklists using an ordered
// table of signature-card rules.
package classify

import (
	"encoding/json"
	"strings"
)

// Rule matches an archetype when at least MinMatches of its card patterns
// occur in the decklist (case-insensitive substring containment).
type Rule struct {
	Archetype  string   `yaml:"archetype"`
	Cards      []string `yaml:"cards"`
	MinMatches int      `yaml:"min_matches"`
}

// Card is one decklist entry.
type Card struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Decklist is the card payload attached to a standing, split by category.
type Decklist struct {
	Digimon []Card `json:"digimon"`
	Tamer   []Card `json:"tamer"`
	Option  []Card `json:"option"`
	Egg     []Card `json:"digi-egg"`
}

// Classifier evaluates the rule table in order. Table order is a contract:
// the first rule whose minimum is met wins and evaluation stops, so a later
// rule never overrides an earlier one that already matched.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over the given ordered rules.
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Rules returns the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify maps a decklist to an archetype name. The second return value is
// false when no rule matches.
func (c *Classifier) Classify(list Decklist) (string, bool) {
	blob := cardBlob(list)
	if blob == "" {
		return "", false
	}

	for _, rule := range c.rules {
		matches := 0
		for _, card := range rule.Cards {
			if strings.Contains(blob, strings.ToLower(card)) {
				matches++
			}
		}
		if matches >= rule.MinMatches {
			return rule.Archetype, true
		}
	}
	return "", false
}

// ClassifyJSON decodes a stored decklist payload and classifies it.
// Malformed payloads classify as nothing.
func (c *Classifier) ClassifyJSON(payload []byte) (string, bool) {
	var list Decklist
	if err := json.Unmarshal(payload, &list); err != nil {
		return "", false
	}
	return c.Classify(list)
}

// cardBlob flattens a decklist into a lowercase text blob, repeating each
// card name by its copy count. The repetition weights nothing today — the
// rule test is substring presence — but it is kept to match the observed
// behavior of the curation tooling this table was tuned against.
func cardBlob(list Decklist) string {
	var names []string
	for _, category := range [][]Card{list.Digimon, list.Tamer, list.Option, list.Egg} {
		for _, card := range category {
			count := card.Count
			if count < 1 {
				count = 1
			}
			for i := 0; i < count; i++ {
				names = append(names, card.Name)
			}
		}
	}
	if len(names) == 0 {
		return ""
	}
	return strings.ToLower(strings.Join(names, " "))
}
