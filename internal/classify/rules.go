package classify

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// DefaultRules loads the embedded rule table, preserving document order.
func DefaultRules() ([]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(rulesYAML, &rules); err != nil {
		return nil, fmt.Errorf("parse rules.yaml: %w", err)
	}
	for i, r := range rules {
		if r.Archetype == "" || len(r.Cards) == 0 || r.MinMatches < 1 {
			return nil, fmt.Errorf("rules.yaml entry %d is invalid: %+v", i, r)
		}
	}
	return rules, nil
}

// NewDefaultClassifier builds a classifier over the embedded rule table.
func NewDefaultClassifier() (*Classifier, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return NewClassifier(rules), nil
}
