package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lopezmichael/digimon-tcg-standings/internal/model"
)

// ResultSource is the slice of the store the backfill pass needs.
type ResultSource interface {
	UnclassifiedResults(ctx context.Context) ([]model.UnclassifiedResult, error)
	ArchetypesByName(ctx context.Context) (map[string]int64, error)
	SetResultArchetype(ctx context.Context, resultID, archetypeID int64) error
}

// BackfillStats tracks counts and errors from a backfill pass.
type BackfillStats struct {
	Scanned     int
	Classified  int
	Updated     int
	ByArchetype map[string]int
	Errors      []string
}

// AddErrorf records a formatted error message.
func (s *BackfillStats) AddErrorf(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the backfill pass.
func (s *BackfillStats) Summary() string {
	return fmt.Sprintf("scanned=%d classified=%d updated=%d errors=%d",
		s.Scanned, s.Classified, s.Updated, len(s.Errors))
}

// Backfill reclassifies stored results stuck on the Unknown catch-all using
// their decklist payloads. Pure read-modify-write over the store; in dry-run
// mode nothing is written.
func Backfill(ctx context.Context, src ResultSource, classifier *Classifier, dryRun bool, logger *slog.Logger) (BackfillStats, error) {
	stats := BackfillStats{ByArchetype: make(map[string]int)}

	archetypes, err := src.ArchetypesByName(ctx)
	if err != nil {
		return stats, fmt.Errorf("load archetype catalog: %w", err)
	}

	results, err := src.UnclassifiedResults(ctx)
	if err != nil {
		return stats, fmt.Errorf("load unclassified results: %w", err)
	}
	stats.Scanned = len(results)
	logger.Info("classifier backfill scan", "unclassified", len(results), "dry_run", dryRun)

	for _, r := range results {
		name, ok := classifier.ClassifyJSON(r.DecklistJSON)
		if !ok {
			continue
		}
		stats.Classified++
		stats.ByArchetype[name]++

		archetypeID, ok := archetypes[name]
		if !ok {
			stats.AddErrorf("archetype %q not in catalog (result %d)", name, r.ResultID)
			continue
		}
		if dryRun {
			continue
		}
		if err := src.SetResultArchetype(ctx, r.ResultID, archetypeID); err != nil {
			stats.AddErrorf("update result %d: %v", r.ResultID, err)
			continue
		}
		stats.Updated++
	}

	for _, name := range sortedKeys(stats.ByArchetype) {
		logger.Info("backfill classification", "archetype", name, "count", stats.ByArchetype[name])
	}
	logger.Info("classifier backfill done", "summary", stats.Summary())
	return stats, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
