// Command ingest is the Digimon TCG standings ingestion CLI.
//
// Usage:
//
//	dcg-ingest sync --since 2025-01-01
//	dcg-ingest sync --organizer 452 --since 2025-01-01 --dry-run
//	dcg-ingest repair
//	dcg-ingest repair --decks --organizer 452
//	dcg-ingest classify --dry-run
//	dcg-ingest reset --organizer 452 --confirm
//	dcg-ingest reset --all --confirm
//	dcg-ingest discover
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lopezmichael/digimon-tcg-standings/internal/classify"
	"github.com/lopezmichael/digimon-tcg-standings/internal/config"
	"github.com/lopezmichael/digimon-tcg-standings/internal/db"
	"github.com/lopezmichael/digimon-tcg-standings/internal/discover"
	"github.com/lopezmichael/digimon-tcg-standings/internal/limitless"
	"github.com/lopezmichael/digimon-tcg-standings/internal/store"
	"github.com/lopezmichael/digimon-tcg-standings/internal/sync"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "dcg-ingest",
		Short: "Digimon TCG tournament data ingestion CLI",
	}

	root.AddCommand(syncCmd())
	root.AddCommand(repairCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(resetCmd())
	root.AddCommand(discoverCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// sync command
// --------------------------------------------------------------------------

func syncCmd() *cobra.Command {
	var (
		organizer string
		since     string
		dryRun    bool
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync tournaments from Limitless for tier-1 organizers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if since == "" {
				return fmt.Errorf("--since is required (YYYY-MM-DD)")
			}
			if _, err := time.Parse("2006-01-02", since); err != nil {
				return fmt.Errorf("invalid --since date %q: %w", since, err)
			}
			return runIngest(func(ctx context.Context, cfg *config.Config, st *store.DB, client *limitless.Client) error {
				syncer := sync.NewSyncer(st, client, uuid.NewString(), logger)
				syncer.DryRun = dryRun
				syncer.Limit = limit
				syncer.MinPlayers = cfg.MinPlayers

				organizers := config.Tier1OrganizerIDs()
				if organizer != "" {
					organizers = []string{organizer}
				}

				start := time.Now()
				total := sync.Stats{}
				for _, orgID := range organizers {
					stats, err := syncer.SyncOrganizer(ctx, orgID, since)
					total.Add(stats)
					if err != nil {
						logger.Error("organizer sync aborted", "organizer_id", orgID, "error", err)
					}
				}
				logger.Info("sync finished",
					"duration", time.Since(start).Round(time.Second), "summary", total.Summary())
				for _, e := range total.Errors {
					logger.Error("sync error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&organizer, "organizer", "", "Limitless organizer ID; empty = all tier-1 organizers")
	cmd.Flags().StringVar(&since, "since", "", "Only sync tournaments on or after this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview counts without writing")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum tournaments per organizer (0 = no limit)")
	return cmd
}

// --------------------------------------------------------------------------
// repair command
// --------------------------------------------------------------------------

func repairCmd() *cobra.Command {
	var (
		organizer string
		decks     bool
	)
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Complete half-ingested tournaments (or fill missing deck data with --decks)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(func(ctx context.Context, cfg *config.Config, st *store.DB, client *limitless.Client) error {
				repairer := sync.NewRepairer(st, client, uuid.NewString(), logger)
				start := time.Now()

				var (
					stats sync.RepairStats
					err   error
				)
				if decks {
					stats, err = repairer.RepairDecks(ctx, organizer)
				} else {
					stats, err = repairer.Run(ctx, organizer)
				}
				if err != nil {
					return err
				}
				logger.Info("repair finished",
					"duration", time.Since(start).Round(time.Second), "summary", stats.Summary())
				for _, e := range stats.Errors {
					logger.Error("repair error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&organizer, "organizer", "", "Limit repair to one organizer's store; empty = all stores")
	cmd.Flags().BoolVar(&decks, "decks", false, "Fill missing archetypes on stored results instead of missing rows")
	return cmd
}

// --------------------------------------------------------------------------
// classify command
// --------------------------------------------------------------------------

func classifyCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify stored decklists still bucketed as Unknown",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(func(ctx context.Context, cfg *config.Config, st *store.DB, client *limitless.Client) error {
				classifier, err := classify.NewDefaultClassifier()
				if err != nil {
					return fmt.Errorf("load rules: %w", err)
				}
				start := time.Now()
				stats, err := classify.Backfill(ctx, st, classifier, dryRun, logger)
				if err != nil {
					return err
				}
				logger.Info("classify finished",
					"duration", time.Since(start).Round(time.Second), "summary", stats.Summary())
				for _, e := range stats.Errors {
					logger.Error("classify error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	return cmd
}

// --------------------------------------------------------------------------
// reset command
// --------------------------------------------------------------------------

func resetCmd() *cobra.Command {
	var (
		organizers []string
		all        bool
		confirm    bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete ingested tournament data (curated tables are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(organizers) == 0 {
				return fmt.Errorf("pass --organizer at least once, or --all")
			}
			if all && len(organizers) > 0 {
				return fmt.Errorf("--all and --organizer are mutually exclusive")
			}
			if !confirm {
				return fmt.Errorf("reset deletes data permanently; re-run with --confirm")
			}
			return runIngest(func(ctx context.Context, cfg *config.Config, st *store.DB, client *limitless.Client) error {
				start := time.Now()
				stats, err := sync.Reset(ctx, st, organizers, logger)
				if err != nil {
					return err
				}
				logger.Info("reset finished",
					"duration", time.Since(start).Round(time.Second), "summary", stats.Summary())
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&organizers, "organizer", nil, "Organizer whose store's data to reset (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "Reset every store's ingested data, players included")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Actually perform the deletes")
	return cmd
}

// --------------------------------------------------------------------------
// discover command
// --------------------------------------------------------------------------

func discoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan recent tournaments for organizers worth adding",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(func(ctx context.Context, cfg *config.Config, st *store.DB, client *limitless.Client) error {
				start := time.Now()
				candidates := discover.Scan(ctx, client, config.Tier1OrganizerIDs(), logger)
				for _, c := range candidates {
					logger.Info("candidate organizer",
						"organizer_id", c.OrganizerID,
						"tournaments", c.TournamentCount,
						"total_players", c.TotalPlayers,
						"latest", c.LatestDate,
						"sample", c.SampleName,
						"deck_coverage", fmt.Sprintf("%.0f%%", 100*c.DeckCoverage()))
				}
				logger.Info("discover finished",
					"duration", time.Since(start).Round(time.Second), "candidates", len(candidates))
				return nil
			})
		},
	}
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runIngest handles config loading, DB connection, API client setup, and
// context cancellation.
func runIngest(fn func(ctx context.Context, cfg *config.Config, st *store.DB, client *limitless.Client) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	st := store.New(pool)
	client := limitless.New(cfg.LimitlessBaseURL, cfg.UserAgent, cfg.RequestDelay, logger)
	return fn(ctx, cfg, st, client)
}
