package seed

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	firmsrepo "github.com/counselgrid/firm-directory/domains/firms/be/repo"
	firmsservice "github.com/counselgrid/firm-directory/domains/firms/be/service"
	firmsseed "github.com/counselgrid/firm-directory/domains/firms/be/seed"
	"github.com/counselgrid/firm-directory/platform/go/persistence"
)

const progressBatch = 50

// Command populates the directory with generated law firms. Records are
// written through the slug-keyed upsert, so re-running the command without
// --truncate converges instead of duplicating.
func Command() *cobra.Command {
	var (
		databaseURL string
		count       int
		randomSeed  int64
		truncate    bool
		bootstrap   bool
	)

	c := &cobra.Command{
		Use:   "seed",
		Short: "Populate the directory with generated law firms",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if count < 1 {
				return fmt.Errorf("count must be at least 1, got %d", count)
			}

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if bootstrap {
				if err := persistence.Bootstrap(ctx, pool); err != nil {
					return fmt.Errorf("apply schema: %w", err)
				}
			}

			store, err := persistence.NewLawFirmStore(pool)
			if err != nil {
				return fmt.Errorf("init law firm store: %w", err)
			}

			if truncate {
				if err := store.DeleteAllLawFirms(ctx); err != nil {
					return fmt.Errorf("clear law firms: %w", err)
				}
			}

			svc := firmsservice.New(firmsrepo.NewPostgresRepository(store))

			var rng *rand.Rand
			if cmd.Flags().Changed("seed") {
				rng = rand.New(rand.NewSource(randomSeed))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Start seeding...")

			firms := firmsseed.NewGenerator(rng).Firms(count)
			for i, firm := range firms {
				_, err := svc.UpsertBySlug(ctx, firmsservice.UpsertInput{
					Slug:     firm.Slug,
					Name:     firm.Name,
					Website:  firm.Website,
					IsActive: firm.Active,
					Metadata: firm.Metadata,
				})
				if err != nil {
					return fmt.Errorf("upsert law firm %q: %w", firm.Slug, err)
				}

				if (i+1)%progressBatch == 0 || i+1 == len(firms) {
					fmt.Fprintf(cmd.OutOrStdout(), "Created law firms %d to %d\n", (i/progressBatch)*progressBatch+1, i+1)
				}
			}

			total, err := store.CountLawFirms(ctx)
			if err != nil {
				return fmt.Errorf("count law firms: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Seeding finished. Directory holds %d law firms.\n", total)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().IntVar(&count, "count", firmsseed.DefaultCount, "Number of law firms to generate")
	c.Flags().Int64Var(&randomSeed, "seed", 0, "Random seed for deterministic output (default: time-based)")
	c.Flags().BoolVar(&truncate, "truncate", false, "Delete existing law firms before seeding")
	c.Flags().BoolVar(&bootstrap, "bootstrap", false, "Apply the database schema before seeding")
	_ = c.MarkFlagRequired("database-url")

	return c
}
