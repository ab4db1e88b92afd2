package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		// Order matters: schools first, everything else references them.
		steps := []struct {
			name string
			fn   func(context.Context) error
		}{
			{"schools", e.Schools.Migrate},
			{"seeds", e.Seeds.Migrate},
			{"crawl", e.Queue.Migrate},
			{"facts", e.Facts.Migrate},
			{"claims", e.Claims.Migrate},
			{"dedupe", e.Dedupe.Migrate},
		}
		for _, step := range steps {
			if err := step.fn(ctx); err != nil {
				return err
			}
			zap.L().Info("migration applied", zap.String("store", step.name))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
