package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/quota"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Manage the seed backlog",
}

var seedImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Bulk-import seed candidates from a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		seeds, err := readSeedCSV(args[0])
		if err != nil {
			return err
		}
		if len(seeds) == 0 {
			zap.L().Info("no seeds in file")
			return nil
		}

		guard := quota.NewGuard(e.Seeds, cfg.Quota.DiscoveryPerMinute, cfg.Quota.ImportsPerDay, cfg.Quota.FailOpen)
		if !guard.Allow(ctx, len(seeds)) {
			return eris.Errorf("import of %d seeds exceeds the discovery quota, try again later", len(seeds))
		}

		created, err := e.Seeds.BulkImport(ctx, seeds)
		if err != nil {
			return err
		}

		zap.L().Info("seed import complete",
			zap.Int("rows", len(seeds)),
			zap.Int64("created", created),
			zap.Int64("duplicates", int64(len(seeds))-created),
		)
		return nil
	},
}

var seedResolveLimit int

var seedResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run one domain resolution pass over the unresolved backlog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.newSeedBatch().Run(ctx, seedResolveLimit)
		if err != nil {
			return err
		}

		return json.NewEncoder(os.Stdout).Encode(result)
	},
}

// readSeedCSV parses rows of name,city,state,country,phone. A header row is
// detected by its first cell and skipped.
func readSeedCSV(path string) ([]model.SeedCandidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open seed file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var seeds []model.SeedCandidate
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read seed file")
		}
		if len(rec) == 0 || strings.EqualFold(strings.TrimSpace(rec[0]), "name") {
			continue
		}

		sd := model.SeedCandidate{Name: strings.TrimSpace(rec[0])}
		if sd.Name == "" {
			continue
		}
		if len(rec) > 1 {
			sd.City = strings.TrimSpace(rec[1])
		}
		if len(rec) > 2 {
			sd.State = strings.TrimSpace(rec[2])
		}
		if len(rec) > 3 {
			sd.Country = strings.TrimSpace(rec[3])
		}
		if len(rec) > 4 {
			sd.Phone = strings.TrimSpace(rec[4])
		}
		seeds = append(seeds, sd)
	}
	return seeds, nil
}

func init() {
	seedResolveCmd.Flags().IntVar(&seedResolveLimit, "limit", 50, "max seeds to resolve in this pass")
	seedCmd.AddCommand(seedImportCmd, seedResolveCmd)
	rootCmd.AddCommand(seedCmd)
}
