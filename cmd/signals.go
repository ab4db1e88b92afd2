package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/e-roy/find-a-flight-school-sub001/internal/signals"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Import third-party rating signals for active schools",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Places.Key == "" {
			return eris.New("places.key is required for signal import")
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		importer := signals.NewImporter(e.Schools, e.Facts, e.newPlacesClient())
		result, err := importer.Run(ctx)
		if err != nil {
			return err
		}

		return json.NewEncoder(os.Stdout).Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}
