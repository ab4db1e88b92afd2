package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var refreshLimit int

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Enqueue crawls for schools with stale approved facts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.newRefreshScheduler().Run(ctx, refreshLimit)
		if err != nil {
			return err
		}

		return json.NewEncoder(os.Stdout).Encode(result)
	},
}

func init() {
	refreshCmd.Flags().IntVar(&refreshLimit, "limit", 100, "max stale schools to enqueue")
	rootCmd.AddCommand(refreshCmd)
}
