package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Run one deduplication pass over active schools",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.newDedupeEngine().Run(ctx)
		if err != nil {
			return err
		}

		return json.NewEncoder(os.Stdout).Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
}
