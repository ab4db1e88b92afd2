package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Inspect and moderate the fact store",
}

var factsCurrentCmd = &cobra.Command{
	Use:   "current <school-id>",
	Short: "Print the current approved facts for a school",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		current, err := e.Facts.Current(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(current)
	},
}

var factsHistoryCmd = &cobra.Command{
	Use:   "history <school-id> <fact-key>",
	Short: "Print every version of one fact, newest first, all statuses",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		history, err := e.Facts.History(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	},
}

var (
	moderateFactKey  string
	moderateAsOf     string
	moderateDecision string
)

var factsModerateCmd = &cobra.Command{
	Use:   "moderate <school-id>",
	Short: "Approve or reject a pending fact version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		asOf, err := time.Parse(time.RFC3339, moderateAsOf)
		if err != nil {
			return eris.Wrap(err, "parse --as-of")
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		decision := model.ModerationStatus(moderateDecision)
		if err := e.Facts.Moderate(ctx, args[0], moderateFactKey, asOf, decision); err != nil {
			return err
		}

		zap.L().Info("fact moderated",
			zap.String("school_id", args[0]),
			zap.String("fact_key", moderateFactKey),
			zap.String("decision", moderateDecision),
		)
		return nil
	},
}

func init() {
	factsModerateCmd.Flags().StringVar(&moderateFactKey, "key", "", "fact key")
	factsModerateCmd.Flags().StringVar(&moderateAsOf, "as-of", "", "fact version timestamp (RFC 3339)")
	factsModerateCmd.Flags().StringVar(&moderateDecision, "decision", "", "APPROVED or REJECTED")
	_ = factsModerateCmd.MarkFlagRequired("key")
	_ = factsModerateCmd.MarkFlagRequired("as-of")
	_ = factsModerateCmd.MarkFlagRequired("decision")

	factsCmd.AddCommand(factsCurrentCmd, factsHistoryCmd, factsModerateCmd)
	rootCmd.AddCommand(factsCmd)
}
