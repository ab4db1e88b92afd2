package main

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/resilience"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Manage the crawl queue",
}

var crawlEnqueueCmd = &cobra.Command{
	Use:   "enqueue <school-id>",
	Short: "Enqueue a school for crawling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		sc, err := e.Schools.GetByID(ctx, args[0])
		if err != nil {
			return err
		}
		if sc == nil || sc.Tombstoned() {
			return resilience.NewNotFoundError("school", args[0])
		}
		if sc.Domain == "" {
			return eris.Errorf("school %s has no resolved domain", args[0])
		}

		entry, created, err := e.Queue.Enqueue(ctx, sc.ID, sc.Domain, time.Now().UTC())
		if err != nil {
			return err
		}

		zap.L().Info("enqueued",
			zap.Int64("entry_id", entry.ID),
			zap.String("school_id", sc.ID),
			zap.Bool("created", created),
		)
		return nil
	},
}

var crawlRunLimit int

var crawlRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Claim and process a batch of pending crawl work",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.newCrawlWorker().RunBatch(ctx, crawlRunLimit)
		if err != nil {
			return err
		}

		return json.NewEncoder(os.Stdout).Encode(result)
	},
}

var crawlRetryLimit int

var crawlRetryCmd = &cobra.Command{
	Use:   "retry [entry-id]",
	Short: "Move failed queue entries back to pending",
	Long:  "With an entry id, retries that single failed entry. Without one, requeues up to --limit failed entries.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return eris.Wrap(err, "parse entry id")
			}
			entry, err := e.Queue.Retry(ctx, id)
			if err != nil {
				return err
			}
			zap.L().Info("entry requeued",
				zap.Int64("entry_id", entry.ID),
				zap.Int("attempts", entry.Attempts),
			)
			return nil
		}

		n, err := e.Queue.RetryFailed(ctx, crawlRetryLimit)
		if err != nil {
			return err
		}

		zap.L().Info("retry complete", zap.Int64("requeued", n))
		return nil
	},
}

var crawlStatusCmd = &cobra.Command{
	Use:   "status <school-id>",
	Short: "Show a school's queue activity and latest snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		active, err := e.Queue.HasActive(ctx, args[0])
		if err != nil {
			return err
		}
		snap, err := e.Snapshots.LatestForSchool(ctx, args[0])
		if err != nil {
			return err
		}

		status := map[string]any{
			"school_id":    args[0],
			"queue_active": active,
		}
		if snap != nil {
			status["snapshot_as_of"] = snap.AsOf
			status["snapshot_domain"] = snap.Domain
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	},
}

func init() {
	crawlRunCmd.Flags().IntVar(&crawlRunLimit, "limit", 20, "max queue entries to claim")
	crawlRetryCmd.Flags().IntVar(&crawlRetryLimit, "limit", 100, "max failed entries to requeue")
	crawlCmd.AddCommand(crawlEnqueueCmd, crawlRunCmd, crawlRetryCmd, crawlStatusCmd)
	rootCmd.AddCommand(crawlCmd)
}
