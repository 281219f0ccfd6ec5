package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wealthpath/meetscribe/pkg/fetch"
	"github.com/wealthpath/meetscribe/pkg/logging"
	"github.com/wealthpath/meetscribe/pkg/storage"
	"github.com/wealthpath/meetscribe/pkg/transcript"
)

var sweepLimit int

// timeRound trims sweep durations for display.
const timeRound = 10 * time.Millisecond

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fetch content for all completed meetings still pending",
	Long: `Sweep finds completed meetings whose transcript content has not been
fetched yet and downloads it, a few meetings at a time. Failures are
recorded per meeting and do not stop the sweep.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd.Context(), false)
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry failed transcript fetches that still have budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd.Context(), true)
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepLimit, "limit", 100, "maximum meetings per sweep")
	retryCmd.Flags().IntVar(&sweepLimit, "limit", 100, "maximum meetings per sweep")
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(retryCmd)
}

func runSweep(ctx context.Context, retryOnly bool) error {
	repo, closeDB, err := connectRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	var candidates []storage.FetchCandidate
	if retryOnly {
		candidates, err = repo.ListRetryCandidates(ctx, cfg.Fetch.MaxAttempts, sweepLimit)
	} else {
		candidates, err = repo.ListFetchCandidates(ctx, sweepLimit)
	}
	if err != nil {
		return err
	}

	registry := transcript.NewRegistry()
	loadedVersion := make(map[string]int64)
	for _, c := range candidates {
		meeting, err := repo.GetMeeting(ctx, c.MeetingID)
		if err != nil {
			logger.Warn("Skipping meeting that failed to load",
				logging.Err(err),
				logging.F("meeting_id", c.MeetingID))
			continue
		}
		registry.Add(meeting)
		loadedVersion[meeting.ID] = meeting.Transcript.Snapshot().Version
	}

	mgr := fetch.NewManager(registry, newProvider(), newPublisher(), newMetrics(), logger, fetchManagerConfig())

	var result fetch.SweepResult
	if retryOnly {
		result, err = mgr.RetrySweep(ctx)
	} else {
		result, err = mgr.Sweep(ctx)
	}

	// persist whatever state was reached, even on early abort
	for _, meeting := range registry.List() {
		rec := meeting.Transcript.Snapshot()
		if rec.Version == loadedVersion[meeting.ID] {
			continue
		}
		if saveErr := repo.SaveSnapshot(ctx, rec); saveErr != nil {
			logger.Warn("Failed to persist meeting state",
				logging.Err(saveErr),
				logging.F("meeting_id", meeting.ID))
		}
	}
	if err != nil {
		return err
	}

	return printResult(result, func() string {
		return fmt.Sprintf("Sweep complete: %d eligible, %d fetched, %d failed, %d skipped in %s",
			result.Eligible, result.Fetched, result.Failed, result.Skipped, result.Duration.Round(timeRound))
	})
}
