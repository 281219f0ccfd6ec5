package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wealthpath/meetscribe/pkg/fetch"
	"github.com/wealthpath/meetscribe/pkg/transcript"
)

var (
	fetchMeetingID    string
	fetchTranscriptID string
	fetchOutFile      string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch transcript content for one meeting",
	Long: `Fetch downloads finished transcript content from the conferencing
provider.

With --meeting-id the meeting is loaded from the database, fetched, and the
updated state saved back. With only --transcript-id the content is fetched
directly and written to stdout or --out without touching the database.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchMeetingID, "meeting-id", "", "meeting to fetch (requires database)")
	fetchCmd.Flags().StringVar(&fetchTranscriptID, "transcript-id", "", "provider transcript id")
	fetchCmd.Flags().StringVar(&fetchOutFile, "out", "", "write content to this file instead of stdout")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	if fetchMeetingID == "" && fetchTranscriptID == "" {
		return fmt.Errorf("either --meeting-id or --transcript-id is required")
	}

	ctx := cmd.Context()
	if fetchMeetingID != "" {
		return fetchStored(ctx, fetchMeetingID)
	}
	return fetchDirect(ctx, fetchTranscriptID)
}

// fetchStored loads the meeting from the database, fetches, and persists.
func fetchStored(ctx context.Context, meetingID string) error {
	repo, closeDB, err := connectRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	meeting, err := repo.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}

	registry := transcript.NewRegistry()
	registry.Add(meeting)
	loadedVersion := meeting.Transcript.Snapshot().Version

	mgr := fetch.NewManager(registry, newProvider(), newPublisher(), newMetrics(), logger, fetchManagerConfig())
	fetchErr := mgr.FetchOne(ctx, meeting)

	// persist the outcome, success or failure
	if rec := meeting.Transcript.Snapshot(); rec.Version != loadedVersion {
		if err := repo.SaveSnapshot(ctx, rec); err != nil {
			return err
		}
	}
	if fetchErr != nil {
		return fetchErr
	}

	rec := meeting.Transcript.Snapshot()
	return printResult(rec, func() string {
		speakers := 0
		if rec.Parsed != nil {
			speakers = len(rec.Parsed.Speakers)
		}
		return fmt.Sprintf("Fetched transcript for meeting %s: %d bytes, %d speakers (attempt %d)",
			meetingID, len(rec.Content), speakers, rec.FetchAttempts)
	})
}

// fetchDirect fetches by transcript id without a database.
func fetchDirect(ctx context.Context, transcriptID string) error {
	provider := newProvider()

	link, err := provider.AccessLink(ctx, transcriptID)
	if err != nil {
		return err
	}
	content, err := provider.Download(ctx, link.Link)
	if err != nil {
		return err
	}

	if fetchOutFile != "" {
		if err := os.WriteFile(fetchOutFile, []byte(content.Body), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", fetchOutFile, err)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(content.Body), fetchOutFile)
		return nil
	}

	_, err = os.Stdout.WriteString(content.Body)
	return err
}
