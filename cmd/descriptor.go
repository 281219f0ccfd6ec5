package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	mserrors "github.com/wealthpath/meetscribe/pkg/errors"
	"github.com/wealthpath/meetscribe/pkg/fetch"
	"github.com/wealthpath/meetscribe/pkg/logging"
	"github.com/wealthpath/meetscribe/pkg/storage"
	"github.com/wealthpath/meetscribe/pkg/transcript"
)

var descriptorCmd = &cobra.Command{
	Use:   "descriptor [file]",
	Short: "Apply provider transcript descriptors to their meetings",
	Long: `Descriptor reads transcript descriptor JSON (from the file argument or
stdin), resolves each descriptor to its meeting, applies the provider
status, and fetches the content immediately when the transcript is
finished with captions available.

The input may be a single descriptor object or an array of them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDescriptor,
}

func init() {
	rootCmd.AddCommand(descriptorCmd)
}

type descriptorOutcome struct {
	TranscriptID string `json:"transcript_id,omitempty" yaml:"transcript_id,omitempty"`
	SessionID    string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	MeetingID    string `json:"meeting_id,omitempty" yaml:"meeting_id,omitempty"`
	Status       string `json:"status,omitempty" yaml:"status,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runDescriptor(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	descriptors, err := decodeDescriptors(in)
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		return fmt.Errorf("no descriptors in input")
	}

	ctx := cmd.Context()
	repo, closeDB, err := connectRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	registry := transcript.NewRegistry()
	index := storage.NewIndex(ctx, repo, logger)
	resolver := transcript.NewMatcher(index, logger)
	mgr := fetch.NewManager(registry, newProvider(), newPublisher(), newMetrics(), logger, fetchManagerConfig())

	var outcomes []descriptorOutcome
	failed := 0
	for _, d := range descriptors {
		outcome := descriptorOutcome{TranscriptID: d.TranscriptID, SessionID: d.SessionID}

		meeting, procErr := applyOneDescriptor(ctx, repo, registry, resolver, mgr, d)
		if procErr != nil {
			outcome.Error = procErr.Error()
			failed++
		}
		if meeting != nil {
			outcome.MeetingID = meeting.ID
			outcome.Status = string(meeting.Transcript.Status())
		}
		outcomes = append(outcomes, outcome)
	}

	if err := printResult(outcomes, func() string {
		return fmt.Sprintf("Processed %d descriptors, %d failed", len(outcomes), failed)
	}); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d descriptors failed", failed, len(outcomes))
	}
	return nil
}

// applyOneDescriptor resolves a descriptor against the database, loads the
// matched meeting into the registry, processes it, and persists the result.
func applyOneDescriptor(
	ctx context.Context,
	repo *storage.Repository,
	registry *transcript.Registry,
	resolver *transcript.Matcher,
	mgr *fetch.Manager,
	d transcript.Descriptor,
) (*transcript.Meeting, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	res, err := resolver.Match(d)
	if err != nil {
		// Run the unresolved path through the manager so the miss is
		// still counted and published.
		if errors.Is(err, mserrors.ErrUnresolved) {
			_ = mgr.ProcessDescriptor(ctx, d)
		}
		return nil, err
	}

	meeting := res.Meeting
	if existing := registry.Get(meeting.ID); existing != nil {
		meeting = existing
	} else {
		registry.Add(meeting)
	}
	loadedVersion := meeting.Transcript.Snapshot().Version

	procErr := mgr.ProcessDescriptor(ctx, d)

	rec := meeting.Transcript.Snapshot()
	if rec.Version != loadedVersion {
		if err := repo.SaveSnapshot(ctx, rec); err != nil {
			logger.Warn("Failed to persist meeting after descriptor",
				logging.F("meeting_id", meeting.ID), logging.Err(err))
			if procErr == nil {
				procErr = err
			}
		}
	}
	return meeting, procErr
}

// decodeDescriptors reads a single descriptor object or an array.
func decodeDescriptors(in io.Reader) ([]transcript.Descriptor, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var list []transcript.Descriptor
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var single transcript.Descriptor
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("input is not a descriptor or descriptor array: %w", err)
	}
	return []transcript.Descriptor{single}, nil
}
