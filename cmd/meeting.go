package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wealthpath/meetscribe/pkg/transcript"
)

var (
	meetingID       string
	meetingRoomID   string
	meetingRoomName string
	meetingSession  string

	startSession  string
	startLanguage string
	startModel    string

	stopActor string
)

var meetingCmd = &cobra.Command{
	Use:   "meeting",
	Short: "Manage meetings and their transcription sessions",
}

var meetingCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a meeting in the transcript store",
	RunE:  runMeetingCreate,
}

var meetingStartCmd = &cobra.Command{
	Use:   "start <meeting-id>",
	Short: "Start a transcription session for a meeting",
	Args:  cobra.ExactArgs(1),
	RunE:  runMeetingStart,
}

var meetingStopCmd = &cobra.Command{
	Use:   "stop <meeting-id>",
	Short: "Stop a meeting's transcription session",
	Args:  cobra.ExactArgs(1),
	RunE:  runMeetingStop,
}

var meetingTranscriptCmd = &cobra.Command{
	Use:   "transcript <meeting-id>",
	Short: "Print the transcript compiled from final live messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runMeetingTranscript,
}

func init() {
	meetingCreateCmd.Flags().StringVar(&meetingID, "id", "", "meeting id (generated when empty)")
	meetingCreateCmd.Flags().StringVar(&meetingRoomID, "room-id", "", "conference room id")
	meetingCreateCmd.Flags().StringVar(&meetingRoomName, "room-name", "", "conference room name")
	meetingCreateCmd.Flags().StringVar(&meetingSession, "session-id", "", "provider session id")

	meetingStartCmd.Flags().StringVar(&startSession, "session-id", "", "provider session instance id")
	meetingStartCmd.Flags().StringVar(&startLanguage, "language", "", "transcription language")
	meetingStartCmd.Flags().StringVar(&startModel, "model", "", "transcription model")

	meetingStopCmd.Flags().StringVar(&stopActor, "by", "", "who stopped the session")

	meetingCmd.AddCommand(meetingCreateCmd)
	meetingCmd.AddCommand(meetingStartCmd)
	meetingCmd.AddCommand(meetingStopCmd)
	meetingCmd.AddCommand(meetingTranscriptCmd)
	rootCmd.AddCommand(meetingCmd)
}

func runMeetingCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repo, closeDB, err := connectRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	meeting := transcript.NewRegistry().Create(meetingID, meetingRoomID, meetingRoomName, meetingSession)
	if err := repo.CreateMeeting(ctx, cfg.TenantID, meeting); err != nil {
		return err
	}

	return printResult(meeting.Transcript.Snapshot(), func() string {
		return fmt.Sprintf("Created meeting %s", meeting.ID)
	})
}

func runMeetingStart(cmd *cobra.Command, args []string) error {
	return withMeeting(cmd, args[0], func(m *transcript.Meeting) error {
		return m.Transcript.StartTranscription(transcript.StartConfig{
			SessionInstanceID: startSession,
			Language:          startLanguage,
			Model:             startModel,
		})
	}, func(m *transcript.Meeting) string {
		return fmt.Sprintf("Transcription started for meeting %s", m.ID)
	})
}

func runMeetingStop(cmd *cobra.Command, args []string) error {
	return withMeeting(cmd, args[0], func(m *transcript.Meeting) error {
		m.Transcript.StopTranscription(stopActor)
		return nil
	}, func(m *transcript.Meeting) string {
		return fmt.Sprintf("Transcription stopped for meeting %s", m.ID)
	})
}

func runMeetingTranscript(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repo, closeDB, err := connectRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	meeting, err := repo.GetMeeting(ctx, args[0])
	if err != nil {
		return err
	}

	compiled := meeting.Transcript.FinalTranscript()
	out := struct {
		MeetingID  string `json:"meeting_id" yaml:"meeting_id"`
		Transcript string `json:"transcript" yaml:"transcript"`
	}{MeetingID: meeting.ID, Transcript: compiled}

	return printResult(out, func() string {
		if compiled == "" {
			return fmt.Sprintf("No final live messages recorded for meeting %s", meeting.ID)
		}
		return compiled
	})
}

// withMeeting loads a meeting, applies a command to its aggregate, and
// persists the new snapshot.
func withMeeting(cmd *cobra.Command, meetingID string, apply func(*transcript.Meeting) error, text func(*transcript.Meeting) string) error {
	ctx := cmd.Context()
	repo, closeDB, err := connectRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	meeting, err := repo.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}

	if err := apply(meeting); err != nil {
		return err
	}
	if err := repo.SaveSnapshot(ctx, meeting.Transcript.Snapshot()); err != nil {
		return err
	}

	return printResult(meeting.Transcript.Snapshot(), func() string { return text(meeting) })
}
