// Package transcript owns the per-meeting transcript lifecycle: the live
// captioning state machine, the post-session fetch state machine, the
// append-only live message log, and resolution of provider descriptors to
// meetings. All transcript state is mutated exclusively through the command
// methods on Aggregate.
package transcript

import (
	"time"

	"github.com/wealthpath/meetscribe/pkg/captions"
	mserrors "github.com/wealthpath/meetscribe/pkg/errors"
)

// Status is the lifecycle state of the live captioning session.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// FetchStatus is the lifecycle state of post-session content retrieval.
type FetchStatus string

const (
	FetchPending   FetchStatus = "pending"
	FetchFetching  FetchStatus = "fetching"
	FetchCompleted FetchStatus = "completed"
	FetchFailed    FetchStatus = "failed"
)

// Provider status vocabulary for descriptors.
const (
	ProviderStatusFinished   = "finished"
	ProviderStatusProcessing = "processing"
	ProviderStatusError      = "error"
	ProviderStatusExpired    = "expired"
)

// providerStatusTable maps the provider's status vocabulary to the internal
// transcript status.
var providerStatusTable = map[string]Status{
	ProviderStatusFinished:   StatusCompleted,
	ProviderStatusProcessing: StatusActive,
	ProviderStatusError:      StatusError,
	ProviderStatusExpired:    StatusError,
}

// Descriptor is the conferencing provider's representation of a transcript,
// used to locate and update the matching internal meeting.
type Descriptor struct {
	TranscriptID     string `json:"transcript_id"`
	RoomID           string `json:"room_id"`
	RoomName         string `json:"room_name"`
	SessionID        string `json:"session_id"`
	Status           string `json:"status"`
	CaptionAvailable bool   `json:"caption_available"`
	DomainID         string `json:"domain_id"`
}

// Validate rejects descriptors that cannot be applied: unknown provider
// status, or no identifying key at all.
func (d Descriptor) Validate() error {
	if _, ok := providerStatusTable[d.Status]; !ok {
		return mserrors.ErrValidation
	}
	if d.TranscriptID == "" && d.SessionID == "" && d.RoomID == "" && d.RoomName == "" {
		return mserrors.ErrValidation
	}
	return nil
}

// StartConfig carries the session parameters recorded when live
// transcription starts.
type StartConfig struct {
	SessionInstanceID string
	Language          string
	Model             string
}

// LiveMessage is one streamed caption fragment, partial or final.
type LiveMessage struct {
	SpeakerID   string    `json:"speaker_id"`
	SpeakerName string    `json:"speaker_name"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	IsFinal     bool      `json:"is_final"`
	Confidence  float64   `json:"confidence"`
}

// SpeakerStats accumulates per-speaker counters derived from the live
// message log.
type SpeakerStats struct {
	MessageCount             int     `json:"message_count"`
	EstimatedSpeakingSeconds float64 `json:"estimated_speaking_seconds"`
}

// ParsedTranscript is the structure derived from fetched caption content.
type ParsedTranscript struct {
	Speakers []*captions.Speaker `json:"speakers"`
	FullText string              `json:"full_text"`
	Summary  string              `json:"summary"`
}

// Record is a read-only snapshot of an Aggregate, used for queries and
// persistence. Mutating a Record has no effect on the aggregate.
type Record struct {
	MeetingID            string            `json:"meeting_id"`
	Status               Status            `json:"status"`
	FetchStatus          FetchStatus       `json:"fetch_status"`
	ExternalTranscriptID string            `json:"external_transcript_id,omitempty"`
	ExternalSessionID    string            `json:"external_session_id,omitempty"`
	ExternalDomainID     string            `json:"external_domain_id,omitempty"`
	Content              string            `json:"content,omitempty"`
	Parsed               *ParsedTranscript `json:"parsed,omitempty"`
	LiveMessages         []LiveMessage     `json:"live_messages,omitempty"`
	FetchAttempts        int               `json:"fetch_attempts"`
	LastFetchError       string            `json:"last_fetch_error,omitempty"`
	LastParseError       string            `json:"last_parse_error,omitempty"`
	DownloadURL          string            `json:"download_url,omitempty"`
	DownloadExpiresAt    time.Time         `json:"download_expires_at,omitempty"`
	StartedAt            time.Time         `json:"started_at,omitempty"`
	StoppedAt            time.Time         `json:"stopped_at,omitempty"`
	StoppedBy            string            `json:"stopped_by,omitempty"`
	LastFetchAt          time.Time         `json:"last_fetch_at,omitempty"`
	Language             string            `json:"language,omitempty"`
	Model                string            `json:"model,omitempty"`
	Version              int64             `json:"version"`
}

// Meeting is the owning record for a transcript aggregate. Only the fields
// the transcript engine needs are represented here; the rest of the meeting
// document lives with the calling application.
type Meeting struct {
	ID         string
	RoomID     string
	RoomName   string
	SessionID  string
	Transcript *Aggregate
}

// StatusCounts groups meetings by transcript status and fetch status.
type StatusCounts struct {
	Total         int                 `json:"total"`
	ByStatus      map[Status]int      `json:"by_status"`
	ByFetchStatus map[FetchStatus]int `json:"by_fetch_status"`
}
