package transcript

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wealthpath/meetscribe/pkg/captions"
	mserrors "github.com/wealthpath/meetscribe/pkg/errors"
)

// summaryStubLimit bounds the placeholder summary derived from parsed
// content until real summarization runs downstream.
const summaryStubLimit = 200

// Aggregate owns all transcript state for one meeting. Its fields are
// private; the command methods below are the only mutation path. Every
// command takes the aggregate's mutex and bumps the version counter, so a
// live-ingestion write and a fetch-completion write for the same meeting
// cannot clobber each other.
type Aggregate struct {
	mu sync.Mutex

	meetingID   string
	status      Status
	fetchStatus FetchStatus

	externalTranscriptID string
	externalSessionID    string
	externalDomainID     string

	content           string
	parsed            *ParsedTranscript
	lastParseError    string
	downloadURL       string
	downloadExpiresAt time.Time

	live *liveLog

	fetchAttempts  int
	lastFetchError string
	lastFetchAt    time.Time

	startedAt time.Time
	stoppedAt time.Time
	stoppedBy string
	language  string
	model     string

	parser  *captions.Parser
	now     func() time.Time
	version int64
}

// NewAggregate creates a transcript aggregate for the given meeting in its
// initial state (status not_started, fetch pending).
func NewAggregate(meetingID string) *Aggregate {
	return &Aggregate{
		meetingID:   meetingID,
		status:      StatusNotStarted,
		fetchStatus: FetchPending,
		live:        newLiveLog(),
		parser:      captions.NewParser(),
		now:         time.Now,
	}
}

// Restore rebuilds an aggregate from a persisted Record. Live messages are
// replayed through the log so speaker statistics are rederived rather than
// trusted from storage.
func Restore(rec Record) *Aggregate {
	a := NewAggregate(rec.MeetingID)
	if rec.Status != "" {
		a.status = rec.Status
	}
	if rec.FetchStatus != "" {
		a.fetchStatus = rec.FetchStatus
	}
	a.externalTranscriptID = rec.ExternalTranscriptID
	a.externalSessionID = rec.ExternalSessionID
	a.externalDomainID = rec.ExternalDomainID
	a.content = rec.Content
	a.parsed = rec.Parsed
	a.lastParseError = rec.LastParseError
	a.downloadURL = rec.DownloadURL
	a.downloadExpiresAt = rec.DownloadExpiresAt
	a.fetchAttempts = rec.FetchAttempts
	a.lastFetchError = rec.LastFetchError
	a.lastFetchAt = rec.LastFetchAt
	a.startedAt = rec.StartedAt
	a.stoppedAt = rec.StoppedAt
	a.stoppedBy = rec.StoppedBy
	a.language = rec.Language
	a.model = rec.Model
	a.version = rec.Version
	for _, msg := range rec.LiveMessages {
		a.live.append(msg)
	}
	return a
}

// StartTranscription begins a live captioning session. Starting an already
// active session is rejected rather than silently restarted.
func (a *Aggregate) StartTranscription(cfg StartConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status == StatusActive {
		return fmt.Errorf("transcription already active for meeting %s: %w", a.meetingID, mserrors.ErrInvalidState)
	}

	a.status = StatusActive
	a.startedAt = a.now()
	if cfg.SessionInstanceID != "" {
		a.externalSessionID = cfg.SessionInstanceID
	}
	a.language = cfg.Language
	a.model = cfg.Model
	a.version++
	return nil
}

// StopTranscription ends the live captioning session, recording who (or
// what) stopped it.
func (a *Aggregate) StopTranscription(actor string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.status = StatusCompleted
	a.stoppedAt = a.now()
	a.stoppedBy = actor
	a.version++
}

// ApplyDescriptor maps the provider's status onto the internal status and
// merges any newly learned external identifiers. An already known external
// session id is never overwritten.
func (a *Aggregate) ApplyDescriptor(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("descriptor for meeting %s: %w", a.meetingID, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.status = providerStatusTable[d.Status]
	if a.externalTranscriptID == "" && d.TranscriptID != "" {
		a.externalTranscriptID = d.TranscriptID
	}
	if a.externalSessionID == "" && d.SessionID != "" {
		a.externalSessionID = d.SessionID
	}
	if a.externalDomainID == "" && d.DomainID != "" {
		a.externalDomainID = d.DomainID
	}
	a.version++
	return nil
}

// MarkFetching transitions fetch state to fetching and spends one attempt
// from the budget. Callable only from pending or failed.
func (a *Aggregate) MarkFetching() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fetchStatus != FetchPending && a.fetchStatus != FetchFailed {
		return fmt.Errorf("cannot begin fetch from %q for meeting %s: %w", a.fetchStatus, a.meetingID, mserrors.ErrInvalidState)
	}

	a.fetchStatus = FetchFetching
	a.fetchAttempts++
	a.lastFetchAt = a.now()
	a.version++
	return nil
}

// CommitContent stores downloaded caption content and completes the fetch.
// Recognized caption content is parsed into the derived transcript
// structure; a parse failure is recorded but does not fail the commit, the
// content is already stored by then.
func (a *Aggregate) CommitContent(content, contentType, downloadURL string, expiresAt time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fetchStatus != FetchFetching {
		return fmt.Errorf("cannot commit content from %q for meeting %s: %w", a.fetchStatus, a.meetingID, mserrors.ErrInvalidState)
	}

	a.fetchStatus = FetchCompleted
	a.content = content
	a.downloadURL = downloadURL
	a.downloadExpiresAt = expiresAt
	a.lastFetchError = ""
	a.parsed = nil
	a.lastParseError = ""

	if captions.IsCaptionContent(contentType) {
		parsed, err := a.parser.Parse(strings.NewReader(content))
		if err != nil {
			a.lastParseError = err.Error()
		} else {
			a.parsed = &ParsedTranscript{
				Speakers: parsed.Speakers,
				FullText: parsed.FullText,
				Summary:  summaryStub(parsed.FullText),
			}
		}
	}

	a.version++
	return nil
}

// MarkFetchFailed records a failed fetch attempt.
func (a *Aggregate) MarkFetchFailed(cause error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fetchStatus != FetchFetching {
		return fmt.Errorf("cannot fail fetch from %q for meeting %s: %w", a.fetchStatus, a.meetingID, mserrors.ErrInvalidState)
	}

	a.fetchStatus = FetchFailed
	if cause != nil {
		a.lastFetchError = cause.Error()
	} else {
		a.lastFetchError = "unknown fetch error"
	}
	a.lastFetchAt = a.now()
	a.version++
	return nil
}

// AddMessage appends a streamed caption fragment to the live message log.
// The log is append-only; entries are never edited or removed.
func (a *Aggregate) AddMessage(msg LiveMessage) error {
	if msg.SpeakerID == "" {
		return fmt.Errorf("live message for meeting %s missing speaker id: %w", a.meetingID, mserrors.ErrValidation)
	}
	if msg.Timestamp.IsZero() {
		return fmt.Errorf("live message for meeting %s missing timestamp: %w", a.meetingID, mserrors.ErrValidation)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.live.append(msg)
	a.version++
	return nil
}

// FinalTranscript recomputes the finalized transcript from the live message
// log. It never mutates the log and is idempotent absent new final
// messages.
func (a *Aggregate) FinalTranscript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live.compileFinal()
}

// MeetingID returns the owning meeting's identifier.
func (a *Aggregate) MeetingID() string {
	return a.meetingID
}

// Status returns the live captioning state.
func (a *Aggregate) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// FetchStatus returns the post-session retrieval state.
func (a *Aggregate) FetchStatus() FetchStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetchStatus
}

// ExternalTranscriptID returns the provider's transcript identifier, empty
// until learned from a descriptor.
func (a *Aggregate) ExternalTranscriptID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.externalTranscriptID
}

// FetchAttempts returns how many fetch attempts have been spent.
func (a *Aggregate) FetchAttempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetchAttempts
}

// SpeakerStatistics returns a copy of the per-speaker counters derived from
// the live message log.
func (a *Aggregate) SpeakerStatistics() map[string]SpeakerStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live.statsSnapshot()
}

// Snapshot returns a read-only copy of the aggregate's state.
func (a *Aggregate) Snapshot() Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Record{
		MeetingID:            a.meetingID,
		Status:               a.status,
		FetchStatus:          a.fetchStatus,
		ExternalTranscriptID: a.externalTranscriptID,
		ExternalSessionID:    a.externalSessionID,
		ExternalDomainID:     a.externalDomainID,
		Content:              a.content,
		Parsed:               a.parsed,
		LiveMessages:         a.live.snapshot(),
		FetchAttempts:        a.fetchAttempts,
		LastFetchError:       a.lastFetchError,
		LastParseError:       a.lastParseError,
		DownloadURL:          a.downloadURL,
		DownloadExpiresAt:    a.downloadExpiresAt,
		StartedAt:            a.startedAt,
		StoppedAt:            a.stoppedAt,
		StoppedBy:            a.stoppedBy,
		LastFetchAt:          a.lastFetchAt,
		Language:             a.language,
		Model:                a.model,
		Version:              a.version,
	}
}

// summaryStub derives a placeholder summary from the transcript text.
func summaryStub(fullText string) string {
	text := strings.TrimSpace(strings.ReplaceAll(fullText, "\n", " "))
	if len(text) <= summaryStubLimit {
		return text
	}
	return text[:summaryStubLimit] + "..."
}
