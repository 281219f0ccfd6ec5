package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mserrors "github.com/wealthpath/meetscribe/pkg/errors"
	"github.com/wealthpath/meetscribe/pkg/events"
	"github.com/wealthpath/meetscribe/pkg/logging"
	"github.com/wealthpath/meetscribe/pkg/observability"
	"github.com/wealthpath/meetscribe/pkg/transcript"
)

// DefaultSweepGroupSize is how many meetings a sweep fetches before
// pausing, to avoid hammering the provider's rate limits.
const DefaultSweepGroupSize = 3

// DefaultSweepGroupPause is the pause between sweep groups.
const DefaultSweepGroupPause = 2 * time.Second

// ManagerConfig configures the fetch manager.
type ManagerConfig struct {
	Policy          RetryPolicy
	SweepGroupSize  int
	SweepGroupPause time.Duration
}

// SweepResult summarizes one sweep over the meeting backlog.
type SweepResult struct {
	Eligible  int
	Fetched   int
	Failed    int
	Skipped   int
	StartedAt time.Time
	Duration  time.Duration
}

// Manager drives post-session transcript retrieval: it applies provider
// descriptors to meetings, downloads content for individual meetings, and
// sweeps the backlog of completed meetings whose content is still pending.
type Manager struct {
	registry  *transcript.Registry
	matcher   *transcript.Matcher
	provider  Provider
	publisher *events.Publisher
	metrics   *observability.Metrics
	logger    logging.Logger
	cfg       ManagerConfig

	// sleep is replaced in tests to skip real pauses.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager creates a fetch manager. publisher and metrics may be nil when
// eventing or instrumentation is not wired.
func NewManager(
	registry *transcript.Registry,
	provider Provider,
	publisher *events.Publisher,
	metrics *observability.Metrics,
	logger logging.Logger,
	cfg ManagerConfig,
) *Manager {
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = DefaultRetryPolicy()
	}
	if cfg.SweepGroupSize <= 0 {
		cfg.SweepGroupSize = DefaultSweepGroupSize
	}
	if cfg.SweepGroupPause < 0 {
		cfg.SweepGroupPause = DefaultSweepGroupPause
	}

	return &Manager{
		registry:  registry,
		matcher:   transcript.NewMatcher(registry, logger),
		provider:  provider,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.With(logging.F("component", "fetch_manager")),
		cfg:       cfg,
		sleep:     sleepCtx,
	}
}

// ProcessDescriptor resolves a provider descriptor to a meeting, applies
// it, and fetches content immediately when the transcript is finished with
// captions available. Unresolved descriptors are reported and returned.
func (m *Manager) ProcessDescriptor(ctx context.Context, d transcript.Descriptor) error {
	res, err := m.matcher.Match(d)
	if err != nil {
		if errors.Is(err, mserrors.ErrUnresolved) {
			if m.metrics != nil {
				m.metrics.DescriptorUnresolved.Inc()
			}
			if m.publisher != nil {
				_ = m.publisher.PublishDescriptorUnresolved(ctx, events.DescriptorUnresolvedEvent{
					TranscriptID: d.TranscriptID,
					SessionID:    d.SessionID,
					RoomID:       d.RoomID,
					RoomName:     d.RoomName,
				})
			}
		}
		return err
	}

	if m.metrics != nil {
		m.metrics.DescriptorsResolved.WithLabelValues(res.MatchedBy).Inc()
		if res.Disagreement {
			m.metrics.MatcherDisagreements.Inc()
		}
	}

	meeting := res.Meeting
	if err := meeting.Transcript.ApplyDescriptor(d); err != nil {
		return fmt.Errorf("failed to apply descriptor to meeting %s: %w", meeting.ID, err)
	}

	m.logger.Info("Descriptor applied",
		logging.F("meeting_id", meeting.ID),
		logging.F("matched_by", res.MatchedBy),
		logging.F("provider_status", d.Status),
		logging.F("caption_available", d.CaptionAvailable))

	if d.Status == transcript.ProviderStatusFinished && d.CaptionAvailable {
		// Providers redeliver finished descriptors; content already on
		// hand needs no second fetch.
		if meeting.Transcript.FetchStatus() == transcript.FetchCompleted {
			m.logger.Debug("Content already fetched, ignoring redelivery",
				logging.F("meeting_id", meeting.ID),
				logging.F("transcript_id", d.TranscriptID))
			return nil
		}
		return m.FetchOne(ctx, meeting)
	}
	return nil
}

// FetchOne downloads and commits transcript content for a single meeting.
// It spends one attempt from the retry budget; a meeting whose budget is
// exhausted or whose fetch already completed is rejected with
// ErrAttemptsExhausted or ErrInvalidState respectively.
func (m *Manager) FetchOne(ctx context.Context, meeting *transcript.Meeting) error {
	agg := meeting.Transcript

	if !m.cfg.Policy.ShouldRetry(agg.FetchAttempts()) {
		return fmt.Errorf("fetch budget spent for meeting %s (%d attempts): %w",
			meeting.ID, agg.FetchAttempts(), mserrors.ErrAttemptsExhausted)
	}

	if err := agg.MarkFetching(); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.FetchAttempts.Inc()
	}

	transcriptID := agg.ExternalTranscriptID()
	if transcriptID == "" {
		return m.fail(ctx, meeting, "resolve",
			fmt.Errorf("meeting %s has no provider transcript id: %w", meeting.ID, mserrors.ErrValidation))
	}

	link, err := m.provider.AccessLink(ctx, transcriptID)
	if err != nil {
		return m.fail(ctx, meeting, "access_link", err)
	}

	content, err := m.provider.Download(ctx, link.Link)
	if err != nil {
		return m.fail(ctx, meeting, "download", err)
	}

	if err := agg.CommitContent(content.Body, content.ContentType, link.Link, link.ExpiresAt); err != nil {
		return err
	}

	rec := agg.Snapshot()
	if m.metrics != nil {
		m.metrics.FetchCompleted.Inc()
		if rec.LastParseError != "" {
			m.metrics.ParseFailures.Inc()
		}
	}
	if m.publisher != nil {
		ev := events.FetchCompletedEvent{
			MeetingID:     meeting.ID,
			TranscriptID:  transcriptID,
			ContentLength: len(rec.Content),
			ParseError:    rec.LastParseError,
			Attempts:      rec.FetchAttempts,
		}
		if rec.Parsed != nil {
			ev.SpeakerCount = len(rec.Parsed.Speakers)
		}
		_ = m.publisher.PublishFetchCompleted(ctx, ev)
	}

	m.logger.Info("Transcript fetched",
		logging.F("meeting_id", meeting.ID),
		logging.F("transcript_id", transcriptID),
		logging.F("content_bytes", len(rec.Content)),
		logging.F("attempts", rec.FetchAttempts))
	return nil
}

// fail records a failed attempt on the aggregate and reports it.
func (m *Manager) fail(ctx context.Context, meeting *transcript.Meeting, stage string, cause error) error {
	agg := meeting.Transcript
	if err := agg.MarkFetchFailed(cause); err != nil {
		return err
	}

	rec := agg.Snapshot()
	exhausted := !m.cfg.Policy.ShouldRetry(rec.FetchAttempts)

	if m.metrics != nil {
		m.metrics.FetchFailures.WithLabelValues(stage).Inc()
	}
	if m.publisher != nil {
		_ = m.publisher.PublishFetchFailed(ctx, events.FetchFailedEvent{
			MeetingID:    meeting.ID,
			TranscriptID: rec.ExternalTranscriptID,
			Error:        cause.Error(),
			Attempts:     rec.FetchAttempts,
			Exhausted:    exhausted,
		})
	}

	m.logger.Warn("Transcript fetch failed",
		logging.Err(cause),
		logging.F("meeting_id", meeting.ID),
		logging.F("stage", stage),
		logging.F("attempts", rec.FetchAttempts),
		logging.F("exhausted", exhausted))
	return fmt.Errorf("fetch failed for meeting %s at %s: %w", meeting.ID, stage, cause)
}

// Sweep fetches content for every completed meeting whose fetch is still
// pending. Meetings are fetched concurrently in small groups with a pause
// between groups. One meeting's failure never stops the sweep.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	return m.sweep(ctx, func(rec transcript.Record) bool {
		return rec.Status == transcript.StatusCompleted && rec.FetchStatus == transcript.FetchPending
	})
}

// RetrySweep re-attempts meetings whose fetch failed but still have budget
// left, waiting out the policy backoff before each re-attempt.
func (m *Manager) RetrySweep(ctx context.Context) (SweepResult, error) {
	return m.sweep(ctx, func(rec transcript.Record) bool {
		return rec.FetchStatus == transcript.FetchFailed && m.cfg.Policy.ShouldRetry(rec.FetchAttempts)
	})
}

func (m *Manager) sweep(ctx context.Context, eligible func(transcript.Record) bool) (SweepResult, error) {
	result := SweepResult{StartedAt: time.Now()}

	var candidates []*transcript.Meeting
	for _, meeting := range m.registry.List() {
		if meeting.Transcript == nil {
			continue
		}
		if eligible(meeting.Transcript.Snapshot()) {
			candidates = append(candidates, meeting)
		}
	}
	result.Eligible = len(candidates)

	m.logger.Info("Sweep started", logging.F("eligible", result.Eligible))

	var mu sync.Mutex
	for start := 0; start < len(candidates); start += m.cfg.SweepGroupSize {
		if start > 0 {
			if err := m.sleep(ctx, m.cfg.SweepGroupPause); err != nil {
				result.Duration = time.Since(result.StartedAt)
				return result, err
			}
		}

		end := start + m.cfg.SweepGroupSize
		if end > len(candidates) {
			end = len(candidates)
		}

		var wg sync.WaitGroup
		for _, meeting := range candidates[start:end] {
			wg.Add(1)
			go func(meeting *transcript.Meeting) {
				defer wg.Done()
				outcome := m.sweepOne(ctx, meeting)
				mu.Lock()
				switch outcome {
				case sweepFetched:
					result.Fetched++
				case sweepSkipped:
					result.Skipped++
				case sweepFailed:
					result.Failed++
				}
				mu.Unlock()
			}(meeting)
		}
		wg.Wait()
	}

	result.Duration = time.Since(result.StartedAt)

	if m.metrics != nil {
		m.metrics.SweepDuration.Observe(result.Duration.Seconds())
	}
	if m.publisher != nil {
		_ = m.publisher.PublishSweepCompleted(ctx, events.SweepCompletedEvent{
			Eligible:        result.Eligible,
			Fetched:         result.Fetched,
			Failed:          result.Failed,
			Skipped:         result.Skipped,
			DurationSeconds: result.Duration.Seconds(),
		})
	}

	m.logger.Info("Sweep completed",
		logging.F("eligible", result.Eligible),
		logging.F("fetched", result.Fetched),
		logging.F("failed", result.Failed),
		logging.F("skipped", result.Skipped),
		logging.F("duration", result.Duration))
	return result, nil
}

type sweepOutcome int

const (
	sweepFetched sweepOutcome = iota
	sweepSkipped
	sweepFailed
)

// sweepOne fetches a single sweep candidate. Re-attempts of a previously
// failed meeting wait out the policy backoff for the attempt about to be
// spent before hitting the provider.
func (m *Manager) sweepOne(ctx context.Context, meeting *transcript.Meeting) sweepOutcome {
	agg := meeting.Transcript

	if agg.ExternalTranscriptID() == "" {
		m.logger.Debug("Sweep skipping meeting without transcript id",
			logging.F("meeting_id", meeting.ID))
		return sweepSkipped
	}

	if rec := agg.Snapshot(); rec.FetchStatus == transcript.FetchFailed {
		delay := m.cfg.Policy.CalculateBackoff(rec.FetchAttempts + 1)
		if err := m.sleep(ctx, delay); err != nil {
			m.logger.Debug("Retry backoff interrupted",
				logging.Err(err),
				logging.F("meeting_id", meeting.ID))
			return sweepFailed
		}
	}

	if err := m.FetchOne(ctx, meeting); err != nil {
		return sweepFailed
	}
	return sweepFetched
}

// sleepCtx pauses for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
