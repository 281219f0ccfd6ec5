package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/wealthpath/meetscribe/pkg/errors"
	"github.com/wealthpath/meetscribe/pkg/logging"
	"github.com/wealthpath/meetscribe/pkg/transcript"
)

const sampleVTT = `WEBVTT

00:00:01.000 --> 00:00:03.500
Alice: Hello everyone
`

// fakeProvider serves canned responses and records calls. Sweeps fetch
// concurrently, so the counters are mutex-guarded.
type fakeProvider struct {
	mu          sync.Mutex
	linkErr     error
	downloadErr error
	content     Content

	accessCalls   int
	downloadCalls int
}

func (f *fakeProvider) AccessLink(_ context.Context, transcriptID string) (AccessLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessCalls++
	if f.linkErr != nil {
		return AccessLink{}, f.linkErr
	}
	return AccessLink{
		Link:      "https://cdn.provider.test/dl/" + transcriptID,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeProvider) Download(_ context.Context, _ string) (Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadCalls++
	if f.downloadErr != nil {
		return Content{}, f.downloadErr
	}
	return f.content, nil
}

func newTestManager(t *testing.T, provider Provider) (*Manager, *transcript.Registry) {
	t.Helper()
	reg := transcript.NewRegistry()
	mgr := NewManager(reg, provider, nil, nil, logging.NewNopLogger(), ManagerConfig{})
	mgr.sleep = func(context.Context, time.Duration) error { return nil }
	return mgr, reg
}

func finishedMeeting(reg *transcript.Registry, id, transcriptID string) *transcript.Meeting {
	m := reg.Create(id, "room-"+id, "Room "+id, "sess-"+id)
	_ = m.Transcript.ApplyDescriptor(transcript.Descriptor{
		TranscriptID: transcriptID,
		Status:       transcript.ProviderStatusFinished,
	})
	return m
}

func TestFetchOneSuccess(t *testing.T) {
	provider := &fakeProvider{content: Content{Body: sampleVTT, ContentType: "text/vtt"}}
	mgr, reg := newTestManager(t, provider)
	m := finishedMeeting(reg, "mtg-1", "tr-1")

	require.NoError(t, mgr.FetchOne(context.Background(), m))

	rec := m.Transcript.Snapshot()
	assert.Equal(t, transcript.FetchCompleted, rec.FetchStatus)
	assert.Equal(t, sampleVTT, rec.Content)
	assert.Equal(t, 1, rec.FetchAttempts)
	require.NotNil(t, rec.Parsed)
	assert.Equal(t, "https://cdn.provider.test/dl/tr-1", rec.DownloadURL)
}

func TestFetchOneAccessLinkFailure(t *testing.T) {
	provider := &fakeProvider{linkErr: errors.New("provider 503")}
	mgr, reg := newTestManager(t, provider)
	m := finishedMeeting(reg, "mtg-1", "tr-1")

	err := mgr.FetchOne(context.Background(), m)
	require.Error(t, err)

	rec := m.Transcript.Snapshot()
	assert.Equal(t, transcript.FetchFailed, rec.FetchStatus)
	assert.Equal(t, 1, rec.FetchAttempts)
	assert.Contains(t, rec.LastFetchError, "provider 503")
	assert.Zero(t, provider.downloadCalls, "download must not run without a link")
}

func TestFetchOneDownloadFailure(t *testing.T) {
	provider := &fakeProvider{downloadErr: errors.New("connection reset")}
	mgr, reg := newTestManager(t, provider)
	m := finishedMeeting(reg, "mtg-1", "tr-1")

	require.Error(t, mgr.FetchOne(context.Background(), m))
	assert.Equal(t, transcript.FetchFailed, m.Transcript.FetchStatus())
}

func TestFetchOneMissingTranscriptID(t *testing.T) {
	provider := &fakeProvider{}
	mgr, reg := newTestManager(t, provider)
	m := reg.Create("mtg-1", "", "", "")

	err := mgr.FetchOne(context.Background(), m)
	require.Error(t, err)
	assert.Equal(t, transcript.FetchFailed, m.Transcript.FetchStatus())
	assert.Zero(t, provider.accessCalls)
}

func TestFetchOneBudgetExhausted(t *testing.T) {
	provider := &fakeProvider{linkErr: errors.New("provider down")}
	mgr, reg := newTestManager(t, provider)
	m := finishedMeeting(reg, "mtg-1", "tr-1")

	for i := 0; i < DefaultRetryPolicy().MaxAttempts; i++ {
		require.Error(t, mgr.FetchOne(context.Background(), m))
	}

	err := mgr.FetchOne(context.Background(), m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrAttemptsExhausted))
	assert.Equal(t, 3, m.Transcript.FetchAttempts())
}

func TestFetchOneAlreadyCompleted(t *testing.T) {
	provider := &fakeProvider{content: Content{Body: sampleVTT, ContentType: "text/vtt"}}
	mgr, reg := newTestManager(t, provider)
	m := finishedMeeting(reg, "mtg-1", "tr-1")
	require.NoError(t, mgr.FetchOne(context.Background(), m))

	err := mgr.FetchOne(context.Background(), m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrInvalidState))
}

func TestProcessDescriptorFetchesWhenFinished(t *testing.T) {
	provider := &fakeProvider{content: Content{Body: sampleVTT, ContentType: "text/vtt"}}
	mgr, reg := newTestManager(t, provider)
	reg.Create("mtg-1", "room-1", "Quarterly Review", "sess-1")

	err := mgr.ProcessDescriptor(context.Background(), transcript.Descriptor{
		TranscriptID:     "tr-1",
		SessionID:        "sess-1",
		Status:           transcript.ProviderStatusFinished,
		CaptionAvailable: true,
	})
	require.NoError(t, err)

	m := reg.Get("mtg-1")
	rec := m.Transcript.Snapshot()
	assert.Equal(t, transcript.StatusCompleted, rec.Status)
	assert.Equal(t, transcript.FetchCompleted, rec.FetchStatus)
	assert.Equal(t, "tr-1", rec.ExternalTranscriptID)
}

func TestProcessDescriptorNoFetchWithoutCaptions(t *testing.T) {
	provider := &fakeProvider{}
	mgr, reg := newTestManager(t, provider)
	reg.Create("mtg-1", "", "", "sess-1")

	err := mgr.ProcessDescriptor(context.Background(), transcript.Descriptor{
		SessionID:        "sess-1",
		Status:           transcript.ProviderStatusFinished,
		CaptionAvailable: false,
	})
	require.NoError(t, err)

	assert.Equal(t, transcript.FetchPending, reg.Get("mtg-1").Transcript.FetchStatus())
	assert.Zero(t, provider.accessCalls)
}

func TestProcessDescriptorProcessingOnlyUpdatesStatus(t *testing.T) {
	provider := &fakeProvider{}
	mgr, reg := newTestManager(t, provider)
	reg.Create("mtg-1", "", "", "sess-1")

	err := mgr.ProcessDescriptor(context.Background(), transcript.Descriptor{
		SessionID:        "sess-1",
		Status:           transcript.ProviderStatusProcessing,
		CaptionAvailable: true,
	})
	require.NoError(t, err)

	assert.Equal(t, transcript.StatusActive, reg.Get("mtg-1").Transcript.Status())
	assert.Zero(t, provider.accessCalls)
}

func TestProcessDescriptorUnresolved(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeProvider{})

	err := mgr.ProcessDescriptor(context.Background(), transcript.Descriptor{
		TranscriptID: "tr-missing",
		Status:       transcript.ProviderStatusFinished,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrUnresolved))
}

func TestSweepFetchesPendingCompleted(t *testing.T) {
	provider := &fakeProvider{content: Content{Body: sampleVTT, ContentType: "text/vtt"}}
	mgr, reg := newTestManager(t, provider)

	finishedMeeting(reg, "mtg-1", "tr-1")
	finishedMeeting(reg, "mtg-2", "tr-2")
	// active meeting is not eligible
	active := reg.Create("mtg-3", "", "", "")
	require.NoError(t, active.Transcript.StartTranscription(transcript.StartConfig{}))

	result, err := mgr.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Eligible)
	assert.Equal(t, 2, result.Fetched)
	assert.Zero(t, result.Failed)
	assert.Equal(t, transcript.FetchPending, active.Transcript.FetchStatus())
}

func TestSweepSkipsMeetingsWithoutTranscriptID(t *testing.T) {
	mgr, reg := newTestManager(t, &fakeProvider{content: Content{Body: sampleVTT, ContentType: "text/vtt"}})

	m := reg.Create("mtg-1", "", "", "")
	require.NoError(t, m.Transcript.StartTranscription(transcript.StartConfig{}))
	m.Transcript.StopTranscription("host")

	result, err := mgr.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Eligible)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Fetched)
	assert.Zero(t, m.Transcript.FetchAttempts(), "skip must not spend an attempt")
}

func TestSweepIsolatesFailures(t *testing.T) {
	provider := &fakeProvider{linkErr: errors.New("provider down")}
	mgr, reg := newTestManager(t, provider)

	finishedMeeting(reg, "mtg-1", "tr-1")
	finishedMeeting(reg, "mtg-2", "tr-2")

	result, err := mgr.Sweep(context.Background())
	require.NoError(t, err, "individual failures must not abort the sweep")

	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, transcript.FetchFailed, reg.Get("mtg-1").Transcript.FetchStatus())
	assert.Equal(t, transcript.FetchFailed, reg.Get("mtg-2").Transcript.FetchStatus())
}

func TestSweepStopsOnContextCancel(t *testing.T) {
	provider := &fakeProvider{content: Content{Body: sampleVTT, ContentType: "text/vtt"}}
	mgr, reg := newTestManager(t, provider)
	mgr.cfg.SweepGroupSize = 1
	mgr.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }

	finishedMeeting(reg, "mtg-1", "tr-1")
	finishedMeeting(reg, "mtg-2", "tr-2")

	result, err := mgr.Sweep(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, result.Fetched, "first group completes before the pause")
}

func TestProcessDescriptorIgnoresRedeliveredFinished(t *testing.T) {
	provider := &fakeProvider{content: Content{Body: sampleVTT, ContentType: "text/vtt"}}
	mgr, reg := newTestManager(t, provider)
	reg.Create("mtg-1", "", "", "sess-1")

	d := transcript.Descriptor{
		TranscriptID:     "tr-1",
		SessionID:        "sess-1",
		Status:           transcript.ProviderStatusFinished,
		CaptionAvailable: true,
	}
	require.NoError(t, mgr.ProcessDescriptor(context.Background(), d))
	assert.Equal(t, 1, provider.accessCalls)

	// providers redeliver finished descriptors
	require.NoError(t, mgr.ProcessDescriptor(context.Background(), d))
	assert.Equal(t, 1, provider.accessCalls, "completed content must not be fetched again")
	assert.Equal(t, 1, reg.Get("mtg-1").Transcript.FetchAttempts())
}

// gateProvider blocks every access-link call until released, so a test can
// observe how many fetches are in flight at once.
type gateProvider struct {
	started chan struct{}
	release chan struct{}
}

func (g *gateProvider) AccessLink(_ context.Context, transcriptID string) (AccessLink, error) {
	g.started <- struct{}{}
	<-g.release
	return AccessLink{Link: "https://cdn.provider.test/dl/" + transcriptID}, nil
}

func (g *gateProvider) Download(_ context.Context, _ string) (Content, error) {
	return Content{Body: sampleVTT, ContentType: "text/vtt"}, nil
}

func TestSweepFetchesGroupConcurrently(t *testing.T) {
	gate := &gateProvider{
		started: make(chan struct{}, DefaultSweepGroupSize),
		release: make(chan struct{}),
	}
	mgr, reg := newTestManager(t, gate)

	finishedMeeting(reg, "mtg-1", "tr-1")
	finishedMeeting(reg, "mtg-2", "tr-2")
	finishedMeeting(reg, "mtg-3", "tr-3")

	done := make(chan SweepResult, 1)
	go func() {
		result, _ := mgr.Sweep(context.Background())
		done <- result
	}()

	// all three fetches of the group must start before any one finishes
	for i := 0; i < DefaultSweepGroupSize; i++ {
		select {
		case <-gate.started:
		case <-time.After(2 * time.Second):
			close(gate.release)
			t.Fatalf("only %d of %d group fetches started", i, DefaultSweepGroupSize)
		}
	}
	close(gate.release)

	result := <-done
	assert.Equal(t, 3, result.Fetched)
}

func TestRetrySweepAppliesBackoff(t *testing.T) {
	provider := &fakeProvider{linkErr: errors.New("transient")}
	reg := transcript.NewRegistry()
	mgr := NewManager(reg, provider, nil, nil, logging.NewNopLogger(), ManagerConfig{
		Policy: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 4 * time.Second,
			MaxBackoff:     time.Minute,
			BackoffFactor:  2.0,
		},
	})

	var mu sync.Mutex
	var slept []time.Duration
	mgr.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return nil
	}

	m := finishedMeeting(reg, "mtg-1", "tr-1")
	require.Error(t, mgr.FetchOne(context.Background(), m))

	// provider recovers
	provider.linkErr = nil
	provider.content = Content{Body: sampleVTT, ContentType: "text/vtt"}

	result, err := mgr.RetrySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fetched)

	// one failed attempt on record: the second attempt waits InitialBackoff
	require.Len(t, slept, 1)
	assert.Equal(t, 4*time.Second, slept[0])
}

func TestFirstSweepHasNoBackoff(t *testing.T) {
	provider := &fakeProvider{content: Content{Body: sampleVTT, ContentType: "text/vtt"}}
	mgr, reg := newTestManager(t, provider)

	var mu sync.Mutex
	var slept []time.Duration
	mgr.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return nil
	}

	finishedMeeting(reg, "mtg-1", "tr-1")

	result, err := mgr.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fetched)
	assert.Empty(t, slept, "a pending first attempt waits for nothing")
}

func TestRetrySweepOnlyFailedUnderBudget(t *testing.T) {
	provider := &fakeProvider{linkErr: errors.New("transient")}
	mgr, reg := newTestManager(t, provider)

	retryable := finishedMeeting(reg, "mtg-retry", "tr-1")
	require.Error(t, mgr.FetchOne(context.Background(), retryable))

	exhausted := finishedMeeting(reg, "mtg-exhausted", "tr-2")
	for i := 0; i < DefaultRetryPolicy().MaxAttempts; i++ {
		require.Error(t, mgr.FetchOne(context.Background(), exhausted))
	}

	// provider recovers
	provider.linkErr = nil
	provider.content = Content{Body: sampleVTT, ContentType: "text/vtt"}

	result, err := mgr.RetrySweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Eligible, "exhausted meeting is not retried")
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, transcript.FetchCompleted, retryable.Transcript.FetchStatus())
	assert.Equal(t, transcript.FetchFailed, exhausted.Transcript.FetchStatus())
}
