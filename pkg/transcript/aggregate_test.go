package transcript

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/wealthpath/meetscribe/pkg/errors"
)

const sampleVTT = `WEBVTT

00:00:01.000 --> 00:00:03.500
Alice: Hello everyone

00:00:04.000 --> 00:00:06.000
Bob: Hi Alice
`

func TestNewAggregateInitialState(t *testing.T) {
	a := NewAggregate("meeting-1")

	assert.Equal(t, StatusNotStarted, a.Status())
	assert.Equal(t, FetchPending, a.FetchStatus())
	assert.Equal(t, 0, a.FetchAttempts())
	assert.Empty(t, a.ExternalTranscriptID())
}

func TestStartTranscription(t *testing.T) {
	a := NewAggregate("meeting-1")

	err := a.StartTranscription(StartConfig{
		SessionInstanceID: "sess-9",
		Language:          "en-US",
		Model:             "standard",
	})
	require.NoError(t, err)

	rec := a.Snapshot()
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, "sess-9", rec.ExternalSessionID)
	assert.Equal(t, "en-US", rec.Language)
	assert.False(t, rec.StartedAt.IsZero())
}

func TestStartTranscriptionAlreadyActive(t *testing.T) {
	a := NewAggregate("meeting-1")
	require.NoError(t, a.StartTranscription(StartConfig{}))

	err := a.StartTranscription(StartConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrInvalidState))
	assert.Equal(t, StatusActive, a.Status())
}

func TestStartAfterStopIsAllowed(t *testing.T) {
	a := NewAggregate("meeting-1")
	require.NoError(t, a.StartTranscription(StartConfig{}))
	a.StopTranscription("host")

	require.NoError(t, a.StartTranscription(StartConfig{}))
	assert.Equal(t, StatusActive, a.Status())
}

func TestStopTranscription(t *testing.T) {
	a := NewAggregate("meeting-1")
	require.NoError(t, a.StartTranscription(StartConfig{}))

	a.StopTranscription("advisor@example.com")

	rec := a.Snapshot()
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "advisor@example.com", rec.StoppedBy)
	assert.False(t, rec.StoppedAt.IsZero())
}

func TestApplyDescriptorStatusMapping(t *testing.T) {
	cases := []struct {
		provider string
		want     Status
	}{
		{ProviderStatusFinished, StatusCompleted},
		{ProviderStatusProcessing, StatusActive},
		{ProviderStatusError, StatusError},
		{ProviderStatusExpired, StatusError},
	}

	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			a := NewAggregate("meeting-1")
			err := a.ApplyDescriptor(Descriptor{
				TranscriptID: "tr-1",
				Status:       tc.provider,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, a.Status())
		})
	}
}

func TestApplyDescriptorMergesOnlyUnknownIDs(t *testing.T) {
	a := NewAggregate("meeting-1")
	require.NoError(t, a.StartTranscription(StartConfig{SessionInstanceID: "sess-original"}))

	err := a.ApplyDescriptor(Descriptor{
		TranscriptID: "tr-42",
		SessionID:    "sess-other",
		DomainID:     "dom-7",
		Status:       ProviderStatusFinished,
	})
	require.NoError(t, err)

	rec := a.Snapshot()
	assert.Equal(t, "tr-42", rec.ExternalTranscriptID)
	assert.Equal(t, "sess-original", rec.ExternalSessionID, "known session id must not be overwritten")
	assert.Equal(t, "dom-7", rec.ExternalDomainID)
}

func TestApplyDescriptorInvalid(t *testing.T) {
	a := NewAggregate("meeting-1")

	err := a.ApplyDescriptor(Descriptor{TranscriptID: "tr-1", Status: "bogus"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrValidation))

	err = a.ApplyDescriptor(Descriptor{Status: ProviderStatusFinished})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrValidation))
}

func TestMarkFetching(t *testing.T) {
	a := NewAggregate("meeting-1")

	require.NoError(t, a.MarkFetching())
	assert.Equal(t, FetchFetching, a.FetchStatus())
	assert.Equal(t, 1, a.FetchAttempts())

	// fetching -> fetching is rejected
	err := a.MarkFetching()
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrInvalidState))
	assert.Equal(t, 1, a.FetchAttempts(), "rejected transition must not spend an attempt")
}

func TestMarkFetchingAfterFailure(t *testing.T) {
	a := NewAggregate("meeting-1")
	require.NoError(t, a.MarkFetching())
	require.NoError(t, a.MarkFetchFailed(errors.New("timeout")))

	require.NoError(t, a.MarkFetching())
	assert.Equal(t, 2, a.FetchAttempts())
}

func TestMarkFetchingAfterCompleted(t *testing.T) {
	a := NewAggregate("meeting-1")
	require.NoError(t, a.MarkFetching())
	require.NoError(t, a.CommitContent(sampleVTT, "text/vtt", "", time.Time{}))

	err := a.MarkFetching()
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrInvalidState))
}

func TestCommitContentParsesCaptions(t *testing.T) {
	a := NewAggregate("meeting-1")
	require.NoError(t, a.MarkFetching())

	expires := time.Now().Add(time.Hour)
	require.NoError(t, a.CommitContent(sampleVTT, "text/vtt", "https://provider.test/dl/tr-1", expires))

	rec := a.Snapshot()
	assert.Equal(t, FetchCompleted, rec.FetchStatus)
	assert.Equal(t, sampleVTT, rec.Content)
	assert.Equal(t, "https://provider.test/dl/tr-1", rec.DownloadURL)
	assert.Empty(t, rec.LastFetchError)
	assert.Empty(t, rec.LastParseError)

	require.NotNil(t, rec.Parsed)
	require.Len(t, rec.Parsed.Speakers, 2)
	assert.Equal(t, "Alice", rec.Parsed.Speakers[0].Name)
	assert.Equal(t, "Bob", rec.Parsed.Speakers[1].Name)
	assert.NotEmpty(t, rec.Parsed.Summary)
}

func TestCommitContentUnrecognizedType(t *testing.T) {
	a := NewAggregate("meeting-1")
	require.NoError(t, a.MarkFetching())

	require.NoError(t, a.CommitContent(`{"raw": true}`, "application/json", "", time.Time{}))

	rec := a.Snapshot()
	assert.Equal(t, FetchCompleted, rec.FetchStatus)
	assert.Nil(t, rec.Parsed)
	assert.Empty(t, rec.LastParseError)
}

func TestCommitContentRequiresFetching(t *testing.T) {
	a := NewAggregate("meeting-1")

	err := a.CommitContent(sampleVTT, "text/vtt", "", time.Time{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrInvalidState))
}

func TestMarkFetchFailed(t *testing.T) {
	a := NewAggregate("meeting-1")
	require.NoError(t, a.MarkFetching())

	require.NoError(t, a.MarkFetchFailed(errors.New("connection refused")))

	rec := a.Snapshot()
	assert.Equal(t, FetchFailed, rec.FetchStatus)
	assert.Equal(t, "connection refused", rec.LastFetchError)

	// failed -> failed is rejected
	err := a.MarkFetchFailed(errors.New("again"))
	assert.True(t, errors.Is(err, mserrors.ErrInvalidState))
}

func TestFetchErrorClearedOnSuccess(t *testing.T) {
	a := NewAggregate("meeting-1")
	require.NoError(t, a.MarkFetching())
	require.NoError(t, a.MarkFetchFailed(errors.New("timeout")))
	require.NoError(t, a.MarkFetching())
	require.NoError(t, a.CommitContent(sampleVTT, "text/vtt", "", time.Time{}))

	rec := a.Snapshot()
	assert.Empty(t, rec.LastFetchError)
	assert.Equal(t, 2, rec.FetchAttempts)
}

func TestAddMessageValidation(t *testing.T) {
	a := NewAggregate("meeting-1")

	err := a.AddMessage(LiveMessage{Text: "no speaker", Timestamp: time.Now()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrValidation))

	err = a.AddMessage(LiveMessage{SpeakerID: "spk-1", Text: "no timestamp"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrValidation))
}

func TestAddMessageAppendOnly(t *testing.T) {
	a := NewAggregate("meeting-1")
	base := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, a.AddMessage(LiveMessage{
			SpeakerID: "spk-1",
			Text:      "fragment",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	rec := a.Snapshot()
	require.Len(t, rec.LiveMessages, 3)

	// mutating the snapshot must not touch the aggregate
	rec.LiveMessages[0].Text = "tampered"
	assert.Equal(t, "fragment", a.Snapshot().LiveMessages[0].Text)
}

func TestVersionIncrementsOnEveryCommand(t *testing.T) {
	a := NewAggregate("meeting-1")
	v0 := a.Snapshot().Version

	require.NoError(t, a.StartTranscription(StartConfig{}))
	v1 := a.Snapshot().Version
	assert.Greater(t, v1, v0)

	require.NoError(t, a.AddMessage(LiveMessage{SpeakerID: "spk-1", Text: "hi", Timestamp: time.Now()}))
	assert.Greater(t, a.Snapshot().Version, v1)
}

func TestRestoreRoundTrip(t *testing.T) {
	a := NewAggregate("meeting-1")
	require.NoError(t, a.StartTranscription(StartConfig{SessionInstanceID: "sess-1", Language: "en-US"}))
	require.NoError(t, a.AddMessage(LiveMessage{
		SpeakerID:   "spk-1",
		SpeakerName: "Alice",
		Text:        "hello there everyone",
		Timestamp:   time.Now(),
		IsFinal:     true,
	}))
	a.StopTranscription("system")

	restored := Restore(a.Snapshot())
	rec := restored.Snapshot()

	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "sess-1", rec.ExternalSessionID)
	require.Len(t, rec.LiveMessages, 1)

	// stats are rederived from the replayed log
	stats := restored.SpeakerStatistics()
	require.Contains(t, stats, "spk-1")
	assert.Equal(t, 1, stats["spk-1"].MessageCount)
}
