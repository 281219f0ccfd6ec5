package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wealthpath/meetscribe/pkg/transcript"
)

func TestFormatStats(t *testing.T) {
	counts := transcript.StatusCounts{
		Total: 3,
		ByStatus: map[transcript.Status]int{
			transcript.StatusCompleted: 2,
			transcript.StatusActive:    1,
		},
		ByFetchStatus: map[transcript.FetchStatus]int{
			transcript.FetchPending:   1,
			transcript.FetchCompleted: 2,
		},
	}

	out := formatStats(counts)

	assert.Contains(t, out, "Meetings: 3")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "pending")
}

func TestFormatStats_Empty(t *testing.T) {
	out := formatStats(transcript.StatusCounts{})
	assert.Contains(t, out, "Meetings: 0")
}
