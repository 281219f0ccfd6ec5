package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/wealthpath/meetscribe/pkg/logging"
	"github.com/wealthpath/meetscribe/pkg/transcript"
)

// Index adapts the repository to the matcher's lookup interface. Lookup
// errors are logged and reported as no-match; the matcher treats an
// unresolvable descriptor as ErrUnresolved either way.
type Index struct {
	ctx  context.Context
	repo *Repository
	log  logging.Logger
}

// NewIndex creates a matcher index bound to the given context.
func NewIndex(ctx context.Context, repo *Repository, log logging.Logger) *Index {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Index{ctx: ctx, repo: repo, log: log}
}

// ByTranscriptID finds the meeting with the given provider transcript id.
func (i *Index) ByTranscriptID(id string) *transcript.Meeting {
	return i.lookup("external_transcript_id", id)
}

// BySessionID finds the meeting with the given conferencing session id.
func (i *Index) BySessionID(id string) *transcript.Meeting {
	return i.lookup("session_id", id)
}

// ByRoomID finds the meeting with the given room id.
func (i *Index) ByRoomID(id string) *transcript.Meeting {
	return i.lookup("room_id", id)
}

// ByRoomName finds the most recently created meeting with the given room
// name.
func (i *Index) ByRoomName(name string) *transcript.Meeting {
	return i.lookup("room_name", name)
}

// lookup resolves one identifier column to a fully loaded meeting. column
// is always one of the fixed names above, never user input.
func (i *Index) lookup(column, value string) *transcript.Meeting {
	if value == "" {
		return nil
	}

	query := `
		SELECT id FROM meetings
		WHERE ` + column + ` = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	var meetingID string
	err := i.repo.pool.QueryRow(i.ctx, query, value).Scan(&meetingID)
	if err == pgx.ErrNoRows {
		return nil
	}
	if err != nil {
		i.log.Warn("Meeting lookup failed",
			logging.Err(err),
			logging.F("column", column))
		return nil
	}

	m, err := i.repo.GetMeeting(i.ctx, meetingID)
	if err != nil {
		i.log.Warn("Meeting load failed",
			logging.Err(err),
			logging.F("meeting_id", meetingID))
		return nil
	}
	return m
}
