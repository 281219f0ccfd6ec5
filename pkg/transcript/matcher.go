package transcript

import (
	"fmt"

	mserrors "github.com/wealthpath/meetscribe/pkg/errors"
	"github.com/wealthpath/meetscribe/pkg/logging"
)

// MeetingIndex looks up meetings by the identifiers a descriptor may carry.
// Each method returns the meeting or nil when no meeting matches; ambiguous
// keys (several meetings sharing a room name) should return the most
// recently created candidate.
type MeetingIndex interface {
	ByTranscriptID(id string) *Meeting
	BySessionID(id string) *Meeting
	ByRoomID(id string) *Meeting
	ByRoomName(name string) *Meeting
}

// MatchResult reports which key resolved a descriptor and whether lower
// priority keys pointed at a different meeting.
type MatchResult struct {
	Meeting      *Meeting
	MatchedBy    string
	Disagreement bool
}

// Matcher resolves provider transcript descriptors to internal meetings.
type Matcher struct {
	index MeetingIndex
	log   logging.Logger
}

// NewMatcher creates a descriptor matcher over the given meeting index.
func NewMatcher(index MeetingIndex, log logging.Logger) *Matcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Matcher{index: index, log: log}
}

// Match resolves a descriptor to a meeting. Keys are tried strongest first:
// transcript id, then session id, then room id, then room name. The first
// hit wins; remaining keys are still checked and a disagreement is logged
// when they resolve to a different meeting, since that usually means stale
// identifiers on one side. No hit on any key returns ErrUnresolved.
func (m *Matcher) Match(d Descriptor) (MatchResult, error) {
	type candidate struct {
		key     string
		meeting *Meeting
	}

	var candidates []candidate
	if d.TranscriptID != "" {
		if mt := m.index.ByTranscriptID(d.TranscriptID); mt != nil {
			candidates = append(candidates, candidate{"transcript_id", mt})
		}
	}
	if d.SessionID != "" {
		if mt := m.index.BySessionID(d.SessionID); mt != nil {
			candidates = append(candidates, candidate{"session_id", mt})
		}
	}
	if d.RoomID != "" {
		if mt := m.index.ByRoomID(d.RoomID); mt != nil {
			candidates = append(candidates, candidate{"room_id", mt})
		}
	}
	if d.RoomName != "" {
		if mt := m.index.ByRoomName(d.RoomName); mt != nil {
			candidates = append(candidates, candidate{"room_name", mt})
		}
	}

	if len(candidates) == 0 {
		return MatchResult{}, fmt.Errorf("no meeting matches descriptor (transcript=%q session=%q room=%q name=%q): %w",
			d.TranscriptID, d.SessionID, d.RoomID, d.RoomName, mserrors.ErrUnresolved)
	}

	winner := candidates[0]
	result := MatchResult{Meeting: winner.meeting, MatchedBy: winner.key}
	for _, c := range candidates[1:] {
		if c.meeting.ID != winner.meeting.ID {
			result.Disagreement = true
			m.log.Warn("descriptor keys resolve to different meetings",
				logging.F("matched_by", winner.key),
				logging.F("matched_meeting", winner.meeting.ID),
				logging.F("disagreeing_key", c.key),
				logging.F("disagreeing_meeting", c.meeting.ID))
		}
	}
	return result, nil
}
