package transcript

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is an in-memory meeting store implementing MeetingIndex. It
// backs the CLI's single-process workflows and tests; durable deployments
// use the Postgres repository instead.
type Registry struct {
	mu       sync.RWMutex
	meetings map[string]*Meeting
	created  map[string]time.Time
}

// NewRegistry creates an empty meeting registry.
func NewRegistry() *Registry {
	return &Registry{
		meetings: make(map[string]*Meeting),
		created:  make(map[string]time.Time),
	}
}

// Create registers a new meeting with a fresh transcript aggregate and
// returns it. A blank id is generated.
func (r *Registry) Create(id, roomID, roomName, sessionID string) *Meeting {
	if id == "" {
		id = uuid.NewString()
	}
	m := &Meeting{
		ID:         id,
		RoomID:     roomID,
		RoomName:   roomName,
		SessionID:  sessionID,
		Transcript: NewAggregate(id),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings[id] = m
	r.created[id] = time.Now()
	return m
}

// Add registers an existing meeting, replacing any meeting with the same id.
func (r *Registry) Add(m *Meeting) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings[m.ID] = m
	if _, ok := r.created[m.ID]; !ok {
		r.created[m.ID] = time.Now()
	}
}

// Get returns the meeting with the given id, or nil.
func (r *Registry) Get(id string) *Meeting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.meetings[id]
}

// ByTranscriptID finds the meeting whose aggregate has learned the given
// provider transcript id.
func (r *Registry) ByTranscriptID(id string) *Meeting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.meetings {
		if m.Transcript != nil && m.Transcript.ExternalTranscriptID() == id {
			return m
		}
	}
	return nil
}

// BySessionID finds the meeting with the given conferencing session id.
func (r *Registry) BySessionID(id string) *Meeting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.meetings {
		if m.SessionID == id {
			return m
		}
	}
	return nil
}

// ByRoomID finds the meeting with the given room id.
func (r *Registry) ByRoomID(id string) *Meeting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.meetings {
		if m.RoomID == id {
			return m
		}
	}
	return nil
}

// ByRoomName finds the most recently created meeting with the given room
// name. Room names recur across recurring meetings, so recency breaks ties.
func (r *Registry) ByRoomName(name string) *Meeting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Meeting
	var bestAt time.Time
	for _, m := range r.meetings {
		if m.RoomName != name {
			continue
		}
		at := r.created[m.ID]
		if best == nil || at.After(bestAt) {
			best = m
			bestAt = at
		}
	}
	return best
}

// List returns all meetings ordered by creation time.
func (r *Registry) List() []*Meeting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Meeting, 0, len(r.meetings))
	for _, m := range r.meetings {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.created[out[i].ID].Before(r.created[out[j].ID])
	})
	return out
}

// Stats counts meetings by transcript status and fetch status.
func (r *Registry) Stats() StatusCounts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := StatusCounts{
		ByStatus:      make(map[Status]int),
		ByFetchStatus: make(map[FetchStatus]int),
	}
	for _, m := range r.meetings {
		counts.Total++
		if m.Transcript == nil {
			continue
		}
		counts.ByStatus[m.Transcript.Status()]++
		counts.ByFetchStatus[m.Transcript.FetchStatus()]++
	}
	return counts
}
