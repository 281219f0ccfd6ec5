// Package storage persists meetings and their transcript state in
// PostgreSQL. The transcript aggregate is stored as columns on the meeting
// row plus an append-only live_messages table; writes are guarded by the
// aggregate's version counter so a stale snapshot never overwrites a newer
// one.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mserrors "github.com/wealthpath/meetscribe/pkg/errors"
	"github.com/wealthpath/meetscribe/pkg/logging"
	"github.com/wealthpath/meetscribe/pkg/transcript"
)

// DefaultTenantID is the UUID for the default tenant (single-tenant mode).
const DefaultTenantID = "00000001-0000-0000-0000-000000000001"

// Repository provides database operations for meetings and transcripts.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a meeting repository.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "storage")),
	}
}

// CreateMeeting inserts a meeting with its transcript in the initial state.
func (r *Repository) CreateMeeting(ctx context.Context, tenantID string, m *transcript.Meeting) error {
	if tenantID == "" || tenantID == "default" {
		tenantID = DefaultTenantID
	}
	rec := m.Transcript.Snapshot()

	query := `
		INSERT INTO meetings (
			id, tenant_id, room_id, room_name, session_id,
			transcript_status, fetch_status, fetch_attempts, transcript_version,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			NOW(), NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		m.ID, tenantID, m.RoomID, m.RoomName, m.SessionID,
		string(rec.Status), string(rec.FetchStatus), rec.FetchAttempts, rec.Version,
	)
	if err != nil {
		r.logger.Error("Failed to create meeting",
			logging.Err(err),
			logging.F("meeting_id", m.ID))
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	r.logger.Debug("Meeting created",
		logging.F("meeting_id", m.ID),
		logging.F("room_id", m.RoomID))
	return nil
}

// GetMeeting loads a meeting and rebuilds its transcript aggregate,
// replaying persisted live messages.
func (r *Repository) GetMeeting(ctx context.Context, meetingID string) (*transcript.Meeting, error) {
	query := `
		SELECT
			id, room_id, room_name, session_id,
			transcript_status, fetch_status,
			external_transcript_id, external_session_id, external_domain_id,
			content, parsed, last_parse_error,
			download_url, download_expires_at,
			fetch_attempts, last_fetch_error, last_fetch_at,
			started_at, stopped_at, stopped_by,
			language, model, transcript_version
		FROM meetings
		WHERE id = $1 AND deleted_at IS NULL
	`

	m := &transcript.Meeting{}
	rec := transcript.Record{}
	var (
		status, fetchStatus                      string
		extTranscript, extSession, extDomain     *string
		content, lastParseErr, downloadURL       *string
		lastFetchErr, stoppedBy, language, model *string
		parsedJSON                               []byte
		downloadExpires, lastFetchAt             *time.Time
		startedAt, stoppedAt                     *time.Time
	)

	err := r.pool.QueryRow(ctx, query, meetingID).Scan(
		&m.ID, &m.RoomID, &m.RoomName, &m.SessionID,
		&status, &fetchStatus,
		&extTranscript, &extSession, &extDomain,
		&content, &parsedJSON, &lastParseErr,
		&downloadURL, &downloadExpires,
		&rec.FetchAttempts, &lastFetchErr, &lastFetchAt,
		&startedAt, &stoppedAt, &stoppedBy,
		&language, &model, &rec.Version,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("meeting %s: %w", meetingID, mserrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meeting %s: %w", meetingID, err)
	}

	rec.MeetingID = m.ID
	rec.Status = transcript.Status(status)
	rec.FetchStatus = transcript.FetchStatus(fetchStatus)
	rec.ExternalTranscriptID = deref(extTranscript)
	rec.ExternalSessionID = deref(extSession)
	rec.ExternalDomainID = deref(extDomain)
	rec.Content = deref(content)
	rec.LastParseError = deref(lastParseErr)
	rec.DownloadURL = deref(downloadURL)
	rec.LastFetchError = deref(lastFetchErr)
	rec.StoppedBy = deref(stoppedBy)
	rec.Language = deref(language)
	rec.Model = deref(model)
	rec.DownloadExpiresAt = derefTime(downloadExpires)
	rec.LastFetchAt = derefTime(lastFetchAt)
	rec.StartedAt = derefTime(startedAt)
	rec.StoppedAt = derefTime(stoppedAt)

	if len(parsedJSON) > 0 {
		var parsed transcript.ParsedTranscript
		if err := json.Unmarshal(parsedJSON, &parsed); err != nil {
			return nil, fmt.Errorf("failed to decode parsed transcript for meeting %s: %w", meetingID, err)
		}
		rec.Parsed = &parsed
	}

	messages, err := r.liveMessages(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	rec.LiveMessages = messages

	m.Transcript = transcript.Restore(rec)
	return m, nil
}

// SaveSnapshot writes a transcript snapshot to the meeting row. The write
// only lands when the snapshot is newer than the stored version; a stale
// snapshot is rejected with ErrInvalidState.
func (r *Repository) SaveSnapshot(ctx context.Context, rec transcript.Record) error {
	var parsedJSON []byte
	if rec.Parsed != nil {
		var err error
		parsedJSON, err = json.Marshal(rec.Parsed)
		if err != nil {
			return fmt.Errorf("failed to marshal parsed transcript: %w", err)
		}
	}

	query := `
		UPDATE meetings SET
			transcript_status = $2,
			fetch_status = $3,
			external_transcript_id = NULLIF($4, ''),
			external_session_id = NULLIF($5, ''),
			external_domain_id = NULLIF($6, ''),
			content = NULLIF($7, ''),
			parsed = $8,
			last_parse_error = NULLIF($9, ''),
			download_url = NULLIF($10, ''),
			download_expires_at = $11,
			fetch_attempts = $12,
			last_fetch_error = NULLIF($13, ''),
			last_fetch_at = $14,
			started_at = $15,
			stopped_at = $16,
			stopped_by = NULLIF($17, ''),
			language = NULLIF($18, ''),
			model = NULLIF($19, ''),
			transcript_version = $20,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND transcript_version < $20
	`
	tag, err := r.pool.Exec(ctx, query,
		rec.MeetingID,
		string(rec.Status), string(rec.FetchStatus),
		rec.ExternalTranscriptID, rec.ExternalSessionID, rec.ExternalDomainID,
		rec.Content, parsedJSON, rec.LastParseError,
		rec.DownloadURL, nullTime(rec.DownloadExpiresAt),
		rec.FetchAttempts, rec.LastFetchError, nullTime(rec.LastFetchAt),
		nullTime(rec.StartedAt), nullTime(rec.StoppedAt), rec.StoppedBy,
		rec.Language, rec.Model, rec.Version,
	)
	if err != nil {
		r.logger.Error("Failed to save transcript snapshot",
			logging.Err(err),
			logging.F("meeting_id", rec.MeetingID))
		return fmt.Errorf("failed to save snapshot for meeting %s: %w", rec.MeetingID, err)
	}

	if tag.RowsAffected() == 0 {
		exists, err := r.meetingExists(ctx, rec.MeetingID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("meeting %s: %w", rec.MeetingID, mserrors.ErrNotFound)
		}
		return fmt.Errorf("stale snapshot for meeting %s (version %d): %w",
			rec.MeetingID, rec.Version, mserrors.ErrInvalidState)
	}

	r.logger.Debug("Transcript snapshot saved",
		logging.F("meeting_id", rec.MeetingID),
		logging.F("version", rec.Version))
	return nil
}

// AppendLiveMessage persists one live caption fragment.
func (r *Repository) AppendLiveMessage(ctx context.Context, meetingID string, msg transcript.LiveMessage) error {
	query := `
		INSERT INTO live_messages (
			meeting_id, speaker_id, speaker_name, text,
			message_timestamp, is_final, confidence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		meetingID, msg.SpeakerID, msg.SpeakerName, msg.Text,
		msg.Timestamp, msg.IsFinal, msg.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to append live message for meeting %s: %w", meetingID, err)
	}
	return nil
}

// liveMessages loads a meeting's live message log in insertion order.
func (r *Repository) liveMessages(ctx context.Context, meetingID string) ([]transcript.LiveMessage, error) {
	query := `
		SELECT speaker_id, speaker_name, text, message_timestamp, is_final, confidence
		FROM live_messages
		WHERE meeting_id = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load live messages for meeting %s: %w", meetingID, err)
	}
	defer rows.Close()

	var messages []transcript.LiveMessage
	for rows.Next() {
		var msg transcript.LiveMessage
		if err := rows.Scan(&msg.SpeakerID, &msg.SpeakerName, &msg.Text,
			&msg.Timestamp, &msg.IsFinal, &msg.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan live message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// FetchCandidate identifies a meeting eligible for a fetch sweep.
type FetchCandidate struct {
	MeetingID            string
	ExternalTranscriptID string
	FetchAttempts        int
}

// ListFetchCandidates returns completed meetings whose content is still
// pending, oldest first.
func (r *Repository) ListFetchCandidates(ctx context.Context, limit int) ([]FetchCandidate, error) {
	query := `
		SELECT id, COALESCE(external_transcript_id, ''), fetch_attempts
		FROM meetings
		WHERE deleted_at IS NULL
		  AND transcript_status = $1
		  AND fetch_status = $2
		ORDER BY updated_at
		LIMIT $3
	`
	return r.fetchCandidates(ctx, query, string(transcript.StatusCompleted), string(transcript.FetchPending), limit)
}

// ListRetryCandidates returns failed meetings with attempts left in the
// budget, oldest failure first.
func (r *Repository) ListRetryCandidates(ctx context.Context, maxAttempts, limit int) ([]FetchCandidate, error) {
	query := `
		SELECT id, COALESCE(external_transcript_id, ''), fetch_attempts
		FROM meetings
		WHERE deleted_at IS NULL
		  AND fetch_status = $1
		  AND fetch_attempts < $2
		ORDER BY last_fetch_at
		LIMIT $3
	`
	return r.fetchCandidates(ctx, query, string(transcript.FetchFailed), maxAttempts, limit)
}

func (r *Repository) fetchCandidates(ctx context.Context, query string, args ...interface{}) ([]FetchCandidate, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fetch candidates: %w", err)
	}
	defer rows.Close()

	var candidates []FetchCandidate
	for rows.Next() {
		var c FetchCandidate
		if err := rows.Scan(&c.MeetingID, &c.ExternalTranscriptID, &c.FetchAttempts); err != nil {
			return nil, fmt.Errorf("failed to scan fetch candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// AggregateStats counts meetings by transcript status and fetch status.
func (r *Repository) AggregateStats(ctx context.Context) (transcript.StatusCounts, error) {
	counts := transcript.StatusCounts{
		ByStatus:      make(map[transcript.Status]int),
		ByFetchStatus: make(map[transcript.FetchStatus]int),
	}

	query := `
		SELECT transcript_status, fetch_status, COUNT(*)
		FROM meetings
		WHERE deleted_at IS NULL
		GROUP BY transcript_status, fetch_status
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return counts, fmt.Errorf("failed to aggregate meeting stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, fetchStatus string
		var n int
		if err := rows.Scan(&status, &fetchStatus, &n); err != nil {
			return counts, fmt.Errorf("failed to scan meeting stats: %w", err)
		}
		counts.Total += n
		counts.ByStatus[transcript.Status(status)] += n
		counts.ByFetchStatus[transcript.FetchStatus(fetchStatus)] += n
	}
	return counts, rows.Err()
}

func (r *Repository) meetingExists(ctx context.Context, meetingID string) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx,
		`SELECT 1 FROM meetings WHERE id = $1 AND deleted_at IS NULL`, meetingID).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check meeting %s: %w", meetingID, err)
	}
	return true, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
