// Package events publishes transcript lifecycle events to Redis pub/sub so
// downstream consumers (CRM sync, compliance archival, notification fans)
// can react without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wealthpath/meetscribe/pkg/logging"
)

// Redis channels for transcript lifecycle events.
const (
	ChannelFetchCompleted       = "events.transcript.fetch_completed"
	ChannelFetchFailed          = "events.transcript.fetch_failed"
	ChannelSweepCompleted       = "events.transcript.sweep_completed"
	ChannelDescriptorUnresolved = "events.transcript.descriptor_unresolved"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent with sensible defaults.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "meetscribe",
		Version:   "1.0",
	}
}

// FetchCompletedEvent is published when transcript content for a meeting has
// been downloaded and committed.
type FetchCompletedEvent struct {
	BaseEvent

	MeetingID     string `json:"meeting_id"`
	TranscriptID  string `json:"transcript_id,omitempty"`
	ContentLength int    `json:"content_length"`
	SpeakerCount  int    `json:"speaker_count"`
	ParseError    string `json:"parse_error,omitempty"`
	Attempts      int    `json:"attempts"`
}

// FetchFailedEvent is published when a fetch attempt fails. Exhausted is set
// once the attempt budget is spent and no further retries will happen.
type FetchFailedEvent struct {
	BaseEvent

	MeetingID    string `json:"meeting_id"`
	TranscriptID string `json:"transcript_id,omitempty"`
	Error        string `json:"error"`
	Attempts     int    `json:"attempts"`
	Exhausted    bool   `json:"exhausted"`
}

// SweepCompletedEvent is published at the end of a fetch sweep.
type SweepCompletedEvent struct {
	BaseEvent

	Eligible        int     `json:"eligible"`
	Fetched         int     `json:"fetched"`
	Failed          int     `json:"failed"`
	Skipped         int     `json:"skipped"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// DescriptorUnresolvedEvent is published when a provider descriptor could
// not be matched to any meeting.
type DescriptorUnresolvedEvent struct {
	BaseEvent

	TranscriptID string `json:"transcript_id,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	RoomID       string `json:"room_id,omitempty"`
	RoomName     string `json:"room_name,omitempty"`
}

// Publisher publishes transcript events to Redis.
type Publisher struct {
	client *redis.Client
	logger logging.Logger
}

// PublisherConfig holds Redis connection configuration.
type PublisherConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewPublisher creates a publisher over an existing Redis client.
func NewPublisher(client *redis.Client, logger logging.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger.With(logging.F("component", "event_publisher")),
	}
}

// NewPublisherFromConfig creates a publisher with a new Redis connection.
func NewPublisherFromConfig(cfg PublisherConfig, logger logging.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewPublisher(client, logger), nil
}

// PublishFetchCompleted publishes a successful fetch.
func (p *Publisher) PublishFetchCompleted(ctx context.Context, ev FetchCompletedEvent) error {
	ev.BaseEvent = NewBaseEvent("transcript.fetch_completed")
	return p.publish(ctx, ChannelFetchCompleted, ev)
}

// PublishFetchFailed publishes a failed fetch attempt.
func (p *Publisher) PublishFetchFailed(ctx context.Context, ev FetchFailedEvent) error {
	ev.BaseEvent = NewBaseEvent("transcript.fetch_failed")
	return p.publish(ctx, ChannelFetchFailed, ev)
}

// PublishSweepCompleted publishes the summary of a fetch sweep.
func (p *Publisher) PublishSweepCompleted(ctx context.Context, ev SweepCompletedEvent) error {
	ev.BaseEvent = NewBaseEvent("transcript.sweep_completed")
	return p.publish(ctx, ChannelSweepCompleted, ev)
}

// PublishDescriptorUnresolved publishes an unmatched descriptor so operators
// can reconcile it by hand.
func (p *Publisher) PublishDescriptorUnresolved(ctx context.Context, ev DescriptorUnresolvedEvent) error {
	ev.BaseEvent = NewBaseEvent("transcript.descriptor_unresolved")
	return p.publish(ctx, ChannelDescriptorUnresolved, ev)
}

// publish serializes and publishes an event to Redis.
func (p *Publisher) publish(ctx context.Context, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish event",
			logging.Err(err),
			logging.F("channel", channel))
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	p.logger.Debug("Event published",
		logging.F("channel", channel),
		logging.F("payload_size", len(data)))

	return nil
}
