// Package events publishes domain events to a message broker. Publishing
// is best-effort: a failed publish is logged by the caller and never fails
// the mutation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Channel names for published domain events.
const (
	ChannelTaskCompleted  = "task.completed"
	ChannelTaskAssigned   = "task.assigned"
	ChannelProjectDeleted = "project.deleted"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Event is the JSON payload published on every channel.
type Event struct {
	// ProjectID identifies the project involved, when any.
	ProjectID int `json:"project_id,omitempty"`

	// TaskID identifies the task involved, when any.
	TaskID int `json:"task_id,omitempty"`

	// ActorID identifies the user who caused the event.
	ActorID int `json:"actor_id"`

	// OccurredAt is the event timestamp.
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher wraps a backend with a stable API. A nil Publisher, or one
// constructed over a nil backend, publishes nothing.
type Publisher struct {
	backend Backend
}

// NewPublisher constructs a Publisher for the provided backend.
func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

// Publish sends an event to the named channel.
func (p *Publisher) Publish(ctx context.Context, channel string, event Event) error {
	if p == nil || p.backend == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.backend.Publish(ctx, channel, data, map[string]string{
		"content-type": "application/json",
	})
	return err
}

// Subscribe consumes events from the named channel.
func (p *Publisher) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if p == nil || p.backend == nil {
		return nil
	}
	return p.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	if p == nil || p.backend == nil {
		return nil
	}
	return p.backend.Close()
}
