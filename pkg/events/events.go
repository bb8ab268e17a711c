package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Publisher delivers call lifecycle events to the outside world.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// CallEvent is the JSON payload published for every call lifecycle change.
type CallEvent struct {
	BusinessID     string `json:"businessId"`
	SessionID      string `json:"sessionId"`
	ExternalCallID string `json:"externalCallId,omitempty"`
	Event          string `json:"event"`
	CallState      string `json:"callState,omitempty"`
	Status         string `json:"status,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// Topic builds the per-business event topic.
func Topic(businessID, event string) string {
	return fmt.Sprintf("voicedesk/%s/call/%s", businessID, event)
}

// Emit publishes a call event. Failures are logged and swallowed; event
// delivery must never fail a call turn.
func Emit(ctx context.Context, pub Publisher, logger *slog.Logger, ev CallEvent) {
	if pub == nil {
		return
	}
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := pub.Publish(ctx, Topic(ev.BusinessID, ev.Event), payload); err != nil && logger != nil {
		logger.Warn("event_publish_failed",
			slog.String("business_id", ev.BusinessID),
			slog.String("event", ev.Event),
			slog.String("error", err.Error()),
		)
	}
}
