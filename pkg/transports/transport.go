package transports

import (
	"context"
	"net/http"

	"github.com/voicedesk/voicedesk/pkg/session"
)

// Kind classifies a normalized provider event.
type Kind string

const (
	KindCallStarted    Kind = "call-started"
	KindTurnInput      Kind = "turn-input"
	KindStatusUpdate   Kind = "status-update"
	KindRecordingReady Kind = "recording-ready"
	KindCallEnded      Kind = "call-ended"
)

// Event is a provider webhook payload normalized to the canonical shape the
// orchestrator consumes.
type Event struct {
	ExternalCallID string
	Utterance      string
	Kind           Kind
	From           string
	To             string
	Direction      session.Direction
	Raw            map[string]string
}

// Instruction is the provider-independent description of what to do next on a
// call. Hangup always terminates any pending continue-listening.
type Instruction struct {
	SayText           string
	ContinueListening bool
	Hangup            bool
	TransferTo        string
	Voice             string
	Locale            string
}

// Adapter bridges one telephony provider's call-control protocol onto the
// orchestrator. Adapters register their webhook routes on the shared mux.
type Adapter interface {
	Name() string
	Register(mux *http.ServeMux)
}

// OutboundDialer places a new outbound call through the provider.
type OutboundDialer interface {
	Dial(ctx context.Context, to, from string) (externalCallID string, err error)
}
