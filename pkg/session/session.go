package session

import (
	"strings"
	"time"
)

// Status is the telephony-layer state of a call, driven by provider
// status events.
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBusy       Status = "busy"
	StatusNoAnswer   Status = "no-answer"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether a status closes the call. Terminal statuses are
// monotonic: a later non-terminal update never reopens a closed call.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCancelled:
		return true
	}
	return false
}

// CallState is the conversation-layer state of a call. It is independent of
// Status: a call can be in-progress while the conversation is confirming.
type CallState string

const (
	StateGreeting         CallState = "greeting"
	StateCollectingIntent CallState = "collecting-intent"
	StateCollectingData   CallState = "collecting-data"
	StateConfirming       CallState = "confirming"
	StateCompleted        CallState = "completed"
	StateTransferred      CallState = "transferred"
	StateEnded            CallState = "ended"
)

// Direction of the call relative to the business.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ConfirmationStatus tracks the outcome of the confirming phase.
type ConfirmationStatus string

const (
	ConfirmationNotApplicable ConfirmationStatus = "not-applicable"
	ConfirmationPending       ConfirmationStatus = "pending"
	ConfirmationConfirmed     ConfirmationStatus = "confirmed"
	ConfirmationRejected      ConfirmationStatus = "rejected"
)

// MessageType tags who produced a conversation message.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
)

// Analysis is the optional language-model payload attached to a message.
type Analysis struct {
	Intent         string            `json:"intent,omitempty"`
	Confidence     float64           `json:"confidence,omitempty"`
	Entities       map[string]string `json:"entities,omitempty"`
	DetectedFields map[string]string `json:"detectedFields,omitempty"`
}

// Message is one immutable conversation entry. Sequence numbers are
// session-scoped, strictly increasing with no gaps.
type Message struct {
	SessionID string      `json:"sessionId"`
	Sequence  int         `json:"sequence"`
	Type      MessageType `json:"type"`
	Text      string      `json:"text"`
	Analysis  *Analysis   `json:"analysis,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorEntry is one append-only error-log record on a session.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

// SubState is the asynchronous-protocol adapter's per-call bookkeeping,
// attached to the session rather than hidden in callbacks.
type SubState struct {
	Answered     bool `json:"answered"`
	Speaking     bool `json:"speaking"`
	Transcribing bool `json:"transcribing"`
}

// CallSession is the per-call document. Created at call start, mutated by
// every turn, closed by the terminal telephony event, never deleted.
type CallSession struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"businessId"`
	ExternalCallID string    `json:"externalCallId"`
	Provider       string    `json:"provider"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Direction      Direction `json:"direction"`

	Status    Status    `json:"status"`
	CallState CallState `json:"callState"`

	DetectedLanguage string `json:"detectedLanguage,omitempty"`
	DetectedIntent   string `json:"detectedIntent,omitempty"`
	ServiceID        string `json:"serviceId,omitempty"`

	CollectedData map[string]string `json:"collectedData"`
	MissingFields []string          `json:"missingFields,omitempty"`

	ConfirmationStatus  ConfirmationStatus `json:"confirmationStatus"`
	InteractionRecordID string             `json:"interactionRecordId,omitempty"`

	Sub SubState `json:"sub"`

	Errors []ErrorEntry `json:"errors,omitempty"`

	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Duration  int        `json:"duration,omitempty"`
}

// InteractionRecord is the finalized business outcome of a session: an order,
// booking, lead or inquiry snapshot. Created exactly once at finalization.
type InteractionRecord struct {
	ID         string            `json:"id"`
	BusinessID string            `json:"businessId"`
	SessionID  string            `json:"sessionId"`
	ServiceID  string            `json:"serviceId,omitempty"`
	RecordType string            `json:"recordType"`
	Status     string            `json:"status"`
	Data       map[string]string `json:"data"`
	Pricing    any               `json:"pricing,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// MergeCollected applies extracted values into collected data with
// first-write-wins semantics: a field already set is never overwritten.
// Returns the keys actually written.
func MergeCollected(data map[string]string, extracted map[string]string) []string {
	var written []string
	for k, v := range extracted {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if existing, ok := data[k]; ok && existing != "" {
			continue
		}
		data[k] = v
		written = append(written, k)
	}
	return written
}
