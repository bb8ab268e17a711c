package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no session matches a lookup.
var ErrNotFound = errors.New("session: not found")

// Patch carries optional session mutations applied together with a status or
// state update. Nil fields are left untouched.
type Patch struct {
	DetectedLanguage    *string
	DetectedIntent      *string
	ServiceID           *string
	Direction           *Direction
	MissingFields       []string
	ConfirmationStatus  *ConfirmationStatus
	InteractionRecordID *string
	Sub                 *SubState
	Duration            *int
}

// Store is the narrow session persistence contract. All updates are atomic at
// document granularity; message sequence assignment is atomic with the append.
type Store interface {
	Create(ctx context.Context, s CallSession) (CallSession, error)
	Get(ctx context.Context, sessionID string) (CallSession, error)
	GetByExternalID(ctx context.Context, externalCallID string) (CallSession, error)

	// UpdateStatus moves the telephony axis. Terminal statuses are monotonic:
	// once terminal, later status updates are silently ignored.
	UpdateStatus(ctx context.Context, sessionID string, status Status, patch Patch) (CallSession, error)

	// UpdateState moves the conversation axis.
	UpdateState(ctx context.Context, sessionID string, state CallState, patch Patch) (CallSession, error)

	// MergeCollected folds extracted fields into collectedData,
	// first write wins.
	MergeCollected(ctx context.Context, sessionID string, extracted map[string]string) (CallSession, error)

	AppendMessage(ctx context.Context, sessionID string, typ MessageType, text string, analysis *Analysis) (int, error)
	History(ctx context.Context, sessionID string) ([]Message, error)

	AppendError(ctx context.Context, sessionID, kind, message string)

	// CreateInteraction stores the finalized record and back-links it on the
	// session document.
	CreateInteraction(ctx context.Context, rec InteractionRecord) (InteractionRecord, error)
	Interaction(ctx context.Context, recordID string) (InteractionRecord, error)
}

func applyPatch(s *CallSession, patch Patch) {
	if patch.DetectedLanguage != nil {
		s.DetectedLanguage = *patch.DetectedLanguage
	}
	if patch.DetectedIntent != nil {
		s.DetectedIntent = *patch.DetectedIntent
	}
	if patch.ServiceID != nil {
		s.ServiceID = *patch.ServiceID
	}
	if patch.Direction != nil {
		s.Direction = *patch.Direction
	}
	if patch.MissingFields != nil {
		s.MissingFields = patch.MissingFields
	}
	if patch.ConfirmationStatus != nil {
		s.ConfirmationStatus = *patch.ConfirmationStatus
	}
	if patch.InteractionRecordID != nil {
		s.InteractionRecordID = *patch.InteractionRecordID
	}
	if patch.Sub != nil {
		s.Sub = *patch.Sub
	}
	if patch.Duration != nil {
		s.Duration = *patch.Duration
	}
}

func applyStatus(s *CallSession, status Status) bool {
	if s.Status.Terminal() {
		return false
	}
	s.Status = status
	if status.Terminal() && s.EndTime == nil {
		now := time.Now().UTC()
		s.EndTime = &now
	}
	return true
}

// StringPtr is a convenience for building patches.
func StringPtr(v string) *string { return &v }

// StatePtr is a convenience for building patches.
func StatePtr(v ConfirmationStatus) *ConfirmationStatus { return &v }
