package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. It backs tests and the
// simulated-call console; semantics mirror the redis store exactly.
type MemoryStore struct {
	mu           sync.Mutex
	sessions     map[string]*CallSession
	byExternal   map[string]string
	messages     map[string][]Message
	interactions map[string]InteractionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*CallSession),
		byExternal:   make(map[string]string),
		messages:     make(map[string][]Message),
		interactions: make(map[string]InteractionRecord),
	}
}

func (m *MemoryStore) Create(ctx context.Context, s CallSession) (CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existingID, ok := m.byExternal[s.ExternalCallID]; ok {
		return cloneSession(m.sessions[existingID]), nil
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusInitiated
	}
	if s.CallState == "" {
		s.CallState = StateGreeting
	}
	if s.ConfirmationStatus == "" {
		s.ConfirmationStatus = ConfirmationNotApplicable
	}
	if s.CollectedData == nil {
		s.CollectedData = make(map[string]string)
	}
	if s.StartTime.IsZero() {
		s.StartTime = time.Now().UTC()
	}
	copied := s
	m.sessions[s.ID] = &copied
	if s.ExternalCallID != "" {
		m.byExternal[s.ExternalCallID] = s.ID
	}
	return cloneSession(&copied), nil
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) GetByExternalID(ctx context.Context, externalCallID string) (CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byExternal[externalCallID]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return cloneSession(m.sessions[id]), nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, sessionID string, status Status, patch Patch) (CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	applyStatus(s, status)
	applyPatch(s, patch)
	return cloneSession(s), nil
}

func (m *MemoryStore) UpdateState(ctx context.Context, sessionID string, state CallState, patch Patch) (CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	s.CallState = state
	applyPatch(s, patch)
	return cloneSession(s), nil
}

func (m *MemoryStore) MergeCollected(ctx context.Context, sessionID string, extracted map[string]string) (CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	if s.CollectedData == nil {
		s.CollectedData = make(map[string]string)
	}
	MergeCollected(s.CollectedData, extracted)
	return cloneSession(s), nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, sessionID string, typ MessageType, text string, analysis *Analysis) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return 0, ErrNotFound
	}
	seq := len(m.messages[sessionID]) + 1
	m.messages[sessionID] = append(m.messages[sessionID], Message{
		SessionID: sessionID,
		Sequence:  seq,
		Type:      typ,
		Text:      text,
		Analysis:  analysis,
		Timestamp: time.Now().UTC(),
	})
	return seq, nil
}

func (m *MemoryStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[sessionID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryStore) AppendError(ctx context.Context, sessionID, kind, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	s.Errors = append(s.Errors, ErrorEntry{Timestamp: time.Now().UTC(), Kind: kind, Message: message})
}

func (m *MemoryStore) CreateInteraction(ctx context.Context, rec InteractionRecord) (InteractionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.interactions[rec.ID] = rec
	if s, ok := m.sessions[rec.SessionID]; ok {
		s.InteractionRecordID = rec.ID
	}
	return rec, nil
}

func (m *MemoryStore) Interaction(ctx context.Context, recordID string) (InteractionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.interactions[recordID]
	if !ok {
		return InteractionRecord{}, ErrNotFound
	}
	return rec, nil
}

func cloneSession(s *CallSession) CallSession {
	out := *s
	out.CollectedData = make(map[string]string, len(s.CollectedData))
	for k, v := range s.CollectedData {
		out.CollectedData[k] = v
	}
	if s.MissingFields != nil {
		out.MissingFields = append([]string(nil), s.MissingFields...)
	}
	if s.Errors != nil {
		out.Errors = append([]ErrorEntry(nil), s.Errors...)
	}
	return out
}
