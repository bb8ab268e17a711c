package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists one JSON document per session with optimistic
// WATCH transactions for read-modify-write updates. A secondary key maps the
// provider's external call id to the session id.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(opts RedisOptions, logger *slog.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisStore{client: client, logger: logger}
}

// Ping verifies connectivity at startup.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error { return r.client.Close() }

func sessionKey(id string) string     { return "voicedesk:session:" + id }
func externalKey(id string) string    { return "voicedesk:extcall:" + id }
func messagesKey(id string) string    { return "voicedesk:messages:" + id }
func interactionKey(id string) string { return "voicedesk:interaction:" + id }

const txnRetries = 5

func (r *RedisStore) Create(ctx context.Context, s CallSession) (CallSession, error) {
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

	// SETNX on the external-id key makes creation idempotent: the first
	// webhook wins, duplicates load the existing document.
	if s.ExternalCallID != "" {
		ok, err := r.client.SetNX(ctx, externalKey(s.ExternalCallID), s.ID, 0).Result()
		if err != nil {
			return CallSession{}, fmt.Errorf("session create: %w", err)
		}
		if !ok {
			return r.GetByExternalID(ctx, s.ExternalCallID)
		}
	}
	if err := r.write(ctx, s); err != nil {
		return CallSession{}, err
	}
	return s, nil
}

func (r *RedisStore) write(ctx context.Context, s CallSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(s.ID), b, 0).Err()
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (CallSession, error) {
	b, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CallSession{}, ErrNotFound
	}
	if err != nil {
		return CallSession{}, fmt.Errorf("session get: %w", err)
	}
	var s CallSession
	if err := json.Unmarshal(b, &s); err != nil {
		return CallSession{}, fmt.Errorf("session decode: %w", err)
	}
	return s, nil
}

func (r *RedisStore) GetByExternalID(ctx context.Context, externalCallID string) (CallSession, error) {
	id, err := r.client.Get(ctx, externalKey(externalCallID)).Result()
	if errors.Is(err, redis.Nil) {
		return CallSession{}, ErrNotFound
	}
	if err != nil {
		return CallSession{}, fmt.Errorf("session lookup: %w", err)
	}
	return r.Get(ctx, id)
}

// mutate runs fn against the current document inside a WATCH transaction and
// retries on contention.
func (r *RedisStore) mutate(ctx context.Context, sessionID string, fn func(*CallSession)) (CallSession, error) {
	var out CallSession
	key := sessionKey(sessionID)
	for i := 0; i < txnRetries; i++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			b, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			var s CallSession
			if err := json.Unmarshal(b, &s); err != nil {
				return err
			}
			fn(&s)
			updated, err := json.Marshal(s)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			if err == nil {
				out = s
			}
			return err
		}, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return CallSession{}, err
	}
	return CallSession{}, fmt.Errorf("session update: transaction contention on %s", sessionID)
}

func (r *RedisStore) UpdateStatus(ctx context.Context, sessionID string, status Status, patch Patch) (CallSession, error) {
	return r.mutate(ctx, sessionID, func(s *CallSession) {
		applyStatus(s, status)
		applyPatch(s, patch)
	})
}

func (r *RedisStore) UpdateState(ctx context.Context, sessionID string, state CallState, patch Patch) (CallSession, error) {
	return r.mutate(ctx, sessionID, func(s *CallSession) {
		s.CallState = state
		applyPatch(s, patch)
	})
}

func (r *RedisStore) MergeCollected(ctx context.Context, sessionID string, extracted map[string]string) (CallSession, error) {
	return r.mutate(ctx, sessionID, func(s *CallSession) {
		if s.CollectedData == nil {
			s.CollectedData = make(map[string]string)
		}
		MergeCollected(s.CollectedData, extracted)
	})
}

func (r *RedisStore) AppendMessage(ctx context.Context, sessionID string, typ MessageType, text string, analysis *Analysis) (int, error) {
	key := messagesKey(sessionID)
	var seq int
	for i := 0; i < txnRetries; i++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			count, err := tx.LLen(ctx, key).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			seq = int(count) + 1
			msg := Message{
				SessionID: sessionID,
				Sequence:  seq,
				Type:      typ,
				Text:      text,
				Analysis:  analysis,
				Timestamp: time.Now().UTC(),
			}
			b, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.RPush(ctx, key, b)
				return nil
			})
			return err
		}, key)
		if err == nil {
			return seq, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return 0, err
	}
	return 0, fmt.Errorf("append message: transaction contention on %s", sessionID)
}

func (r *RedisStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	raw, err := r.client.LRange(ctx, messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// AppendError is best-effort: session error logging must never fail a turn.
func (r *RedisStore) AppendError(ctx context.Context, sessionID, kind, message string) {
	_, err := r.mutate(ctx, sessionID, func(s *CallSession) {
		s.Errors = append(s.Errors, ErrorEntry{Timestamp: time.Now().UTC(), Kind: kind, Message: message})
	})
	if err != nil && r.logger != nil {
		r.logger.Warn("session_error_append_failed", "session_id", sessionID, "error", err.Error())
	}
}

func (r *RedisStore) CreateInteraction(ctx context.Context, rec InteractionRecord) (InteractionRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return InteractionRecord{}, err
	}
	if err := r.client.Set(ctx, interactionKey(rec.ID), b, 0).Err(); err != nil {
		return InteractionRecord{}, fmt.Errorf("interaction create: %w", err)
	}
	if _, err := r.mutate(ctx, rec.SessionID, func(s *CallSession) {
		s.InteractionRecordID = rec.ID
	}); err != nil {
		return InteractionRecord{}, err
	}
	return rec, nil
}

func (r *RedisStore) Interaction(ctx context.Context, recordID string) (InteractionRecord, error) {
	b, err := r.client.Get(ctx, interactionKey(recordID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return InteractionRecord{}, ErrNotFound
	}
	if err != nil {
		return InteractionRecord{}, fmt.Errorf("interaction get: %w", err)
	}
	var rec InteractionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return InteractionRecord{}, err
	}
	return rec, nil
}
