package session

import (
	"context"
	"testing"
)

func TestCreateIdempotentByExternalID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.Create(ctx, CallSession{
		ExternalCallID: "CA123",
		BusinessID:     "biz-1",
		From:           "+15550001111",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := store.Create(ctx, CallSession{
		ExternalCallID: "CA123",
		BusinessID:     "biz-1",
		From:           "+15550001111",
	})
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("duplicate create returned a new session: %s vs %s", first.ID, second.ID)
	}
	if first.Status != StatusInitiated || first.CallState != StateGreeting {
		t.Fatalf("unexpected defaults: status=%s state=%s", first.Status, first.CallState)
	}
}

func TestTerminalStatusIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s, _ := store.Create(ctx, CallSession{ExternalCallID: "CA200"})

	if _, err := store.UpdateStatus(ctx, s.ID, StatusInProgress, Patch{}); err != nil {
		t.Fatalf("in-progress: %v", err)
	}
	done, err := store.UpdateStatus(ctx, s.ID, StatusCompleted, Patch{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.EndTime == nil {
		t.Fatal("terminal status did not set end time")
	}

	after, err := store.UpdateStatus(ctx, s.ID, StatusInProgress, Patch{})
	if err != nil {
		t.Fatalf("post-terminal update: %v", err)
	}
	if after.Status != StatusCompleted {
		t.Fatalf("terminal status regressed to %s", after.Status)
	}
}

func TestAppendMessageSequence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s, _ := store.Create(ctx, CallSession{ExternalCallID: "CA300"})

	for want := 1; want <= 4; want++ {
		seq, err := store.AppendMessage(ctx, s.ID, MessageUser, "hello", nil)
		if err != nil {
			t.Fatalf("append %d: %v", want, err)
		}
		if seq != want {
			t.Fatalf("sequence = %d, want %d", seq, want)
		}
	}
	history, err := store.History(ctx, s.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4", len(history))
	}
	for i, msg := range history {
		if msg.Sequence != i+1 {
			t.Fatalf("history[%d].Sequence = %d", i, msg.Sequence)
		}
	}
}

func TestMergeCollectedFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s, _ := store.Create(ctx, CallSession{ExternalCallID: "CA400"})

	if _, err := store.MergeCollected(ctx, s.ID, map[string]string{"customer_name": "Ali", "quantity": "3"}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	after, err := store.MergeCollected(ctx, s.ID, map[string]string{"customer_name": "Bob", "address": "12 Mill Rd", "notes": ""})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if after.CollectedData["customer_name"] != "Ali" {
		t.Fatalf("existing value overwritten: %q", after.CollectedData["customer_name"])
	}
	if after.CollectedData["address"] != "12 Mill Rd" {
		t.Fatalf("new value not merged: %q", after.CollectedData["address"])
	}
	if _, ok := after.CollectedData["notes"]; ok {
		t.Fatal("empty value should not be stored")
	}
}

func TestMergeCollectedReportsNewKeys(t *testing.T) {
	data := map[string]string{"quantity": "2"}
	added := MergeCollected(data, map[string]string{"quantity": "5", "size": "large", "blank": "  "})
	if len(added) != 1 || added[0] != "size" {
		t.Fatalf("added = %v, want [size]", added)
	}
	if data["quantity"] != "2" {
		t.Fatalf("quantity overwritten: %q", data["quantity"])
	}
}

func TestInteractionBackLink(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s, _ := store.Create(ctx, CallSession{ExternalCallID: "CA500", BusinessID: "biz-1"})

	rec, err := store.CreateInteraction(ctx, InteractionRecord{
		SessionID:  s.ID,
		BusinessID: "biz-1",
		ServiceID:  "svc-pizza",
		Data:       map[string]string{"quantity": "3"},
	})
	if err != nil {
		t.Fatalf("create interaction: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("interaction id not assigned")
	}
	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.InteractionRecordID != rec.ID {
		t.Fatalf("session not back-linked: %q", got.InteractionRecordID)
	}
	loaded, err := store.Interaction(ctx, rec.ID)
	if err != nil {
		t.Fatalf("load interaction: %v", err)
	}
	if loaded.Data["quantity"] != "3" {
		t.Fatalf("interaction data lost: %v", loaded.Data)
	}
}

func TestUnknownSessionReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("Get err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetByExternalID(ctx, "CA999"); err != ErrNotFound {
		t.Fatalf("GetByExternalID err = %v, want ErrNotFound", err)
	}
}

func TestCreateReturnsDetachedCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s, err := store.Create(ctx, CallSession{ExternalCallID: "CA300"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s.CollectedData["quantity"] = "99"

	stored, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := stored.CollectedData["quantity"]; ok {
		t.Fatal("mutating the returned session leaked into the store")
	}

	dup, err := store.Create(ctx, CallSession{ExternalCallID: "CA300"})
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	dup.CollectedData["address"] = "12 Main St"
	stored, _ = store.Get(ctx, s.ID)
	if _, ok := stored.CollectedData["address"]; ok {
		t.Fatal("mutating the duplicate-create session leaked into the store")
	}
}
