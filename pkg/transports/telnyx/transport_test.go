package telnyx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/voicedesk/voicedesk/pkg/catalog"
	"github.com/voicedesk/voicedesk/pkg/events"
	"github.com/voicedesk/voicedesk/pkg/fields"
	"github.com/voicedesk/voicedesk/pkg/llm"
	"github.com/voicedesk/voicedesk/pkg/orchestrator"
	"github.com/voicedesk/voicedesk/pkg/providers/mock"
	"github.com/voicedesk/voicedesk/pkg/session"
	"github.com/voicedesk/voicedesk/pkg/transports"
)

type command struct {
	CallID string
	Action string
	Body   map[string]any
}

type fakeCommander struct {
	mu       sync.Mutex
	commands []command
	err      error
}

func (f *fakeCommander) Execute(ctx context.Context, callControlID, action string, body map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.commands = append(f.commands, command{CallID: callControlID, Action: action, Body: body})
	return nil
}

func (f *fakeCommander) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.commands))
	for i, c := range f.commands {
		out[i] = c.Action
	}
	return out
}

func (f *fakeCommander) last() command {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) == 0 {
		return command{}
	}
	return f.commands[len(f.commands)-1]
}

func newTestAdapter(t *testing.T, model *mock.LLMClient) (*Adapter, *fakeCommander, *session.MemoryStore) {
	t.Helper()
	cat := catalog.NewMemory()
	cat.AddBusiness(catalog.Business{
		ID:       "biz-1",
		Name:     "Mario's Pizzeria",
		Provider: "telnyx",
		Active:   true,
		Conversation: catalog.ConversationSettings{
			EnableTransfer: true,
			TransferPhone:  "+15559998888",
		},
	})
	cat.AddService(catalog.Service{
		ID:           "svc-pizza",
		BusinessID:   "biz-1",
		Name:         "Pizza Margherita",
		WorkflowType: catalog.WorkflowOrder,
		Active:       true,
		Fields: []fields.Definition{
			{Name: "quantity", Label: "Quantity", Type: fields.TypeNumber, Required: true, Order: 1},
		},
	})
	store := session.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := orchestrator.New(store, cat, model, events.NewMockPublisher(), logger)
	cmd := &fakeCommander{}
	return New(Config{BusinessID: "biz-1"}, orch, cat, cmd, logger), cmd, store
}

func deliver(t *testing.T, a *Adapter, eventType, callID string, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	if payload == nil {
		payload = map[string]any{}
	}
	payload["call_control_id"] = callID
	body, err := json.Marshal(map[string]any{
		"data": map[string]any{"event_type": eventType, "payload": payload},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/telnyx/webhook", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handleWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s acked with %d", eventType, rec.Code)
	}
	return rec
}

func transcription(text string) map[string]any {
	return map[string]any{
		"transcription_data": map[string]any{"transcript": text, "is_final": true},
	}
}

func TestInboundCallLifecycle(t *testing.T) {
	model := mock.NewLLMClient().ScriptAnalysis(llm.Analysis{Intent: "order", Confidence: 0.9})
	a, cmd, store := newTestAdapter(t, model)
	ctx := context.Background()

	deliver(t, a, "call.initiated", "cc-100", map[string]any{"from": "+15550001111", "to": "+15550002222", "direction": "incoming"})
	if got := cmd.actions(); len(got) != 1 || got[0] != "answer" {
		t.Fatalf("after initiated: %v", got)
	}

	deliver(t, a, "call.answered", "cc-100", nil)
	last := cmd.last()
	if last.Action != "speak" {
		t.Fatalf("after answered: %v", cmd.actions())
	}
	if text, _ := last.Body["payload"].(string); !strings.Contains(text, "Mario's Pizzeria") {
		t.Fatalf("greeting = %q", text)
	}

	deliver(t, a, "call.speak.ended", "cc-100", nil)
	if cmd.last().Action != "transcription_start" {
		t.Fatalf("after speak ended: %v", cmd.actions())
	}
	s, _ := store.GetByExternalID(ctx, "cc-100")
	if !s.Sub.Transcribing {
		t.Fatalf("transcribing flag not set")
	}
	if s.Sub.Speaking {
		t.Fatalf("speaking flag still set after speak ended: %+v", s.Sub)
	}

	deliver(t, a, "call.transcription", "cc-100", transcription("I want to order a pizza margherita"))
	if cmd.last().Action != "speak" {
		t.Fatalf("after transcription: %v", cmd.actions())
	}
	s, _ = store.GetByExternalID(ctx, "cc-100")
	if s.CallState != session.StateCollectingData {
		t.Fatalf("call state = %s", s.CallState)
	}

	deliver(t, a, "call.hangup", "cc-100", map[string]any{"hangup_cause": "normal_clearing"})
	s, _ = store.GetByExternalID(ctx, "cc-100")
	if s.Status != session.StatusCompleted {
		t.Fatalf("status = %s", s.Status)
	}
}

func TestDuplicateInitiatedIsNoOp(t *testing.T) {
	a, cmd, store := newTestAdapter(t, mock.NewLLMClient())

	deliver(t, a, "call.initiated", "cc-101", map[string]any{"direction": "incoming"})
	deliver(t, a, "call.initiated", "cc-101", map[string]any{"direction": "incoming"})

	if got := cmd.actions(); len(got) != 1 {
		t.Fatalf("answer issued %d times: %v", len(got), got)
	}
	s, err := store.GetByExternalID(context.Background(), "cc-101")
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	history, _ := store.History(context.Background(), s.ID)
	if len(history) != 1 {
		t.Fatalf("greeting recorded %d times", len(history))
	}
}

func TestUnknownSessionEventsAreAcked(t *testing.T) {
	a, cmd, _ := newTestAdapter(t, mock.NewLLMClient())

	deliver(t, a, "call.answered", "cc-ghost", nil)
	deliver(t, a, "call.speak.ended", "cc-ghost", nil)
	deliver(t, a, "call.transcription", "cc-ghost", transcription("hello"))
	deliver(t, a, "call.hangup", "cc-ghost", nil)

	if got := cmd.actions(); len(got) != 0 {
		t.Fatalf("commands issued for unknown call: %v", got)
	}
}

func TestSpeakEndedAfterCompletionHangsUp(t *testing.T) {
	a, cmd, store := newTestAdapter(t, mock.NewLLMClient())
	ctx := context.Background()

	deliver(t, a, "call.initiated", "cc-102", map[string]any{"direction": "incoming"})
	s, _ := store.GetByExternalID(ctx, "cc-102")
	if _, err := store.UpdateState(ctx, s.ID, session.StateCompleted, session.Patch{}); err != nil {
		t.Fatalf("force state: %v", err)
	}

	deliver(t, a, "call.speak.ended", "cc-102", nil)
	if cmd.last().Action != "hangup" {
		t.Fatalf("expected hangup: %v", cmd.actions())
	}
}

func TestSpeakEndedAfterTransferConnectsAgent(t *testing.T) {
	a, cmd, store := newTestAdapter(t, mock.NewLLMClient())
	ctx := context.Background()

	deliver(t, a, "call.initiated", "cc-103", map[string]any{"direction": "incoming"})
	s, _ := store.GetByExternalID(ctx, "cc-103")
	if _, err := store.UpdateState(ctx, s.ID, session.StateTransferred, session.Patch{}); err != nil {
		t.Fatalf("force state: %v", err)
	}

	deliver(t, a, "call.speak.ended", "cc-103", nil)
	last := cmd.last()
	if last.Action != "transfer" || last.Body["to"] != "+15559998888" {
		t.Fatalf("expected transfer to agent: %+v", last)
	}
}

func TestDuplicateHangupFinalizesOnce(t *testing.T) {
	a, _, store := newTestAdapter(t, mock.NewLLMClient())
	ctx := context.Background()

	deliver(t, a, "call.initiated", "cc-104", map[string]any{"direction": "incoming"})
	deliver(t, a, "call.hangup", "cc-104", map[string]any{"hangup_cause": "normal_clearing"})
	deliver(t, a, "call.hangup", "cc-104", map[string]any{"hangup_cause": "user_busy"})

	s, _ := store.GetByExternalID(ctx, "cc-104")
	if s.Status != session.StatusCompleted {
		t.Fatalf("status = %s", s.Status)
	}
}

func TestNonFinalTranscriptsIgnored(t *testing.T) {
	a, cmd, _ := newTestAdapter(t, mock.NewLLMClient())

	deliver(t, a, "call.initiated", "cc-105", map[string]any{"direction": "incoming"})
	before := len(cmd.actions())
	deliver(t, a, "call.transcription", "cc-105", map[string]any{
		"transcription_data": map[string]any{"transcript": "I want", "is_final": false},
	})
	deliver(t, a, "call.transcription", "cc-105", transcription("   "))
	if got := cmd.actions(); len(got) != before {
		t.Fatalf("commands issued for partial transcript: %v", got)
	}
}

func TestConsecutiveTurnsProcessed(t *testing.T) {
	model := mock.NewLLMClient().ScriptAnalysis(
		llm.Analysis{Intent: "order", Confidence: 0.9},
		llm.Analysis{Intent: "order", Confidence: 0.9, DetectedFields: map[string]string{"quantity": "2"}},
	)
	a, cmd, store := newTestAdapter(t, model)
	ctx := context.Background()

	deliver(t, a, "call.initiated", "cc-106", map[string]any{"direction": "incoming"})
	deliver(t, a, "call.answered", "cc-106", nil)
	deliver(t, a, "call.speak.ended", "cc-106", nil)
	deliver(t, a, "call.transcription", "cc-106", transcription("I want a pizza margherita"))
	deliver(t, a, "call.speak.ended", "cc-106", nil)
	deliver(t, a, "call.transcription", "cc-106", transcription("two please"))

	if cmd.last().Action != "speak" {
		t.Fatalf("second turn not answered: %v", cmd.actions())
	}
	s, _ := store.GetByExternalID(ctx, "cc-106")
	if s.CallState != session.StateConfirming {
		t.Fatalf("call state = %s, want %s", s.CallState, session.StateConfirming)
	}
	if s.CollectedData["quantity"] != "2" {
		t.Fatalf("collected = %v", s.CollectedData)
	}
}

func hookFor(t *testing.T, eventType string, payload map[string]any) webhook {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"data": map[string]any{"event_type": eventType, "payload": payload},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var h webhook
	if err := json.Unmarshal(body, &h); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return h
}

func TestNormalizeCanonicalEvents(t *testing.T) {
	ev, ok := normalize(hookFor(t, "call.initiated", map[string]any{
		"call_control_id": "cc-1", "from": "+15550001111", "to": "+15550002222", "direction": "incoming",
	}))
	if !ok || ev.Kind != transports.KindCallStarted {
		t.Fatalf("initiated = %+v ok=%v", ev, ok)
	}
	if ev.From != "+15550001111" || ev.Direction != session.DirectionInbound {
		t.Fatalf("initiated fields = %+v", ev)
	}

	ev, ok = normalize(hookFor(t, "call.transcription", map[string]any{
		"call_control_id":    "cc-1",
		"transcription_data": map[string]any{"transcript": "two pizzas", "is_final": true},
	}))
	if !ok || ev.Kind != transports.KindTurnInput || ev.Utterance != "two pizzas" {
		t.Fatalf("transcription = %+v ok=%v", ev, ok)
	}

	if _, ok := normalize(hookFor(t, "call.transcription", map[string]any{
		"call_control_id":    "cc-1",
		"transcription_data": map[string]any{"transcript": "two pi", "is_final": false},
	})); ok {
		t.Fatal("non-final transcript normalized")
	}

	ev, ok = normalize(hookFor(t, "call.hangup", map[string]any{
		"call_control_id": "cc-1", "hangup_cause": "user_busy",
	}))
	if !ok || ev.Kind != transports.KindCallEnded || ev.Raw["cause"] != "user_busy" {
		t.Fatalf("hangup = %+v ok=%v", ev, ok)
	}

	if _, ok := normalize(hookFor(t, "call.dtmf.received", map[string]any{
		"call_control_id": "cc-1",
	})); ok {
		t.Fatal("unhandled event normalized")
	}
}
