package telnyx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/voicedesk/voicedesk/pkg/catalog"
	"github.com/voicedesk/voicedesk/pkg/language"
	"github.com/voicedesk/voicedesk/pkg/orchestrator"
	"github.com/voicedesk/voicedesk/pkg/session"
	"github.com/voicedesk/voicedesk/pkg/transports"
)

type Config struct {
	BusinessID   string `mapstructure:"business_id"`
	APIKey       string `mapstructure:"api_key"`
	ConnectionID string `mapstructure:"connection_id"`
	PublicURL    string `mapstructure:"public_url"`
	WebhookPath  string `mapstructure:"webhook_path"`
}

func (c Config) withDefaults() Config {
	if c.WebhookPath == "" {
		c.WebhookPath = "/telnyx/webhook"
	}
	return c
}

// Adapter bridges Telnyx's asynchronous call-control protocol. Webhooks only
// report what happened; every action on the call is a separate REST command,
// so per-call progress lives in the session's sub state.
type Adapter struct {
	cfg    Config
	orch   *orchestrator.Orchestrator
	cat    catalog.Catalog
	cmd    Commander
	logger *slog.Logger
}

func New(cfg Config, orch *orchestrator.Orchestrator, cat catalog.Catalog, cmd Commander, logger *slog.Logger) *Adapter {
	if cmd == nil {
		cmd = NewClient(cfg.APIKey)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{cfg: cfg.withDefaults(), orch: orch, cat: cat, cmd: cmd, logger: logger}
}

func (a *Adapter) Name() string { return "telnyx" }

func (a *Adapter) Register(mux *http.ServeMux) {
	mux.HandleFunc(a.cfg.WebhookPath, a.handleWebhook)
}

type webhook struct {
	Data struct {
		EventType string `json:"event_type"`
		Payload   struct {
			CallControlID     string `json:"call_control_id"`
			From              string `json:"from"`
			To                string `json:"to"`
			Direction         string `json:"direction"`
			HangupCause       string `json:"hangup_cause"`
			TranscriptionData struct {
				Transcript string `json:"transcript"`
				IsFinal    bool   `json:"is_final"`
			} `json:"transcription_data"`
		} `json:"payload"`
	} `json:"data"`
}

// normalize maps a Telnyx webhook onto the canonical transport event.
// The second return is false for events the adapter does not act on,
// including non-final and blank transcripts.
func normalize(hook webhook) (transports.Event, bool) {
	p := hook.Data.Payload
	ev := transports.Event{
		ExternalCallID: p.CallControlID,
		From:           p.From,
		To:             p.To,
		Direction:      session.DirectionInbound,
	}
	if p.Direction == "outgoing" {
		ev.Direction = session.DirectionOutbound
	}
	switch hook.Data.EventType {
	case "call.initiated":
		ev.Kind = transports.KindCallStarted
	case "call.answered":
		ev.Kind = transports.KindStatusUpdate
		ev.Raw = map[string]string{"event": "answered"}
	case "call.speak.ended":
		ev.Kind = transports.KindStatusUpdate
		ev.Raw = map[string]string{"event": "speak.ended"}
	case "call.transcription":
		if !p.TranscriptionData.IsFinal || strings.TrimSpace(p.TranscriptionData.Transcript) == "" {
			return transports.Event{}, false
		}
		ev.Kind = transports.KindTurnInput
		ev.Utterance = p.TranscriptionData.Transcript
	case "call.recording.saved":
		ev.Kind = transports.KindRecordingReady
	case "call.hangup":
		ev.Kind = transports.KindCallEnded
		ev.Raw = map[string]string{"cause": p.HangupCause}
	default:
		return transports.Event{}, false
	}
	return ev, true
}

// handleWebhook acks every event with 200. Telnyx redelivers on anything
// else, and a redelivered event is harder to handle than a logged failure.
func (a *Adapter) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var hook webhook
	if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	ev, ok := normalize(hook)
	if !ok || ev.ExternalCallID == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	switch ev.Kind {
	case transports.KindCallStarted:
		a.onInitiated(ctx, ev)
	case transports.KindTurnInput:
		a.onTranscription(ctx, ev.ExternalCallID, ev.Utterance)
	case transports.KindStatusUpdate:
		switch ev.Raw["event"] {
		case "answered":
			a.onAnswered(ctx, ev.ExternalCallID)
		case "speak.ended":
			a.onSpeakEnded(ctx, ev.ExternalCallID)
		}
	case transports.KindRecordingReady:
		a.logger.Info("telnyx_recording_saved", "call_id", ev.ExternalCallID)
	case transports.KindCallEnded:
		a.onHangup(ctx, ev.ExternalCallID, ev.Raw["cause"])
	}
	w.WriteHeader(http.StatusOK)
}

func (a *Adapter) onInitiated(ctx context.Context, ev transports.Event) {
	callID := ev.ExternalCallID
	if _, err := a.orch.SessionByExternalID(ctx, callID); err == nil {
		return
	}

	if _, _, err := a.orch.StartCall(ctx, orchestrator.StartParams{
		BusinessID:     a.cfg.BusinessID,
		ExternalCallID: callID,
		Provider:       "telnyx",
		From:           ev.From,
		To:             ev.To,
		Direction:      ev.Direction,
	}); err != nil {
		a.logger.Error("telnyx_call_start_failed", "call_id", callID, "error", err.Error())
		return
	}
	if ev.Direction == session.DirectionInbound {
		a.command(ctx, callID, "answer", map[string]any{})
	}
}

func (a *Adapter) onAnswered(ctx context.Context, callID string) {
	s, err := a.orch.SessionByExternalID(ctx, callID)
	if err != nil {
		a.logger.Warn("telnyx_unknown_session", "call_id", callID)
		return
	}
	if err := a.orch.RecordStatus(ctx, s.ID, session.StatusInProgress); err != nil {
		a.logger.Error("telnyx_status_update_failed", "session_id", s.ID, "error", err.Error())
	}

	// StartCall is idempotent, calling it again only recomputes the greeting.
	s, greeting, err := a.orch.StartCall(ctx, orchestrator.StartParams{
		BusinessID:     s.BusinessID,
		ExternalCallID: callID,
		Provider:       "telnyx",
		From:           s.From,
		To:             s.To,
		Direction:      s.Direction,
	})
	if err != nil {
		a.logger.Error("telnyx_greeting_failed", "call_id", callID, "error", err.Error())
		return
	}
	a.speak(ctx, s, greeting)
}

func (a *Adapter) onSpeakEnded(ctx context.Context, callID string) {
	s, err := a.orch.SessionByExternalID(ctx, callID)
	if err != nil {
		a.logger.Warn("telnyx_unknown_session", "call_id", callID)
		return
	}
	switch s.CallState {
	case session.StateTransferred:
		a.markSub(ctx, s, func(sub *session.SubState) { sub.Speaking = false })
		if to := a.transferNumber(s.BusinessID); to != "" {
			a.command(ctx, callID, "transfer", map[string]any{"to": to})
			return
		}
		a.command(ctx, callID, "hangup", map[string]any{})
	case session.StateCompleted, session.StateEnded:
		a.markSub(ctx, s, func(sub *session.SubState) { sub.Speaking = false })
		a.command(ctx, callID, "hangup", map[string]any{})
	default:
		transcribing := a.command(ctx, callID, "transcription_start", map[string]any{
			"language":             firstNonEmpty(s.DetectedLanguage, language.English),
			"transcription_engine": "B",
		})
		a.markSub(ctx, s, func(sub *session.SubState) {
			sub.Speaking = false
			sub.Transcribing = transcribing || sub.Transcribing
		})
	}
}

func (a *Adapter) onTranscription(ctx context.Context, callID, transcript string) {
	s, err := a.orch.SessionByExternalID(ctx, callID)
	if err != nil {
		a.logger.Warn("telnyx_unknown_session", "call_id", callID)
		return
	}
	if s.Sub.Speaking {
		// The caller talked over our prompt. Drop it, the prompt repeats
		// whatever is still missing.
		return
	}

	res, err := a.orch.ProcessTurn(ctx, s.ID, transcript)
	if err != nil {
		a.logger.Error("telnyx_turn_failed", "session_id", s.ID, "error", err.Error())
		a.speak(ctx, s, language.Apology(language.Code(firstNonEmpty(s.DetectedLanguage, language.English))))
		return
	}
	a.speak(ctx, s, res.Text)
}

func (a *Adapter) onHangup(ctx context.Context, callID, cause string) {
	s, err := a.orch.SessionByExternalID(ctx, callID)
	if err != nil {
		a.logger.Warn("telnyx_unknown_session", "call_id", callID)
		return
	}
	if err := a.orch.EndCall(ctx, s.ID, mapHangupCause(cause)); err != nil {
		a.logger.Error("telnyx_finalize_failed", "session_id", s.ID, "error", err.Error())
	}
}

func (a *Adapter) speak(ctx context.Context, s session.CallSession, text string) {
	if text == "" {
		return
	}
	lang := language.Code(firstNonEmpty(s.DetectedLanguage, language.English))
	if a.command(ctx, s.ExternalCallID, "speak", map[string]any{
		"payload":  text,
		"voice":    language.Voice(lang, "telnyx"),
		"language": language.Locale(lang),
	}) {
		a.markSub(ctx, s, func(sub *session.SubState) {
			sub.Answered = true
			sub.Speaking = true
		})
	}
}

func (a *Adapter) command(ctx context.Context, callID, action string, body map[string]any) bool {
	if err := a.cmd.Execute(ctx, callID, action, body); err != nil {
		a.logger.Error("telnyx_command_failed", "call_id", callID, "action", action, "error", err.Error())
		return false
	}
	return true
}

func (a *Adapter) markSub(ctx context.Context, s session.CallSession, mutate func(*session.SubState)) {
	sub := s.Sub
	mutate(&sub)
	if _, err := a.orch.PatchSub(ctx, s.ID, sub); err != nil {
		a.logger.Warn("telnyx_sub_state_update_failed", "session_id", s.ID, "error", err.Error())
	}
}

func (a *Adapter) transferNumber(businessID string) string {
	biz, err := a.cat.Business(businessID)
	if err != nil {
		return ""
	}
	return biz.Conversation.TransferPhone
}

func mapHangupCause(cause string) session.Status {
	switch strings.ToLower(strings.TrimSpace(cause)) {
	case "", "normal_clearing":
		return session.StatusCompleted
	case "user_busy":
		return session.StatusBusy
	case "timeout", "no_answer", "originator_cancel":
		return session.StatusNoAnswer
	case "call_rejected":
		return session.StatusFailed
	default:
		return session.StatusCompleted
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
