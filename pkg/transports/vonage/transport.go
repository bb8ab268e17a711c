package vonage

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/voicedesk/voicedesk/pkg/language"
	"github.com/voicedesk/voicedesk/pkg/orchestrator"
	"github.com/voicedesk/voicedesk/pkg/session"
	"github.com/voicedesk/voicedesk/pkg/transports"
)

type Config struct {
	BusinessID    string `mapstructure:"business_id"`
	APIKey        string `mapstructure:"api_key"`
	APISecret     string `mapstructure:"api_secret"`
	ApplicationID string `mapstructure:"application_id"`
	PrivateKey    string `mapstructure:"private_key"`
	PublicURL     string `mapstructure:"public_url"`
	AnswerPath    string `mapstructure:"answer_path"`
	SpeechPath    string `mapstructure:"speech_path"`
	EventPath     string `mapstructure:"event_path"`
}

func (c Config) withDefaults() Config {
	if c.AnswerPath == "" {
		c.AnswerPath = "/vonage/answer"
	}
	if c.SpeechPath == "" {
		c.SpeechPath = "/vonage/speech"
	}
	if c.EventPath == "" {
		c.EventPath = "/vonage/event"
	}
	return c
}

// ncco is one Nexmo Call Control Object. Responses are JSON arrays of these.
type ncco map[string]any

// Adapter bridges Vonage's synchronous NCCO protocol: the answer and speech
// webhooks each expect the next NCCO array as the response body.
type Adapter struct {
	cfg    Config
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

func New(cfg Config, orch *orchestrator.Orchestrator, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{cfg: cfg.withDefaults(), orch: orch, logger: logger}
}

func (a *Adapter) Name() string { return "vonage" }

func (a *Adapter) Register(mux *http.ServeMux) {
	mux.HandleFunc(a.cfg.AnswerPath, a.handleAnswer)
	mux.HandleFunc(a.cfg.SpeechPath, a.handleSpeech)
	mux.HandleFunc(a.cfg.EventPath, a.handleEvent)
}

func (a *Adapter) handleAnswer(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("uuid")
	if callID == "" {
		callID = r.URL.Query().Get("conversation_uuid")
	}
	if callID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s, greeting, err := a.orch.StartCall(r.Context(), orchestrator.StartParams{
		BusinessID:     a.cfg.BusinessID,
		ExternalCallID: callID,
		Provider:       "vonage",
		From:           r.URL.Query().Get("from"),
		To:             r.URL.Query().Get("to"),
		Direction:      session.DirectionInbound,
	})
	if err != nil {
		a.logger.Error("vonage_call_start_failed", "call_id", callID, "error", err.Error())
		writeNCCO(w, a.hangupNCCO(language.Apology(language.English), language.English))
		return
	}

	lang := language.Code(s.DetectedLanguage)
	writeNCCO(w, a.promptNCCO(greeting, lang))
}

type speechWebhook struct {
	UUID             string `json:"uuid"`
	ConversationUUID string `json:"conversation_uuid"`
	Speech           struct {
		TimeoutReason string `json:"timeout_reason"`
		Results       []struct {
			Text       string `json:"text"`
			Confidence string `json:"confidence"`
		} `json:"results"`
	} `json:"speech"`
}

func (a *Adapter) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var payload speechWebhook
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	callID := payload.UUID
	if callID == "" {
		callID = payload.ConversationUUID
	}

	s, err := a.orch.SessionByExternalID(r.Context(), callID)
	if err != nil {
		a.logger.Warn("vonage_unknown_session", "call_id", callID)
		writeNCCO(w, a.hangupNCCO(language.Apology(language.English), language.English))
		return
	}
	lang := language.Code(s.DetectedLanguage)

	utterance := ""
	if len(payload.Speech.Results) > 0 {
		utterance = strings.TrimSpace(payload.Speech.Results[0].Text)
	}
	if utterance == "" {
		writeNCCO(w, a.promptNCCO(language.RepeatPrompt(lang), lang))
		return
	}

	res, err := a.orch.ProcessTurn(r.Context(), s.ID, utterance)
	if err != nil {
		a.logger.Error("vonage_turn_failed", "session_id", s.ID, "error", err.Error())
		writeNCCO(w, a.hangupNCCO(language.Apology(lang), lang))
		return
	}

	current, err := a.orch.SessionByExternalID(r.Context(), callID)
	if err != nil {
		current = s
	}
	writeNCCO(w, a.render(transports.FromResult(res, current, "vonage")))
}

type eventWebhook struct {
	UUID             string `json:"uuid"`
	ConversationUUID string `json:"conversation_uuid"`
	Status           string `json:"status"`
}

func (a *Adapter) handleEvent(w http.ResponseWriter, r *http.Request) {
	var payload eventWebhook
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	callID := payload.UUID
	if callID == "" {
		callID = payload.ConversationUUID
	}
	status, ok := mapStatus(payload.Status)
	if callID == "" || !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	s, err := a.orch.SessionByExternalID(r.Context(), callID)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := a.orch.RecordStatus(r.Context(), s.ID, status); err != nil {
		a.logger.Error("vonage_status_update_failed", "session_id", s.ID, "error", err.Error())
	}
	w.WriteHeader(http.StatusOK)
}

// render maps a canonical instruction onto an NCCO array.
func (a *Adapter) render(inst transports.Instruction) []ncco {
	switch {
	case inst.TransferTo != "":
		out := []ncco{}
		if inst.SayText != "" {
			out = append(out, talk(inst.SayText, inst.Voice, inst.Locale))
		}
		return append(out, ncco{
			"action":   "connect",
			"endpoint": []map[string]string{{"type": "phone", "number": inst.TransferTo}},
		})
	case inst.Hangup:
		out := []ncco{}
		if inst.SayText != "" {
			out = append(out, talk(inst.SayText, inst.Voice, inst.Locale))
		}
		return out
	default:
		out := []ncco{}
		if inst.SayText != "" {
			out = append(out, talk(inst.SayText, inst.Voice, inst.Locale))
		}
		return append(out, a.speechInput(inst.Locale))
	}
}

func (a *Adapter) promptNCCO(text string, lang language.Code) []ncco {
	return []ncco{
		talk(text, language.Voice(lang, "vonage"), language.Locale(lang)),
		a.speechInput(language.Locale(lang)),
	}
}

func (a *Adapter) hangupNCCO(text string, lang language.Code) []ncco {
	return []ncco{talk(text, language.Voice(lang, "vonage"), language.Locale(lang))}
}

func (a *Adapter) speechInput(locale string) ncco {
	return ncco{
		"action": "input",
		"type":   []string{"speech"},
		"speech": map[string]any{
			"endOnSilence": 1,
			"language":     locale,
		},
		"eventUrl": []string{a.webhookURL(a.cfg.SpeechPath)},
	}
}

func talk(text, voice, locale string) ncco {
	n := ncco{
		"action":   "talk",
		"text":     text,
		"language": locale,
	}
	if voice != "" {
		n["voiceName"] = voice
	}
	return n
}

func (a *Adapter) webhookURL(path string) string {
	return webhookURL(a.cfg.PublicURL, path)
}

func webhookURL(publicURL, path string) string {
	if publicURL == "" {
		return path
	}
	return strings.TrimRight(publicURL, "/") + path
}

func writeNCCO(w http.ResponseWriter, body []ncco) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func mapStatus(raw string) (session.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "started":
		return session.StatusInitiated, true
	case "ringing":
		return session.StatusRinging, true
	case "answered":
		return session.StatusInProgress, true
	case "completed":
		return session.StatusCompleted, true
	case "busy":
		return session.StatusBusy, true
	case "timeout", "unanswered":
		return session.StatusNoAnswer, true
	case "failed", "rejected":
		return session.StatusFailed, true
	case "cancelled", "canceled":
		return session.StatusCancelled, true
	default:
		return "", false
	}
}
