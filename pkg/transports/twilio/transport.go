package twilio

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/voicedesk/voicedesk/pkg/errorsx"
	"github.com/voicedesk/voicedesk/pkg/language"
	"github.com/voicedesk/voicedesk/pkg/orchestrator"
	"github.com/voicedesk/voicedesk/pkg/session"
	"github.com/voicedesk/voicedesk/pkg/transports"
)

type Config struct {
	BusinessID  string `mapstructure:"business_id"`
	AccountSID  string `mapstructure:"account_sid"`
	AuthToken   string `mapstructure:"auth_token"`
	PhoneNumber string `mapstructure:"phone_number"`
	PublicURL   string `mapstructure:"public_url"`
	VoicePath   string `mapstructure:"voice_path"`
	SpeechPath  string `mapstructure:"speech_path"`
	StatusPath  string `mapstructure:"status_path"`
}

func (c Config) withDefaults() Config {
	if c.VoicePath == "" {
		c.VoicePath = "/twilio/voice"
	}
	if c.SpeechPath == "" {
		c.SpeechPath = "/twilio/speech"
	}
	if c.StatusPath == "" {
		c.StatusPath = "/twilio/status"
	}
	return c
}

// Adapter bridges Twilio's synchronous TwiML protocol: each webhook delivers
// the caller's speech and expects the next TwiML document as the response.
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

func (a *Adapter) Name() string { return "twilio" }

func (a *Adapter) Register(mux *http.ServeMux) {
	mux.HandleFunc(a.cfg.VoicePath, a.handleVoice)
	mux.HandleFunc(a.cfg.SpeechPath, a.handleSpeech)
	mux.HandleFunc(a.cfg.StatusPath, a.handleStatus)
}

func (a *Adapter) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if a.cfg.AuthToken != "" && !a.validateRequest(r) {
		a.logger.Warn("twilio_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	callSID := r.FormValue("CallSid")
	if callSID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s, greeting, err := a.orch.StartCall(r.Context(), orchestrator.StartParams{
		BusinessID:     a.cfg.BusinessID,
		ExternalCallID: callSID,
		Provider:       "twilio",
		From:           r.FormValue("From"),
		To:             r.FormValue("To"),
		Direction:      session.DirectionInbound,
	})
	if err != nil {
		a.logger.Error("twilio_call_start_failed", "call_sid", callSID, "error", err.Error())
		writeTwiML(w, `<Response><Say>`+xmlEscape(language.Apology(language.English))+`</Say><Hangup/></Response>`)
		return
	}

	inst := transports.Instruction{
		SayText:           greeting,
		ContinueListening: true,
		Voice:             language.Voice(language.Code(s.DetectedLanguage), "twilio"),
		Locale:            language.Locale(language.Code(s.DetectedLanguage)),
	}
	writeTwiML(w, a.renderTwiML(inst))
}

func (a *Adapter) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if a.cfg.AuthToken != "" && !a.validateRequest(r) {
		a.logger.Warn("twilio_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	callSID := r.FormValue("CallSid")
	utterance := strings.TrimSpace(r.FormValue("SpeechResult"))

	s, err := a.orch.SessionByExternalID(r.Context(), callSID)
	if err != nil {
		a.logger.Warn("twilio_unknown_session", "call_sid", callSID)
		writeTwiML(w, `<Response><Say>`+xmlEscape(language.Apology(language.English))+`</Say><Hangup/></Response>`)
		return
	}
	lang := language.Code(s.DetectedLanguage)

	if utterance == "" {
		inst := transports.Instruction{
			SayText:           language.RepeatPrompt(lang),
			ContinueListening: true,
			Voice:             language.Voice(lang, "twilio"),
			Locale:            language.Locale(lang),
		}
		writeTwiML(w, a.renderTwiML(inst))
		return
	}

	res, err := a.orch.ProcessTurn(r.Context(), s.ID, utterance)
	if err != nil {
		a.logger.Error("twilio_turn_failed", "session_id", s.ID, "error", err.Error())
		writeTwiML(w, `<Response><Say>`+xmlEscape(language.Apology(lang))+`</Say><Hangup/></Response>`)
		return
	}

	current, err := a.orch.SessionByExternalID(r.Context(), callSID)
	if err != nil {
		current = s
	}
	writeTwiML(w, a.renderTwiML(transports.FromResult(res, current, "twilio")))
}

func (a *Adapter) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if a.cfg.AuthToken != "" && !a.validateRequest(r) {
		a.logger.Warn("twilio_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	callSID := r.FormValue("CallSid")
	status, ok := mapStatus(r.FormValue("CallStatus"))
	if callSID == "" || !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	s, err := a.orch.SessionByExternalID(r.Context(), callSID)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := a.orch.RecordStatus(r.Context(), s.ID, status); err != nil {
		a.logger.Error("twilio_status_update_failed", "session_id", s.ID, "error", err.Error())
	}
	w.WriteHeader(http.StatusOK)
}

// renderTwiML turns a canonical instruction into the TwiML response body.
func (a *Adapter) renderTwiML(inst transports.Instruction) string {
	var b strings.Builder
	b.WriteString(`<Response>`)
	say := ""
	if inst.SayText != "" {
		say = `<Say voice="` + xmlEscape(inst.Voice) + `" language="` + xmlEscape(inst.Locale) + `">` + xmlEscape(inst.SayText) + `</Say>`
	}
	switch {
	case inst.TransferTo != "":
		b.WriteString(say)
		b.WriteString(`<Dial>` + xmlEscape(inst.TransferTo) + `</Dial>`)
	case inst.Hangup:
		b.WriteString(say)
		b.WriteString(`<Hangup/>`)
	default:
		b.WriteString(`<Gather input="speech" action="` + xmlEscape(a.cfg.SpeechPath) + `" method="POST" speechTimeout="auto" language="` + xmlEscape(inst.Locale) + `">`)
		b.WriteString(say)
		b.WriteString(`</Gather>`)
		b.WriteString(`<Redirect method="POST">` + xmlEscape(a.cfg.SpeechPath) + `</Redirect>`)
	}
	b.WriteString(`</Response>`)
	return b.String()
}

func writeTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(body))
}

func mapStatus(raw string) (session.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued", "initiated":
		return session.StatusInitiated, true
	case "ringing":
		return session.StatusRinging, true
	case "in-progress", "answered":
		return session.StatusInProgress, true
	case "completed":
		return session.StatusCompleted, true
	case "busy":
		return session.StatusBusy, true
	case "no-answer", "no_answer":
		return session.StatusNoAnswer, true
	case "failed":
		return session.StatusFailed, true
	case "canceled", "cancelled":
		return session.StatusCancelled, true
	default:
		return "", false
	}
}

func (a *Adapter) validateRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	validator := twilioclient.NewRequestValidator(a.cfg.AuthToken)
	return validator.ValidateBody(a.requestURL(r), body, signature)
}

func (a *Adapter) requestURL(r *http.Request) string {
	if a.cfg.PublicURL != "" {
		return strings.TrimRight(a.cfg.PublicURL, "/") + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func xmlEscape(in string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(in)
}
