package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voicedesk/voicedesk/pkg/catalog"
	"github.com/voicedesk/voicedesk/pkg/errorsx"
	"github.com/voicedesk/voicedesk/pkg/events"
	"github.com/voicedesk/voicedesk/pkg/fields"
	"github.com/voicedesk/voicedesk/pkg/language"
	"github.com/voicedesk/voicedesk/pkg/llm"
	"github.com/voicedesk/voicedesk/pkg/metrics"
	"github.com/voicedesk/voicedesk/pkg/redact"
	"github.com/voicedesk/voicedesk/pkg/session"
	"github.com/voicedesk/voicedesk/pkg/workflow"
)

// Result is what a protocol adapter renders back to the caller after a turn.
type Result struct {
	Text          string
	CallState     session.CallState
	MissingFields []string
	Hangup        bool
	TransferTo    string
}

// Orchestrator drives one conversation turn at a time. It owns the
// conversation state machine; telephony status stays with the adapters.
type Orchestrator struct {
	store   session.Store
	cat     catalog.Catalog
	model   llm.Client
	pub     events.Publisher
	logger  *slog.Logger
	metrics *metrics.Collector
}

func New(store session.Store, cat catalog.Catalog, model llm.Client, pub events.Publisher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{store: store, cat: cat, model: model, pub: pub, logger: logger}
}

// SetMetrics attaches an optional call metrics collector.
func (o *Orchestrator) SetMetrics(m *metrics.Collector) { o.metrics = m }

var (
	confirmWords  = []string{"yes", "correct", "confirm"}
	rejectWords   = []string{"no", "wrong", "change", "modify"}
	transferWords = []string{"human", "agent", "representative", "operator"}

	namedEntities = []string{"name", "phone", "email", "date", "time", "quantity", "address"}
)

// StartParams identifies a new inbound or outbound call.
type StartParams struct {
	BusinessID     string
	ExternalCallID string
	Provider       string
	From           string
	To             string
	Direction      session.Direction
}

// StartCall creates (or re-fetches) the session for an external call id and
// returns the greeting to speak. Duplicate call-started events for the same
// external call id land on the same session.
func (o *Orchestrator) StartCall(ctx context.Context, p StartParams) (session.CallSession, string, error) {
	s, err := o.store.Create(ctx, session.CallSession{
		BusinessID:     p.BusinessID,
		ExternalCallID: p.ExternalCallID,
		Provider:       p.Provider,
		From:           p.From,
		To:             p.To,
		Direction:      p.Direction,
		Status:         session.StatusInitiated,
	})
	if err != nil {
		return session.CallSession{}, "", errorsx.Wrap(err, errorsx.ReasonStoreWrite)
	}
	biz, err := o.cat.Business(p.BusinessID)
	if err != nil {
		return session.CallSession{}, "", errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}

	lang := defaultLanguage(biz)
	text := biz.Conversation.Greeting
	if text == "" {
		text = language.Greeting(lang, biz.Name)
	}

	if s.CallState == session.StateGreeting {
		s, err = o.transition(ctx, s, session.StateCollectingIntent, session.Patch{})
		if err != nil {
			return session.CallSession{}, "", err
		}
		if _, err := o.store.AppendMessage(ctx, s.ID, session.MessageAssistant, text, nil); err != nil {
			return session.CallSession{}, "", errorsx.Wrap(err, errorsx.ReasonStoreWrite)
		}
		events.Emit(ctx, o.pub, o.logger, events.CallEvent{
			BusinessID:     s.BusinessID,
			SessionID:      s.ID,
			ExternalCallID: s.ExternalCallID,
			Event:          "started",
			CallState:      string(s.CallState),
			Status:         string(s.Status),
			Provider:       s.Provider,
		})
		if o.metrics != nil {
			o.metrics.CallStarted()
		}
	}
	return s, text, nil
}

// ProcessTurn runs one caller utterance through the state machine.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, utterance string) (Result, error) {
	started := time.Now()
	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Result{}, errorsx.Wrap(err, errorsx.ReasonSessionMissing)
		}
		return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}

	if terminalState(s.CallState) {
		return Result{CallState: s.CallState, Hangup: true}, nil
	}

	biz, err := o.cat.Business(s.BusinessID)
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	lang := o.resolveLanguage(s, biz, utterance)

	if _, err := o.store.AppendMessage(ctx, s.ID, session.MessageUser, utterance, nil); err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreWrite)
	}

	var res Result
	switch s.CallState {
	case session.StateGreeting:
		res, err = o.greet(ctx, s, biz, lang)
	case session.StateCollectingIntent:
		res, err = o.collectIntent(ctx, s, biz, lang, utterance)
	case session.StateCollectingData:
		res, err = o.collectData(ctx, s, biz, lang, utterance)
	case session.StateConfirming:
		res, err = o.confirm(ctx, s, biz, lang, utterance)
	default:
		err = &InvalidTransitionError{From: s.CallState, To: s.CallState}
	}
	if err != nil {
		return Result{}, err
	}

	if res.Text != "" {
		if _, err := o.store.AppendMessage(ctx, s.ID, session.MessageAssistant, res.Text, nil); err != nil {
			return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreWrite)
		}
	}

	events.Emit(ctx, o.pub, o.logger, events.CallEvent{
		BusinessID:     s.BusinessID,
		SessionID:      s.ID,
		ExternalCallID: s.ExternalCallID,
		Event:          "turn",
		CallState:      string(res.CallState),
		Provider:       s.Provider,
	})
	o.logger.Info("turn_processed",
		slog.String("session_id", s.ID),
		slog.String("call_state", string(res.CallState)),
		slog.String("utterance", redact.Text(utterance)),
		slog.Int("missing_fields", len(res.MissingFields)),
	)
	if o.metrics != nil {
		o.metrics.TurnProcessed(time.Since(started))
	}
	return res, nil
}

// Session returns the session document by id.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (session.CallSession, error) {
	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.CallSession{}, errorsx.Wrap(err, errorsx.ReasonSessionMissing)
		}
		return session.CallSession{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	return s, nil
}

// SessionByExternalID resolves the session for a provider call id.
func (o *Orchestrator) SessionByExternalID(ctx context.Context, externalCallID string) (session.CallSession, error) {
	s, err := o.store.GetByExternalID(ctx, externalCallID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.CallSession{}, errorsx.Wrap(err, errorsx.ReasonSessionMissing)
		}
		return session.CallSession{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	return s, nil
}

// PatchSub replaces the asynchronous adapter bookkeeping on a session without
// touching either state axis.
func (o *Orchestrator) PatchSub(ctx context.Context, sessionID string, sub session.SubState) (session.CallSession, error) {
	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.CallSession{}, errorsx.Wrap(err, errorsx.ReasonSessionMissing)
		}
		return session.CallSession{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	updated, err := o.store.UpdateStatus(ctx, sessionID, s.Status, session.Patch{Sub: &sub})
	if err != nil {
		return session.CallSession{}, errorsx.Wrap(err, errorsx.ReasonStoreWrite)
	}
	return updated, nil
}

// RecordStatus applies a provider status event. Terminal statuses finalize the
// call.
func (o *Orchestrator) RecordStatus(ctx context.Context, sessionID string, status session.Status) error {
	if status.Terminal() {
		return o.EndCall(ctx, sessionID, status)
	}
	if _, err := o.store.UpdateStatus(ctx, sessionID, status, session.Patch{}); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonStoreWrite)
	}
	return nil
}

// EndCall records a terminal telephony status. Terminal statuses are
// monotonic, so duplicate hangup events collapse into one finalization.
func (o *Orchestrator) EndCall(ctx context.Context, sessionID string, status session.Status) error {
	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return errorsx.Wrap(err, errorsx.ReasonSessionMissing)
		}
		return errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	if s.Status.Terminal() {
		return nil
	}
	duration := int(time.Since(s.StartTime).Seconds())
	updated, err := o.store.UpdateStatus(ctx, sessionID, status, session.Patch{Duration: &duration})
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonStoreWrite)
	}
	events.Emit(ctx, o.pub, o.logger, events.CallEvent{
		BusinessID:     updated.BusinessID,
		SessionID:      updated.ID,
		ExternalCallID: updated.ExternalCallID,
		Event:          "ended",
		CallState:      string(updated.CallState),
		Status:         string(updated.Status),
		Provider:       updated.Provider,
	})
	if o.metrics != nil {
		o.metrics.CallEnded()
	}
	return nil
}

func (o *Orchestrator) greet(ctx context.Context, s session.CallSession, biz catalog.Business, lang language.Code) (Result, error) {
	text := biz.Conversation.Greeting
	if text == "" {
		text = language.Greeting(lang, biz.Name)
	}
	updated, err := o.transition(ctx, s, session.StateCollectingIntent, session.Patch{
		DetectedLanguage: session.StringPtr(string(lang)),
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, CallState: updated.CallState}, nil
}

func (o *Orchestrator) collectIntent(ctx context.Context, s session.CallSession, biz catalog.Business, lang language.Code, utterance string) (Result, error) {
	services, err := o.cat.ActiveServices(s.BusinessID)
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	faqs, err := o.cat.ActiveFAQs(s.BusinessID)
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	training, err := o.cat.TrainingExamples(s.BusinessID, string(lang))
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	history, err := o.store.History(ctx, s.ID)
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}

	analysis, err := o.model.Analyze(ctx, llm.AnalysisRequest{
		Utterance:     utterance,
		Language:      string(lang),
		Business:      &biz,
		Services:      services,
		FAQs:          faqs,
		Training:      training,
		History:       history,
		CollectedData: s.CollectedData,
		CurrentState:  s.CallState,
	})
	if err != nil {
		return o.degrade(ctx, s, lang, errorsx.ReasonLLMAnalyze, err)
	}

	if biz.Conversation.EnableTransfer && biz.Conversation.TransferPhone != "" && wantsTransfer(analysis.Intent, utterance) {
		updated, err := o.transition(ctx, s, session.StateTransferred, session.Patch{
			DetectedLanguage: session.StringPtr(string(lang)),
			DetectedIntent:   session.StringPtr("transfer"),
		})
		if err != nil {
			return Result{}, err
		}
		return Result{
			Text:       "One moment please, connecting you now.",
			CallState:  updated.CallState,
			TransferTo: biz.Conversation.TransferPhone,
		}, nil
	}

	if analysis.Intent == "faq" {
		if faq, ok := catalog.MatchFAQ(faqs, utterance); ok {
			if _, err := o.store.UpdateState(ctx, s.ID, s.CallState, session.Patch{
				DetectedLanguage: session.StringPtr(string(lang)),
				DetectedIntent:   session.StringPtr("faq"),
			}); err != nil {
				return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreWrite)
			}
			return Result{Text: faq.Answer, CallState: s.CallState}, nil
		}
	}

	svc, matched := catalog.MatchServiceName(services, utterance)
	if !matched {
		if name := analysis.Entities["service"]; name != "" {
			svc, matched = catalog.MatchServiceName(services, name)
		}
	}
	if !matched {
		fallback := analysis.SuggestedResponse
		if fallback == "" {
			fallback = language.RepeatPrompt(lang)
		}
		if _, err := o.store.UpdateState(ctx, s.ID, s.CallState, session.Patch{
			DetectedLanguage: session.StringPtr(string(lang)),
			DetectedIntent:   session.StringPtr(analysis.Intent),
		}); err != nil {
			return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreWrite)
		}
		text := o.respond(ctx, llm.ConverseRequest{
			Utterance:     utterance,
			Language:      string(lang),
			Business:      &biz,
			Services:      services,
			FAQs:          faqs,
			Training:      training,
			History:       history,
			CollectedData: s.CollectedData,
			CurrentState:  s.CallState,
		}, fallback)
		return Result{Text: text, CallState: s.CallState}, nil
	}

	merged := s
	if extracted := extractFields(analysis); len(extracted) > 0 {
		merged, err = o.store.MergeCollected(ctx, s.ID, extracted)
		if err != nil {
			return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreWrite)
		}
		o.logger.Debug("fields_extracted",
			slog.String("session_id", s.ID),
			slog.Any("fields", redact.Fields(extracted)),
		)
	}
	v := workflow.Validate(svc, merged.CollectedData)

	updated, err := o.transition(ctx, merged, session.StateCollectingData, session.Patch{
		DetectedLanguage: session.StringPtr(string(lang)),
		DetectedIntent:   session.StringPtr(analysis.Intent),
		ServiceID:        session.StringPtr(svc.ID),
		MissingFields:    missingOrEmpty(v.MissingFields),
	})
	if err != nil {
		return Result{}, err
	}

	fallback := analysis.SuggestedResponse
	if fallback == "" {
		if next := workflow.NextField(svc, v.MissingFields); next != nil {
			fallback = fieldPrompt(next)
		} else {
			fallback = language.RepeatPrompt(lang)
		}
	}
	text := o.respond(ctx, llm.ConverseRequest{
		Utterance:     utterance,
		Language:      string(lang),
		Business:      &biz,
		Service:       &svc,
		Services:      services,
		FAQs:          faqs,
		Training:      training,
		History:       history,
		CollectedData: merged.CollectedData,
		CurrentState:  updated.CallState,
		MissingFields: v.MissingFields,
	}, fallback)
	return Result{Text: text, CallState: updated.CallState, MissingFields: v.MissingFields}, nil
}

func (o *Orchestrator) collectData(ctx context.Context, s session.CallSession, biz catalog.Business, lang language.Code, utterance string) (Result, error) {
	if s.ServiceID == "" {
		// data collection with no bound service: re-ask for intent.
		updated, err := o.transition(ctx, s, session.StateCollectingIntent, session.Patch{})
		if err != nil {
			return Result{}, err
		}
		return Result{Text: language.RepeatPrompt(lang), CallState: updated.CallState}, nil
	}
	svc, err := o.cat.Service(s.ServiceID)
	if err != nil {
		updated, terr := o.transition(ctx, s, session.StateCollectingIntent, session.Patch{ServiceID: session.StringPtr("")})
		if terr != nil {
			return Result{}, terr
		}
		return Result{Text: language.RepeatPrompt(lang), CallState: updated.CallState}, nil
	}

	history, err := o.store.History(ctx, s.ID)
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	training, err := o.cat.TrainingExamples(s.BusinessID, string(lang))
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}

	analysis, err := o.model.Analyze(ctx, llm.AnalysisRequest{
		Utterance:     utterance,
		Language:      string(lang),
		Business:      &biz,
		Service:       &svc,
		Services:      []catalog.Service{svc},
		Training:      training,
		History:       history,
		CollectedData: s.CollectedData,
		CurrentState:  s.CallState,
	})
	if err != nil {
		return o.degrade(ctx, s, lang, errorsx.ReasonLLMAnalyze, err)
	}

	merged := s
	if extracted := extractFields(analysis); len(extracted) > 0 {
		merged, err = o.store.MergeCollected(ctx, s.ID, extracted)
		if err != nil {
			return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreWrite)
		}
		o.logger.Debug("fields_extracted",
			slog.String("session_id", s.ID),
			slog.Any("fields", redact.Fields(extracted)),
		)
	}
	v := workflow.Validate(svc, merged.CollectedData)

	if v.Complete {
		updated, err := o.transition(ctx, merged, session.StateConfirming, session.Patch{
			DetectedLanguage:   session.StringPtr(string(lang)),
			MissingFields:      []string{},
			ConfirmationStatus: session.StatePtr(session.ConfirmationPending),
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Text: confirmPrompt(svc, merged.CollectedData), CallState: updated.CallState}, nil
	}

	updated, err := o.store.UpdateState(ctx, s.ID, s.CallState, session.Patch{
		DetectedLanguage: session.StringPtr(string(lang)),
		MissingFields:    v.MissingFields,
	})
	if err != nil {
		return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreWrite)
	}
	fallback := analysis.SuggestedResponse
	if fallback == "" {
		if next := workflow.NextField(svc, v.MissingFields); next != nil {
			fallback = fieldPrompt(next)
		} else {
			fallback = language.RepeatPrompt(lang)
		}
	}
	text := o.respond(ctx, llm.ConverseRequest{
		Utterance:     utterance,
		Language:      string(lang),
		Business:      &biz,
		Service:       &svc,
		Services:      []catalog.Service{svc},
		Training:      training,
		History:       history,
		CollectedData: merged.CollectedData,
		CurrentState:  updated.CallState,
		MissingFields: v.MissingFields,
	}, fallback)
	return Result{Text: text, CallState: updated.CallState, MissingFields: v.MissingFields}, nil
}

func (o *Orchestrator) confirm(ctx context.Context, s session.CallSession, biz catalog.Business, lang language.Code, utterance string) (Result, error) {
	lower := strings.ToLower(utterance)
	switch {
	case containsAny(lower, confirmWords):
		svc, err := o.cat.Service(s.ServiceID)
		if err != nil {
			updated, terr := o.transition(ctx, s, session.StateCollectingIntent, session.Patch{ServiceID: session.StringPtr("")})
			if terr != nil {
				return Result{}, terr
			}
			return Result{Text: language.RepeatPrompt(lang), CallState: updated.CallState}, nil
		}
		data := make(map[string]string, len(s.CollectedData))
		for k, v := range s.CollectedData {
			data[k] = v
		}
		rec, err := o.store.CreateInteraction(ctx, session.InteractionRecord{
			BusinessID: s.BusinessID,
			SessionID:  s.ID,
			ServiceID:  s.ServiceID,
			RecordType: string(svc.WorkflowType),
			Status:     "confirmed",
			Data:       data,
			Pricing:    workflow.Price(svc, data),
		})
		if err != nil {
			return Result{}, errorsx.Wrap(err, errorsx.ReasonStoreWrite)
		}
		updated, err := o.transition(ctx, s, session.StateCompleted, session.Patch{
			ConfirmationStatus: session.StatePtr(session.ConfirmationConfirmed),
		})
		if err != nil {
			return Result{}, err
		}
		events.Emit(ctx, o.pub, o.logger, events.CallEvent{
			BusinessID:     s.BusinessID,
			SessionID:      s.ID,
			ExternalCallID: s.ExternalCallID,
			Event:          "finalized",
			CallState:      string(updated.CallState),
			Provider:       s.Provider,
		})
		o.logger.Info("interaction_finalized",
			slog.String("session_id", s.ID),
			slog.String("record_id", rec.ID),
			slog.String("service_id", s.ServiceID),
		)
		if o.metrics != nil {
			o.metrics.InteractionFinalized()
		}
		text := biz.Conversation.Closing
		if text == "" {
			text = language.Completion(lang)
		}
		return Result{Text: text, CallState: updated.CallState, Hangup: true}, nil

	case containsAny(lower, rejectWords):
		updated, err := o.transition(ctx, s, session.StateCollectingData, session.Patch{
			ConfirmationStatus: session.StatePtr(session.ConfirmationRejected),
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Text: language.ChangePrompt(lang), CallState: updated.CallState}, nil

	default:
		text := language.RepeatPrompt(lang)
		if svc, err := o.cat.Service(s.ServiceID); err == nil {
			text = confirmPrompt(svc, s.CollectedData)
		}
		return Result{Text: text, CallState: s.CallState}, nil
	}
}

// respond asks the conversation model what to say next. The fallback (the
// analysis suggestion or a field prompt) is spoken when the model fails or
// comes back empty; response generation never fails a turn.
func (o *Orchestrator) respond(ctx context.Context, req llm.ConverseRequest, fallback string) string {
	res, err := o.model.Converse(ctx, req)
	if err != nil {
		o.logger.Warn("llm_converse_failed",
			slog.String("reason", string(errorsx.ReasonLLMConverse)),
			slog.String("error", err.Error()),
		)
		return fallback
	}
	if strings.TrimSpace(res.Text) == "" {
		return fallback
	}
	return res.Text
}

// degrade closes a turn gracefully after an external-service failure: log it
// on the session, apologize in the caller's language, keep state untouched.
func (o *Orchestrator) degrade(ctx context.Context, s session.CallSession, lang language.Code, reason errorsx.ReasonCode, cause error) (Result, error) {
	o.store.AppendError(ctx, s.ID, string(reason), cause.Error())
	o.logger.Error("llm_call_failed",
		slog.String("session_id", s.ID),
		slog.String("reason", string(reason)),
		slog.String("error", cause.Error()),
	)
	return Result{Text: language.Apology(lang), CallState: s.CallState, MissingFields: s.MissingFields}, nil
}

func (o *Orchestrator) transition(ctx context.Context, s session.CallSession, to session.CallState, patch session.Patch) (session.CallSession, error) {
	if !transitionValid(s.CallState, to) {
		return s, &InvalidTransitionError{From: s.CallState, To: to}
	}
	updated, err := o.store.UpdateState(ctx, s.ID, to, patch)
	if err != nil {
		return s, errorsx.Wrap(err, errorsx.ReasonStoreWrite)
	}
	return updated, nil
}

func (o *Orchestrator) resolveLanguage(s session.CallSession, biz catalog.Business, utterance string) language.Code {
	if s.DetectedLanguage != "" {
		return language.Code(s.DetectedLanguage)
	}
	supported := make([]language.Code, 0, 4)
	for _, l := range biz.SupportedLanguages() {
		supported = append(supported, language.Code(l))
	}
	return language.Resolve(language.Detect(utterance), supported)
}

func defaultLanguage(biz catalog.Business) language.Code {
	langs := biz.SupportedLanguages()
	if len(langs) > 0 && langs[0] != "*" {
		return language.Code(langs[0])
	}
	return language.English
}

// extractFields maps named entities and detected fields onto collectable
// values. Detected fields win when both name the same key.
func extractFields(a llm.Analysis) map[string]string {
	out := make(map[string]string)
	for _, k := range namedEntities {
		if v, ok := a.Entities[k]; ok && v != "" {
			out[k] = v
		}
	}
	for k, v := range a.DetectedFields {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func confirmPrompt(svc catalog.Service, data map[string]string) string {
	var b strings.Builder
	b.WriteString("Let me confirm your request. ")
	b.WriteString(strings.ReplaceAll(workflow.Summary(svc, data), "\n", ", "))
	if q := workflow.Price(svc, data); q != nil {
		fmt.Fprintf(&b, ". Your total is %.2f %s", q.Total, q.Currency)
	}
	b.WriteString(". Is that correct?")
	return b.String()
}

func fieldPrompt(def *fields.Definition) string {
	if def.Prompt != "" {
		return def.Prompt
	}
	return fmt.Sprintf("What is the %s?", strings.ToLower(def.DisplayLabel()))
}

func wantsTransfer(intent, utterance string) bool {
	if intent == "transfer" {
		return true
	}
	return containsAny(strings.ToLower(utterance), transferWords)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func missingOrEmpty(missing []string) []string {
	if missing == nil {
		return []string{}
	}
	return missing
}
