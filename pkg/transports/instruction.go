package transports

import (
	"github.com/voicedesk/voicedesk/pkg/language"
	"github.com/voicedesk/voicedesk/pkg/orchestrator"
	"github.com/voicedesk/voicedesk/pkg/session"
)

// FromResult maps a turn result onto the canonical outbound instruction for a
// provider, resolving voice and locale from the session's language.
func FromResult(res orchestrator.Result, s session.CallSession, provider string) Instruction {
	lang := language.Code(s.DetectedLanguage)
	if lang == "" {
		lang = language.English
	}
	return Instruction{
		SayText:           res.Text,
		ContinueListening: !res.Hangup && res.TransferTo == "",
		Hangup:            res.Hangup,
		TransferTo:        res.TransferTo,
		Voice:             language.Voice(lang, provider),
		Locale:            language.Locale(lang),
	}
}
