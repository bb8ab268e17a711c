package orchestrator

import "github.com/voicedesk/voicedesk/pkg/session"

// validTransitions constrains the conversation axis. Self-transitions
// ("stays") are always allowed; terminal states absorb.
var validTransitions = map[session.CallState][]session.CallState{
	session.StateGreeting: {session.StateCollectingIntent, session.StateEnded},
	session.StateCollectingIntent: {
		session.StateCollectingData,
		session.StateTransferred,
		session.StateEnded,
	},
	session.StateCollectingData: {
		session.StateConfirming,
		session.StateCollectingIntent,
		session.StateTransferred,
		session.StateEnded,
	},
	session.StateConfirming: {
		session.StateCompleted,
		session.StateCollectingData,
		session.StateEnded,
	},
	session.StateCompleted:   {},
	session.StateTransferred: {},
	session.StateEnded:       {},
}

func transitionValid(from, to session.CallState) bool {
	if from == to {
		return true
	}
	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports a conversation-state transition outside the
// table.
type InvalidTransitionError struct {
	From session.CallState
	To   session.CallState
}

func (e *InvalidTransitionError) Error() string {
	return "invalid call state transition from " + string(e.From) + " to " + string(e.To)
}

func terminalState(s session.CallState) bool {
	switch s {
	case session.StateCompleted, session.StateTransferred, session.StateEnded:
		return true
	}
	return false
}
