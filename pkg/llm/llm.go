package llm

import (
	"context"

	"github.com/voicedesk/voicedesk/pkg/catalog"
	"github.com/voicedesk/voicedesk/pkg/session"
)

// AnalysisRequest carries everything the model needs to interpret one caller
// utterance: the business context, the bound service (if any), prior turns and
// the data collected so far.
type AnalysisRequest struct {
	Utterance     string
	Language      string
	Business      *catalog.Business
	Service       *catalog.Service
	Services      []catalog.Service
	FAQs          []catalog.FAQ
	Training      []catalog.TrainingExample
	History       []session.Message
	CollectedData map[string]string
	CurrentState  session.CallState
}

// Analysis is the model's structured reading of a single utterance.
type Analysis struct {
	Intent            string            `json:"intent"`
	Confidence        float64           `json:"confidence"`
	Entities          map[string]string `json:"entities"`
	DetectedFields    map[string]string `json:"detectedFields"`
	MissingFields     []string          `json:"missingFields"`
	SuggestedResponse string            `json:"suggestedResponse"`
}

// ConverseRequest asks the model for the next thing to say to the caller.
type ConverseRequest struct {
	Utterance     string
	Language      string
	Business      *catalog.Business
	Service       *catalog.Service
	Services      []catalog.Service
	FAQs          []catalog.FAQ
	Training      []catalog.TrainingExample
	History       []session.Message
	CollectedData map[string]string
	CurrentState  session.CallState
	MissingFields []string
}

type ConverseResult struct {
	Text      string            `json:"response"`
	Intent    string            `json:"intent"`
	Entities  map[string]string `json:"entities"`
	NextState string            `json:"nextState"`
}

type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error)
}

type Converser interface {
	Converse(ctx context.Context, req ConverseRequest) (ConverseResult, error)
}

// Client is a full conversation model provider.
type Client interface {
	Analyzer
	Converser
	Name() string
}
