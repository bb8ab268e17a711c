package mock

import (
	"context"
	"sync"

	"github.com/voicedesk/voicedesk/pkg/llm"
)

// LLMClient scripts model output for tests. Analyses and converse results are
// consumed in order; the last one repeats once the script runs out.
type LLMClient struct {
	mu          sync.Mutex
	analyses    []llm.Analysis
	converses   []llm.ConverseResult
	err         error
	converseErr error

	AnalyzeCalls  []llm.AnalysisRequest
	ConverseCalls []llm.ConverseRequest
}

func NewLLMClient() *LLMClient { return &LLMClient{} }

func (m *LLMClient) Name() string { return "mock_llm" }

func (m *LLMClient) ScriptAnalysis(a ...llm.Analysis) *LLMClient {
	m.analyses = append(m.analyses, a...)
	return m
}

func (m *LLMClient) ScriptConverse(c ...llm.ConverseResult) *LLMClient {
	m.converses = append(m.converses, c...)
	return m
}

// Fail makes every subsequent call return err.
func (m *LLMClient) Fail(err error) *LLMClient {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	return m
}

// FailConverse makes only Converse return err; Analyze keeps working.
func (m *LLMClient) FailConverse(err error) *LLMClient {
	m.mu.Lock()
	m.converseErr = err
	m.mu.Unlock()
	return m
}

func (m *LLMClient) Analyze(ctx context.Context, req llm.AnalysisRequest) (llm.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AnalyzeCalls = append(m.AnalyzeCalls, req)
	if m.err != nil {
		return llm.Analysis{}, m.err
	}
	if len(m.analyses) == 0 {
		return llm.Analysis{Intent: "unknown", Confidence: 0.5}, nil
	}
	out := m.analyses[0]
	if len(m.analyses) > 1 {
		m.analyses = m.analyses[1:]
	}
	return out, nil
}

func (m *LLMClient) Converse(ctx context.Context, req llm.ConverseRequest) (llm.ConverseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConverseCalls = append(m.ConverseCalls, req)
	if m.err != nil {
		return llm.ConverseResult{}, m.err
	}
	if m.converseErr != nil {
		return llm.ConverseResult{}, m.converseErr
	}
	// An unscripted converse yields nothing, so callers fall back to the
	// analysis suggestion.
	if len(m.converses) == 0 {
		return llm.ConverseResult{}, nil
	}
	out := m.converses[0]
	if len(m.converses) > 1 {
		m.converses = m.converses[1:]
	}
	return out, nil
}
