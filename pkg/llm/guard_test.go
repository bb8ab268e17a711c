package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicedesk/voicedesk/pkg/resilience"
)

type scriptedClient struct {
	errs    []error
	calls   int
	analyze Analysis
}

func (s *scriptedClient) Name() string { return "scripted" }

func (s *scriptedClient) Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error) {
	err := s.next()
	if err != nil {
		return Analysis{}, err
	}
	return s.analyze, nil
}

func (s *scriptedClient) Converse(ctx context.Context, req ConverseRequest) (ConverseResult, error) {
	if err := s.next(); err != nil {
		return ConverseResult{}, err
	}
	return ConverseResult{Text: "ok"}, nil
}

func (s *scriptedClient) next() error {
	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	return err
}

func noSleep(cfg RetryConfig) RetryConfig {
	cfg.Sleep = func(time.Duration) {}
	return cfg
}

func TestGuardedClientRetriesTransientErrors(t *testing.T) {
	inner := &scriptedClient{
		errs:    []error{errors.New("transient"), nil},
		analyze: Analysis{Intent: "order"},
	}
	g := NewGuardedClient(inner, nil, noSleep(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	out, err := g.Analyze(context.Background(), AnalysisRequest{Utterance: "hi"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out.Intent != "order" || inner.calls != 2 {
		t.Fatalf("intent = %q, calls = %d", out.Intent, inner.calls)
	}
}

func TestGuardedClientDoesNotRetryRateLimits(t *testing.T) {
	inner := &scriptedClient{errs: []error{resilience.RateLimitError{Provider: "scripted"}}}
	g := NewGuardedClient(inner, nil, noSleep(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	_, err := g.Analyze(context.Background(), AnalysisRequest{})
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("rate limit retried, calls = %d", inner.calls)
	}
}

func TestGuardedClientFailsFastWhenOpen(t *testing.T) {
	inner := &scriptedClient{errs: []error{
		resilience.RateLimitError{},
		resilience.RateLimitError{},
	}}
	breaker := resilience.NewCircuitBreaker(2, time.Minute)
	g := NewGuardedClient(inner, breaker, noSleep(RetryConfig{MaxAttempts: 1}))

	g.Analyze(context.Background(), AnalysisRequest{})
	g.Analyze(context.Background(), AnalysisRequest{})

	before := inner.calls
	_, err := g.Converse(context.Background(), ConverseRequest{})
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected fail-fast rate limit, got %v", err)
	}
	if inner.calls != before {
		t.Fatalf("open breaker still called inner client")
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, RetryConfig{MaxAttempts: 3}, func(context.Context) error {
		calls++
		return errors.New("never retried")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if calls != 0 {
		t.Fatalf("fn ran %d times after cancel", calls)
	}
}
