package llm

import (
	"context"
	"time"

	"github.com/voicedesk/voicedesk/pkg/resilience"
)

// GuardedClient wraps a Client with rate-limit circuit breaking and retries.
// While the breaker is open every call fails fast with a RateLimitError so the
// orchestrator can fall back to a localized apology.
type GuardedClient struct {
	inner   Client
	breaker *resilience.CircuitBreaker
	retry   RetryConfig
}

func NewGuardedClient(inner Client, breaker *resilience.CircuitBreaker, retry RetryConfig) *GuardedClient {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &GuardedClient{inner: inner, breaker: breaker, retry: retry}
}

func (g *GuardedClient) Name() string { return g.inner.Name() }

func (g *GuardedClient) Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error) {
	if !g.breaker.Allow() {
		return Analysis{}, resilience.RateLimitError{Provider: g.Name(), Message: "degraded"}
	}
	var out Analysis
	err := Retry(ctx, g.retry, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Analyze(ctx, req)
		return err
	})
	if err != nil {
		g.breaker.OnError(err)
		return Analysis{}, err
	}
	g.breaker.OnSuccess()
	return out, nil
}

func (g *GuardedClient) Converse(ctx context.Context, req ConverseRequest) (ConverseResult, error) {
	if !g.breaker.Allow() {
		return ConverseResult{}, resilience.RateLimitError{Provider: g.Name(), Message: "degraded"}
	}
	var out ConverseResult
	err := Retry(ctx, g.retry, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Converse(ctx, req)
		return err
	})
	if err != nil {
		g.breaker.OnError(err)
		return ConverseResult{}, err
	}
	g.breaker.OnSuccess()
	return out, nil
}
