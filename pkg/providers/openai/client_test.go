package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voicedesk/voicedesk/pkg/catalog"
	"github.com/voicedesk/voicedesk/pkg/llm"
	"github.com/voicedesk/voicedesk/pkg/resilience"
	"github.com/voicedesk/voicedesk/pkg/session"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
}

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient("sk-test", "gpt-4o-mini")
	c.BaseURL = srv.URL
	c.HTTP = srv.Client()
	return c
}

func analysisRequest() llm.AnalysisRequest {
	return llm.AnalysisRequest{
		Utterance:    "two margheritas please",
		Language:     "en",
		Business:     &catalog.Business{ID: "biz-1", Name: "Mario's Pizzeria", BusinessType: "restaurant"},
		CurrentState: session.StateCollectingData,
	}
}

func TestAnalyzeParsesStructuredResponse(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(chatResponse(
			`{"intent":"book_service","confidence":0.92,"detectedFields":{"quantity":"2"},"missingFields":["address"]}`,
		))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	out, err := c.Analyze(context.Background(), analysisRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.Intent != "book_service" {
		t.Fatalf("Intent = %q", out.Intent)
	}
	if out.DetectedFields["quantity"] != "2" {
		t.Fatalf("DetectedFields = %v", out.DetectedFields)
	}
	if len(out.MissingFields) != 1 || out.MissingFields[0] != "address" {
		t.Fatalf("MissingFields = %v", out.MissingFields)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Fatalf("model = %v", gotBody["model"])
	}
	if rf, ok := gotBody["response_format"].(map[string]any); !ok || rf["type"] != "json_object" {
		t.Fatalf("response_format = %v", gotBody["response_format"])
	}
}

func TestAnalyzePromptNamesEntityKeys(t *testing.T) {
	var system string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Messages) > 0 {
			system = body.Messages[0].Content
		}
		json.NewEncoder(w).Encode(chatResponse(`{"intent":"unknown"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if _, err := c.Analyze(context.Background(), analysisRequest()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, key := range []string{`"service"`, `"name"`, `"phone"`, `"email"`, `"date"`, `"time"`, `"quantity"`, `"address"`} {
		if !strings.Contains(system, key) {
			t.Fatalf("system prompt missing entity key %s", key)
		}
	}
}

func TestConverseParsesStructuredResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse(
			`{"response":"What address should we deliver to?","intent":"book_service","nextState":"collecting-data"}`,
		))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	out, err := c.Converse(context.Background(), llm.ConverseRequest{
		Utterance: "two margheritas",
		Business:  &catalog.Business{ID: "biz-1", Name: "Mario's Pizzeria"},
	})
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if out.Text != "What address should we deliver to?" {
		t.Fatalf("Text = %q", out.Text)
	}
	if out.NextState != "collecting-data" {
		t.Fatalf("NextState = %q", out.NextState)
	}
}

func TestRateLimitSurfacesTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Analyze(context.Background(), analysisRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	var rl resilience.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %T, want RateLimitError", err)
	}
	if rl.Provider != "openai" {
		t.Fatalf("Provider = %q", rl.Provider)
	}
}

func TestServerErrorIncludesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Analyze(context.Background(), analysisRequest())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestEmptyChoicesRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Analyze(context.Background(), analysisRequest())
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
