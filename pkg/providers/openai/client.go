package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voicedesk/voicedesk/pkg/llm"
	"github.com/voicedesk/voicedesk/pkg/resilience"
)

// Client talks to the OpenAI chat completions API with JSON response mode.
type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://api.openai.com/v1",
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Name() string { return "openai" }

func (c *Client) Analyze(ctx context.Context, req llm.AnalysisRequest) (llm.Analysis, error) {
	system := llm.BuildSystemPrompt(req.Business, req.Service, req.Services, req.FAQs, req.Training, req.Language)
	system += "\nAnalyze the caller's latest utterance. Respond with a JSON object: " +
		`{"intent": string, "confidence": number 0..1, "entities": {key: value}, ` +
		`"detectedFields": {fieldName: value}, "missingFields": [string], "suggestedResponse": string}. ` +
		`Allowed entity keys: "service" (the name of the service the caller wants), ` +
		`"name", "phone", "email", "date", "time", "quantity", "address". ` +
		"Include only entities the caller actually stated. " +
		"detectedFields must only contain fields of the active service that the caller actually stated.\n" +
		"Already collected: " + llm.CollectedSummary(req.CollectedData) + "\n" +
		"Conversation state: " + string(req.CurrentState)

	messages := []map[string]any{{"role": "system", "content": system}}
	messages = append(messages, llm.HistoryMessages(req.History)...)
	messages = append(messages, map[string]any{"role": "user", "content": req.Utterance})

	var out llm.Analysis
	if err := c.completeJSON(ctx, messages, &out); err != nil {
		return llm.Analysis{}, err
	}
	return out, nil
}

func (c *Client) Converse(ctx context.Context, req llm.ConverseRequest) (llm.ConverseResult, error) {
	system := llm.BuildSystemPrompt(req.Business, req.Service, req.Services, req.FAQs, req.Training, req.Language)
	system += "\nContinue the conversation. Respond with a JSON object: " +
		`{"response": string spoken to the caller, "intent": string, ` +
		`"entities": {name: value}, "nextState": string}.` + "\n" +
		"Already collected: " + llm.CollectedSummary(req.CollectedData) + "\n" +
		"Conversation state: " + string(req.CurrentState)
	if len(req.MissingFields) > 0 {
		system += "\nStill needed from the caller: " + strings.Join(req.MissingFields, ", ")
	}

	messages := []map[string]any{{"role": "system", "content": system}}
	messages = append(messages, llm.HistoryMessages(req.History)...)
	messages = append(messages, map[string]any{"role": "user", "content": req.Utterance})

	var out llm.ConverseResult
	if err := c.completeJSON(ctx, messages, &out); err != nil {
		return llm.ConverseResult{}, err
	}
	return out, nil
}


func (c *Client) completeJSON(ctx context.Context, messages []map[string]any, out any) error {
	payload := map[string]any{
		"model":           c.Model,
		"messages":        messages,
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0.2,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return resilience.RateLimitError{Provider: "openai", Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai: status %d: %s", resp.StatusCode, string(body))
	}
	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Choices) == 0 {
		return errors.New("openai: no choices")
	}
	return json.Unmarshal([]byte(envelope.Choices[0].Message.Content), out)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
