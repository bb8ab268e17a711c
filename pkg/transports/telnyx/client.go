package telnyx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voicedesk/voicedesk/pkg/errorsx"
	"github.com/voicedesk/voicedesk/pkg/resilience"
)

const defaultBaseURL = "https://api.telnyx.com/v2"

// Commander issues call-control commands against a live call.
type Commander interface {
	Execute(ctx context.Context, callControlID, action string, body map[string]any) error
}

// Client is the Telnyx call-control REST client. Commands are POSTs to
// /calls/{call_control_id}/actions/{action}; 5xx responses are retried.
type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client

	retry resilience.RetryPolicy
}

func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		retry:   resilience.NewRetryPolicy(2, 250*time.Millisecond),
	}
}

type apiError struct {
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// transcriptionAlreadyActive is Telnyx error 90054, returned when a
// transcription_start lands on a call that is already transcribing. The
// command is a no-op in that case, not a failure.
const transcriptionAlreadyActive = "90054"

func (c *Client) Execute(ctx context.Context, callControlID, action string, body map[string]any) error {
	url := fmt.Sprintf("%s/calls/%s/actions/%s", c.baseURL(), callControlID, action)

	var permanent error
	err := c.retry.Do(ctx, func() error {
		status, raw, err := c.post(ctx, url, body)
		if err != nil {
			return err
		}
		switch {
		case status < http.StatusMultipleChoices:
			return nil
		case status >= http.StatusInternalServerError:
			return fmt.Errorf("telnyx: %s returned %d", action, status)
		default:
			if tolerable(status, raw) {
				return nil
			}
			permanent = fmt.Errorf("telnyx: %s returned %d: %s", action, status, errorDetail(raw))
			return nil
		}
	})
	if err == nil {
		err = permanent
	}
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTelephonyCommand)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	return resp.StatusCode, raw, nil
}

func tolerable(status int, raw []byte) bool {
	if status != http.StatusUnprocessableEntity {
		return false
	}
	var parsed apiError
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return false
	}
	for _, e := range parsed.Errors {
		if e.Code == transcriptionAlreadyActive {
			return true
		}
	}
	return false
}

func errorDetail(raw []byte) string {
	var parsed apiError
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Errors) > 0 {
		return parsed.Errors[0].Title
	}
	return string(raw)
}

// Dial places an outbound call through a Telnyx connection. The returned call
// control id is the external call id all webhook events carry.
func (c *Client) Dial(ctx context.Context, connectionID, to, from, webhookURL string) (string, error) {
	body := map[string]any{
		"connection_id": connectionID,
		"to":            to,
		"from":          from,
	}
	if webhookURL != "" {
		body["webhook_url"] = webhookURL
	}
	status, raw, err := c.post(ctx, c.baseURL()+"/calls", body)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonTelephonyDial)
	}
	if status >= http.StatusMultipleChoices {
		return "", errorsx.Wrap(fmt.Errorf("telnyx: dial returned %d: %s", status, errorDetail(raw)), errorsx.ReasonTelephonyDial)
	}
	var parsed struct {
		Data struct {
			CallControlID string `json:"call_control_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonTelephonyDial)
	}
	return parsed.Data.CallControlID, nil
}

// Dialer binds a client to one connection so it satisfies the
// provider-independent outbound interface.
type Dialer struct {
	Client       *Client
	ConnectionID string
	WebhookURL   string
}

func (d Dialer) Dial(ctx context.Context, to, from string) (string, error) {
	return d.Client.Dial(ctx, d.ConnectionID, to, from, d.WebhookURL)
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
