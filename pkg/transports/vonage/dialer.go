package vonage

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/voicedesk/voicedesk/pkg/errorsx"
)

const defaultAPIBaseURL = "https://api.nexmo.com"

// Dialer places outbound calls through the Vonage Voice API. Each request
// carries a short-lived application JWT signed with the application's private
// key; the answer webhook then drives the call like any inbound one.
type Dialer struct {
	cfg     Config
	key     *rsa.PrivateKey
	BaseURL string
	HTTP    *http.Client
}

func NewDialer(cfg Config) (*Dialer, error) {
	cfg = cfg.withDefaults()
	if cfg.ApplicationID == "" {
		return nil, errors.New("vonage: application id required")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("vonage: parsing private key: %w", err)
	}
	return &Dialer{
		cfg:     cfg,
		key:     key,
		BaseURL: defaultAPIBaseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (d *Dialer) Dial(ctx context.Context, to, from string) (string, error) {
	if to == "" {
		return "", errors.New("to required")
	}
	token, err := d.token()
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonTelephonyDial)
	}
	body := map[string]any{
		"to":         []map[string]string{{"type": "phone", "number": to}},
		"from":       map[string]string{"type": "phone", "number": from},
		"answer_url": []string{webhookURL(d.cfg.PublicURL, d.cfg.AnswerPath)},
		"event_url":  []string{webhookURL(d.cfg.PublicURL, d.cfg.EventPath)},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonTelephonyDial)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/v1/calls", bytes.NewReader(payload))
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonTelephonyDial)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient().Do(req)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonTelephonyDial)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", errorsx.Wrap(fmt.Errorf("vonage: create call returned %d: %s", resp.StatusCode, raw), errorsx.ReasonTelephonyDial)
	}
	var parsed struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonTelephonyDial)
	}
	return parsed.UUID, nil
}

func (d *Dialer) token() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"application_id": d.cfg.ApplicationID,
		"iat":            now.Unix(),
		"exp":            now.Add(15 * time.Minute).Unix(),
		"jti":            uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(d.key)
}

func (d *Dialer) httpClient() *http.Client {
	if d.HTTP != nil {
		return d.HTTP
	}
	return http.DefaultClient
}
