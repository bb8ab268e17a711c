package voicedesk

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voicedesk/voicedesk/pkg/catalog"
)

func testApp(t *testing.T, cfg Config) (*App, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := NewApp(cfg, logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv := httptest.NewServer(app.server.Handler)
	t.Cleanup(srv.Close)
	return app, srv
}

func baseConfig() Config {
	return Config{
		LLM: VendorConfig{Provider: "mock"},
		Businesses: []catalog.Business{
			{ID: "biz-1", Name: "Mario's Pizzeria", Provider: "twilio", Active: true},
		},
	}
}

func TestAppServesHealthAndMetrics(t *testing.T) {
	_, srv := testApp(t, baseConfig())

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metricsz")
	if err != nil {
		t.Fatalf("metricsz: %v", err)
	}
	defer resp.Body.Close()
	var snap map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if _, ok := snap["turnsProcessed"]; !ok {
		t.Fatalf("metrics payload = %v", snap)
	}
}

func TestAppRegistersProviderAdapter(t *testing.T) {
	app, _ := testApp(t, baseConfig())
	if len(app.adapters) != 1 || app.adapters[0].Name() != "twilio" {
		t.Fatalf("adapters = %+v", app.adapters)
	}
}

func TestAppRejectsUnknownProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.Businesses[0].Provider = "smoke-signals"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := NewApp(cfg, logger); err == nil {
		t.Fatal("expected unknown provider rejected")
	}
}

func TestAppRejectsUnknownLLMProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.LLM.Provider = "oracle-bones"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := NewApp(cfg, logger); err == nil {
		t.Fatal("expected unknown llm provider rejected")
	}
}

func TestMultiTenantPathsArePrefixed(t *testing.T) {
	cfg := baseConfig()
	cfg.Businesses = append(cfg.Businesses,
		catalog.Business{ID: "biz-2", Name: "Clinic", Provider: "vonage", Active: true})
	_, srv := testApp(t, cfg)

	resp, err := http.Post(srv.URL+"/biz-1/twilio/voice", "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		t.Fatalf("prefixed twilio route not registered")
	}

	resp, err = http.Get(srv.URL + "/twilio/voice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unprefixed route should not exist, got %d", resp.StatusCode)
	}
}
