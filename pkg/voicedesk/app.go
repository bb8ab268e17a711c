package voicedesk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/voicedesk/voicedesk/pkg/catalog"
	"github.com/voicedesk/voicedesk/pkg/configutil"
	"github.com/voicedesk/voicedesk/pkg/events"
	"github.com/voicedesk/voicedesk/pkg/llm"
	"github.com/voicedesk/voicedesk/pkg/logging"
	"github.com/voicedesk/voicedesk/pkg/metrics"
	"github.com/voicedesk/voicedesk/pkg/orchestrator"
	"github.com/voicedesk/voicedesk/pkg/providers/mock"
	"github.com/voicedesk/voicedesk/pkg/providers/openai"
	"github.com/voicedesk/voicedesk/pkg/redact"
	"github.com/voicedesk/voicedesk/pkg/resilience"
	"github.com/voicedesk/voicedesk/pkg/session"
	"github.com/voicedesk/voicedesk/pkg/transports"
	"github.com/voicedesk/voicedesk/pkg/transports/console"
	"github.com/voicedesk/voicedesk/pkg/transports/telnyx"
	"github.com/voicedesk/voicedesk/pkg/transports/twilio"
	"github.com/voicedesk/voicedesk/pkg/transports/vonage"
)

// App wires config, store, catalog, model, publisher, orchestrator and the
// per-tenant telephony adapters into one HTTP server.
type App struct {
	cfg      Config
	logger   *slog.Logger
	store    session.Store
	cat      catalog.Catalog
	pub      events.Publisher
	orch     *orchestrator.Orchestrator
	stats    *metrics.Collector
	adapters []transports.Adapter
	server   *http.Server

	closeStore func() error
}

func NewApp(cfg Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	a := &App{cfg: cfg, logger: logger, cat: cfg.Catalog()}

	if err := a.buildStore(); err != nil {
		return nil, err
	}
	model, err := buildModel(cfg.LLM)
	if err != nil {
		return nil, err
	}
	if err := a.buildPublisher(); err != nil {
		return nil, err
	}

	a.orch = orchestrator.New(a.store, a.cat, model,
		a.pub, logging.NewComponentLogger(logger, "orchestrator"))
	a.stats = metrics.NewCollector()
	a.orch.SetMetrics(a.stats)

	mux := http.NewServeMux()
	if err := a.buildAdapters(); err != nil {
		return nil, err
	}
	for _, ad := range a.adapters {
		ad.Register(mux)
		logger.Info("adapter_registered", slog.String("adapter", ad.Name()))
	}
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/metricsz", a.handleMetrics)

	a.server = &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}
	return a, nil
}

// Serve blocks until the listener fails or Drain is called.
func (a *App) Serve() error {
	a.logger.Info("server_listening", slog.String("addr", a.server.Addr))
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Drain shuts the HTTP listener down gracefully, then closes the event
// publisher and the store.
func (a *App) Drain() error {
	timeout := time.Duration(a.cfg.Server.DrainTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := a.server.Shutdown(ctx)
	if a.pub != nil {
		if cerr := a.pub.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if a.closeStore != nil {
		if cerr := a.closeStore(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (a *App) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.stats.Snapshot())
}

func (a *App) buildStore() error {
	switch a.cfg.Store.Backend {
	case "", "memory":
		a.store = session.NewMemoryStore()
	case "redis":
		rs := session.NewRedisStore(session.RedisOptions{
			Addr:     a.cfg.Store.Redis.Addr,
			Password: a.cfg.Store.Redis.Password,
			DB:       a.cfg.Store.Redis.DB,
		}, logging.NewComponentLogger(a.logger, "session"))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		a.store = rs
		a.closeStore = rs.Close
	default:
		return fmt.Errorf("unknown store backend: %s", a.cfg.Store.Backend)
	}
	return nil
}

type openAISettings struct {
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	BaseURL           string `mapstructure:"base_url"`
	UseCircuitBreaker *bool  `mapstructure:"use_circuit_breaker"`
	CircuitThreshold  int    `mapstructure:"circuit_threshold"`
	CircuitCooldownMS int    `mapstructure:"circuit_cooldown_ms"`
	RetryAttempts     int    `mapstructure:"retry_attempts"`
}

func buildModel(cfg VendorConfig) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		if err := configutil.ValidateSettings(cfg.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "base_url", "use_circuit_breaker", "circuit_threshold", "circuit_cooldown_ms", "retry_attempts"},
		}); err != nil {
			return nil, fmt.Errorf("llm settings: %w", err)
		}
		var s openAISettings
		if err := configutil.DecodeSettings(cfg.Settings, &s); err != nil {
			return nil, fmt.Errorf("llm settings: %w", err)
		}
		client := openai.NewClient(s.APIKey, s.Model)
		if s.BaseURL != "" {
			client.BaseURL = s.BaseURL
		}
		if !configutil.BoolValue(s.UseCircuitBreaker, true) {
			return client, nil
		}
		breaker := resilience.NewCircuitBreaker(
			configutil.IntValue(&s.CircuitThreshold, 3),
			time.Duration(configutil.IntValue(&s.CircuitCooldownMS, 30000))*time.Millisecond,
		)
		return llm.NewGuardedClient(client, breaker, llm.RetryConfig{
			MaxAttempts: configutil.IntValue(&s.RetryAttempts, 3),
		}), nil
	case "mock":
		return mock.NewLLMClient(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

func (a *App) buildPublisher() error {
	switch a.cfg.Events.Backend {
	case "", "none":
		a.pub = nil
	case "mqtt":
		pub, err := events.NewMQTTPublisher(events.MQTTOptions{
			Broker:   a.cfg.Events.MQTT.Broker,
			ClientID: a.cfg.Events.MQTT.ClientID,
			Username: a.cfg.Events.MQTT.Username,
			Password: a.cfg.Events.MQTT.Password,
			QoS:      byte(a.cfg.Events.MQTT.QoS),
		})
		if err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		a.pub = pub
	default:
		return fmt.Errorf("unknown events backend: %s", a.cfg.Events.Backend)
	}
	return nil
}

// buildAdapters creates one telephony adapter per active business. Webhook
// paths are prefixed with the business id when more than one business shares
// the server, so each tenant keeps its own routes.
func (a *App) buildAdapters() error {
	prefix := func(biz catalog.Business, path string) string {
		if len(a.cfg.Businesses) <= 1 {
			return path
		}
		return "/" + biz.ID + path
	}

	for _, biz := range a.cfg.Businesses {
		if !biz.Active {
			continue
		}
		logger := logging.NewComponentLogger(a.logger, biz.Provider)
		switch strings.ToLower(strings.TrimSpace(biz.Provider)) {
		case "twilio":
			a.adapters = append(a.adapters, twilio.New(twilio.Config{
				BusinessID:  biz.ID,
				AccountSID:  biz.Credentials.TwilioAccountSID,
				AuthToken:   biz.Credentials.TwilioAuthToken,
				PhoneNumber: biz.Credentials.TwilioPhoneNumber,
				PublicURL:   a.cfg.Server.PublicURL,
				VoicePath:   prefix(biz, "/twilio/voice"),
				SpeechPath:  prefix(biz, "/twilio/speech"),
				StatusPath:  prefix(biz, "/twilio/status"),
			}, a.orch, logger))
		case "vonage":
			a.adapters = append(a.adapters, vonage.New(vonage.Config{
				BusinessID:    biz.ID,
				APIKey:        biz.Credentials.VonageAPIKey,
				APISecret:     biz.Credentials.VonageAPISecret,
				ApplicationID: biz.Credentials.VonageApplicationID,
				PrivateKey:    biz.Credentials.VonagePrivateKey,
				PublicURL:     a.cfg.Server.PublicURL,
				AnswerPath:    prefix(biz, "/vonage/answer"),
				SpeechPath:    prefix(biz, "/vonage/speech"),
				EventPath:     prefix(biz, "/vonage/event"),
			}, a.orch, logger))
		case "telnyx":
			a.adapters = append(a.adapters, telnyx.New(telnyx.Config{
				BusinessID:   biz.ID,
				APIKey:       biz.Credentials.TelnyxAPIKey,
				ConnectionID: biz.Credentials.TelnyxConnectionID,
				PublicURL:    a.cfg.Server.PublicURL,
				WebhookPath:  prefix(biz, "/telnyx/webhook"),
			}, a.orch, a.cat, nil, logger))
		case "console":
			// handled below, console is not tenant-bound
		default:
			return fmt.Errorf("business %s: unknown provider %q", biz.ID, biz.Provider)
		}
	}

	if a.cfg.Console.Enabled {
		a.adapters = append(a.adapters, console.New(console.Config{Path: a.cfg.Console.Path},
			a.orch, logging.NewComponentLogger(a.logger, "console")))
	}
	return nil
}
