package voicedesk

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/voicedesk/voicedesk/pkg/catalog"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	LLM     VendorConfig  `mapstructure:"llm"`
	Events  EventsConfig  `mapstructure:"events"`
	Privacy PrivacyConfig `mapstructure:"privacy"`

	Console ConsoleConfig `mapstructure:"console"`

	Businesses []catalog.Business        `mapstructure:"businesses"`
	Services   []catalog.Service         `mapstructure:"services"`
	FAQs       []catalog.FAQ             `mapstructure:"faqs"`
	Training   []catalog.TrainingExample `mapstructure:"training"`
}

type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	PublicURL      string `mapstructure:"public_url"`
	DrainTimeoutMS int    `mapstructure:"drain_timeout_ms"`
}

type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// VendorConfig selects a provider by name with provider-specific settings,
// decoded by the factory that builds the provider.
type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type EventsConfig struct {
	Backend string     `mapstructure:"backend"`
	MQTT    MQTTConfig `mapstructure:"mqtt"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	QoS      int    `mapstructure:"qos"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

type ConsoleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.drain_timeout_ms", 10000)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("events.backend", "none")
	v.SetDefault("events.mqtt.client_id", "voicedesk")
	v.SetDefault("events.mqtt.qos", 1)
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("console.enabled", false)
	v.SetDefault("console.path", "/console/ws")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)
	cfg.LLM.Settings = expandSettings(cfg.LLM.Settings)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.Provider) == "" {
		return fmt.Errorf("llm.provider is required")
	}
	switch c.Store.Backend {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(c.Store.Redis.Addr) == "" {
			return fmt.Errorf("store.redis.addr is required")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}
	switch c.Events.Backend {
	case "", "none":
	case "mqtt":
		if strings.TrimSpace(c.Events.MQTT.Broker) == "" {
			return fmt.Errorf("events.mqtt.broker is required")
		}
	default:
		return fmt.Errorf("unknown events backend: %s", c.Events.Backend)
	}
	if len(c.Businesses) == 0 {
		return fmt.Errorf("at least one business is required")
	}
	seen := make(map[string]bool, len(c.Businesses))
	for i, b := range c.Businesses {
		if strings.TrimSpace(b.ID) == "" {
			return fmt.Errorf("businesses[%d].id is required", i)
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate business id: %s", b.ID)
		}
		seen[b.ID] = true
	}
	for i, s := range c.Services {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("services[%d].id is required", i)
		}
		if !seen[s.BusinessID] {
			return fmt.Errorf("services[%d] references unknown business %q", i, s.BusinessID)
		}
	}
	return nil
}

// Catalog builds the in-memory catalog from the configured tenants.
func (c *Config) Catalog() *catalog.Memory {
	cat := catalog.NewMemory()
	for _, b := range c.Businesses {
		cat.AddBusiness(b)
	}
	for _, s := range c.Services {
		cat.AddService(s)
	}
	for _, f := range c.FAQs {
		cat.AddFAQ(f)
	}
	for _, t := range c.Training {
		cat.AddTrainingExample(t)
	}
	return cat
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				v.SetMapIndex(key, reflect.ValueOf(os.ExpandEnv(val.String())))
			}
		}
	}
}
