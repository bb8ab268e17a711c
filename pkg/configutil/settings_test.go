package configutil

import (
	"strings"
	"testing"
)

type sampleSettings struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	Threshold int    `mapstructure:"threshold"`
	Enabled   *bool  `mapstructure:"enabled"`
}

func TestDecodeSettingsNormalizesKeys(t *testing.T) {
	input := map[string]any{
		"API-Key":   "sk-test",
		"model":     "gpt-4o-mini",
		"THRESHOLD": "5",
		"enabled":   true,
	}
	var out sampleSettings
	if err := DecodeSettings(input, &out); err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if out.APIKey != "sk-test" {
		t.Fatalf("APIKey = %q", out.APIKey)
	}
	if out.Threshold != 5 {
		t.Fatalf("Threshold = %d, want weakly typed 5", out.Threshold)
	}
	if out.Enabled == nil || !*out.Enabled {
		t.Fatalf("Enabled = %v, want true", out.Enabled)
	}
}

func TestDecodeSettingsEmptyInputLeavesZeroValue(t *testing.T) {
	var out sampleSettings
	if err := DecodeSettings(nil, &out); err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if out.APIKey != "" || out.Threshold != 0 {
		t.Fatalf("expected zero value, got %+v", out)
	}
}

func TestValidateSettingsMissingRequired(t *testing.T) {
	err := ValidateSettings(map[string]any{"model": "gpt-4o-mini"}, Schema{
		Required: []string{"api_key"},
		Optional: []string{"model"},
	})
	if err == nil {
		t.Fatal("expected error for missing api_key")
	}
	if !strings.Contains(err.Error(), "missing: api_key") {
		t.Fatalf("error = %q, want missing: api_key", err)
	}
}

func TestValidateSettingsBlankRequiredCountsAsMissing(t *testing.T) {
	err := ValidateSettings(map[string]any{"api_key": "  "}, Schema{
		Required: []string{"api_key"},
	})
	if err == nil || !strings.Contains(err.Error(), "missing: api_key") {
		t.Fatalf("error = %v, want missing: api_key", err)
	}
}

func TestValidateSettingsRejectsUnknownKeys(t *testing.T) {
	err := ValidateSettings(map[string]any{
		"api_key": "sk-test",
		"voice":   "nova",
	}, Schema{
		Required: []string{"api_key"},
	})
	if err == nil || !strings.Contains(err.Error(), "unknown: voice") {
		t.Fatalf("error = %v, want unknown: voice", err)
	}
}

func TestValidateSettingsAllowUnknown(t *testing.T) {
	err := ValidateSettings(map[string]any{
		"api_key": "sk-test",
		"voice":   "nova",
	}, Schema{
		Required:     []string{"api_key"},
		AllowUnknown: true,
	})
	if err != nil {
		t.Fatalf("ValidateSettings: %v", err)
	}
}

func TestValidateSettingsKeyInsensitivity(t *testing.T) {
	err := ValidateSettings(map[string]any{"API-KEY": "sk-test"}, Schema{
		Required: []string{"api_key"},
	})
	if err != nil {
		t.Fatalf("ValidateSettings: %v", err)
	}
}

func TestPointerFallbacks(t *testing.T) {
	if got := BoolValue(nil, true); !got {
		t.Fatal("BoolValue(nil, true) = false")
	}
	v := false
	if got := BoolValue(&v, true); got {
		t.Fatal("BoolValue(&false, true) = true")
	}
	if got := IntValue(nil, 3); got != 3 {
		t.Fatalf("IntValue(nil, 3) = %d", got)
	}
	n := 7
	if got := IntValue(&n, 3); got != 7 {
		t.Fatalf("IntValue(&7, 3) = %d", got)
	}
}
