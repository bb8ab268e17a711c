package language

import (
	"strings"
	"testing"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		text string
		want Code
	}{
		{"I'd like to order a pizza", English},
		{"", English},
		{"میں آرڈر کرنا چاہتا ہوں", Urdu},
		{"shukriya براہ کرم", Urdu},
		{"héllo thère", English}, // accented latin falls through to default
		{"hello, how are you?", English},
	}
	for _, tc := range cases {
		if got := Detect(tc.text); got != tc.want {
			t.Fatalf("Detect(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve(Urdu, []Code{English, Urdu}); got != Urdu {
		t.Fatalf("expected ur, got %q", got)
	}
	if got := Resolve(Urdu, []Code{English}); got != English {
		t.Fatalf("expected fallback to first supported, got %q", got)
	}
	if got := Resolve(French, []Code{"*"}); got != French {
		t.Fatalf("expected wildcard to accept fr, got %q", got)
	}
	if got := Resolve(French, nil); got != English {
		t.Fatalf("expected en default, got %q", got)
	}
}

func TestVoiceAndLocale(t *testing.T) {
	if got := Voice(Arabic, "vonage"); got != "Laila" {
		t.Fatalf("expected Laila, got %q", got)
	}
	if got := Voice(Chinese, "twilio"); got != "alice" {
		t.Fatalf("expected alice, got %q", got)
	}
	if got := Voice(English, "telnyx"); got != "female" {
		t.Fatalf("expected female, got %q", got)
	}
	if got := Locale(Urdu); got != "ur-PK" {
		t.Fatalf("expected ur-PK, got %q", got)
	}
	if got := Locale("xx"); got != "en-US" {
		t.Fatalf("expected en-US fallback, got %q", got)
	}
}

func TestPhrases(t *testing.T) {
	g := Greeting(English, "Mario's Pizza")
	if !strings.Contains(g, "Mario's Pizza") {
		t.Fatalf("greeting missing business name: %q", g)
	}
	if Greeting("xx", "X") == "" {
		t.Fatalf("expected english fallback greeting")
	}
	if RepeatPrompt(Urdu) == RepeatPrompt(English) {
		t.Fatalf("expected localized repeat prompt")
	}
	if Apology("xx") != Apology(English) {
		t.Fatalf("expected english fallback apology")
	}
}
