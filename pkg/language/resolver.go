package language

import (
	"regexp"
	"strings"
)

// Code is a two-letter language code. English is the universal fallback.
type Code = string

const (
	English Code = "en"
	Urdu    Code = "ur"
	Arabic  Code = "ar"
	Spanish Code = "es"
	French  Code = "fr"
	German  Code = "de"
	Hindi   Code = "hi"
	Chinese Code = "zh"
)

var urduScript = regexp.MustCompile(`[\x{0600}-\x{06FF}]`)

// Common Urdu words caught even when transcribed without full script coverage.
var urduWords = []string{
	"میں", "آپ", "ہے", "کیا", "کے", "سے", "کو", "پر", "ہو", "ہیں", "کر",
	"گا", "گی", "تھا", "تھی", "تھے", "ہوں",
	"سلام", "شکریہ", "براہ", "کرم", "جی", "ہاں", "نہیں", "مہربانی", "مدد",
	"چاہیے", "چاہتا", "چاہتی",
}

var asciiOnly = regexp.MustCompile(`^[a-zA-Z0-9\s\.,!?'"\-:;()]+$`)

// Detect classifies an utterance's language by script and keyword heuristics.
// Unknown or empty input defaults to English.
func Detect(text string) Code {
	if strings.TrimSpace(text) == "" {
		return English
	}
	if urduScript.MatchString(text) {
		return Urdu
	}
	for _, w := range urduWords {
		if strings.Contains(text, w) {
			return Urdu
		}
	}
	if asciiOnly.MatchString(text) {
		return English
	}
	return English
}

// Supported reports whether lang is in the business's supported set.
// A "*" entry allows any language.
func Supported(lang Code, supported []Code) bool {
	for _, s := range supported {
		if s == lang || s == "*" {
			return true
		}
	}
	return false
}

// Resolve picks the language to converse in: the detected language when the
// business supports it, else the business's first supported language, else English.
func Resolve(detected Code, supported []Code) Code {
	if Supported(detected, supported) {
		return detected
	}
	if len(supported) > 0 && supported[0] != "*" {
		return supported[0]
	}
	return English
}

var localeTags = map[Code]string{
	English: "en-US",
	Urdu:    "ur-PK",
	Arabic:  "ar-SA",
	Spanish: "es-ES",
	French:  "fr-FR",
	German:  "de-DE",
	Hindi:   "hi-IN",
	Chinese: "zh-CN",
}

// Locale returns the BCP-47 tag telephony providers expect for a language.
func Locale(lang Code) string {
	if tag, ok := localeTags[lang]; ok {
		return tag
	}
	return localeTags[English]
}

var vonageVoices = map[Code]string{
	English: "Amy",
	Urdu:    "Amy",
	Arabic:  "Laila",
	Spanish: "Enrique",
	French:  "Mathieu",
	German:  "Hans",
	Hindi:   "Aditi",
	Chinese: "Zhiyu",
}

// Voice resolves the provider-specific voice name for a language.
func Voice(lang Code, provider string) string {
	switch provider {
	case "vonage":
		if v, ok := vonageVoices[lang]; ok {
			return v
		}
		return vonageVoices[English]
	case "telnyx":
		return "female"
	default:
		return "alice"
	}
}
