package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Error describes why a value failed validation for one field.
type Error struct {
	Field   string
	Message string
}

func (e Error) Error() string { return e.Field + ": " + e.Message }

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-\+\(\)]+$`)
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	time.RFC3339,
	"01/02/2006",
}

type validator func(Definition, string) *Error

// validators is keyed by type tag; types without an entry validate as text.
var validators = map[Type]validator{
	TypeNumber:      validateNumber,
	TypeEmail:       validateEmail,
	TypePhone:       validatePhone,
	TypeDate:        validateDate,
	TypeDateTime:    validateDate,
	TypeSelect:      validateSelect,
	TypeMultiSelect: validateSelect,
}

// Validate checks a single value against a field definition. A nil result
// means the value is acceptable. Blank values are never validated here;
// missingness is the workflow engine's concern.
func Validate(def Definition, value string) *Error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if fn := validators[def.Type]; fn != nil {
		if err := fn(def, value); err != nil {
			return err
		}
	}
	if def.Rule.Pattern != "" {
		re, err := regexp.Compile(def.Rule.Pattern)
		if err != nil || !re.MatchString(value) {
			return &Error{Field: def.Name, Message: fmt.Sprintf("%s format is invalid", def.DisplayLabel())}
		}
	}
	if def.Rule.MinLength > 0 && len(value) < def.Rule.MinLength {
		return &Error{Field: def.Name, Message: fmt.Sprintf("%s must be at least %d characters", def.DisplayLabel(), def.Rule.MinLength)}
	}
	if def.Rule.MaxLength > 0 && len(value) > def.Rule.MaxLength {
		return &Error{Field: def.Name, Message: fmt.Sprintf("%s must be at most %d characters", def.DisplayLabel(), def.Rule.MaxLength)}
	}
	return nil
}

func validateNumber(def Definition, value string) *Error {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return &Error{Field: def.Name, Message: fmt.Sprintf("%s must be a number", def.DisplayLabel())}
	}
	if def.Rule.Min != nil && n < *def.Rule.Min {
		return &Error{Field: def.Name, Message: fmt.Sprintf("%s must be at least %v", def.DisplayLabel(), *def.Rule.Min)}
	}
	if def.Rule.Max != nil && n > *def.Rule.Max {
		return &Error{Field: def.Name, Message: fmt.Sprintf("%s must be at most %v", def.DisplayLabel(), *def.Rule.Max)}
	}
	return nil
}

func validateEmail(def Definition, value string) *Error {
	if !emailPattern.MatchString(strings.TrimSpace(value)) {
		return &Error{Field: def.Name, Message: fmt.Sprintf("%s must be a valid email", def.DisplayLabel())}
	}
	return nil
}

func validatePhone(def Definition, value string) *Error {
	if !phonePattern.MatchString(strings.TrimSpace(value)) {
		return &Error{Field: def.Name, Message: fmt.Sprintf("%s must be a valid phone number", def.DisplayLabel())}
	}
	return nil
}

func validateDate(def Definition, value string) *Error {
	v := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return nil
		}
	}
	return &Error{Field: def.Name, Message: fmt.Sprintf("%s must be a valid date", def.DisplayLabel())}
}

func validateSelect(def Definition, value string) *Error {
	if len(def.Rule.Options) == 0 {
		return nil
	}
	for _, opt := range def.Rule.Options {
		if strings.EqualFold(opt, strings.TrimSpace(value)) {
			return nil
		}
	}
	return &Error{Field: def.Name, Message: fmt.Sprintf("%s must be one of: %s", def.DisplayLabel(), strings.Join(def.Rule.Options, ", "))}
}
