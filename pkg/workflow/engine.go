package workflow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/voicedesk/voicedesk/pkg/catalog"
	"github.com/voicedesk/voicedesk/pkg/fields"
)

// Validation is the outcome of checking collected data against a schema.
// Missing and field errors are distinct: a present-but-invalid optional field
// never blocks progression.
type Validation struct {
	Complete      bool
	MissingFields []string
	FieldErrors   []fields.Error
}

// Validate computes which required fields are still missing and which present
// values fail their type rules. Missing means absent or blank.
func Validate(svc catalog.Service, data map[string]string) Validation {
	v := Validation{Complete: true}
	for _, def := range svc.Fields {
		value, ok := data[def.Name]
		if def.Required && (!ok || strings.TrimSpace(value) == "") {
			v.MissingFields = append(v.MissingFields, def.Name)
			continue
		}
		if !ok {
			continue
		}
		if err := fields.Validate(def, value); err != nil {
			v.FieldErrors = append(v.FieldErrors, *err)
		}
	}
	v.Complete = len(v.MissingFields) == 0 && len(v.FieldErrors) == 0
	return v
}

// NextField picks the lowest-order missing field to prompt for next.
// Returns nil when nothing is missing.
func NextField(svc catalog.Service, missing []string) *fields.Definition {
	if len(missing) == 0 {
		return nil
	}
	missingSet := make(map[string]struct{}, len(missing))
	for _, name := range missing {
		missingSet[name] = struct{}{}
	}
	var candidates []fields.Definition
	for _, def := range svc.Fields {
		if _, ok := missingSet[def.Name]; ok {
			candidates = append(candidates, def)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Order < candidates[j].Order })
	return &candidates[0]
}

// Quote is a computed price line for a confirmed interaction.
type Quote struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

const taxRate = 0.10

// Price applies the fixed pricing formula. Returns nil when the service
// defines no pricing.
func Price(svc catalog.Service, data map[string]string) *Quote {
	if svc.Pricing == nil {
		return nil
	}
	p := svc.Pricing
	subtotal := p.BasePrice
	if p.Rules.QuantityMultiplier {
		if qty, err := strconv.ParseFloat(strings.TrimSpace(data["quantity"]), 64); err == nil {
			subtotal *= qty
		}
	}
	for fieldName, amount := range p.Rules.FieldAmounts {
		if v, ok := data[fieldName]; ok && strings.TrimSpace(v) != "" {
			subtotal += amount
		}
	}
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	tax := subtotal * taxRate
	return &Quote{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: 0,
		Total:    subtotal + tax,
		Currency: currency,
	}
}

// Summary renders one "<label>: <value>" line per collected field in schema
// field order.
func Summary(svc catalog.Service, data map[string]string) string {
	var lines []string
	for _, def := range svc.Fields {
		if v, ok := data[def.Name]; ok && strings.TrimSpace(v) != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", def.DisplayLabel(), v))
		}
	}
	return strings.Join(lines, "\n")
}
