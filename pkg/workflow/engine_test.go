package workflow

import (
	"math"
	"testing"

	"github.com/voicedesk/voicedesk/pkg/catalog"
	"github.com/voicedesk/voicedesk/pkg/fields"
)

func pizzaService() catalog.Service {
	return catalog.Service{
		ID:           "svc-pizza",
		BusinessID:   "biz-1",
		Name:         "Pizza Margherita",
		WorkflowType: catalog.WorkflowOrder,
		Fields: []fields.Definition{
			{Name: "name", Label: "Name", Type: fields.TypeText, Required: true, Order: 1},
			{Name: "quantity", Label: "Quantity", Type: fields.TypeNumber, Required: true, Order: 2},
			{Name: "address", Label: "Delivery Address", Type: fields.TypeAddress, Required: true, Order: 3},
			{Name: "notes", Label: "Notes", Type: fields.TypeTextArea, Order: 4},
		},
		Pricing: &catalog.Pricing{
			BasePrice: 15.99,
			Currency:  "USD",
			Rules:     catalog.PricingRules{QuantityMultiplier: true},
		},
		Active: true,
	}
}

func TestValidateMissingFields(t *testing.T) {
	svc := pizzaService()

	v := Validate(svc, map[string]string{})
	if v.Complete {
		t.Fatalf("expected incomplete")
	}
	if len(v.MissingFields) != 3 {
		t.Fatalf("expected 3 missing fields, got %v", v.MissingFields)
	}

	// Blank counts as missing.
	v = Validate(svc, map[string]string{"name": "   ", "quantity": "2", "address": "12 Main St"})
	if len(v.MissingFields) != 1 || v.MissingFields[0] != "name" {
		t.Fatalf("expected name missing, got %v", v.MissingFields)
	}

	v = Validate(svc, map[string]string{"name": "Ali", "quantity": "2", "address": "12 Main St"})
	if !v.Complete {
		t.Fatalf("expected complete, got missing=%v errors=%v", v.MissingFields, v.FieldErrors)
	}
}

func TestValidateOrderIndependent(t *testing.T) {
	svc := pizzaService()
	a := map[string]string{"quantity": "2", "name": "Ali"}
	b := map[string]string{"name": "Ali", "quantity": "2"}
	va, vb := Validate(svc, a), Validate(svc, b)
	if len(va.MissingFields) != len(vb.MissingFields) {
		t.Fatalf("missing fields differ by merge order: %v vs %v", va.MissingFields, vb.MissingFields)
	}
	for i := range va.MissingFields {
		if va.MissingFields[i] != vb.MissingFields[i] {
			t.Fatalf("missing fields differ by merge order: %v vs %v", va.MissingFields, vb.MissingFields)
		}
	}
}

func TestValidateTypeErrorDistinctFromMissing(t *testing.T) {
	svc := pizzaService()
	v := Validate(svc, map[string]string{"name": "Ali", "quantity": "lots", "address": "12 Main St"})
	if len(v.MissingFields) != 0 {
		t.Fatalf("invalid value must not count as missing: %v", v.MissingFields)
	}
	if len(v.FieldErrors) != 1 || v.FieldErrors[0].Field != "quantity" {
		t.Fatalf("expected quantity field error, got %v", v.FieldErrors)
	}
}

func TestNextFieldByOrder(t *testing.T) {
	svc := pizzaService()
	next := NextField(svc, []string{"address", "quantity"})
	if next == nil || next.Name != "quantity" {
		t.Fatalf("expected quantity (lowest order), got %v", next)
	}
	if NextField(svc, nil) != nil {
		t.Fatalf("expected nil when nothing missing")
	}
}

func TestPriceQuantityMultiplier(t *testing.T) {
	svc := pizzaService()
	q := Price(svc, map[string]string{"quantity": "3"})
	if q == nil {
		t.Fatalf("expected a quote")
	}
	if !closeTo(q.Subtotal, 47.97) {
		t.Fatalf("subtotal = %v, want 47.97", q.Subtotal)
	}
	if !closeTo(q.Tax, 4.797) {
		t.Fatalf("tax = %v, want 4.797", q.Tax)
	}
	if !closeTo(q.Total, 52.767) {
		t.Fatalf("total = %v, want 52.767", q.Total)
	}
	if q.Currency != "USD" || q.Discount != 0 {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestPriceFieldAmounts(t *testing.T) {
	svc := pizzaService()
	svc.Pricing.Rules.FieldAmounts = map[string]float64{"notes": 2.00}
	q := Price(svc, map[string]string{"quantity": "1", "notes": "extra cheese"})
	if !closeTo(q.Subtotal, 17.99) {
		t.Fatalf("subtotal = %v, want 17.99", q.Subtotal)
	}
}

func TestPriceNilWithoutPricing(t *testing.T) {
	svc := pizzaService()
	svc.Pricing = nil
	if Price(svc, map[string]string{"quantity": "3"}) != nil {
		t.Fatalf("expected nil quote")
	}
}

func TestSummarySchemaOrder(t *testing.T) {
	svc := pizzaService()
	got := Summary(svc, map[string]string{"address": "12 Main St", "name": "Ali"})
	want := "Name: Ali\nDelivery Address: 12 Main St"
	if got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
}

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}
