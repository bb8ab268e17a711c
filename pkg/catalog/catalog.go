package catalog

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned for lookups that match nothing.
var ErrNotFound = errors.New("catalog: not found")

// Catalog is the read-only lookup surface the conversation core consumes.
// Implementations must be safe for concurrent use.
type Catalog interface {
	Business(id string) (Business, error)
	BusinessByNumber(provider, number string) (Business, error)
	Service(id string) (Service, error)
	ActiveServices(businessID string) ([]Service, error)
	ActiveFAQs(businessID string) ([]FAQ, error)
	TrainingExamples(businessID, lang string) ([]TrainingExample, error)
}

// Memory is an in-memory Catalog, loaded once at startup from config.
type Memory struct {
	mu         sync.RWMutex
	businesses map[string]Business
	services   map[string]Service
	faqs       []FAQ
	training   []TrainingExample
}

func NewMemory() *Memory {
	return &Memory{
		businesses: make(map[string]Business),
		services:   make(map[string]Service),
	}
}

func (m *Memory) AddBusiness(b Business) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.businesses[b.ID] = b
}

func (m *Memory) AddService(s Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
}

func (m *Memory) AddFAQ(f FAQ) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faqs = append(m.faqs, f)
}

func (m *Memory) AddTrainingExample(t TrainingExample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.training = append(m.training, t)
}

func (m *Memory) Business(id string) (Business, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.businesses[id]
	if !ok {
		return Business{}, ErrNotFound
	}
	return b, nil
}

// BusinessByNumber resolves the tenant owning a provider phone number.
// Used by inbound webhooks, where only the dialed number identifies the tenant.
func (m *Memory) BusinessByNumber(provider, number string) (Business, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.businesses {
		var owned string
		switch provider {
		case "twilio":
			owned = b.Credentials.TwilioPhoneNumber
		case "vonage":
			owned = b.Credentials.VonagePhoneNumber
		case "telnyx":
			owned = b.Credentials.TelnyxPhoneNumber
		}
		if owned != "" && owned == number {
			return b, nil
		}
	}
	return Business{}, ErrNotFound
}

func (m *Memory) Service(id string) (Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok {
		return Service{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) ActiveServices(businessID string) ([]Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Service
	for _, s := range m.services {
		if s.BusinessID == businessID && s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ActiveFAQs(businessID string) ([]FAQ, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []FAQ
	for _, f := range m.faqs {
		if f.BusinessID == businessID && f.Active {
			out = append(out, f)
		}
	}
	return out, nil
}

// TrainingExamples returns examples for the requested language plus English
// fallbacks and untagged entries, highest priority first.
func (m *Memory) TrainingExamples(businessID, lang string) ([]TrainingExample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TrainingExample
	for _, t := range m.training {
		if t.BusinessID != businessID {
			continue
		}
		if t.Language == "" || t.Language == lang || t.Language == "en" {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

// MatchServiceName finds a service whose name contains the candidate or is
// contained by it, case-insensitively. The first match in name order wins.
func MatchServiceName(services []Service, candidate string) (Service, bool) {
	c := strings.ToLower(strings.TrimSpace(candidate))
	if c == "" {
		return Service{}, false
	}
	for _, s := range services {
		n := strings.ToLower(s.Name)
		if strings.Contains(n, c) || strings.Contains(c, n) {
			return s, true
		}
	}
	return Service{}, false
}

// MatchFAQ finds a FAQ whose question contains the utterance or vice versa,
// case-insensitively.
func MatchFAQ(faqs []FAQ, utterance string) (FAQ, bool) {
	u := strings.ToLower(strings.TrimSpace(utterance))
	if u == "" {
		return FAQ{}, false
	}
	for _, f := range faqs {
		q := strings.ToLower(f.Question)
		if strings.Contains(q, u) || strings.Contains(u, q) {
			return f, true
		}
	}
	return FAQ{}, false
}
