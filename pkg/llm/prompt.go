package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/voicedesk/voicedesk/pkg/catalog"
	"github.com/voicedesk/voicedesk/pkg/session"
)

// BuildSystemPrompt assembles the business-aware system prompt shared by the
// analysis and conversation calls.
func BuildSystemPrompt(business *catalog.Business, service *catalog.Service, services []catalog.Service, faqs []catalog.FAQ, training []catalog.TrainingExample, language string) string {
	var b strings.Builder

	name := "the business"
	if business != nil {
		name = business.Name
		fmt.Fprintf(&b, "You are a phone assistant for %s", business.Name)
		if business.BusinessType != "" {
			fmt.Fprintf(&b, ", a %s", business.BusinessType)
		}
		b.WriteString(".\n")
	} else {
		b.WriteString("You are a phone assistant.\n")
	}
	b.WriteString("You handle calls on behalf of " + name + ". Keep replies short and speakable.\n")

	if len(services) > 0 {
		b.WriteString("\nAvailable services:\n")
		for _, svc := range services {
			fmt.Fprintf(&b, "- %s", svc.Name)
			if svc.Description != "" {
				fmt.Fprintf(&b, ": %s", svc.Description)
			}
			b.WriteString("\n")
			if len(svc.Fields) > 0 {
				var defs []string
				for _, f := range svc.Fields {
					label := f.DisplayLabel()
					if f.Required {
						label += " (required)"
					}
					defs = append(defs, label)
				}
				fmt.Fprintf(&b, "  fields: %s\n", strings.Join(defs, ", "))
			}
		}
	}

	if service != nil {
		fmt.Fprintf(&b, "\nThe caller is working on: %s.\n", service.Name)
	}

	if len(faqs) > 0 {
		b.WriteString("\nFrequently asked questions:\n")
		for _, faq := range faqs {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", faq.Question, faq.Answer)
		}
	}

	if len(training) > 0 {
		b.WriteString("\nExample exchanges:\n")
		for _, ex := range training {
			fmt.Fprintf(&b, "Caller: %s\nAssistant: %s\n", ex.User, ex.Assistant)
		}
	}

	b.WriteString("\n" + languageInstruction(language) + "\n")
	return b.String()
}

func languageInstruction(language string) string {
	switch language {
	case "ur":
		return "Respond in Urdu using Urdu script. Do not transliterate into Latin characters."
	case "en", "":
		return "Respond in English."
	default:
		return fmt.Sprintf("Respond in the language with ISO 639-1 code %q.", language)
	}
}

// CollectedSummary renders collected data as prompt context, sorted for
// stable output.
func CollectedSummary(data map[string]string) string {
	if len(data) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+data[k])
	}
	return strings.Join(parts, ", ")
}

// HistoryMessages converts stored conversation history into chat messages,
// newest last.
func HistoryMessages(history []session.Message) []map[string]any {
	out := make([]map[string]any, 0, len(history))
	for _, msg := range history {
		role := "user"
		if msg.Type == session.MessageAssistant {
			role = "assistant"
		}
		out = append(out, map[string]any{"role": role, "content": msg.Text})
	}
	return out
}
