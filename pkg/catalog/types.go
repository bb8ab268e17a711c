package catalog

import (
	"github.com/voicedesk/voicedesk/pkg/fields"
)

// WorkflowType classifies what a completed interaction represents.
type WorkflowType string

const (
	WorkflowOrder     WorkflowType = "order"
	WorkflowBooking   WorkflowType = "booking"
	WorkflowInquiry   WorkflowType = "inquiry"
	WorkflowLead      WorkflowType = "lead"
	WorkflowComplaint WorkflowType = "complaint"
	WorkflowSupport   WorkflowType = "support"
	WorkflowCustom    WorkflowType = "custom"
)

// PricingRules is the fixed pricing formula configuration. A quantity
// multiplier scales the base price by the collected quantity; field rules
// add a flat amount when the named field was collected.
type PricingRules struct {
	QuantityMultiplier bool               `mapstructure:"quantity_multiplier" json:"quantityMultiplier"`
	FieldAmounts       map[string]float64 `mapstructure:"field_amounts" json:"fieldAmounts,omitempty"`
}

// Pricing is the optional price configuration of a service.
type Pricing struct {
	BasePrice float64      `mapstructure:"base_price" json:"basePrice"`
	Currency  string       `mapstructure:"currency" json:"currency"`
	Rules     PricingRules `mapstructure:"rules" json:"rules"`
}

// Service defines one service a business offers and the fields it collects.
// Read-only to the conversation core.
type Service struct {
	ID           string              `mapstructure:"id" json:"id"`
	BusinessID   string              `mapstructure:"business_id" json:"businessId"`
	Name         string              `mapstructure:"name" json:"name"`
	Description  string              `mapstructure:"description" json:"description,omitempty"`
	WorkflowType WorkflowType        `mapstructure:"workflow_type" json:"workflowType"`
	Fields       []fields.Definition `mapstructure:"fields" json:"fields"`
	Pricing      *Pricing            `mapstructure:"pricing" json:"pricing,omitempty"`
	Active       bool                `mapstructure:"active" json:"active"`
}

// RequiredFields returns the names of the service's required fields.
func (s Service) RequiredFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// FAQ is one canned question/answer pair.
type FAQ struct {
	ID         string `mapstructure:"id" json:"id"`
	BusinessID string `mapstructure:"business_id" json:"businessId"`
	Question   string `mapstructure:"question" json:"question"`
	Answer     string `mapstructure:"answer" json:"answer"`
	Active     bool   `mapstructure:"active" json:"active"`
}

// TrainingExample is a tenant-supplied example fed to the language model.
type TrainingExample struct {
	ID         string `mapstructure:"id" json:"id"`
	BusinessID string `mapstructure:"business_id" json:"businessId"`
	Language   string `mapstructure:"language" json:"language,omitempty"`
	Priority   int    `mapstructure:"priority" json:"priority"`
	User       string `mapstructure:"user" json:"user"`
	Assistant  string `mapstructure:"assistant" json:"assistant"`
}

// ProviderCredentials carries the per-business telephony credentials.
// Values are injected at construction, never read from process-wide state.
type ProviderCredentials struct {
	TwilioAccountSID  string `mapstructure:"twilio_account_sid" json:"-"`
	TwilioAuthToken   string `mapstructure:"twilio_auth_token" json:"-"`
	TwilioPhoneNumber string `mapstructure:"twilio_phone_number" json:"twilioPhoneNumber,omitempty"`

	VonageAPIKey        string `mapstructure:"vonage_api_key" json:"-"`
	VonageAPISecret     string `mapstructure:"vonage_api_secret" json:"-"`
	VonageApplicationID string `mapstructure:"vonage_application_id" json:"-"`
	VonagePrivateKey    string `mapstructure:"vonage_private_key" json:"-"`
	VonagePhoneNumber   string `mapstructure:"vonage_phone_number" json:"vonagePhoneNumber,omitempty"`

	TelnyxAPIKey       string `mapstructure:"telnyx_api_key" json:"-"`
	TelnyxConnectionID string `mapstructure:"telnyx_connection_id" json:"-"`
	TelnyxPhoneNumber  string `mapstructure:"telnyx_phone_number" json:"telnyxPhoneNumber,omitempty"`
}

// ConversationSettings are the tenant-tunable conversation knobs.
type ConversationSettings struct {
	Greeting           string `mapstructure:"greeting" json:"greeting,omitempty"`
	Closing            string `mapstructure:"closing" json:"closing,omitempty"`
	EnableTransfer     bool   `mapstructure:"enable_transfer" json:"enableTransfer"`
	TransferPhone      string `mapstructure:"transfer_phone" json:"transferPhone,omitempty"`
	SupportedLanguages []string `mapstructure:"supported_languages" json:"supportedLanguages,omitempty"`
}

// Business is one tenant. Read-only to the conversation core.
type Business struct {
	ID           string               `mapstructure:"id" json:"id"`
	Name         string               `mapstructure:"name" json:"name"`
	BusinessType string               `mapstructure:"business_type" json:"businessType"`
	Provider     string               `mapstructure:"provider" json:"provider"`
	Credentials  ProviderCredentials  `mapstructure:"credentials" json:"credentials"`
	Conversation ConversationSettings `mapstructure:"conversation" json:"conversation"`
	Active       bool                 `mapstructure:"active" json:"active"`
}

// SupportedLanguages defaults to English when the tenant configured none.
func (b Business) SupportedLanguages() []string {
	if len(b.Conversation.SupportedLanguages) == 0 {
		return []string{"en"}
	}
	return b.Conversation.SupportedLanguages
}
