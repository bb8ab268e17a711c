package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonLLMAnalyze   ReasonCode = "llm_analyze"
	ReasonLLMConverse  ReasonCode = "llm_converse"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"

	ReasonStoreRead      ReasonCode = "store_read"
	ReasonStoreWrite     ReasonCode = "store_write"
	ReasonSessionMissing ReasonCode = "session_missing"

	ReasonTelephonyCommand ReasonCode = "telephony_command"
	ReasonTelephonyDial    ReasonCode = "telephony_dial"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
	ReasonTransportSend             ReasonCode = "transport_send"

	ReasonPublish ReasonCode = "publish"
)
