package otel

// Metric prefixes per subsystem
// Each package defines its own metric names and uses these prefixes
const (
	PrefixLive = "live"
	PrefixPush = "push"
	PrefixChat = "chat"
)
