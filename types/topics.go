package types

// Topic tokens shared by the charger and its observers.
const (
	TopicRoot      = "mppt"
	TopicTelemetry = "telemetry"
	TopicSafety    = "safety"
	TopicEvent     = "event"
	TopicState     = "state"
	TopicCmd       = "cmd"
)
