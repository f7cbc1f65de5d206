package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Connectivity: the daemon endpoint is absent or the connection failed.
	ReasonConnect     ReasonCode = "connect"
	ReasonSend        ReasonCode = "send"
	ReasonTimeout     ReasonCode = "timeout"
	ReasonUnavailable ReasonCode = "daemon_unavailable"

	// Application: the daemon answered with an error response.
	ReasonProtocol      ReasonCode = "protocol"
	ReasonSynthesis     ReasonCode = "synthesis"
	ReasonVoiceNotFound ReasonCode = "voice_not_found"
	ReasonReplayEmpty   ReasonCode = "replay_empty"
)
