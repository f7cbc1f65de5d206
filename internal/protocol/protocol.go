// Package protocol defines the request/response types exchanged between the
// speakd daemon and its clients. Messages are JSON-encoded and sent over a
// Unix domain socket, one document per line in each direction.
package protocol

import "time"

// Action names accepted by the daemon.
const (
	ActionSpeak   = "speak"
	ActionReplay  = "replay"
	ActionStatus  = "status"
	ActionQuit    = "quit"
	ActionVoice   = "voice"
	ActionVoices  = "voices"
	ActionHistory = "history"
)

// Status values carried in a Response.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error codes for structured handling on the client side. Connectivity
// failures never reach this level; these classify application errors only.
const (
	CodeBadRequest      = "bad_request"
	CodeUnknownAction   = "unknown_action"
	CodeVoiceNotFound   = "voice_not_found"
	CodeSynthesisFailed = "synthesis_failed"
	CodeReplayEmpty     = "replay_empty"
	CodeHistoryDisabled = "history_disabled"
)

// Request is sent from a client to the daemon.
type Request struct {
	// ID is a unique identifier echoed back in the response for correlation.
	ID string `json:"id,omitempty"`

	// Action is the command verb: speak, replay, status, quit, voice, voices, history.
	Action string `json:"action"`

	// Text is the text to synthesize. Required for speak, ignored otherwise.
	Text string `json:"text,omitempty"`

	// Voice selects a reference voice. For speak it overrides the daemon's
	// current voice for this request only; for the voice action it becomes
	// the new current voice.
	Voice string `json:"voice,omitempty"`

	// Limit caps the number of history entries returned.
	Limit int `json:"limit,omitempty"`
}

// Response is sent from the daemon back to the client.
type Response struct {
	// ID matches the request ID, if one was supplied.
	ID string `json:"id,omitempty"`

	// Status is "success" or "error".
	Status string `json:"status"`

	// Seconds is the generation time for a successful speak request.
	Seconds float64 `json:"time,omitempty"`

	// Message is a human-readable summary or error detail.
	Message string `json:"message"`

	// Code classifies application errors (e.g. replay_empty, voice_not_found).
	Code string `json:"code,omitempty"`

	// Voices lists loaded voice names for the voices action.
	Voices []string `json:"voices,omitempty"`

	// Entries holds recent synthesis records for the history action.
	Entries []HistoryEntry `json:"entries,omitempty"`
}

// HistoryEntry is one recorded synthesis in a history response.
type HistoryEntry struct {
	Voice     string    `json:"voice"`
	Text      string    `json:"text"`
	Seconds   float64   `json:"seconds"`
	CreatedAt time.Time `json:"created_at"`
}

// OK reports whether the response carries a success status.
func (r *Response) OK() bool {
	return r.Status == StatusSuccess
}

// NewSuccess creates a successful response with a message.
func NewSuccess(message string) *Response {
	return &Response{Status: StatusSuccess, Message: message}
}

// NewError creates an error response with a structured code.
func NewError(code, message string) *Response {
	return &Response{Status: StatusError, Code: code, Message: message}
}
