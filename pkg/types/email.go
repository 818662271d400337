package types

import "time"

// NormalizedMessage is the protocol-agnostic form of a fetched message
// returned to the caller. It is built once per successful session and not
// mutated afterwards.
type NormalizedMessage struct {
	Subject  string    `json:"subject"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Date     time.Time `json:"date"`
	HTMLBody string    `json:"html"`
	TextBody string    `json:"text"`
}

// FetchRequest is the inbound request body for a single-message fetch.
type FetchRequest struct {
	Provider string `json:"provider"`
	Username string `json:"username"`
	Password string `json:"password"`
	Subject  string `json:"subject"`
}

// FetchResponse is the success envelope for a fetch request.
type FetchResponse struct {
	Success bool               `json:"success"`
	Data    *NormalizedMessage `json:"data"`
	Meta    ResponseMeta       `json:"meta"`
}

// ResponseMeta carries request observability fields.
type ResponseMeta struct {
	DurationSeconds float64 `json:"duration_seconds"`
}

// ErrorResponse is the failure envelope shared by every non-200 outcome.
type ErrorResponse struct {
	Success         bool    `json:"success"`
	Error           string  `json:"error"`
	Message         string  `json:"message,omitempty"`
	Help            string  `json:"help,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// HistoryEntry is one recorded fetch attempt. Only request metadata is
// stored, never message content.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	Provider   string    `json:"provider"`
	Outcome    string    `json:"outcome"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
