package api

import (
	"time"
)

// Client message types accepted on the websocket.
const (
	MessageSearch   = "search"
	MessageSubmit   = "submit"
	MessageSnippets = "snippets"
)

// ClientMessage is what a browser page sends over the websocket.
type ClientMessage struct {
	Type string   `json:"type"`
	Q    string   `json:"q,omitempty"`
	IDs  []string `json:"ids,omitempty"`
}

// InitMessage is the first frame sent on a new connection.
type InitMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Sessions  int       `json:"sessions"`
}
