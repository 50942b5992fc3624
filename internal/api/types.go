package api

import (
	"encoding/json"
	"time"
)

// GenAIRequest is the envelope of every /gen-ai call
type GenAIRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// SessionRequest represents the request payload for a voice session token
type SessionRequest struct {
	Language string `json:"language"`
}

// SessionResponse represents the response payload for a voice session token
type SessionResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse reports whether the backend can answer
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
