package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the status of a voice session
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusExpired    SessionStatus = "expired"
	SessionStatusTerminated SessionStatus = "terminated"
)

// DefaultSessionTTL bounds how long an idle voice session stays usable
const DefaultSessionTTL = 12 * time.Hour

// VoiceSession tracks one browser connection and its in-memory transcript
type VoiceSession struct {
	ID           string        `json:"id"`
	Language     string        `json:"language"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActiveAt time.Time     `json:"last_active_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Status       SessionStatus `json:"status"`

	ttl time.Duration
}

// NewVoiceSession creates a new session with a random ID
func NewVoiceSession(language string, ttl time.Duration) *VoiceSession {
	return NewVoiceSessionWithID(uuid.NewString(), language, ttl)
}

// NewVoiceSessionWithID creates a session for an ID issued elsewhere (a token)
func NewVoiceSessionWithID(id, language string, ttl time.Duration) *VoiceSession {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	return &VoiceSession{
		ID:           id,
		Language:     language,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(ttl),
		Status:       SessionStatusActive,
		ttl:          ttl,
	}
}

// Touch updates the last active timestamp and extends expiration
func (s *VoiceSession) Touch() {
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt.Add(s.ttl)
}

// IsExpired checks if the session has expired
func (s *VoiceSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt) || s.Status != SessionStatusActive
}

// IdleFor reports how long the session has been inactive
func (s *VoiceSession) IdleFor() time.Duration {
	return time.Since(s.LastActiveAt)
}

// Terminate marks the session as terminated
func (s *VoiceSession) Terminate() {
	s.Status = SessionStatusTerminated
}

// Expire marks the session as expired
func (s *VoiceSession) Expire() {
	s.Status = SessionStatusExpired
}

// Validate validates the session data
func (s *VoiceSession) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}

	if s.Status != SessionStatusActive && s.Status != SessionStatusExpired && s.Status != SessionStatusTerminated {
		return errors.New("invalid session status")
	}

	return nil
}
