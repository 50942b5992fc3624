package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleVoiceSession is the only role accepted on the WebSocket endpoint
const RoleVoiceSession = "voice_session"

// DefaultTokenTTL is how long a voice-session token stays valid
const DefaultTokenTTL = 12 * time.Hour

var (
	// ErrInvalidToken is returned for tokens that fail parsing or verification
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret is returned when no signing secret is configured
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// JWTClaims represents the claims in a voice-session token
type JWTClaims struct {
	SessionID string `json:"session_id"`
	Language  string `json:"language,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Issued is a freshly signed token
type Issued struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// Signer issues and validates HS256 voice-session tokens
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a signer; a non-positive ttl uses DefaultTokenTTL
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the token lifetime
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// IssueSessionToken creates a token for a new voice session
func (s *Signer) IssueSessionToken(language string) (Issued, error) {
	now := s.now()
	sessionID := uuid.NewString()
	expiresAt := now.Add(s.ttl)

	claims := &JWTClaims{
		SessionID: sessionID,
		Language:  language,
		Role:      RoleVoiceSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return Issued{Token: signed, SessionID: sessionID, ExpiresAt: expiresAt}, nil
}

// ValidateToken validates a token and returns its claims
func (s *Signer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleVoiceSession || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: not a voice-session token", ErrInvalidToken)
	}
	return claims, nil
}
