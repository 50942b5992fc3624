package repositories

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotConfigured is returned when a provider lacks its credentials
var ErrNotConfigured = errors.New("backend not configured")

// ServiceError is a failure reported by an upstream AI provider
type ServiceError struct {
	Provider   string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err signals an exhausted quota
func IsRateLimited(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		if serviceErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return mentionsQuota(serviceErr.Message)
	}
	return err != nil && mentionsQuota(err.Error())
}

// StatusCode extracts the upstream status of err, or 0
func StatusCode(err error) int {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.StatusCode
	}
	return 0
}

func mentionsQuota(message string) bool {
	return strings.Contains(message, "429") || strings.Contains(message, "RESOURCE_EXHAUSTED")
}
