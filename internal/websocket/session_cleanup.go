package websocket

import (
	"time"

	"go.uber.org/zap"
)

const defaultCleanupInterval = time.Minute

// SessionCleanupService disconnects idle voice sessions in the background
type SessionCleanupService struct {
	hub         *Hub
	idleTimeout time.Duration
	interval    time.Duration
	logger      *zap.Logger
	stopChan    chan struct{}
	stopped     chan struct{}
}

// NewSessionCleanupService creates a new session cleanup service. Sessions
// idle for longer than idleTimeout are closed; zero only closes sessions
// past their expiry.
func NewSessionCleanupService(hub *Hub, idleTimeout, interval time.Duration, logger *zap.Logger) *SessionCleanupService {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &SessionCleanupService{
		hub:         hub,
		idleTimeout: idleTimeout,
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started",
		zap.Duration("idleTimeout", s.idleTimeout),
		zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	close(s.stopChan)
	<-s.stopped
	s.logger.Info("Session cleanup service stopped")
}

// cleanupLoop runs the cleanup process periodically
func (s *SessionCleanupService) cleanupLoop() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// runCleanup performs the actual cleanup of idle sessions
func (s *SessionCleanupService) runCleanup() {
	expired := s.hub.ExpireIdle(s.idleTimeout)
	if len(expired) == 0 {
		s.logger.Debug("Session cleanup found nothing to expire")
		return
	}

	s.logger.Info("Expired idle sessions",
		zap.Int("count", len(expired)),
		zap.Strings("sessionIDs", expired))
}
