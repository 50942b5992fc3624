package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultQuietInterval is the silence after which a session stops by itself
const DefaultQuietInterval = 2000 * time.Millisecond

const eventBuffer = 64

// State of the capture session
type State int

const (
	StateIdle State = iota
	StateListening
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Option configures an Adapter
type Option func(*Adapter)

// WithQuietInterval sets the silence auto-stop interval; zero disables it
func WithQuietInterval(d time.Duration) Option {
	return func(a *Adapter) {
		a.quiet = d
	}
}

// Adapter turns an Engine into an explicit state machine. Final segments are
// accumulated during a session and delivered as a single Final event when the
// session ends, followed by Ended.
type Adapter struct {
	engine Engine
	quiet  time.Duration
	logger *zap.Logger
	events chan Event

	mu      sync.Mutex
	state   State
	session uint64
	timer   *time.Timer
	closed  bool
	wg      sync.WaitGroup
}

// NewAdapter creates a capture adapter; engine may be nil when the client
// has no recognition capability.
func NewAdapter(engine Engine, logger *zap.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		engine: engine,
		quiet:  DefaultQuietInterval,
		logger: logger,
		events: make(chan Event, eventBuffer),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Events returns the tagged event stream. It is closed by Close.
func (a *Adapter) Events() <-chan Event {
	return a.events
}

// State returns the current state
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start begins a new recognition session
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine == nil || a.closed {
		return ErrUnavailable
	}
	if a.state != StateIdle {
		return ErrAlreadyActive
	}

	segments, err := a.engine.Start(ctx)
	if err != nil {
		if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrAlreadyActive) {
			return err
		}
		return fmt.Errorf("failed to start recognition: %w", err)
	}

	a.session++
	a.state = StateListening
	a.wg.Add(1)
	go a.pump(a.session, segments)

	a.logger.Debug("Speech capture started", zap.Uint64("session", a.session))
	return nil
}

// Stop ends the current session. Accumulated final text is delivered once the
// engine has wound down. Stop is idempotent.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()
	return a.stopSession(session, "manual")
}

// Close stops any session, waits for it to drain and closes the event stream
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	session := a.session
	a.mu.Unlock()

	err := a.stopSession(session, "close")
	a.wg.Wait()
	close(a.events)
	return err
}

func (a *Adapter) stopSession(session uint64, reason string) error {
	a.mu.Lock()
	if a.session != session || a.state != StateListening {
		a.mu.Unlock()
		return nil
	}
	a.state = StateStopping
	a.stopTimerLocked()
	engine := a.engine
	a.mu.Unlock()

	a.logger.Debug("Stopping speech capture",
		zap.Uint64("session", session),
		zap.String("reason", reason))

	if err := engine.Stop(); err != nil {
		return fmt.Errorf("failed to stop recognition: %w", err)
	}
	return nil
}

func (a *Adapter) pump(session uint64, segments <-chan Segment) {
	defer a.wg.Done()

	var finals []string
	for seg := range segments {
		a.resetTimer(session)

		switch {
		case seg.Error != "":
			a.logger.Warn("Speech recognition error",
				zap.Uint64("session", session),
				zap.String("error", string(seg.Error)))
			a.emit(Failure(seg.Error))
			go a.stopSession(session, "error")
		case seg.Final:
			if text := strings.TrimSpace(seg.Text); text != "" {
				finals = append(finals, text)
			}
			a.emit(Interim(strings.Join(finals, " ")))
		default:
			a.emit(Interim(joinText(strings.Join(finals, " "), strings.TrimSpace(seg.Text))))
		}
	}

	a.mu.Lock()
	a.stopTimerLocked()
	a.mu.Unlock()

	if len(finals) > 0 {
		a.emit(Final(strings.Join(finals, " ")))
	}
	a.emit(Ended())

	a.mu.Lock()
	if a.session == session {
		a.state = StateIdle
	}
	a.mu.Unlock()

	a.logger.Debug("Speech capture ended",
		zap.Uint64("session", session),
		zap.Int("finalSegments", len(finals)))
}

func (a *Adapter) resetTimer(session uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.quiet <= 0 || a.session != session || a.state != StateListening {
		return
	}
	a.stopTimerLocked()
	a.timer = time.AfterFunc(a.quiet, func() {
		_ = a.stopSession(session, "silence")
	})
}

func (a *Adapter) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Adapter) emit(e Event) {
	a.events <- e
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
