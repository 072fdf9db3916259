package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type ProtectedSenderConfig struct {
	Timeout          time.Duration // hard timeout per send
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half_open"
)

// ProtectedSender bounds each send with a timeout and stops calling a
// failing provider until a cooldown has passed.
type ProtectedSender struct {
	inner Sender
	cfg   ProtectedSenderConfig
	now   func() time.Time
	mu    sync.Mutex

	state breakerState

	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtectedSender(inner Sender, cfg ProtectedSenderConfig) *ProtectedSender {
	//defaults
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedSender{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: stateClosed,
	}
}

func (s *ProtectedSender) Send(ctx context.Context, msg Message) error {
	// fail-fast gate
	if !s.allowRequest() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err := s.inner.Send(sendCtx, msg)

	s.afterRequest(err)

	return err
}

// State reports the breaker state; used by tests and readiness output.
func (s *ProtectedSender) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.state)
}

func (s *ProtectedSender) allowRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return true
	case stateOpen:
		if s.now().Sub(s.openedAt) < s.cfg.Cooldown {
			return false
		}
		s.state = stateHalfOpen
		s.halfOpenInFlight = 1
		return true
	case stateHalfOpen:
		if s.halfOpenInFlight >= s.cfg.HalfOpenMaxCalls {
			return false
		}
		s.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (s *ProtectedSender) afterRequest(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateHalfOpen && s.halfOpenInFlight > 0 {
		s.halfOpenInFlight--
	}

	if err == nil {
		s.consecutiveFailures = 0
		s.state = stateClosed
		return
	}

	s.consecutiveFailures++

	// a failed trial call reopens immediately
	if s.state == stateHalfOpen {
		s.state = stateOpen
		s.openedAt = s.now()
		return
	}

	if s.consecutiveFailures >= s.cfg.FailureThreshold {
		s.state = stateOpen
		s.openedAt = s.now()
	}
}
