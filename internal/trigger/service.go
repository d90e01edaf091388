package trigger

import (
	"context"
	"strings"
	"sync"
	"time"

	"smartzone/pkg/logx"
)

// Payload travels from Arm to the handler when the trigger fires.
type Payload struct {
	Token   string
	UserID  string
	EventID string
	Title   string
}

// Handler receives fired payloads. It runs on its own goroutine; slow
// handlers delay nothing else.
type Handler func(ctx context.Context, p Payload)

// Option configures the service.
type Option func(*Service)

// WithExactWakeups installs a best-effort hook requesting precise wakeup
// delivery (e.g. a platform capability grant). It is invoked once, in the
// background, before the first arming.
func WithExactWakeups(fn func(ctx context.Context) error) Option {
	return func(s *Service) { s.ensureExact = fn }
}

// Service is a token-keyed table of armed one-shot timers.
type Service struct {
	log     logx.Logger
	handler Handler

	mu       sync.Mutex
	timers   map[string]*time.Timer
	armAt    map[string]time.Time
	payloads map[string]Payload
	// ver lets a fire callback detect that its arming was replaced or
	// disarmed while the callback was pending.
	ver     map[string]uint64
	stopped bool

	ensureExact func(ctx context.Context) error
	exactOnce   sync.Once
}

func New(log logx.Logger, handler Handler, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:      log,
		handler:  handler,
		timers:   map[string]*time.Timer{},
		armAt:    map[string]time.Time{},
		payloads: map[string]Payload{},
		ver:      map[string]uint64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm schedules a one-shot delivery of p at-or-after at. An existing arming
// for the same token is replaced.
func (s *Service) Arm(at time.Time, token string, p Payload) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	p.Token = token

	s.requestExactWakeups()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if t, ok := s.timers[token]; ok {
		_ = t.Stop()
		delete(s.timers, token)
	}
	ver := s.ver[token] + 1
	s.ver[token] = ver
	s.armAt[token] = at
	s.payloads[token] = p

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	localToken := token
	localVer := ver
	s.timers[token] = time.AfterFunc(delay, func() { s.fire(localToken, localVer) })

	s.log.Debug("trigger armed",
		logx.String("token", token),
		logx.Time("at", at),
		logx.Duration("in", delay),
	)
}

func (s *Service) fire(token string, ver uint64) {
	s.mu.Lock()
	if s.stopped || s.ver[token] != ver {
		// Replaced or disarmed while the callback was pending.
		s.mu.Unlock()
		return
	}
	p := s.payloads[token]
	delete(s.timers, token)
	delete(s.armAt, token)
	delete(s.payloads, token)
	delete(s.ver, token)
	handler := s.handler
	s.mu.Unlock()

	s.log.Debug("trigger fired", logx.String("token", token))
	if handler != nil {
		go handler(context.Background(), p)
	}
}

// Disarm cancels any pending arming for the token. It returns true if a
// trigger was actually armed. Unknown tokens are a no-op.
func (s *Service) Disarm(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[token]
	if !ok {
		return false
	}
	_ = t.Stop()
	delete(s.timers, token)
	delete(s.armAt, token)
	delete(s.payloads, token)
	delete(s.ver, token)

	s.log.Debug("trigger disarmed", logx.String("token", token))
	return true
}

// Armed reports whether the token currently has a pending trigger and when
// it would fire.
func (s *Service) Armed(token string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.armAt[token]
	return at, ok
}

// Stop cancels all pending timers. The service accepts no further armings.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for _, t := range s.timers {
		_ = t.Stop()
	}
	s.timers = map[string]*time.Timer{}
	s.armAt = map[string]time.Time{}
	s.payloads = map[string]Payload{}
	s.ver = map[string]uint64{}
}

func (s *Service) requestExactWakeups() {
	if s.ensureExact == nil {
		return
	}
	s.exactOnce.Do(func() {
		fn := s.ensureExact
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := fn(ctx); err != nil {
				s.log.Warn("exact wakeup request failed; deliveries stay best-effort", logx.Err(err))
			}
		}()
	})
}
