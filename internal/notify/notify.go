// Package notify is the reminder delivery pipeline: a bounded queue feeding
// a worker pool that pushes each reminder through every configured sink,
// rate limited and retried with backoff. Delivery is best-effort; a failed
// send never propagates back to the planner.
package notify

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"smartzone/internal/store"
	"smartzone/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notify queue full")
	ErrStopped   = errors.New("notify service stopped")
)

// Reminder is one queued delivery.
type Reminder struct {
	UserID string
	Title  string
	Body   string
}

// Sink delivers a reminder to one channel. The user record is resolved
// before the sink runs so sinks can read contact fields (telegram chat id).
type Sink interface {
	Name() string
	Send(ctx context.Context, user store.User, r Reminder) error
}

// Config tunes the pipeline. Zero values pick sane defaults.
type Config struct {
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 10 * time.Second
	}
	return c
}

// Service is safe for concurrent use. Start before Remind; Stop drains the
// queue best-effort until its context deadline.
type Service struct {
	log     logx.Logger
	users   store.Users
	sinks   []Sink
	cfg     Config
	limiter *rate.Limiter

	mu        sync.Mutex
	queue     chan Reminder
	accepting bool
	sendWG    sync.WaitGroup
	workerWG  sync.WaitGroup
}

func New(cfg Config, users store.Users, log logx.Logger, sinks ...Sink) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Service{
		log:     log,
		users:   users,
		sinks:   sinks,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Start is idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.queue != nil {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan Reminder, s.cfg.QueueSize)
	s.accepting = true
	q := s.queue
	s.mu.Unlock()

	for i := 0; i < s.cfg.Workers; i++ {
		s.workerWG.Add(1)
		go func() {
			defer s.workerWG.Done()
			s.workerLoop(ctx, q)
		}()
	}
}

// Stop blocks intake, closes the queue and waits for workers to drain it,
// bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	q := s.queue
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.queue = nil
	s.accepting = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.sendWG.Wait()
		close(q)
		s.workerWG.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Remind enqueues a delivery. It implements the planner's Notifier and so
// swallows pipeline errors after logging them; a reminder the queue cannot
// take is lost, not retried.
func (s *Service) Remind(ctx context.Context, userID, title, body string) {
	if err := s.enqueue(ctx, Reminder{UserID: userID, Title: title, Body: body}); err != nil {
		s.log.Warn("reminder dropped",
			logx.String("user_id", userID),
			logx.Err(err),
		)
	}
}

func (s *Service) enqueue(ctx context.Context, r Reminder) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case q <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan Reminder) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, r)
		}
	}
}

func (s *Service) deliver(ctx context.Context, r Reminder) {
	user, err := s.users.GetUser(ctx, r.UserID)
	if err != nil {
		s.log.Warn("reminder for unknown user",
			logx.String("user_id", r.UserID),
			logx.Err(err),
		)
		return
	}
	for _, sink := range s.sinks {
		s.sendWithRetry(ctx, sink, user, r)
	}
}

func (s *Service) sendWithRetry(ctx context.Context, sink Sink, user store.User, r Reminder) {
	maxAttempts := 1 + s.cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := sink.Send(callCtx, user, r)
		cancel()
		if err == nil {
			return
		}
		lastErr = err
		s.log.Debug("reminder send failed",
			logx.String("sink", sink.Name()),
			logx.Int("attempt", attempt),
			logx.Err(err),
		)
		if attempt >= maxAttempts {
			break
		}

		t := time.NewTimer(retryDelay(s.cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		}
	}
	s.log.Warn("reminder delivery failed",
		logx.String("sink", sink.Name()),
		logx.String("user_id", r.UserID),
		logx.Err(lastErr),
	)
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// Exponential backoff from RetryBase, capped, with 0.7..1.3 jitter.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
