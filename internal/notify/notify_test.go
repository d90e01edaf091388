package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartzone/internal/store"
	"smartzone/pkg/logx"
)

type fakeUsers struct {
	users map[string]store.User
}

func (f *fakeUsers) CreateUser(_ context.Context, u store.User) (string, error) { return u.ID, nil }

func (f *fakeUsers) GetUser(_ context.Context, userID string) (store.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, _ string) (store.User, error) {
	return store.User{}, store.ErrNotFound
}

func (f *fakeUsers) UpdateProfile(_ context.Context, _ string, _ store.ProfileUpdate) error {
	return nil
}

func (f *fakeUsers) SetPasswordHash(_ context.Context, _, _ string) error { return nil }
func (f *fakeUsers) DeleteUser(_ context.Context, _ string) error         { return nil }

type recordingSink struct {
	mu    sync.Mutex
	name  string
	fails int // fail this many sends before succeeding
	sent  []Reminder
	users []string
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, user store.User, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("send failed")
	}
	s.sent = append(s.sent, r)
	s.users = append(s.users, user.ID)
	return nil
}

func (s *recordingSink) delivered() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reminder, len(s.sent))
	copy(out, s.sent)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func testConfig() Config {
	return Config{
		Workers:       2,
		QueueSize:     16,
		RatePerSec:    1000,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
	}
}

func TestDeliversThroughAllSinks(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{users: map[string]store.User{"u1": {ID: "u1", TelegramChatID: 42}}}
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	svc := New(testConfig(), users, logx.Nop(), a, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	svc.Remind(ctx, "u1", "Starting soon!", "Algebra")

	waitFor(t, func() bool { return len(a.delivered()) == 1 && len(b.delivered()) == 1 })
	if got := a.delivered()[0]; got.Title != "Starting soon!" || got.Body != "Algebra" {
		t.Fatalf("delivered = %+v", got)
	}
}

func TestRetriesFailedSend(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{users: map[string]store.User{"u1": {ID: "u1"}}}
	sink := &recordingSink{name: "flaky", fails: 2}
	cfg := testConfig()
	cfg.RetryMax = 3
	svc := New(cfg, users, logx.Nop(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	svc.Remind(ctx, "u1", "t", "b")

	waitFor(t, func() bool { return len(sink.delivered()) == 1 })
}

func TestUnknownUserDropped(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{name: "a"}
	svc := New(testConfig(), &fakeUsers{users: map[string]store.User{}}, logx.Nop(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	svc.Remind(ctx, "ghost", "t", "b")
	svc.Stop(context.Background())

	if len(sink.delivered()) != 0 {
		t.Fatalf("delivered = %v", sink.delivered())
	}
}

func TestRemindAfterStopIsDropped(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{name: "a"}
	users := &fakeUsers{users: map[string]store.User{"u1": {ID: "u1"}}}
	svc := New(testConfig(), users, logx.Nop(), sink)

	svc.Start(context.Background())
	svc.Stop(context.Background())

	svc.Remind(context.Background(), "u1", "t", "b")
	if len(sink.delivered()) != 0 {
		t.Fatalf("delivered = %v", sink.delivered())
	}
}

func TestStopDrainsQueue(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{name: "a"}
	users := &fakeUsers{users: map[string]store.User{"u1": {ID: "u1"}}}
	svc := New(testConfig(), users, logx.Nop(), sink)

	ctx := context.Background()
	svc.Start(ctx)
	for i := 0; i < 10; i++ {
		svc.Remind(ctx, "u1", "t", "b")
	}
	svc.Stop(ctx)

	if got := len(sink.delivered()); got != 10 {
		t.Fatalf("delivered = %d, want 10", got)
	}
}

func TestLogSinkNeverFails(t *testing.T) {
	t.Parallel()

	s := NewLogSink(logx.Nop())
	if err := s.Send(context.Background(), store.User{ID: "u1"}, Reminder{Title: "t"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
