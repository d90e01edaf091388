package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartzone/internal/feed"
	"smartzone/internal/identity"
	"smartzone/internal/store"
	"smartzone/internal/trigger"
	"smartzone/pkg/logx"
)

type fakePlannerStore struct {
	mu     sync.Mutex
	events map[string]map[string]store.PlannerEvent // userID -> eventID -> event
	nextID int
	puts   []string // event ids in put order
}

func newFakePlannerStore() *fakePlannerStore {
	return &fakePlannerStore{events: map[string]map[string]store.PlannerEvent{}}
}

func (f *fakePlannerStore) PutEvent(_ context.Context, userID string, ev store.PlannerEvent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.ID == "" {
		f.nextID++
		ev.ID = string(rune('a' + f.nextID - 1))
	}
	for uid, evs := range f.events {
		if uid == userID {
			continue
		}
		if _, taken := evs[ev.ID]; taken {
			return "", store.ErrNotFound
		}
	}
	if f.events[userID] == nil {
		f.events[userID] = map[string]store.PlannerEvent{}
	}
	f.events[userID][ev.ID] = ev
	f.puts = append(f.puts, ev.ID)
	return ev.ID, nil
}

func (f *fakePlannerStore) GetEvent(_ context.Context, userID, eventID string) (store.PlannerEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[userID][eventID]
	if !ok {
		return store.PlannerEvent{}, store.ErrNotFound
	}
	return ev, nil
}

func (f *fakePlannerStore) ListEvents(_ context.Context, userID string) ([]store.PlannerEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.PlannerEvent
	for _, ev := range f.events[userID] {
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakePlannerStore) DeleteEvent(_ context.Context, userID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[userID][eventID]; !ok {
		return store.ErrNotFound
	}
	delete(f.events[userID], eventID)
	return nil
}

func (f *fakePlannerStore) ListAllEvents(_ context.Context) (map[string][]store.PlannerEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string][]store.PlannerEvent{}
	for uid, evs := range f.events {
		for _, ev := range evs {
			out[uid] = append(out[uid], ev)
		}
	}
	return out, nil
}

type armCall struct {
	at    time.Time
	token string
	p     trigger.Payload
}

type fakeTriggers struct {
	mu      sync.Mutex
	arms    []armCall
	disarms []string
}

func (f *fakeTriggers) Arm(at time.Time, token string, p trigger.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arms = append(f.arms, armCall{at: at, token: token, p: p})
}

func (f *fakeTriggers) Disarm(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disarms = append(f.disarms, token)
	for _, a := range f.arms {
		if a.token == token {
			return true
		}
	}
	return false
}

func (f *fakeTriggers) lastArm(t *testing.T) armCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.arms) == 0 {
		t.Fatal("no arm calls recorded")
	}
	return f.arms[len(f.arms)-1]
}

type remindCall struct {
	userID, title, body string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []remindCall
}

func (f *fakeNotifier) Remind(_ context.Context, userID, title, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remindCall{userID: userID, title: title, body: body})
}

func newTestService(st store.Planner, tr *fakeTriggers, n *fakeNotifier, bus feed.Bus) *Service {
	svc := NewService(st, identity.ContextProvider{}, tr, n, bus, logx.Nop())
	svc.now = func() time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // Monday
	}
	return svc
}

func authedCtx(userID string) context.Context {
	return identity.WithUser(context.Background(), userID)
}

func validEvent() store.PlannerEvent {
	return store.PlannerEvent{
		Title:                 "Algebra",
		Weekday:               3,
		StartMinutes:          540,
		ReminderMinutesBefore: 15,
		Timezone:              "UTC",
	}
}

func TestSavePersistsThenArms(t *testing.T) {
	t.Parallel()

	st := newFakePlannerStore()
	tr := &fakeTriggers{}
	svc := newTestService(st, tr, &fakeNotifier{}, feed.New())

	saved, err := svc.Save(authedCtx("u1"), validEvent())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("saved event has empty id")
	}
	if _, err := st.GetEvent(context.Background(), "u1", saved.ID); err != nil {
		t.Fatalf("event not persisted: %v", err)
	}

	arm := tr.lastArm(t)
	if arm.token != ReminderToken(saved.ID) {
		t.Fatalf("armed token %q", arm.token)
	}
	want := time.Date(2024, 1, 3, 8, 45, 0, 0, time.UTC)
	if !arm.at.Equal(want) {
		t.Fatalf("armed at %v, want %v", arm.at, want)
	}
	if arm.p.UserID != "u1" || arm.p.Title != "Algebra" {
		t.Fatalf("payload = %+v", arm.p)
	}
}

func TestSaveRejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	st := newFakePlannerStore()
	tr := &fakeTriggers{}
	svc := newTestService(st, tr, &fakeNotifier{}, feed.New())

	ev := validEvent()
	ev.Timezone = "Nope/Nope"
	if _, err := svc.Save(authedCtx("u1"), ev); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("err = %v, want ErrInvalidTimezone", err)
	}
	if len(st.puts) != 0 {
		t.Fatal("invalid event was persisted")
	}
	if len(tr.arms) != 0 {
		t.Fatal("invalid event armed a trigger")
	}
}

func TestSaveForeignEventIDDoesNotArm(t *testing.T) {
	t.Parallel()

	st := newFakePlannerStore()
	tr := &fakeTriggers{}
	svc := newTestService(st, tr, &fakeNotifier{}, feed.New())

	saved, err := svc.Save(authedCtx("alice"), validEvent())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	hijack := validEvent()
	hijack.ID = saved.ID
	hijack.Title = "hijack"
	if _, err := svc.Save(authedCtx("bob"), hijack); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// Alice's token must still hold the arming from her own save.
	if len(tr.arms) != 1 {
		t.Fatalf("arm calls = %d, want 1", len(tr.arms))
	}
	if arm := tr.lastArm(t); arm.p.UserID != "alice" {
		t.Fatalf("armed payload = %+v", arm.p)
	}
}

func TestSaveRequiresAuthentication(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakePlannerStore(), &fakeTriggers{}, &fakeNotifier{}, feed.New())

	if _, err := svc.Save(context.Background(), validEvent()); !errors.Is(err, identity.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestSaveReplaceReusesToken(t *testing.T) {
	t.Parallel()

	st := newFakePlannerStore()
	tr := &fakeTriggers{}
	svc := newTestService(st, tr, &fakeNotifier{}, feed.New())

	ctx := authedCtx("u1")
	saved, err := svc.Save(ctx, validEvent())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved.StartMinutes = 600
	if _, err := svc.Save(ctx, saved); err != nil {
		t.Fatalf("Save replace: %v", err)
	}

	if len(tr.arms) != 2 {
		t.Fatalf("arm calls = %d, want 2", len(tr.arms))
	}
	if tr.arms[0].token != tr.arms[1].token {
		t.Fatalf("replacement armed a new token: %q vs %q", tr.arms[0].token, tr.arms[1].token)
	}
	want := time.Date(2024, 1, 3, 9, 45, 0, 0, time.UTC)
	if !tr.arms[1].at.Equal(want) {
		t.Fatalf("re-armed at %v, want %v", tr.arms[1].at, want)
	}
}

func TestDeleteDisarms(t *testing.T) {
	t.Parallel()

	st := newFakePlannerStore()
	tr := &fakeTriggers{}
	svc := newTestService(st, tr, &fakeNotifier{}, feed.New())

	ctx := authedCtx("u1")
	saved, err := svc.Save(ctx, validEvent())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := svc.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(tr.disarms) != 1 || tr.disarms[0] != ReminderToken(saved.ID) {
		t.Fatalf("disarms = %v", tr.disarms)
	}
	if _, err := st.GetEvent(context.Background(), "u1", saved.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("event still stored: %v", err)
	}
}

func TestDeleteUnknownStillDisarms(t *testing.T) {
	t.Parallel()

	tr := &fakeTriggers{}
	svc := newTestService(newFakePlannerStore(), tr, &fakeNotifier{}, feed.New())

	err := svc.Delete(authedCtx("u1"), "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(tr.disarms) != 1 {
		t.Fatalf("disarms = %v", tr.disarms)
	}
}

func TestCancelReminderEmptyIDNoop(t *testing.T) {
	t.Parallel()

	tr := &fakeTriggers{}
	svc := newTestService(newFakePlannerStore(), tr, &fakeNotifier{}, feed.New())

	svc.CancelReminder("")
	if len(tr.disarms) != 0 {
		t.Fatalf("disarms = %v", tr.disarms)
	}
}

func TestListSortedByWeekdayThenStart(t *testing.T) {
	t.Parallel()

	st := newFakePlannerStore()
	svc := newTestService(st, &fakeTriggers{}, &fakeNotifier{}, feed.New())
	ctx := authedCtx("u1")

	mk := func(title string, weekday, start int) {
		ev := validEvent()
		ev.Title = title
		ev.Weekday = weekday
		ev.StartMinutes = start
		if _, err := svc.Save(ctx, ev); err != nil {
			t.Fatalf("Save %s: %v", title, err)
		}
	}
	mk("fri late", 5, 900)
	mk("mon", 1, 300)
	mk("fri early", 5, 60)
	mk("wed", 3, 540)

	evs, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, ev := range evs {
		got = append(got, ev.Title)
	}
	want := []string{"mon", "wed", "fri early", "fri late"}
	if len(got) != len(want) {
		t.Fatalf("titles = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("titles = %v, want %v", got, want)
		}
	}
}

func TestHandleFireNotifiesAndRearms(t *testing.T) {
	t.Parallel()

	st := newFakePlannerStore()
	tr := &fakeTriggers{}
	n := &fakeNotifier{}
	svc := newTestService(st, tr, n, feed.New())

	ctx := authedCtx("u1")
	saved, err := svc.Save(ctx, validEvent())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	svc.HandleFire(context.Background(), trigger.Payload{
		Token:   ReminderToken(saved.ID),
		UserID:  "u1",
		EventID: saved.ID,
		Title:   saved.Title,
	})

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) != 1 {
		t.Fatalf("remind calls = %d", len(n.calls))
	}
	if c := n.calls[0]; c.title != "Starting soon!" || c.body != "Algebra" || c.userID != "u1" {
		t.Fatalf("remind call = %+v", c)
	}
	if len(tr.arms) != 2 {
		t.Fatalf("arm calls = %d, want re-arm after fire", len(tr.arms))
	}
}

func TestHandleFireEmptyTitleFallback(t *testing.T) {
	t.Parallel()

	n := &fakeNotifier{}
	svc := newTestService(newFakePlannerStore(), &fakeTriggers{}, n, feed.New())

	svc.HandleFire(context.Background(), trigger.Payload{UserID: "u1", EventID: "gone"})

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) != 1 || n.calls[0].body != "Planned event" {
		t.Fatalf("remind calls = %+v", n.calls)
	}
}

func TestRearmAllArmsEveryStoredEvent(t *testing.T) {
	t.Parallel()

	st := newFakePlannerStore()
	for _, uid := range []string{"u1", "u2"} {
		for i := 0; i < 2; i++ {
			ev := validEvent()
			ev.Weekday = i + 1
			if _, err := st.PutEvent(context.Background(), uid, ev); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}
	}

	tr := &fakeTriggers{}
	svc := newTestService(st, tr, &fakeNotifier{}, feed.New())

	if err := svc.RearmAll(context.Background()); err != nil {
		t.Fatalf("RearmAll: %v", err)
	}
	if len(tr.arms) != 4 {
		t.Fatalf("arm calls = %d, want 4", len(tr.arms))
	}
}

func TestWatchEmitsInitialAndUpdatedSnapshots(t *testing.T) {
	t.Parallel()

	st := newFakePlannerStore()
	bus := feed.New()
	svc := newTestService(st, &fakeTriggers{}, &fakeNotifier{}, bus)

	ctx, cancel := context.WithCancel(authedCtx("u1"))
	defer cancel()

	snaps, err := svc.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	first := <-snaps
	if len(first) != 0 {
		t.Fatalf("initial snapshot = %v", first)
	}

	saved, err := svc.Save(ctx, validEvent())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	bus.Publish(feed.Change{Collection: feed.CollectionPlanner, UserID: "u1", DocID: saved.ID})

	select {
	case snap := <-snaps:
		if len(snap) != 1 || snap[0].ID != saved.ID {
			t.Fatalf("snapshot = %v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after mutation")
	}

	// Other users' changes do not produce a snapshot.
	bus.Publish(feed.Change{Collection: feed.CollectionPlanner, UserID: "u2", DocID: "x"})
	select {
	case snap, ok := <-snaps:
		if ok {
			t.Fatalf("unexpected snapshot for foreign change: %v", snap)
		}
	case <-time.After(100 * time.Millisecond):
	}
}
