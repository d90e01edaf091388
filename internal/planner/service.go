package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"smartzone/internal/feed"
	"smartzone/internal/identity"
	"smartzone/internal/store"
	"smartzone/internal/trigger"
	"smartzone/pkg/logx"
)

// Triggers is the slice of the trigger service the planner needs.
type Triggers interface {
	Arm(at time.Time, token string, p trigger.Payload)
	Disarm(token string) bool
}

// Notifier delivers a reminder to a user. Implementations must not block
// for long; the planner calls Remind from trigger goroutines.
type Notifier interface {
	Remind(ctx context.Context, userID, title, body string)
}

// Service owns the weekly planner: event persistence, reminder scheduling
// and the realtime event feed.
type Service struct {
	store    store.Planner
	ids      identity.Provider
	triggers Triggers
	notify   Notifier
	bus      feed.Bus
	log      logx.Logger
	now      func() time.Time
}

func NewService(st store.Planner, ids identity.Provider, triggers Triggers, notify Notifier, bus feed.Bus, log logx.Logger) *Service {
	return &Service{
		store:    st,
		ids:      ids,
		triggers: triggers,
		notify:   notify,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) userID(ctx context.Context) (string, error) {
	uid, ok := s.ids.CurrentUserID(ctx)
	if !ok {
		return "", identity.ErrNotAuthenticated
	}
	return uid, nil
}

// Save validates and persists ev for the current user, then (re)schedules
// its reminder. A zero ID creates a new event; a known ID replaces it and
// the replacement re-arms the same trigger token, so the stale reminder can
// never fire.
func (s *Service) Save(ctx context.Context, ev store.PlannerEvent) (store.PlannerEvent, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return store.PlannerEvent{}, err
	}
	if err := ValidateEvent(ev); err != nil {
		return store.PlannerEvent{}, err
	}

	id, err := s.store.PutEvent(ctx, uid, ev)
	if err != nil {
		return store.PlannerEvent{}, fmt.Errorf("save planner event: %w", err)
	}
	saved := ev
	saved.ID = id

	if err := s.schedule(uid, saved); err != nil {
		// The event is saved either way; a scheduling failure surfaces so
		// the caller knows no reminder is armed.
		return saved, err
	}
	return saved, nil
}

// Delete removes the event and disarms its reminder. Deleting an unknown id
// returns store.ErrNotFound; the disarm is attempted regardless.
func (s *Service) Delete(ctx context.Context, eventID string) error {
	uid, err := s.userID(ctx)
	if err != nil {
		return err
	}
	err = s.store.DeleteEvent(ctx, uid, eventID)
	s.CancelReminder(eventID)
	if err != nil {
		return fmt.Errorf("delete planner event: %w", err)
	}
	return nil
}

// Get returns one event owned by the current user.
func (s *Service) Get(ctx context.Context, eventID string) (store.PlannerEvent, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return store.PlannerEvent{}, err
	}
	return s.store.GetEvent(ctx, uid, eventID)
}

// List returns the current user's events ordered by weekday, then start
// time within the day.
func (s *Service) List(ctx context.Context) ([]store.PlannerEvent, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	evs, err := s.store.ListEvents(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list planner events: %w", err)
	}
	sortEvents(evs)
	return evs, nil
}

func sortEvents(evs []store.PlannerEvent) {
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].Weekday != evs[j].Weekday {
			return evs[i].Weekday < evs[j].Weekday
		}
		return evs[i].StartMinutes < evs[j].StartMinutes
	})
}

// ScheduleReminder computes the next occurrence of ev and arms its trigger.
func (s *Service) ScheduleReminder(ctx context.Context, ev store.PlannerEvent) error {
	uid, err := s.userID(ctx)
	if err != nil {
		return err
	}
	return s.schedule(uid, ev)
}

func (s *Service) schedule(userID string, ev store.PlannerEvent) error {
	occ, err := NextOccurrence(ev, s.now())
	if err != nil {
		return err
	}
	at := ReminderFireTime(ev, occ)
	s.triggers.Arm(at, ReminderToken(ev.ID), trigger.Payload{
		Token:   ReminderToken(ev.ID),
		UserID:  userID,
		EventID: ev.ID,
		Title:   ev.Title,
	})
	s.log.Debug("reminder armed",
		logx.String("event_id", ev.ID),
		logx.Time("fire_at", at),
	)
	return nil
}

// CancelReminder disarms the event's trigger. Unknown and empty ids are a
// no-op.
func (s *Service) CancelReminder(eventID string) {
	if eventID == "" {
		return
	}
	if s.triggers.Disarm(ReminderToken(eventID)) {
		s.log.Debug("reminder disarmed", logx.String("event_id", eventID))
	}
}

// HandleFire is the trigger handler for planner reminders. It notifies the
// owner and re-arms the trigger for the following week.
func (s *Service) HandleFire(ctx context.Context, p trigger.Payload) {
	body := p.Title
	if body == "" {
		body = "Planned event"
	}
	s.notify.Remind(ctx, p.UserID, "Starting soon!", body)

	ev, err := s.store.GetEvent(ctx, p.UserID, p.EventID)
	if err != nil {
		// Deleted between fire and re-arm. Nothing to re-arm.
		s.log.Debug("reminder fired for missing event", logx.String("event_id", p.EventID))
		return
	}
	if err := s.schedule(p.UserID, ev); err != nil {
		s.log.Warn("re-arm after fire failed",
			logx.String("event_id", p.EventID),
			logx.Err(err),
		)
	}
}

// RearmAll walks every stored event and arms its reminder. Called on boot
// and from the daily sweep so triggers survive process restarts.
func (s *Service) RearmAll(ctx context.Context) error {
	byUser, err := s.store.ListAllEvents(ctx)
	if err != nil {
		return fmt.Errorf("list all planner events: %w", err)
	}
	var armed, failed int
	for uid, evs := range byUser {
		for _, ev := range evs {
			if err := s.schedule(uid, ev); err != nil {
				failed++
				s.log.Warn("re-arm failed",
					logx.String("event_id", ev.ID),
					logx.Err(err),
				)
				continue
			}
			armed++
		}
	}
	s.log.Info("planner reminders re-armed",
		logx.Int("armed", armed),
		logx.Int("failed", failed),
	)
	return nil
}

// Watch streams full snapshots of the current user's planner. The first
// snapshot arrives immediately; a new one follows every planner mutation
// for that user. The stream closes when ctx is done.
func (s *Service) Watch(ctx context.Context) (<-chan []store.PlannerEvent, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}

	changes, cancel := s.bus.Subscribe(16)
	out := make(chan []store.PlannerEvent, 1)

	first, err := s.List(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	out <- first

	go func() {
		defer cancel()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ch, ok := <-changes:
				if !ok {
					return
				}
				if ch.Collection != feed.CollectionPlanner || ch.UserID != uid {
					continue
				}
				snap, err := s.List(ctx)
				if err != nil {
					s.log.Warn("planner snapshot failed", logx.Err(err))
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
