package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"smartzone/internal/feed"
	"smartzone/internal/identity"
	"smartzone/pkg/logx"
)

func TestExportICS(t *testing.T) {
	t.Parallel()

	st := newFakePlannerStore()
	svc := newTestService(st, &fakeTriggers{}, &fakeNotifier{}, feed.New())
	ctx := authedCtx("u1")

	ev := validEvent()
	saved, err := svc.Save(ctx, ev)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := svc.ExportICS(ctx)
	if err != nil {
		t.Fatalf("ExportICS: %v", err)
	}

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"SUMMARY:Algebra",
		"RRULE:FREQ=WEEKLY;BYDAY=WE",
		"UID:" + saved.ID,
		"END:VCALENDAR",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 1 {
		t.Fatalf("VEVENT count = %d, want 1", got)
	}
}

func TestExportICSEmptyPlanner(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakePlannerStore(), &fakeTriggers{}, &fakeNotifier{}, feed.New())

	out, err := svc.ExportICS(authedCtx("u1"))
	if err != nil {
		t.Fatalf("ExportICS: %v", err)
	}
	if !strings.Contains(out, "BEGIN:VCALENDAR") || strings.Contains(out, "BEGIN:VEVENT") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestExportICSRequiresAuthentication(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakePlannerStore(), identity.ContextProvider{}, &fakeTriggers{}, &fakeNotifier{}, feed.New(), logx.Nop())

	if _, err := svc.ExportICS(context.Background()); !errors.Is(err, identity.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}
