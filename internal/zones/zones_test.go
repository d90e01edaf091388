package zones

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartzone/internal/identity"
	"smartzone/internal/store"
	"smartzone/pkg/logx"
)

type fakeZoneStore struct {
	mu     sync.Mutex
	zones  map[string]map[string]store.Zone // userID -> zoneID -> zone
	nextID int
}

func newFakeZoneStore() *fakeZoneStore {
	return &fakeZoneStore{zones: map[string]map[string]store.Zone{}}
}

func (f *fakeZoneStore) CreateZone(_ context.Context, userID string, z store.Zone) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	z.ID = string(rune('a' + f.nextID - 1))
	z.CreatedAt = time.Now()
	if f.zones[userID] == nil {
		f.zones[userID] = map[string]store.Zone{}
	}
	f.zones[userID][z.ID] = z
	return z.ID, nil
}

func (f *fakeZoneStore) GetZone(_ context.Context, userID, zoneID string) (store.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zones[userID][zoneID]
	if !ok {
		return store.Zone{}, store.ErrNotFound
	}
	return z, nil
}

func (f *fakeZoneStore) ListZones(_ context.Context, userID string) ([]store.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Zone
	for _, z := range f.zones[userID] {
		out = append(out, z)
	}
	return Sort(out, NewestFirst), nil
}

func (f *fakeZoneStore) UpdateZone(_ context.Context, userID, zoneID, name, focus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zones[userID][zoneID]
	if !ok {
		return store.ErrNotFound
	}
	z.Name, z.Focus = name, focus
	f.zones[userID][zoneID] = z
	return nil
}

func (f *fakeZoneStore) DeleteZone(_ context.Context, userID, zoneID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.zones[userID][zoneID]; !ok {
		return store.ErrNotFound
	}
	delete(f.zones[userID], zoneID)
	return nil
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeZoneStore(), identity.ContextProvider{}, logx.Nop())
	ctx := identity.WithUser(context.Background(), "u1")

	z, err := svc.Create(ctx, "Math", "Linear algebra")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if z.ID == "" || z.Name != "Math" || z.Focus != "Linear algebra" {
		t.Fatalf("zone = %+v", z)
	}

	got, err := svc.Get(ctx, z.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != z.ID {
		t.Fatalf("got %+v", got)
	}
}

func TestOperationsRequireAuthentication(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeZoneStore(), identity.ContextProvider{}, logx.Nop())
	ctx := context.Background()

	if _, err := svc.Create(ctx, "x", ""); !errors.Is(err, identity.ErrNotAuthenticated) {
		t.Fatalf("Create err = %v", err)
	}
	if _, err := svc.List(ctx); !errors.Is(err, identity.ErrNotAuthenticated) {
		t.Fatalf("List err = %v", err)
	}
	if err := svc.Delete(ctx, "x"); !errors.Is(err, identity.ErrNotAuthenticated) {
		t.Fatalf("Delete err = %v", err)
	}
}

func TestZonesAreUserScoped(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeZoneStore(), identity.ContextProvider{}, logx.Nop())
	owner := identity.WithUser(context.Background(), "u1")
	other := identity.WithUser(context.Background(), "u2")

	z, err := svc.Create(owner, "Private", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Get(other, z.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign Get err = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(other, z.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign Delete err = %v, want ErrNotFound", err)
	}
}

func zoneAt(name, focus string, created time.Time) store.Zone {
	return store.Zone{ID: name, Name: name, Focus: focus, CreatedAt: created}
}

func TestSort(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []store.Zone{
		zoneAt("b", "", base.Add(2*time.Hour)),
		zoneAt("a", "", base.Add(1*time.Hour)),
		zoneAt("c", "", base.Add(3*time.Hour)),
	}

	newest := Sort(in, NewestFirst)
	if newest[0].Name != "c" || newest[2].Name != "a" {
		t.Fatalf("newest order = %v", newest)
	}
	oldest := Sort(in, OldestFirst)
	if oldest[0].Name != "a" || oldest[2].Name != "c" {
		t.Fatalf("oldest order = %v", oldest)
	}
	if in[0].Name != "b" {
		t.Fatal("Sort mutated its input")
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	in := []store.Zone{
		zoneAt("Mathematics", "Calculus", time.Time{}),
		zoneAt("History", "Roman empire", time.Time{}),
		zoneAt("Chemistry", "Organic math tricks", time.Time{}),
	}

	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty keeps all", "", []string{"Mathematics", "History", "Chemistry"}},
		{"name match case-insensitive", "MATH", []string{"Mathematics", "Chemistry"}},
		{"focus match", "roman", []string{"History"}},
		{"no match", "zzz", nil},
		{"whitespace trimmed", "  calculus  ", []string{"Mathematics"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Filter(in, tc.query)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want names %v", got, tc.want)
			}
			for i, name := range tc.want {
				if got[i].Name != name {
					t.Fatalf("got %v, want names %v", got, tc.want)
				}
			}
		})
	}
}
