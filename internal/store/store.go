package store

import (
	"context"

	"smartzone/internal/feed"
	"smartzone/pkg/logx"
)

// Users holds account records. DeleteUser cascades to everything the user
// owns (zones, notes, documents, planner events).
type Users interface {
	CreateUser(ctx context.Context, u User) (string, error)
	GetUser(ctx context.Context, userID string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error
	SetPasswordHash(ctx context.Context, userID, hash string) error
	DeleteUser(ctx context.Context, userID string) error
}

// Zones holds the per-user topic areas.
type Zones interface {
	CreateZone(ctx context.Context, userID string, z Zone) (string, error)
	GetZone(ctx context.Context, userID, zoneID string) (Zone, error)
	ListZones(ctx context.Context, userID string) ([]Zone, error) // newest first
	UpdateZone(ctx context.Context, userID, zoneID, name, focus string) error
	DeleteZone(ctx context.Context, userID, zoneID string) error
}

// Notes holds zone-scoped notes.
type Notes interface {
	AddNote(ctx context.Context, userID, zoneID string, n Note) (string, error)
	ListNotes(ctx context.Context, userID, zoneID string) ([]Note, error) // oldest first
	UpdateNote(ctx context.Context, userID, zoneID, noteID, title, content string) error
	DeleteNote(ctx context.Context, userID, zoneID, noteID string) error
}

// Documents holds zone-scoped file references.
type Documents interface {
	AddDocument(ctx context.Context, userID, zoneID string, d Document) (string, error)
	ListDocuments(ctx context.Context, userID, zoneID string) ([]Document, error)
	DeleteDocument(ctx context.Context, userID, zoneID, docID string) error
}

// Planner holds the per-user weekly events.
//
// PutEvent creates when ev.ID is empty (the store assigns the id) and
// replaces in place otherwise. ListAllEvents spans users; it exists for the
// boot/sweep re-arm pass over persisted reminders.
type Planner interface {
	PutEvent(ctx context.Context, userID string, ev PlannerEvent) (string, error)
	GetEvent(ctx context.Context, userID, eventID string) (PlannerEvent, error)
	ListEvents(ctx context.Context, userID string) ([]PlannerEvent, error)
	DeleteEvent(ctx context.Context, userID, eventID string) error
	ListAllEvents(ctx context.Context) (map[string][]PlannerEvent, error) // userID -> events
}

// Store is the full persistence API used by the services.
type Store interface {
	Users
	Zones
	Notes
	Documents
	Planner
	Close() error
}

// Open initializes the SQLite store. The bus may be nil (no change signals).
func Open(cfg Config, bus feed.Bus, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, bus, log)
}
