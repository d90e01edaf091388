package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Config configures the store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// User is a registered account: credentials plus the profile fields the
// original registration form collects.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Education      string
	BirthDate      string // YYYY-MM-DD, display-only
	TelegramChatID int64  // 0 when the user has not linked a chat
	CreatedAt      time.Time
}

// ProfileUpdate is a partial profile mutation. Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName      *string
	LastName       *string
	Education      *string
	BirthDate      *string
	TelegramChatID *int64
}

func (u ProfileUpdate) IsZero() bool {
	return u.FirstName == nil && u.LastName == nil && u.Education == nil &&
		u.BirthDate == nil && u.TelegramChatID == nil
}

// Zone is a user-defined topic area grouping notes and documents.
type Zone struct {
	ID        string
	Name      string
	Focus     string
	CreatedAt time.Time
}

// Note is a zone-scoped text note.
type Note struct {
	ID        string
	Title     string
	Content   string
	CreatedAt time.Time
}

// Document is a zone-scoped reference to an uploaded file.
type Document struct {
	ID         string
	Name       string
	FileURI    string
	UploadedAt time.Time
}

// PlannerEvent is one weekly recurring planner entry.
//
// Weekday is ISO (1 = Monday .. 7 = Sunday). StartMinutes is minutes after
// local midnight in Timezone. Timezone is captured at creation time and does
// not follow the user's later timezone changes.
type PlannerEvent struct {
	ID                    string
	Title                 string
	Weekday               int
	StartMinutes          int
	ReminderMinutesBefore int
	Timezone              string
}
