package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"smartzone/internal/feed"
	"smartzone/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	bus feed.Bus
	log logx.Logger
}

func openSQLite(cfg Config, bus feed.Bus, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	s := &sqliteStore{db: db, bus: bus, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return s, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) publish(collection, userID, docID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(feed.Change{Collection: collection, UserID: userID, DocID: docID})
}

func newID() string { return uuid.NewString() }

// ---- Users ----

func (s *sqliteStore) CreateUser(ctx context.Context, u User) (string, error) {
	id := u.ID
	if id == "" {
		id = newID()
	}
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, education, birth_date, telegram_chat, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		id, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Education, u.BirthDate, u.TelegramChatID, created.UnixMilli(),
	)
	if err != nil {
		return "", err
	}
	s.publish(feed.CollectionUsers, id, id)
	return id, nil
}

func (s *sqliteStore) GetUser(ctx context.Context, userID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, first_name, last_name, education, birth_date, telegram_chat, created_at
		FROM users WHERE id = ?`, userID)
	return scanUser(row)
}

func (s *sqliteStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, first_name, last_name, education, birth_date, telegram_chat, created_at
		FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	var created int64
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Education, &u.BirthDate, &u.TelegramChatID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = time.UnixMilli(created)
	return u, nil
}

func (s *sqliteStore) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error {
	if upd.IsZero() {
		return nil
	}
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if upd.FirstName != nil {
		sets, args = append(sets, "first_name = ?"), append(args, *upd.FirstName)
	}
	if upd.LastName != nil {
		sets, args = append(sets, "last_name = ?"), append(args, *upd.LastName)
	}
	if upd.Education != nil {
		sets, args = append(sets, "education = ?"), append(args, *upd.Education)
	}
	if upd.BirthDate != nil {
		sets, args = append(sets, "birth_date = ?"), append(args, *upd.BirthDate)
	}
	if upd.TelegramChatID != nil {
		sets, args = append(sets, "telegram_chat = ?"), append(args, *upd.TelegramChatID)
	}
	args = append(args, userID)
	res, err := s.db.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.publish(feed.CollectionUsers, userID, userID)
	return nil
}

func (s *sqliteStore) SetPasswordHash(ctx context.Context, userID, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.publish(feed.CollectionUsers, userID, userID)
	return nil
}

// ---- Zones ----

func (s *sqliteStore) CreateZone(ctx context.Context, userID string, z Zone) (string, error) {
	id := newID()
	created := z.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zones (id, user_id, name, focus, created_at) VALUES (?,?,?,?,?)`,
		id, userID, z.Name, z.Focus, created.UnixMilli(),
	)
	if err != nil {
		return "", err
	}
	s.publish(feed.CollectionZones, userID, id)
	return id, nil
}

func (s *sqliteStore) GetZone(ctx context.Context, userID, zoneID string) (Zone, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, focus, created_at FROM zones WHERE id = ? AND user_id = ?`,
		zoneID, userID)
	var z Zone
	var created int64
	err := row.Scan(&z.ID, &z.Name, &z.Focus, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Zone{}, ErrNotFound
	}
	if err != nil {
		return Zone{}, err
	}
	z.CreatedAt = time.UnixMilli(created)
	return z, nil
}

func (s *sqliteStore) ListZones(ctx context.Context, userID string) ([]Zone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, focus, created_at FROM zones
		WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Zone
	for rows.Next() {
		var z Zone
		var created int64
		if err := rows.Scan(&z.ID, &z.Name, &z.Focus, &created); err != nil {
			return nil, err
		}
		z.CreatedAt = time.UnixMilli(created)
		res = append(res, z)
	}
	return res, rows.Err()
}

func (s *sqliteStore) UpdateZone(ctx context.Context, userID, zoneID, name, focus string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE zones SET name = ?, focus = ? WHERE id = ? AND user_id = ?`,
		name, focus, zoneID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.publish(feed.CollectionZones, userID, zoneID)
	return nil
}

func (s *sqliteStore) DeleteZone(ctx context.Context, userID, zoneID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM zones WHERE id = ? AND user_id = ?`, zoneID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.publish(feed.CollectionZones, userID, zoneID)
	return nil
}

// zoneOwned verifies the zone belongs to the user before touching its
// subcollections.
func (s *sqliteStore) zoneOwned(ctx context.Context, userID, zoneID string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM zones WHERE id = ? AND user_id = ?`, zoneID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ---- Notes ----

func (s *sqliteStore) AddNote(ctx context.Context, userID, zoneID string, n Note) (string, error) {
	if err := s.zoneOwned(ctx, userID, zoneID); err != nil {
		return "", err
	}
	id := newID()
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, zone_id, title, content, created_at) VALUES (?,?,?,?,?)`,
		id, zoneID, n.Title, n.Content, created.UnixMilli(),
	)
	if err != nil {
		return "", err
	}
	s.publish(feed.CollectionNotes, userID, id)
	return id, nil
}

func (s *sqliteStore) ListNotes(ctx context.Context, userID, zoneID string) ([]Note, error) {
	if err := s.zoneOwned(ctx, userID, zoneID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, created_at FROM notes
		WHERE zone_id = ? ORDER BY created_at ASC`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Note
	for rows.Next() {
		var n Note
		var created int64
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &created); err != nil {
			return nil, err
		}
		n.CreatedAt = time.UnixMilli(created)
		res = append(res, n)
	}
	return res, rows.Err()
}

func (s *sqliteStore) UpdateNote(ctx context.Context, userID, zoneID, noteID, title, content string) error {
	if err := s.zoneOwned(ctx, userID, zoneID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ? WHERE id = ? AND zone_id = ?`,
		title, content, noteID, zoneID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.publish(feed.CollectionNotes, userID, noteID)
	return nil
}

func (s *sqliteStore) DeleteNote(ctx context.Context, userID, zoneID, noteID string) error {
	if err := s.zoneOwned(ctx, userID, zoneID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND zone_id = ?`, noteID, zoneID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.publish(feed.CollectionNotes, userID, noteID)
	return nil
}

// ---- Documents ----

func (s *sqliteStore) AddDocument(ctx context.Context, userID, zoneID string, d Document) (string, error) {
	if err := s.zoneOwned(ctx, userID, zoneID); err != nil {
		return "", err
	}
	id := newID()
	uploaded := d.UploadedAt
	if uploaded.IsZero() {
		uploaded = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, zone_id, name, file_uri, uploaded_at) VALUES (?,?,?,?,?)`,
		id, zoneID, d.Name, d.FileURI, uploaded.UnixMilli(),
	)
	if err != nil {
		return "", err
	}
	s.publish(feed.CollectionDocuments, userID, id)
	return id, nil
}

func (s *sqliteStore) ListDocuments(ctx context.Context, userID, zoneID string) ([]Document, error) {
	if err := s.zoneOwned(ctx, userID, zoneID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, file_uri, uploaded_at FROM documents
		WHERE zone_id = ? ORDER BY uploaded_at ASC`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Document
	for rows.Next() {
		var d Document
		var uploaded int64
		if err := rows.Scan(&d.ID, &d.Name, &d.FileURI, &uploaded); err != nil {
			return nil, err
		}
		d.UploadedAt = time.UnixMilli(uploaded)
		res = append(res, d)
	}
	return res, rows.Err()
}

func (s *sqliteStore) DeleteDocument(ctx context.Context, userID, zoneID, docID string) error {
	if err := s.zoneOwned(ctx, userID, zoneID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ? AND zone_id = ?`, docID, zoneID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.publish(feed.CollectionDocuments, userID, docID)
	return nil
}

// ---- Planner ----

func (s *sqliteStore) PutEvent(ctx context.Context, userID string, ev PlannerEvent) (string, error) {
	id := ev.ID
	if id == "" {
		id = newID()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO planner (id, user_id, title, weekday, start_minutes, reminder_minutes, timezone)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			title            = excluded.title,
			weekday          = excluded.weekday,
			start_minutes    = excluded.start_minutes,
			reminder_minutes = excluded.reminder_minutes,
			timezone         = excluded.timezone
		WHERE planner.user_id = excluded.user_id`,
		id, userID, ev.Title, ev.Weekday, ev.StartMinutes, ev.ReminderMinutesBefore, ev.Timezone,
	)
	if err != nil {
		return "", err
	}
	// The guarded update writes zero rows when the id belongs to another
	// user. Surfacing that as not-found keeps the caller from arming a
	// reminder for an event it never owned.
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrNotFound
	}
	s.publish(feed.CollectionPlanner, userID, id)
	return id, nil
}

func (s *sqliteStore) GetEvent(ctx context.Context, userID, eventID string) (PlannerEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, weekday, start_minutes, reminder_minutes, timezone
		FROM planner WHERE id = ? AND user_id = ?`, eventID, userID)
	var ev PlannerEvent
	err := row.Scan(&ev.ID, &ev.Title, &ev.Weekday, &ev.StartMinutes, &ev.ReminderMinutesBefore, &ev.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return PlannerEvent{}, ErrNotFound
	}
	if err != nil {
		return PlannerEvent{}, err
	}
	return ev, nil
}

func (s *sqliteStore) ListEvents(ctx context.Context, userID string) ([]PlannerEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, weekday, start_minutes, reminder_minutes, timezone
		FROM planner WHERE user_id = ?
		ORDER BY weekday ASC, start_minutes ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *sqliteStore) ListAllEvents(ctx context.Context) (map[string][]PlannerEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, id, title, weekday, start_minutes, reminder_minutes, timezone
		FROM planner ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := map[string][]PlannerEvent{}
	for rows.Next() {
		var userID string
		var ev PlannerEvent
		if err := rows.Scan(&userID, &ev.ID, &ev.Title, &ev.Weekday, &ev.StartMinutes,
			&ev.ReminderMinutesBefore, &ev.Timezone); err != nil {
			return nil, err
		}
		res[userID] = append(res[userID], ev)
	}
	return res, rows.Err()
}

func (s *sqliteStore) DeleteEvent(ctx context.Context, userID, eventID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM planner WHERE id = ? AND user_id = ?`, eventID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.publish(feed.CollectionPlanner, userID, eventID)
	return nil
}

func scanEvents(rows *sql.Rows) ([]PlannerEvent, error) {
	var res []PlannerEvent
	for rows.Next() {
		var ev PlannerEvent
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.Weekday, &ev.StartMinutes,
			&ev.ReminderMinutesBefore, &ev.Timezone); err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}
