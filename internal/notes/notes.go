// Package notes manages zone-scoped notes.
package notes

import (
	"context"
	"fmt"

	"smartzone/internal/identity"
	"smartzone/internal/store"
	"smartzone/pkg/logx"
)

type Service struct {
	store store.Notes
	ids   identity.Provider
	log   logx.Logger
}

func NewService(st store.Notes, ids identity.Provider, log logx.Logger) *Service {
	return &Service{store: st, ids: ids, log: log}
}

func (s *Service) userID(ctx context.Context) (string, error) {
	uid, ok := s.ids.CurrentUserID(ctx)
	if !ok {
		return "", identity.ErrNotAuthenticated
	}
	return uid, nil
}

// Add stores a note under the zone and returns its assigned id. The zone
// must belong to the current user.
func (s *Service) Add(ctx context.Context, zoneID, title, content string) (string, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return "", err
	}
	id, err := s.store.AddNote(ctx, uid, zoneID, store.Note{Title: title, Content: content})
	if err != nil {
		return "", fmt.Errorf("add note: %w", err)
	}
	return id, nil
}

// List returns a zone's notes, oldest first.
func (s *Service) List(ctx context.Context, zoneID string) ([]store.Note, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	ns, err := s.store.ListNotes(ctx, uid, zoneID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return ns, nil
}

func (s *Service) Update(ctx context.Context, zoneID, noteID, title, content string) error {
	uid, err := s.userID(ctx)
	if err != nil {
		return err
	}
	if err := s.store.UpdateNote(ctx, uid, zoneID, noteID, title, content); err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, zoneID, noteID string) error {
	uid, err := s.userID(ctx)
	if err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, uid, zoneID, noteID); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	s.log.Debug("note deleted",
		logx.String("zone_id", zoneID),
		logx.String("note_id", noteID),
	)
	return nil
}
