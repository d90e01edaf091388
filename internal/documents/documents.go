// Package documents manages zone-scoped file references. Only the name and
// the file URI are stored; the bytes live wherever the URI points.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"smartzone/internal/identity"
	"smartzone/internal/store"
	"smartzone/pkg/logx"
)

// ErrEmptyFileURI is returned when a document is added without a file
// location.
var ErrEmptyFileURI = errors.New("document file uri is empty")

type Service struct {
	store store.Documents
	ids   identity.Provider
	log   logx.Logger
}

func NewService(st store.Documents, ids identity.Provider, log logx.Logger) *Service {
	return &Service{store: st, ids: ids, log: log}
}

func (s *Service) userID(ctx context.Context) (string, error) {
	uid, ok := s.ids.CurrentUserID(ctx)
	if !ok {
		return "", identity.ErrNotAuthenticated
	}
	return uid, nil
}

// Add records a document under the zone and returns its assigned id.
func (s *Service) Add(ctx context.Context, zoneID, name, fileURI string) (string, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(fileURI) == "" {
		return "", ErrEmptyFileURI
	}
	id, err := s.store.AddDocument(ctx, uid, zoneID, store.Document{Name: name, FileURI: fileURI})
	if err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	return id, nil
}

// List returns a zone's documents, newest upload first.
func (s *Service) List(ctx context.Context, zoneID string) ([]store.Document, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := s.store.ListDocuments(ctx, uid, zoneID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return ds, nil
}

func (s *Service) Delete(ctx context.Context, zoneID, docID string) error {
	uid, err := s.userID(ctx)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, uid, zoneID, docID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.log.Debug("document deleted",
		logx.String("zone_id", zoneID),
		logx.String("doc_id", docID),
	)
	return nil
}
