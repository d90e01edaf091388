// Package zones manages a user's topic areas. A zone is the container every
// note and document hangs off.
package zones

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"smartzone/internal/identity"
	"smartzone/internal/store"
	"smartzone/pkg/logx"
)

// Order selects a listing direction for Sort.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

type Service struct {
	store store.Zones
	ids   identity.Provider
	log   logx.Logger
}

func NewService(st store.Zones, ids identity.Provider, log logx.Logger) *Service {
	return &Service{store: st, ids: ids, log: log}
}

func (s *Service) userID(ctx context.Context) (string, error) {
	uid, ok := s.ids.CurrentUserID(ctx)
	if !ok {
		return "", identity.ErrNotAuthenticated
	}
	return uid, nil
}

// Create stores a new zone and returns it with its assigned id.
func (s *Service) Create(ctx context.Context, name, focus string) (store.Zone, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return store.Zone{}, err
	}
	z := store.Zone{Name: name, Focus: focus}
	id, err := s.store.CreateZone(ctx, uid, z)
	if err != nil {
		return store.Zone{}, fmt.Errorf("create zone: %w", err)
	}
	return s.store.GetZone(ctx, uid, id)
}

func (s *Service) Get(ctx context.Context, zoneID string) (store.Zone, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return store.Zone{}, err
	}
	return s.store.GetZone(ctx, uid, zoneID)
}

// List returns the user's zones, newest first.
func (s *Service) List(ctx context.Context) ([]store.Zone, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	zs, err := s.store.ListZones(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	return zs, nil
}

func (s *Service) Update(ctx context.Context, zoneID, name, focus string) error {
	uid, err := s.userID(ctx)
	if err != nil {
		return err
	}
	if err := s.store.UpdateZone(ctx, uid, zoneID, name, focus); err != nil {
		return fmt.Errorf("update zone: %w", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, zoneID string) error {
	uid, err := s.userID(ctx)
	if err != nil {
		return err
	}
	if err := s.store.DeleteZone(ctx, uid, zoneID); err != nil {
		return fmt.Errorf("delete zone: %w", err)
	}
	s.log.Debug("zone deleted", logx.String("zone_id", zoneID))
	return nil
}

// Sort orders zones by creation time without mutating the input.
func Sort(zs []store.Zone, order Order) []store.Zone {
	out := make([]store.Zone, len(zs))
	copy(out, zs)
	sort.SliceStable(out, func(i, j int) bool {
		if order == OldestFirst {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Filter keeps zones whose name or focus contains the query,
// case-insensitively. An empty query keeps everything.
func Filter(zs []store.Zone, query string) []store.Zone {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return zs
	}
	var out []store.Zone
	for _, z := range zs {
		if strings.Contains(strings.ToLower(z.Name), q) || strings.Contains(strings.ToLower(z.Focus), q) {
			out = append(out, z)
		}
	}
	return out
}
