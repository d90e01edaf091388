// Package settings covers account self-service: profile edits, password
// changes and full account deletion.
package settings

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"smartzone/internal/identity"
	"smartzone/internal/store"
	"smartzone/pkg/logx"
)

var (
	// ErrPasswordMismatch is returned when the confirmation does not repeat
	// the new password exactly.
	ErrPasswordMismatch = errors.New("passwords do not match")

	ErrEmptyUpdate = errors.New("profile update has no fields")
)

// Reminders is the slice of the planner the settings service needs when an
// account goes away.
type Reminders interface {
	CancelReminder(eventID string)
}

type Service struct {
	users     store.Users
	planner   store.Planner
	reminders Reminders
	ids       identity.Provider
	log       logx.Logger
}

func NewService(users store.Users, planner store.Planner, reminders Reminders, ids identity.Provider, log logx.Logger) *Service {
	return &Service{users: users, planner: planner, reminders: reminders, ids: ids, log: log}
}

func (s *Service) userID(ctx context.Context) (string, error) {
	uid, ok := s.ids.CurrentUserID(ctx)
	if !ok {
		return "", identity.ErrNotAuthenticated
	}
	return uid, nil
}

// Profile returns the current user's account record.
func (s *Service) Profile(ctx context.Context) (store.User, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return store.User{}, err
	}
	return s.users.GetUser(ctx, uid)
}

// UpdateProfile applies the set fields of upd to the current user.
func (s *Service) UpdateProfile(ctx context.Context, upd store.ProfileUpdate) (store.User, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return store.User{}, err
	}
	if upd.IsZero() {
		return store.User{}, ErrEmptyUpdate
	}
	if err := s.users.UpdateProfile(ctx, uid, upd); err != nil {
		return store.User{}, fmt.Errorf("update profile: %w", err)
	}
	return s.users.GetUser(ctx, uid)
}

// ChangePassword replaces the current user's password. The confirmation
// must repeat the new password and the new password must satisfy the
// account password policy.
func (s *Service) ChangePassword(ctx context.Context, newPassword, confirmation string) error {
	uid, err := s.userID(ctx)
	if err != nil {
		return err
	}
	if newPassword != confirmation {
		return ErrPasswordMismatch
	}
	if err := identity.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPasswordHash(ctx, uid, string(hash)); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	s.log.Info("password changed", logx.String("user_id", uid))
	return nil
}

// DeleteAccount removes the user's data and credentials. Owned zones,
// notes, documents and planner events cascade with the user row; armed
// reminders for the user's events are disarmed first so nothing fires for
// an account that no longer exists.
func (s *Service) DeleteAccount(ctx context.Context) error {
	uid, err := s.userID(ctx)
	if err != nil {
		return err
	}

	evs, err := s.planner.ListEvents(ctx, uid)
	if err != nil {
		return fmt.Errorf("list planner events: %w", err)
	}
	for _, ev := range evs {
		s.reminders.CancelReminder(ev.ID)
	}

	if err := s.users.DeleteUser(ctx, uid); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info("account deleted", logx.String("user_id", uid))
	return nil
}
