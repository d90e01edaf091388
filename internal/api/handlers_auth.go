package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"smartzone/internal/identity"
	"smartzone/internal/store"
)

type handlers struct {
	d Deps
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Education string `json:"education"`
	BirthDate string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
}

type userResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Education      string `json:"education,omitempty"`
	BirthDate      string `json:"birthDate,omitempty"`
	TelegramChatID int64  `json:"telegramChatId,omitempty"`
}

func toUserResponse(u store.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Education:      u.Education,
		BirthDate:      u.BirthDate,
		TelegramChatID: u.TelegramChatID,
	}
}

func (h *handlers) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	u, err := h.d.Identity.Register(c.Request().Context(), identity.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Education: req.Education,
		BirthDate: req.BirthDate,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toUserResponse(u))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *handlers) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	token, err := h.d.Identity.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

func (h *handlers) profile(c echo.Context) error {
	u, err := h.d.Settings.Profile(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(u))
}

type updateProfileRequest struct {
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	Education      *string `json:"education"`
	BirthDate      *string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	TelegramChatID *int64  `json:"telegramChatId"`
}

func (h *handlers) updateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	u, err := h.d.Settings.UpdateProfile(c.Request().Context(), store.ProfileUpdate{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Education:      req.Education,
		BirthDate:      req.BirthDate,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(u))
}

type changePasswordRequest struct {
	NewPassword  string `json:"newPassword" validate:"required"`
	Confirmation string `json:"confirmation" validate:"required"`
}

func (h *handlers) changePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.d.Settings.ChangePassword(c.Request().Context(), req.NewPassword, req.Confirmation); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) deleteAccount(c echo.Context) error {
	if err := h.d.Settings.DeleteAccount(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
