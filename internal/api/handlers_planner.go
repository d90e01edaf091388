package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"smartzone/internal/store"
)

// defaultReminderLead is used when a request omits the reminder field.
const defaultReminderLead = 10

type plannerEventRequest struct {
	Title                 string `json:"title" validate:"required,max=200"`
	Weekday               int    `json:"weekday" validate:"required,min=1,max=7"`
	StartMinutes          int    `json:"startMinutes" validate:"min=0,max=1439"`
	ReminderMinutesBefore *int   `json:"reminderMinutesBefore" validate:"omitempty,min=0"`
	Timezone              string `json:"timezone" validate:"required"`
}

type plannerEventResponse struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	Weekday               int    `json:"weekday"`
	StartMinutes          int    `json:"startMinutes"`
	ReminderMinutesBefore int    `json:"reminderMinutesBefore"`
	Timezone              string `json:"timezone"`
}

func toPlannerResponse(ev store.PlannerEvent) plannerEventResponse {
	return plannerEventResponse{
		ID:                    ev.ID,
		Title:                 ev.Title,
		Weekday:               ev.Weekday,
		StartMinutes:          ev.StartMinutes,
		ReminderMinutesBefore: ev.ReminderMinutesBefore,
		Timezone:              ev.Timezone,
	}
}

func toPlannerResponses(evs []store.PlannerEvent) []plannerEventResponse {
	out := make([]plannerEventResponse, 0, len(evs))
	for _, ev := range evs {
		out = append(out, toPlannerResponse(ev))
	}
	return out
}

func (h *handlers) listPlanner(c echo.Context) error {
	evs, err := h.d.Planner.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPlannerResponses(evs))
}

// savePlannerEvent serves both create (POST, no id) and replace (PUT /:id).
func (h *handlers) savePlannerEvent(c echo.Context) error {
	var req plannerEventRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	lead := defaultReminderLead
	if req.ReminderMinutesBefore != nil {
		lead = *req.ReminderMinutesBefore
	}
	ev := store.PlannerEvent{
		ID:                    c.Param("id"),
		Title:                 req.Title,
		Weekday:               req.Weekday,
		StartMinutes:          req.StartMinutes,
		ReminderMinutesBefore: lead,
		Timezone:              req.Timezone,
	}

	saved, err := h.d.Planner.Save(c.Request().Context(), ev)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if ev.ID == "" {
		status = http.StatusCreated
	}
	return c.JSON(status, toPlannerResponse(saved))
}

func (h *handlers) deletePlannerEvent(c echo.Context) error {
	if err := h.d.Planner.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) exportICS(c echo.Context) error {
	out, err := h.d.Planner.ExportICS(c.Request().Context())
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="planner.ics"`)
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(out))
}

// watchPlanner streams full planner snapshots as server-sent events. Each
// mutation of the user's planner produces one `data:` frame holding the
// whole sorted event set.
func (h *handlers) watchPlanner(c echo.Context) error {
	ctx := c.Request().Context()
	snaps, err := h.d.Planner.Watch(ctx)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(toPlannerResponses(snap))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "data: %s\n\n", payload); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
