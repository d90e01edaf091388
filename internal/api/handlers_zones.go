package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"smartzone/internal/store"
	"smartzone/internal/zones"
)

type zoneRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Focus string `json:"focus" validate:"max=500"`
}

type zoneResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Focus     string    `json:"focus,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toZoneResponse(z store.Zone) zoneResponse {
	return zoneResponse{ID: z.ID, Name: z.Name, Focus: z.Focus, CreatedAt: z.CreatedAt}
}

func toZoneResponses(zs []store.Zone) []zoneResponse {
	out := make([]zoneResponse, 0, len(zs))
	for _, z := range zs {
		out = append(out, toZoneResponse(z))
	}
	return out
}

func (h *handlers) listZones(c echo.Context) error {
	zs, err := h.d.Zones.List(c.Request().Context())
	if err != nil {
		return err
	}
	zs = zones.Filter(zs, c.QueryParam("q"))
	if c.QueryParam("order") == "oldest" {
		zs = zones.Sort(zs, zones.OldestFirst)
	}
	return c.JSON(http.StatusOK, toZoneResponses(zs))
}

func (h *handlers) createZone(c echo.Context) error {
	var req zoneRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	z, err := h.d.Zones.Create(c.Request().Context(), req.Name, req.Focus)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toZoneResponse(z))
}

func (h *handlers) getZone(c echo.Context) error {
	z, err := h.d.Zones.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toZoneResponse(z))
}

func (h *handlers) updateZone(c echo.Context) error {
	var req zoneRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.d.Zones.Update(c.Request().Context(), c.Param("id"), req.Name, req.Focus); err != nil {
		return err
	}
	z, err := h.d.Zones.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toZoneResponse(z))
}

func (h *handlers) deleteZone(c echo.Context) error {
	if err := h.d.Zones.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type noteRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content"`
}

type noteResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *handlers) listNotes(c echo.Context) error {
	ns, err := h.d.Notes.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	out := make([]noteResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, noteResponse{ID: n.ID, Title: n.Title, Content: n.Content, CreatedAt: n.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) addNote(c echo.Context) error {
	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	id, err := h.d.Notes.Add(c.Request().Context(), c.Param("id"), req.Title, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *handlers) updateNote(c echo.Context) error {
	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.d.Notes.Update(c.Request().Context(), c.Param("id"), c.Param("noteID"), req.Title, req.Content); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) deleteNote(c echo.Context) error {
	if err := h.d.Notes.Delete(c.Request().Context(), c.Param("id"), c.Param("noteID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type documentRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	FileURI string `json:"fileUri" validate:"required"`
}

type documentResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FileURI    string    `json:"fileUri"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func (h *handlers) listDocuments(c echo.Context) error {
	ds, err := h.d.Documents.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	out := make([]documentResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, documentResponse{ID: d.ID, Name: d.Name, FileURI: d.FileURI, UploadedAt: d.UploadedAt})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) addDocument(c echo.Context) error {
	var req documentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	id, err := h.d.Documents.Add(c.Request().Context(), c.Param("id"), req.Name, req.FileURI)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *handlers) deleteDocument(c echo.Context) error {
	if err := h.d.Documents.Delete(c.Request().Context(), c.Param("id"), c.Param("docID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
