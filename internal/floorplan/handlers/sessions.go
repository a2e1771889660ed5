package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"floorplan/internal/floorplan/geometry"
	"floorplan/internal/floorplan/selection"
	"floorplan/internal/floorplan/session"
	"floorplan/internal/floorplan/tree"
)

// DefaultWaitTimeout bounds how long a request waits for a selection to
// finish before answering with the state so far.
const DefaultWaitTimeout = 10 * time.Second

// ============================================================
// Session Handler
// ============================================================

type SessionHandler struct {
	sessions    *session.Manager
	waitTimeout time.Duration
	logger      *slog.Logger
}

func NewSessionHandler(sessions *session.Manager, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		sessions:    sessions,
		waitTimeout: DefaultWaitTimeout,
		logger:      logger.With("component", "handlers"),
	}
}

// Register mounts the session routes.
func (h *SessionHandler) Register(router fiber.Router) {
	g := router.Group("/sessions")
	g.Post("/", h.Create)
	g.Get("/:id", h.Get)
	g.Delete("/:id", h.Delete)
	g.Get("/:id/items", h.Items)
	g.Post("/:id/select", h.Select)
	g.Post("/:id/activate", h.Activate)
	g.Post("/:id/click", h.Click)
	g.Post("/:id/refresh", h.Refresh)
	g.Get("/:id/locate", h.Locate)
	g.Get("/:id/diagram.svg", h.Diagram)
	g.Get("/:id/overlay.svg", h.Overlay)
	g.Get("/:id/export.tsv", h.Export)
}

type createRequest struct {
	Fragment string `json:"fragment"`
}

type selectRequest struct {
	ID string `json:"id"`
}

type activateRequest struct {
	Key string `json:"key"`
}

type clickRequest struct {
	Target *string  `json:"target"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
}

type sessionPayload struct {
	ID      string          `json:"id"`
	Items   int             `json:"items"`
	Shapes  int             `json:"shapes"`
	Pending bool            `json:"pending,omitempty"`
	State   selection.State `json:"state"`
}

type nodePayload struct {
	Key      string         `json:"key"`
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Linked   bool           `json:"linked"`
	Placed   bool           `json:"placed"`
	Children []*nodePayload `json:"children,omitempty"`
}

// Create opens a session, loading every source. The optional fragment
// selects an item once loading is done.
func (h *SessionHandler) Create(c fiber.Ctx) error {
	var req createRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON payload"})
		}
	}

	s, err := h.sessions.Create(c.Context(), req.Fragment)
	if err != nil {
		h.logger.Error("open session failed", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	h.logger.Info("session opened", "session", s.ID, "items", s.Registry.Len())
	return c.Status(http.StatusCreated).JSON(h.payload(s, false))
}

func (h *SessionHandler) Get(c fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	return c.JSON(h.payload(s, false))
}

func (h *SessionHandler) Delete(c fiber.Ctx) error {
	if !h.sessions.Close(c.Params("id")) {
		return sessionNotFound(c)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Items returns the navigation list, filtered by the filter query.
func (h *SessionHandler) Items(c fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	nodes := s.Items(c.Query("filter"))
	return c.JSON(fiber.Map{"items": toPayload(nodes)})
}

// Select selects an item by identifier. An empty identifier deselects.
func (h *SessionHandler) Select(c fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	var req selectRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON payload"})
	}
	return h.settle(c, s, s.Controller.SelectByID(c.Context(), req.ID))
}

// Activate selects the item of a navigation list entry.
func (h *SessionHandler) Activate(c fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	var req activateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON payload"})
	}

	p, err := s.Activate(c.Context(), req.Key)
	switch {
	case errors.Is(err, session.ErrUnknownNode):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, session.ErrNotLinked):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return h.settle(c, s, p)
}

// Click delivers a click either to a diagram element by id or to a screen
// position.
func (h *SessionHandler) Click(c fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	var req clickRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON payload"})
	}

	switch {
	case req.Target != nil:
		handled, p := s.Click(*req.Target)
		if !handled {
			return c.JSON(h.payload(s, false))
		}
		return h.settle(c, s, p)
	case req.X != nil && req.Y != nil:
		p, err := s.ClickAt(c.Context(), geometry.Point{X: *req.X, Y: *req.Y})
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return h.settle(c, s, p)
	default:
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "target or x/y required"})
	}
}

// Refresh re-applies the current selection after the page changed size.
func (h *SessionHandler) Refresh(c fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	return h.settle(c, s, s.Controller.Refresh(c.Context()))
}

// Locate maps a screen position to diagram coordinates.
func (h *SessionHandler) Locate(c fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	x, errX := strconv.ParseFloat(c.Query("x"), 64)
	y, errY := strconv.ParseFloat(c.Query("y"), 64)
	if errX != nil || errY != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "numeric x and y required"})
	}

	p, err := s.Locate(geometry.Point{X: x, Y: y})
	if err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"x":    p.X,
		"y":    p.Y,
		"text": strconv.FormatFloat(p.X, 'f', 3, 64) + ", " + strconv.FormatFloat(p.Y, 'f', 3, 64),
	})
}

// Diagram serves the current floor plan document.
func (h *SessionHandler) Diagram(c fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	var buf bytes.Buffer
	if err := s.WriteDiagram(&buf); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if c.Query("download") != "" {
		c.Attachment("floorplan.svg")
	}
	c.Set("Content-Type", "image/svg+xml")
	return c.Send(buf.Bytes())
}

// Overlay serves the target indicator layer.
func (h *SessionHandler) Overlay(c fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	var buf bytes.Buffer
	s.WriteOverlay(&buf)
	c.Set("Content-Type", "image/svg+xml")
	return c.Send(buf.Bytes())
}

// Export serves the layout spreadsheet.
func (h *SessionHandler) Export(c fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return sessionNotFound(c)
	}
	var buf bytes.Buffer
	if err := s.WriteExport(&buf); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Attachment("everything.tsv")
	c.Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	return c.Send(buf.Bytes())
}

// ============================================================
// Helpers
// ============================================================

func sessionNotFound(c fiber.Ctx) error {
	return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
}

// settle waits for a selection change and answers with the session state.
// A change still running after the wait timeout is reported as pending.
func (h *SessionHandler) settle(c fiber.Ctx, s *session.Session, p *selection.Pending) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.waitTimeout)
	defer cancel()

	if err := p.Wait(ctx); err != nil {
		h.logger.Warn("selection still pending", "session", s.ID, "error", err)
		return c.Status(http.StatusAccepted).JSON(h.payload(s, true))
	}
	return c.JSON(h.payload(s, false))
}

func (h *SessionHandler) payload(s *session.Session, pending bool) sessionPayload {
	return sessionPayload{
		ID:      s.ID,
		Items:   s.Registry.Len(),
		Shapes:  s.Diagram.Len(),
		Pending: pending,
		State:   s.Controller.State(),
	}
}

func toPayload(nodes []*tree.Node) []*nodePayload {
	out := make([]*nodePayload, 0, len(nodes))
	for _, n := range nodes {
		p := &nodePayload{
			Key:    n.Key,
			Name:   n.Item.Name,
			Linked: n.Linked,
			Placed: n.Item.Placed(),
		}
		if n.Linked {
			p.ID = n.Item.UniqueID
		}
		if len(n.Children) > 0 {
			p.Children = toPayload(n.Children)
		}
		out = append(out, p)
	}
	return out
}
