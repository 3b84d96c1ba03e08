package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"movie-discovery-search-service/internal/middleware"
	"movie-discovery-search-service/internal/models"
	"movie-discovery-search-service/internal/search"
	"movie-discovery-search-service/internal/service"
)

const maxWait = 30 * time.Second

// SearchHandler handles HTTP requests for search sessions.
type SearchHandler struct {
	sessions *service.SessionService
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(sessions *service.SessionService) *SearchHandler {
	return &SearchHandler{sessions: sessions}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register mounts the search routes on r.
func (h *SearchHandler) Register(r fiber.Router) {
	r.Get("/health", h.Health)

	s := r.Group("/search/sessions")
	s.Post("/", h.CreateSession)
	s.Get("/:id", h.GetState)
	s.Delete("/:id", h.DeleteSession)
	s.Put("/:id/query", h.UpdateQuery)
	s.Post("/:id/submit", h.Submit)
	s.Post("/:id/retry", h.Retry)
	s.Post("/:id/clear", h.Clear)
	s.Get("/:id/history", h.GetHistory)
	s.Post("/:id/history/select", h.SelectHistory)
	s.Delete("/:id/history/entries", h.RemoveHistoryEntry)
	s.Delete("/:id/history", h.ClearHistory)
}

// Health returns service health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *SearchHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "search-service",
	})
}

// CreateSession opens a search view for the caller.
// @Summary Open search session
// @Tags search
// @Produce json
// @Success 201 {object} models.SessionResponse
// @Router /search/sessions [post]
func (h *SearchHandler) CreateSession(c fiber.Ctx) error {
	sess := h.sessions.Create(c.Context(), middleware.UserID(c))
	return c.Status(fiber.StatusCreated).JSON(models.SessionResponse{
		SessionID: sess.ID,
		State:     sess.Controller.State(),
	})
}

// GetState returns the session state. With since and wait it blocks until a
// state newer than since is applied or wait seconds pass.
// @Summary Get search state
// @Tags search
// @Produce json
// @Param id path string true "Session ID"
// @Param since query int false "Return once version exceeds this"
// @Param wait query int false "Seconds to wait (max 30)" default(0)
// @Success 200 {object} models.SearchState
// @Failure 404 {object} ErrorResponse
// @Router /search/sessions/{id} [get]
func (h *SearchHandler) GetState(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}

	raw := c.Query("since")
	if raw == "" {
		return c.JSON(ctl.State())
	}
	since, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid since version"})
	}

	wait := time.Duration(fiber.Query(c, "wait", 0)) * time.Second
	if wait > maxWait {
		wait = maxWait
	}
	if wait <= 0 {
		return c.JSON(ctl.State())
	}

	return c.JSON(waitForVersion(c.Context(), ctl, since, wait))
}

// DeleteSession closes a search view.
// @Summary Close search session
// @Tags search
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /search/sessions/{id} [delete]
func (h *SearchHandler) DeleteSession(c fiber.Ctx) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Close(id, middleware.UserID(c)); err != nil {
		return notFound(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateQuery records the input text.
// @Summary Update query text
// @Tags search
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param body body models.QueryRequest true "Input text"
// @Success 200 {object} models.SearchState
// @Router /search/sessions/{id}/query [put]
func (h *SearchHandler) UpdateQuery(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	var req models.QueryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	ctl.OnQueryChanged(req.Text)
	return c.JSON(ctl.State())
}

// Submit starts a search.
// @Summary Submit search
// @Tags search
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param body body models.SubmitRequest true "Query"
// @Success 202 {object} models.SearchState
// @Router /search/sessions/{id}/submit [post]
func (h *SearchHandler) Submit(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	var req models.SubmitRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	ctl.Submit(req.Query)
	return c.Status(fiber.StatusAccepted).JSON(ctl.State())
}

// Retry resubmits the last query.
// @Summary Retry last search
// @Tags search
// @Produce json
// @Param id path string true "Session ID"
// @Success 202 {object} models.SearchState
// @Router /search/sessions/{id}/retry [post]
func (h *SearchHandler) Retry(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	ctl.Retry()
	return c.Status(fiber.StatusAccepted).JSON(ctl.State())
}

// Clear resets the search view.
// @Summary Clear search
// @Tags search
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SearchState
// @Router /search/sessions/{id}/clear [post]
func (h *SearchHandler) Clear(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	ctl.Clear()
	return c.JSON(ctl.State())
}

// GetHistory reloads and returns the recent queries.
// @Summary Recent searches
// @Tags history
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.HistoryResponse
// @Router /search/sessions/{id}/history [get]
func (h *SearchHandler) GetHistory(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	ctl.RefreshHistory(c.Context())
	return c.JSON(models.HistoryResponse{History: ctl.State().History})
}

// SelectHistory searches for a recent query again.
// @Summary Select recent search
// @Tags history
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param body body models.SubmitRequest true "Recent query"
// @Success 202 {object} models.SearchState
// @Router /search/sessions/{id}/history/select [post]
func (h *SearchHandler) SelectHistory(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	var req models.SubmitRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	ctl.SelectHistoryEntry(req.Query)
	return c.Status(fiber.StatusAccepted).JSON(ctl.State())
}

// RemoveHistoryEntry deletes one recent query.
// @Summary Remove recent search
// @Tags history
// @Produce json
// @Param id path string true "Session ID"
// @Param query query string true "Recent query"
// @Success 200 {object} models.HistoryResponse
// @Router /search/sessions/{id}/history/entries [delete]
func (h *SearchHandler) RemoveHistoryEntry(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query is required"})
	}

	ctl.RemoveHistoryEntry(c.Context(), query)
	return c.JSON(models.HistoryResponse{History: ctl.State().History})
}

// ClearHistory deletes every recent query.
// @Summary Clear recent searches
// @Tags history
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.HistoryResponse
// @Router /search/sessions/{id}/history [delete]
func (h *SearchHandler) ClearHistory(c fiber.Ctx) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	ctl.ClearHistory(c.Context())
	return c.JSON(models.HistoryResponse{History: ctl.State().History})
}

// controller resolves the session in the path to its controller.
func (h *SearchHandler) controller(c fiber.Ctx) (*search.Controller, error) {
	id, err := sessionID(c)
	if err != nil {
		return nil, err
	}
	sess, err := h.sessions.Get(id, middleware.UserID(c))
	if err != nil {
		return nil, notFound(err)
	}
	return sess.Controller, nil
}

func sessionID(c fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid session ID")
	}
	return id, nil
}

func notFound(err error) error {
	if !errors.Is(err, service.ErrSessionNotFound) {
		slog.Error("failed to resolve search session", "error", err)
	}
	return fiber.NewError(fiber.StatusNotFound, "search session not found")
}

// ErrorHandler renders returned errors as ErrorResponse bodies.
func ErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("unhandled error", "error", err, "status", code)
		return c.Status(code).JSON(ErrorResponse{Error: fiber.ErrInternalServerError.Message})
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

// waitForVersion returns the first state newer than since, or the current
// state once wait elapses or ctx is done.
func waitForVersion(ctx context.Context, ctl *search.Controller, since uint64, wait time.Duration) models.SearchState {
	updates, unsubscribe := ctl.Subscribe()
	defer unsubscribe()

	if state := ctl.State(); state.Version > since {
		return state
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case state, ok := <-updates:
			if !ok {
				return ctl.State()
			}
			if state.Version > since {
				return state
			}
		case <-timer.C:
			return ctl.State()
		case <-ctx.Done():
			return ctl.State()
		}
	}
}
