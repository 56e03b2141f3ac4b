package documents

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockmaster/stockmaster/internal/platform/httpx"
	"github.com/stockmaster/stockmaster/internal/shared"
)

// Handler serves one document kind over HTTP. The same handler type is
// mounted four times, once per kind.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	kind      Kind
	validator *validator.Validate
}

// NewHandler constructs a handler bound to one kind.
func NewHandler(logger *slog.Logger, service *Service, kind Kind) *Handler {
	return &Handler{logger: logger, service: service, kind: kind, validator: validator.New()}
}

// MountRoutes registers the document lifecycle routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/validate", h.validate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		WarehouseID: queryInt64Param(r, "warehouseId"),
		Status:      Status(r.URL.Query().Get("status")),
		Search:      r.URL.Query().Get("search"),
	}
	docs, err := h.service.List(r.Context(), h.kind, filter)
	if err != nil {
		h.logger.Error("list documents", slog.String("kind", string(h.kind)), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, docs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Get(r.Context(), h.kind, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Create(r.Context(), h.kind, req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.logger.Error("create document", slog.String("kind", string(h.kind)), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Update(r.Context(), h.kind, id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), h.kind, id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Validate(r.Context(), h.kind, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// respondError extends the shared mapping with the state-machine errors.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var shortfall *InsufficientStockError
	switch {
	case errors.As(err, &shortfall):
		httpx.ProblemWithExtra(w, http.StatusBadRequest, "Insufficient Stock",
			"one or more lines lack available stock", map[string]any{"stockChecks": shortfall.Checks})
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "document not found")
	case errors.Is(err, ErrCompleted):
		httpx.Problem(w, http.StatusBadRequest, "Already Completed", "document is already completed")
	case errors.Is(err, ErrEmptyDocument):
		httpx.Problem(w, http.StatusBadRequest, "Empty Document", "document has no items")
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Status", "document cannot be validated in its current status")
	case errors.Is(err, ErrMissingLocation), errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", "request with this idempotency key was already processed")
	default:
		h.logger.Error("document operation", slog.String("kind", string(h.kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// MovesHandler serves the cross-kind stock-move history.
type MovesHandler struct {
	logger  *slog.Logger
	service *Service
}

// NewMovesHandler constructs the history handler.
func NewMovesHandler(logger *slog.Logger, service *Service) *MovesHandler {
	return &MovesHandler{logger: logger, service: service}
}

// MountRoutes registers history routes.
func (h *MovesHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

func (h *MovesHandler) list(w http.ResponseWriter, r *http.Request) {
	filter := MoveFilter{
		Type:      MoveType(r.URL.Query().Get("type")),
		Status:    Status(r.URL.Query().Get("status")),
		ProductID: queryInt64Param(r, "productId"),
		Reference: r.URL.Query().Get("reference"),
		From:      queryTime(r, "from"),
		To:        queryTime(r, "to"),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		filter.Limit = limit
	}
	moves, err := h.service.ListMoves(r.Context(), filter)
	if err != nil {
		h.logger.Error("list stock moves", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, moves)
}

func (h *MovesHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	move, err := h.service.GetMove(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "stock move not found")
			return
		}
		h.logger.Error("get stock move", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, move)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt64Param(r *http.Request, name string) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func queryTime(r *http.Request, name string) time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
