package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockmaster/stockmaster/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.change)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		WarehouseID: queryInt64(r, "warehouseId"),
		ProductID:   queryInt64(r, "productId"),
		LocationID:  queryInt64(r, "locationId"),
	}
	details, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) change(w http.ResponseWriter, r *http.Request) {
	var req ChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	row, err := h.service.Change(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			httpx.Problem(w, http.StatusBadRequest, "Insufficient Stock", "quantity cannot go negative")
			return
		}
		h.logger.Error("change stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

func queryInt64(r *http.Request, name string) int64 {
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
