package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"polytrader/internal/api/middleware"
	"polytrader/internal/service"
)

// BreakerHandler обрабатывает запросы к circuit breakers
type BreakerHandler struct {
	breakerSvc service.BreakerServiceInterface
}

// NewBreakerHandler создает новый экземпляр BreakerHandler
func NewBreakerHandler(breakerSvc service.BreakerServiceInterface) *BreakerHandler {
	return &BreakerHandler{breakerSvc: breakerSvc}
}

// GetBreakers обрабатывает GET /api/v1/circuit-breakers
func (h *BreakerHandler) GetBreakers(w http.ResponseWriter, r *http.Request) {
	breakers, err := h.breakerSvc.GetAll()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, breakers)
}

// ResetBreaker обрабатывает POST /api/v1/circuit-breakers/{name}/reset.
// Сброс брейкера НЕ возобновляет торговлю - бот остается в HALTED
// до явного Start.
func (h *BreakerHandler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.breakerSvc.Reset(r.Context(), name, middleware.ActorFrom(r.Context())); err != nil {
		handleServiceError(w, err)
		return
	}

	breakers, err := h.breakerSvc.GetAll()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, breakers)
}

// tripRequest - тело ручного взведения брейкера
type tripRequest struct {
	Reason string `json:"reason"`
}

// TripBreaker обрабатывает POST /api/v1/circuit-breakers/{name}/trip.
// Ручное взведение для операторских интервенций и тестов на проде.
func (h *BreakerHandler) TripBreaker(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req tripRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "manual trip"
	}

	if err := h.breakerSvc.Trip(r.Context(), name, req.Reason, middleware.ActorFrom(r.Context())); err != nil {
		handleServiceError(w, err)
		return
	}

	breakers, err := h.breakerSvc.GetAll()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, breakers)
}
