package handlers

import (
	"errors"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"polytrader/internal/repository"
	"polytrader/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// respondWithJSON сериализует payload и пишет его с указанным статусом
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}

// respondWithError пишет ошибку в едином формате
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// handleServiceError отображает сервисные ошибки в HTTP статусы
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrBreakersTripped),
		errors.Is(err, service.ErrDailyLossExceeded),
		errors.Is(err, service.ErrTransitionConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnknownBreaker),
		errors.Is(err, repository.ErrConfigKeyNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConfigTypeMismatch),
		errors.Is(err, service.ErrConfigOutOfRange):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

// queryLimit читает параметр limit с дефолтом и потолком
func queryLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
