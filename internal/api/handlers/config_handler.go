package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"polytrader/internal/api/middleware"
	"polytrader/internal/service"
)

// ConfigHandler обрабатывает запросы к runtime-конфигурации
type ConfigHandler struct {
	configSvc service.ConfigServiceInterface
}

// NewConfigHandler создает новый экземпляр ConfigHandler
func NewConfigHandler(configSvc service.ConfigServiceInterface) *ConfigHandler {
	return &ConfigHandler{configSvc: configSvc}
}

// GetConfig обрабатывает GET /api/v1/config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	entries, err := h.configSvc.GetAll()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// updateConfigRequest - тело обновления параметра
type updateConfigRequest struct {
	Value string `json:"value"`
}

// UpdateConfig обрабатывает PATCH /api/v1/config/{key}
func (h *ConfigHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value == "" {
		respondWithError(w, http.StatusBadRequest, "value is required")
		return
	}

	entry, err := h.configSvc.Update(r.Context(), key, req.Value, middleware.ActorFrom(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}
