package handlers

import (
	"net/http"

	"polytrader/internal/api/middleware"
	"polytrader/internal/models"
	"polytrader/internal/service"
)

// BotHandler обрабатывает запросы управления жизненным циклом бота
type BotHandler struct {
	stateSvc service.StateServiceInterface
}

// NewBotHandler создает новый экземпляр BotHandler
func NewBotHandler(stateSvc service.StateServiceInterface) *BotHandler {
	return &BotHandler{stateSvc: stateSvc}
}

// GetState обрабатывает GET /api/v1/bot/state
func (h *BotHandler) GetState(w http.ResponseWriter, r *http.Request) {
	st, err := h.stateSvc.Current()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// GetHistory обрабатывает GET /api/v1/bot/state/history
func (h *BotHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.stateSvc.History(queryLimit(r, 50, 500))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, history)
}

// Start обрабатывает POST /api/v1/bot/start
func (h *BotHandler) Start(w http.ResponseWriter, r *http.Request) {
	st, err := h.stateSvc.Start(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// Pause обрабатывает POST /api/v1/bot/pause
func (h *BotHandler) Pause(w http.ResponseWriter, r *http.Request) {
	st, err := h.stateSvc.Pause(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// stopRequest - тело запроса остановки
type stopRequest struct {
	Reason string `json:"reason"`
}

// Stop обрабатывает POST /api/v1/bot/stop
func (h *BotHandler) Stop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	// Тело опционально
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "manual stop"
	}

	st, err := h.stateSvc.Stop(r.Context(), req.Reason, middleware.ActorFrom(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// EmergencyStop обрабатывает POST /api/v1/bot/emergency-stop.
// В отличие от Stop отмена ордеров идет до смены состояния и
// безусловно.
func (h *BotHandler) EmergencyStop(w http.ResponseWriter, r *http.Request) {
	st, err := h.stateSvc.EmergencyStop(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// StateInfo обрабатывает GET /api/v1/bot/states - справочник
// состояний и допустимых переходов для дашборда
func (h *BotHandler) StateInfo(w http.ResponseWriter, r *http.Request) {
	states := make([]map[string]interface{}, 0, len(models.ValidTransitions))
	for state, next := range models.ValidTransitions {
		states = append(states, map[string]interface{}{
			"state":       state,
			"description": models.StateInfo(state),
			"transitions": next,
		})
	}
	respondWithJSON(w, http.StatusOK, states)
}
