package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/farm-assistant/backend/pkg/utils"
)

// Handler serves assistant profiles.
type Handler struct {
	personas persona.Store
	logger   *zap.Logger
}

// New creates the assistant profile handler.
func New(personas persona.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		personas: personas,
		logger:   logger,
	}
}

// RegisterRoutes mounts the profile routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assistants", h.handleListAssistants)
	r.Get("/assistants/{assistantID}", h.handleGetAssistant)
}

func (h *Handler) handleListAssistants(w http.ResponseWriter, _ *http.Request) {
	if err := utils.RespondJSON(w, http.StatusOK, h.personas.List()); err != nil {
		h.logger.Warn("write assistants failed", zap.Error(err))
	}
}

func (h *Handler) handleGetAssistant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "assistantID")
	profile, ok := h.personas.FindByID(id)
	if !ok {
		_ = utils.RespondError(w, http.StatusNotFound, "assistant not found")
		return
	}
	if err := utils.RespondJSON(w, http.StatusOK, profile); err != nil {
		h.logger.Warn("write assistant failed", zap.Error(err))
	}
}
