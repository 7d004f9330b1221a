package speech

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatservice "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
	"github.com/zhouzirui/farm-assistant/backend/pkg/utils"
)

// Handler serves the voice capture routes.
type Handler struct {
	chatSvc *chatservice.Service
	logger  *zap.Logger
}

// New creates the voice capture handler.
func New(chatSvc *chatservice.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger,
	}
}

// RegisterRoutes mounts the capture toggle, the speech health check and the
// live websocket.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/panels/{sessionID}/capture", h.handleToggleCapture)
	r.Get("/speech/health", h.handleHealth)

	ws := NewWebSocketHandler(h.chatSvc, h.logger.Named("ws"))
	ws.RegisterWebSocketRoutes(r)
}

type captureResponse struct {
	Phase    panel.Phase    `json:"phase"`
	Snapshot panel.Snapshot `json:"snapshot"`
}

// handleToggleCapture starts or cancels a voice capture. While a capture is
// being transcribed the toggle is ignored and the current phase returned.
func (h *Handler) handleToggleCapture(w http.ResponseWriter, r *http.Request) {
	p, err := h.chatSvc.Panel(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}

	phase := p.ToggleCapture()
	h.logger.Debug("capture toggled", zap.String("session", p.SessionID()), zap.String("phase", string(phase)))
	h.respondJSON(w, http.StatusOK, captureResponse{Phase: phase, Snapshot: p.Snapshot()})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "speech",
		"panels":  h.chatSvc.Count(),
	})
}

func statusFor(err error) int {
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	if err := utils.RespondJSON(w, status, payload); err != nil {
		h.logger.Warn("write response failed", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	if err := utils.RespondError(w, status, message); err != nil {
		h.logger.Warn("write error response failed", zap.Error(err))
	}
}
