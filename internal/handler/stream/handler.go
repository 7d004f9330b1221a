package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatService "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
	"github.com/zhouzirui/farm-assistant/backend/pkg/utils"
)

// KeepAlive is the interval between SSE keepalive comments.
var KeepAlive = 15 * time.Second

// Handler streams panel updates as Server-Sent Events.
type Handler struct {
	chatSvc *chatService.Service
	logger  *zap.Logger
}

// New creates the panel stream handler.
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger,
	}
}

// RegisterRoutes mounts the stream route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// handleStream sends the current snapshot, then a "snapshot" event for every
// change and a "notice" event for every alert. The stream ends when the
// client leaves or the panel closes.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	p, err := h.chatSvc.Panel(r.Context(), sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		_ = utils.RespondError(w, status, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		_ = utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	logger := h.logger.With(zap.String("session", sessionID))
	f := newFeed(p, 64, logger)
	defer f.unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	logger.Info("stream opened")
	defer logger.Info("stream closed")

	if err := utils.SendSSEEvent(w, flusher, "snapshot", p.Snapshot()); err != nil {
		logger.Warn("initial snapshot failed", zap.Error(err))
		return
	}

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		case <-f.closed:
			// Drain what was buffered, then finish with the closed snapshot
			// even if the consumer lagged past it.
			for {
				select {
				case u := <-f.updates:
					if err := h.sendUpdate(w, flusher, u); err != nil {
						logger.Debug("update write failed", zap.Error(err))
						return
					}
					if u.Snapshot.Closed {
						return
					}
				default:
					_ = utils.SendSSEEvent(w, flusher, "snapshot", p.Snapshot())
					return
				}
			}
		case u := <-f.updates:
			if err := h.sendUpdate(w, flusher, u); err != nil {
				logger.Debug("update write failed", zap.Error(err))
				return
			}
			if u.Snapshot.Closed {
				return
			}
		}
	}
}

func (h *Handler) sendUpdate(w http.ResponseWriter, flusher http.Flusher, u panel.Update) error {
	if u.Notice != nil {
		if err := utils.SendSSEEvent(w, flusher, "notice", u.Notice); err != nil {
			return err
		}
	}
	return utils.SendSSEEvent(w, flusher, "snapshot", u.Snapshot)
}
