package speech

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	chatservice "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler drives a panel over a websocket: clients send commands
// and receive every panel update.
type WebSocketHandler struct {
	chatSvc  *chatservice.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the live panel handler.
func NewWebSocketHandler(chatSvc *chatservice.Service, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		chatSvc: chatSvc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes mounts the websocket route.
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

// FileInfo describes a file picked on the client.
type FileInfo struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

type inboundMessage struct {
	Type string    `json:"type"`
	Text *string   `json:"text,omitempty"`
	File *FileInfo `json:"file,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	p, err := h.chatSvc.Panel(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("session", sessionID))
	logger.Info("connection opened")

	updates := make(chan panel.Update, 1)
	errs := make(chan string, 8)
	unsubscribe := p.Subscribe(func(u panel.Update) { offerLatest(updates, u) })
	defer unsubscribe()

	offerLatest(updates, panel.Update{Snapshot: p.Snapshot()})

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return h.readLoop(ctx, conn, p, errs)
	})
	g.Go(func() error {
		// Closing the connection unblocks the read loop.
		defer conn.Close()
		return h.writeLoop(ctx, conn, sessionID, updates, errs)
	})

	if err := g.Wait(); err != nil && !isExpectedClose(err) {
		logger.Warn("connection ended", zap.Error(err))
		return
	}
	logger.Info("connection closed")
}

var errPanelClosed = errors.New("panel closed")

func (h *WebSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, p *panel.Controller, errs chan<- string) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if problem := applyCommand(p, &msg); problem != "" {
			select {
			case errs <- problem:
			default:
			}
		}
	}
}

// applyCommand runs one client command against the panel and returns an
// error description for the client, if any.
func applyCommand(p *panel.Controller, msg *inboundMessage) string {
	switch msg.Type {
	case "draft":
		if msg.Text == nil {
			return "draft requires text"
		}
		p.SetDraft(*msg.Text)
	case "send":
		if msg.Text != nil {
			p.Submit(*msg.Text)
		} else {
			p.SendText()
		}
	case "capture":
		p.ToggleCapture()
	case "camera":
		p.CaptureImage()
	case "attach":
		if msg.File == nil {
			p.AttachFile(nil)
			return ""
		}
		handle := &panel.FileHandle{
			Name:        msg.File.Name,
			Size:        msg.File.Size,
			ContentType: msg.File.ContentType,
		}
		if !handle.Accepted() {
			return "unsupported file type: " + handle.DisplayName()
		}
		p.AttachFile(handle)
	default:
		return "unsupported message type: " + msg.Type
	}
	return ""
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sessionID string, updates <-chan panel.Update, errs <-chan string) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-updates:
			if err := writeJSON(conn, outgoingMessage{
				Type:      "update",
				SessionID: sessionID,
				Data:      u,
				Timestamp: time.Now().Unix(),
			}); err != nil {
				return err
			}
			if u.Snapshot.Closed {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "panel closed"),
					time.Now().Add(writeWait))
				return errPanelClosed
			}
		case problem := <-errs:
			if err := writeJSON(conn, outgoingMessage{
				Type:      "error",
				Data:      map[string]string{"message": problem},
				Timestamp: time.Now().Unix(),
			}); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, msg outgoingMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// offerLatest replaces any pending update with the newer of the two, so a
// slow client only ever sees the newest snapshot.
func offerLatest(ch chan panel.Update, u panel.Update) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case old := <-ch:
			if old.Snapshot.Version > u.Snapshot.Version {
				u = old
			}
		default:
		}
	}
}

func isExpectedClose(err error) bool {
	return errors.Is(err, errPanelClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
