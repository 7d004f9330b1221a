package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	chatService "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
	"github.com/zhouzirui/farm-assistant/backend/pkg/utils"
)

// maxUploadSize bounds multipart attachment requests.
const maxUploadSize = 32 << 20

// Handler serves the chat panel REST routes.
type Handler struct {
	chatSvc   *chatService.Service
	defaultID string
	logger    *zap.Logger
}

// New creates the chat panel handler. defaultAssistant is used when a panel
// is opened without an assistant id.
func New(chatSvc *chatService.Service, defaultAssistant string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:   chatSvc,
		defaultID: defaultAssistant,
		logger:    logger,
	}
}

// RegisterRoutes mounts the panel routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/panels", h.handleOpenPanel)
	r.Get("/panels/{sessionID}", h.handleGetPanel)
	r.Delete("/panels/{sessionID}", h.handleClosePanel)
	r.Get("/panels/{sessionID}/messages", h.handleListMessages)
	r.Put("/panels/{sessionID}/draft", h.handleSetDraft)
	r.Post("/panels/{sessionID}/send", h.handleSend)
	r.Post("/panels/{sessionID}/camera", h.handleCamera)
	r.Post("/panels/{sessionID}/attachments", h.handleAttach)
}

type openResponse struct {
	Session  chat.Session   `json:"session"`
	Snapshot panel.Snapshot `json:"snapshot"`
}

type sendResponse struct {
	Sent     bool           `json:"sent"`
	Snapshot panel.Snapshot `json:"snapshot"`
}

func (h *Handler) handleOpenPanel(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AssistantID string `json:"assistantId"`
	}
	if err := utils.DecodeJSON(r, &payload, true); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.AssistantID == "" {
		payload.AssistantID = h.defaultID
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.AssistantID)
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}

	p, err := h.chatSvc.Panel(r.Context(), session.ID)
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}

	h.respondJSON(w, http.StatusCreated, openResponse{Session: session, Snapshot: p.Snapshot()})
}

func (h *Handler) handleGetPanel(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panelFor(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, p.Snapshot())
}

func (h *Handler) handleClosePanel(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panelFor(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload, false); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p.SetDraft(payload.Text)
	h.respondJSON(w, http.StatusOK, p.Snapshot())
}

// handleSend commits the draft, or the body's text when one is given.
// A blank message is not an error: it reports sent=false.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panelFor(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text *string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload, true); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var sent bool
	if payload.Text != nil {
		sent = p.Submit(*payload.Text)
	} else {
		sent = p.SendText()
	}
	h.respondJSON(w, http.StatusOK, sendResponse{Sent: sent, Snapshot: p.Snapshot()})
}

func (h *Handler) handleCamera(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panelFor(w, r)
	if !ok {
		return
	}
	p.CaptureImage()
	w.WriteHeader(http.StatusNoContent)
}

// handleAttach records an uploaded file. A form without a file is the
// dismissed picker and changes nothing. Files the picker would not offer are
// refused with 415.
func (h *Handler) handleAttach(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panelFor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to read file: "+err.Error())
		return
	}
	defer file.Close()

	handle := &panel.FileHandle{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	}
	if !handle.Accepted() {
		h.respondError(w, http.StatusUnsupportedMediaType, "unsupported file type: "+handle.DisplayName())
		return
	}
	if !p.AttachFile(handle) {
		h.respondError(w, http.StatusConflict, "panel is closed")
		return
	}

	h.logger.Info("attachment received",
		zap.String("session", p.SessionID()),
		zap.String("file", handle.DisplayName()),
		zap.Int64("size", handle.Size))
	h.respondJSON(w, http.StatusCreated, p.Snapshot())
}

func (h *Handler) panelFor(w http.ResponseWriter, r *http.Request) (*panel.Controller, bool) {
	p, err := h.chatSvc.Panel(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return nil, false
	}
	return p, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrPersonaRequired), errors.Is(err, chatService.ErrPersonaNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
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
