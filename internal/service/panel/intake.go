package panel

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
)

// FileHandle is what a file picker produces. Content is never read here.
type FileHandle struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.Reader
}

// DisplayName strips directories a client may send along with the name.
func (h *FileHandle) DisplayName() string {
	name := strings.TrimSpace(h.Name)
	if name == "" {
		return "unnamed file"
	}
	return filepath.Base(strings.ReplaceAll(name, `\`, "/"))
}

// documentExts are the non-image extensions the picker offers.
var documentExts = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
}

// Accepted reports whether the picker would have offered the file: any
// image, or a PDF, Word or plain text document.
func (h *FileHandle) Accepted() bool {
	if strings.HasPrefix(strings.ToLower(h.ContentType), "image/") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(h.DisplayName()))
	if ext == "" {
		return false
	}
	if documentExts[ext] {
		return true
	}
	return strings.HasPrefix(mime.TypeByExtension(ext), "image/")
}

// AttachFile records a picked file as a user message and raises an alert.
// A nil handle means the picker was cancelled and is a silent no-op. A file
// the picker would not have offered is treated the same way.
func (c *Controller) AttachFile(h *FileHandle) bool {
	if h == nil {
		return false
	}
	name := h.DisplayName()
	if !h.Accepted() {
		c.logger.Debug("attachment type not accepted", zap.String("file", name))
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.log.Append(chat.Message{
		Text:      fmt.Sprintf("File attached: %s", name),
		Sender:    chat.SenderUser,
		Kind:      chat.KindFile,
		Timestamp: c.sched.Now(),
	})
	c.version++
	notice := c.noticeLocked("File Attached", fmt.Sprintf("%s has been uploaded successfully", name))
	c.mu.Unlock()

	c.publish(notice)
	return true
}

// CaptureImage stands in for the camera integration: it only raises an
// alert and never produces a message.
func (c *Controller) CaptureImage() {
	c.notify("Camera Feature", "Camera functionality would open here for crop analysis")
}
