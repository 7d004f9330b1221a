package panel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
)

func TestAttachFileAppendsFileMessage(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	ok := h.panel.AttachFile(&FileHandle{
		Name:        "soil-report.pdf",
		Size:        2048,
		ContentType: "application/pdf",
		Content:     strings.NewReader("%PDF-1.7"),
	})
	require.True(t, ok)

	msgs := h.panel.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.KindFile, msgs[0].Kind)
	assert.Equal(t, chat.SenderUser, msgs[0].Sender)
	assert.Equal(t, "File attached: soil-report.pdf", msgs[0].Text)

	require.Len(t, h.notifier.calls, 1)
	assert.Equal(t, notice{"File Attached", "soil-report.pdf has been uploaded successfully"}, h.notifier.calls[0])
	assert.Zero(t, h.clock.Pending(), "attachments do not trigger replies")
}

func TestAttachFileCancelledPicker(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	var updates int
	h.panel.Subscribe(func(Update) { updates++ })

	assert.False(t, h.panel.AttachFile(nil))
	assert.Empty(t, h.panel.Messages())
	assert.Empty(t, h.notifier.calls)
	assert.Zero(t, updates)
}

func TestAttachFileAcceptedTypes(t *testing.T) {
	tests := []struct {
		handle FileHandle
		want   bool
	}{
		{FileHandle{Name: "photo.JPG"}, true},
		{FileHandle{Name: "field.webp"}, true},
		{FileHandle{Name: "Notes.TXT"}, true},
		{FileHandle{Name: "plan.docx"}, true},
		{FileHandle{Name: "snapshot", ContentType: "image/heic"}, true},
		{FileHandle{Name: "x.exe"}, false},
		{FileHandle{Name: "x.exe", ContentType: "application/octet-stream"}, false},
		{FileHandle{Name: "README"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.handle.Accepted(), tt.handle.Name)
	}
}

func TestAttachFileRejectedTypeIsNoOp(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	var updates int
	h.panel.Subscribe(func(Update) { updates++ })

	assert.False(t, h.panel.AttachFile(&FileHandle{Name: "x.exe", Size: 4096}))
	assert.Empty(t, h.panel.Messages())
	assert.Empty(t, h.notifier.calls)
	assert.Zero(t, updates)

	require.True(t, h.panel.AttachFile(&FileHandle{Name: "photo.JPG", Size: 4096}))
	require.Len(t, h.panel.Messages(), 1)
	assert.Equal(t, "File attached: photo.JPG", h.panel.Messages()[0].Text)
}

func TestAttachFileStripsClientPath(t *testing.T) {
	tests := map[string]string{
		"C:\\Users\\farmer\\crop.jpg": "crop.jpg",
		"photos/field/north.png":     "north.png",
		"  ":                         "unnamed file",
	}
	for in, want := range tests {
		assert.Equal(t, want, (&FileHandle{Name: in}).DisplayName(), in)
	}
}

func TestCaptureImageOnlyNotifies(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	var got *Notice
	h.panel.Subscribe(func(u Update) { got = u.Notice })

	h.panel.CaptureImage()

	assert.Empty(t, h.panel.Messages())
	assert.Equal(t, PhaseIdle, h.panel.State().Phase())
	require.Len(t, h.notifier.calls, 1)
	assert.Equal(t, "Camera Feature", h.notifier.calls[0].title)
	require.NotNil(t, got)
	assert.Equal(t, "Camera Feature", got.Title)
}
