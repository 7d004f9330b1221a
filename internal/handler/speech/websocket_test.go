package speech

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, f *fixture, id string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUpdate reads frames until an update satisfies match.
func readUpdate(t *testing.T, conn *websocket.Conn, match func(panel.Update) bool) panel.Update {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var fr frame
		if err := conn.ReadJSON(&fr); err != nil {
			t.Fatalf("read: %v", err)
		}
		if fr.Type != "update" {
			continue
		}
		var u panel.Update
		if err := json.Unmarshal(fr.Data, &u); err != nil {
			t.Fatalf("decode update: %v", err)
		}
		if match(u) {
			return u
		}
	}
}

func TestWebSocketSendAndReply(t *testing.T) {
	f := setup(t)
	id := f.open(t)
	conn := dial(t, f, id)

	readUpdate(t, conn, func(u panel.Update) bool { return u.Snapshot.SessionID == id })

	if err := conn.WriteJSON(map[string]any{"type": "send", "text": "How to improve yield?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUpdate(t, conn, func(u panel.Update) bool { return len(u.Snapshot.Messages) == 1 })

	f.clock.Advance(time.Second)
	u := readUpdate(t, conn, func(u panel.Update) bool { return len(u.Snapshot.Messages) == 2 })
	if u.Snapshot.Messages[1].Sender != chat.SenderAssistant {
		t.Fatalf("expected assistant reply, got %+v", u.Snapshot.Messages[1])
	}
}

func TestWebSocketCaptureNotice(t *testing.T) {
	f := setup(t)
	id := f.open(t)
	conn := dial(t, f, id)

	if err := conn.WriteJSON(map[string]any{"type": "capture"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	u := readUpdate(t, conn, func(u panel.Update) bool { return u.Snapshot.State.Recording })
	if u.Notice == nil || u.Notice.Title != "Voice Recording Started" {
		t.Fatalf("expected recording notice, got %+v", u.Notice)
	}
}

func TestWebSocketRejectsUnknownCommand(t *testing.T) {
	f := setup(t)
	id := f.open(t)
	conn := dial(t, f, id)

	if err := conn.WriteJSON(map[string]any{"type": "teleport"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var fr frame
		if err := conn.ReadJSON(&fr); err != nil {
			t.Fatalf("read: %v", err)
		}
		if fr.Type == "error" {
			if !strings.Contains(string(fr.Data), "teleport") {
				t.Fatalf("unexpected error frame: %s", fr.Data)
			}
			return
		}
	}
}

func TestWebSocketClosesWithPanel(t *testing.T) {
	f := setup(t)
	id := f.open(t)
	conn := dial(t, f, id)

	readUpdate(t, conn, func(u panel.Update) bool { return true })
	if err := f.chatSvc.CloseSession(context.Background(), id); err != nil {
		t.Fatalf("CloseSession err: %v", err)
	}
	readUpdate(t, conn, func(u panel.Update) bool { return u.Snapshot.Closed })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var fr frame
	if err := conn.ReadJSON(&fr); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	f := setup(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

func TestApplyCommandAttach(t *testing.T) {
	f := setup(t)
	p, _ := f.chatSvc.Panel(context.Background(), f.open(t))

	if problem := applyCommand(p, &inboundMessage{Type: "attach"}); problem != "" {
		t.Fatalf("cancelled picker should be silent, got %q", problem)
	}
	if len(p.Messages()) != 0 {
		t.Fatal("cancelled picker must not add messages")
	}

	applyCommand(p, &inboundMessage{Type: "attach", File: &FileInfo{Name: "field.jpg", Size: 10}})
	msgs := p.Messages()
	if len(msgs) != 1 || msgs[0].Text != "File attached: field.jpg" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	if problem := applyCommand(p, &inboundMessage{Type: "draft"}); problem == "" {
		t.Fatal("draft without text should be rejected")
	}
}

func TestApplyCommandAttachRejectsUnsupportedType(t *testing.T) {
	f := setup(t)
	p, _ := f.chatSvc.Panel(context.Background(), f.open(t))
	before := len(p.Messages())

	problem := applyCommand(p, &inboundMessage{Type: "attach", File: &FileInfo{Name: "x.exe", Size: 10}})
	if problem != "unsupported file type: x.exe" {
		t.Fatalf("unexpected problem %q", problem)
	}
	if len(p.Messages()) != before {
		t.Fatal("rejected file must not add messages")
	}

	if problem := applyCommand(p, &inboundMessage{Type: "attach", File: &FileInfo{Name: "photo.JPG", Size: 10}}); problem != "" {
		t.Fatalf("image should be accepted, got %q", problem)
	}
	msgs := p.Messages()
	if msgs[len(msgs)-1].Text != "File attached: photo.JPG" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestOfferLatestKeepsNewest(t *testing.T) {
	ch := make(chan panel.Update, 1)
	offerLatest(ch, panel.Update{Snapshot: panel.Snapshot{Version: 2}})
	offerLatest(ch, panel.Update{Snapshot: panel.Snapshot{Version: 5}})
	offerLatest(ch, panel.Update{Snapshot: panel.Snapshot{Version: 3}})

	if got := <-ch; got.Snapshot.Version != 5 {
		t.Fatalf("expected version 5, got %d", got.Snapshot.Version)
	}
}
