package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/farm-assistant/backend/internal/clock"
	"github.com/zhouzirui/farm-assistant/backend/internal/config"
	"github.com/zhouzirui/farm-assistant/backend/internal/handler"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/persona"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/panel"
)

func listenLocal(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestRunServerStopsOnCancel(t *testing.T) {
	srv := newServer(config.ServerConfig{}, http.NotFoundHandler())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, listenLocal(t)) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunServerReportsServeError(t *testing.T) {
	ln := listenLocal(t)
	require.NoError(t, ln.Close())

	srv := newServer(config.ServerConfig{}, http.NotFoundHandler())
	assert.Error(t, runServer(context.Background(), srv, ln))
}

func TestShutdownEndsOpenStreams(t *testing.T) {
	sched := clock.NewReal()
	defer sched.Stop()

	store := persona.NewMemoryStore(persona.Seed())
	chatSvc := chat.NewService(store, chat.NewPanelFactory(chat.Options{
		Panel:     panel.DefaultConfig(),
		Scheduler: sched,
	}), nil)
	router := handler.NewRouter(store, chatSvc, persona.DefaultID, nil)

	ln := listenLocal(t)
	base := "http://" + ln.Addr().String()
	srv := newServer(config.ServerConfig{}, router, chatSvc.CloseAll)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, ln) }()

	resp, err := http.Post(base+"/api/panels", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	var opened struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&opened))
	resp.Body.Close()

	stream, err := http.Get(base + "/api/stream/" + opened.Session.ID)
	require.NoError(t, err)
	defer stream.Body.Close()
	line, err := bufio.NewReader(stream.Body).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "event: snapshot\n", line)

	start := time.Now()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown waited on the open stream")
	}
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Zero(t, chatSvc.Count())

	_, err = io.ReadAll(stream.Body)
	assert.NoError(t, err)
}
