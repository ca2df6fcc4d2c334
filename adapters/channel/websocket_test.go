package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/layer-3/walletauth/bridge"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// walletServer runs fn for every connection
func walletServer(t *testing.T, fn func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type recorder struct {
	ready    chan struct{}
	messages chan json.RawMessage
	closed   chan struct{}

	mu     sync.Mutex
	closes int
}

func newRecorder() *recorder {
	return &recorder{
		ready:    make(chan struct{}, 4),
		messages: make(chan json.RawMessage, 4),
		closed:   make(chan struct{}, 4),
	}
}

func (r *recorder) handlers() ports.ChannelHandlers {
	return ports.ChannelHandlers{
		OnReady:   func() { r.ready <- struct{}{} },
		OnMessage: func(data json.RawMessage) { r.messages <- data },
		OnClose: func() {
			r.mu.Lock()
			r.closes++
			r.mu.Unlock()
			r.closed <- struct{}{}
		},
	}
}

func await[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
		var zero T
		return zero
	}
}

func TestWebSocketFrames(t *testing.T) {
	url := walletServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]string{"type": bridge.TagReady})
		_ = conn.WriteJSON(map[string]string{"status": "APPROVED"})
		_ = conn.WriteJSON(map[string]string{"type": bridge.TagClose})
		_, _, _ = conn.ReadMessage()
	})

	rec := newRecorder()
	_, err := NewWebSocketOpener(nil, nil).Open(context.Background(), url, rec.handlers())
	require.NoError(t, err)

	await(t, rec.ready)
	assert.JSONEq(t, `{"status":"APPROVED"}`, string(await(t, rec.messages)))
	await(t, rec.closed)
}

func TestWebSocketSendAndClose(t *testing.T) {
	received := make(chan []byte, 1)
	url := walletServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- data
		}
		_, _, _ = conn.ReadMessage()
	})

	rec := newRecorder()
	ch, err := NewWebSocketOpener(nil, nil).Open(context.Background(), url, rec.handlers())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ch.Send(ctx, map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n":1}`, string(await(t, received)))

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	await(t, rec.closed)

	assert.ErrorIs(t, ch.Send(context.Background(), "late"), ErrChannelClosed)

	time.Sleep(50 * time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, 1, rec.closes)
	rec.mu.Unlock()
}

func TestWebSocketPeerDisconnect(t *testing.T) {
	url := walletServer(t, func(conn *websocket.Conn) {})

	rec := newRecorder()
	_, err := NewWebSocketOpener(nil, nil).Open(context.Background(), url, rec.handlers())
	require.NoError(t, err)

	await(t, rec.closed)
}

func TestWebSocketDialFailure(t *testing.T) {
	_, err := NewWebSocketOpener(nil, nil).Open(context.Background(), "ws://127.0.0.1:1", newRecorder().handlers())
	assert.Error(t, err)
}

func TestBridgeOverWebSocket(t *testing.T) {
	url := walletServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]string{"type": bridge.TagReady})

		var announcement struct {
			Type      string `json:"type"`
			RequestID string `json:"requestId"`
		}
		if err := conn.ReadJSON(&announcement); err != nil {
			return
		}
		// legacy announcement
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		_ = conn.WriteJSON(map[string]any{
			"jsonrpc": "2.0",
			"id":      announcement.RequestID,
			"result": map[string]any{
				"status": "APPROVED",
				"data":   map[string]any{"address": "0xf8d6e0586b0a20c7"},
			},
		})
		_, _, _ = conn.ReadMessage()
	})

	b := bridge.New(NewWebSocketOpener(nil, nil))
	data, err := b.Execute(context.Background(), bridge.Request{
		Service: bridge.Service{Endpoint: url},
		Body:    map[string]any{"type": "AccountProofRequest"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"0xf8d6e0586b0a20c7"}`, string(data))
}

func TestBridgeOverWebSocketWalletCloses(t *testing.T) {
	url := walletServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]string{"type": bridge.TagReady})
		_, _, _ = conn.ReadMessage()
		_, _, _ = conn.ReadMessage()
		_ = conn.WriteJSON(map[string]string{"type": bridge.TagClose})
		_, _, _ = conn.ReadMessage()
	})

	_, err := bridge.New(NewWebSocketOpener(nil, nil)).Execute(context.Background(), bridge.Request{
		Service: bridge.Service{Endpoint: url},
	})
	assert.ErrorIs(t, err, core.ErrExternallyHalted)
}

// approvingWallet approves the first request and then reports on hungUp when
// the client closes the connection
func approvingWallet(hungUp chan<- struct{}) func(conn *websocket.Conn) {
	return func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]string{"type": bridge.TagReady})

		var announcement struct {
			RequestID string `json:"requestId"`
		}
		if err := conn.ReadJSON(&announcement); err != nil {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{
			"jsonrpc": "2.0",
			"id":      announcement.RequestID,
			"result":  map[string]any{"status": "APPROVED", "data": true},
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hungUp <- struct{}{}
				return
			}
		}
	}
}

func redirectRequest(url string) bridge.Request {
	return bridge.Request{
		Service:      bridge.Service{Endpoint: url, Method: bridge.MethodRedirect},
		Body:         map[string]any{"type": "AccountProofRequest"},
		RedirectMode: true,
	}
}

func TestBridgeOverWebSocketReleasesRedirectChannel(t *testing.T) {
	hungUp := make(chan struct{}, 1)
	url := walletServer(t, approvingWallet(hungUp))

	b := bridge.New(NewWebSocketOpener(nil, nil))
	data, release, err := b.ExecuteRedirect(context.Background(), redirectRequest(url))
	require.NoError(t, err)
	assert.JSONEq(t, `true`, string(data))

	select {
	case <-hungUp:
		t.Fatal("redirect channel closed before release")
	case <-time.After(100 * time.Millisecond):
	}

	release()
	await(t, hungUp)
}

func TestBridgeOverWebSocketRedirectClosesWithContext(t *testing.T) {
	hungUp := make(chan struct{}, 1)
	url := walletServer(t, approvingWallet(hungUp))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := bridge.New(NewWebSocketOpener(nil, nil)).Execute(ctx, redirectRequest(url))
	require.NoError(t, err)

	cancel()
	await(t, hungUp)
}

func TestWebSocketSendCancelled(t *testing.T) {
	url := walletServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	rec := newRecorder()
	ch, err := NewWebSocketOpener(nil, nil).Open(context.Background(), url, rec.handlers())
	require.NoError(t, err)
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ch.Send(ctx, "never written"), context.Canceled)
	// the channel itself stays usable
	require.NoError(t, ch.Send(context.Background(), "written"))
}

func TestWebSocketSendUnblocksOnCancel(t *testing.T) {
	stalled := make(chan struct{})
	url := walletServer(t, func(conn *websocket.Conn) {
		// never read so the client's writes back up
		<-stalled
	})
	t.Cleanup(func() { close(stalled) })

	rec := newRecorder()
	ch, err := NewWebSocketOpener(nil, nil).Open(context.Background(), url, rec.handlers())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	sent := make(chan error, 1)
	go func() {
		sent <- ch.Send(ctx, map[string]string{"blob": strings.Repeat("a", 64<<20)})
	}()

	assert.ErrorIs(t, await(t, sent), context.Canceled)
	await(t, rec.closed)
	assert.ErrorIs(t, ch.Send(context.Background(), "late"), ErrChannelClosed)
}
