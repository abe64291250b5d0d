package statesync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		_ = hub.Serve(w, r, Session{
			MatchID:  q.Get("match"),
			PlayerID: q.Get("player"),
			Hello:    hello(q.Get("hello")),
			OnMessage: func(c *Client, data []byte) {
				hub.Send(c, Message{Type: TypeError, MatchID: c.MatchID(), Payload: ErrorPayload{Code: "ECHO", Message: string(data)}})
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func hello(kind string) []Message {
	if kind == "" {
		return nil
	}
	return []Message{{Type: kind}}
}

func dial(t *testing.T, srv *httptest.Server, match, player string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?match=" + match + "&player=" + player
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubKeepsPrivateMessagesPrivate(t *testing.T) {
	hub := NewHub(HubConfig{Logger: zaptest.NewLogger(t)})
	srv := newHubServer(t, hub)

	alice := dial(t, srv, "m1", "alice")
	bob := dial(t, srv, "m1", "bob")
	other := dial(t, srv, "m2", "carol")
	require.Eventually(t, func() bool { return hub.Connections("m1") == 2 && hub.Connections("m2") == 1 },
		2*time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hub.PublishMatch(ctx, "m1", Message{Type: TypeState, MatchID: "m1", Seq: 1}))
	require.NoError(t, hub.PublishPlayer(ctx, "m1", "alice", Message{Type: TypeView, MatchID: "m1", PlayerID: "alice", Seq: 1}))
	require.NoError(t, hub.PublishMatch(ctx, "m1", Message{Type: TypePhaseChanged, MatchID: "m1", Seq: 1}))

	first := readMessage(t, alice)
	assert.Equal(t, TypeView, first.Type)
	assert.Equal(t, "alice", first.PlayerID)
	assert.Equal(t, TypePhaseChanged, readMessage(t, alice).Type)

	// The full state never reaches a socket.
	assert.Equal(t, TypePhaseChanged, readMessage(t, bob).Type)

	require.NoError(t, hub.PublishMatch(ctx, "m2", Message{Type: TypeMatchResult, MatchID: "m2"}))
	assert.Equal(t, TypeMatchResult, readMessage(t, other).Type)
}

func TestHubPassesInboundFrames(t *testing.T) {
	hub := NewHub(HubConfig{Logger: zaptest.NewLogger(t)})
	srv := newHubServer(t, hub)

	conn := dial(t, srv, "m1", "alice")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"pass"}`)))

	reply := readMessage(t, conn)
	assert.Equal(t, TypeError, reply.Type)
	payload, ok := reply.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ECHO", payload["code"])
	assert.Equal(t, `{"kind":"pass"}`, payload["message"])
}

func TestHubSendsHelloFirst(t *testing.T) {
	hub := NewHub(HubConfig{Logger: zaptest.NewLogger(t)})
	srv := newHubServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?match=m1&player=alice&hello=" + TypeView
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	assert.Equal(t, TypeView, readMessage(t, conn).Type)
}

func TestHubUnregistersClosedSockets(t *testing.T) {
	hub := NewHub(HubConfig{Logger: zaptest.NewLogger(t)})
	srv := newHubServer(t, hub)

	alice := dial(t, srv, "m1", "alice")
	bob := dial(t, srv, "m1", "bob")
	require.Eventually(t, func() bool { return hub.Connections("m1") == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, bob.Close())
	assert.Eventually(t, func() bool { return hub.Connections("m1") == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, hub.PublishMatch(context.Background(), "m1", Message{Type: TypePhaseChanged, MatchID: "m1"}))
	assert.Equal(t, TypePhaseChanged, readMessage(t, alice).Type)
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewHub(HubConfig{Logger: zaptest.NewLogger(t), SendQueue: 1})
	c := &Client{send: make(chan []byte, 1), matchID: "m1", playerID: "alice"}
	hub.register(c)

	ctx := context.Background()
	require.NoError(t, hub.PublishMatch(ctx, "m1", Message{Type: TypePhaseChanged, MatchID: "m1"}))
	assert.Equal(t, 1, hub.Connections("m1"))
	require.NoError(t, hub.PublishMatch(ctx, "m1", Message{Type: TypePhaseChanged, MatchID: "m1"}))
	assert.Equal(t, 0, hub.Connections("m1"))

	_, open := <-c.send
	assert.True(t, open, "the queued message is still readable")
	_, open = <-c.send
	assert.False(t, open, "the send queue is closed after the drop")
	assert.False(t, hub.Send(c, Message{Type: TypeError}))
}

func TestHubChecksOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		ok      bool
	}{
		{"listed origin", []string{"https://play.example.com/"}, "https://play.example.com", true},
		{"unlisted origin", []string{"https://play.example.com"}, "https://evil.example.com", false},
		{"no origin header", []string{"https://play.example.com"}, "", true},
		{"wildcard", []string{"*"}, "https://anywhere.example.com", true},
		{"same origin by default", nil, "https://evil.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(HubConfig{Logger: zaptest.NewLogger(t), AllowedOrigins: tt.allowed})
			srv := newHubServer(t, hub)
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?match=m1&player=alice"
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if resp != nil {
				resp.Body.Close()
			}
			if !tt.ok {
				assert.ErrorIs(t, err, websocket.ErrBadHandshake)
				return
			}
			require.NoError(t, err)
			conn.Close()
		})
	}
}
