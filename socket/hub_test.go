package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to read messages from a WebSocket connection with a timeout.
func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	var msg WSMessage
	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	err = json.Unmarshal(p, &msg)
	require.NoError(t, err, "Failed to unmarshal WSMessage JSON")
	return msg
}

func writeMessage(t *testing.T, conn *websocket.Conn, msg WSMessage) {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))
}

func payloadString(t *testing.T, msg WSMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(msg.Payload, &s))
	return s
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func connect(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws", nil)
	require.NoError(t, err, "Editor page failed to connect")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubIntegration(t *testing.T) {
	hub, wsURL := startHub(t)
	ctx := context.Background()

	saved := make(chan struct{}, 1)
	hub.RegisterAction("save", func() { saved <- struct{}{} })
	hub.RegisterAction("closedocument", func() {})
	require.NoError(t, hub.SetContent(ctx, "<p>before connect</p>"))

	conn := connect(t, wsURL)

	// A new page is told which menu items exist and what the content is.
	reg := readMessage(t, conn)
	assert.Equal(t, RegisterType, reg.Type)
	assert.JSONEq(t, `["closedocument","save"]`, string(reg.Payload))

	initial := readMessage(t, conn)
	assert.Equal(t, SetContentType, initial.Type)
	assert.Equal(t, "<p>before connect</p>", payloadString(t, initial))

	// Host pushes new content.
	require.NoError(t, hub.SetContent(ctx, "<p>opened</p>"))
	set := readMessage(t, conn)
	assert.Equal(t, SetContentType, set.Type)
	assert.Equal(t, "<p>opened</p>", payloadString(t, set))

	// Host asks for content; the page answers.
	got := make(chan string, 1)
	go func() {
		content, err := hub.GetContent(ctx)
		assert.NoError(t, err)
		got <- content
	}()
	req := readMessage(t, conn)
	assert.Equal(t, GetContentType, req.Type)
	require.NotEmpty(t, req.RequestID)
	writeMessage(t, conn, WSMessage{Type: ContentType, RequestID: req.RequestID, Payload: json.RawMessage(`"<p>typed</p>"`)})

	select {
	case content := <-got:
		assert.Equal(t, "<p>typed</p>", content)
	case <-time.After(time.Second):
		t.Fatal("GetContent did not return")
	}

	// A menu click runs the registered action.
	writeMessage(t, conn, WSMessage{Type: ActionType, Name: "save"})
	select {
	case <-saved:
	case <-time.After(time.Second):
		t.Fatal("save action was not called")
	}

	hub.Notify("info", "Document saved successfully!")
	notice := readMessage(t, conn)
	assert.Equal(t, NoticeType, notice.Type)
	assert.JSONEq(t, `{"level":"info","message":"Document saved successfully!"}`, string(notice.Payload))

	hub.Prompt("editdocinfo")
	prompt := readMessage(t, conn)
	assert.Equal(t, PromptType, prompt.Type)
	assert.Equal(t, "editdocinfo", prompt.Name)
}

func TestHubReadyCallbacks(t *testing.T) {
	hub, wsURL := startHub(t)
	ready := make(chan struct{}, 1)
	hub.OnReady(func() { ready <- struct{}{} })

	conn := connect(t, wsURL)
	readMessage(t, conn)
	readMessage(t, conn)
	writeMessage(t, conn, WSMessage{Type: ReadyType})

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("ready callback was not called")
	}
}

func TestHubGetContentWithoutPage(t *testing.T) {
	hub, _ := startHub(t)
	ctx := context.Background()

	require.NoError(t, hub.SetContent(ctx, "cached"))
	content, err := hub.GetContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cached", content)
	assert.False(t, hub.Connected())
}

func TestHubGetContentTimeout(t *testing.T) {
	hub, wsURL := startHub(t)
	hub.ContentTimeout = 50 * time.Millisecond

	conn := connect(t, wsURL)
	readMessage(t, conn)
	readMessage(t, conn)
	require.Eventually(t, hub.Connected, time.Second, 5*time.Millisecond)

	_, err := hub.GetContent(context.Background())
	assert.ErrorIs(t, err, ErrContentTimeout)
}

func TestHubNewPageReplacesOld(t *testing.T) {
	hub, wsURL := startHub(t)

	first := connect(t, wsURL)
	readMessage(t, first)
	readMessage(t, first)

	second := connect(t, wsURL)
	readMessage(t, second)
	readMessage(t, second)

	require.NoError(t, hub.SetContent(context.Background(), "only second"))
	msg := readMessage(t, second)
	assert.Equal(t, "only second", payloadString(t, msg))

	first.SetReadDeadline(time.Now().Add(time.Second))
	for {
		_, _, err := first.ReadMessage()
		if err != nil {
			break
		}
	}
}
