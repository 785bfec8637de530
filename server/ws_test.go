package server_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type wsFrame struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Chunk    string `json:"chunk"`
	Sender   string `json:"sender"`
	IsTyping bool   `json:"is_typing"`
	Failed   bool   `json:"failed"`
	Error    string `json:"error"`
}

func dialChat(t *testing.T, ts *httptest.Server, conversationID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat/" + conversationID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) wsFrame {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame wsFrame
	if err := ws.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

// Interleaves malformed frames with a streamed turn on one socket.
// Error frames and room events share the single connection writer, so
// everything must arrive intact, in a consistent per-source order.
func TestChatSocket_TurnWithInterleavedBadFrames(t *testing.T) {
	r, _ := newTestServer(t)
	ts := httptest.NewServer(r)
	defer ts.Close()

	id := createConversation(t, r, "socket chat")
	ws := dialChat(t, ts, id)

	if frame := readFrame(t, ws); frame.Type != "connection_established" {
		t.Fatalf("greeting frame = %+v", frame)
	}

	// Queue two bad frames and a turn without waiting in between; the
	// server must answer all three without corrupting the stream.
	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteJSON(map[string]string{"type": "bogus"}); err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteJSON(map[string]string{"type": "chat_message", "message": "hello"}); err != nil {
		t.Fatal(err)
	}

	var (
		errorFrames int
		sawMessage  bool
		sawTyping   bool
		chunks      []string
		complete    wsFrame
	)
	for {
		frame := readFrame(t, ws)
		switch frame.Type {
		case "error":
			errorFrames++
		case "chat_message":
			sawMessage = true
		case "ai_typing":
			if frame.IsTyping {
				sawTyping = true
			}
		case "ai_response_chunk":
			chunks = append(chunks, frame.Chunk)
		case "ai_response_complete":
			complete = frame
		}
		if complete.Type != "" && errorFrames == 2 {
			break
		}
	}

	if !sawMessage {
		t.Error("user message never echoed")
	}
	if !sawTyping {
		t.Error("typing indicator never sent")
	}
	if complete.Failed {
		t.Errorf("turn reported failed: %+v", complete)
	}
	if got := strings.Join(chunks, ""); got != complete.Message {
		t.Errorf("chunks accumulate to %q, turn complete says %q", got, complete.Message)
	}
	if complete.Message != "Sure, happy to help." {
		t.Errorf("reply = %q", complete.Message)
	}
}

func TestChatSocket_UnknownConversation(t *testing.T) {
	r, _ := newTestServer(t)
	ts := httptest.NewServer(r)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial to unknown conversation succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake rejection, got %+v", resp)
	}
}

func TestChatSocket_SubmitErrorReported(t *testing.T) {
	r, _ := newTestServer(t)
	ts := httptest.NewServer(r)
	defer ts.Close()

	id := createConversation(t, r, "validation over socket")
	ws := dialChat(t, ts, id)

	if frame := readFrame(t, ws); frame.Type != "connection_established" {
		t.Fatalf("greeting frame = %+v", frame)
	}

	if err := ws.WriteJSON(map[string]string{"type": "chat_message", "message": "   "}); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, ws)
	if frame.Type != "error" || frame.Error == "" {
		t.Fatalf("expected error frame, got %+v", frame)
	}
}
