package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/room"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second

	// localFrameBuffer bounds the per-connection queue for frames the
	// read loop produces (errors, greeting). Matches the drop-on-full
	// policy of room subscriber channels.
	localFrameBuffer = 16
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now; plug a proper checker when auth
		// is added.
		return true
	},
}

type inboundFrame struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

type outboundFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Sender    string `json:"sender,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// chatSocket attaches a websocket client to a room: room events flow
// out as frames, chat_message frames flow in as turns.
//
// The conn has exactly one writing goroutine, writeLoop. Everything
// outbound, room events, pings, error frames, the greeting, funnels
// through it; the read loop never touches the conn's write side.
func (s *Server) chatSocket(c *gin.Context) {
	rm, err := s.hub.Room(c.Request.Context(), c.Param("id"))
	if errors.Is(err, core.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS %s] upgrade failed: %v", rm.ID(), err)
		return
	}

	sub := rm.Subscribe()
	local := make(chan outboundFrame, localFrameBuffer)
	done := make(chan struct{})

	go writeLoop(ws, sub, local, done)

	// send queues a frame for the writer without ever blocking the
	// read loop; if the writer is gone or lagging the frame is lost
	// with the connection anyway.
	send := func(frame outboundFrame) {
		select {
		case local <- frame:
		default:
			log.Printf("[WS %s] outbound queue full, dropping %s frame", rm.ID(), frame.Type)
		}
	}

	send(outboundFrame{Type: "connection_established", Message: "Connected to chat"})

	// Read loop: one goroutine per client, turns run inline so a
	// single client cannot interleave its own turns.
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			break
		}
		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			send(outboundFrame{Type: "error", Error: "malformed frame"})
			continue
		}
		switch frame.Type {
		case "chat_message":
			if _, err := rm.SubmitMessage(c.Request.Context(), frame.Message); err != nil {
				send(outboundFrame{Type: "error", Error: err.Error()})
			}
		case "typing":
			// Relay user typing state to the other subscribers.
			rm.Typing(frame.IsTyping)
		default:
			send(outboundFrame{Type: "error", Error: "unknown frame type"})
		}
	}

	close(done)
	rm.Unsubscribe(sub)
	_ = ws.Close()
}

// writeLoop is the conn's sole writer: it drains room events and
// locally generated frames, and keeps the connection alive with
// pings.
func writeLoop(ws *websocket.Conn, sub *room.Subscriber, local <-chan outboundFrame, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(frame outboundFrame) bool {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		return ws.WriteJSON(frame) == nil
	}

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if !write(toFrame(ev)) {
				return
			}
		case frame := <-local:
			if !write(frame) {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func toFrame(ev room.Event) outboundFrame {
	frame := outboundFrame{
		Type:     string(ev.Type),
		Sender:   ev.Sender,
		IsTyping: ev.IsTyping,
		Failed:   ev.Failed,
	}
	if !ev.Timestamp.IsZero() {
		frame.Timestamp = ev.Timestamp.Format(time.RFC3339Nano)
	}
	if ev.Type == room.EventChunk {
		frame.Chunk = ev.Text
	} else {
		frame.Message = ev.Text
	}
	return frame
}
