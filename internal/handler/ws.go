package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/wagate/wagate/internal/relay"
)

const (
	wsWriteWait = 10 * time.Second
	wsMaxFrame  = 4 << 10 // inbound frames carry only the auth message
)

// WSHandler upgrades dashboard connections and bridges them to the
// relay hub. The socket is anonymous until the client sends an
// authenticate frame; events only start flowing after the relay
// accepts the token.
type WSHandler struct {
	Relay    *relay.Relay
	upgrader websocket.Upgrader
}

func NewWSHandler(r *relay.Relay) *WSHandler {
	return &WSHandler{
		Relay: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers enforce same-origin for the page itself; the
			// socket carries no credentials until the token frame.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// inbound is the only client-to-server frame shape: an authenticate
// request carrying the bearer token.
type inbound struct {
	Event string `json:"event"`
	Data  struct {
		Token string `json:"token"`
	} `json:"data"`
}

// Serve runs one connection. A writer goroutine drains the member's
// event stream; the read loop handles authenticate frames and detects
// disconnects. OnDisconnect closes the stream, which ends the writer.
func (h *WSHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // Upgrade already wrote the error response
	}

	memberID, events := h.Relay.OnConnect()
	conn.SetReadLimit(wsMaxFrame)

	go func() {
		for ev := range events {
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				break
			}
		}
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("ws: member %s sent malformed frame", memberID)
			continue
		}
		if msg.Event == "authenticate" {
			h.Relay.Authenticate(memberID, msg.Data.Token)
		}
	}

	h.Relay.OnDisconnect(memberID)
	return nil
}
