package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagate/wagate/internal/relay"
	"github.com/wagate/wagate/internal/utils"
)

func newHub() *relay.Relay {
	return relay.New(func(token string) (utils.Claims, error) {
		return utils.ParseAccessToken(testSecret, token)
	})
}

func wsServer(t *testing.T, hub *relay.Relay) *httptest.Server {
	t.Helper()
	e := echo.New()
	e.GET("/api/ws", NewWSHandler(hub).Serve)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) relay.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev relay.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWS_AuthenticateThenReceive(t *testing.T) {
	hub := newHub()
	srv := wsServer(t, hub)
	conn := dialWS(t, srv)

	token, err := utils.NewAccessToken(testSecret, "u1", "a@b.c", "user", 1)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": "authenticate",
		"data":  map[string]string{"token": token},
	}))

	ev := readEvent(t, conn)
	assert.Equal(t, relay.EventAuthenticated, ev.Event)

	hub.Broadcast("u1", "qr_code", map[string]string{"qr": "data"})
	ev = readEvent(t, conn)
	assert.Equal(t, "qr_code", ev.Event)
}

func TestWS_BadTokenGetsAuthError(t *testing.T) {
	hub := newHub()
	srv := wsServer(t, hub)
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": "authenticate",
		"data":  map[string]string{"token": "garbage"},
	}))

	ev := readEvent(t, conn)
	assert.Equal(t, relay.EventAuthError, ev.Event)
}

func TestWSEvent_BroadcastsToGroup(t *testing.T) {
	hub := newHub()
	h := NewWSEventHandler(hub, "")

	id, events := hub.OnConnect()
	token, err := utils.NewAccessToken(testSecret, "u7", "x@b.c", "user", 1)
	require.NoError(t, err)
	require.True(t, hub.Authenticate(id, token))
	<-events // drop the authenticated frame

	rec := doJSON(t, h.Receive, http.MethodPost, "/api/internal/ws-event",
		`{"event":"whatsapp_connected","user_id":"u7","data":{"phone":"123"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case ev := <-events:
		assert.Equal(t, "whatsapp_connected", ev.Event)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestWSEvent_RejectsBadSecret(t *testing.T) {
	h := NewWSEventHandler(newHub(), "s3cret")

	rec := doJSON(t, h.Receive, http.MethodPost, "/api/internal/ws-event",
		`{"event":"qr_code","user_id":"u1","data":null}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h.Receive, http.MethodPost, "/api/internal/ws-event",
		`{"event":"qr_code","user_id":"u1","data":null}`,
		func(c echo.Context) { c.Request().Header.Set("X-Internal-Secret", "s3cret") })
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWSEvent_MissingFields(t *testing.T) {
	h := NewWSEventHandler(newHub(), "")

	rec := doJSON(t, h.Receive, http.MethodPost, "/api/internal/ws-event",
		`{"event":"","user_id":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
