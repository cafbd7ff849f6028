package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkforge/spark-os/backend/internal/middleware"
	"github.com/sparkforge/spark-os/backend/internal/model/persona"
	"github.com/sparkforge/spark-os/backend/internal/service/ai"
	chatservice "github.com/sparkforge/spark-os/backend/internal/service/chat"
	"github.com/sparkforge/spark-os/backend/internal/service/orchestrator"
)

type frame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := persona.NewMemoryStore(persona.Seed())
	gw := ai.NewGateway(ai.CompleterFunc(func(context.Context, ai.Request) (string, error) {
		return "Tell me more.", nil
	}), ai.DefaultGatewayOptions(), nil)
	orch := orchestrator.New(store, chatservice.NewService(store, nil), gw, nil)

	r := chi.NewRouter()
	r.Use(middleware.Session)
	New(orch, []string{"http://localhost:3000"}, nil).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialWith(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func dial(t *testing.T) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Cookie", middleware.SessionCookie+"=ws-test")
	conn, _, err := dialWith(t, newServer(t), header)
	require.NoError(t, err)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestSocketTurnWithEscalation(t *testing.T) {
	conn := dial(t)
	assert.Equal(t, "connected", read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Inbound{Type: "turn", Message: "what is 1/3 + 1/3?"}))
	reply := read(t, conn)
	require.Equal(t, "reply", reply.Type)
	var out orchestrator.Outcome
	require.NoError(t, json.Unmarshal(reply.Data, &out))
	assert.Equal(t, persona.TutorID, out.PersonaID)

	require.NoError(t, conn.WriteJSON(Inbound{Type: "turn", Message: "please don't tell, he hit me"}))
	routing := read(t, conn)
	assert.Equal(t, "routing", routing.Type)
	reply = read(t, conn)
	require.Equal(t, "reply", reply.Type)
	require.NoError(t, json.Unmarshal(reply.Data, &out))
	assert.Equal(t, persona.CrisisID, out.PersonaID)
	assert.Equal(t, 1, out.EscalationCount)
}

func TestSocketSwitchAndErrors(t *testing.T) {
	conn := dial(t)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(Inbound{Type: "switch", PersonaID: "pirate"}))
	assert.Equal(t, "error", read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Inbound{Type: "switch", PersonaID: persona.AdminID}))
	switched := read(t, conn)
	assert.Equal(t, "switched", switched.Type)
	assert.Contains(t, string(switched.Data), "Teacher Admin")

	require.NoError(t, conn.WriteJSON(Inbound{Type: "turn", Message: ""}))
	assert.Equal(t, "error", read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Inbound{Type: "dance"}))
	assert.Equal(t, "error", read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Inbound{Type: "reset"}))
	assert.Equal(t, "reset", read(t, conn).Type)
}

func TestSocketHandshakeCarriesMintedCookie(t *testing.T) {
	conn, resp, err := dialWith(t, newServer(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "connected", read(t, conn).Type)

	var key string
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			key = c.Value
		}
	}
	require.NotEmpty(t, key)
}

func TestSocketOriginCheck(t *testing.T) {
	srv := newServer(t)

	header := http.Header{}
	header.Set("Origin", "https://evil.test")
	_, resp, err := dialWith(t, srv, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:3000")
	conn, _, err := dialWith(t, srv, header)
	require.NoError(t, err)
	assert.Equal(t, "connected", read(t, conn).Type)
}
