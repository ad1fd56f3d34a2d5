package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/goevery/classcast/internal/classroom"
	"github.com/goevery/classcast/internal/handler"
	"github.com/goevery/classcast/internal/ierr"
	"github.com/goevery/classcast/internal/metrics"
	"github.com/goevery/classcast/internal/notification"
	"github.com/goevery/classcast/internal/presence"
	"github.com/goevery/classcast/internal/realtime"
	"github.com/goevery/classcast/internal/rpc"
	"github.com/goevery/classcast/internal/transport"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService() (*realtime.Service, transport.Hub) {
	logger := zap.NewNop()
	recorder := metrics.NewRecorder(logger)
	hub := transport.NewInMemoryHub(logger, recorder)

	service := realtime.NewService(
		logger,
		hub,
		presence.NewRegistry(hub, recorder),
		classroom.NewRouter(logger, hub, recorder, classroom.PolicyReplace),
		recorder,
	)

	return service, hub
}

func newTestWebSocketServer(t *testing.T) (*realtime.Service, string) {
	logger := zap.NewNop()
	service, hub := newTestService()
	validator := handler.NewValidator()

	router := NewRouter(
		logger,
		handler.NewHeartbeatHandler(service),
		handler.NewRegisterHandler(validator, service),
		handler.NewRegisterStudentClassesHandler(validator, service),
	)
	wsServer := NewWebSocketServer(logger, &websocket.Upgrader{}, hub, service, router, 16)

	mainRouter := mux.NewRouter()
	wsServer.Register(mainRouter)

	server := httptest.NewServer(mainRouter)
	t.Cleanup(server.Close)

	u, _ := url.Parse(server.URL)
	u.Scheme = "ws"
	u.Path = "/websocket"

	return service, u.String()
}

func readEvent(t *testing.T, conn *websocket.Conn, target any) string {
	t.Helper()

	var message rpc.Request
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&message))
	require.NotNil(t, message.Params)
	require.NoError(t, json.Unmarshal(*message.Params, target))

	return message.Method
}

func TestWebSocketServer(t *testing.T) {
	service, wsURL := newTestWebSocketServer(t)

	t.Run("successful flow", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()

		err = conn.WriteJSON(json.RawMessage(`{"id":"1","method":"register","params":{"userEmail":"s@x.com","role":"student"}}`))
		assert.NoError(t, err)

		var registered realtime.Registered
		assert.Equal(t, EventRegistered, readEvent(t, conn, &registered))
		assert.Equal(t, realtime.Registered{Success: true, Message: "Registered as s@x.com"}, registered)

		err = conn.WriteJSON(json.RawMessage(`{"id":"2","method":"registerStudentClasses","params":{"studentEmail":"s@x.com","classIds":[3,1]}}`))
		assert.NoError(t, err)

		var classesRegistered realtime.ClassesRegistered
		assert.Equal(t, EventClassesRegistered, readEvent(t, conn, &classesRegistered))
		assert.True(t, classesRegistered.Success)
		assert.Equal(t, []int{1, 3}, classesRegistered.ClassIds)
		assert.Equal(t, []string{"class-1", "class-3"}, classesRegistered.Rooms)

		service.EmitNewLectureNote(3, map[string]any{"title": "Ch1"})

		var payload notification.Payload
		assert.Equal(t, notification.EventNewLectureNote, readEvent(t, conn, &payload))
		assert.Equal(t, notification.KindLectureNote, payload.Type)
		assert.Equal(t, "New lecture note: Ch1", payload.Message)
		assert.Equal(t, map[string]any{"title": "Ch1"}, payload.Data)
		assert.False(t, payload.Timestamp.IsZero())

		service.EmitToStudent("s@x.com", "gradePosted", map[string]any{"grade": "A"})

		var direct map[string]any
		assert.Equal(t, "gradePosted", readEvent(t, conn, &direct))
		assert.Equal(t, "A", direct["grade"])
	})

	t.Run("heartbeat", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()

		err = conn.WriteJSON(json.RawMessage(`{"id":"1","method":"heartbeat"}`))
		assert.NoError(t, err)

		var response handler.HeartbeatResponse
		assert.Equal(t, EventHeartbeat, readEvent(t, conn, &response))
		assert.False(t, response.Timestamp.IsZero())
		assert.NotEmpty(t, response.ConnectionId)
	})

	t.Run("missing identity", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()

		err = conn.WriteJSON(json.RawMessage(`{"id":"7","method":"register","params":{"role":"student"}}`))
		assert.NoError(t, err)

		var response rpc.Response
		assert.Equal(t, rpc.MethodError, readEvent(t, conn, &response))
		assert.Equal(t, "7", response.RequestId)
		require.True(t, response.IsFailure())
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, response.Error.Code)
	})

	t.Run("unknown method", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()

		err = conn.WriteJSON(json.RawMessage(`{"id":"8","method":"subscribe","params":{}}`))
		assert.NoError(t, err)

		var response rpc.Response
		assert.Equal(t, rpc.MethodError, readEvent(t, conn, &response))
		assert.Equal(t, ierr.ErrorCodeNotFound, response.Error.Code)
	})

	t.Run("invalid message", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()

		err = conn.WriteMessage(websocket.TextMessage, []byte("invalid-json"))
		assert.NoError(t, err)

		conn.SetReadDeadline(time.Now().Add(time.Second * 10))
		_, _, err = conn.ReadMessage()
		assert.Error(t, err)
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived))
	})
}

func TestWebSocketServer_Disconnect(t *testing.T) {
	service, wsURL := newTestWebSocketServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	err = conn.WriteJSON(json.RawMessage(`{"id":"1","method":"register","params":{"userEmail":"gone@x.com"}}`))
	assert.NoError(t, err)

	var registered realtime.Registered
	readEvent(t, conn, &registered)
	assert.Equal(t, 1, service.Stats().Identities)

	conn.Close()

	assert.Eventually(t, func() bool {
		stats := service.Stats()
		return stats.Identities == 0 && stats.Hub.Connections == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketServer_IdentityTakeover(t *testing.T) {
	_, wsURL := newTestWebSocketServer(t)

	register := func(conn *websocket.Conn) {
		err := conn.WriteJSON(json.RawMessage(`{"id":"1","method":"register","params":{"userEmail":"a@x.com"}}`))
		require.NoError(t, err)

		var registered realtime.Registered
		require.Equal(t, EventRegistered, readEvent(t, conn, &registered))
	}
	heartbeat := func(conn *websocket.Conn) handler.HeartbeatResponse {
		err := conn.WriteJSON(json.RawMessage(`{"id":"2","method":"heartbeat"}`))
		require.NoError(t, err)

		var response handler.HeartbeatResponse
		require.Equal(t, EventHeartbeat, readEvent(t, conn, &response))

		return response
	}

	a, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer a.Close()
	b, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer b.Close()

	register(a)
	assert.Equal(t, "a@x.com", heartbeat(a).Identity)

	register(b)

	assert.Empty(t, heartbeat(a).Identity)
	assert.Equal(t, "a@x.com", heartbeat(b).Identity)
}

func TestOriginChecker(t *testing.T) {
	request := func(origin string) *http.Request {
		r := httptest.NewRequest("GET", "/websocket", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}

		return r
	}

	t.Run("any origin when unconfigured", func(t *testing.T) {
		assert.True(t, NewOriginChecker(nil).Check(request("https://evil.example")))
	})

	t.Run("allow list", func(t *testing.T) {
		checker := NewOriginChecker([]string{"https://school.example"})

		assert.True(t, checker.Check(request("https://school.example")))
		assert.True(t, checker.Check(request("")))
		assert.False(t, checker.Check(request("https://evil.example")))
	})
}

func TestClientIp(t *testing.T) {
	r := httptest.NewRequest("GET", "/websocket", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIp(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIp(r))
}
