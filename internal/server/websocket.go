package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goevery/classcast/internal/rpc"
	"github.com/goevery/classcast/internal/transport"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 16 * 1024
)

// Lifecycle is notified when a client transport session opens and closes.
type Lifecycle interface {
	OnConnect(connection *transport.Connection)
	OnDisconnect(connectionId string)
}

type WebSocketServer struct {
	logger         *zap.Logger
	upgrader       *websocket.Upgrader
	hub            transport.Hub
	lifecycle      Lifecycle
	router         *Router
	sendBufferSize int
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	hub transport.Hub,
	lifecycle Lifecycle,
	router *Router,
	sendBufferSize int,
) *WebSocketServer {
	return &WebSocketServer{
		logger,
		upgrader,
		hub,
		lifecycle,
		router,
		sendBufferSize,
	}
}

func (s *WebSocketServer) Register(router *mux.Router) {
	router.HandleFunc("/websocket", s.serve)
}

func (s *WebSocketServer) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connection := transport.NewConnection(uuid.New().String(), clientIp(r), s.sendBufferSize)
	logger := s.logger.With(
		zap.String("connectionId", connection.Id),
		zap.String("clientIp", connection.ClientIp))

	logger.Info("websocket connection established")

	s.lifecycle.OnConnect(connection)

	writerDone := make(chan struct{})
	go s.writeLoop(logger, conn, connection, writerDone)

	s.readLoop(r, logger, conn, connection)

	s.lifecycle.OnDisconnect(connection.Id)
	<-writerDone

	logger.Info("websocket connection closed")
}

func (s *WebSocketServer) readLoop(
	r *http.Request,
	logger *zap.Logger,
	conn *websocket.Conn,
	connection *transport.Connection,
) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := transport.WithConnection(r.Context(), connection)

	for {
		var request rpc.Request
		err := conn.ReadJSON(&request)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("failed to read message", zap.Error(err))
			}

			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		logger.Debug("message received",
			zap.String("method", request.Method),
			zap.String("requestId", request.Id))

		reply := s.router.RouteRequest(ctx, request)
		if !s.hub.Emit(connection.Id, reply) {
			return
		}
	}
}

// writeLoop is the only goroutine writing to conn. It ends when the hub
// closes the connection's send channel or a write fails.
func (s *WebSocketServer) writeLoop(
	logger *zap.Logger,
	conn *websocket.Conn,
	connection *transport.Connection,
	done chan<- struct{},
) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	for {
		select {
		case message, ok := <-connection.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			notification, err := rpc.NewNotification(message.Event, message.Payload)
			if err != nil {
				logger.Error("failed to encode message",
					zap.String("event", message.Event),
					zap.Error(err))
				continue
			}

			if err := conn.WriteJSON(notification); err != nil {
				logger.Debug("failed to write message", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func clientIp(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

type OriginChecker struct {
	allowedOrigins []string
}

// NewOriginChecker accepts any origin when allowedOrigins is empty.
func NewOriginChecker(allowedOrigins []string) *OriginChecker {
	return &OriginChecker{
		allowedOrigins,
	}
}

func (c *OriginChecker) Check(r *http.Request) bool {
	if len(c.allowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range c.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}

	return false
}
