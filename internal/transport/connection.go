package transport

import (
	"context"
)

type Connection struct {
	Id       string
	ClientIp string
	Send     chan Message
}

func NewConnection(id string, clientIp string, sendBufferSize int) *Connection {
	return &Connection{
		Id:       id,
		ClientIp: clientIp,
		Send:     make(chan Message, sendBufferSize),
	}
}

type contextKey string

const connectionKey contextKey = "connection"

func WithConnection(ctx context.Context, conn *Connection) context.Context {
	return context.WithValue(ctx, connectionKey, conn)
}

func ConnectionFromContext(ctx context.Context) (*Connection, bool) {
	conn, ok := ctx.Value(connectionKey).(*Connection)

	return conn, ok
}
