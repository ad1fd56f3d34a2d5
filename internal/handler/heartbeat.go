package handler

import (
	"context"
	"time"

	"github.com/goevery/classcast/internal/transport"
)

// HeartbeatResponse lets a client check it is still registered after a
// network blip.
type HeartbeatResponse struct {
	Timestamp    time.Time `json:"timestamp"`
	ConnectionId string    `json:"connectionId,omitempty"`
	Identity     string    `json:"identity,omitempty"`
}

type HeartbeatHandlerInterface interface {
	Handle(ctx context.Context) HeartbeatResponse
}

// IdentityResolver reports the identity whose presence entry points at a
// connection.
type IdentityResolver interface {
	IdentityOf(connectionId string) (string, bool)
}

type HeartbeatHandler struct {
	identities IdentityResolver
	now        func() time.Time
}

func NewHeartbeatHandler(identities IdentityResolver) *HeartbeatHandler {
	return &HeartbeatHandler{
		identities: identities,
		now:        time.Now,
	}
}

func (h *HeartbeatHandler) Handle(ctx context.Context) HeartbeatResponse {
	response := HeartbeatResponse{
		Timestamp: h.now().UTC(),
	}

	if connection, ok := transport.ConnectionFromContext(ctx); ok {
		response.ConnectionId = connection.Id
		response.Identity, _ = h.identities.IdentityOf(connection.Id)
	}

	return response
}
