package transport

import (
	"errors"
	"sort"
	"sync"

	"github.com/goevery/classcast/internal/ierr"
	"github.com/goevery/classcast/internal/metrics"
	"go.uber.org/zap"
)

// Hub owns live connections and their room memberships. It is the
// authoritative source of who is in which room.
type Hub interface {
	Connect(connection *Connection)
	Disconnect(connectionId string)
	Join(room string, connectionId string) error
	Leave(room string, connectionId string)
	Rooms(connectionId string) []string
	Emit(connectionId string, message Message) bool
	Broadcast(room string, message Message) int
	Stats() HubStats
}

type HubStats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

type InMemoryHub struct {
	logger   *zap.Logger
	observer metrics.Observer
	mu       sync.RWMutex

	connections       map[string]*Connection
	connectionsByRoom map[string]map[string]struct{}
	roomsByConnection map[string]map[string]struct{}
}

func NewInMemoryHub(
	logger *zap.Logger,
	observer metrics.Observer,
) *InMemoryHub {
	return &InMemoryHub{
		logger:            logger,
		observer:          observer,
		connections:       make(map[string]*Connection),
		connectionsByRoom: make(map[string]map[string]struct{}),
		roomsByConnection: make(map[string]map[string]struct{}),
	}
}

func (h *InMemoryHub) Connect(connection *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[connection.Id]; ok {
		return
	}

	h.connections[connection.Id] = connection
	h.roomsByConnection[connection.Id] = make(map[string]struct{})
}

func (h *InMemoryHub) Disconnect(connectionId string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.disconnectLocked(connectionId)
}

func (h *InMemoryHub) Join(room string, connectionId string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	connectionRooms, ok := h.roomsByConnection[connectionId]
	if !ok {
		return ierr.New(ierr.ErrorCodeNotFound, errors.New("connection not found"))
	}

	if _, ok := h.connectionsByRoom[room]; !ok {
		h.connectionsByRoom[room] = make(map[string]struct{})
	}

	h.connectionsByRoom[room][connectionId] = struct{}{}
	connectionRooms[room] = struct{}{}

	return nil
}

func (h *InMemoryHub) Leave(room string, connectionId string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	connectionRooms, ok := h.roomsByConnection[connectionId]
	if !ok {
		return
	}

	if _, ok := connectionRooms[room]; !ok {
		return
	}

	delete(connectionRooms, room)

	roomConnections, ok := h.connectionsByRoom[room]
	if !ok {
		panic("inconsistent state: room not found in connectionsByRoom")
	}

	delete(roomConnections, connectionId)
	if len(roomConnections) == 0 {
		delete(h.connectionsByRoom, room)
	}
}

func (h *InMemoryHub) Rooms(connectionId string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	connectionRooms := h.roomsByConnection[connectionId]

	rooms := make([]string, 0, len(connectionRooms))
	for room := range connectionRooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)

	return rooms
}

func (h *InMemoryHub) Emit(connectionId string, message Message) bool {
	h.mu.RLock()

	connection, ok := h.connections[connectionId]
	if !ok {
		h.mu.RUnlock()
		h.observer.Missed(metrics.ReasonConnectionGone, message.Event, connectionId)

		return false
	}

	delivered := h.trySend(connection, message)

	h.mu.RUnlock()

	if !delivered {
		h.Disconnect(connectionId)
	}

	return delivered
}

func (h *InMemoryHub) Broadcast(room string, message Message) int {
	h.mu.RLock()

	connectionIds, ok := h.connectionsByRoom[room]
	if !ok {
		h.mu.RUnlock()

		return 0
	}

	delivered := 0
	var staleConnectionIds []string

	for connectionId := range connectionIds {
		connection, ok := h.connections[connectionId]
		if !ok {
			continue
		}

		if h.trySend(connection, message) {
			delivered++
		} else {
			staleConnectionIds = append(staleConnectionIds, connectionId)
		}
	}

	h.mu.RUnlock()

	if len(staleConnectionIds) == 0 {
		return delivered
	}

	h.mu.Lock()

	for _, connectionId := range staleConnectionIds {
		h.disconnectLocked(connectionId)
	}

	h.mu.Unlock()

	return delivered
}

func (h *InMemoryHub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HubStats{
		Connections: len(h.connections),
		Rooms:       len(h.connectionsByRoom),
	}
}

// IMPORTANT: It must be called only when a read or write lock is held, so
// that the send channel cannot be closed concurrently.
func (h *InMemoryHub) trySend(connection *Connection, message Message) bool {
	select {
	case connection.Send <- message:
		return true
	default:
		h.logger.Warn("connection send channel is full, closing connection",
			zap.String("connectionId", connection.Id))
		h.observer.Missed(metrics.ReasonSendBufferFull, message.Event, connection.Id)

		return false
	}
}

// IMPORTANT: It must be called only when a write lock is already held.
func (h *InMemoryHub) disconnectLocked(connectionId string) {
	connection, ok := h.connections[connectionId]
	if !ok {
		return
	}

	connectionRooms, ok := h.roomsByConnection[connectionId]
	if !ok {
		panic("inconsistent state: connection not found in roomsByConnection")
	}

	for room := range connectionRooms {
		roomConnections, ok := h.connectionsByRoom[room]
		if !ok {
			panic("inconsistent state: room not found in connectionsByRoom")
		}

		delete(roomConnections, connectionId)
		if len(roomConnections) == 0 {
			delete(h.connectionsByRoom, room)
		}
	}

	delete(h.roomsByConnection, connectionId)
	delete(h.connections, connectionId)
	close(connection.Send)
}
