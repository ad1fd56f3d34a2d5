package classroom

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goevery/classcast/internal/metrics"
	"github.com/goevery/classcast/internal/notification"
	"github.com/goevery/classcast/internal/transport"
	"go.uber.org/zap"
)

const roomPrefix = "class-"

func RoomName(classId int) string {
	return roomPrefix + strconv.Itoa(classId)
}

// ClassIdOf reverses RoomName.
func ClassIdOf(room string) (int, bool) {
	if !strings.HasPrefix(room, roomPrefix) {
		return 0, false
	}

	classId, err := strconv.Atoi(strings.TrimPrefix(room, roomPrefix))
	if err != nil {
		return 0, false
	}

	return classId, true
}

// Policy decides what a new class list does to the rooms a connection
// already belongs to.
type Policy string

const (
	// PolicyReplace leaves class rooms missing from the new list.
	PolicyReplace Policy = "replace"
	// PolicyAdditive only ever joins.
	PolicyAdditive Policy = "additive"
)

func ParsePolicy(value string) (Policy, error) {
	switch Policy(value) {
	case PolicyReplace, PolicyAdditive:
		return Policy(value), nil
	default:
		return "", fmt.Errorf("unknown subscription policy %q", value)
	}
}

// Membership is the part of the transport hub the router drives.
type Membership interface {
	Join(room string, connectionId string) error
	Leave(room string, connectionId string)
	Rooms(connectionId string) []string
	Broadcast(room string, message transport.Message) int
}

type Router struct {
	logger     *zap.Logger
	membership Membership
	observer   metrics.Observer
	policy     Policy
	now        func() time.Time

	mu                sync.RWMutex
	classesByIdentity map[string][]int
}

func NewRouter(
	logger *zap.Logger,
	membership Membership,
	observer metrics.Observer,
	policy Policy,
) *Router {
	return &Router{
		logger:            logger,
		membership:        membership,
		observer:          observer,
		policy:            policy,
		now:               time.Now,
		classesByIdentity: make(map[string][]int),
	}
}

func (r *Router) Policy() Policy {
	return r.policy
}

// Subscribe joins connectionId to the room of every class in classIds and
// returns the class rooms the connection belongs to afterwards. An empty
// class list changes nothing.
func (r *Router) Subscribe(connectionId string, identity string, classIds []int) []string {
	if len(classIds) == 0 {
		return r.classRooms(connectionId)
	}

	if r.policy == PolicyReplace {
		for _, room := range r.membership.Rooms(connectionId) {
			classId, ok := ClassIdOf(room)
			if !ok || slices.Contains(classIds, classId) {
				continue
			}

			r.membership.Leave(room, connectionId)
		}
	}

	joined := 0
	for _, classId := range classIds {
		room := RoomName(classId)

		if err := r.membership.Join(room, connectionId); err != nil {
			r.logger.Warn("failed to join class room",
				zap.String("connectionId", connectionId),
				zap.String("room", room),
				zap.Error(err))
			continue
		}
		joined++
	}

	if identity != "" && joined > 0 {
		r.recordClasses(identity, classIds)
	}

	return r.classRooms(connectionId)
}

// ClassesOf returns the class ids last recorded for identity.
func (r *Router) ClassesOf(identity string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.classesByIdentity[identity])
}

// PublishToRoom broadcasts a notification of the given kind to every
// connection in the class room.
func (r *Router) PublishToRoom(classId int, kind notification.Kind, data any) {
	payload := notification.New(kind, data, r.now())

	r.broadcast(RoomName(classId), transport.NewMessage(kind.Event(), payload))
}

// PublishToManyRooms broadcasts data unchanged to each class room in turn.
func (r *Router) PublishToManyRooms(classIds []int, event string, data any) {
	for _, classId := range classIds {
		r.broadcast(RoomName(classId), transport.NewMessage(event, data))
	}
}

func (r *Router) broadcast(room string, message transport.Message) {
	delivered := r.membership.Broadcast(room, message)
	if delivered == 0 {
		r.observer.Missed(metrics.ReasonEmptyRoom, message.Event, room)

		return
	}

	r.observer.Delivered(message.Event, delivered)
}

func (r *Router) recordClasses(identity string, classIds []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var merged []int
	if r.policy == PolicyAdditive {
		merged = slices.Clone(r.classesByIdentity[identity])
	}

	r.classesByIdentity[identity] = NormalizeClassIds(append(merged, classIds...))
}

// NormalizeClassIds returns classIds sorted with duplicates removed. It
// never returns nil.
func NormalizeClassIds(classIds []int) []int {
	normalized := make([]int, 0, len(classIds))
	normalized = append(normalized, classIds...)

	slices.Sort(normalized)

	return slices.Compact(normalized)
}

func (r *Router) classRooms(connectionId string) []string {
	var classIds []int
	for _, room := range r.membership.Rooms(connectionId) {
		if classId, ok := ClassIdOf(room); ok {
			classIds = append(classIds, classId)
		}
	}
	slices.Sort(classIds)

	rooms := make([]string, 0, len(classIds))
	for _, classId := range classIds {
		rooms = append(rooms, RoomName(classId))
	}

	return rooms
}
