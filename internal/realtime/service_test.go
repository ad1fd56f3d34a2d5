package realtime

import (
	"testing"

	"github.com/goevery/classcast/internal/classroom"
	"github.com/goevery/classcast/internal/metrics"
	"github.com/goevery/classcast/internal/notification"
	"github.com/goevery/classcast/internal/presence"
	"github.com/goevery/classcast/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(policy classroom.Policy) *Service {
	logger := zap.NewNop()
	recorder := metrics.NewRecorder(logger)
	hub := transport.NewInMemoryHub(logger, recorder)

	return NewService(
		logger,
		hub,
		presence.NewRegistry(hub, recorder),
		classroom.NewRouter(logger, hub, recorder, policy),
		recorder,
	)
}

func open(s *Service, id string) *transport.Connection {
	connection := transport.NewConnection(id, "127.0.0.1", 16)
	s.OnConnect(connection)

	return connection
}

func received(connection *transport.Connection) []transport.Message {
	var messages []transport.Message
	for {
		select {
		case message, ok := <-connection.Send:
			if !ok {
				return messages
			}
			messages = append(messages, message)
		default:
			return messages
		}
	}
}

func TestService_Register(t *testing.T) {
	service := newTestService(classroom.PolicyReplace)
	connection := open(service, "c1")

	ack := service.Register(connection, "a@x.com", "student")

	assert.Equal(t, Registered{Success: true, Message: "Registered as a@x.com"}, ack)
	identity, ok := service.IdentityOf("c1")
	assert.True(t, ok)
	assert.Equal(t, "a@x.com", identity)
	assert.Equal(t, 1, service.Stats().Identities)
}

func TestService_LastWriteWins(t *testing.T) {
	service := newTestService(classroom.PolicyReplace)
	a := open(service, "A")
	b := open(service, "B")

	service.Register(a, "a@x.com", "student")
	service.Register(b, "a@x.com", "student")

	_, ok := service.IdentityOf("A")
	assert.False(t, ok)
	identity, _ := service.IdentityOf("B")
	assert.Equal(t, "a@x.com", identity)

	service.EmitToStudent("a@x.com", "ping", map[string]any{})

	assert.Empty(t, received(a))
	messages := received(b)
	require.Len(t, messages, 1)
	assert.Equal(t, "ping", messages[0].Event)

	service.OnDisconnect("A")

	service.EmitToStudent("a@x.com", "ping", map[string]any{})
	assert.Len(t, received(b), 1)
	assert.Equal(t, 1, service.Stats().Identities)
}

func TestService_EmitToUnknownStudent(t *testing.T) {
	service := newTestService(classroom.PolicyReplace)

	assert.NotPanics(t, func() {
		service.EmitToStudent("nobody@x.com", "ping", nil)
	})
	assert.Equal(t, uint64(1), service.Stats().Deliveries.Missed[metrics.ReasonUnknownIdentity])
}

func TestService_EmitToDroppedConnection(t *testing.T) {
	service := newTestService(classroom.PolicyReplace)
	connection := open(service, "c1")
	service.Register(connection, "s@x.com", "student")

	// The hub drops the connection before the lifecycle hook cleans up
	// presence, as it does for a full send buffer.
	service.hub.Disconnect("c1")

	service.EmitToStudent("s@x.com", "ping", nil)

	assert.Equal(t, uint64(1), service.Stats().Deliveries.Missed[metrics.ReasonConnectionGone])
	assert.Zero(t, service.Stats().Deliveries.Delivered)
}

func TestService_OnDisconnect(t *testing.T) {
	service := newTestService(classroom.PolicyReplace)
	connection := open(service, "c1")
	service.Register(connection, "a@x.com", "student")
	service.RegisterStudentClasses(connection, "a@x.com", []int{1})

	service.OnDisconnect("c1")
	assert.NotPanics(t, func() {
		service.OnDisconnect("c1")
	})

	stats := service.Stats()
	assert.Zero(t, stats.Identities)
	assert.Zero(t, stats.Hub.Connections)
	assert.Zero(t, stats.Hub.Rooms)

	_, ok := <-connection.Send
	assert.False(t, ok)
}

func TestService_RegisterStudentClasses(t *testing.T) {
	t.Run("additive", func(t *testing.T) {
		service := newTestService(classroom.PolicyAdditive)
		connection := open(service, "c1")

		service.RegisterStudentClasses(connection, "s@x.com", []int{1, 2})
		ack := service.RegisterStudentClasses(connection, "s@x.com", []int{3})

		assert.Equal(t, ClassesRegistered{
			Success:  true,
			ClassIds: []int{3},
			Rooms:    []string{"class-1", "class-2", "class-3"},
		}, ack)
	})

	t.Run("replace", func(t *testing.T) {
		service := newTestService(classroom.PolicyReplace)
		connection := open(service, "c1")

		service.RegisterStudentClasses(connection, "s@x.com", []int{1, 2})
		ack := service.RegisterStudentClasses(connection, "s@x.com", []int{3})

		assert.Equal(t, []string{"class-3"}, ack.Rooms)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		service := newTestService(classroom.PolicyReplace)
		connection := open(service, "c1")

		ack := service.RegisterStudentClasses(connection, "s@x.com", []int{4, 2, 4, 4})

		assert.Equal(t, []int{2, 4}, ack.ClassIds)
		assert.Equal(t, []string{"class-2", "class-4"}, ack.Rooms)
	})

	t.Run("empty list", func(t *testing.T) {
		service := newTestService(classroom.PolicyReplace)
		connection := open(service, "c1")

		ack := service.RegisterStudentClasses(connection, "s@x.com", nil)

		assert.True(t, ack.Success)
		assert.Equal(t, []int{}, ack.ClassIds)
		assert.Equal(t, []string{}, ack.Rooms)
	})
}

func TestService_Emit(t *testing.T) {
	service := newTestService(classroom.PolicyReplace)
	inOne := open(service, "one")
	inTwo := open(service, "two")
	service.RegisterStudentClasses(inOne, "one@x.com", []int{1})
	service.RegisterStudentClasses(inTwo, "two@x.com", []int{2})

	t.Run("lecture note", func(t *testing.T) {
		service.EmitNewLectureNote(1, map[string]any{"title": "Ch1"})

		messages := received(inOne)
		require.Len(t, messages, 1)
		assert.Equal(t, notification.EventNewLectureNote, messages[0].Event)

		payload := messages[0].Payload.(notification.Payload)
		assert.Equal(t, notification.KindLectureNote, payload.Type)
		assert.Equal(t, "New lecture note: Ch1", payload.Message)
		assert.False(t, payload.Timestamp.IsZero())

		assert.Empty(t, received(inTwo))
	})

	t.Run("announcement", func(t *testing.T) {
		service.EmitNewAnnouncement(2, map[string]any{"title": "No class Friday"})

		messages := received(inTwo)
		require.Len(t, messages, 1)
		assert.Equal(t, notification.EventNewAnnouncement, messages[0].Event)
		assert.Equal(t, "New announcement: No class Friday", messages[0].Payload.(notification.Payload).Message)
		assert.Empty(t, received(inOne))
	})

	t.Run("test and custom", func(t *testing.T) {
		service.EmitNewTest(1, map[string]any{"title": "Quiz"})
		service.EmitNotification(1, map[string]any{"title": "Reminder"})

		messages := received(inOne)
		require.Len(t, messages, 2)
		assert.Equal(t, notification.EventNewTest, messages[0].Event)
		assert.Equal(t, notification.EventNotification, messages[1].Event)
	})

	t.Run("empty room", func(t *testing.T) {
		assert.NotPanics(t, func() {
			service.EmitNewLectureNote(5, map[string]any{"title": "Ch1"})
		})
		assert.Empty(t, received(inOne))
		assert.Empty(t, received(inTwo))
	})

	t.Run("multiple classes", func(t *testing.T) {
		service.EmitToMultipleClasses([]int{1, 2, 3}, "attendanceOpened", map[string]any{"open": true})

		for _, connection := range []*transport.Connection{inOne, inTwo} {
			messages := received(connection)
			require.Len(t, messages, 1)
			assert.Equal(t, "attendanceOpened", messages[0].Event)
			assert.Equal(t, map[string]any{"open": true}, messages[0].Payload)
		}
	})
}
