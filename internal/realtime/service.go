package realtime

import (
	"github.com/goevery/classcast/internal/classroom"
	"github.com/goevery/classcast/internal/metrics"
	"github.com/goevery/classcast/internal/notification"
	"github.com/goevery/classcast/internal/presence"
	"github.com/goevery/classcast/internal/transport"
	"go.uber.org/zap"
)

// Registered acknowledges a presence registration.
type Registered struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ClassesRegistered acknowledges a class list registration.
type ClassesRegistered struct {
	Success  bool     `json:"success"`
	ClassIds []int    `json:"classIds"`
	Rooms    []string `json:"rooms"`
}

type Stats struct {
	Identities int                `json:"identities"`
	Hub        transport.HubStats `json:"hub"`
	Policy     classroom.Policy   `json:"subscriptionPolicy"`
	Deliveries metrics.Snapshot   `json:"deliveries"`
}

// Service is the single entry point for transport lifecycle events and for
// collaborators that need to push notifications to connected clients.
type Service struct {
	logger   *zap.Logger
	hub      transport.Hub
	presence *presence.Registry
	classes  *classroom.Router
	recorder *metrics.Recorder
}

func NewService(
	logger *zap.Logger,
	hub transport.Hub,
	presence *presence.Registry,
	classes *classroom.Router,
	recorder *metrics.Recorder,
) *Service {
	return &Service{
		logger,
		hub,
		presence,
		classes,
		recorder,
	}
}

func (s *Service) OnConnect(connection *transport.Connection) {
	s.hub.Connect(connection)

	s.logger.Debug("client connected",
		zap.String("connectionId", connection.Id),
		zap.String("clientIp", connection.ClientIp))
}

func (s *Service) OnDisconnect(connectionId string) {
	s.hub.Disconnect(connectionId)

	identity, ok := s.presence.Unregister(connectionId)
	if !ok {
		s.logger.Debug("client disconnected", zap.String("connectionId", connectionId))

		return
	}

	s.logger.Info("user went offline",
		zap.String("connectionId", connectionId),
		zap.String("identity", identity))
}

func (s *Service) Register(connection *transport.Connection, identity string, role string) Registered {
	previousConnectionId, replaced := s.presence.Register(identity, connection.Id)

	fields := []zap.Field{
		zap.String("connectionId", connection.Id),
		zap.String("identity", identity),
		zap.String("role", role),
	}
	if replaced {
		fields = append(fields, zap.String("replacedConnectionId", previousConnectionId))
	}

	s.logger.Info("user registered", fields...)

	return Registered{
		Success: true,
		Message: "Registered as " + identity,
	}
}

// IdentityOf returns the identity registered on connectionId, if the
// presence entry still points at it.
func (s *Service) IdentityOf(connectionId string) (string, bool) {
	return s.presence.IdentityOf(connectionId)
}

func (s *Service) RegisterStudentClasses(
	connection *transport.Connection,
	studentEmail string,
	classIds []int,
) ClassesRegistered {
	rooms := s.classes.Subscribe(connection.Id, studentEmail, classIds)

	s.logger.Info("student classes registered",
		zap.String("connectionId", connection.Id),
		zap.String("identity", studentEmail),
		zap.Ints("classIds", classIds),
		zap.Strings("rooms", rooms))

	return ClassesRegistered{
		Success:  true,
		ClassIds: classroom.NormalizeClassIds(classIds),
		Rooms:    rooms,
	}
}

func (s *Service) EmitNewLectureNote(classId int, lectureNote any) {
	s.classes.PublishToRoom(classId, notification.KindLectureNote, lectureNote)
}

func (s *Service) EmitNewAnnouncement(classId int, announcement any) {
	s.classes.PublishToRoom(classId, notification.KindAnnouncement, announcement)
}

func (s *Service) EmitNewTest(classId int, test any) {
	s.classes.PublishToRoom(classId, notification.KindTest, test)
}

func (s *Service) EmitNotification(classId int, data any) {
	s.classes.PublishToRoom(classId, notification.KindCustom, data)
}

func (s *Service) EmitToStudent(studentEmail string, event string, data any) {
	s.presence.EmitToIdentity(studentEmail, event, data)
}

func (s *Service) EmitToMultipleClasses(classIds []int, event string, data any) {
	s.classes.PublishToManyRooms(classIds, event, data)
}

func (s *Service) Stats() Stats {
	return Stats{
		Identities: s.presence.Len(),
		Hub:        s.hub.Stats(),
		Policy:     s.classes.Policy(),
		Deliveries: s.recorder.Snapshot(),
	}
}
