package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/goevery/classcast/internal/auth"
	"github.com/goevery/classcast/internal/ierr"
	"github.com/goevery/classcast/internal/notification"
)

type PublishToClassRequest struct {
	ClassId int               `json:"classId" validate:"gte=0"`
	Kind    notification.Kind `json:"kind" validate:"oneof=lecture-note announcement test custom"`
	Data    json.RawMessage   `json:"data" validate:"required"`
}

type PublishToClassesRequest struct {
	ClassIds []int           `json:"classIds" validate:"required,min=1,max=256,dive,gte=0"`
	Event    string          `json:"event" validate:"required,max=64"`
	Data     json.RawMessage `json:"data"`
}

type PublishToStudentRequest struct {
	StudentEmail string          `json:"studentEmail" validate:"required,max=320"`
	Event        string          `json:"event" validate:"required,max=64"`
	Data         json.RawMessage `json:"data"`
}

type PublishResponse struct {
	Accepted bool `json:"accepted"`
}

type PublishHandlerInterface interface {
	HandleClass(ctx context.Context, req PublishToClassRequest) (PublishResponse, error)
	HandleClasses(ctx context.Context, req PublishToClassesRequest) (PublishResponse, error)
	HandleStudent(ctx context.Context, req PublishToStudentRequest) (PublishResponse, error)
}

// Publisher is the collaborator-facing side of the realtime service.
type Publisher interface {
	EmitNewLectureNote(classId int, lectureNote any)
	EmitNewAnnouncement(classId int, announcement any)
	EmitNewTest(classId int, test any)
	EmitNotification(classId int, data any)
	EmitToStudent(studentEmail string, event string, data any)
	EmitToMultipleClasses(classIds []int, event string, data any)
}

type PublishHandler struct {
	validator *Validator
	publisher Publisher
}

func NewPublishHandler(validator *Validator, publisher Publisher) *PublishHandler {
	return &PublishHandler{
		validator,
		publisher,
	}
}

func (h *PublishHandler) HandleClass(ctx context.Context, req PublishToClassRequest) (PublishResponse, error) {
	if err := h.authorize(ctx, req); err != nil {
		return PublishResponse{}, err
	}

	switch req.Kind {
	case notification.KindLectureNote:
		h.publisher.EmitNewLectureNote(req.ClassId, req.Data)
	case notification.KindAnnouncement:
		h.publisher.EmitNewAnnouncement(req.ClassId, req.Data)
	case notification.KindTest:
		h.publisher.EmitNewTest(req.ClassId, req.Data)
	default:
		h.publisher.EmitNotification(req.ClassId, req.Data)
	}

	return PublishResponse{Accepted: true}, nil
}

func (h *PublishHandler) HandleClasses(ctx context.Context, req PublishToClassesRequest) (PublishResponse, error) {
	if err := h.authorize(ctx, req); err != nil {
		return PublishResponse{}, err
	}

	h.publisher.EmitToMultipleClasses(req.ClassIds, req.Event, req.Data)

	return PublishResponse{Accepted: true}, nil
}

func (h *PublishHandler) HandleStudent(ctx context.Context, req PublishToStudentRequest) (PublishResponse, error) {
	if err := h.authorize(ctx, req); err != nil {
		return PublishResponse{}, err
	}

	h.publisher.EmitToStudent(req.StudentEmail, req.Event, req.Data)

	return PublishResponse{Accepted: true}, nil
}

func (h *PublishHandler) authorize(ctx context.Context, req any) error {
	authentication, ok := auth.AuthenticationFromContext(ctx)
	if !ok {
		return ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("caller not authenticated"))
	}

	if !authentication.IsPublisher() {
		return ierr.New(ierr.ErrorCodePermissionDenied, errors.New("publish scope required"))
	}

	return h.validator.Validate(req)
}
