package handler

import (
	"context"
	"errors"

	"github.com/goevery/classcast/internal/realtime"
	"github.com/goevery/classcast/internal/transport"
)

type RegisterRequest struct {
	UserEmail string `json:"userEmail" validate:"required,max=320"`
	Role      string `json:"role"`
}

type RegisterHandlerInterface interface {
	Handle(ctx context.Context, req RegisterRequest) (realtime.Registered, error)
}

type PresenceService interface {
	Register(connection *transport.Connection, identity string, role string) realtime.Registered
}

type RegisterHandler struct {
	validator *Validator
	presence  PresenceService
}

func NewRegisterHandler(validator *Validator, presence PresenceService) *RegisterHandler {
	return &RegisterHandler{
		validator,
		presence,
	}
}

func (h *RegisterHandler) Handle(ctx context.Context, req RegisterRequest) (realtime.Registered, error) {
	if err := h.validator.Validate(req); err != nil {
		return realtime.Registered{}, err
	}

	connection, ok := transport.ConnectionFromContext(ctx)
	if !ok {
		return realtime.Registered{}, errors.New("connection not found in context")
	}

	return h.presence.Register(connection, req.UserEmail, req.Role), nil
}

type RegisterStudentClassesRequest struct {
	StudentEmail string `json:"studentEmail" validate:"max=320"`
	ClassIds     []int  `json:"classIds" validate:"max=256,dive,gte=0"`
}

type RegisterStudentClassesHandlerInterface interface {
	Handle(ctx context.Context, req RegisterStudentClassesRequest) (realtime.ClassesRegistered, error)
}

type EnrollmentService interface {
	IdentityResolver
	RegisterStudentClasses(connection *transport.Connection, studentEmail string, classIds []int) realtime.ClassesRegistered
}

type RegisterStudentClassesHandler struct {
	validator  *Validator
	enrollment EnrollmentService
}

func NewRegisterStudentClassesHandler(
	validator *Validator,
	enrollment EnrollmentService,
) *RegisterStudentClassesHandler {
	return &RegisterStudentClassesHandler{
		validator,
		enrollment,
	}
}

func (h *RegisterStudentClassesHandler) Handle(
	ctx context.Context,
	req RegisterStudentClassesRequest,
) (realtime.ClassesRegistered, error) {
	if err := h.validator.Validate(req); err != nil {
		return realtime.ClassesRegistered{}, err
	}

	connection, ok := transport.ConnectionFromContext(ctx)
	if !ok {
		return realtime.ClassesRegistered{}, errors.New("connection not found in context")
	}

	studentEmail := req.StudentEmail
	if studentEmail == "" {
		studentEmail, _ = h.enrollment.IdentityOf(connection.Id)
	}

	return h.enrollment.RegisterStudentClasses(connection, studentEmail, req.ClassIds), nil
}
