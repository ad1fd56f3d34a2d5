package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/goevery/classcast/internal/handler"
	"github.com/goevery/classcast/internal/ierr"
	"github.com/goevery/classcast/internal/rpc"
	"github.com/goevery/classcast/internal/transport"
	"go.uber.org/zap"
)

const (
	MethodHeartbeat              = "heartbeat"
	MethodRegister               = "register"
	MethodRegisterStudentClasses = "registerStudentClasses"

	EventHeartbeat         = "heartbeat"
	EventRegistered        = "registered"
	EventClassesRegistered = "classesRegistered"
)

type Router struct {
	logger *zap.Logger

	heartbeatHandler       handler.HeartbeatHandlerInterface
	registerHandler        handler.RegisterHandlerInterface
	registerClassesHandler handler.RegisterStudentClassesHandlerInterface
}

func NewRouter(
	logger *zap.Logger,
	heartbeatHandler handler.HeartbeatHandlerInterface,
	registerHandler handler.RegisterHandlerInterface,
	registerClassesHandler handler.RegisterStudentClassesHandlerInterface,
) *Router {
	return &Router{
		logger,
		heartbeatHandler,
		registerHandler,
		registerClassesHandler,
	}
}

// RouteRequest handles one inbound frame and returns the message to send
// back on the same connection.
func (r *Router) RouteRequest(ctx context.Context, request rpc.Request) transport.Message {
	event, result, err := r.Handle(ctx, request)
	if err != nil {
		return transport.NewMessage(rpc.MethodError, request.ReplyWithError(r.mapError(err)))
	}

	return transport.NewMessage(event, result)
}

func (r *Router) Handle(ctx context.Context, request rpc.Request) (string, any, error) {
	switch request.Method {
	case MethodHeartbeat:
		return EventHeartbeat, r.heartbeatHandler.Handle(ctx), nil
	case MethodRegister:
		var registerReq handler.RegisterRequest
		if err := decodeParams(request.Params, &registerReq); err != nil {
			return "", nil, err
		}

		response, err := r.registerHandler.Handle(ctx, registerReq)

		return EventRegistered, response, err
	case MethodRegisterStudentClasses:
		var classesReq handler.RegisterStudentClassesRequest
		if err := decodeParams(request.Params, &classesReq); err != nil {
			return "", nil, err
		}

		response, err := r.registerClassesHandler.Handle(ctx, classesReq)

		return EventClassesRegistered, response, err
	default:
		return "", nil, ierr.New(ierr.ErrorCodeNotFound, errors.New("method not found: "+request.Method))
	}
}

func (r *Router) mapError(err error) ierr.Error {
	coded, ok := ierr.As(err)
	if !ok {
		r.logger.Error("error in message handler", zap.Error(err))
	}

	return coded
}

func decodeParams(params *json.RawMessage, v any) error {
	if params == nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("missing params"))
	}

	if err := json.Unmarshal(*params, v); err != nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid params: "+err.Error()))
	}

	return nil
}
