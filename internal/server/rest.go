package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goevery/classcast/internal/auth"
	"github.com/goevery/classcast/internal/handler"
	"github.com/goevery/classcast/internal/ierr"
	"github.com/goevery/classcast/internal/notification"
	"github.com/goevery/classcast/internal/realtime"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type StatsProvider interface {
	Stats() realtime.Stats
}

type RESTServer struct {
	logger *zap.Logger

	publishHandler handler.PublishHandlerInterface
	authenticator  *auth.Authenticator
	stats          StatsProvider
}

func NewRESTServer(
	logger *zap.Logger,
	publishHandler handler.PublishHandlerInterface,
	authenticator *auth.Authenticator,
	stats StatsProvider,
) *RESTServer {
	return &RESTServer{
		logger,
		publishHandler,
		authenticator,
		stats,
	}
}

func (s *RESTServer) Register(router *mux.Router) {
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	router.HandleFunc("/stats", s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.stats.Stats())
	})).Methods("GET")

	classRoutes := map[string]notification.Kind{
		"lecture-notes": notification.KindLectureNote,
		"announcements": notification.KindAnnouncement,
		"tests":         notification.KindTest,
		"notifications": notification.KindCustom,
	}
	for segment, kind := range classRoutes {
		router.HandleFunc("/classes/{classId:[0-9]+}/"+segment, s.authenticated(s.publishToClass(kind))).
			Methods("POST", "OPTIONS")
	}

	router.HandleFunc("/classes/events", s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		var req handler.PublishToClassesRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}

		response, err := s.publishHandler.HandleClasses(r.Context(), req)
		s.writeResult(w, response, err)
	})).Methods("POST", "OPTIONS")

	router.HandleFunc("/students/{email}/events", s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		var req handler.PublishToStudentRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		req.StudentEmail = mux.Vars(r)["email"]

		response, err := s.publishHandler.HandleStudent(r.Context(), req)
		s.writeResult(w, response, err)
	})).Methods("POST", "OPTIONS")
}

// publishToClass takes the raw request body as the notification data.
func (s *RESTServer) publishToClass(kind notification.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classId, err := strconv.Atoi(mux.Vars(r)["classId"])
		if err != nil {
			s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid class id")))
			return
		}

		var data json.RawMessage
		if err := decodeBody(r, &data); err != nil {
			s.writeError(w, err)
			return
		}

		response, err := s.publishHandler.HandleClass(r.Context(), handler.PublishToClassRequest{
			ClassId: classId,
			Kind:    kind,
			Data:    data,
		})
		s.writeResult(w, response, err)
	}
}

func (s *RESTServer) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			return
		}

		credential, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

		authentication, err := s.authenticator.Authenticate(strings.TrimSpace(credential))
		if err != nil {
			s.writeError(w, ierr.New(ierr.ErrorCodeUnauthenticated, err))
			return
		}

		next(w, r.WithContext(auth.WithAuthentication(r.Context(), authentication)))
	}
}

func (s *RESTServer) writeResult(w http.ResponseWriter, response handler.PublishResponse, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, response)
}

func (s *RESTServer) writeError(w http.ResponseWriter, err error) {
	coded, ok := ierr.As(err)
	if !ok {
		s.logger.Error("failed to handle request", zap.Error(err))
	}

	s.writeJSON(w, coded.HTTPStatus(), map[string]ierr.Error{"error": coded})
}

func (s *RESTServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("request body is empty"))
	}
	if err != nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid request body: "+err.Error()))
	}

	return nil
}
