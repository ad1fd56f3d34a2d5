package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/goevery/classcast/internal/auth"
	"github.com/goevery/classcast/internal/classroom"
	"github.com/goevery/classcast/internal/handler"
	"github.com/goevery/classcast/internal/metrics"
	"github.com/goevery/classcast/internal/presence"
	"github.com/goevery/classcast/internal/realtime"
	"github.com/goevery/classcast/internal/server"
	"github.com/goevery/classcast/internal/transport"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type App struct {
	logger          *zap.Logger
	settings        Settings
	service         *realtime.Service
	websocketServer *server.WebSocketServer
	restServer      *server.RESTServer
}

func NewApp(logger *zap.Logger, settings Settings) (*App, error) {
	policy, err := settings.Policy()
	if err != nil {
		return nil, err
	}

	if settings.SendBufferSize < 1 {
		return nil, fmt.Errorf("send buffer size must be positive, got %d", settings.SendBufferSize)
	}

	originChecker := server.NewOriginChecker(settings.AllowedOriginList())
	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       originChecker.Check,
		EnableCompression: true,
	}

	authenticator := auth.NewAuthenticator(settings.JWTSecret, settings.APIKeyList())

	recorder := metrics.NewRecorder(logger)
	hub := transport.NewInMemoryHub(logger, recorder)
	service := realtime.NewService(
		logger,
		hub,
		presence.NewRegistry(hub, recorder),
		classroom.NewRouter(logger, hub, recorder, policy),
		recorder,
	)

	validator := handler.NewValidator()
	heartbeatHandler := handler.NewHeartbeatHandler(service)
	registerHandler := handler.NewRegisterHandler(validator, service)
	registerClassesHandler := handler.NewRegisterStudentClassesHandler(validator, service)
	publishHandler := handler.NewPublishHandler(validator, service)

	router := server.NewRouter(
		logger,
		heartbeatHandler,
		registerHandler,
		registerClassesHandler,
	)

	websocketServer := server.NewWebSocketServer(
		logger,
		websocketUpgrader,
		hub,
		service,
		router,
		settings.SendBufferSize,
	)
	restServer := server.NewRESTServer(
		logger,
		publishHandler,
		authenticator,
		service,
	)

	return &App{
		logger,
		settings,
		service,
		websocketServer,
		restServer,
	}, nil
}

func (a *App) Handler() http.Handler {
	router := mux.NewRouter().
		PathPrefix(a.settings.BasePath).
		Subrouter()

	a.websocketServer.Register(router)
	a.restServer.Register(router)

	return router
}

// Run serves until ctx is done or the process receives SIGTERM or SIGINT.
func (a *App) Run(ctx context.Context) error {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	httpServer := &http.Server{
		Addr:              address,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("starting http server",
		zap.String("address", address),
		zap.String("basePath", a.settings.BasePath),
		zap.String("subscriptionPolicy", string(a.service.Stats().Policy)))

	serveErr := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start http server: %w", err)
		}
	case <-notifyCtx.Done():
	}

	a.logger.Info("stopping http server")

	shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCtxCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	a.logger.Info("http server stopped")

	return nil
}
