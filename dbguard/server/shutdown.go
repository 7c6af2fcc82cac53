package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry"
	"github.com/salespulse/lib-dbguard/dbguard/runtime"
)

// ErrNoServerConfigured indicates WithHTTPServer was never called.
var ErrNoServerConfigured = errors.New("no server configured: use WithHTTPServer()")

// DefaultShutdownTimeout bounds each shutdown step.
const DefaultShutdownTimeout = 30 * time.Second

// DatabaseCloser releases database resources. *dbguard.Components implements it.
type DatabaseCloser interface {
	Close(ctx context.Context) error
}

// ServerManager runs the HTTP server and coordinates graceful shutdown.
type ServerManager struct {
	httpServer         *fiber.App
	httpAddress        string
	database           DatabaseCloser
	telemetry          *opentelemetry.Telemetry
	logger             log.Logger
	serversStarted     chan struct{}
	serversStartedOnce sync.Once
	shutdownChan       <-chan struct{}
	shutdownOnce       sync.Once
	shutdownTimeout    time.Duration
	startupErrors      chan error
}

// NewServerManager creates a ServerManager. Nil telemetry and database are
// skipped at shutdown; a nil logger is replaced with a no-op one.
func NewServerManager(database DatabaseCloser, telemetry *opentelemetry.Telemetry, logger log.Logger) *ServerManager {
	return &ServerManager{
		database:        database,
		telemetry:       telemetry,
		logger:          log.OrNop(logger),
		serversStarted:  make(chan struct{}),
		shutdownTimeout: DefaultShutdownTimeout,
		startupErrors:   make(chan error, 1),
	}
}

// WithHTTPServer configures the HTTP server.
func (sm *ServerManager) WithHTTPServer(app *fiber.App, address string) *ServerManager {
	sm.httpServer = app
	sm.httpAddress = address

	return sm
}

// WithShutdownChannel replaces OS signal handling with ch, for tests.
func (sm *ServerManager) WithShutdownChannel(ch <-chan struct{}) *ServerManager {
	sm.shutdownChan = ch

	return sm
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func (sm *ServerManager) WithShutdownTimeout(d time.Duration) *ServerManager {
	if d > 0 {
		sm.shutdownTimeout = d
	}

	return sm
}

// ServersStarted is closed once the server goroutine has been launched. It
// does not mean the socket is bound.
func (sm *ServerManager) ServersStarted() <-chan struct{} {
	return sm.serversStarted
}

// StartWithGracefulShutdown starts the server and blocks until SIGINT, SIGTERM,
// the shutdown channel or a startup failure, then shuts everything down.
// The returned error is the startup failure, if any.
func (sm *ServerManager) StartWithGracefulShutdown() (err error) {
	if sm.httpServer == nil {
		return ErrNoServerConfigured
	}

	defer func() {
		if r := recover(); r != nil {
			runtime.HandlePanicValue(context.Background(), sm.logger, r, "server", "StartWithGracefulShutdown")

			sm.executeShutdown()

			err = fmt.Errorf("%w: %v", runtime.ErrPanic, r)
		}
	}()

	sm.startServer()

	return sm.handleShutdown()
}

func (sm *ServerManager) startServer() {
	runtime.SafeGoWithContextAndComponent(
		context.Background(),
		sm.logger,
		"server",
		"start_http_server",
		runtime.KeepRunning,
		func(ctx context.Context) {
			sm.logger.Log(ctx, log.LevelInfo, "starting HTTP server", log.String("address", sm.httpAddress))

			if err := sm.httpServer.Listen(sm.httpAddress); err != nil {
				sm.logger.Log(ctx, log.LevelError, "HTTP server error", log.Err(err))

				select {
				case sm.startupErrors <- fmt.Errorf("HTTP server: %w", err):
				default:
				}
			}
		},
	)

	sm.serversStartedOnce.Do(func() {
		close(sm.serversStarted)
	})
}

func (sm *ServerManager) handleShutdown() error {
	var startupErr error

	if sm.shutdownChan != nil {
		select {
		case <-sm.shutdownChan:
		case startupErr = <-sm.startupErrors:
		}
	} else {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		select {
		case <-c:
		case startupErr = <-sm.startupErrors:
		}

		signal.Stop(c)
	}

	if startupErr != nil {
		sm.logger.Log(context.Background(), log.LevelError, "server startup failed", log.Err(startupErr))
	}

	sm.logger.Log(context.Background(), log.LevelInfo, "gracefully shutting down")

	sm.executeShutdown()

	return startupErr
}

// executeShutdown is idempotent: only the first call runs the sequence.
func (sm *ServerManager) executeShutdown() {
	sm.shutdownOnce.Do(func() {
		ctx := context.Background()

		if sm.httpServer != nil {
			sm.logger.Log(ctx, log.LevelInfo, "shutting down HTTP server")

			if err := sm.httpServer.ShutdownWithTimeout(sm.shutdownTimeout); err != nil {
				sm.logger.Log(ctx, log.LevelError, "error during HTTP server shutdown", log.Err(err))
			}
		}

		if sm.database != nil {
			sm.logger.Log(ctx, log.LevelInfo, "closing database pool")

			dbCtx, cancel := context.WithTimeout(ctx, sm.shutdownTimeout)
			if err := sm.database.Close(dbCtx); err != nil {
				sm.logger.Log(ctx, log.LevelError, "error closing database pool", log.Err(err))
			}

			cancel()
		}

		if sm.telemetry != nil {
			sm.logger.Log(ctx, log.LevelInfo, "shutting down telemetry")

			telCtx, cancel := context.WithTimeout(ctx, sm.shutdownTimeout)
			if err := sm.telemetry.ShutdownTelemetryWithContext(telCtx); err != nil {
				sm.logger.Log(ctx, log.LevelError, "error shutting down telemetry", log.Err(err))
			}

			cancel()
		}

		sm.logger.Log(ctx, log.LevelInfo, "graceful shutdown completed")

		// Sync on stderr-backed loggers commonly fails with EINVAL; nothing is left to report it to.
		_ = sm.logger.Sync(ctx)
	})
}
