//go:build unit

package server_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
	synced   bool
}

func (l *recordingLogger) Log(_ context.Context, _ log.Level, msg string, _ ...log.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, msg)
}

func (l *recordingLogger) With(_ ...log.Field) log.Logger { return l }
func (l *recordingLogger) WithGroup(_ string) log.Logger  { return l }
func (l *recordingLogger) Enabled(_ log.Level) bool       { return true }

func (l *recordingLogger) Sync(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.synced = true
	l.messages = append(l.messages, "<sync>")

	return errors.New("sync /dev/stderr: invalid argument")
}

func (l *recordingLogger) getMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.messages...)
}

type recordingCloser struct {
	logger *recordingLogger
	calls  int
	err    error
}

func (c *recordingCloser) Close(ctx context.Context) error {
	c.calls++
	c.logger.Log(ctx, log.LevelInfo, "<pool closed>")

	return c.err
}

func freeAddress(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	return addr
}

func indexOf(messages []string, msg string) int {
	for i, m := range messages {
		if m == msg {
			return i
		}
	}

	return -1
}

func TestStartWithGracefulShutdown_NoServer(t *testing.T) {
	t.Parallel()

	err := server.NewServerManager(nil, nil, nil).StartWithGracefulShutdown()
	assert.ErrorIs(t, err, server.ErrNoServerConfigured)
}

func TestStartWithGracefulShutdown_Order(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	db := &recordingCloser{logger: logger, err: errors.New("pool already closed")}
	addr := freeAddress(t)
	shutdown := make(chan struct{})

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	sm := server.NewServerManager(db, nil, logger).
		WithHTTPServer(app, addr).
		WithShutdownChannel(shutdown).
		WithShutdownTimeout(time.Second)

	done := make(chan error, 1)

	go func() { done <- sm.StartWithGracefulShutdown() }()

	<-sm.ServersStarted()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}

		_ = conn.Close()

		return true
	}, 2*time.Second, 10*time.Millisecond)

	close(shutdown)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	messages := logger.getMessages()

	httpIdx := indexOf(messages, "shutting down HTTP server")
	poolIdx := indexOf(messages, "<pool closed>")
	syncIdx := indexOf(messages, "<sync>")

	require.NotEqual(t, -1, httpIdx)
	require.NotEqual(t, -1, poolIdx)
	require.NotEqual(t, -1, syncIdx)

	assert.Less(t, httpIdx, poolIdx)
	assert.Less(t, poolIdx, syncIdx)
	assert.Equal(t, 1, db.calls)
	assert.Contains(t, messages, "error closing database pool")
}

func TestStartWithGracefulShutdown_StartupFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() { _ = ln.Close() })

	logger := &recordingLogger{}
	db := &recordingCloser{logger: logger}

	sm := server.NewServerManager(db, nil, logger).
		WithHTTPServer(fiber.New(fiber.Config{DisableStartupMessage: true}), ln.Addr().String()).
		WithShutdownChannel(make(chan struct{}))

	err = sm.StartWithGracefulShutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP server")
	assert.Equal(t, 1, db.calls, "database is still closed after a failed start")
	assert.Contains(t, logger.getMessages(), "server startup failed")
}
