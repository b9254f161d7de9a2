package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc releases one resource during shutdown
type ShutdownFunc func(context.Context) error

// ShutdownManager waits for a termination signal, drains the API server,
// and then runs every registered cleanup step under a single deadline.
// Steps run sequentially in registration order, so dependents can be
// registered after the things they depend on.
type ShutdownManager struct {
	log     *Logger
	server  *http.Server
	timeout time.Duration

	mu    sync.Mutex
	funcs []ShutdownFunc
}

// NewShutdownManager creates a shutdown manager for the given server
func NewShutdownManager(log *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{log: log, server: server, timeout: timeout}
}

// RegisterShutdownFunc adds a cleanup step
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.funcs = append(sm.funcs, fn)
}

// WaitForShutdown blocks until SIGINT or SIGTERM arrives, then drains the
// server and runs the cleanup steps. A step failure is logged and counted
// but does not stop later steps.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)

	sm.log.WithField("signal", sig.String()).Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	var failed int
	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.log.WithError(err).Error("api server shutdown failed")
			failed++
		}
	}

	sm.mu.Lock()
	funcs := append([]ShutdownFunc(nil), sm.funcs...)
	sm.mu.Unlock()

	for i, fn := range funcs {
		if err := fn(ctx); err != nil {
			sm.log.WithField("step", i).WithError(err).Error("shutdown step failed")
			failed++
		}
		if ctx.Err() != nil {
			sm.log.Warn("shutdown deadline reached")
			return fmt.Errorf("shutdown deadline exceeded after step %d", i)
		}
	}

	if failed > 0 {
		return fmt.Errorf("shutdown finished with %d failed steps", failed)
	}
	sm.log.Info("shutdown complete")
	return nil
}
