// Package app implements the Event Controller / Shutdown Coordinator: the
// single entry point a process uses to run a payload under full lifecycle
// coordination — OS signal handling, subsystem discovery, a two-phase
// graceful shutdown, and a bounded completion wait.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/repostats/repostats/internal/controller"
	"github.com/repostats/repostats/internal/notify"
)

// systemEventTimeout bounds a system lifecycle event publish so a degraded
// notification bus can never delay shutdown coordination.
const systemEventTimeout = 100 * time.Millisecond

// Config holds the two timeout budgets the Event Controller enforces, plus
// an optional notifier for system lifecycle events.
type Config struct {
	// CompletionTimeout bounds the await-completion phase as a whole.
	CompletionTimeout time.Duration
	// ShutdownTimeout bounds the graceful-stop phase as a whole.
	ShutdownTimeout time.Duration
	// Notifier receives SystemStartup/SystemShutdown events, if set.
	Notifier notify.Publisher
}

// DefaultConfig returns the documented default timeout budgets.
func DefaultConfig() Config {
	return Config{CompletionTimeout: 60 * time.Second, ShutdownTimeout: 30 * time.Second}
}

// Guard runs payload under default timeout configuration. See
// GuardWithConfig for the full algorithm.
func Guard[R any](ctx context.Context, logger *zerolog.Logger, payload func(ctx context.Context) (R, error)) (result R, signaled bool, err error) {
	return GuardWithConfig(ctx, DefaultConfig(), logger, payload)
}

// GuardWithConfig is the single entry point a process uses to run a payload
// under full lifecycle coordination:
//
//  1. Install OS signal handlers.
//  2. Discover and instantiate all registered controllers concurrently.
//  3. Spawn a background listener that coordinates graceful shutdown the
//     moment a signal fires.
//  4. Run payload to completion, capturing its result.
//  5. Invoke graceful stop on every controller (idempotent with step 3).
//  6. Await completion on every controller, bounded by CompletionTimeout.
//  7. Return the captured payload result.
//
// signaled reports whether an OS signal triggered shutdown at any point,
// which a process entry point can use to choose exit code 130 over 1/0.
func GuardWithConfig[R any](ctx context.Context, cfg Config, logger *zerolog.Logger, payload func(ctx context.Context) (R, error)) (result R, signaled bool, err error) {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}

	broadcaster := controller.NewBroadcaster()
	stopSignals := installSignalHandler(broadcaster, logger)
	defer stopSignals()

	cfg.publishSystemEvent(notify.SystemStartup, logger)

	controllers := controller.Discover(ctx, logger)
	logger.Info().Int("count", len(controllers)).Msg("app: discovered controllers")

	signalShutdown := broadcaster.Subscribe()
	go func() {
		<-signalShutdown
		logger.Debug().Msg("app: shutdown signal received, coordinating graceful stop")
		if stopErr := gracefulStopAll(ctx, controllers, cfg.ShutdownTimeout); stopErr != nil {
			logger.Warn().Err(stopErr).Msg("app: signal-triggered shutdown coordination failed")
		}
	}()

	result, err = payload(ctx)

	logger.Trace().Msg("app: payload completed, coordinating graceful shutdown")
	if stopErr := gracefulStopAll(ctx, controllers, cfg.ShutdownTimeout); stopErr != nil {
		logger.Warn().Err(stopErr).Msg("app: graceful shutdown failed")
	}

	logger.Trace().Msg("app: waiting for subsystem completion")
	if waitErr := awaitCompletionAll(ctx, controllers, broadcaster, cfg.CompletionTimeout); waitErr != nil {
		logger.Warn().Err(waitErr).Msg("app: completion wait failed")
	}

	cfg.publishSystemEvent(notify.SystemShutdown, logger)

	signaled = broadcaster.Fired()
	return result, signaled, err
}

// publishSystemEvent publishes a System{type} lifecycle event, bounded by
// systemEventTimeout. A nil Notifier is a no-op. Failure is non-fatal: it is
// wrapped in an EventPublishFailedError and logged.
func (cfg Config) publishSystemEvent(typ string, logger *zerolog.Logger) {
	if cfg.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), systemEventTimeout)
	defer cancel()
	if err := cfg.Notifier.Publish(ctx, notify.NewSystemEvent(typ, "")); err != nil {
		logger.Warn().Err(&controller.EventPublishFailedError{EventType: typ, Cause: err}).Msg("app: system event publish failed")
	}
}

// gracefulStopAll invokes GracefulSystemStop on every controller in
// sequence, bounded by timeout, collecting failures into a single
// CoordinationFailedError. Idempotent: calling it twice on the same
// controllers is safe because the Controller contract requires
// GracefulSystemStop itself be idempotent.
func gracefulStopAll(ctx context.Context, controllers []controller.Controller, timeout time.Duration) error {
	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var failures []string
	successful := 0
	for i, c := range controllers {
		if err := c.GracefulSystemStop(stopCtx); err != nil {
			failures = append(failures, timeoutAwareFailure(i, err, stopCtx, timeout))
			continue
		}
		successful++
	}
	if len(failures) == 0 {
		return nil
	}
	return &controller.CoordinationFailedError{
		Operation: "coordinate_graceful_shutdown",
		Reason:    fmt.Sprintf("%d succeeded, %d failed: %s", successful, len(failures), strings.Join(failures, "; ")),
	}
}

// timeoutAwareFailure formats a per-controller failure, substituting a
// ShutdownTimeoutError when boundCtx's deadline is what actually ended the
// call rather than the controller's own error.
func timeoutAwareFailure(index int, err error, boundCtx context.Context, timeout time.Duration) string {
	if boundCtx.Err() == context.DeadlineExceeded {
		return (&controller.ShutdownTimeoutError{
			Component: fmt.Sprintf("controller %d", index),
			Timeout:   timeout,
		}).Error()
	}
	return fmt.Sprintf("controller %d: %v", index, err)
}

// awaitCompletionAll invokes AwaitSystemCompletionWithShutdown on every
// controller in sequence, each with a fresh subscription to broadcaster,
// bounded overall by timeout.
func awaitCompletionAll(ctx context.Context, controllers []controller.Controller, broadcaster *controller.Broadcaster, timeout time.Duration) error {
	if len(controllers) == 0 {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var failures []string
	successful := 0
	for i, c := range controllers {
		if err := c.AwaitSystemCompletionWithShutdown(waitCtx, broadcaster.Subscribe()); err != nil {
			failures = append(failures, timeoutAwareFailure(i, err, waitCtx, timeout))
			continue
		}
		successful++
	}
	if len(failures) == 0 {
		return nil
	}
	return &controller.CoordinationFailedError{
		Operation: "coordinate_completion_wait",
		Reason:    fmt.Sprintf("%d succeeded, %d failed: %s", successful, len(failures), strings.Join(failures, "; ")),
	}
}

// installSignalHandler subscribes to INT, TERM, HUP, and QUIT and fires
// broadcaster the moment one arrives. The returned func stops the
// subscription and must be called once guarding completes.
func installSignalHandler(broadcaster *controller.Broadcaster, logger *zerolog.Logger) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	stop := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info().Stringer("signal", sig).Msg("app: received OS signal, requesting shutdown")
			broadcaster.Fire()
		case <-stop:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(stop)
	}
}
