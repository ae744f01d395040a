package dump

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/repostats/repostats/internal/controller"
	"github.com/repostats/repostats/internal/queue"
	"github.com/repostats/repostats/internal/scanevents"
)

const pollInterval = 10 * time.Millisecond

// Consumer is a Typed Consumer View reader that formats every scan event it
// sees to out. It also implements controller.Controller so it can be
// wired into the Event Controller's discovery/shutdown machinery the same
// way a core subsystem would be — demonstrating that a plugin is just
// another controller from the coordinator's point of view.
type Consumer struct {
	broker     *queue.Broker
	consumerID string
	out        io.Writer
	logger     *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConsumer registers a new broker consumer and wraps it for formatted
// output. out defaults to os.Stdout when nil.
func NewConsumer(broker *queue.Broker, out io.Writer, logger *zerolog.Logger) *Consumer {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Consumer{
		broker:     broker,
		consumerID: broker.RegisterConsumer(),
		out:        out,
		logger:     logger,
	}
}

// Close unregisters the underlying broker consumer.
func (c *Consumer) Close() {
	c.broker.UnregisterConsumer(c.consumerID)
}

// Run polls the broker until ctx is cancelled or GracefulSystemStop is
// called, writing one formatted line per decoded event. A decode failure
// is logged and skipped rather than treated as fatal, since one malformed
// message should not stop the rest of the stream from being consumed.
func (c *Consumer) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()
	defer close(done)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return nil
		default:
		}

		msg, err := c.broker.ReadNext(c.consumerID)
		if err != nil {
			return errors.Wrap(err, "dump: read next message")
		}
		if msg == nil {
			select {
			case <-runCtx.Done():
				return nil
			case <-ticker.C:
			}
			continue
		}

		event, err := scanevents.Decode(msg.MessageType, []byte(msg.Payload))
		if err != nil {
			c.logger.Warn().Err(err).Uint64("sequence", msg.Sequence).Msg("dump: failed to decode scan event, skipping")
			continue
		}

		if _, err := fmt.Fprintln(c.out, Format(event)); err != nil {
			return errors.Wrap(err, "dump: write formatted event")
		}
	}
}

// GracefulSystemStop cancels the running Run loop, if any. Safe to call
// before Run starts or more than once.
func (c *Consumer) GracefulSystemStop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// AwaitSystemCompletionWithShutdown blocks until Run has returned, shutdown
// fires, or ctx expires — whichever comes first.
func (c *Consumer) AwaitSystemCompletionWithShutdown(ctx context.Context, shutdown <-chan struct{}) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-shutdown:
		return nil
	case <-ctx.Done():
		return &controller.CoordinationFailedError{
			Operation: "dump_completion_wait",
			Reason:    ctx.Err().Error(),
		}
	}
}
