// Package queue implements the multi-consumer message broker: a single
// global, sequence-ordered, append-only log with per-consumer independent
// read positions, zero-copy (pointer) fan-out, memory-pressure-driven
// reclamation, and lifecycle events.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/rs/zerolog"

	"github.com/repostats/repostats/internal/notify"
)

const (
	// DefaultMaxSize is the broker's default capacity.
	DefaultMaxSize = 10_000

	// lifecycleEventTimeout bounds the lifecycle event publish so a
	// degraded notification bus can never deadlock broker construction or
	// shutdown.
	lifecycleEventTimeout = 100 * time.Millisecond
)

type entry struct {
	sequence uint64
	message  *Message
}

type consumerPosition struct {
	currentSequence uint64
	lastReadTime    time.Time
}

// MemoryStats is the broker's best-effort memory accounting.
type MemoryStats struct {
	TotalMessages int
	TotalBytes    int
	DataBytes     int
	OverheadBytes int
}

// Options configures a Broker at construction.
type Options struct {
	MaxSize              int
	MemoryThresholdBytes int64 // 0 disables memory-pressure checks
	Publisher            notify.Publisher
	Logger               *zerolog.Logger
	QueueID              string
}

// Broker is the single global ordered message log.
type Broker struct {
	mu       sync.RWMutex
	entries  []entry
	nextSeq  uint64
	consumer map[string]*consumerPosition

	maxSize         int
	memoryThreshold int64
	publisher       notify.Publisher
	logger          *zerolog.Logger
	queueID         string

	closed bool

	messagesGauge metrics.Gauge
	bytesGauge    metrics.Gauge
}

// New constructs a Broker and publishes a QueueStarted lifecycle event.
func New(opts Options) *Broker {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Logger == nil {
		l := zerolog.Nop()
		opts.Logger = &l
	}
	if opts.QueueID == "" {
		opts.QueueID = uuid.NewString()
	}

	b := &Broker{
		entries:         make([]entry, 0, 256),
		nextSeq:         1, // sequences start at 1
		consumer:        make(map[string]*consumerPosition),
		maxSize:         opts.MaxSize,
		memoryThreshold: opts.MemoryThresholdBytes,
		publisher:       opts.Publisher,
		logger:          opts.Logger,
		queueID:         opts.QueueID,
		messagesGauge:   metrics.GetOrRegisterGauge("repostats.broker."+opts.QueueID+".messages", metrics.DefaultRegistry),
		bytesGauge:      metrics.GetOrRegisterGauge("repostats.broker."+opts.QueueID+".bytes", metrics.DefaultRegistry),
	}

	if b.publisher != nil {
		b.publishLifecycleEvent(notify.NewQueueEvent(notify.QueueStarted, b.queueID, ""))
	}

	return b
}

// QueueID returns the broker's identifier, used to tag lifecycle events.
func (b *Broker) QueueID() string {
	return b.queueID
}

// Close publishes a QueueShutdown lifecycle event and marks the broker
// closed. Publish and ReadNext/ReadBatch called afterward return
// ErrBrokerClosed. Idempotent.
func (b *Broker) Close() {
	b.mu.Lock()
	already := b.closed
	b.closed = true
	b.mu.Unlock()
	if already {
		return
	}
	if b.publisher != nil {
		b.publishLifecycleEvent(notify.NewQueueEvent(notify.QueueShutdown, b.queueID, ""))
	}
}

func (b *Broker) publishLifecycleEvent(event notify.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), lifecycleEventTimeout)
	defer cancel()
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.logger.Warn().Err(err).Str("queue_id", b.queueID).Msg(ErrMsgLifecycleEventSend)
	}
}

// RegisterConsumer registers a new consumer positioned at the broker's
// current head; it will not see messages published before registration.
func (b *Broker) RegisterConsumer() string {
	id := uuid.NewString()
	b.mu.Lock()
	b.consumer[id] = &consumerPosition{
		currentSequence: b.nextSeq,
		lastReadTime:    time.Now(),
	}
	b.mu.Unlock()
	return id
}

// UnregisterConsumer removes a consumer's position tracking. Idempotent.
func (b *Broker) UnregisterConsumer(consumerID string) {
	b.mu.Lock()
	delete(b.consumer, consumerID)
	b.mu.Unlock()
}

// Publish appends a message to the log, assigning it the next sequence
// number. Memory pressure is checked and opportunistically reclaimed before
// the capacity check, and a log at max_size is reclaimed once more before
// QueueFull is returned, so a broker sitting at max_size can still accept a
// publish if garbage collection frees room.
func (b *Broker) Publish(msg Message) (uint64, error) {
	if b.checkMemoryPressureLocked() {
		b.CollectGarbage()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrBrokerClosed
	}

	if len(b.entries) >= b.maxSize {
		b.collectGarbageLocked()
	}
	if len(b.entries) >= b.maxSize {
		return 0, &QueueFullError{MaxSize: b.maxSize}
	}

	seq := b.nextSeq
	b.nextSeq++

	msg.Sequence = seq
	msg.Timestamp = time.Now()

	b.entries = append(b.entries, entry{sequence: seq, message: &msg})
	b.messagesGauge.Update(int64(len(b.entries)))

	return seq, nil
}

// ReadNext returns the first message at or after the consumer's current
// position, advancing the position past it. Returns (nil, nil) when no
// message is available yet.
func (b *Broker) ReadNext(consumerID string) (*Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	pos, ok := b.consumer[consumerID]
	if !ok {
		return nil, ErrConsumerNotFound
	}

	for _, e := range b.entries {
		if e.sequence >= pos.currentSequence {
			pos.currentSequence = e.sequence + 1
			pos.lastReadTime = time.Now()
			return e.message, nil
		}
	}
	return nil, nil
}

// ReadBatch reads up to n messages, semantically n back-to-back ReadNext
// calls. Stops early (without error) when no more messages are available.
func (b *Broker) ReadBatch(consumerID string, n int) ([]*Message, error) {
	out := make([]*Message, 0, n)
	for i := 0; i < n; i++ {
		msg, err := b.ReadNext(consumerID)
		if err != nil {
			return out, err
		}
		if msg == nil {
			break
		}
		out = append(out, msg)
	}
	return out, nil
}

// MemoryStats returns the broker's best-effort memory accounting.
func (b *Broker) MemoryStats() MemoryStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var dataBytes int
	for _, e := range b.entries {
		dataBytes += e.message.approxSize()
	}
	const entryOverhead = 32 // approximate slice-entry + pointer overhead
	overhead := len(b.entries) * entryOverhead

	stats := MemoryStats{
		TotalMessages: len(b.entries),
		DataBytes:     dataBytes,
		OverheadBytes: overhead,
		TotalBytes:    dataBytes + overhead,
	}
	b.bytesGauge.Update(int64(stats.TotalBytes))
	return stats
}

// MinConsumerSequence returns the minimum current_sequence across all
// registered consumers, or (0, false) when there are none.
func (b *Broker) MinConsumerSequence() (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.minConsumerSequenceLocked()
}

func (b *Broker) minConsumerSequenceLocked() (uint64, bool) {
	if len(b.consumer) == 0 {
		return 0, false
	}
	var min uint64
	first := true
	for _, pos := range b.consumer {
		if first || pos.currentSequence < min {
			min = pos.currentSequence
			first = false
		}
	}
	return min, true
}

// CollectGarbage discards entries with sequence strictly less than the
// minimum consumer sequence. No-op (returns 0) when there are no consumers.
func (b *Broker) CollectGarbage() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.collectGarbageLocked()
}

func (b *Broker) collectGarbageLocked() int {
	min, ok := b.minConsumerSequenceLocked()
	if !ok {
		return 0
	}

	kept := b.entries[:0]
	removed := 0
	for _, e := range b.entries {
		if e.sequence >= min {
			kept = append(kept, e)
		} else {
			removed++
		}
	}
	b.entries = kept
	b.messagesGauge.Update(int64(len(b.entries)))
	return removed
}

// CheckMemoryPressure reports whether total_bytes has reached the
// configured threshold. Always false when no threshold is configured.
func (b *Broker) CheckMemoryPressure() bool {
	return b.checkMemoryPressureLocked()
}

func (b *Broker) checkMemoryPressureLocked() bool {
	if b.memoryThreshold <= 0 {
		return false
	}
	stats := b.MemoryStats()
	return int64(stats.TotalBytes) >= b.memoryThreshold
}

// HeadSequence returns the next sequence number that will be assigned.
func (b *Broker) HeadSequence() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// Size returns the number of entries currently retained in the log.
func (b *Broker) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// ConsumerPosition returns a consumer's current_sequence, or (0, false) if
// the consumer is unknown.
func (b *Broker) ConsumerPosition(consumerID string) (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pos, ok := b.consumer[consumerID]
	if !ok {
		return 0, false
	}
	return pos.currentSequence, true
}

// LogMetrics writes a one-shot snapshot of every gauge registered against
// registry (broker message/byte counts, scanner manager active-scanner
// count) to logger at info level. Intended for a shutdown-time summary.
func LogMetrics(registry metrics.Registry, logger *zerolog.Logger) {
	registry.Each(func(name string, metric any) {
		gauge, ok := metric.(metrics.Gauge)
		if !ok {
			return
		}
		logger.Info().Str("metric", name).Int64("value", gauge.Value()).Msg("metrics: snapshot")
	})
}
