package scanner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/rs/zerolog"

	"github.com/repostats/repostats/internal/notify"
	"github.com/repostats/repostats/internal/queue"
	"github.com/repostats/repostats/internal/revision"
	"github.com/repostats/repostats/internal/scanevents"
	"github.com/repostats/repostats/internal/scanner/checkout"
)

// Manager normalises and canonicalises repository specifiers, deduplicates
// them, allocates scanner ids, creates broker publishers, owns every Task,
// and drives them concurrently.
type Manager struct {
	broker    *queue.Broker
	notifier  notify.Publisher
	checkouts *checkout.Manager
	logger    *zerolog.Logger

	mu        sync.Mutex
	canonical map[string]struct{} // process-wide set of in-use canonical ids
	tasks     map[string]*Task    // scanner id -> task

	activeCount atomic.Int64
	activeGauge metrics.Gauge
}

// NewManager constructs an empty Manager bound to broker. notifier and
// checkouts may be nil.
func NewManager(broker *queue.Broker, notifier notify.Publisher, checkouts *checkout.Manager, logger *zerolog.Logger) *Manager {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Manager{
		broker:      broker,
		notifier:    notifier,
		checkouts:   checkouts,
		logger:      logger,
		canonical:   make(map[string]struct{}),
		tasks:       make(map[string]*Task),
		activeGauge: metrics.GetOrRegisterGauge("repostats.scanner.active", metrics.DefaultRegistry),
	}
}

// ActiveScanners returns the number of tasks currently mid-scan (between
// StartScanning launching their goroutine and it returning).
func (m *Manager) ActiveScanners() int64 {
	return m.activeCount.Load()
}

// AddRepository implements the Scanner creation algorithm: normalise,
// open, compute canonical id, race-free insert-if-absent, derive scanner
// id, create the bound publisher, construct the task.
func (m *Manager) AddRepository(specifier string, requirements Requirements) (*Task, error) {
	normalized, err := NormalizeSpecifier(specifier)
	if err != nil {
		return nil, errors.Wrap(err, "normalise repository specifier")
	}

	repo, err := openRepository(normalized)
	if err != nil {
		return nil, err
	}

	canonicalID, err := CanonicalID(repo, normalized)
	if err != nil {
		return nil, errors.Wrap(err, "compute canonical repository id")
	}

	if err := m.reserve(canonicalID); err != nil {
		return nil, err
	}

	scannerID := ScannerID(canonicalID)
	publisher := queue.NewPublisher(m.broker, scannerID)
	task := NewTask(scannerID, canonicalID, normalized, repo, requirements, publisher, m.notifier, m.checkouts)

	m.mu.Lock()
	m.tasks[scannerID] = task
	m.mu.Unlock()

	m.logger.Info().Str("scanner_id", scannerID).Str("canonical_id", canonicalID).Msg("scanner: repository registered")
	return task, nil
}

// reserve atomically inserts canonicalID into the in-use set, returning
// ErrDuplicateRepository if it is already present. The check and insert
// happen under a single critical section — do not unlock between check
// and insert.
func (m *Manager) reserve(canonicalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.canonical[canonicalID]; exists {
		return errors.Wrapf(ErrDuplicateRepository, "%s", canonicalID)
	}
	m.canonical[canonicalID] = struct{}{}
	return nil
}

// Tasks returns a snapshot of every task the manager currently owns.
func (m *Manager) Tasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out
}

// Task returns the task registered under scannerID, if any.
func (m *Manager) Task(scannerID string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[scannerID]
	return t, ok
}

// StartScanning runs every owned task concurrently with query, returning
// once all have finished or ctx is cancelled; cancellation flows through
// ctx rather than a separate shutdown broadcast, since every Task
// operation already accepts and honors a context.
func (m *Manager) StartScanning(ctx context.Context, query revision.QueryParams, onMessage func(scannerID string, event scanevents.Event) error) map[string]error {
	tasks := m.Tasks()
	results := make(map[string]error, len(tasks))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for _, task := range tasks {
		task := task
		wg.Add(1)
		m.activeGauge.Update(m.activeCount.Add(1))
		go func() {
			defer wg.Done()
			defer m.activeGauge.Update(m.activeCount.Add(-1))
			err := task.ScanCommitsWithQuery(ctx, query, func(ev scanevents.Event) error {
				if onMessage == nil {
					return nil
				}
				return onMessage(task.scannerID, ev)
			})
			resultsMu.Lock()
			results[task.scannerID] = err
			resultsMu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// CleanupCheckouts removes every checkout directory created during the
// run, if a checkout manager is configured.
func (m *Manager) CleanupCheckouts() []error {
	if m.checkouts == nil {
		return nil
	}
	return m.checkouts.CleanupAll()
}
