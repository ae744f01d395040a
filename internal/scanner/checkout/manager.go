// Package checkout implements the Checkout Manager: it renders a path
// template to a target directory, hands the directory off to a
// caller-supplied extractor to populate, and tracks the resulting
// directory for later cleanup.
package checkout

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultCheckoutSubdir = "repostats-checkout"

// Extractor populates targetDir (already created) and reports how many
// files it wrote. The Scanner Task supplies this as a closure bound to
// one commit sha.
type Extractor func(targetDir string) (count int, err error)

// Manager owns the set of checkout directories created during a run.
type Manager struct {
	template       string
	keepFiles      bool
	forceOverwrite bool
	logger         *zerolog.Logger

	mu      sync.Mutex
	records map[string]string // id -> directory path
}

func NewManager(template string, keepFiles, forceOverwrite bool, logger *zerolog.Logger) *Manager {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Manager{
		template:       template,
		keepFiles:      keepFiles,
		forceOverwrite: forceOverwrite,
		logger:         logger,
		records:        make(map[string]string),
	}
}

// targetDir renders m.template against vars, or falls back to
// <tmpdir>/repostats-checkout/<commit-id> when no template is configured.
func (m *Manager) targetDir(vars TemplateVars) string {
	if m.template == "" {
		return filepath.Join(os.TempDir(), defaultCheckoutSubdir, vars.CommitID)
	}
	return Render(m.template, vars)
}

// CreateCheckoutDir renders the target directory for vars, creates it
// (erroring with ErrDirectoryExists if it is already present and
// force_overwrite is not set), invokes extract to populate it, and records
// the directory for later cleanup.
func (m *Manager) CreateCheckoutDir(vars TemplateVars, extract Extractor) (path string, e error) {
	target := m.targetDir(vars)

	if _, err := os.Stat(target); err == nil {
		if !m.forceOverwrite {
			e = errors.Wrapf(ErrDirectoryExists, "%s", target)
			return
		}
		if err := os.RemoveAll(target); err != nil {
			e = &Error{Op: "remove existing", Path: target, Cause: err}
			return
		}
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		e = &Error{Op: "mkdir", Path: target, Cause: err}
		return
	}

	if extract != nil {
		if _, err := extract(target); err != nil {
			e = &Error{Op: "extract", Path: target, Cause: err}
			return
		}
	}

	id := vars.CommitID
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	m.records[id] = target
	m.mu.Unlock()

	m.logger.Debug().Str("path", target).Str("id", id).Msg("checkout: directory created")
	path = target
	return
}

// Cleanup removes id's directory and drops its record, unless keep_files
// is set (in which case the record is dropped without touching disk).
func (m *Manager) Cleanup(id string) error {
	m.mu.Lock()
	path, ok := m.records[id]
	if ok {
		delete(m.records, id)
	}
	m.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrRecordNotFound, "%s", id)
	}
	if m.keepFiles {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return &Error{Op: "cleanup", Path: path, Cause: err}
	}
	return nil
}

// CleanupAll folds Cleanup over every remaining record, returning every
// error encountered rather than stopping at the first.
func (m *Manager) CleanupAll() []error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.Cleanup(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Close is a best-effort CleanupAll for use in deferred shutdown paths.
func (m *Manager) Close(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	for _, err := range m.CleanupAll() {
		logger.Warn().Err(err).Msg("checkout: cleanup on close failed")
	}
}
