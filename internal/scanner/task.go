// Package scanner implements the Scanner Task and Scanner Manager: the
// per-repository commit-traversal engine and the component that owns,
// dedupes, and concurrently drives a fleet of them. Grounded on the
// teacher's pkg/scanner/scanner.go (goroutine-per-concern shape,
// channel-driven result delivery) and the original scanner/task/*.rs
// module, re-expressed around go-git instead of gix.
package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"

	"github.com/repostats/repostats/internal/notify"
	"github.com/repostats/repostats/internal/queue"
	"github.com/repostats/repostats/internal/revision"
	"github.com/repostats/repostats/internal/scanevents"
	"github.com/repostats/repostats/internal/scanner/checkout"
)

// State is the Scanner Task lifecycle: Idle -> Scanning -> {Completed |
// Errored}. Scanning is entered at first publish and is terminal on
// either completion marker.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateCompleted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	case StateCompleted:
		return "Completed"
	case StateErrored:
		return "Errored"
	default:
		return "Unknown"
	}
}

const publishChunkSize = 50

// Task owns one opened repository handle, one broker publisher bound to
// its scanner id, and an immutable requirements set.
type Task struct {
	scannerID      string
	canonicalID    string
	repositoryPath string
	repo           *git.Repository
	requirements   Requirements
	publisher      *queue.Publisher
	notifier       notify.Publisher
	checkouts      *checkout.Manager

	state atomic.Int32

	statsMu sync.Mutex
	stats   scanevents.ScanStats
}

// NewTask constructs a Task in the Idle state. checkouts may be nil when no
// checkout template is configured; FILE_CONTENT's checkout_path population
// is then simply skipped.
func NewTask(scannerID, canonicalID, repositoryPath string, repo *git.Repository, requirements Requirements, publisher *queue.Publisher, notifier notify.Publisher, checkouts *checkout.Manager) *Task {
	return &Task{
		scannerID:      scannerID,
		canonicalID:    canonicalID,
		repositoryPath: repositoryPath,
		repo:           repo,
		requirements:   requirements.Closure(),
		publisher:      publisher,
		notifier:       notifier,
		checkouts:      checkouts,
	}
}

// State reports the task's current lifecycle state.
func (t *Task) State() State {
	return State(t.state.Load())
}

func (t *Task) transition(to State) {
	t.state.Store(int32(to))
}

// ResolveStartPoint implements §4.5 resolution against this task's
// repository handle.
func (t *Task) ResolveStartPoint(spec string) (string, error) {
	hash, err := revision.Resolve(t.repo, spec)
	if err != nil {
		return "", &RepositoryError{Op: "resolve_revision", Detail: spec, Cause: errors.Wrapf(err, ErrMsgResolveRevision, t.repositoryPath)}
	}
	return hash, nil
}

// ScanCommitsWithQuery is the streaming entry point: it walks commit
// history reverse-chronologically, applying query's filters,
// and invokes onMessage for every scan-event produced, in addition to
// publishing each onward through the broker. onMessage may be nil.
func (t *Task) ScanCommitsWithQuery(ctx context.Context, query revision.QueryParams, onMessage func(scanevents.Event) error) error {
	if err := query.Validate(); err != nil {
		return err
	}
	compiled := revision.Compile(query)
	start := time.Now()

	startHash, err := t.ResolveStartPoint(query.GitRef)
	if err != nil {
		return t.fail(ctx, onMessage, err)
	}

	t.transition(StateScanning)
	repoInfo := t.buildRepositoryInfo(query)

	var opening []scanevents.Event
	if t.requirements.Has(ReqRepositoryInfo) {
		opening = append(opening, scanevents.RepositoryData{
			ScannerID:      t.scannerID,
			RepositoryData: repoInfo,
			Timestamp:      time.Now(),
		})
	}
	opening = append(opening, scanevents.ScanStarted{
		ScannerID:      t.scannerID,
		RepositoryData: repoInfo,
		Timestamp:      time.Now(),
	})
	t.notifyEvent(ctx, notify.ScanStarted, "scan started")

	if err := t.publishMessages(ctx, opening, onMessage); err != nil {
		return t.fail(ctx, onMessage, err)
	}

	if query.MaxCommits == 0 {
		return t.complete(ctx, onMessage, start)
	}

	iter, err := commitsFrom(t.repo, plumbing.NewHash(startHash))
	if err != nil {
		return t.fail(ctx, onMessage, &RepositoryError{Op: "traverse_commits", Detail: t.repositoryPath, Cause: errors.Wrapf(err, ErrMsgTraverseCommits, t.repositoryPath)})
	}

	emitted := 0
	walkErr := iter.ForEach(func(commit *object.Commit) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		meta := revision.CommitMeta{
			NumParents:  commit.NumParents(),
			AuthorName:  commit.Author.Name,
			AuthorEmail: commit.Author.Email,
			Timestamp:   commit.Author.When,
		}
		if !query.Allows(meta) {
			return nil
		}

		batch, err := t.buildCommitBatch(ctx, commit, compiled)
		if err != nil {
			return err
		}
		emitted++
		t.notifyEvent(ctx, notify.ScanProgress, fmt.Sprintf("processed commit %s", commit.Hash.String()[:shortHashLength]))
		if err := t.publishMessages(ctx, batch, onMessage); err != nil {
			return err
		}
		if query.MaxCommits > 0 && emitted >= query.MaxCommits {
			return errStopCommitWalk
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errStopCommitWalk) {
		return t.fail(ctx, onMessage, &RepositoryError{Op: "traverse_commits", Detail: t.repositoryPath, Cause: errors.Wrapf(walkErr, ErrMsgTraverseCommits, t.repositoryPath)})
	}

	return t.complete(ctx, onMessage, start)
}

// errStopCommitWalk halts commit iteration once max_commits has been
// reached. Mirrors the errStopIter sentinel idiom used to bound
// object.CommitIter.ForEach walks elsewhere in the corpus.
var errStopCommitWalk = errors.New("stop commit walk: max_commits reached")

// buildCommitBatch constructs the CommitData (and, when requested,
// FileChange) events for a single commit, updating accumulated stats.
func (t *Task) buildCommitBatch(ctx context.Context, commit *object.Commit, compiled revision.CompiledQuery) ([]scanevents.Event, error) {
	info, changes, err := commitInfo(commit)
	if err != nil {
		return nil, err
	}

	t.statsMu.Lock()
	t.stats.TotalCommits++
	t.stats.TotalInsertions += info.Insertions
	t.stats.TotalDeletions += info.Deletions
	t.statsMu.Unlock()

	batch := []scanevents.Event{scanevents.CommitData{
		ScannerID:  t.scannerID,
		CommitInfo: info,
		Timestamp:  time.Now(),
	}}

	// File-change diffs are only well-defined against a single parent;
	// merge commits (>1 parent) contribute CommitData but no FileChange,
	// per the first-parent-only diff this package computes.
	if !t.requirements.Has(ReqFileChanges) || commit.NumParents() > 1 {
		return batch, nil
	}

	files, err := fileChanges(changes)
	if err != nil {
		return batch, nil
	}

	baseDir := ""
	if t.requirements.Has(ReqFileContent) && t.checkouts != nil {
		t.notifyEvent(ctx, notify.ScanProgress, "materializing checkout for "+info.ShortHash)
		dir, extractErr := t.materializeCommit(info.Hash)
		if extractErr == nil {
			baseDir = dir
		}
	}

	for _, fc := range files {
		if !compiled.PathAllows(fc.NewPath) {
			continue
		}
		if baseDir != "" {
			fc.CheckoutPath = filepath.Join(baseDir, fc.NewPath)
		}
		t.statsMu.Lock()
		t.stats.TotalFilesChanged++
		t.statsMu.Unlock()
		batch = append(batch, scanevents.FileChange{
			ScannerID:  t.scannerID,
			FilePath:   fc.NewPath,
			ChangeData: fc,
			Timestamp:  time.Now(),
		})
	}
	return batch, nil
}

// materializeCommit asks the checkout manager to render a directory for
// commit sha and populate it via ExtractCommitFilesToDirectory.
func (t *Task) materializeCommit(sha string) (string, error) {
	sum := sha256.Sum256([]byte(sha))
	vars := checkout.TemplateVars{
		CommitID: sha,
		SHA256:   hex.EncodeToString(sum[:]),
		Scanner:  t.scannerID,
		Repo:     t.canonicalID,
	}
	if head, err := t.repo.Head(); err == nil {
		vars.Branch = head.Name().Short()
	}
	return t.checkouts.CreateCheckoutDir(vars, func(targetDir string) (int, error) {
		return t.ExtractCommitFilesToDirectory(sha, targetDir, false)
	})
}

// publishMessages serialises events in chunks of 50 with a cooperative
// yield between chunks, publishing each through the broker and, if set,
// onMessage.
func (t *Task) publishMessages(ctx context.Context, events []scanevents.Event, onMessage func(scanevents.Event) error) error {
	for i := 0; i < len(events); i += publishChunkSize {
		end := i + publishChunkSize
		if end > len(events) {
			end = len(events)
		}
		for _, ev := range events[i:end] {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			messageType, payload, err := scanevents.Encode(ev)
			if err != nil {
				return errors.Wrap(err, ErrMsgPublishScanMessage)
			}
			if _, err := t.publisher.Publish(messageType, json.RawMessage(payload)); err != nil {
				return errors.Wrap(err, ErrMsgPublishScanMessage)
			}
			if onMessage != nil {
				if err := onMessage(ev); err != nil {
					return err
				}
			}
		}
		if end < len(events) {
			runtime.Gosched()
		}
	}
	return nil
}

// ExtractCommitFilesToDirectory materialises sha's tree at targetDir,
// returning the number of files written. Existing files are left in place
// unless overrideMode is set.
func (t *Task) ExtractCommitFilesToDirectory(sha, targetDir string, overrideMode bool) (int, error) {
	commit, err := t.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return 0, errors.Wrapf(err, ErrMsgExtractCheckout, sha)
	}
	tree, err := commit.Tree()
	if err != nil {
		return 0, errors.Wrapf(err, ErrMsgExtractCheckout, sha)
	}

	count := 0
	walkErr := tree.Files().ForEach(func(f *object.File) error {
		dest := filepath.Join(targetDir, f.Name)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if _, statErr := os.Stat(dest); statErr == nil && !overrideMode {
			return nil
		}

		r, err := f.Reader()
		if err != nil {
			return err
		}
		defer r.Close()

		out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer out.Close()

		if _, err := io.Copy(out, r); err != nil {
			return err
		}
		count++
		return nil
	})
	if walkErr != nil {
		return count, errors.Wrapf(walkErr, ErrMsgExtractCheckout, sha)
	}
	return count, nil
}

// ReadCurrentFileContent returns relPath's content as stored in sha's tree
// object, i.e. true historical content rather than a working-tree read —
// go-git makes this no harder than the latter, so there is no reason to
// settle for the lesser option the original took as a first cut.
func (t *Task) ReadCurrentFileContent(relPath, sha string) (string, error) {
	commit, err := t.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return "", errors.Wrapf(ErrFileNotFoundAtRevision, "%s at %s (%s)", relPath, sha, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return "", errors.Wrapf(err, ErrMsgReadFileContent, relPath, sha)
	}
	file, err := tree.File(relPath)
	if err != nil {
		return "", errors.Wrapf(ErrFileNotFoundAtRevision, "%s at %s", relPath, sha)
	}
	content, err := file.Contents()
	if err != nil {
		return "", errors.Wrapf(err, ErrMsgReadFileContent, relPath, sha)
	}
	return content, nil
}

func (t *Task) buildRepositoryInfo(query revision.QueryParams) scanevents.RepositoryInfo {
	info := scanevents.RepositoryInfo{
		CanonicalID:  t.canonicalID,
		LocalPath:    t.repositoryPath,
		AppliedQuery: query,
	}
	if remote, err := t.repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			info.RemoteURL = urls[0]
		}
	}
	if head, err := t.repo.Head(); err == nil {
		info.DefaultBranch = head.Name().Short()
	}
	return info
}

func (t *Task) complete(ctx context.Context, onMessage func(scanevents.Event) error, start time.Time) error {
	t.statsMu.Lock()
	stats := t.stats
	t.statsMu.Unlock()
	stats.ScanDuration = scanevents.DurationFromStd(time.Since(start))

	completed := scanevents.ScanCompleted{
		ScannerID: t.scannerID,
		Stats:     stats,
		Timestamp: time.Now(),
	}
	if err := t.publishMessages(ctx, []scanevents.Event{completed}, onMessage); err != nil {
		return t.fail(ctx, onMessage, err)
	}
	t.transition(StateCompleted)
	t.notifyEvent(ctx, notify.ScanComplete, "scan completed")
	return nil
}

// fail transitions the task to Errored, publishes the terminal ScanError
// scan-event (best-effort) to the broker and, if set, onMessage, and
// returns the original error. ScanCompleted is never emitted once a fatal
// error has occurred.
func (t *Task) fail(ctx context.Context, onMessage func(scanevents.Event) error, cause error) error {
	t.transition(StateErrored)
	t.notifyEvent(ctx, notify.ScanErr, cause.Error())

	errEvent := scanevents.ScanError{
		ScannerID: t.scannerID,
		Error:     cause.Error(),
		Timestamp: time.Now(),
	}
	_, payload, encErr := scanevents.Encode(errEvent)
	if encErr == nil {
		_, _ = t.publisher.Publish(scanevents.TypeScanError, json.RawMessage(payload))
	}
	if onMessage != nil {
		_ = onMessage(errEvent)
	}
	return cause
}

func (t *Task) notifyEvent(ctx context.Context, typ, message string) {
	if t.notifier == nil {
		return
	}
	_ = t.notifier.Publish(ctx, notify.NewScanEvent(typ, t.scannerID, message))
}
