// Package scanevents defines the tagged-union scan-event schema scanners
// publish to the broker: RepositoryData, ScanStarted, CommitData,
// FileChange, ScanCompleted, ScanError.
package scanevents

import "time"

// ChangeType enumerates the kinds of per-file change a commit can carry.
type ChangeType string

const (
	ChangeAdded    ChangeType = "Added"
	ChangeModified ChangeType = "Modified"
	ChangeDeleted  ChangeType = "Deleted"
	ChangeRenamed  ChangeType = "Renamed"
	ChangeCopied   ChangeType = "Copied"
)

// CommitInfo describes one traversed commit.
type CommitInfo struct {
	Hash           string    `json:"hash"`
	ShortHash      string    `json:"short_hash"`
	AuthorName     string    `json:"author_name"`
	AuthorEmail    string    `json:"author_email"`
	CommitterName  string    `json:"committer_name"`
	CommitterEmail string    `json:"committer_email"`
	Timestamp      time.Time `json:"timestamp"`
	Message        string    `json:"message"`
	ParentHashes   []string  `json:"parent_hashes"`
	Insertions     int       `json:"insertions"`
	Deletions      int       `json:"deletions"`
}

// FileChangeData describes one changed path within a commit.
type FileChangeData struct {
	ChangeType        ChangeType `json:"change_type"`
	OldPath           string     `json:"old_path,omitempty"`
	NewPath           string     `json:"new_path"`
	Insertions        int        `json:"insertions"`
	Deletions         int        `json:"deletions"`
	IsBinary          bool       `json:"is_binary"`
	CheckoutPath      string     `json:"checkout_path,omitempty"`
	FileModifiedEpoch int64      `json:"file_modified_epoch,omitempty"`
	FileMode          string     `json:"file_mode,omitempty"`
}

// Duration is the fixed {secs, nanos} wire layout used for all durations
// in the scan-event schema.
type Duration struct {
	Secs  int64 `json:"secs"`
	Nanos int32 `json:"nanos"`
}

// DurationFromStd converts a time.Duration into the wire layout.
func DurationFromStd(d time.Duration) Duration {
	return Duration{Secs: int64(d / time.Second), Nanos: int32(d % time.Second)}
}

// ScanStats accumulates over a scanner's lifetime and is carried by the
// terminal ScanCompleted event.
type ScanStats struct {
	TotalCommits      int      `json:"total_commits"`
	TotalFilesChanged int      `json:"total_files_changed"`
	TotalInsertions   int      `json:"total_insertions"`
	TotalDeletions    int      `json:"total_deletions"`
	ScanDuration      Duration `json:"scan_duration"`
}

// RepositoryInfo carries repository metadata plus the applied query
// parameters, for reproducibility. AppliedQuery is left as `any` rather
// than a concrete revision.QueryParams to avoid a package dependency
// cycle; the scanner task (internal/scanner/task.go) populates it with the
// query the scan was run with.
type RepositoryInfo struct {
	CanonicalID   string `json:"canonical_id"`
	RemoteURL     string `json:"remote_url,omitempty"`
	LocalPath     string `json:"local_path,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
	AppliedQuery  any    `json:"applied_query,omitempty"`
}

// Message type discriminators; these must match the variant names exactly
// since they double as the broker's message_type tag.
const (
	TypeRepositoryData = "RepositoryData"
	TypeScanStarted    = "ScanStarted"
	TypeCommitData     = "CommitData"
	TypeFileChange     = "FileChange"
	TypeScanCompleted  = "ScanCompleted"
	TypeScanError      = "ScanError"
)

// Event is implemented by every scan-event variant.
type Event interface {
	MessageType() string
}

// RepositoryData is published once per scan (when requirements request it)
// before ScanStarted.
type RepositoryData struct {
	ScannerID      string         `json:"scanner_id"`
	RepositoryData RepositoryInfo `json:"repository_data"`
	Timestamp      time.Time      `json:"timestamp"`
}

func (RepositoryData) MessageType() string { return TypeRepositoryData }

// ScanStarted marks the beginning of a scan; repository_data is repeated
// so consumers that missed RepositoryData still have context.
type ScanStarted struct {
	ScannerID      string         `json:"scanner_id"`
	RepositoryData RepositoryInfo `json:"repository_data"`
	Timestamp      time.Time      `json:"timestamp"`
}

func (ScanStarted) MessageType() string { return TypeScanStarted }

// CommitData is published once per traversed commit, in reverse-
// chronological order.
type CommitData struct {
	ScannerID  string     `json:"scanner_id"`
	CommitInfo CommitInfo `json:"commit_info"`
	Timestamp  time.Time  `json:"timestamp"`
}

func (CommitData) MessageType() string { return TypeCommitData }

// FileChange is published per changed path in a commit when file-change
// data is required, immediately following that commit's CommitData.
type FileChange struct {
	ScannerID  string         `json:"scanner_id"`
	FilePath   string         `json:"file_path"`
	ChangeData FileChangeData `json:"change_data"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (FileChange) MessageType() string { return TypeFileChange }

// ScanCompleted is the terminal success marker.
type ScanCompleted struct {
	ScannerID string    `json:"scanner_id"`
	Stats     ScanStats `json:"stats"`
	Timestamp time.Time `json:"timestamp"`
}

func (ScanCompleted) MessageType() string { return TypeScanCompleted }

// ScanError is the terminal failure marker.
type ScanError struct {
	ScannerID string    `json:"scanner_id"`
	Error     string    `json:"error"`
	Context   string    `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (ScanError) MessageType() string { return TypeScanError }
