package revision

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// DateRange bounds commits by author timestamp; a zero Since/Until leaves
// that bound unchecked.
type DateRange struct {
	Since time.Time
	Until time.Time
}

// AuthorFilter glob-matches a commit's author name or email. Include acts
// as OR, Exclude as AND-NOT.
type AuthorFilter struct {
	Include []string
	Exclude []string
}

// PathFilter glob-matches commit-relative file paths.
type PathFilter struct {
	Include []string
	Exclude []string
}

// QueryParams parameterises a scanner task's commit traversal.
type QueryParams struct {
	GitRef       string
	DateRange    *DateRange
	Authors      AuthorFilter
	FilePaths    PathFilter
	Extensions   []string
	MaxCommits   int
	// MergeCommits is tri-state: nil or true means include (the default);
	// false means commits with >=2 parents are skipped.
	MergeCommits *bool
}

// NewDefaultQueryParams returns the zero-filter query: traverse from HEAD,
// no date/author/path/extension restriction, no commit cap, merges
// included.
func NewDefaultQueryParams() QueryParams {
	return QueryParams{GitRef: "HEAD"}
}

// Validate rejects structurally invalid parameters before any scan begins.
// An absolute path in a file_paths pattern is rejected. max_commits must
// be non-negative; zero is valid and means "emit no CommitData".
func (q QueryParams) Validate() error {
	if q.MaxCommits < 0 {
		return &ValidationError{Field: "max_commits", Reason: "must be >= 0"}
	}
	for _, p := range q.FilePaths.Include {
		if path.IsAbs(p) {
			return &ValidationError{Field: "file_paths.include", Reason: fmt.Sprintf("pattern %q must be relative", p)}
		}
	}
	for _, p := range q.FilePaths.Exclude {
		if path.IsAbs(p) {
			return &ValidationError{Field: "file_paths.exclude", Reason: fmt.Sprintf("pattern %q must be relative", p)}
		}
	}
	return nil
}

// CommitMeta is the subset of commit metadata the filter predicates need,
// kept independent of go-git's object.Commit so this package has no
// dependency on the scanner's repository handle.
type CommitMeta struct {
	NumParents  int
	AuthorName  string
	AuthorEmail string
	Timestamp   time.Time
}

// Allows evaluates the per-commit filters in a fixed order: merge policy,
// then date, then author. max_commits is enforced by the caller via its
// own counter, not here.
func (q QueryParams) Allows(c CommitMeta) bool {
	if q.MergeCommits != nil && !*q.MergeCommits && c.NumParents >= 2 {
		return false
	}
	if q.DateRange != nil {
		if !q.DateRange.Since.IsZero() && c.Timestamp.Before(q.DateRange.Since) {
			return false
		}
		if !q.DateRange.Until.IsZero() && c.Timestamp.After(q.DateRange.Until) {
			return false
		}
	}
	return q.authorsAllow(c.AuthorName, c.AuthorEmail)
}

func (q QueryParams) authorsAllow(name, email string) bool {
	if len(q.Authors.Include) > 0 {
		matched := false
		for _, p := range q.Authors.Include {
			if authorMatches(p, name, email) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, p := range q.Authors.Exclude {
		if authorMatches(p, name, email) {
			return false
		}
	}
	return true
}

// completeAuthorGlob applies the auto-completion rules: a literal "@"
// becomes "*@*"; a trailing "@" becomes "<x>@*"; a leading "@" becomes
// "*@<x>".
func completeAuthorGlob(pattern string) string {
	switch {
	case pattern == "@":
		return "*@*"
	case strings.HasPrefix(pattern, "@"):
		return "*" + pattern
	case strings.HasSuffix(pattern, "@"):
		return pattern + "*"
	default:
		return pattern
	}
}

func authorMatches(pattern, name, email string) bool {
	g := strings.ToLower(completeAuthorGlob(pattern))
	if ok, _ := doublestar.Match(g, strings.ToLower(name)); ok {
		return true
	}
	ok, _ := doublestar.Match(g, strings.ToLower(email))
	return ok
}

// CompiledQuery precompiles a QueryParams' path/extension globs so
// per-file matching during a scan doesn't recompile on every call.
type CompiledQuery struct {
	QueryParams
	pathInclude *ignore.GitIgnore
	pathExclude *ignore.GitIgnore
}

// Compile precompiles q's path filters. Call once per scan.
func Compile(q QueryParams) CompiledQuery {
	cq := CompiledQuery{QueryParams: q}
	if len(q.FilePaths.Include) > 0 {
		cq.pathInclude = ignore.CompileIgnoreLines(q.FilePaths.Include...)
	}
	if len(q.FilePaths.Exclude) > 0 {
		cq.pathExclude = ignore.CompileIgnoreLines(q.FilePaths.Exclude...)
	}
	return cq
}

// PathAllows reports whether a commit-relative path passes the
// file_paths and extensions filters. These gate FileChange emission only,
// never CommitData.
func (c CompiledQuery) PathAllows(relPath string) bool {
	if len(c.Extensions) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(relPath), "."))
		found := false
		for _, e := range c.Extensions {
			if strings.ToLower(e) == ext {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if c.pathInclude != nil && !c.pathInclude.MatchesPath(relPath) {
		return false
	}
	if c.pathExclude != nil && c.pathExclude.MatchesPath(relPath) {
		return false
	}
	return true
}
