package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/pkg/errors"
)

const scannerIDLength = 16 // hex characters

// NormalizeSpecifier canonicalises a repository specifier: URL-like
// inputs (`<scheme>://…`) have their scheme, any `user@` prefix, and any
// trailing `.git` stripped, returning the `host/path` form; local paths
// are absolutised and have a trailing `.git` component stripped.
func NormalizeSpecifier(spec string) (string, error) {
	if spec == "" {
		return "", errors.New("repository specifier must not be empty")
	}

	if idx := strings.Index(spec, "://"); idx >= 0 {
		rest := spec[idx+len("://"):]
		host := rest
		if slash := strings.Index(rest, "/"); slash >= 0 {
			host = rest[:slash]
		}
		if at := strings.Index(host, "@"); at >= 0 {
			rest = rest[at+1:]
		}
		rest = strings.TrimSuffix(rest, ".git")
		return rest, nil
	}

	abs, err := filepath.Abs(spec)
	if err != nil {
		return "", errors.Wrapf(err, "absolutise repository path %q", spec)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		abs = resolved
	}
	abs = strings.TrimSuffix(abs, ".git")
	return abs, nil
}

// CanonicalID returns the repository's canonical id: the
// `remote.origin.url` if the repository has one configured, else the
// normalised absolute path of localPath.
func CanonicalID(repo *git.Repository, localPath string) (string, error) {
	if repo != nil {
		remote, err := repo.Remote("origin")
		if err == nil {
			urls := remote.Config().URLs
			if len(urls) > 0 && urls[0] != "" {
				normalized, nerr := NormalizeSpecifier(urls[0])
				if nerr == nil {
					return normalized, nil
				}
				return urls[0], nil
			}
		}
	}
	return NormalizeSpecifier(localPath)
}

// ScannerID derives the 16-hex-character scanner id from a canonical
// repository id: the first 16 hex characters of the canonical id's
// SHA-256 digest. Two inputs with the same canonical id always produce
// the same scanner id.
func ScannerID(canonicalID string) string {
	sum := sha256.Sum256([]byte(canonicalID))
	return hex.EncodeToString(sum[:])[:scannerIDLength]
}
