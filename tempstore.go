package realhttp

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// tempStore manages the library-managed temp directory that largeData
// downloads and partial-download resume state are persisted under: a
// stable, caller-independent directory rather than files scattered
// throughout the working tree.
type tempStore struct {
	dir string
}

func newTempStore(dir string) (*tempStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "realhttp")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, NewError(CategoryInternal, "creating library temp directory", err)
	}

	return &tempStore{dir: dir}, nil
}

// finalPath returns the deterministic, stable path for a completed download
// of the given request, keyed by a hash of method+URL.
func (s *tempStore) finalPath(method Method, url string) string {
	sum := sha256.Sum256([]byte(string(method) + " " + url))

	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".download")
}

// stagingPath returns a fresh, collision-free path for an in-progress
// attempt's partial bytes. A uuid suffix (rather than the deterministic
// hash alone) keeps concurrent attempts against the same URL from writing
// over one another mid-flight — only on success is the result moved to
// finalPath.
func (s *tempStore) stagingPath(method Method, url string) string {
	return s.finalPath(method, url) + "." + uuid.NewString() + ".part"
}

// promote moves a completed staging file to its final, stable path.
func (s *tempStore) promote(stagingPath, finalPath string) error {
	if err := os.Rename(stagingPath, finalPath); err != nil {
		return NewError(CategoryInternal, "promoting staged download", err)
	}

	return nil
}
