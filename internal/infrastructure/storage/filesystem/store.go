// Package filesystem stores collector artifacts under a local directory.
package filesystem

import (
	"context"
	stdliberrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// Store maps artifact keys to files below Root.  Keys use forward slashes.
type Store struct {
	root   string
	logger logging.Logger
}

// NewStore creates root if needed.
func NewStore(root string, log logging.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactWrite, "cannot create artifact directory").WithDetail(root)
	}
	return &Store{root: root, logger: logging.OrNop(log)}, nil
}

func (s *Store) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.InvalidParam("artifact key escapes the store root").WithDetail(key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes data atomically via a temp file and rename.
func (s *Store) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeArtifactWrite, "cannot create artifact directory").WithDetail(key)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeArtifactWrite, "cannot create temp file").WithDetail(key)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeArtifactWrite, "artifact write failed").WithDetail(key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeArtifactWrite, "artifact write failed").WithDetail(key)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeArtifactWrite, "artifact rename failed").WithDetail(key)
	}
	return nil
}

// Get reads the file behind key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if stdliberrors.Is(err, fs.ErrNotExist) {
		return nil, errors.New(errors.ErrCodeArtifactNotFound, "artifact not found").WithDetail(key)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactRead, "artifact read failed").WithDetail(key)
	}
	return data, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if stdliberrors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeArtifactRead, "artifact stat failed").WithDetail(key)
}

// List returns the keys starting with prefix in lexical order.  Temp files
// from in-flight writes are skipped.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactRead, "artifact listing failed").WithDetail(prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes key.  Removing a missing key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !stdliberrors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, errors.ErrCodeArtifactWrite, "artifact delete failed").WithDetail(key)
	}
	return nil
}

// Location names the backing directory.
func (s *Store) Location() string {
	return s.root
}
