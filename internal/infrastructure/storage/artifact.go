// Package storage defines where collector artifacts and the reference
// dataset live.  Backends are the local filesystem and MinIO.
package storage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/storage/filesystem"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// ArtifactStore is a flat key/value blob store.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get fails with ErrCodeArtifactNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Location() string
}

const (
	ContentTypeJSON     = "application/json"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
	ContentTypeHTML     = "text/html; charset=utf-8"
)

// Well-known artifact keys.
const (
	ProtocolsPrefix    = "protocols/"
	DatasetKey         = "dataset.json"
	SummaryMarkdownKey = "summary.md"
	SummaryHTMLKey     = "summary.html"
)

// ProtocolKey is the per-study artifact key.
func ProtocolKey(nctID string) string {
	return ProtocolsPrefix + strings.ToUpper(strings.TrimSpace(nctID)) + ".json"
}

// IsNotFound reports a missing artifact.
func IsNotFound(err error) bool {
	return errors.IsCode(err, errors.ErrCodeArtifactNotFound)
}

// PutJSON marshals v with indentation and stores it.
func PutJSON(ctx context.Context, s ArtifactStore, key string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "artifact encode failed").WithDetail(key)
	}
	return s.Put(ctx, key, data, ContentTypeJSON)
}

// GetJSON loads key into v.
func GetJSON(ctx context.Context, s ArtifactStore, key string, v interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "artifact decode failed").WithDetail(key)
	}
	return nil
}

// Open builds the backend selected by cfg.Backend.
func Open(cfg config.StorageConfig, log logging.Logger) (ArtifactStore, error) {
	switch cfg.Backend {
	case "", "filesystem":
		s, err := filesystem.NewStore(cfg.Dir, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "minio":
		s, err := minio.Dial(cfg.MinIO, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.InvalidParam("unknown storage backend").WithDetail(cfg.Backend)
	}
}
