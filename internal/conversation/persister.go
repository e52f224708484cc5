package conversation

import (
	"fmt"
	"io"

	"mathtutor/internal/config"
	"mathtutor/pkg/tutortypes"
)

// NewPersister builds the persister selected by the storage configuration.
// The returned closer releases resources held by the backend and is never nil.
func NewPersister(cfg config.StorageConfig) (tutortypes.Persister, io.Closer, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return NewMemoryPersister(), nopCloser{}, nil
	case config.StorageFile:
		return NewFilePersister(cfg.Path), nopCloser{}, nil
	case config.StorageSQLite:
		p, err := NewSQLitePersister(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
