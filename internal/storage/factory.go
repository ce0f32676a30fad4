// Package storage selects and opens the configured storage backend.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/storage/filestore"
	"github.com/bobmcallan/pulse/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendFile      = "file"
	BackendSurrealDB = "surrealdb"
)

// NewStorageManager opens the backend named by config.Storage.Backend.
// Supported backends: "file" (default), "surrealdb".
func NewStorageManager(ctx context.Context, logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	backend := config.Storage.Backend
	if backend == "" {
		backend = BackendFile
	}

	switch backend {
	case BackendFile:
		return filestore.NewStore(logger, config.Storage.Path)

	case BackendSurrealDB:
		return surrealdb.NewManager(ctx, logger, config)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: file, surrealdb)", backend)
	}
}
