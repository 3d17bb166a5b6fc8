// Package storages provides storage driver implementations.
// Import this package to register all built-in storage types.
package storages

import (
	// Import all storage drivers for self-registration
	_ "github.com/shyim/filestore/internal/storages/bolt"
	_ "github.com/shyim/filestore/internal/storages/local"
	_ "github.com/shyim/filestore/internal/storages/memory"
	_ "github.com/shyim/filestore/internal/storages/s3"
)
