package database

import (
	"context"
	"fmt"

	"github.com/lysyi3m/patch-comb/app/patch"
)

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Store persists the whole ingestion state. Save replaces what was stored.
type Store interface {
	Load(ctx context.Context) (*patch.State, error)
	Save(ctx context.Context, state *patch.State) error
	Close() error
}

// Open returns the store of the given kind rooted at dataDir.
func Open(kind, dataDir string) (Store, error) {
	switch kind {
	case StoreJSON, "":
		return NewJSONStore(dataDir)
	case StoreSQLite:
		return NewSQLiteStore(dataDir)
	default:
		return nil, fmt.Errorf("unknown store kind: %s", kind)
	}
}
