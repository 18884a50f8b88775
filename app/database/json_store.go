package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lysyi3m/patch-comb/app/patch"
)

const (
	PatchesFile   = "patches.json"
	LastCheckFile = "last-check.txt"
)

var _ Store = (*JSONStore)(nil)

// JSONStore keeps the collection in patches.json and the last check time in
// last-check.txt, both under one directory.
type JSONStore struct {
	dir string
}

func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) Load(ctx context.Context) (*patch.State, error) {
	state := patch.NewState()

	data, err := os.ReadFile(filepath.Join(s.dir, PatchesFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read patches: %w", err)
	default:
		if err := json.Unmarshal(data, &state.Patches); err != nil {
			return nil, fmt.Errorf("failed to decode patches: %w", err)
		}
		if state.Patches == nil {
			state.Patches = patch.Collection{}
		}
	}

	data, err = os.ReadFile(filepath.Join(s.dir, LastCheckFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read last check: %w", err)
	default:
		if raw := strings.TrimSpace(string(data)); raw != "" {
			lastChecked, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, fmt.Errorf("failed to parse last check %q: %w", raw, err)
			}
			state.LastCheckedAt = lastChecked
		}
	}

	return state, nil
}

func (s *JSONStore) Save(ctx context.Context, state *patch.State) error {
	patches := state.Patches
	if patches == nil {
		patches = patch.Collection{}
	}

	data, err := json.MarshalIndent(patches, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode patches: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(s.dir, PatchesFile), append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write patches: %w", err)
	}

	lastCheck := state.LastCheckedAt.UTC().Format(time.RFC3339)
	if err := writeFileAtomic(filepath.Join(s.dir, LastCheckFile), []byte(lastCheck+"\n")); err != nil {
		return fmt.Errorf("failed to write last check: %w", err)
	}

	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
