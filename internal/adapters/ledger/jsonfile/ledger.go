package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
)

const (
	ledgerFileMode  = 0o600
	ledgerDirMode   = 0o700
	tempFilePattern = ".sessions-*.json.tmp"
)

// Ledger stores the active identities as a flat JSON array. Each mutation
// re-reads the file and rewrites it in full.
type Ledger struct {
	path string
	mu   *sync.Mutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.Mutex{}
)

var _ ports.Ledger = (*Ledger)(nil)

func NewLedger(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve ledger path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Ledger{path: absPath, mu: lockForPath(absPath)}, nil
}

func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) Load(ctx context.Context) ([]domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.read()
}

func (l *Ledger) Add(ctx context.Context, id domain.Identity) error {
	return l.mutate(ctx, func(ids []domain.Identity) ([]domain.Identity, bool) {
		if slices.Contains(ids, id) {
			return ids, false
		}
		return append(ids, id), true
	})
}

func (l *Ledger) Remove(ctx context.Context, id domain.Identity) error {
	return l.mutate(ctx, func(ids []domain.Identity) ([]domain.Identity, bool) {
		if !slices.Contains(ids, id) {
			return ids, false
		}
		return slices.DeleteFunc(ids, func(existing domain.Identity) bool {
			return existing == id
		}), true
	})
}

func (l *Ledger) Contains(ctx context.Context, id domain.Identity) (bool, error) {
	ids, err := l.Load(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, id), nil
}

func (l *Ledger) mutate(ctx context.Context, apply func([]domain.Identity) ([]domain.Identity, bool)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.read()
	if err != nil {
		return err
	}

	updated, changed := apply(ids)
	if !changed {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return l.write(updated)
}

func (l *Ledger) read() ([]domain.Identity, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.Identity{}, nil
		}
		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode ledger file: %w", err)
	}

	ids := make([]domain.Identity, 0, len(raw))
	for _, entry := range raw {
		id := domain.Identity(entry)
		if entry == "" || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (l *Ledger) write(ids []domain.Identity) error {
	if err := os.MkdirAll(filepath.Dir(l.path), ledgerDirMode); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode ledger file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(l.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp ledger file: %w", err)
	}

	if err := tempFile.Chmod(ledgerFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp ledger file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp ledger file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp ledger file: %w", err)
	}

	if err := os.Rename(tempName, l.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}

	cleanup = false
	return nil
}

func lockForPath(path string) *sync.Mutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.Mutex{}
	pathLockMap[path] = mu
	return mu
}
