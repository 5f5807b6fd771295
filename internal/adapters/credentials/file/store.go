package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
)

const (
	storeDirMode       = 0o700
	credentialFileMode = 0o600
	tempFilePattern    = ".cred-*.tmp"
)

// Store keeps one directory per identity under root. Writes for the same
// identity are serialized; different identities never share a lock.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[domain.Identity]*sync.RWMutex
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{
		root:  filepath.Clean(root),
		locks: map[domain.Identity]*sync.RWMutex{},
	}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) Load(ctx context.Context, id domain.Identity) (domain.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credentials{}, err
	}

	dir, err := s.dirFor(id)
	if err != nil {
		return domain.Credentials{}, err
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return domain.Credentials{}, fmt.Errorf("create credential directory %q: %w", id, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("list credential directory %q: %w", id, err)
	}

	creds := domain.NewCredentials()
	for _, entry := range entries {
		if !entry.Type().IsRegular() || isTempFile(entry.Name()) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return domain.Credentials{}, fmt.Errorf("read credential file %q for %q: %w", entry.Name(), id, err)
		}
		creds.Files[entry.Name()] = data
	}

	return creds, nil
}

func (s *Store) Save(ctx context.Context, id domain.Identity, update domain.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := s.dirFor(id)
	if err != nil {
		return err
	}
	for name := range update.Files {
		if err := validateFileName(name); err != nil {
			return err
		}
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return fmt.Errorf("create credential directory %q: %w", id, err)
	}

	for name, data := range update.Files {
		if data == nil {
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove credential file %q for %q: %w", name, id, err)
			}
			continue
		}
		if err := writeFileAtomic(dir, name, data); err != nil {
			return fmt.Errorf("persist credential file %q for %q: %w", name, id, err)
		}
	}

	if err := syncDir(dir); err != nil {
		return fmt.Errorf("sync credential directory %q: %w", id, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, id domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := s.dirFor(id)
	if err != nil {
		return err
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete credential directory %q: %w", id, err)
	}

	return nil
}

// Inspect reports what is on disk without creating anything.
func (s *Store) Inspect(ctx context.Context, id domain.Identity) (domain.CredentialInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.CredentialInfo{}, err
	}

	dir, err := s.dirFor(id)
	if err != nil {
		return domain.CredentialInfo{}, err
	}

	mu := s.lockFor(id)
	mu.RLock()
	defer mu.RUnlock()

	info := domain.CredentialInfo{Identity: id}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return info, nil
		}
		return domain.CredentialInfo{}, fmt.Errorf("list credential directory %q: %w", id, err)
	}

	var latest time.Time
	for _, entry := range entries {
		if !entry.Type().IsRegular() || isTempFile(entry.Name()) {
			continue
		}
		info.Files++
		if entry.Name() == domain.CredentialsMainFile {
			info.Paired = true
		}

		fi, err := entry.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
	}
	info.UpdatedAt = latest

	return info, nil
}

func (s *Store) lockFor(id domain.Identity) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mu, ok := s.locks[id]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	s.locks[id] = mu
	return mu
}

func (s *Store) dirFor(id domain.Identity) (string, error) {
	trimmed := strings.TrimSpace(string(id))
	if trimmed == "" {
		return "", errors.New("credential identity is empty")
	}
	if strings.ContainsAny(trimmed, `/\`) || trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf("invalid credential identity %q", id)
	}

	return filepath.Join(s.root, trimmed), nil
}

func validateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("credential file name is empty")
	}
	if name != filepath.Base(name) || name == "." || name == ".." || isTempFile(name) {
		return fmt.Errorf("invalid credential file name %q", name)
	}

	return nil
}

func isTempFile(name string) bool {
	return strings.HasPrefix(name, ".cred-") && strings.HasSuffix(name, ".tmp")
}

func writeFileAtomic(dir, name string, data []byte) error {
	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
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
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tempFile.Chmod(credentialFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}

	cleanup = false
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Sync()
}
