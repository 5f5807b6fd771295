package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/relayd/internal/domain"
	"github.com/bnema/relayd/internal/ports"
)

// InventoryService reads and edits persisted session state without a running
// supervisor. It backs the offline CLI commands.
type InventoryService struct {
	store  ports.CredentialStore
	ledger ports.Ledger
}

func NewInventoryService(store ports.CredentialStore, ledger ports.Ledger) *InventoryService {
	return &InventoryService{store: store, ledger: ledger}
}

func (s *InventoryService) List(ctx context.Context) ([]SessionRecord, error) {
	ids, err := s.ledger.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	records := make([]SessionRecord, 0, len(ids))
	for _, id := range ids {
		info, err := s.store.Inspect(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("inspect credentials for %s: %w", id, err)
		}
		records = append(records, SessionRecord{Identity: id, Credentials: info})
	}

	return records, nil
}

// Forget drops an identity from the ledger and deletes its credentials.
func (s *InventoryService) Forget(ctx context.Context, id domain.Identity) error {
	ids, err := s.ledger.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	info, err := s.store.Inspect(ctx, id)
	if err != nil {
		return fmt.Errorf("inspect credentials for %s: %w", id, err)
	}

	known := info.Files > 0
	for _, existing := range ids {
		if existing == id {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%s: %w", id, domain.ErrSessionNotFound)
	}

	var errs error
	if err := s.ledger.Remove(ctx, id); err != nil {
		errs = errors.Join(errs, fmt.Errorf("remove ledger entry: %w", err))
	}
	if err := s.store.Delete(ctx, id); err != nil {
		errs = errors.Join(errs, fmt.Errorf("delete credentials: %w", err))
	}
	if errs != nil {
		return fmt.Errorf("forget %s: %w", id, errs)
	}
	return nil
}
