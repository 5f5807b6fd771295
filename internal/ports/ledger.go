package ports

import (
	"context"

	"github.com/bnema/relayd/internal/domain"
)

// Ledger records which identities are reconnected on startup.
type Ledger interface {
	Load(ctx context.Context) ([]domain.Identity, error)
	Add(ctx context.Context, id domain.Identity) error
	Remove(ctx context.Context, id domain.Identity) error
}
