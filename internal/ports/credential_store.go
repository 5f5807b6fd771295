package ports

import (
	"context"

	"github.com/bnema/relayd/internal/domain"
)

type CredentialStore interface {
	// Load returns the stored bundle, creating empty storage for unknown
	// identities.
	Load(ctx context.Context, id domain.Identity) (domain.Credentials, error)
	// Save must be durable before it returns.
	Save(ctx context.Context, id domain.Identity, update domain.Credentials) error
	Delete(ctx context.Context, id domain.Identity) error
	Inspect(ctx context.Context, id domain.Identity) (domain.CredentialInfo, error)
}
