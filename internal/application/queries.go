package application

import "github.com/bnema/relayd/internal/domain"

// SessionRecord is the offline view of one ledger identity.
type SessionRecord struct {
	Identity    domain.Identity
	Credentials domain.CredentialInfo
}
