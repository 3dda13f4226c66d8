package port

import (
	"context"

	"github.com/arklim/credential-authority/internal/core/domain"
)

// AccountFilter narrows administrative listings.
type AccountFilter struct {
	Role   *domain.Role
	Limit  int
	Offset int
}

// AccountRepository is the credential store contract consumed by the
// authority. The backing engine is external; implementations map their
// failure modes onto the repository sentinel errors.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// Update persists the account iff the stored version still matches
	// expectedVersion, returning the refreshed record on success.
	Update(ctx context.Context, account domain.Account, expectedVersion int64) (*domain.Account, error)
	List(ctx context.Context, filter AccountFilter) ([]domain.Account, error)
}
