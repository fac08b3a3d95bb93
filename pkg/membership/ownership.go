package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// OwnershipChecker guards the rule that every organization keeps at least
// one confirmed owner.
type OwnershipChecker struct {
	organizationUsers domain.OrganizationUserRepository
	providerUsers     domain.ProviderUserRepository
}

// NewOwnershipChecker creates a new ownership checker.
func NewOwnershipChecker(organizationUsers domain.OrganizationUserRepository, providerUsers domain.ProviderUserRepository) *OwnershipChecker {
	return &OwnershipChecker{organizationUsers: organizationUsers, providerUsers: providerUsers}
}

// HasConfirmedOwnersExcept reports whether the organization still has a
// confirmed owner once the excluded memberships are gone. With
// includeProvider, a confirmed provider user managing the organization
// counts as an owner.
func (c *OwnershipChecker) HasConfirmedOwnersExcept(ctx context.Context, organizationID uuid.UUID, excluded []uuid.UUID, includeProvider bool) (bool, error) {
	ownerType := domain.OrganizationUserTypeOwner
	owners, err := c.organizationUsers.GetManyByOrganization(ctx, organizationID, &ownerType)
	if err != nil {
		return false, fmt.Errorf("failed to get organization owners: %w", err)
	}

	skip := make(map[uuid.UUID]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}
	for _, ou := range owners {
		if _, ok := skip[ou.ID]; ok {
			continue
		}
		if ou.Status == domain.OrganizationUserStatusConfirmed {
			return true, nil
		}
	}

	if !includeProvider {
		return false, nil
	}
	confirmed := domain.ProviderUserStatusConfirmed
	providers, err := c.providerUsers.GetManyByOrganization(ctx, organizationID, &confirmed)
	if err != nil {
		return false, fmt.Errorf("failed to get provider users: %w", err)
	}
	return len(providers) > 0, nil
}
