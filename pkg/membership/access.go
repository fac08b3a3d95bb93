package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// AccessQuery resolves the acting user's standing in an organization.
type AccessQuery struct {
	organizationUsers domain.OrganizationUserRepository
	providerUsers     domain.ProviderUserRepository
}

// NewAccessQuery creates a new access query.
func NewAccessQuery(organizationUsers domain.OrganizationUserRepository, providerUsers domain.ProviderUserRepository) *AccessQuery {
	return &AccessQuery{organizationUsers: organizationUsers, providerUsers: providerUsers}
}

func (a *AccessQuery) membership(ctx context.Context, organizationID, userID uuid.UUID) (*domain.OrganizationUser, error) {
	ou, err := a.organizationUsers.GetByOrganizationAndUser(ctx, organizationID, userID)
	if errors.Is(err, domain.ErrOrganizationUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get acting membership: %w", err)
	}
	return ou, nil
}

// IsOrganizationOwner reports whether the user is a confirmed owner of the
// organization or a confirmed provider user managing it.
func (a *AccessQuery) IsOrganizationOwner(ctx context.Context, organizationID, userID uuid.UUID) (bool, error) {
	ou, err := a.membership(ctx, organizationID, userID)
	if err != nil {
		return false, err
	}
	if ou != nil && ou.IsOwner() && ou.Status == domain.OrganizationUserStatusConfirmed {
		return true, nil
	}
	return a.IsProviderUser(ctx, organizationID, userID)
}

// IsProviderUser reports whether the user manages the organization through
// a provider.
func (a *AccessQuery) IsProviderUser(ctx context.Context, organizationID, userID uuid.UUID) (bool, error) {
	confirmed := domain.ProviderUserStatusConfirmed
	providers, err := a.providerUsers.GetManyByOrganization(ctx, organizationID, &confirmed)
	if err != nil {
		return false, fmt.Errorf("failed to get provider users: %w", err)
	}
	for _, pu := range providers {
		if pu.UserID != nil && *pu.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// IsOrganizationCustom reports whether the user acts through a custom role.
func (a *AccessQuery) IsOrganizationCustom(ctx context.Context, organizationID, userID uuid.UUID) (bool, error) {
	ou, err := a.membership(ctx, organizationID, userID)
	if err != nil {
		return false, err
	}
	return ou != nil && ou.Type == domain.OrganizationUserTypeCustom &&
		ou.Status == domain.OrganizationUserStatusConfirmed, nil
}
