package membership

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// EffectiveStatus derives the status a revoked membership returns to on
// restore. Other memberships keep their stored status.
func EffectiveStatus(ou *domain.OrganizationUser) domain.OrganizationUserStatus {
	if ou.Status != domain.OrganizationUserStatusRevoked {
		return ou.Status
	}
	switch {
	case ou.UserID == nil:
		return domain.OrganizationUserStatusInvited
	case ou.Key == nil:
		return domain.OrganizationUserStatusAccepted
	default:
		return domain.OrganizationUserStatusConfirmed
	}
}

// WithEffectiveStatus returns a copy of ou carrying its effective status.
func WithEffectiveStatus(ou *domain.OrganizationUser) *domain.OrganizationUser {
	c := *ou
	c.Status = EffectiveStatus(ou)
	return &c
}

// ClaimedStatusQuery reports which memberships belong to users whose email
// domain the organization has verified.
type ClaimedStatusQuery struct {
	cache             domain.ApplicationCache
	organizationUsers domain.OrganizationUserRepository
	logger            *slog.Logger
}

// NewClaimedStatusQuery creates a new claimed status query.
func NewClaimedStatusQuery(cache domain.ApplicationCache, organizationUsers domain.OrganizationUserRepository, logger *slog.Logger) *ClaimedStatusQuery {
	return &ClaimedStatusQuery{cache: cache, organizationUsers: organizationUsers, logger: logger}
}

// GetUsersOrganizationClaimedStatus maps every requested membership id to
// whether it is claimed. Lookup failures are logged and reported as
// unclaimed.
func (q *ClaimedStatusQuery) GetUsersOrganizationClaimedStatus(ctx context.Context, organizationID uuid.UUID, orgUserIDs []uuid.UUID) map[uuid.UUID]bool {
	result := make(map[uuid.UUID]bool, len(orgUserIDs))
	for _, id := range orgUserIDs {
		result[id] = false
	}
	if len(orgUserIDs) == 0 {
		return result
	}

	ability, err := q.cache.GetOrganizationAbility(ctx, organizationID)
	if err != nil {
		q.logger.Warn("failed to get organization ability", "organization_id", organizationID, "error", err)
		return result
	}
	if ability == nil || !ability.Enabled || !ability.UseOrganizationDomains {
		return result
	}

	claimed, err := q.organizationUsers.GetManyByOrganizationWithClaimedDomains(ctx, organizationID)
	if err != nil {
		q.logger.Warn("failed to get claimed members", "organization_id", organizationID, "error", err)
		return result
	}
	for _, ou := range claimed {
		if _, ok := result[ou.ID]; ok {
			result[ou.ID] = true
		}
	}
	return result
}

// IsClaimed reports whether a single membership is claimed.
func (q *ClaimedStatusQuery) IsClaimed(ctx context.Context, organizationID, orgUserID uuid.UUID) bool {
	return q.GetUsersOrganizationClaimedStatus(ctx, organizationID, []uuid.UUID{orgUserID})[orgUserID]
}
