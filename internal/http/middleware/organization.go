package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-org-admin/internal/httputil"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

const (
	// OrganizationIDKey is the context key for the organization in the route.
	OrganizationIDKey contextKey = "organization_id"
	// ActorKey is the context key for the acting member.
	ActorKey contextKey = "actor"
)

// MembershipLookup loads the caller's membership and provider status.
type MembershipLookup interface {
	GetByOrganizationAndUser(ctx context.Context, organizationID, userID uuid.UUID) (*domain.OrganizationUser, error)
}

// ProviderLookup lists the provider users managing an organization.
type ProviderLookup interface {
	GetManyByOrganization(ctx context.Context, organizationID uuid.UUID, status *domain.ProviderUserStatus) ([]*domain.ProviderUser, error)
}

// ManageUsers authorizes the caller to administer members of the
// organization in the {orgID} route parameter: confirmed Owners, Admins,
// Custom members with the manage users permission, and confirmed provider
// users. The resulting actor is stored in the context.
func ManageUsers(members MembershipLookup, providers ProviderLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
			if err != nil {
				httputil.Error(w, http.StatusNotFound, "organization not found")
				return
			}

			ou, err := members.GetByOrganizationAndUser(r.Context(), orgID, userID)
			if err != nil && !errors.Is(err, domain.ErrOrganizationUserNotFound) {
				httputil.Error(w, http.StatusInternalServerError, "internal server error")
				return
			}

			isProvider, err := isConfirmedProvider(r.Context(), providers, orgID, userID)
			if err != nil {
				httputil.Error(w, http.StatusInternalServerError, "internal server error")
				return
			}

			member := ou != nil && ou.Status == domain.OrganizationUserStatusConfirmed
			canManage := member && (ou.IsAdminOrOwner() ||
				(ou.Type == domain.OrganizationUserTypeCustom && ou.Permissions.ManageUsers))
			if !canManage && !isProvider {
				// Hide the organization from non-members.
				httputil.Error(w, http.StatusNotFound, "organization not found")
				return
			}

			actor := domain.StandardUser{
				UserID:                        userID,
				IsOrganizationOwnerOrProvider: isProvider || (member && ou.IsOwner()),
			}
			ctx := context.WithValue(r.Context(), OrganizationIDKey, orgID)
			ctx = context.WithValue(ctx, ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isConfirmedProvider(ctx context.Context, providers ProviderLookup, orgID, userID uuid.UUID) (bool, error) {
	if providers == nil {
		return false, nil
	}
	confirmed := domain.ProviderUserStatusConfirmed
	pus, err := providers.GetManyByOrganization(ctx, orgID, &confirmed)
	if err != nil {
		return false, err
	}
	for _, pu := range pus {
		if pu.UserID != nil && *pu.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// GetOrganizationID returns the organization authorized by ManageUsers.
func GetOrganizationID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(OrganizationIDKey).(uuid.UUID)
	return id, ok
}

// GetActor returns the acting member authorized by ManageUsers.
func GetActor(ctx context.Context) (domain.StandardUser, bool) {
	a, ok := ctx.Value(ActorKey).(domain.StandardUser)
	return a, ok
}
