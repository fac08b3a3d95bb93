package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/internal/testutil"
	"github.com/tendant/simple-org-admin/pkg/auth"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

func TestAuth(t *testing.T) {
	tokens := auth.NewAccessTokenService(auth.AccessTokenConfig{JWTSecret: []byte("secret")})
	user := &domain.User{ID: uuid.New(), Email: "alice@example.com", EmailVerified: true}
	token, err := tokens.IssueAccessToken(user)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	var seen uuid.UUID
	handler := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		prepare    func(r *http.Request)
		wantStatus int
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: token}) }, http.StatusOK},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"bad subject", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+badSubject) }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = uuid.Nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, user.ID, seen)
			}
		})
	}
}

func TestRequireVerified(t *testing.T) {
	handler := RequireVerified()(okHandler())

	tests := []struct {
		name       string
		claims     *auth.AccessTokenClaims
		wantStatus int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"unverified", &auth.AccessTokenClaims{}, http.StatusForbidden},
		{"verified", &auth.AccessTokenClaims{EmailVerified: true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(withClaims(req.Context(), tt.claims))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestManageUsers(t *testing.T) {
	store := testutil.NewStore()
	org := store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	other := store.AddOrganization(domain.PlanTypeEnterpriseAnnual)

	owner := store.AddUser("owner@example.com")
	store.AddMember(org, owner, domain.OrganizationUserTypeOwner, domain.OrganizationUserStatusConfirmed)
	admin := store.AddUser("admin@example.com")
	store.AddMember(org, admin, domain.OrganizationUserTypeAdmin, domain.OrganizationUserStatusConfirmed)
	custom := store.AddUser("custom@example.com")
	store.AddMember(org, custom, domain.OrganizationUserTypeCustom, domain.OrganizationUserStatusConfirmed).Permissions.ManageUsers = true
	plainCustom := store.AddUser("plain-custom@example.com")
	store.AddMember(org, plainCustom, domain.OrganizationUserTypeCustom, domain.OrganizationUserStatusConfirmed)
	user := store.AddUser("user@example.com")
	store.AddMember(org, user, domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)
	acceptedAdmin := store.AddUser("accepted-admin@example.com")
	store.AddMember(org, acceptedAdmin, domain.OrganizationUserTypeAdmin, domain.OrganizationUserStatusAccepted)
	provider := store.AddUser("provider@example.com")
	store.AddProviderUser(org, provider, domain.ProviderUserStatusConfirmed)
	outsider := store.AddUser("outsider@example.com")
	store.AddMember(other, outsider, domain.OrganizationUserTypeOwner, domain.OrganizationUserStatusConfirmed)

	var actor domain.StandardUser
	r := chi.NewRouter()
	r.With(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := uuid.Parse(r.Header.Get("X-Test-User")); err == nil {
				r = r.WithContext(WithUserID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}, ManageUsers(store.OrganizationUserRepo(), store.ProviderUserRepo())).
		Get("/organizations/{orgID}/users", func(w http.ResponseWriter, r *http.Request) {
			actor, _ = GetActor(r.Context())
			w.WriteHeader(http.StatusOK)
		})

	tests := []struct {
		name           string
		user           *domain.User
		path           string
		wantStatus     int
		wantPrivileged bool
	}{
		{"owner", owner, "", http.StatusOK, true},
		{"admin", admin, "", http.StatusOK, false},
		{"custom with manage users", custom, "", http.StatusOK, false},
		{"provider", provider, "", http.StatusOK, true},
		{"custom without permission", plainCustom, "", http.StatusNotFound, false},
		{"plain user", user, "", http.StatusNotFound, false},
		{"unconfirmed admin", acceptedAdmin, "", http.StatusNotFound, false},
		{"owner of another organization", outsider, "", http.StatusNotFound, false},
		{"malformed organization id", owner, "/organizations/nope/users", http.StatusNotFound, false},
		{"anonymous", nil, "", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor = domain.StandardUser{}
			path := tt.path
			if path == "" {
				path = "/organizations/" + org.ID.String() + "/users"
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.user != nil {
				req.Header.Set("X-Test-User", tt.user.ID.String())
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.user.ID, actor.UserID)
				assert.Equal(t, tt.wantPrivileged, actor.IsOrganizationOwnerOrProvider)
			}
		})
	}
}

func TestRecover(t *testing.T) {
	handler := Recover(testutil.DiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
