// Package testutil provides in-memory implementations of the domain
// repositories and recording mocks of the side-effect collaborators, shared
// by tests across the codebase.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// Store is an in-memory database backing the fake repositories.
type Store struct {
	mu sync.Mutex

	Organizations     map[uuid.UUID]*domain.Organization
	OrganizationUsers map[uuid.UUID]*domain.OrganizationUser
	Users             map[uuid.UUID]*domain.User
	Policies          []*domain.Policy
	ProviderUsers     map[uuid.UUID][]*domain.ProviderUser // by organization
	ProviderOrgs      map[uuid.UUID]map[uuid.UUID]bool     // user -> organizations they manage as provider
	SoleProviderOwner map[uuid.UUID]int                    // user -> providers they solely own
	ClaimedDomains    map[uuid.UUID][]string               // organization -> verified domains
	TwoFactorEnabled  map[uuid.UUID]bool
	Collections       map[uuid.UUID][]domain.CollectionAccess
	Groups            map[uuid.UUID][]uuid.UUID

	// Errors keyed by method name ("OrganizationUsers.ReplaceMany") are
	// returned instead of running the method.
	Errors map[string]error
	// Calls records the names of write methods in order.
	Calls []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		Organizations:     make(map[uuid.UUID]*domain.Organization),
		OrganizationUsers: make(map[uuid.UUID]*domain.OrganizationUser),
		Users:             make(map[uuid.UUID]*domain.User),
		ProviderUsers:     make(map[uuid.UUID][]*domain.ProviderUser),
		ProviderOrgs:      make(map[uuid.UUID]map[uuid.UUID]bool),
		SoleProviderOwner: make(map[uuid.UUID]int),
		ClaimedDomains:    make(map[uuid.UUID][]string),
		TwoFactorEnabled:  make(map[uuid.UUID]bool),
		Collections:       make(map[uuid.UUID][]domain.CollectionAccess),
		Groups:            make(map[uuid.UUID][]uuid.UUID),
		Errors:            make(map[string]error),
	}
}

func (s *Store) fail(name string) error {
	return s.Errors[name]
}

func (s *Store) record(name string) {
	s.Calls = append(s.Calls, name)
}

// Called reports whether a write method was invoked.
func (s *Store) Called(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.Calls {
		if c == name {
			return true
		}
	}
	return false
}

// === Seeding helpers ===

// AddOrganization adds an enabled organization on the given plan.
func (s *Store) AddOrganization(plan domain.PlanType) *domain.Organization {
	org := &domain.Organization{
		ID:          uuid.New(),
		Name:        "Org " + string(plan),
		PlanType:    plan,
		Enabled:     true,
		UsePolicies: true,
		CreatedAt:   time.Now(),
	}
	s.Organizations[org.ID] = org
	return org
}

// AddUser adds a user with the given email.
func (s *Store) AddUser(email string) *domain.User {
	u := &domain.User{
		ID:            uuid.New(),
		Email:         email,
		EmailVerified: true,
		CreatedAt:     time.Now(),
	}
	s.Users[u.ID] = u
	return u
}

// AddMember adds a membership linked to a user.
func (s *Store) AddMember(org *domain.Organization, user *domain.User, typ domain.OrganizationUserType, status domain.OrganizationUserStatus) *domain.OrganizationUser {
	uid := user.ID
	ou := &domain.OrganizationUser{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		UserID:         &uid,
		Status:         status,
		Type:           typ,
		CreatedAt:      time.Now(),
	}
	if status == domain.OrganizationUserStatusConfirmed {
		key := "wrapped-key"
		ou.Key = &key
	}
	s.OrganizationUsers[ou.ID] = ou
	return ou
}

// AddInvite adds an Invited membership addressed by email.
func (s *Store) AddInvite(org *domain.Organization, email string, typ domain.OrganizationUserType) *domain.OrganizationUser {
	e := email
	ou := &domain.OrganizationUser{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Email:          &e,
		Status:         domain.OrganizationUserStatusInvited,
		Type:           typ,
		CreatedAt:      time.Now(),
	}
	s.OrganizationUsers[ou.ID] = ou
	return ou
}

// AddPolicy adds an enabled policy to an organization.
func (s *Store) AddPolicy(org *domain.Organization, typ domain.PolicyType) *domain.Policy {
	p := &domain.Policy{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Type:           typ,
		Enabled:        true,
	}
	s.Policies = append(s.Policies, p)
	return p
}

// ClaimDomain marks an email domain as verified by the organization and
// enables domain claiming for it.
func (s *Store) ClaimDomain(org *domain.Organization, domainName string) {
	org.UseOrganizationDomains = true
	s.ClaimedDomains[org.ID] = append(s.ClaimedDomains[org.ID], strings.ToLower(domainName))
}

// AddProviderUser adds a provider membership managing the organization.
func (s *Store) AddProviderUser(org *domain.Organization, user *domain.User, status domain.ProviderUserStatus) *domain.ProviderUser {
	uid := user.ID
	pu := &domain.ProviderUser{
		ID:         uuid.New(),
		ProviderID: uuid.New(),
		UserID:     &uid,
		Type:       domain.ProviderUserTypeProviderAdmin,
		Status:     status,
	}
	s.ProviderUsers[org.ID] = append(s.ProviderUsers[org.ID], pu)
	if s.ProviderOrgs[user.ID] == nil {
		s.ProviderOrgs[user.ID] = make(map[uuid.UUID]bool)
	}
	s.ProviderOrgs[user.ID][org.ID] = true
	return pu
}

// Member returns a copy of the stored membership, or nil.
func (s *Store) Member(id uuid.UUID) *domain.OrganizationUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	ou, ok := s.OrganizationUsers[id]
	if !ok {
		return nil
	}
	c := *ou
	return &c
}

func (s *Store) memberEmail(ou *domain.OrganizationUser) string {
	if ou.UserID != nil {
		if u, ok := s.Users[*ou.UserID]; ok {
			return u.Email
		}
	}
	if ou.Email != nil {
		return *ou.Email
	}
	return ""
}

func (s *Store) sortedMembers(filter func(*domain.OrganizationUser) bool) []*domain.OrganizationUser {
	var out []*domain.OrganizationUser
	for _, ou := range s.OrganizationUsers {
		if filter(ou) {
			c := *ou
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// === OrganizationUserRepository ===

// OrganizationUserRepo implements domain.OrganizationUserRepository.
type OrganizationUserRepo struct{ s *Store }

// OrganizationUserRepo returns the membership repository view of the store.
func (s *Store) OrganizationUserRepo() *OrganizationUserRepo { return &OrganizationUserRepo{s: s} }

func (r *OrganizationUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.OrganizationUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("OrganizationUsers.GetByID"); err != nil {
		return nil, err
	}
	ou, ok := r.s.OrganizationUsers[id]
	if !ok {
		return nil, domain.ErrOrganizationUserNotFound
	}
	c := *ou
	return &c, nil
}

func (r *OrganizationUserRepo) GetManyByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.OrganizationUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("OrganizationUsers.GetManyByIDs"); err != nil {
		return nil, err
	}
	var out []*domain.OrganizationUser
	for _, id := range ids {
		if ou, ok := r.s.OrganizationUsers[id]; ok {
			c := *ou
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *OrganizationUserRepo) GetByOrganizationAndUser(_ context.Context, organizationID, userID uuid.UUID) (*domain.OrganizationUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	found := r.s.sortedMembers(func(ou *domain.OrganizationUser) bool {
		return ou.OrganizationID == organizationID && ou.HasUser(userID)
	})
	if len(found) == 0 {
		return nil, domain.ErrOrganizationUserNotFound
	}
	return found[0], nil
}

func (r *OrganizationUserRepo) GetByOrganizationAndEmail(_ context.Context, organizationID uuid.UUID, email string) (*domain.OrganizationUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	found := r.s.sortedMembers(func(ou *domain.OrganizationUser) bool {
		return ou.OrganizationID == organizationID && ou.Email != nil && strings.EqualFold(*ou.Email, email)
	})
	if len(found) == 0 {
		return nil, domain.ErrOrganizationUserNotFound
	}
	return found[0], nil
}

func (r *OrganizationUserRepo) GetManyByOrganization(_ context.Context, organizationID uuid.UUID, role *domain.OrganizationUserType) ([]*domain.OrganizationUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("OrganizationUsers.GetManyByOrganization"); err != nil {
		return nil, err
	}
	return r.s.sortedMembers(func(ou *domain.OrganizationUser) bool {
		return ou.OrganizationID == organizationID && (role == nil || ou.Type == *role)
	}), nil
}

func (r *OrganizationUserRepo) GetManyByUser(_ context.Context, userID uuid.UUID) ([]*domain.OrganizationUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.sortedMembers(func(ou *domain.OrganizationUser) bool {
		return ou.HasUser(userID)
	}), nil
}

func (r *OrganizationUserRepo) details(ou *domain.OrganizationUser) *domain.OrganizationUserUserDetails {
	d := &domain.OrganizationUserUserDetails{OrganizationUser: *ou}
	if ou.UserID != nil {
		if u, ok := r.s.Users[*ou.UserID]; ok {
			email := u.Email
			d.UserEmail = &email
			d.UserName = u.Name
			d.TwoFactorEnabled = r.s.TwoFactorEnabled[u.ID]
		}
	}
	return d
}

func (r *OrganizationUserRepo) GetManyDetailsByMinimumRole(_ context.Context, organizationID uuid.UUID, minRole domain.OrganizationUserType) ([]*domain.OrganizationUserUserDetails, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	members := r.s.sortedMembers(func(ou *domain.OrganizationUser) bool {
		return ou.OrganizationID == organizationID &&
			ou.Status == domain.OrganizationUserStatusConfirmed &&
			ou.Type.AtLeast(minRole)
	})
	out := make([]*domain.OrganizationUserUserDetails, 0, len(members))
	for _, ou := range members {
		out = append(out, r.details(ou))
	}
	return out, nil
}

func (r *OrganizationUserRepo) GetManyDetailsByOrganization(_ context.Context, organizationID uuid.UUID) ([]*domain.OrganizationUserUserDetails, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	members := r.s.sortedMembers(func(ou *domain.OrganizationUser) bool {
		return ou.OrganizationID == organizationID
	})
	out := make([]*domain.OrganizationUserUserDetails, 0, len(members))
	for _, ou := range members {
		out = append(out, r.details(ou))
	}
	return out, nil
}

func (r *OrganizationUserRepo) GetManyByOrganizationWithClaimedDomains(_ context.Context, organizationID uuid.UUID) ([]*domain.OrganizationUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("OrganizationUsers.GetManyByOrganizationWithClaimedDomains"); err != nil {
		return nil, err
	}
	domains := r.s.ClaimedDomains[organizationID]
	return r.s.sortedMembers(func(ou *domain.OrganizationUser) bool {
		if ou.OrganizationID != organizationID {
			return false
		}
		email := strings.ToLower(r.s.memberEmail(ou))
		for _, d := range domains {
			if strings.HasSuffix(email, "@"+d) {
				return true
			}
		}
		return false
	}), nil
}

func (r *OrganizationUserRepo) GetCountByOrganization(_ context.Context, organizationID uuid.UUID, email string, onlyRegisteredUsers bool) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, ou := range r.s.OrganizationUsers {
		if ou.OrganizationID != organizationID {
			continue
		}
		if onlyRegisteredUsers && ou.UserID == nil {
			continue
		}
		if strings.EqualFold(r.s.memberEmail(ou), email) {
			count++
		}
	}
	return count, nil
}

func (r *OrganizationUserRepo) GetCountByFreeOrganizationAdminUser(_ context.Context, userID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, ou := range r.s.OrganizationUsers {
		org, ok := r.s.Organizations[ou.OrganizationID]
		if !ok || org.PlanType != domain.PlanTypeFree {
			continue
		}
		if ou.HasUser(userID) && ou.IsAdminOrOwner() && ou.Status == domain.OrganizationUserStatusConfirmed {
			count++
		}
	}
	return count, nil
}

func (r *OrganizationUserRepo) GetCountByOnlyOwner(_ context.Context, userID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	owners := make(map[uuid.UUID][]uuid.UUID)
	for _, ou := range r.s.OrganizationUsers {
		if ou.IsOwner() && ou.Status == domain.OrganizationUserStatusConfirmed && ou.UserID != nil {
			owners[ou.OrganizationID] = append(owners[ou.OrganizationID], *ou.UserID)
		}
	}
	count := 0
	for _, ids := range owners {
		if len(ids) == 1 && ids[0] == userID {
			count++
		}
	}
	return count, nil
}

func (r *OrganizationUserRepo) GetOccupiedSeatCount(_ context.Context, organizationID uuid.UUID) (domain.OccupiedSeats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var seats domain.OccupiedSeats
	for _, ou := range r.s.OrganizationUsers {
		if ou.OrganizationID != organizationID || ou.Status == domain.OrganizationUserStatusRevoked {
			continue
		}
		seats.Passwords++
		if ou.AccessSecretsManager {
			seats.SecretsManager++
		}
	}
	return seats, nil
}

func (r *OrganizationUserRepo) CreateMany(_ context.Context, users []domain.NewOrganizationUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("OrganizationUsers.CreateMany")
	if err := r.s.fail("OrganizationUsers.CreateMany"); err != nil {
		return err
	}
	for _, u := range users {
		c := *u.OrganizationUser
		r.s.OrganizationUsers[c.ID] = &c
		if len(u.Collections) > 0 {
			r.s.Collections[c.ID] = u.Collections
		}
		if len(u.Groups) > 0 {
			r.s.Groups[c.ID] = u.Groups
		}
	}
	return nil
}

func (r *OrganizationUserRepo) Replace(_ context.Context, ou *domain.OrganizationUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("OrganizationUsers.Replace")
	if err := r.s.fail("OrganizationUsers.Replace"); err != nil {
		return err
	}
	if _, ok := r.s.OrganizationUsers[ou.ID]; !ok {
		return domain.ErrOrganizationUserNotFound
	}
	c := *ou
	r.s.OrganizationUsers[ou.ID] = &c
	return nil
}

func (r *OrganizationUserRepo) ReplaceMany(_ context.Context, ous []*domain.OrganizationUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("OrganizationUsers.ReplaceMany")
	if err := r.s.fail("OrganizationUsers.ReplaceMany"); err != nil {
		return err
	}
	for _, ou := range ous {
		c := *ou
		r.s.OrganizationUsers[ou.ID] = &c
	}
	return nil
}

func (r *OrganizationUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("OrganizationUsers.Delete")
	if err := r.s.fail("OrganizationUsers.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.OrganizationUsers[id]; !ok {
		return domain.ErrOrganizationUserNotFound
	}
	delete(r.s.OrganizationUsers, id)
	delete(r.s.Collections, id)
	delete(r.s.Groups, id)
	return nil
}

func (r *OrganizationUserRepo) DeleteMany(_ context.Context, ids []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("OrganizationUsers.DeleteMany")
	if err := r.s.fail("OrganizationUsers.DeleteMany"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(r.s.OrganizationUsers, id)
		delete(r.s.Collections, id)
		delete(r.s.Groups, id)
	}
	return nil
}

func (r *OrganizationUserRepo) Revoke(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("OrganizationUsers.Revoke")
	if err := r.s.fail("OrganizationUsers.Revoke"); err != nil {
		return err
	}
	ou, ok := r.s.OrganizationUsers[id]
	if !ok {
		return domain.ErrOrganizationUserNotFound
	}
	ou.Status = domain.OrganizationUserStatusRevoked
	return nil
}

func (r *OrganizationUserRepo) RevokeMany(_ context.Context, ids []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("OrganizationUsers.RevokeMany")
	if err := r.s.fail("OrganizationUsers.RevokeMany"); err != nil {
		return err
	}
	for _, id := range ids {
		if ou, ok := r.s.OrganizationUsers[id]; ok {
			ou.Status = domain.OrganizationUserStatusRevoked
		}
	}
	return nil
}

func (r *OrganizationUserRepo) Restore(_ context.Context, id uuid.UUID, status domain.OrganizationUserStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("OrganizationUsers.Restore")
	if err := r.s.fail("OrganizationUsers.Restore"); err != nil {
		return err
	}
	ou, ok := r.s.OrganizationUsers[id]
	if !ok {
		return domain.ErrOrganizationUserNotFound
	}
	ou.Status = status
	return nil
}

var _ domain.OrganizationUserRepository = (*OrganizationUserRepo)(nil)

// === UserRepository ===

// UserRepo implements domain.UserRepository.
type UserRepo struct{ s *Store }

// UserRepo returns the user repository view of the store.
func (s *Store) UserRepo() *UserRepo { return &UserRepo{s: s} }

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.Users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *u
	c.TwoFactorEnabled = r.s.TwoFactorEnabled[id]
	return &c, nil
}

func (r *UserRepo) GetManyByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.User
	for _, id := range ids {
		if u, ok := r.s.Users[id]; ok {
			c := *u
			c.TwoFactorEnabled = r.s.TwoFactorEnabled[id]
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *UserRepo) Replace(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("Users.Replace")
	if err := r.s.fail("Users.Replace"); err != nil {
		return err
	}
	c := *user
	r.s.Users[user.ID] = &c
	return nil
}

func (r *UserRepo) DeleteMany(_ context.Context, ids []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("Users.DeleteMany")
	if err := r.s.fail("Users.DeleteMany"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(r.s.Users, id)
		for ouID, ou := range r.s.OrganizationUsers {
			if ou.HasUser(id) {
				delete(r.s.OrganizationUsers, ouID)
			}
		}
	}
	return nil
}

var _ domain.UserRepository = (*UserRepo)(nil)

// === ProviderUserRepository ===

// ProviderUserRepo implements domain.ProviderUserRepository.
type ProviderUserRepo struct{ s *Store }

// ProviderUserRepo returns the provider repository view of the store.
func (s *Store) ProviderUserRepo() *ProviderUserRepo { return &ProviderUserRepo{s: s} }

func (r *ProviderUserRepo) GetCountByOnlyOwner(_ context.Context, userID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.SoleProviderOwner[userID], nil
}

func (r *ProviderUserRepo) GetManyByOrganization(_ context.Context, organizationID uuid.UUID, status *domain.ProviderUserStatus) ([]*domain.ProviderUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.ProviderUser
	for _, pu := range r.s.ProviderUsers[organizationID] {
		if status == nil || pu.Status == *status {
			c := *pu
			out = append(out, &c)
		}
	}
	return out, nil
}

var _ domain.ProviderUserRepository = (*ProviderUserRepo)(nil)

// === OrganizationRepository ===

// OrganizationRepo implements domain.OrganizationRepository.
type OrganizationRepo struct{ s *Store }

// OrganizationRepo returns the organization repository view of the store.
func (s *Store) OrganizationRepo() *OrganizationRepo { return &OrganizationRepo{s: s} }

func (r *OrganizationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	org, ok := r.s.Organizations[id]
	if !ok {
		return nil, domain.ErrOrganizationNotFound
	}
	c := *org
	return &c, nil
}

func (r *OrganizationRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, org := range r.s.Organizations {
		if org.Identifier != nil && strings.EqualFold(*org.Identifier, identifier) {
			c := *org
			return &c, nil
		}
	}
	return nil, domain.ErrOrganizationNotFound
}

func (r *OrganizationRepo) GetAbility(_ context.Context, id uuid.UUID) (*domain.OrganizationAbility, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	org, ok := r.s.Organizations[id]
	if !ok {
		return nil, domain.ErrOrganizationNotFound
	}
	a := org.Ability()
	return &a, nil
}

func (r *OrganizationRepo) Replace(_ context.Context, org *domain.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.record("Organizations.Replace")
	if err := r.s.fail("Organizations.Replace"); err != nil {
		return err
	}
	c := *org
	r.s.Organizations[org.ID] = &c
	return nil
}

var _ domain.OrganizationRepository = (*OrganizationRepo)(nil)

// === PolicyRepository ===

// PolicyRepo implements domain.PolicyRepository.
type PolicyRepo struct{ s *Store }

// PolicyRepo returns the policy repository view of the store.
func (s *Store) PolicyRepo() *PolicyRepo { return &PolicyRepo{s: s} }

func (r *PolicyRepo) GetByOrganizationAndType(_ context.Context, organizationID uuid.UUID, policyType domain.PolicyType) (*domain.Policy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.Policies {
		if p.OrganizationID == organizationID && p.Type == policyType {
			c := *p
			return &c, nil
		}
	}
	return nil, domain.ErrPolicyNotFound
}

func (r *PolicyRepo) GetManyByType(_ context.Context, policyType domain.PolicyType) ([]*domain.Policy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Policy
	for _, p := range r.s.Policies {
		if p.Type == policyType {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

// GetPolicyDetailsByUserID joins policies with the user's memberships,
// matching Invited memberships by email.
func (r *PolicyRepo) GetPolicyDetailsByUserID(_ context.Context, userID uuid.UUID, policyType domain.PolicyType) ([]domain.PolicyDetails, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Policies.GetPolicyDetailsByUserID"); err != nil {
		return nil, err
	}
	user := r.s.Users[userID]
	var out []domain.PolicyDetails
	for _, p := range r.s.Policies {
		if p.Type != policyType {
			continue
		}
		org := r.s.Organizations[p.OrganizationID]
		for _, ou := range r.s.sortedMembers(func(ou *domain.OrganizationUser) bool {
			if ou.OrganizationID != p.OrganizationID {
				return false
			}
			if ou.HasUser(userID) {
				return true
			}
			return ou.UserID == nil && ou.Email != nil && user != nil && strings.EqualFold(*ou.Email, user.Email)
		}) {
			d := domain.PolicyDetails{
				OrganizationUserID:     ou.ID,
				OrganizationID:         p.OrganizationID,
				PolicyType:             p.Type,
				PolicyEnabled:          p.Enabled,
				OrganizationUserType:   ou.Type,
				OrganizationUserStatus: ou.Status,
				IsProvider:             r.s.ProviderOrgs[userID][p.OrganizationID],
			}
			if org != nil {
				d.OrganizationEnabled = org.Enabled
				d.OrganizationUsePolicies = org.UsePolicies
			}
			out = append(out, d)
		}
	}
	return out, nil
}

var _ domain.PolicyRepository = (*PolicyRepo)(nil)

// === ApplicationCache ===

// AbilityCache implements domain.ApplicationCache over the store.
type AbilityCache struct{ s *Store }

// AbilityCache returns the ability cache view of the store.
func (s *Store) AbilityCache() *AbilityCache { return &AbilityCache{s: s} }

func (c *AbilityCache) GetOrganizationAbility(_ context.Context, organizationID uuid.UUID) (*domain.OrganizationAbility, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	org, ok := c.s.Organizations[organizationID]
	if !ok {
		return nil, nil
	}
	a := org.Ability()
	return &a, nil
}

func (c *AbilityCache) DeleteOrganizationAbility(context.Context, uuid.UUID) error {
	return nil
}

var _ domain.ApplicationCache = (*AbilityCache)(nil)

// === TwoFactorQuery ===

// TwoFactor implements domain.TwoFactorQuery over the store.
type TwoFactor struct{ s *Store }

// TwoFactor returns the two-step login query view of the store.
func (s *Store) TwoFactor() *TwoFactor { return &TwoFactor{s: s} }

func (q *TwoFactor) TwoFactorIsEnabled(_ context.Context, userID uuid.UUID) (bool, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	return q.s.TwoFactorEnabled[userID], nil
}

func (q *TwoFactor) TwoFactorIsEnabledMany(_ context.Context, userIDs []uuid.UUID) ([]domain.UserTwoFactorStatus, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	out := make([]domain.UserTwoFactorStatus, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, domain.UserTwoFactorStatus{UserID: id, TwoFactorEnabled: q.s.TwoFactorEnabled[id]})
	}
	return out, nil
}

var _ domain.TwoFactorQuery = (*TwoFactor)(nil)
