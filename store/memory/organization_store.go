package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"yoma-api/models"
	"yoma-api/store"
)

type organizationRepository struct {
	s *state
}

func (r *organizationRepository) Create(ctx context.Context, org *models.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	if _, exists := r.s.d.organizations[org.ID]; exists {
		return store.ErrDuplicate
	}
	for _, existing := range r.s.d.organizations {
		if existing.NameHashValue == org.NameHashValue || existing.Slug == org.Slug {
			return store.ErrDuplicate
		}
	}

	touch(&org.CreatedAt, &org.UpdatedAt)
	r.s.d.organizations[org.ID] = *org
	return nil
}

func (r *organizationRepository) Update(ctx context.Context, org *models.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.d.organizations[org.ID]; !exists {
		return store.ErrNotFound
	}
	for id, existing := range r.s.d.organizations {
		if id != org.ID && (existing.NameHashValue == org.NameHashValue || existing.Slug == org.Slug) {
			return store.ErrDuplicate
		}
	}

	touch(nil, &org.UpdatedAt)
	r.s.d.organizations[org.ID] = *org
	return nil
}

func (r *organizationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	org, exists := r.s.d.organizations[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &org, nil
}

func (r *organizationRepository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	return r.find(func(o models.Organization) bool { return o.Slug == slug })
}

func (r *organizationRepository) GetByNameHash(ctx context.Context, hash string) (*models.Organization, error) {
	return r.find(func(o models.Organization) bool { return o.NameHashValue == hash })
}

func (r *organizationRepository) find(match func(models.Organization) bool) (*models.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, org := range r.s.d.organizations {
		if match(org) {
			return &org, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *organizationRepository) Search(ctx context.Context, filter store.OrganizationFilter) ([]models.Organization, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.Organization
	for _, org := range r.s.d.organizations {
		if filter.ValueContains != "" && !containsFold(org.Name, filter.ValueContains) {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, org.Status) {
			continue
		}
		result = append(result, org)
	}
	sortBy(result, func(a, b models.Organization) bool { return a.Name < b.Name })

	return page(result, filter.Page), int64(len(result)), nil
}

func (r *organizationRepository) AddAdmin(ctx context.Context, orgID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.d.organizations[orgID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := r.s.d.users[userID]; !ok {
		return store.ErrNotFound
	}
	if r.s.d.admins[orgID] == nil {
		r.s.d.admins[orgID] = make(map[uuid.UUID]time.Time)
	}
	if _, exists := r.s.d.admins[orgID][userID]; !exists {
		r.s.d.admins[orgID][userID] = time.Now()
	}
	return nil
}

func (r *organizationRepository) RemoveAdmin(ctx context.Context, orgID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.d.admins[orgID], userID)
	return nil
}

func (r *organizationRepository) ListAdmins(ctx context.Context, orgID uuid.UUID) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var users []models.User
	for userID := range r.s.d.admins[orgID] {
		if u, ok := r.s.d.users[userID]; ok {
			users = append(users, u)
		}
	}
	sortBy(users, func(a, b models.User) bool { return a.Email < b.Email })
	return users, nil
}

func (r *organizationRepository) IsAdmin(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.d.admins[orgID][userID]
	return ok, nil
}

func (r *organizationRepository) ListByAdmin(ctx context.Context, userID uuid.UUID) ([]models.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var orgs []models.Organization
	for orgID, users := range r.s.d.admins {
		if _, ok := users[userID]; !ok {
			continue
		}
		if org, ok := r.s.d.organizations[orgID]; ok {
			orgs = append(orgs, org)
		}
	}
	sortBy(orgs, func(a, b models.Organization) bool { return a.Name < b.Name })
	return orgs, nil
}

type userRepository struct {
	s *state
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = strings.ToLower(user.Email)
	for _, existing := range r.s.d.users {
		if existing.ID == user.ID || existing.Email == user.Email {
			return store.ErrDuplicate
		}
	}

	touch(&user.CreatedAt, &user.UpdatedAt)
	r.s.d.users[user.ID] = *user
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.d.users[user.ID]; !exists {
		return store.ErrNotFound
	}
	user.Email = strings.ToLower(user.Email)
	for id, existing := range r.s.d.users {
		if id != user.ID && existing.Email == user.Email {
			return store.ErrDuplicate
		}
	}

	touch(nil, &user.UpdatedAt)
	r.s.d.users[user.ID] = *user
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, exists := r.s.d.users[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, user := range r.s.d.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *userRepository) Search(ctx context.Context, filter store.UserFilter) ([]models.User, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v := strings.TrimSpace(filter.ValueContains)
	var result []models.User
	for _, user := range r.s.d.users {
		if v != "" && !containsFold(user.Email, v) && !containsFold(user.FirstName, v) &&
			!containsFold(user.Surname, v) && !containsFold(user.DisplayName, v) {
			continue
		}
		result = append(result, user)
	}
	sortBy(result, func(a, b models.User) bool { return a.Email < b.Email })

	return page(result, filter.Page), int64(len(result)), nil
}
