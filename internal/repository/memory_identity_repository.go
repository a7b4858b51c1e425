package repository

import (
	"context"
	"sync"
	"time"

	"github.com/carelink/healthcare-identity/internal/domain"
)

type kindKey struct {
	kind  domain.IdentityKind
	value string
}

// memoryIdentityRepository keeps identities in process memory. All mutations
// happen under one lock, which serializes writers to the same identity.
type memoryIdentityRepository struct {
	mu       sync.RWMutex
	byID     map[string]*domain.Identity
	byEmail  map[kindKey]string
	byMobile map[kindKey]string
	now      func() time.Time
}

// NewMemoryIdentityRepository returns an in-memory IdentityRepository.
func NewMemoryIdentityRepository() IdentityRepository {
	return &memoryIdentityRepository{
		byID:     make(map[string]*domain.Identity),
		byEmail:  make(map[kindKey]string),
		byMobile: make(map[kindKey]string),
		now:      time.Now,
	}
}

func (r *memoryIdentityRepository) Create(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	emailKey := kindKey{identity.Kind, identity.Email}
	if _, taken := r.byEmail[emailKey]; taken {
		return domain.ErrDuplicateEmail
	}
	mobileKey := kindKey{identity.Kind, identity.Mobile}
	if identity.Mobile != "" {
		if _, taken := r.byMobile[mobileKey]; taken {
			return domain.ErrDuplicateMobile
		}
	}

	now := r.now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	stored := *identity
	r.byID[stored.ID] = &stored
	r.byEmail[emailKey] = stored.ID
	if stored.Mobile != "" {
		r.byMobile[mobileKey] = stored.ID
	}
	return nil
}

func (r *memoryIdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyOf(id)
}

func (r *memoryIdentityRepository) GetByEmail(_ context.Context, kind domain.IdentityKind, email string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyOf(r.byEmail[kindKey{kind, email}])
}

func (r *memoryIdentityRepository) GetByMobile(_ context.Context, kind domain.IdentityKind, mobile string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if mobile == "" {
		return nil, domain.ErrIdentityNotFound
	}
	return r.copyOf(r.byMobile[kindKey{kind, mobile}])
}

func (r *memoryIdentityRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	identity.PasswordHash = passwordHash
	identity.UpdatedAt = r.now().UTC()
	return nil
}

func (r *memoryIdentityRepository) UpdateProfile(_ context.Context, id string, update domain.ProfileUpdate) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	update.Apply(&identity.Profile)
	identity.UpdatedAt = r.now().UTC()
	return r.copyOf(id)
}

func (r *memoryIdentityRepository) copyOf(id string) (*domain.Identity, error) {
	identity, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	out := *identity
	return &out, nil
}
