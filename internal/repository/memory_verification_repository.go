package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/carelink/healthcare-identity/internal/domain"
)

// memoryVerificationRepository keeps requests in insertion order so ties on
// submitted_at resolve the same way the Postgres sequence does.
type memoryVerificationRepository struct {
	mu         sync.Mutex
	identities IdentityRepository
	requests   []*domain.VerificationRequest
	events     []domain.VerificationEvent
}

// NewMemoryVerificationRepository returns an in-memory VerificationRepository.
// Doctor existence is checked against identities, mirroring the Postgres row lock.
func NewMemoryVerificationRepository(identities IdentityRepository) VerificationRepository {
	return &memoryVerificationRepository{identities: identities}
}

func (r *memoryVerificationRepository) SubmitPending(ctx context.Context, req *domain.VerificationRequest) (bool, error) {
	doctor, err := r.identities.GetByID(ctx, req.DoctorID)
	if err != nil {
		return false, err
	}
	if doctor.Kind != domain.KindDoctor {
		return false, domain.ErrIdentityNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	req.Status = domain.VerificationPending
	req.DecidedBy = nil
	req.DecidedAt = nil
	req.DecisionNote = ""

	action := domain.ActionSubmitted
	replaced := false
	if pending := r.pendingFor(req.DoctorID); pending != nil {
		req.ID = pending.ID
		*pending = *req
		action = domain.ActionResubmitted
		replaced = true
	} else {
		req.ID = uuid.NewString()
		stored := *req
		r.requests = append(r.requests, &stored)
	}

	r.events = append(r.events, domain.VerificationEvent{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		DoctorID:  req.DoctorID,
		Action:    action,
		ActorID:   req.DoctorID,
		CreatedAt: req.SubmittedAt,
	})
	return replaced, nil
}

func (r *memoryVerificationRepository) GetByID(_ context.Context, id string) (*domain.VerificationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.requests {
		if req.ID == id {
			return copyRequest(req), nil
		}
	}
	return nil, domain.ErrRequestNotFound
}

func (r *memoryVerificationRepository) LatestForDoctor(_ context.Context, doctorID string) (*domain.VerificationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *domain.VerificationRequest
	for _, req := range r.requests {
		if req.DoctorID != doctorID {
			continue
		}
		if latest == nil || !req.SubmittedAt.Before(latest.SubmittedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, domain.ErrRequestNotFound
	}
	return copyRequest(latest), nil
}

func (r *memoryVerificationRepository) ListPending(_ context.Context) ([]domain.VerificationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.VerificationRequest
	for _, req := range r.requests {
		if req.Status == domain.VerificationPending {
			result = append(result, *copyRequest(req))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SubmittedAt.Before(result[j].SubmittedAt)
	})
	return result, nil
}

func (r *memoryVerificationRepository) Decide(_ context.Context, id string, decision Decision) (*domain.VerificationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *domain.VerificationRequest
	for _, req := range r.requests {
		if req.ID == id {
			target = req
			break
		}
	}
	if target == nil {
		return nil, domain.ErrRequestNotFound
	}
	if target.Status != domain.VerificationPending {
		return nil, domain.ErrAlreadyDecided
	}

	adminID := decision.AdminID
	decidedAt := decision.DecidedAt
	target.Status = decision.Status
	target.DecidedBy = &adminID
	target.DecidedAt = &decidedAt
	target.DecisionNote = decision.Note

	action := domain.ActionApproved
	if decision.Status == domain.VerificationRejected {
		action = domain.ActionRejected
	}
	r.events = append(r.events, domain.VerificationEvent{
		ID:        uuid.NewString(),
		RequestID: target.ID,
		DoctorID:  target.DoctorID,
		Action:    action,
		ActorID:   adminID,
		Note:      decision.Note,
		CreatedAt: decidedAt,
	})
	return copyRequest(target), nil
}

func (r *memoryVerificationRepository) ListEvents(_ context.Context, doctorID string) ([]domain.VerificationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.VerificationEvent
	for _, event := range r.events {
		if event.DoctorID == doctorID {
			result = append(result, event)
		}
	}
	return result, nil
}

func (r *memoryVerificationRepository) pendingFor(doctorID string) *domain.VerificationRequest {
	for _, req := range r.requests {
		if req.DoctorID == doctorID && req.Status == domain.VerificationPending {
			return req
		}
	}
	return nil
}

func copyRequest(req *domain.VerificationRequest) *domain.VerificationRequest {
	out := *req
	if req.DecidedBy != nil {
		v := *req.DecidedBy
		out.DecidedBy = &v
	}
	if req.DecidedAt != nil {
		v := *req.DecidedAt
		out.DecidedAt = &v
	}
	return &out
}
