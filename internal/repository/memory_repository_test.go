package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/healthcare-identity/internal/domain"
)

func mustCreateIdentity(t *testing.T, repo IdentityRepository, kind domain.IdentityKind, email, mobile string) *domain.Identity {
	t.Helper()
	identity := &domain.Identity{
		ID:           uuid.NewString(),
		Kind:         kind,
		Email:        email,
		Mobile:       mobile,
		PasswordHash: "hash",
		Profile:      domain.Profile{FullName: "Test " + string(kind)},
	}
	require.NoError(t, repo.Create(context.Background(), identity))
	return identity
}

func TestMemoryIdentityRepository_Uniqueness(t *testing.T) {
	repo := NewMemoryIdentityRepository()
	ctx := context.Background()
	mustCreateIdentity(t, repo, domain.KindPatient, "a@x.com", "0811")

	err := repo.Create(ctx, &domain.Identity{ID: "p2", Kind: domain.KindPatient, Email: "a@x.com", Mobile: "0822"})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	err = repo.Create(ctx, &domain.Identity{ID: "p3", Kind: domain.KindPatient, Email: "b@x.com", Mobile: "0811"})
	assert.ErrorIs(t, err, domain.ErrDuplicateMobile)

	// Uniqueness is scoped by kind.
	mustCreateIdentity(t, repo, domain.KindDoctor, "a@x.com", "0811")

	// Empty mobiles never collide.
	mustCreateIdentity(t, repo, domain.KindAdmin, "root1@x.com", "")
	mustCreateIdentity(t, repo, domain.KindAdmin, "root2@x.com", "")
	_, err = repo.GetByMobile(ctx, domain.KindAdmin, "")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func TestMemoryIdentityRepository_LookupsReturnCopies(t *testing.T) {
	repo := NewMemoryIdentityRepository()
	ctx := context.Background()
	created := mustCreateIdentity(t, repo, domain.KindPatient, "a@x.com", "0811")

	byEmail, err := repo.GetByEmail(ctx, domain.KindPatient, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.False(t, byEmail.CreatedAt.IsZero())

	byEmail.PasswordHash = "tampered"
	byMobile, err := repo.GetByMobile(ctx, domain.KindPatient, "0811")
	require.NoError(t, err)
	assert.Equal(t, "hash", byMobile.PasswordHash)

	_, err = repo.GetByEmail(ctx, domain.KindDoctor, "a@x.com")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func TestMemoryIdentityRepository_Updates(t *testing.T) {
	repo := NewMemoryIdentityRepository()
	ctx := context.Background()
	created := mustCreateIdentity(t, repo, domain.KindPatient, "a@x.com", "0811")

	require.NoError(t, repo.UpdatePassword(ctx, created.ID, "new-hash"))
	assert.ErrorIs(t, repo.UpdatePassword(ctx, "missing", "x"), domain.ErrIdentityNotFound)

	addr := "Jl. Sudirman 5"
	updated, err := repo.UpdateProfile(ctx, created.ID, domain.ProfileUpdate{Address: &addr})
	require.NoError(t, err)
	assert.Equal(t, "new-hash", updated.PasswordHash)
	assert.Equal(t, addr, updated.Profile.Address)
	assert.Equal(t, created.Profile.FullName, updated.Profile.FullName)

	_, err = repo.UpdateProfile(ctx, "missing", domain.ProfileUpdate{Address: &addr})
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func newVerificationRepo(t *testing.T) (VerificationRepository, *domain.Identity) {
	t.Helper()
	identities := NewMemoryIdentityRepository()
	doctor := mustCreateIdentity(t, identities, domain.KindDoctor, "doc@x.com", "0899")
	return NewMemoryVerificationRepository(identities), doctor
}

func TestMemoryVerificationRepository_SubmitReplacesPending(t *testing.T) {
	repo, doctor := newVerificationRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := &domain.VerificationRequest{DoctorID: doctor.ID, Specialization: "Cardiology", LicenseNumber: "L-1", SubmittedAt: base}
	replaced, err := repo.SubmitPending(ctx, first)
	require.NoError(t, err)
	assert.False(t, replaced)
	require.NotEmpty(t, first.ID)

	second := &domain.VerificationRequest{DoctorID: doctor.ID, Specialization: "Neurology", LicenseNumber: "L-2", SubmittedAt: base.Add(time.Minute)}
	replaced, err = repo.SubmitPending(ctx, second)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, first.ID, second.ID)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Neurology", pending[0].Specialization)
	assert.True(t, pending[0].SubmittedAt.Equal(base.Add(time.Minute)))

	events, err := repo.ListEvents(ctx, doctor.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.ActionSubmitted, events[0].Action)
	assert.Equal(t, domain.ActionResubmitted, events[1].Action)
}

func TestMemoryVerificationRepository_SubmitRequiresDoctor(t *testing.T) {
	identities := NewMemoryIdentityRepository()
	patient := mustCreateIdentity(t, identities, domain.KindPatient, "p@x.com", "0812")
	repo := NewMemoryVerificationRepository(identities)

	_, err := repo.SubmitPending(context.Background(), &domain.VerificationRequest{DoctorID: patient.ID})
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

	_, err = repo.SubmitPending(context.Background(), &domain.VerificationRequest{DoctorID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func TestMemoryVerificationRepository_DecideAndResubmit(t *testing.T) {
	repo, doctor := newVerificationRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	req := &domain.VerificationRequest{DoctorID: doctor.ID, Specialization: "Dermatology", LicenseNumber: "L-9", SubmittedAt: at}
	_, err := repo.SubmitPending(ctx, req)
	require.NoError(t, err)

	decided, err := repo.Decide(ctx, req.ID, Decision{Status: domain.VerificationRejected, AdminID: "admin-1", Note: "blurry scan", DecidedAt: at})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationRejected, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, "admin-1", *decided.DecidedBy)

	_, err = repo.Decide(ctx, req.ID, Decision{Status: domain.VerificationApproved, AdminID: "admin-2", DecidedAt: at})
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
	_, err = repo.Decide(ctx, "missing", Decision{Status: domain.VerificationApproved, AdminID: "admin-2", DecidedAt: at})
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	// A submission after a terminal decision opens a fresh request at the same instant.
	again := &domain.VerificationRequest{DoctorID: doctor.ID, Specialization: "Dermatology", LicenseNumber: "L-9b", SubmittedAt: at}
	replaced, err := repo.SubmitPending(ctx, again)
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.NotEqual(t, req.ID, again.ID)

	latest, err := repo.LatestForDoctor(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, again.ID, latest.ID)
	assert.Equal(t, domain.VerificationPending, latest.Status)

	old, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationRejected, old.Status)
	assert.Equal(t, "blurry scan", old.DecisionNote)
}

func TestMemoryVerificationRepository_ConcurrentDecide(t *testing.T) {
	repo, doctor := newVerificationRepo(t)
	ctx := context.Background()
	req := &domain.VerificationRequest{DoctorID: doctor.ID, Specialization: "ENT", LicenseNumber: "L-5", SubmittedAt: time.Now()}
	_, err := repo.SubmitPending(ctx, req)
	require.NoError(t, err)

	var ok, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Decide(ctx, req.ID, Decision{Status: domain.VerificationApproved, AdminID: "admin", DecidedAt: time.Now()})
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case assert.ErrorIs(t, err, domain.ErrAlreadyDecided):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(31), conflicts)
}

func TestPostgresRepositories_MalformedIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	identities := NewIdentityRepository(nil)
	requests := NewVerificationRepository(nil)

	_, err := identities.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	assert.ErrorIs(t, identities.UpdatePassword(ctx, "42", "hash"), domain.ErrIdentityNotFound)

	_, err = requests.SubmitPending(ctx, &domain.VerificationRequest{DoctorID: "doctor"})
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	_, err = requests.Decide(ctx, "request", Decision{Status: domain.VerificationApproved})
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	events, err := requests.ListEvents(ctx, "doctor")
	require.NoError(t, err)
	assert.Empty(t, events)
}
