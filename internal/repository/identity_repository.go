package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/healthcare-identity/internal/domain"
)

const (
	uniqueViolation          = "23505"
	identityEmailConstraint  = "identities_kind_email_key"
	identityMobileConstraint = "identities_kind_mobile_key"
)

// IdentityRepository defines persistence access for patients, doctors and admins.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, kind domain.IdentityKind, email string) (*domain.Identity, error)
	GetByMobile(ctx context.Context, kind domain.IdentityKind, mobile string) (*domain.Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Identity, error)
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

const identityColumns = `id, kind, email, COALESCE(mobile, ''), password_hash,
        full_name, gender, date_of_birth, address, photo_url, created_at, updated_at`

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO identities (id, kind, email, mobile, password_hash, full_name, gender, date_of_birth, address, photo_url)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)
        RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		identity.ID,
		identity.Kind,
		identity.Email,
		identity.Mobile,
		identity.PasswordHash,
		identity.Profile.FullName,
		identity.Profile.Gender,
		identity.Profile.DateOfBirth,
		identity.Profile.Address,
		identity.Profile.PhotoURL,
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
	return translateIdentityError(err)
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	if !isUUID(id) {
		return nil, domain.ErrIdentityNotFound
	}
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id=$1`
	return scanIdentity(r.pool.QueryRow(ctx, query, id))
}

func (r *identityRepository) GetByEmail(ctx context.Context, kind domain.IdentityKind, email string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE kind=$1 AND email=$2`
	return scanIdentity(r.pool.QueryRow(ctx, query, kind, email))
}

func (r *identityRepository) GetByMobile(ctx context.Context, kind domain.IdentityKind, mobile string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE kind=$1 AND mobile=$2`
	return scanIdentity(r.pool.QueryRow(ctx, query, kind, mobile))
}

func (r *identityRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if !isUUID(id) {
		return domain.ErrIdentityNotFound
	}
	const query = `
        UPDATE identities SET password_hash=$1, updated_at=NOW()
        WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func (r *identityRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Identity, error) {
	if !isUUID(id) {
		return nil, domain.ErrIdentityNotFound
	}
	query := `
        UPDATE identities SET
            full_name=COALESCE($2, full_name),
            gender=COALESCE($3, gender),
            date_of_birth=COALESCE($4, date_of_birth),
            address=COALESCE($5, address),
            photo_url=COALESCE($6, photo_url),
            updated_at=NOW()
        WHERE id=$1
        RETURNING ` + identityColumns

	return scanIdentity(r.pool.QueryRow(ctx, query,
		id,
		update.FullName,
		update.Gender,
		update.DateOfBirth,
		update.Address,
		update.PhotoURL,
	))
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var identity domain.Identity
	if err := row.Scan(
		&identity.ID,
		&identity.Kind,
		&identity.Email,
		&identity.Mobile,
		&identity.PasswordHash,
		&identity.Profile.FullName,
		&identity.Profile.Gender,
		&identity.Profile.DateOfBirth,
		&identity.Profile.Address,
		&identity.Profile.PhotoURL,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}

// isUUID guards UUID columns; Postgres rejects malformed ids with an error
// instead of matching no rows.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func translateIdentityError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case identityEmailConstraint:
			return domain.ErrDuplicateEmail
		case identityMobileConstraint:
			return domain.ErrDuplicateMobile
		}
	}
	return fmt.Errorf("insert identity: %w", err)
}
