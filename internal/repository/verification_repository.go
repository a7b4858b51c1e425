package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/healthcare-identity/internal/domain"
)

// Decision is an admin's verdict on a pending request.
type Decision struct {
	Status    domain.VerificationStatus
	AdminID   string
	Note      string
	DecidedAt time.Time
}

// VerificationRepository persists doctor credential reviews and their history.
type VerificationRepository interface {
	// SubmitPending overwrites the doctor's PENDING request or inserts a new one.
	// It sets req.ID and reports whether an existing request was replaced.
	SubmitPending(ctx context.Context, req *domain.VerificationRequest) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.VerificationRequest, error)
	LatestForDoctor(ctx context.Context, doctorID string) (*domain.VerificationRequest, error)
	ListPending(ctx context.Context) ([]domain.VerificationRequest, error)
	// Decide moves a PENDING request to a terminal status. Requests that are no
	// longer PENDING yield domain.ErrAlreadyDecided.
	Decide(ctx context.Context, id string, decision Decision) (*domain.VerificationRequest, error)
	ListEvents(ctx context.Context, doctorID string) ([]domain.VerificationEvent, error)
}

type verificationRepository struct {
	pool *pgxpool.Pool
}

// NewVerificationRepository returns a Postgres-backed implementation.
func NewVerificationRepository(pool *pgxpool.Pool) VerificationRepository {
	return &verificationRepository{pool: pool}
}

const requestColumns = `id, doctor_id, specialization, license_number, clinic, experience_years,
        document_url, status, submitted_at, decided_by, decided_at, decision_note`

func (r *verificationRepository) SubmitPending(ctx context.Context, req *domain.VerificationRequest) (replaced bool, err error) {
	if !isUUID(req.DoctorID) {
		return false, domain.ErrIdentityNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Serializes submissions per doctor.
	var locked string
	if err = tx.QueryRow(ctx, `SELECT id FROM identities WHERE id=$1 AND kind=$2 FOR UPDATE`,
		req.DoctorID, domain.KindDoctor).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrIdentityNotFound
		}
		return false, err
	}

	const update = `
        UPDATE verification_requests SET
            specialization=$2, license_number=$3, clinic=$4, experience_years=$5,
            document_url=$6, submitted_at=$7
        WHERE doctor_id=$1 AND status='PENDING'
        RETURNING id`
	err = tx.QueryRow(ctx, update,
		req.DoctorID,
		req.Specialization,
		req.LicenseNumber,
		req.Clinic,
		req.ExperienceYears,
		req.DocumentURL,
		req.SubmittedAt,
	).Scan(&req.ID)

	action := domain.ActionResubmitted
	switch {
	case err == nil:
		replaced = true
	case errors.Is(err, pgx.ErrNoRows):
		action = domain.ActionSubmitted
		req.ID = uuid.NewString()
		const insert = `
            INSERT INTO verification_requests
                (id, doctor_id, specialization, license_number, clinic, experience_years, document_url, status, submitted_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,'PENDING',$8)`
		if _, err = tx.Exec(ctx, insert,
			req.ID,
			req.DoctorID,
			req.Specialization,
			req.LicenseNumber,
			req.Clinic,
			req.ExperienceYears,
			req.DocumentURL,
			req.SubmittedAt,
		); err != nil {
			return false, fmt.Errorf("insert verification request: %w", err)
		}
	default:
		return false, fmt.Errorf("replace pending request: %w", err)
	}

	req.Status = domain.VerificationPending
	req.DecidedBy = nil
	req.DecidedAt = nil
	req.DecisionNote = ""

	if err = insertEvent(ctx, tx, domain.VerificationEvent{
		RequestID: req.ID,
		DoctorID:  req.DoctorID,
		Action:    action,
		ActorID:   req.DoctorID,
		CreatedAt: req.SubmittedAt,
	}); err != nil {
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return replaced, nil
}

func (r *verificationRepository) GetByID(ctx context.Context, id string) (*domain.VerificationRequest, error) {
	if !isUUID(id) {
		return nil, domain.ErrRequestNotFound
	}
	query := `SELECT ` + requestColumns + ` FROM verification_requests WHERE id=$1`
	return scanRequest(r.pool.QueryRow(ctx, query, id))
}

func (r *verificationRepository) LatestForDoctor(ctx context.Context, doctorID string) (*domain.VerificationRequest, error) {
	if !isUUID(doctorID) {
		return nil, domain.ErrRequestNotFound
	}
	query := `SELECT ` + requestColumns + ` FROM verification_requests
        WHERE doctor_id=$1 ORDER BY submitted_at DESC, seq DESC LIMIT 1`
	return scanRequest(r.pool.QueryRow(ctx, query, doctorID))
}

func (r *verificationRepository) ListPending(ctx context.Context) ([]domain.VerificationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM verification_requests
        WHERE status='PENDING' ORDER BY submitted_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.VerificationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func (r *verificationRepository) Decide(ctx context.Context, id string, decision Decision) (_ *domain.VerificationRequest, err error) {
	if !isUUID(id) {
		return nil, domain.ErrRequestNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Compare-and-swap on status: only one concurrent decider matches the row.
	query := `
        UPDATE verification_requests
        SET status=$2, decided_by=$3, decided_at=$4, decision_note=$5
        WHERE id=$1 AND status='PENDING'
        RETURNING ` + requestColumns
	req, err := scanRequest(tx.QueryRow(ctx, query, id, decision.Status, decision.AdminID, decision.DecidedAt, decision.Note))
	if errors.Is(err, domain.ErrRequestNotFound) {
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM verification_requests WHERE id=$1)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			err = domain.ErrAlreadyDecided
		} else {
			err = domain.ErrRequestNotFound
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	action := domain.ActionApproved
	if decision.Status == domain.VerificationRejected {
		action = domain.ActionRejected
	}
	if err = insertEvent(ctx, tx, domain.VerificationEvent{
		RequestID: req.ID,
		DoctorID:  req.DoctorID,
		Action:    action,
		ActorID:   decision.AdminID,
		Note:      decision.Note,
		CreatedAt: decision.DecidedAt,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *verificationRepository) ListEvents(ctx context.Context, doctorID string) ([]domain.VerificationEvent, error) {
	if !isUUID(doctorID) {
		return nil, nil
	}
	const query = `
        SELECT id, request_id, doctor_id, action, actor_id, note, created_at
        FROM verification_events WHERE doctor_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.VerificationEvent
	for rows.Next() {
		var event domain.VerificationEvent
		if err := rows.Scan(
			&event.ID,
			&event.RequestID,
			&event.DoctorID,
			&event.Action,
			&event.ActorID,
			&event.Note,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}

func insertEvent(ctx context.Context, tx pgx.Tx, event domain.VerificationEvent) error {
	const query = `
        INSERT INTO verification_events (id, request_id, doctor_id, action, actor_id, note, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := tx.Exec(ctx, query,
		uuid.NewString(),
		event.RequestID,
		event.DoctorID,
		event.Action,
		event.ActorID,
		event.Note,
		event.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert verification event: %w", err)
	}
	return nil
}

func scanRequest(row pgx.Row) (*domain.VerificationRequest, error) {
	var req domain.VerificationRequest
	if err := row.Scan(
		&req.ID,
		&req.DoctorID,
		&req.Specialization,
		&req.LicenseNumber,
		&req.Clinic,
		&req.ExperienceYears,
		&req.DocumentURL,
		&req.Status,
		&req.SubmittedAt,
		&req.DecidedBy,
		&req.DecidedAt,
		&req.DecisionNote,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}
