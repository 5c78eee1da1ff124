package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

type patientRepo struct {
	pool *pgxpool.Pool
}

func NewPatientRepository(pool *pgxpool.Pool) ports.PatientRepository {
	return &patientRepo{pool: pool}
}

func (r *patientRepo) GetOrCreate(ctx context.Context, externalRef string) (*domain.Patient, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// ON CONFLICT keeps concurrent first requests for the same ref down to one row.
	query := `
		INSERT INTO patients (external_ref)
		VALUES ($1)
		ON CONFLICT (external_ref) DO NOTHING
		RETURNING id, external_ref, created_at
	`
	p, err := scanPatient(tx.QueryRow(ctx, query, externalRef))
	if errors.Is(err, pgx.ErrNoRows) {
		p, err = scanPatient(tx.QueryRow(ctx,
			`SELECT id, external_ref, created_at FROM patients WHERE external_ref = $1`, externalRef))
	}
	if err != nil {
		return nil, fmt.Errorf("get or create patient: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit patient: %w", err)
	}
	return p, nil
}

func (r *patientRepo) GetByExternalRef(ctx context.Context, externalRef string) (*domain.Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx,
		`SELECT id, external_ref, created_at FROM patients WHERE external_ref = $1`, externalRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient by external ref: %w", err)
	}
	return p, nil
}

func (r *patientRepo) GetByID(ctx context.Context, id int64) (*domain.Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx,
		`SELECT id, external_ref, created_at FROM patients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient by id: %w", err)
	}
	return p, nil
}

func (r *patientRepo) List(ctx context.Context, filter ports.ListFilter) ([]*domain.Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, external_ref, created_at
		FROM patients
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients := []*domain.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient row: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate patient rows: %w", err)
	}
	return patients, total, nil
}

func scanPatient(row pgx.Row) (*domain.Patient, error) {
	p := &domain.Patient{}
	if err := row.Scan(&p.ID, &p.ExternalRef, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}
