package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

type artifactRepo struct {
	pool *pgxpool.Pool
}

func NewArtifactRepository(pool *pgxpool.Pool) ports.ArtifactRepository {
	return &artifactRepo{pool: pool}
}

func (r *artifactRepo) Create(ctx context.Context, artifact *domain.ExplainabilityArtifact) error {
	return insertArtifact(ctx, r.pool, artifact)
}

func (r *artifactRepo) ListByPrediction(ctx context.Context, predictionID int64) ([]*domain.ExplainabilityArtifact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, prediction_id, kind, ref, expires_at, created_at
		FROM explainability_artifacts
		WHERE prediction_id = $1
		ORDER BY id
	`, predictionID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []*domain.ExplainabilityArtifact{}
	for rows.Next() {
		a := &domain.ExplainabilityArtifact{}
		if err := rows.Scan(&a.ID, &a.PredictionID, &a.Kind, &a.Ref, &a.ExpiresAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact row: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifact rows: %w", err)
	}
	return artifacts, nil
}

func (r *artifactRepo) DeleteExpired(ctx context.Context, now time.Time) ([]*domain.ExplainabilityArtifact, error) {
	rows, err := r.pool.Query(ctx, `
		DELETE FROM explainability_artifacts
		WHERE expires_at < $1
		RETURNING id, prediction_id, kind, ref, expires_at, created_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired artifacts: %w", err)
	}
	defer rows.Close()

	deleted := []*domain.ExplainabilityArtifact{}
	for rows.Next() {
		a := &domain.ExplainabilityArtifact{}
		if err := rows.Scan(&a.ID, &a.PredictionID, &a.Kind, &a.Ref, &a.ExpiresAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deleted artifact row: %w", err)
		}
		deleted = append(deleted, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted artifact rows: %w", err)
	}
	return deleted, nil
}

func insertArtifact(ctx context.Context, q querier, a *domain.ExplainabilityArtifact) error {
	query := `
		INSERT INTO explainability_artifacts (prediction_id, kind, ref, expires_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query, a.PredictionID, string(a.Kind), a.Ref, a.ExpiresAt).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	return nil
}

// NewStore wires every postgres repository over one pool.
func NewStore(pool *pgxpool.Pool) ports.Store {
	return ports.Store{
		Patients:    NewPatientRepository(pool),
		Models:      NewRegisteredModelRepository(pool),
		Predictions: NewPredictionRepository(pool),
		Artifacts:   NewArtifactRepository(pool),
		Audit:       NewAuditRepository(pool),
	}
}
