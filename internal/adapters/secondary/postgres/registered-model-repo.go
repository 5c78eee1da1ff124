package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

const modelColumns = `
	id, name, version, architecture, supports_binary, supports_stage,
	supports_explainability, explainability_method, created_at
`

type registeredModelRepo struct {
	pool *pgxpool.Pool
}

func NewRegisteredModelRepository(pool *pgxpool.Pool) ports.RegisteredModelRepository {
	return &registeredModelRepo{pool: pool}
}

func (r *registeredModelRepo) Create(ctx context.Context, model *domain.RegisteredModel) error {
	query := `
		INSERT INTO registered_models
			(name, version, architecture, supports_binary, supports_stage,
			 supports_explainability, explainability_method)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		model.Name, model.Version, string(model.Architecture),
		model.SupportsBinary, model.SupportsStage,
		model.SupportsExplainability, string(model.ExplainabilityMethod),
	).Scan(&model.ID, &model.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrModelNameConflict
		}
		return fmt.Errorf("create registered model: %w", err)
	}
	return nil
}

func (r *registeredModelRepo) GetByID(ctx context.Context, id int64) (*domain.RegisteredModel, error) {
	m, err := scanModel(r.pool.QueryRow(ctx,
		`SELECT `+modelColumns+` FROM registered_models WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrModelNotFound
		}
		return nil, fmt.Errorf("get registered model by id: %w", err)
	}
	return m, nil
}

func (r *registeredModelRepo) GetByNameVersion(ctx context.Context, name, version string) (*domain.RegisteredModel, error) {
	m, err := scanModel(r.pool.QueryRow(ctx,
		`SELECT `+modelColumns+` FROM registered_models WHERE name = $1 AND version = $2`, name, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrModelNotFound
		}
		return nil, fmt.Errorf("get registered model by name and version: %w", err)
	}
	return m, nil
}

func (r *registeredModelRepo) GetActive(ctx context.Context, arch domain.Architecture) (*domain.RegisteredModel, error) {
	query := `SELECT ` + modelColumns + `
		FROM registered_models
		WHERE architecture = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	m, err := scanModel(r.pool.QueryRow(ctx, query, string(arch)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrModelNotFound
		}
		return nil, fmt.Errorf("get active model: %w", err)
	}
	return m, nil
}

func (r *registeredModelRepo) List(ctx context.Context) ([]*domain.RegisteredModel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+modelColumns+` FROM registered_models ORDER BY architecture, created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list registered models: %w", err)
	}
	defer rows.Close()

	models := []*domain.RegisteredModel{}
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registered model row: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registered model rows: %w", err)
	}
	return models, nil
}

func scanModel(row pgx.Row) (*domain.RegisteredModel, error) {
	m := &domain.RegisteredModel{}
	err := row.Scan(
		&m.ID, &m.Name, &m.Version, &m.Architecture,
		&m.SupportsBinary, &m.SupportsStage,
		&m.SupportsExplainability, &m.ExplainabilityMethod, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}
