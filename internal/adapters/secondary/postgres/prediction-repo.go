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

const predictionColumns = `
	id, patient_id, model_id, status, binary_result, binary_confidence,
	stage_result, stage_confidence, risk_level, inference_time_ms, created_at
`

type predictionRepo struct {
	pool *pgxpool.Pool
}

func NewPredictionRepository(pool *pgxpool.Pool) ports.PredictionRepository {
	return &predictionRepo{pool: pool}
}

// Create writes the prediction, its audit events and artifact in one transaction.
func (r *predictionRepo) Create(ctx context.Context, w *ports.PredictionWrite) error {
	p := w.Prediction
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO predictions
			(patient_id, model_id, status, binary_result, binary_confidence,
			 stage_result, stage_confidence, risk_level, inference_time_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, query,
		p.PatientID, p.ModelID, string(p.Status),
		p.BinaryResult, p.BinaryConfidence,
		p.StageResult, p.StageConfidence,
		string(p.RiskLevel), p.InferenceTimeMs,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("create prediction: unknown patient or model: %w", err)
		}
		return fmt.Errorf("create prediction: %w", err)
	}

	if a := w.Artifact; a != nil {
		a.PredictionID = p.ID
		if err := insertArtifact(ctx, tx, a); err != nil {
			return err
		}
	}

	for _, ev := range w.Events {
		if ev.ReferencesPrediction() && ev.ReferenceID == nil {
			id := p.ID
			ev.ReferenceID = &id
		}
		if err := insertAuditEvent(ctx, tx, ev); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit prediction: %w", err)
	}
	return nil
}

func (r *predictionRepo) GetByID(ctx context.Context, id int64) (*domain.Prediction, error) {
	p, err := scanPrediction(r.pool.QueryRow(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPredictionNotFound
		}
		return nil, fmt.Errorf("get prediction by id: %w", err)
	}
	return p, nil
}

func (r *predictionRepo) ListByPatient(ctx context.Context, patientID int64, filter ports.ListFilter) ([]*domain.Prediction, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM predictions WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count predictions: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+predictionColumns+`
		FROM predictions
		WHERE patient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, patientID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	preds := []*domain.Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan prediction row: %w", err)
		}
		preds = append(preds, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate prediction rows: %w", err)
	}
	return preds, total, nil
}

func (r *predictionRepo) Statistics(ctx context.Context) (*domain.Statistics, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT risk_level, status, COUNT(*)
		FROM predictions
		GROUP BY risk_level, status
	`)
	if err != nil {
		return nil, fmt.Errorf("prediction statistics: %w", err)
	}
	defer rows.Close()

	stats := domain.NewStatistics()
	for rows.Next() {
		var (
			risk   domain.RiskLevel
			status domain.PredictionStatus
			n      int
		)
		if err := rows.Scan(&risk, &status, &n); err != nil {
			return nil, fmt.Errorf("scan statistics row: %w", err)
		}
		stats.Total += n
		stats.ByRiskLevel[risk] += n
		stats.ByStatus[status] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statistics rows: %w", err)
	}
	return stats, nil
}

func scanPrediction(row pgx.Row) (*domain.Prediction, error) {
	p := &domain.Prediction{}
	err := row.Scan(
		&p.ID, &p.PatientID, &p.ModelID, &p.Status,
		&p.BinaryResult, &p.BinaryConfidence,
		&p.StageResult, &p.StageConfidence,
		&p.RiskLevel, &p.InferenceTimeMs, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
