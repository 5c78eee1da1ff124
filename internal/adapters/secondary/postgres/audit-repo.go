package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
	"scan-prediction-service/internal/core/privacy"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type auditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) ports.AuditRepository {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Append(ctx context.Context, event *domain.AuditEvent) error {
	return insertAuditEvent(ctx, r.pool, event)
}

func (r *auditRepo) List(ctx context.Context, filter ports.AuditListFilter) ([]*domain.AuditEvent, int, error) {
	where := "1=1"
	args := []any{}
	if filter.Kind != "" {
		where = "event_kind = $1"
		args = append(args, string(filter.Kind))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, event_kind, reference_id, reference_kind, message, created_at
		FROM audit_events
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := []*domain.AuditEvent{}
	for rows.Next() {
		ev := &domain.AuditEvent{}
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.ReferenceID, &ev.ReferenceKind, &ev.Message, &ev.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit event row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit event rows: %w", err)
	}
	return events, total, nil
}

// insertAuditEvent is the single audit write path; the message is sanitized
// immediately before the insert.
func insertAuditEvent(ctx context.Context, q querier, event *domain.AuditEvent) error {
	if !event.Kind.Valid() {
		return domain.ErrInvalidEventKind
	}
	privacy.SanitizeEvent(event)

	query := `
		INSERT INTO audit_events (event_kind, reference_id, reference_kind, message)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query,
		string(event.Kind), event.ReferenceID, event.ReferenceKind, event.Message,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
