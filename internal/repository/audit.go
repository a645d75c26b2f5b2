package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/pkg/logger"
)

type AuditRepository interface {
	CreateLog(ctx context.Context, log *domain.AuditLog) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	query := `
		INSERT INTO audit_log (actor_user_id, actor_role, entity_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, event_time
	`

	err := r.db.QueryRow(ctx, query,
		auditLog.ActorUserID, auditLog.ActorRole, auditLog.EntityID,
		auditLog.EventType, auditLog.Payload,
	).Scan(&auditLog.ID, &auditLog.EventTime)
	if err != nil {
		r.log.Error("Failed to create audit log", "error", err, "event_type", auditLog.EventType)
		return err
	}

	return nil
}
