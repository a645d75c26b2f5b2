package service

import (
	"context"

	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/pkg/logger"
)

type AuditService interface {
	// LogEvent записывает событие. При nil actor событие считается системным.
	// Ошибки только логируются: сама операция уже зафиксирована.
	LogEvent(ctx context.Context, actor *domain.Actor, entityID uuid.UUID, eventType string, payload map[string]interface{})
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actor *domain.Actor, entityID uuid.UUID, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		ActorRole: domain.ActorRoleSystem,
		EntityID:  &entityID,
		EventType: eventType,
		Payload:   payload,
	}
	if actor != nil {
		id := actor.ID
		auditLog.ActorUserID = &id
		auditLog.ActorRole = string(actor.Role)
	}

	if err := s.auditRepo.CreateLog(ctx, auditLog); err != nil {
		s.log.Warn("Failed to write audit log", "error", err, "event_type", eventType, "entity_id", entityID)
	}
}
