package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID *uuid.UUID             `json:"actor_user_id,omitempty"`
	ActorRole   string                 `json:"actor_role"`
	EntityID    *uuid.UUID             `json:"entity_id,omitempty"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

const ActorRoleSystem = "system"

const (
	EventTypeProposalCreated     = "PROPOSAL_CREATED"
	EventTypeProposalAccepted    = "PROPOSAL_ACCEPTED"
	EventTypeProposalRejected    = "PROPOSAL_REJECTED"
	EventTypeProjectUpdated      = "PROJECT_UPDATED"
	EventTypeProjectCompleted    = "PROJECT_COMPLETED"
	EventTypeProjectReconciled   = "PROJECT_RECONCILED"
	EventTypeConversationCreated = "CONVERSATION_CREATED"
)
