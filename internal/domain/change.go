package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

const (
	TableProposals     = "proposals"
	TableProjects      = "projects"
	TableConversations = "conversations"
	TableMessages      = "messages"
)

// ChangeEvent - уведомление об изменении строки из ленты изменений.
// Доставка at-least-once, подписчики должны переносить дубли.
type ChangeEvent struct {
	Table  string          `json:"table"`
	Type   ChangeType      `json:"type"`
	ID     uuid.UUID       `json:"id"`
	Record json.RawMessage `json:"record,omitempty"`
	// Parties - пользователи, которым разрешено видеть событие.
	Parties []uuid.UUID `json:"parties,omitempty"`
}

func (e ChangeEvent) VisibleTo(userID uuid.UUID) bool {
	if len(e.Parties) == 0 {
		return false
	}
	for _, p := range e.Parties {
		if p == userID {
			return true
		}
	}
	return false
}

// NewChangeEvent сериализует record в полезную нагрузку события.
func NewChangeEvent(table string, typ ChangeType, id uuid.UUID, record any, parties ...uuid.UUID) (ChangeEvent, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return ChangeEvent{}, err
	}
	return ChangeEvent{Table: table, Type: typ, ID: id, Record: raw, Parties: parties}, nil
}
