package domain

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID          uuid.UUID    `json:"id"`
	ArtistID    uuid.UUID    `json:"artist_id"`
	WallOwnerID uuid.UUID    `json:"wall_owner_id"`
	ProjectID   *uuid.UUID   `json:"project_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
}

// LastMessage - превью, вычисляемое при чтении.
type LastMessage struct {
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	SenderRole Role      `json:"sender_role"`
}

func (c *Conversation) HasParty(userID uuid.UUID) bool {
	return c.ArtistID == userID || c.WallOwnerID == userID
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderRole     Role      `json:"sender_role"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	ClientID       *string   `json:"client_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	// Pending выставлен у оптимистичных записей, еще не подтвержденных сервером.
	Pending bool `json:"pending,omitempty"`
}
