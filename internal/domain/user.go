package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "streetart_marketplace/pkg/errors"
)

type Role string

const (
	RoleArtist    Role = "artist"
	RoleWallOwner Role = "wall_owner"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleArtist, RoleWallOwner:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", apperrors.ErrValidation, s)
	}
}

type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"display_name"`
	RoleHint     Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type UserSession struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	RefreshTokenHash string     `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevokedReason    *string    `json:"revoked_reason,omitempty"`
}

// Actor - аутентифицированный пользователь, от имени которого выполняется запрос.
type Actor struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}

func (a Actor) IsArtist() bool    { return a.Role == RoleArtist }
func (a Actor) IsWallOwner() bool { return a.Role == RoleWallOwner }
