package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"streetart_marketplace/internal/domain"
	apperrors "streetart_marketplace/pkg/errors"
	"streetart_marketplace/pkg/logger"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	// RoleOf проверяет членство в artists/wall_owners, иначе берет сохраненную роль.
	RoleOf(ctx context.Context, id uuid.UUID) (domain.Role, error)
	CreateSession(ctx context.Context, session *domain.UserSession) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.UserSession, error)
	RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

const userColumns = `id, email, password_hash, display_name, role_hint, is_active, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.RoleHint,
		&user.IsActive, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

// Create создает пользователя и запись о его роли в одной транзакции.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	roleTable, err := roleTable(user.RoleHint)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO users (id, email, password_hash, display_name, role_hint, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`
		if err := tx.QueryRow(ctx, query,
			user.ID, user.Email, user.PasswordHash, user.DisplayName, user.RoleHint, user.IsActive,
		).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO `+roleTable+` (user_id) VALUES ($1)`, user.ID)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			r.log.Warn("User already exists (unique violation)", "email", user.Email)
			return apperrors.ErrUserAlreadyExists
		}
		r.log.Error("Failed to create user", "error", err, "email", user.Email)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, apperrors.ErrNotFound)
		}
		r.log.Error("Failed to get user by ID", "error", err)
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, apperrors.ErrNotFound)
		}
		r.log.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return user, nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = now(), updated_at = now() WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to update last login", "error", err)
		return err
	}
	return nil
}

func (r *userRepository) RoleOf(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM artists WHERE user_id = $1),
		       EXISTS (SELECT 1 FROM wall_owners WHERE user_id = $1),
		       role_hint
		FROM users
		WHERE id = $1
	`

	var isArtist, isOwner bool
	var hint domain.Role
	if err := r.db.QueryRow(ctx, query, id).Scan(&isArtist, &isOwner, &hint); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("user %s: %w", id, apperrors.ErrNotFound)
		}
		r.log.Error("Failed to resolve role", "error", err, "user_id", id)
		return "", err
	}
	return resolveRole(isArtist, isOwner, hint), nil
}

// resolveRole опирается на таблицы ролей; сохраненная роль решает только неоднозначность.
func resolveRole(isArtist, isOwner bool, hint domain.Role) domain.Role {
	switch {
	case isArtist && !isOwner:
		return domain.RoleArtist
	case isOwner && !isArtist:
		return domain.RoleWallOwner
	default:
		return hint
	}
}

func (r *userRepository) CreateSession(ctx context.Context, session *domain.UserSession) error {
	query := `
		INSERT INTO user_sessions (id, user_id, refresh_token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		session.ID, session.UserID, session.RefreshTokenHash, session.ExpiresAt,
	).Scan(&session.CreatedAt)
	if err != nil {
		r.log.Error("Failed to create session", "error", err)
		return err
	}
	return nil
}

func (r *userRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.UserSession, error) {
	query := `
		SELECT id, user_id, refresh_token_hash, created_at, expires_at, revoked_at, revoked_reason
		FROM user_sessions
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > now()
	`

	session := &domain.UserSession{}
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID, &session.UserID, &session.RefreshTokenHash,
		&session.CreatedAt, &session.ExpiresAt, &session.RevokedAt, &session.RevokedReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", apperrors.ErrNotFound)
		}
		r.log.Error("Failed to get session", "error", err)
		return nil, err
	}
	return session, nil
}

func (r *userRepository) RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	query := `
		UPDATE user_sessions
		SET revoked_at = now(), revoked_reason = $2
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, sessionID, reason); err != nil {
		r.log.Error("Failed to revoke session", "error", err)
		return err
	}
	return nil
}

func roleTable(role domain.Role) (string, error) {
	switch role {
	case domain.RoleArtist:
		return "artists", nil
	case domain.RoleWallOwner:
		return "wall_owners", nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", apperrors.ErrValidation, role)
	}
}

// 23505 = unique_violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
