package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"streetart_marketplace/internal/config"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/repository"
	apperrors "streetart_marketplace/pkg/errors"
	"streetart_marketplace/pkg/jwt"
	"streetart_marketplace/pkg/logger"
)

type AuthService interface {
	Register(ctx context.Context, email, password, displayName string, role domain.Role) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
	// ValidateToken определяет по access-токену пользователя и его текущую роль.
	ValidateToken(ctx context.Context, tokenString string) (*domain.Actor, error)
	Logout(ctx context.Context, refreshToken string) error
}

type LoginResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type authService struct {
	userRepo repository.UserRepository
	jwtCfg   config.JWTConfig
	log      logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		jwtCfg:   jwtCfg,
		log:      log,
	}
}

func (s *authService) Register(ctx context.Context, email, password, displayName string, role domain.Role) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)

	switch {
	case email == "":
		return nil, fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	case utf8.RuneCountInString(email) > 255:
		return nil, fmt.Errorf("%w: email is too long", apperrors.ErrValidation)
	case !strings.Contains(email, "@"):
		return nil, fmt.Errorf("%w: invalid email format", apperrors.ErrValidation)
	case utf8.RuneCountInString(password) < 8:
		return nil, fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrValidation)
	case displayName == "":
		return nil, fmt.Errorf("%w: display name is required", apperrors.ErrValidation)
	case utf8.RuneCountInString(displayName) > 100:
		return nil, fmt.Errorf("%w: display name is too long (max 100 characters)", apperrors.ErrValidation)
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("Failed to hash password", "error", err)
		return nil, errors.New("failed to hash password")
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(passwordHash),
		DisplayName:  displayName,
		RoleHint:     role,
		IsActive:     true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		// не раскрываем, существует ли аккаунт
		return nil, apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user account is disabled", apperrors.ErrForbidden)
	}

	role, err := s.userRepo.RoleOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	tokens, err := s.issueTokens(ctx, user, role)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.TouchLastLogin(ctx, user.ID); err != nil {
		s.log.Warn("Failed to update last login", "error", err, "user_id", user.ID)
	}

	user.PasswordHash = ""
	user.RoleHint = role
	return &LoginResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := jwt.ValidateRefreshToken(refreshToken, s.jwtCfg.RefreshSecret)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	session, err := s.userRepo.GetSessionByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user account is disabled", apperrors.ErrForbidden)
	}
	role, err := s.userRepo.RoleOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.RevokeSession(ctx, session.ID, "refreshed"); err != nil {
		s.log.Warn("Failed to revoke old session", "error", err)
	}
	return s.issueTokens(ctx, user, role)
}

func (s *authService) issueTokens(ctx context.Context, user *domain.User, role domain.Role) (*TokenResponse, error) {
	accessToken, err := jwt.GenerateAccessToken(user.ID, user.Email, string(role), s.jwtCfg.AccessSecret, s.jwtCfg.AccessTTL)
	if err != nil {
		s.log.Error("Failed to generate access token", "error", err)
		return nil, errors.New("failed to generate access token")
	}
	refreshToken, err := jwt.GenerateRefreshToken(user.ID, s.jwtCfg.RefreshSecret, s.jwtCfg.RefreshTTL)
	if err != nil {
		s.log.Error("Failed to generate refresh token", "error", err)
		return nil, errors.New("failed to generate refresh token")
	}

	session := &domain.UserSession{
		ID:               uuid.New(),
		UserID:           user.ID,
		RefreshTokenHash: hashToken(refreshToken),
		ExpiresAt:        time.Now().Add(s.jwtCfg.RefreshTTL),
	}
	if err := s.userRepo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*domain.Actor, error) {
	claims, err := jwt.ValidateToken(tokenString, s.jwtCfg.AccessSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user account is disabled", apperrors.ErrForbidden)
	}

	role, err := s.userRepo.RoleOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &domain.Actor{ID: user.ID, Email: user.Email, Role: role}, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.userRepo.GetSessionByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		return err
	}
	return s.userRepo.RevokeSession(ctx, session.ID, "logout")
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
