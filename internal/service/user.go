package service

import (
	"context"

	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/pkg/logger"
)

type UserService interface {
	GetMe(ctx context.Context, actor domain.Actor) (*domain.User, error)
	RoleOf(ctx context.Context, userID uuid.UUID) (domain.Role, error)
}

type userService struct {
	userRepo repository.UserRepository
	log      logger.Logger
}

func NewUserService(userRepo repository.UserRepository, log logger.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		log:      log,
	}
}

func (s *userService) GetMe(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	user.RoleHint = actor.Role
	return user, nil
}

func (s *userService) RoleOf(ctx context.Context, userID uuid.UUID) (domain.Role, error) {
	return s.userRepo.RoleOf(ctx, userID)
}
