package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/repository"
	apperrors "streetart_marketplace/pkg/errors"
	"streetart_marketplace/pkg/logger"
)

const (
	maxMessageLength  = 4000
	maxClientIDLength = 64
)

type ConversationService interface {
	ListConversations(ctx context.Context, actor domain.Actor) ([]*domain.Conversation, error)
	// CreateConversation возвращает существующий диалог пары или создает его.
	CreateConversation(ctx context.Context, actor domain.Actor, artistID, wallOwnerID uuid.UUID, projectID *uuid.UUID) (*domain.Conversation, error)
	// ListMessages возвращает переписку со старых сообщений и помечает прочитанными сообщения собеседника.
	ListMessages(ctx context.Context, actor domain.Actor, conversationID uuid.UUID) ([]*domain.Message, error)
	// SendMessage сохраняет сообщение. Пустой content игнорируется, результат (nil, nil).
	SendMessage(ctx context.Context, actor domain.Actor, conversationID uuid.UUID, content string, clientID *string) (*domain.Message, error)
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	projectRepo      repository.ProjectRepository
	userRepo         repository.UserRepository
	audit            AuditService
	pub              publisher
	log              logger.Logger
}

func NewConversationService(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	projectRepo repository.ProjectRepository,
	userRepo repository.UserRepository,
	audit AuditService,
	feed repository.ChangeFeed,
	log logger.Logger,
) ConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		projectRepo:      projectRepo,
		userRepo:         userRepo,
		audit:            audit,
		pub:              publisher{feed: feed, log: log},
		log:              log,
	}
}

func (s *conversationService) ListConversations(ctx context.Context, actor domain.Actor) ([]*domain.Conversation, error) {
	return s.conversationRepo.ListForUser(ctx, actor.Role, actor.ID)
}

func (s *conversationService) CreateConversation(ctx context.Context, actor domain.Actor, artistID, wallOwnerID uuid.UUID, projectID *uuid.UUID) (*domain.Conversation, error) {
	if artistID == uuid.Nil || wallOwnerID == uuid.Nil {
		return nil, fmt.Errorf("%w: artist and wall owner are required", apperrors.ErrValidation)
	}
	if actor.ID != artistID && actor.ID != wallOwnerID {
		return nil, fmt.Errorf("%w: conversations can only be opened with yourself as a party", apperrors.ErrForbidden)
	}
	if err := s.expectRole(ctx, artistID, domain.RoleArtist); err != nil {
		return nil, err
	}
	if err := s.expectRole(ctx, wallOwnerID, domain.RoleWallOwner); err != nil {
		return nil, err
	}
	if projectID != nil {
		project, err := s.projectRepo.GetByID(ctx, *projectID)
		if err != nil {
			return nil, err
		}
		if project.ArtistID != artistID || project.WallOwnerID != wallOwnerID {
			return nil, fmt.Errorf("%w: project does not belong to this pair", apperrors.ErrValidation)
		}
	}

	conv, created, err := s.conversationRepo.FindOrCreate(ctx, &domain.Conversation{
		ID:          uuid.New(),
		ArtistID:    artistID,
		WallOwnerID: wallOwnerID,
		ProjectID:   projectID,
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.log.Info("Conversation created", "conversation_id", conv.ID, "artist_id", artistID, "wall_owner_id", wallOwnerID)
		s.audit.LogEvent(ctx, &actor, conv.ID, domain.EventTypeConversationCreated, nil)
		s.pub.table(ctx, domain.TableConversations, domain.ChangeInsert, conv.ID, conv, conv.ArtistID, conv.WallOwnerID)
	}
	return conv, nil
}

func (s *conversationService) expectRole(ctx context.Context, userID uuid.UUID, want domain.Role) error {
	role, err := s.userRepo.RoleOf(ctx, userID)
	if err != nil {
		return err
	}
	if role != want {
		return fmt.Errorf("%w: user %s is not a %s", apperrors.ErrValidation, userID, want)
	}
	return nil
}

func (s *conversationService) load(ctx context.Context, actor domain.Actor, conversationID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParty(actor.ID) {
		return nil, apperrors.ErrConversationNotFound
	}
	return conv, nil
}

func (s *conversationService) ListMessages(ctx context.Context, actor domain.Actor, conversationID uuid.UUID) ([]*domain.Message, error) {
	conv, err := s.load(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}

	messages, marked, err := s.messageRepo.ListAndMarkRead(ctx, conv.ID, actor.ID)
	if err != nil {
		return nil, err
	}

	if marked > 0 {
		// изменились счетчики непрочитанных; списки перезагружаются на любое событие conversations
		s.pub.table(ctx, domain.TableConversations, domain.ChangeUpdate, conv.ID,
			map[string]interface{}{"id": conv.ID, "read_by": actor.ID, "marked": marked},
			conv.ArtistID, conv.WallOwnerID)
	}
	return messages, nil
}

func (s *conversationService) SendMessage(ctx context.Context, actor domain.Actor, conversationID uuid.UUID, content string, clientID *string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" || actor.ID == uuid.Nil || conversationID == uuid.Nil {
		return nil, nil
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, fmt.Errorf("%w: message is too long (max %d characters)", apperrors.ErrValidation, maxMessageLength)
	}
	if clientID != nil && len(*clientID) > maxClientIDLength {
		return nil, fmt.Errorf("%w: client id is too long", apperrors.ErrValidation)
	}

	conv, err := s.load(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}

	senderRole := domain.RoleWallOwner
	if conv.ArtistID == actor.ID {
		senderRole = domain.RoleArtist
	}

	message := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       actor.ID,
		SenderRole:     senderRole,
		Content:        content,
		ClientID:       clientID,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	s.pub.messages(ctx, conv.ID, domain.ChangeInsert, message, conv.ArtistID, conv.WallOwnerID)
	s.pub.table(ctx, domain.TableConversations, domain.ChangeUpdate, conv.ID,
		map[string]interface{}{"id": conv.ID, "last_message_id": message.ID},
		conv.ArtistID, conv.WallOwnerID)

	return message, nil
}
