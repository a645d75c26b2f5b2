package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/repository"
	apperrors "streetart_marketplace/pkg/errors"
	"streetart_marketplace/pkg/logger"
)

// LifecycleService управляет предложениями и созданными из них проектами.
type LifecycleService interface {
	ListForActor(ctx context.Context, actor domain.Actor) (*Listing, error)
	GetProposal(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Proposal, error)
	GetProject(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Project, error)
	CreateProposal(ctx context.Context, actor domain.Actor, input domain.NewProposal) (*domain.Proposal, error)
	DecideProposal(ctx context.Context, actor domain.Actor, id uuid.UUID, decision string) (*Decision, error)
	AdvanceProject(ctx context.Context, actor domain.Actor, id uuid.UUID, status string) (*domain.Project, error)
	// Orphans возвращает принятые предложения без проекта.
	Orphans(ctx context.Context) ([]*domain.Proposal, error)
	// Reconcile создает недостающий проект для каждого такого предложения.
	Reconcile(ctx context.Context) (*ReconcileReport, error)
}

type Listing struct {
	Proposals []*domain.Proposal `json:"proposals"`
	Projects  []*domain.Project  `json:"projects"`
}

type Decision struct {
	Proposal *domain.Proposal `json:"proposal"`
	Project  *domain.Project  `json:"project,omitempty"`
}

type ReconcileReport struct {
	Checked  int                  `json:"checked"`
	Created  []*domain.Project    `json:"created"`
	Failures map[uuid.UUID]string `json:"failures,omitempty"`
}

type lifecycleService struct {
	proposalRepo repository.ProposalRepository
	projectRepo  repository.ProjectRepository
	userRepo     repository.UserRepository
	audit        AuditService
	pub          publisher
	log          logger.Logger
}

func NewLifecycleService(
	proposalRepo repository.ProposalRepository,
	projectRepo repository.ProjectRepository,
	userRepo repository.UserRepository,
	audit AuditService,
	feed repository.ChangeFeed,
	log logger.Logger,
) LifecycleService {
	return &lifecycleService{
		proposalRepo: proposalRepo,
		projectRepo:  projectRepo,
		userRepo:     userRepo,
		audit:        audit,
		pub:          publisher{feed: feed, log: log},
		log:          log,
	}
}

func (s *lifecycleService) ListForActor(ctx context.Context, actor domain.Actor) (*Listing, error) {
	proposals, err := s.proposalRepo.ListByParty(ctx, actor.Role, actor.ID)
	if err != nil {
		return nil, err
	}
	projects, err := s.projectRepo.ListByParty(ctx, actor.Role, actor.ID)
	if err != nil {
		return nil, err
	}
	return &Listing{Proposals: proposals, Projects: projects}, nil
}

func (s *lifecycleService) GetProposal(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Proposal, error) {
	proposal, err := s.proposalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// чужие предложения не раскрываем: not found вместо forbidden
	if !proposal.HasParty(actor.ID) {
		return nil, apperrors.ErrProposalNotFound
	}
	return proposal, nil
}

func (s *lifecycleService) GetProject(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !project.HasParty(actor.ID) {
		return nil, apperrors.ErrProjectNotFound
	}
	return project, nil
}

func (s *lifecycleService) CreateProposal(ctx context.Context, actor domain.Actor, input domain.NewProposal) (*domain.Proposal, error) {
	if !actor.IsWallOwner() {
		return nil, fmt.Errorf("%w: only wall owners can create proposals", apperrors.ErrForbidden)
	}
	input.WallOwnerID = actor.ID
	if err := input.Normalize(); err != nil {
		return nil, err
	}

	role, err := s.userRepo.RoleOf(ctx, input.ArtistID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: artist %s", apperrors.ErrNotFound, input.ArtistID)
		}
		return nil, err
	}
	if role != domain.RoleArtist {
		return nil, fmt.Errorf("%w: target user is not an artist", apperrors.ErrValidation)
	}

	proposal := &domain.Proposal{
		ID:          uuid.New(),
		Title:       input.Title,
		Description: input.Description,
		Budget:      input.Budget,
		Status:      domain.ProposalStatusPending,
		ArtistID:    input.ArtistID,
		WallOwnerID: input.WallOwnerID,
	}
	if err := s.proposalRepo.Create(ctx, proposal); err != nil {
		return nil, err
	}

	s.log.Info("Proposal created", "proposal_id", proposal.ID, "artist_id", proposal.ArtistID, "wall_owner_id", proposal.WallOwnerID)
	s.audit.LogEvent(ctx, &actor, proposal.ID, domain.EventTypeProposalCreated, map[string]interface{}{
		"title":     proposal.Title,
		"artist_id": proposal.ArtistID.String(),
	})
	s.pub.table(ctx, domain.TableProposals, domain.ChangeInsert, proposal.ID, proposal, proposal.ArtistID, proposal.WallOwnerID)

	return proposal, nil
}

func (s *lifecycleService) DecideProposal(ctx context.Context, actor domain.Actor, id uuid.UUID, decision string) (*Decision, error) {
	status, err := domain.ParseDecision(decision)
	if err != nil {
		return nil, err
	}

	proposal, err := s.GetProposal(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if proposal.WallOwnerID != actor.ID {
		return nil, fmt.Errorf("%w: only the proposal's wall owner can decide it", apperrors.ErrForbidden)
	}
	if !proposal.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: proposal is already %s", apperrors.ErrInvalidTransition, proposal.Status)
	}

	// репозиторий повторно проверяет статус pending внутри транзакции
	decided, project, err := s.proposalRepo.Decide(ctx, id, status)
	if err != nil {
		return nil, err
	}

	eventType := domain.EventTypeProposalRejected
	if status == domain.ProposalStatusAccepted {
		eventType = domain.EventTypeProposalAccepted
	}
	payload := map[string]interface{}{"status": string(status)}
	if project != nil {
		payload["project_id"] = project.ID.String()
	}
	s.log.Info("Proposal decided", "proposal_id", id, "status", status)
	s.audit.LogEvent(ctx, &actor, id, eventType, payload)

	s.pub.table(ctx, domain.TableProposals, domain.ChangeUpdate, decided.ID, decided, decided.ArtistID, decided.WallOwnerID)
	if project != nil {
		s.pub.table(ctx, domain.TableProjects, domain.ChangeInsert, project.ID, project, project.ArtistID, project.WallOwnerID)
	}

	return &Decision{Proposal: decided, Project: project}, nil
}

func (s *lifecycleService) AdvanceProject(ctx context.Context, actor domain.Actor, id uuid.UUID, status string) (*domain.Project, error) {
	next, err := domain.ParseProjectStatus(status)
	if err != nil {
		return nil, err
	}

	project, err := s.GetProject(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if project.ArtistID != actor.ID {
		return nil, fmt.Errorf("%w: only the project's artist can update its status", apperrors.ErrForbidden)
	}
	if !project.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: project cannot move from %s to %s", apperrors.ErrInvalidTransition, project.Status, next)
	}

	updated, completedProposal, err := s.projectRepo.UpdateStatus(ctx, id, next)
	if err != nil {
		return nil, err
	}

	eventType := domain.EventTypeProjectUpdated
	if next == domain.ProjectStatusCompleted {
		eventType = domain.EventTypeProjectCompleted
	}
	s.log.Info("Project status updated", "project_id", id, "status", next)
	s.audit.LogEvent(ctx, &actor, id, eventType, map[string]interface{}{"status": string(next)})

	s.pub.table(ctx, domain.TableProjects, domain.ChangeUpdate, updated.ID, updated, updated.ArtistID, updated.WallOwnerID)
	if completedProposal != nil {
		s.pub.table(ctx, domain.TableProposals, domain.ChangeUpdate, completedProposal.ID, completedProposal,
			completedProposal.ArtistID, completedProposal.WallOwnerID)
	}

	return updated, nil
}

func (s *lifecycleService) Orphans(ctx context.Context) ([]*domain.Proposal, error) {
	return s.proposalRepo.ListAcceptedWithoutProject(ctx)
}

func (s *lifecycleService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	orphans, err := s.proposalRepo.ListAcceptedWithoutProject(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{Checked: len(orphans), Created: []*domain.Project{}}
	for _, proposal := range orphans {
		project, created, err := s.proposalRepo.EnsureProject(ctx, proposal)
		if err != nil {
			if report.Failures == nil {
				report.Failures = make(map[uuid.UUID]string)
			}
			report.Failures[proposal.ID] = err.Error()
			continue
		}
		if !created {
			continue
		}
		report.Created = append(report.Created, project)
		s.log.Info("Reconciled missing project", "proposal_id", proposal.ID, "project_id", project.ID)
		s.audit.LogEvent(ctx, nil, project.ID, domain.EventTypeProjectReconciled, map[string]interface{}{
			"proposal_id": proposal.ID.String(),
		})
		s.pub.table(ctx, domain.TableProjects, domain.ChangeInsert, project.ID, project, project.ArtistID, project.WallOwnerID)
	}

	if len(report.Failures) > 0 {
		return report, fmt.Errorf("reconcile: %d of %d proposals failed", len(report.Failures), len(orphans))
	}
	return report, nil
}
