package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"streetart_marketplace/internal/domain"
	apperrors "streetart_marketplace/pkg/errors"
	"streetart_marketplace/pkg/logger"
)

type ProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	ListByParty(ctx context.Context, role domain.Role, userID uuid.UUID) ([]*domain.Project, error)
	// UpdateStatus меняет статус еще не завершенного проекта.
	// При завершении проставляется completed_at и завершается предложение,
	// которое возвращается, если его статус изменился.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProjectStatus) (*domain.Project, *domain.Proposal, error)
}

type projectRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewProjectRepository(db *pgxpool.Pool, log logger.Logger) ProjectRepository {
	return &projectRepository{db: db, log: log}
}

const projectColumns = `id, proposal_id, title, description, budget, status, deadline, completed_at, artist_id, wall_owner_id, created_at, updated_at`

func scanProject(row pgx.Row) (*domain.Project, error) {
	p := &domain.Project{}
	err := row.Scan(
		&p.ID, &p.ProposalID, &p.Title, &p.Description, &p.Budget, &p.Status,
		&p.Deadline, &p.CompletedAt, &p.ArtistID, &p.WallOwnerID, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrProjectNotFound
		}
		r.log.Error("Failed to get project", "error", err, "project_id", id)
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return p, nil
}

func (r *projectRepository) ListByParty(ctx context.Context, role domain.Role, userID uuid.UUID) ([]*domain.Project, error) {
	column, err := partyColumn(role)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE ` + column + ` = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list projects", "error", err)
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	defer rows.Close()

	projects := []*domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			r.log.Error("Failed to scan project", "error", err)
			return nil, fmt.Errorf("failed to load projects: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *projectRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProjectStatus) (*domain.Project, *domain.Proposal, error) {
	var project *domain.Project
	var proposal *domain.Proposal

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			UPDATE projects
			SET status = $2,
			    updated_at = now(),
			    completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END
			WHERE id = $1 AND status <> 'completed'
			RETURNING ` + projectColumns

		p, err := scanProject(tx.QueryRow(ctx, query, id, status))
		if errors.Is(err, pgx.ErrNoRows) {
			var current domain.ProjectStatus
			err := tx.QueryRow(ctx, `SELECT status FROM projects WHERE id = $1`, id).Scan(&current)
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrProjectNotFound
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("%w: project is already %s", apperrors.ErrInvalidTransition, current)
		}
		if err != nil {
			return err
		}
		project = p

		if status != domain.ProjectStatusCompleted {
			return nil
		}
		completed, err := scanProposal(tx.QueryRow(ctx, `
			UPDATE proposals
			SET status = 'completed', updated_at = now()
			WHERE id = $1 AND status = 'accepted'
			RETURNING `+proposalColumns, p.ProposalID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		proposal = completed
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrProjectNotFound) || errors.Is(err, apperrors.ErrInvalidTransition) {
			return nil, nil, err
		}
		r.log.Error("Failed to update project status", "error", err, "project_id", id)
		return nil, nil, fmt.Errorf("failed to save project: %w", err)
	}
	return project, proposal, nil
}
