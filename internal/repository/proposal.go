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

type ProposalRepository interface {
	Create(ctx context.Context, proposal *domain.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error)
	ListByParty(ctx context.Context, role domain.Role, userID uuid.UUID) ([]*domain.Proposal, error)
	// Decide переводит ожидающее предложение в статус decision. При принятии
	// проект создается в той же транзакции и возвращается.
	Decide(ctx context.Context, id uuid.UUID, decision domain.ProposalStatus) (*domain.Proposal, *domain.Project, error)
	ListAcceptedWithoutProject(ctx context.Context) ([]*domain.Proposal, error)
	// EnsureProject создает проект для принятого предложения, если его еще нет.
	EnsureProject(ctx context.Context, proposal *domain.Proposal) (*domain.Project, bool, error)
}

type proposalRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewProposalRepository(db *pgxpool.Pool, log logger.Logger) ProposalRepository {
	return &proposalRepository{db: db, log: log}
}

const proposalColumns = `id, title, description, budget, status, artist_id, wall_owner_id, created_at, updated_at`

func scanProposal(row pgx.Row) (*domain.Proposal, error) {
	p := &domain.Proposal{}
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Budget, &p.Status,
		&p.ArtistID, &p.WallOwnerID, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *proposalRepository) Create(ctx context.Context, proposal *domain.Proposal) error {
	query := `
		INSERT INTO proposals (id, title, description, budget, status, artist_id, wall_owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		proposal.ID, proposal.Title, proposal.Description, proposal.Budget,
		proposal.Status, proposal.ArtistID, proposal.WallOwnerID,
	).Scan(&proposal.CreatedAt, &proposal.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to create proposal", "error", err)
		return fmt.Errorf("failed to save proposal: %w", err)
	}
	return nil
}

func (r *proposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`

	p, err := scanProposal(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrProposalNotFound
		}
		r.log.Error("Failed to get proposal", "error", err, "proposal_id", id)
		return nil, fmt.Errorf("failed to load proposal: %w", err)
	}
	return p, nil
}

func (r *proposalRepository) ListByParty(ctx context.Context, role domain.Role, userID uuid.UUID) ([]*domain.Proposal, error) {
	column, err := partyColumn(role)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE ` + column + ` = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list proposals", "error", err)
		return nil, fmt.Errorf("failed to load proposals: %w", err)
	}
	defer rows.Close()

	proposals := []*domain.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			r.log.Error("Failed to scan proposal", "error", err)
			return nil, fmt.Errorf("failed to load proposals: %w", err)
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

func (r *proposalRepository) Decide(ctx context.Context, id uuid.UUID, decision domain.ProposalStatus) (*domain.Proposal, *domain.Project, error) {
	var proposal *domain.Proposal
	var project *domain.Project

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			UPDATE proposals
			SET status = $2, updated_at = now()
			WHERE id = $1 AND status = 'pending'
			RETURNING ` + proposalColumns

		p, err := scanProposal(tx.QueryRow(ctx, query, id, decision))
		if errors.Is(err, pgx.ErrNoRows) {
			return r.notPending(ctx, tx, id)
		}
		if err != nil {
			return err
		}
		proposal = p

		if decision != domain.ProposalStatusAccepted {
			return nil
		}
		project = domain.ProjectFromProposal(p)
		return insertProject(ctx, tx, project)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrProposalNotFound) || errors.Is(err, apperrors.ErrInvalidTransition) {
			return nil, nil, err
		}
		r.log.Error("Failed to decide proposal", "error", err, "proposal_id", id, "decision", decision)
		return nil, nil, fmt.Errorf("failed to save decision: %w", err)
	}
	return proposal, project, nil
}

// notPending объясняет, почему условный UPDATE не затронул ни одной строки.
func (r *proposalRepository) notPending(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var status domain.ProposalStatus
	err := tx.QueryRow(ctx, `SELECT status FROM proposals WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrProposalNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: proposal is already %s", apperrors.ErrInvalidTransition, status)
}

func (r *proposalRepository) ListAcceptedWithoutProject(ctx context.Context) ([]*domain.Proposal, error) {
	query := `
		SELECT ` + prefixed("p", proposalColumns) + `
		FROM proposals p
		LEFT JOIN projects pr ON pr.proposal_id = p.id
		WHERE p.status = 'accepted' AND pr.id IS NULL
		ORDER BY p.updated_at
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.Error("Failed to list orphaned proposals", "error", err)
		return nil, fmt.Errorf("failed to load proposals: %w", err)
	}
	defer rows.Close()

	proposals := []*domain.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to load proposals: %w", err)
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

func (r *proposalRepository) EnsureProject(ctx context.Context, proposal *domain.Proposal) (*domain.Project, bool, error) {
	project := domain.ProjectFromProposal(proposal)
	query := `
		INSERT INTO projects (id, proposal_id, title, description, budget, status, artist_id, wall_owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (proposal_id) DO NOTHING
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		project.ID, project.ProposalID, project.Title, project.Description, project.Budget,
		project.Status, project.ArtistID, project.WallOwnerID,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		r.log.Error("Failed to ensure project", "error", err, "proposal_id", proposal.ID)
		return nil, false, fmt.Errorf("failed to save project: %w", err)
	}
	return project, true, nil
}

func insertProject(ctx context.Context, tx pgx.Tx, project *domain.Project) error {
	query := `
		INSERT INTO projects (id, proposal_id, title, description, budget, status, deadline, artist_id, wall_owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	return tx.QueryRow(ctx, query,
		project.ID, project.ProposalID, project.Title, project.Description, project.Budget,
		project.Status, project.Deadline, project.ArtistID, project.WallOwnerID,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
}

func partyColumn(role domain.Role) (string, error) {
	switch role {
	case domain.RoleArtist:
		return "artist_id", nil
	case domain.RoleWallOwner:
		return "wall_owner_id", nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", apperrors.ErrValidation, role)
	}
}
