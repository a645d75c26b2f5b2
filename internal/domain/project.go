package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "streetart_marketplace/pkg/errors"
)

type ProjectStatus string

const (
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
)

type Project struct {
	ID          uuid.UUID     `json:"id"`
	ProposalID  uuid.UUID     `json:"proposal_id"`
	Title       string        `json:"title"`
	Description *string       `json:"description,omitempty"`
	Budget      *int64        `json:"budget,omitempty"`
	Status      ProjectStatus `json:"status"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	ArtistID    uuid.UUID     `json:"artist_id"`
	WallOwnerID uuid.UUID     `json:"wall_owner_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch ProjectStatus(s) {
	case ProjectStatusInProgress, ProjectStatusCompleted:
		return ProjectStatus(s), nil
	default:
		return "", fmt.Errorf("%w: unknown project status %q", apperrors.ErrValidation, s)
	}
}

// CanTransitionTo проверяет, допустим ли переход s -> next. completed - конечный статус.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	return s == ProjectStatusInProgress && next == ProjectStatusCompleted
}

// ProjectFromProposal копирует поля, которые проект наследует от предложения.
func ProjectFromProposal(p *Proposal) *Project {
	return &Project{
		ID:          uuid.New(),
		ProposalID:  p.ID,
		Title:       p.Title,
		Description: p.Description,
		Budget:      p.Budget,
		Status:      ProjectStatusInProgress,
		ArtistID:    p.ArtistID,
		WallOwnerID: p.WallOwnerID,
	}
}

func (p *Project) HasParty(userID uuid.UUID) bool {
	return p.ArtistID == userID || p.WallOwnerID == userID
}
