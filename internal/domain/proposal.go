package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	apperrors "streetart_marketplace/pkg/errors"
)

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusCompleted ProposalStatus = "completed"
)

type Proposal struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Description *string        `json:"description,omitempty"`
	Budget      *int64         `json:"budget,omitempty"`
	Status      ProposalStatus `json:"status"`
	ArtistID    uuid.UUID      `json:"artist_id"`
	WallOwnerID uuid.UUID      `json:"wall_owner_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ParseDecision принимает только два статуса, доступные владельцу стены.
func ParseDecision(s string) (ProposalStatus, error) {
	switch ProposalStatus(s) {
	case ProposalStatusAccepted, ProposalStatusRejected:
		return ProposalStatus(s), nil
	default:
		return "", fmt.Errorf("%w: decision must be accepted or rejected, got %q", apperrors.ErrValidation, s)
	}
}

// CanTransitionTo проверяет, допускает ли автомат состояний предложения переход s -> next.
// pending -> accepted | rejected, accepted -> completed. В pending вернуться нельзя.
func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	switch s {
	case ProposalStatusPending:
		return next == ProposalStatusAccepted || next == ProposalStatusRejected
	case ProposalStatusAccepted:
		return next == ProposalStatusCompleted
	default:
		return false
	}
}

type NewProposal struct {
	ArtistID    uuid.UUID
	WallOwnerID uuid.UUID
	Title       string
	Description *string
	Budget      *int64
}

// Normalize обрезает пробелы в текстовых полях и проверяет обязательные.
func (p *NewProposal) Normalize() error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if utf8.RuneCountInString(p.Title) > 200 {
		return fmt.Errorf("%w: title is too long (max 200 characters)", apperrors.ErrValidation)
	}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		if d == "" {
			p.Description = nil
		} else {
			p.Description = &d
		}
	}
	if p.Budget != nil && *p.Budget < 0 {
		return fmt.Errorf("%w: budget must not be negative", apperrors.ErrValidation)
	}
	if p.ArtistID == uuid.Nil {
		return fmt.Errorf("%w: artist is required", apperrors.ErrValidation)
	}
	return nil
}

func (p *Proposal) HasParty(userID uuid.UUID) bool {
	return p.ArtistID == userID || p.WallOwnerID == userID
}
