package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/repository"
	apperrors "streetart_marketplace/pkg/errors"
)

// store - хранилище в памяти вместо PostgreSQL, общее для фейковых репозиториев.
// Все записи идут через один мьютекс, как в serializable-транзакции.
type store struct {
	mu            sync.Mutex
	clock         time.Time
	users         map[uuid.UUID]*domain.User
	roles         map[uuid.UUID]domain.Role
	sessions      map[string]*domain.UserSession
	proposals     map[uuid.UUID]*domain.Proposal
	projects      map[uuid.UUID]*domain.Project
	conversations map[uuid.UUID]*domain.Conversation
	messages      []*domain.Message
	audit         []*domain.AuditLog

	failProjectInsert bool
	failMessageInsert bool
}

func newStore() *store {
	return &store{
		clock:         time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		users:         map[uuid.UUID]*domain.User{},
		roles:         map[uuid.UUID]domain.Role{},
		sessions:      map[string]*domain.UserSession{},
		proposals:     map[uuid.UUID]*domain.Proposal{},
		projects:      map[uuid.UUID]*domain.Project{},
		conversations: map[uuid.UUID]*domain.Conversation{},
	}
}

// now заменяет часы БД: строго возрастает.
func (s *store) now() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *store) addUser(role domain.Role) domain.Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	email := id.String()[:8] + "@example.com"
	s.users[id] = &domain.User{ID: id, Email: email, DisplayName: "user", RoleHint: role, IsActive: true}
	s.roles[id] = role
	return domain.Actor{ID: id, Email: email, Role: role}
}

func (s *store) repos() *repository.Repositories {
	return &repository.Repositories{
		User:         &fakeUserRepo{s},
		Proposal:     &fakeProposalRepo{s},
		Project:      &fakeProjectRepo{s},
		Conversation: &fakeConversationRepo{s},
		Message:      &fakeMessageRepo{s},
		Audit:        &fakeAuditRepo{s},
		RateLimit:    &fakeRateLimitRepo{counts: map[string]int64{}},
		ChangeFeed:   repository.NewMemoryChangeFeed("test"),
	}
}

type fakeUserRepo struct{ s *store }

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return apperrors.ErrUserAlreadyExists
		}
	}
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.s.users[user.ID] = &cp
	r.s.roles[user.ID] = user.RoleHint
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		now := r.s.now()
		u.LastLoginAt = &now
	}
	return nil
}

func (r *fakeUserRepo) RoleOf(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return role, nil
}

func (r *fakeUserRepo) CreateSession(ctx context.Context, session *domain.UserSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *session
	r.s.sessions[session.RefreshTokenHash] = &cp
	return nil
}

func (r *fakeUserRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.UserSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[tokenHash]
	if !ok || sess.RevokedAt != nil {
		return nil, apperrors.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (r *fakeUserRepo) RevokeSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.ID == sessionID {
			now := r.s.now()
			sess.RevokedAt = &now
			sess.RevokedReason = &reason
		}
	}
	return nil
}

type fakeProposalRepo struct{ s *store }

func (r *fakeProposalRepo) Create(ctx context.Context, p *domain.Proposal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.CreatedAt = r.s.now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.s.proposals[p.ID] = &cp
	return nil
}

func (r *fakeProposalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.proposals[id]
	if !ok {
		return nil, apperrors.ErrProposalNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProposalRepo) ListByParty(ctx context.Context, role domain.Role, userID uuid.UUID) ([]*domain.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*domain.Proposal{}
	for _, p := range r.s.proposals {
		if (role == domain.RoleArtist && p.ArtistID == userID) || (role == domain.RoleWallOwner && p.WallOwnerID == userID) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeProposalRepo) Decide(ctx context.Context, id uuid.UUID, decision domain.ProposalStatus) (*domain.Proposal, *domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.proposals[id]
	if !ok {
		return nil, nil, apperrors.ErrProposalNotFound
	}
	if p.Status != domain.ProposalStatusPending {
		return nil, nil, apperrors.ErrInvalidTransition
	}
	updated := *p
	updated.Status = decision
	updated.UpdatedAt = r.s.now()

	var project *domain.Project
	if decision == domain.ProposalStatusAccepted {
		if r.s.failProjectInsert {
			// откат: предложение остается pending
			return nil, nil, errors.New("failed to save decision: insert project: connection reset")
		}
		project = domain.ProjectFromProposal(&updated)
		project.CreatedAt = updated.UpdatedAt
		project.UpdatedAt = updated.UpdatedAt
		cp := *project
		r.s.projects[project.ID] = &cp
	}
	*p = updated
	out := updated
	return &out, project, nil
}

func (r *fakeProposalRepo) ListAcceptedWithoutProject(ctx context.Context) ([]*domain.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*domain.Proposal{}
	for _, p := range r.s.proposals {
		if p.Status != domain.ProposalStatusAccepted {
			continue
		}
		if r.s.projectFor(p.ID) == nil {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeProposalRepo) EnsureProject(ctx context.Context, p *domain.Proposal) (*domain.Project, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.projectFor(p.ID) != nil {
		return nil, false, nil
	}
	if r.s.failProjectInsert {
		return nil, false, errors.New("failed to save project: connection reset")
	}
	project := domain.ProjectFromProposal(p)
	project.CreatedAt = r.s.now()
	project.UpdatedAt = project.CreatedAt
	cp := *project
	r.s.projects[project.ID] = &cp
	return project, true, nil
}

func (s *store) projectFor(proposalID uuid.UUID) *domain.Project {
	for _, pr := range s.projects {
		if pr.ProposalID == proposalID {
			return pr
		}
	}
	return nil
}

type fakeProjectRepo struct{ s *store }

func (r *fakeProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, apperrors.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProjectRepo) ListByParty(ctx context.Context, role domain.Role, userID uuid.UUID) ([]*domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*domain.Project{}
	for _, p := range r.s.projects {
		if (role == domain.RoleArtist && p.ArtistID == userID) || (role == domain.RoleWallOwner && p.WallOwnerID == userID) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeProjectRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProjectStatus) (*domain.Project, *domain.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, nil, apperrors.ErrProjectNotFound
	}
	if p.Status == domain.ProjectStatusCompleted {
		return nil, nil, apperrors.ErrInvalidTransition
	}
	p.Status = status
	p.UpdatedAt = r.s.now()
	var completed *domain.Proposal
	if status == domain.ProjectStatusCompleted {
		at := p.UpdatedAt
		p.CompletedAt = &at
		if prop, ok := r.s.proposals[p.ProposalID]; ok && prop.Status == domain.ProposalStatusAccepted {
			prop.Status = domain.ProposalStatusCompleted
			prop.UpdatedAt = p.UpdatedAt
			cp := *prop
			completed = &cp
		}
	}
	cp := *p
	return &cp, completed, nil
}

type fakeConversationRepo struct{ s *store }

func (r *fakeConversationRepo) ListForUser(ctx context.Context, role domain.Role, userID uuid.UUID) ([]*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*domain.Conversation{}
	for _, c := range r.s.conversations {
		if (role == domain.RoleArtist && c.ArtistID != userID) || (role == domain.RoleWallOwner && c.WallOwnerID != userID) {
			continue
		}
		cp := *c
		for _, m := range r.s.messages {
			if m.ConversationID != c.ID {
				continue
			}
			if !m.IsRead && m.SenderID != userID {
				cp.UnreadCount++
			}
			cp.LastMessage = &domain.LastMessage{Content: m.Content, CreatedAt: m.CreatedAt, SenderRole: m.SenderRole}
		}
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConversationRepo) FindOrCreate(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.conversations {
		if c.ArtistID == conv.ArtistID && c.WallOwnerID == conv.WallOwnerID {
			if c.ProjectID == nil {
				c.ProjectID = conv.ProjectID
			}
			cp := *c
			return &cp, false, nil
		}
	}
	conv.CreatedAt = r.s.now()
	conv.UpdatedAt = conv.CreatedAt
	cp := *conv
	r.s.conversations[conv.ID] = &cp
	out := cp
	return &out, true, nil
}

type fakeMessageRepo struct{ s *store }

func (r *fakeMessageRepo) Create(ctx context.Context, m *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMessageInsert {
		return errors.New("failed to save message: connection reset")
	}
	m.CreatedAt = r.s.now()
	m.IsRead = false
	cp := *m
	r.s.messages = append(r.s.messages, &cp)
	if c, ok := r.s.conversations[m.ConversationID]; ok {
		c.UpdatedAt = m.CreatedAt
	}
	return nil
}

func (r *fakeMessageRepo) ListAndMarkRead(ctx context.Context, conversationID, readerID uuid.UUID) ([]*domain.Message, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var marked int64
	out := []*domain.Message{}
	for _, m := range r.s.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			marked++
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, marked, nil
}

func (s *store) messageCount(conversationID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n
}

type fakeAuditRepo struct{ s *store }

func (r *fakeAuditRepo) CreateLog(ctx context.Context, l *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.EventTime = r.s.now()
	r.s.audit = append(r.s.audit, l)
	return nil
}

func (s *store) auditTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, l := range s.audit {
		out = append(out, l.EventType)
	}
	return out
}

type fakeRateLimitRepo struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (r *fakeRateLimitRepo) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
	return r.counts[key], nil
}
