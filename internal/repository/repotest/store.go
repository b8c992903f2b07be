// Package repotest provides in-memory repository implementations for tests.
package repotest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tasklist-service/internal/domain"
	"github.com/spec-kit/tasklist-service/internal/repository"
)

// ErrDuplicateToken mirrors the unique constraint on refresh_tokens.token.
var ErrDuplicateToken = errors.New("refresh token already stored")

// Store holds users, sessions, memberships and the list hierarchy in memory.
// All repositories returned by a Store share its state.
type Store struct {
	mu          sync.Mutex
	err         error
	users       map[string]domain.User
	emails      map[string]string
	sessions    map[string]domain.Session
	memberships map[[2]string]domain.Role
	parents     map[domain.ResourceRef]domain.ResourceRef
	lookups     int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]domain.User),
		emails:      make(map[string]string),
		sessions:    make(map[string]domain.Session),
		memberships: make(map[[2]string]domain.Role),
		parents:     make(map[domain.ResourceRef]domain.ResourceRef),
	}
}

// FailWith makes every subsequent repository call return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Users returns a UserRepository view of the store.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// RefreshTokens returns a RefreshTokenRepository view of the store.
func (s *Store) RefreshTokens() repository.RefreshTokenRepository { return tokenRepo{s} }

// Memberships returns a MembershipRepository view of the store.
func (s *Store) Memberships() repository.MembershipRepository { return membershipRepo{s} }

// Hierarchy returns a HierarchyRepository view of the store.
func (s *Store) Hierarchy() repository.HierarchyRepository { return hierarchyRepo{s} }

// UnitOfWork runs callbacks against the shared store without isolation.
func (s *Store) UnitOfWork() repository.UnitOfWork { return unitOfWork{s} }

// AddTask records task under list.
func (s *Store) AddTask(taskID, listID string) {
	s.addParent(domain.KindTask, taskID, domain.KindList, listID)
}

// AddSubtask records subtask under task.
func (s *Store) AddSubtask(subtaskID, taskID string) {
	s.addParent(domain.KindSubtask, subtaskID, domain.KindTask, taskID)
}

// AddComment records comment under task.
func (s *Store) AddComment(commentID, taskID string) {
	s.addParent(domain.KindComment, commentID, domain.KindTask, taskID)
}

// AddTag records tag under list.
func (s *Store) AddTag(tagID, listID string) {
	s.addParent(domain.KindTag, tagID, domain.KindList, listID)
}

// AddMembership grants userID role on listID.
func (s *Store) AddMembership(listID, userID string, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[[2]string{listID, userID}] = role
}

// Sessions returns the stored sessions belonging to userID.
func (s *Store) Sessions(userID string) []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	return out
}

// SetSessionExpiry overwrites the stored expiry of token.
func (s *Store) SetSessionExpiry(token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[token]; ok {
		session.ExpiresAt = expiresAt
		s.sessions[token] = session
	}
}

// Lookups reports how many hierarchy and membership reads were served.
func (s *Store) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func (s *Store) addParent(kind domain.ResourceKind, id string, parentKind domain.ResourceKind, parentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents[domain.ResourceRef{Kind: kind, ID: id}] = domain.ResourceRef{Kind: parentKind, ID: parentID}
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	if _, exists := r.s.emails[user.Email]; exists {
		return repository.ErrEmailTaken
	}
	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	r.s.emails[user.Email] = user.ID
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	id, ok := r.s.emails[email]
	failing := r.s.err
	r.s.mu.Unlock()
	if failing != nil {
		return nil, failing
	}
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r.GetByID(ctx, id)
}

type tokenRepo struct{ s *Store }

func (r tokenRepo) Create(_ context.Context, session *domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	if _, exists := r.s.sessions[session.Token]; exists {
		return ErrDuplicateToken
	}
	session.ID = uuid.NewString()
	session.CreatedAt = time.Now()
	r.s.sessions[session.Token] = *session
	return nil
}

func (r tokenRepo) GetActive(_ context.Context, token string, now time.Time) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	session, ok := r.s.sessions[token]
	if !ok || !session.ExpiresAt.After(now) {
		return nil, pgx.ErrNoRows
	}
	return &session, nil
}

func (r tokenRepo) DeleteByToken(_ context.Context, token string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return false, r.s.err
	}
	_, existed := r.s.sessions[token]
	delete(r.s.sessions, token)
	return existed, nil
}

func (r tokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return 0, r.s.err
	}
	var n int64
	for token, session := range r.s.sessions {
		if !session.ExpiresAt.After(now) {
			delete(r.s.sessions, token)
			n++
		}
	}
	return n, nil
}

type membershipRepo struct{ s *Store }

func (r membershipRepo) GetRole(_ context.Context, listID, userID string) (domain.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lookups++
	if r.s.err != nil {
		return domain.RoleNone, r.s.err
	}
	role, ok := r.s.memberships[[2]string{listID, userID}]
	if !ok {
		return domain.RoleNone, pgx.ErrNoRows
	}
	return role, nil
}

type hierarchyRepo struct{ s *Store }

func (r hierarchyRepo) Parent(_ context.Context, ref domain.ResourceRef) (domain.ResourceRef, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lookups++
	if r.s.err != nil {
		return domain.ResourceRef{}, r.s.err
	}
	if _, ok := ref.Kind.Parent(); !ok {
		return domain.ResourceRef{}, repository.ErrUnsupportedKind
	}
	parent, ok := r.s.parents[ref]
	if !ok {
		return domain.ResourceRef{}, pgx.ErrNoRows
	}
	return parent, nil
}

type unitOfWork struct{ s *Store }

func (u unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return fn(ctx, repository.Repositories{
		Users:         u.s.Users(),
		RefreshTokens: u.s.RefreshTokens(),
	})
}
