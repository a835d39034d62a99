// Package memory implements the repository interfaces in process memory.
// It mirrors the GORM implementations' error contract: gorm.ErrRecordNotFound
// for missing rows and gorm.ErrDuplicatedKey for unique violations.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"orgapi/internal/model"
	"orgapi/internal/repository"
)

// ErrForeignKey is returned when a row references a user or organisation that does not exist.
var ErrForeignKey = errors.New("foreign key constraint fails")

// Store holds users, organisations and memberships.
type Store struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	users    map[uuid.UUID]model.User
	userSeq  []uuid.UUID
	orgs     map[uuid.UUID]model.Organisation
	orgSeq   []uuid.UUID
	members  map[uuid.UUID][]uuid.UUID
	clockSeq int64
}

var _ repository.Transactor = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:   make(map[uuid.UUID]model.User),
		orgs:    make(map[uuid.UUID]model.Organisation),
		members: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Users returns a UserRepository backed by the store.
func (s *Store) Users() repository.UserRepository {
	return &userRepository{s: s}
}

// Organisations returns an OrganisationRepository backed by the store.
func (s *Store) Organisations() repository.OrganisationRepository {
	return &organisationRepository{s: s}
}

// WithTransaction runs fn and restores the previous state if it fails.
// Transactions are serialised.
func (s *Store) WithTransaction(ctx context.Context, fn repository.TxFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, s.Users(), s.Organisations()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	users   map[uuid.UUID]model.User
	userSeq []uuid.UUID
	orgs    map[uuid.UUID]model.Organisation
	orgSeq  []uuid.UUID
	members map[uuid.UUID][]uuid.UUID
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		users:   make(map[uuid.UUID]model.User, len(s.users)),
		userSeq: append([]uuid.UUID(nil), s.userSeq...),
		orgs:    make(map[uuid.UUID]model.Organisation, len(s.orgs)),
		orgSeq:  append([]uuid.UUID(nil), s.orgSeq...),
		members: make(map[uuid.UUID][]uuid.UUID, len(s.members)),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.orgs {
		snap.orgs[k] = v
	}
	for k, v := range s.members {
		snap.members[k] = append([]uuid.UUID(nil), v...)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = snap.users
	s.userSeq = snap.userSeq
	s.orgs = snap.orgs
	s.orgSeq = snap.orgSeq
	s.members = snap.members
}

// now returns strictly increasing timestamps so creation order is stable.
func (s *Store) now() time.Time {
	s.clockSeq++
	return time.Now().Add(time.Duration(s.clockSeq) * time.Nanosecond)
}

func (s *Store) isMember(orgID, userID uuid.UUID) bool {
	for _, id := range s.members[orgID] {
		if id == userID {
			return true
		}
	}
	return false
}

type userRepository struct {
	s *Store
}

func (r *userRepository) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, ok := r.s.users[user.ID]; ok {
		return fmt.Errorf("users.PRIMARY: %w", gorm.ErrDuplicatedKey)
	}
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("users.idx_users_email: %w", gorm.ErrDuplicatedKey)
		}
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now

	stored := *user
	stored.OwnedOrganisations = nil
	stored.Organisations = nil
	r.s.users[user.ID] = stored
	r.s.userSeq = append(r.s.userSeq, user.ID)
	return nil
}

func (r *userRepository) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (r *userRepository) FindByIDWithOrganisations(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, orgID := range r.s.orgSeq {
		if org := r.s.orgs[orgID]; org.OwnerID == id {
			user.OwnedOrganisations = append(user.OwnedOrganisations, org)
		}
	}
	return user, nil
}

func (r *userRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, user := range r.s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *userRepository) FindInSharedOrganisation(_ context.Context, requesterID, targetID uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	target, ok := r.s.users[targetID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for orgID := range r.s.members {
		if r.s.isMember(orgID, targetID) && r.s.isMember(orgID, requesterID) {
			return &target, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *userRepository) ListByOrganisation(_ context.Context, orgID uuid.UUID) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var users []model.User
	for _, id := range r.s.userSeq {
		if r.s.isMember(orgID, id) {
			users = append(users, r.s.users[id])
		}
	}
	return users, nil
}

type organisationRepository struct {
	s *Store
}

func (r *organisationRepository) Create(_ context.Context, org *model.Organisation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	if _, ok := r.s.orgs[org.ID]; ok {
		return fmt.Errorf("organisations.PRIMARY: %w", gorm.ErrDuplicatedKey)
	}
	if _, ok := r.s.users[org.OwnerID]; !ok {
		return fmt.Errorf("organisations.owner_id: %w", ErrForeignKey)
	}
	memberIDs := make([]uuid.UUID, 0, len(org.Members))
	for _, m := range org.Members {
		if _, ok := r.s.users[m.ID]; !ok {
			return fmt.Errorf("organisation_members.user_id: %w", ErrForeignKey)
		}
		memberIDs = append(memberIDs, m.ID)
	}
	now := r.s.now()
	org.CreatedAt, org.UpdatedAt = now, now

	stored := *org
	stored.Owner = nil
	stored.Members = nil
	r.s.orgs[org.ID] = stored
	r.s.orgSeq = append(r.s.orgSeq, org.ID)
	for _, id := range memberIDs {
		if !r.s.isMember(org.ID, id) {
			r.s.members[org.ID] = append(r.s.members[org.ID], id)
		}
	}
	return nil
}

func (r *organisationRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Organisation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	org, ok := r.s.orgs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &org, nil
}

func (r *organisationRepository) ListByMember(_ context.Context, userID uuid.UUID) ([]model.Organisation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var orgs []model.Organisation
	for _, id := range r.s.orgSeq {
		if r.s.isMember(id, userID) {
			orgs = append(orgs, r.s.orgs[id])
		}
	}
	return orgs, nil
}

func (r *organisationRepository) IsMember(_ context.Context, orgID, userID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.isMember(orgID, userID), nil
}

func (r *organisationRepository) AddMember(_ context.Context, orgID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orgs[orgID]; !ok {
		return fmt.Errorf("organisation_members.organisation_id: %w", ErrForeignKey)
	}
	if _, ok := r.s.users[userID]; !ok {
		return fmt.Errorf("organisation_members.user_id: %w", ErrForeignKey)
	}
	if !r.s.isMember(orgID, userID) {
		r.s.members[orgID] = append(r.s.members[orgID], userID)
	}
	return nil
}
