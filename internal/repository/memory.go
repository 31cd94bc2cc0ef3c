package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmeshcher/hvtracker-system/internal/model"
)

// MemoryStore — хранилище профилей в памяти с той же семантикой
// compare-and-swap, что и у PostgresStore. Используется в тестах.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[string]*model.User
	profiles map[int64]*model.Profile
	versions map[int64]int64
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		users:    make(map[string]*model.User),
		profiles: make(map[int64]*model.Profile),
		versions: make(map[int64]int64),
	}
}

// CreateUser создаёт пользователя и его профиль со стартовыми фишками.
func (s *MemoryStore) CreateUser(ctx context.Context, login string, passwordHash []byte, startingChips int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[login]; ok {
		return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
	}

	id := s.nextID
	s.nextID++

	s.users[login] = &model.User{
		ID:           id,
		Login:        login,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	s.profiles[id] = &model.Profile{
		UserID:      id,
		CasinoChips: startingChips,
	}
	s.versions[id] = 1

	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (s *MemoryStore) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[login]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// PutProfile подменяет профиль пользователя напрямую, минуя CAS. Для тестов.
func (s *MemoryStore) PutProfile(p *model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[p.UserID] = p.Clone()
	if _, ok := s.versions[p.UserID]; !ok {
		s.versions[p.UserID] = 1
	}
}

// ReadProfile возвращает копию профиля пользователя и его текущую версию.
func (s *MemoryStore) ReadProfile(ctx context.Context, userID int64) (*model.Profile, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, 0, ErrProfileNotFound
	}

	return p.Clone(), s.versions[userID], nil
}

// CompareAndSwapProfile записывает профиль, если версия совпадает.
func (s *MemoryStore) CompareAndSwapProfile(ctx context.Context, userID int64, version int64, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID]; !ok {
		return ErrProfileNotFound
	}
	if s.versions[userID] != version {
		return ErrVersionConflict
	}

	s.profiles[userID] = p.Clone()
	s.versions[userID] = version + 1

	return nil
}
