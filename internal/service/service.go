// Package service реализует бизнес-логику прогресса и виртуальной экономики
// HV-трекера: стрики, достижения, магазин и инвентарь. Каждая операция
// завершается одним атомарным применением мутации через леджер-транзактор.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hvtracker-system/internal/catalog"
	"github.com/mmeshcher/hvtracker-system/internal/ledger"
	"github.com/mmeshcher/hvtracker-system/internal/model"
	"github.com/mmeshcher/hvtracker-system/internal/repository"
	"github.com/mmeshcher/hvtracker-system/internal/reward"
)

// ErrUnknownItem возвращается, если предмет отсутствует в каталоге.
var (
	ErrUnknownItem = errors.New("unknown catalog item")
	// ErrUnknownAchievement возвращается, если достижение отсутствует в каталоге.
	ErrUnknownAchievement = errors.New("unknown achievement")
	// ErrNotConsumable возвращается при попытке использовать непотребляемый предмет.
	ErrNotConsumable = errors.New("item is not consumable")
	// ErrNoEffect возвращается при попытке использовать предмет без эффекта.
	ErrNoEffect = errors.New("item has no usable effect")
)

// Store описывает контракт доступа к данным, используемый сервисом.
type Store interface {
	CreateUser(ctx context.Context, login string, passwordHash []byte, startingChips int64) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	ReadProfile(ctx context.Context, userID int64) (*model.Profile, int64, error)
	CompareAndSwapProfile(ctx context.Context, userID int64, version int64, p *model.Profile) error
}

// HoursProvider возвращает суммарные часы учёбы пользователя.
// Внешний коллаборатор; значение читается в момент запроса, а не кэшируется.
type HoursProvider interface {
	GetTotalHours(ctx context.Context, userID int64) (float64, error)
}

// Clock выдаёт текущее время. Интерфейс позволяет фиксировать время в тестах.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Service содержит бизнес-логику сервиса HV-трекера.
type Service struct {
	store Store
	txr   *ledger.Transactor
	study HoursProvider
	clock Clock
	rng   reward.RandomSource
}

// NewService создаёт сервис поверх хранилища и клиента учебного времени.
// studyClient может быть nil: тогда учебные достижения недоступны для получения.
func NewService(store Store, study HoursProvider, logger *zap.Logger) *Service {
	return &Service{
		store: store,
		txr:   ledger.NewTransactor(store, logger),
		study: study,
		clock: systemClock{},
		rng:   reward.SystemSource(),
	}
}

// RegisterUser регистрирует нового пользователя и создаёт его профиль
// с обнулёнными счётчиками и стартовым запасом казино-фишек.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.store.CreateUser(ctx, login, hashed, catalog.StartingCasinoChips)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, errors.New("invalid credentials")
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// ProfileView объединяет профиль и производный уровень HV-пасса.
type ProfileView struct {
	Profile   *model.Profile
	PassLevel int64
}

// GetProfile возвращает профиль пользователя и вычисленный уровень пасса.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*ProfileView, error) {
	p, _, err := s.store.ReadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ProfileView{
		Profile:   p,
		PassLevel: catalog.LevelForXP(p.ExperiencePoints).Level,
	}, nil
}

// GetInventory возвращает инвентарь пользователя в порядке покупки.
func (s *Service) GetInventory(ctx context.Context, userID int64) ([]model.OwnedItem, error) {
	p, _, err := s.store.ReadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.OwnedItems, nil
}
