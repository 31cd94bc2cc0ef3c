// Package ledger реализует транзактор — единственную точку изменения
// профиля пользователя. Все сервисы описывают изменения декларативной
// мутацией, а транзактор применяет её атомарно с оптимистическими
// повторами и контролем инвариантов.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/hvtracker-system/internal/model"
	"github.com/mmeshcher/hvtracker-system/internal/repository"
)

// ErrInsufficientFunds возвращается при попытке списания, превышающего баланс.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAlreadyOwned возвращается при повторной покупке непотребляемого предмета.
	ErrAlreadyOwned = errors.New("item already owned")
	// ErrAlreadyClaimed возвращается, если награда за достижение уже была получена.
	ErrAlreadyClaimed = errors.New("achievement already claimed")
	// ErrNotOwned возвращается, если требуемый экземпляр предмета отсутствует в инвентаре.
	ErrNotOwned = errors.New("item not owned")
	// ErrThresholdNotMet возвращается, если порог достижения ещё не достигнут.
	ErrThresholdNotMet = errors.New("achievement threshold not met")
	// ErrConflict возвращается после исчерпания бюджета оптимистических повторов.
	ErrConflict = errors.New("profile update conflict")
)

// IsGuardFailure сообщает, является ли ошибка нарушением бизнес-правила.
// Такие ошибки показываются пользователю и никогда не повторяются автоматически.
func IsGuardFailure(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrAlreadyOwned) ||
		errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrNotOwned) ||
		errors.Is(err, ErrThresholdNotMet)
}

// Store описывает контракт хранилища профилей, используемый транзактором.
// Запись выполняется по схеме compare-and-swap: при несовпадении версии
// хранилище возвращает repository.ErrVersionConflict.
type Store interface {
	ReadProfile(ctx context.Context, userID int64) (*model.Profile, int64, error)
	CompareAndSwapProfile(ctx context.Context, userID int64, version int64, p *model.Profile) error
}

// BuildFunc строит мутацию по свежепрочитанному состоянию профиля.
// Возврат nil-мутации означает «изменений не требуется»: транзактор
// завершается без записи. Функция вызывается заново при каждой попытке.
type BuildFunc func(p *model.Profile) (*Mutation, error)

// Applied описывает результат применения мутации.
type Applied struct {
	// Profile — состояние профиля после фиксации (или свежее прочитанное,
	// если запись не потребовалась).
	Profile *model.Profile
	// Committed сообщает, была ли выполнена запись в хранилище.
	Committed bool
}

const (
	defaultMaxRetries    = 5
	defaultRetryInterval = 20 * time.Millisecond
)

// Transactor применяет мутации к профилям через хранилище.
type Transactor struct {
	store      Store
	logger     *zap.Logger
	maxRetries uint64
}

// NewTransactor создаёт транзактор поверх указанного хранилища.
func NewTransactor(store Store, logger *zap.Logger) *Transactor {
	return &Transactor{
		store:      store,
		logger:     logger,
		maxRetries: defaultMaxRetries,
	}
}

// Apply выполняет атомарный цикл read-modify-write для профиля пользователя:
// читает свежее состояние, санирует повреждённые числовые поля, строит
// мутацию, проверяет её условия и записывает новое состояние по версии.
// Обнаруженная параллельная запись приводит к повтору всего цикла с шага
// чтения; после исчерпания бюджета повторов возвращается ErrConflict.
func (t *Transactor) Apply(ctx context.Context, userID int64, build BuildFunc) (*Applied, error) {
	var result *Applied

	backoff := retry.WithMaxRetries(t.maxRetries, retry.NewConstant(defaultRetryInterval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		current, version, err := t.store.ReadProfile(ctx, userID)
		if err != nil {
			return fmt.Errorf("read profile: %w", err)
		}

		work := current.Clone()
		t.sanitize(work)

		m, err := build(work)
		if err != nil {
			return err
		}

		if m == nil {
			result = &Applied{Profile: work, Committed: false}
			return nil
		}

		if err := m.checkGuards(work); err != nil {
			return err
		}

		if err := m.applyTo(work); err != nil {
			return err
		}

		if err := t.store.CompareAndSwapProfile(ctx, userID, version, work); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return retry.RetryableError(err)
			}
			return fmt.Errorf("write profile: %w", err)
		}

		result = &Applied{Profile: work, Committed: true}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrConflict
		}
		return nil, err
	}

	return result, nil
}

// sanitize приводит повреждённые числовые поля профиля к нулю до применения
// дельт. Повреждение логируется, но не считается жёсткой ошибкой.
func (t *Transactor) sanitize(p *model.Profile) {
	fix := func(field string, v *int64) {
		if *v < 0 {
			t.logger.Warn("corrupt profile field sanitized",
				zap.Int64("userID", p.UserID),
				zap.String("field", field),
				zap.Int64("value", *v),
			)
			*v = 0
		}
	}

	fix("experience_points", &p.ExperiencePoints)
	fix("gold_lingots", &p.GoldLingots)
	fix("gems", &p.Gems)
	fix("casino_chips", &p.CasinoChips)
	fix("current_streak", &p.CurrentStreak)
}
