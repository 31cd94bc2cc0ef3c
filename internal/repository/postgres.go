// Package repository содержит реализацию хранилища профилей в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/hvtracker-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrProfileNotFound возвращается, если профиль пользователя отсутствует в хранилище.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrVersionConflict возвращается при несовпадении версии профиля во время записи.
	ErrVersionConflict = errors.New("profile version conflict")
	// ErrStoreUnavailable возвращается при недоступности хранилища после повторов.
	ErrStoreUnavailable = errors.New("profile store unavailable")
)

// PostgresStore предоставляет доступ к пользователям и профилям в PostgreSQL.
// Запись профиля выполняется по схеме compare-and-swap по колонке version.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создаёт новое хранилище и инициализирует схему БД через миграции.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (s *PostgresStore) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure и Deadlock.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
			return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateUser создаёт пользователя и его профиль со стартовым количеством
// казино-фишек в одной транзакции.
func (s *PostgresStore) CreateUser(ctx context.Context, login string, passwordHash []byte, startingChips int64) (int64, error) {
	var id int64

	err := s.withRetry(ctx, func() error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
			login, passwordHash,
		).Scan(&id)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return fmt.Errorf("%w: %s", ErrUserExists, login)
			}
			return fmt.Errorf("create user: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO profiles (user_id, casino_chips) VALUES ($1, $2)`,
			id, startingChips,
		)
		if err != nil {
			return fmt.Errorf("create profile: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (s *PostgresStore) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// ReadProfile возвращает профиль пользователя и его текущую версию.
func (s *PostgresStore) ReadProfile(ctx context.Context, userID int64) (*model.Profile, int64, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT version, experience_points, gold_lingots, gems, casino_chips,
		        current_streak, last_activity_date, owned_items,
		        claimed_study_achievements, claimed_streak_achievements,
		        has_premium_pass, focus_gem_active_until
		 FROM profiles
		 WHERE user_id = $1`,
		userID,
	)

	p := model.Profile{UserID: userID}
	var (
		version       int64
		ownedRaw      []byte
		claimedStudy  []byte
		claimedStreak []byte
	)

	err := row.Scan(
		&version,
		&p.ExperiencePoints,
		&p.GoldLingots,
		&p.Gems,
		&p.CasinoChips,
		&p.CurrentStreak,
		&p.LastActivityDate,
		&ownedRaw,
		&claimedStudy,
		&claimedStreak,
		&p.HasPremiumPass,
		&p.FocusGemActiveUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrProfileNotFound
		}
		return nil, 0, fmt.Errorf("read profile: %w", err)
	}

	if err := json.Unmarshal(ownedRaw, &p.OwnedItems); err != nil {
		return nil, 0, fmt.Errorf("decode owned items: %w", err)
	}
	if err := json.Unmarshal(claimedStudy, &p.ClaimedStudyAchievements); err != nil {
		return nil, 0, fmt.Errorf("decode claimed study achievements: %w", err)
	}
	if err := json.Unmarshal(claimedStreak, &p.ClaimedStreakAchievements); err != nil {
		return nil, 0, fmt.Errorf("decode claimed streak achievements: %w", err)
	}

	return &p, version, nil
}

// CompareAndSwapProfile записывает новое состояние профиля, если версия в БД
// совпадает с переданной. При несовпадении возвращает ErrVersionConflict.
func (s *PostgresStore) CompareAndSwapProfile(ctx context.Context, userID int64, version int64, p *model.Profile) error {
	ownedRaw, err := json.Marshal(p.OwnedItems)
	if err != nil {
		return fmt.Errorf("encode owned items: %w", err)
	}
	claimedStudy, err := json.Marshal(p.ClaimedStudyAchievements)
	if err != nil {
		return fmt.Errorf("encode claimed study achievements: %w", err)
	}
	claimedStreak, err := json.Marshal(p.ClaimedStreakAchievements)
	if err != nil {
		return fmt.Errorf("encode claimed streak achievements: %w", err)
	}

	return s.withRetry(ctx, func() error {
		cmdTag, err := s.pool.Exec(ctx,
			`UPDATE profiles
			 SET version = version + 1,
			     experience_points = $3,
			     gold_lingots = $4,
			     gems = $5,
			     casino_chips = $6,
			     current_streak = $7,
			     last_activity_date = $8,
			     owned_items = $9,
			     claimed_study_achievements = $10,
			     claimed_streak_achievements = $11,
			     has_premium_pass = $12,
			     focus_gem_active_until = $13
			 WHERE user_id = $1 AND version = $2`,
			userID, version,
			p.ExperiencePoints, p.GoldLingots, p.Gems, p.CasinoChips,
			p.CurrentStreak, p.LastActivityDate,
			ownedRaw, claimedStudy, claimedStreak,
			p.HasPremiumPass, p.FocusGemActiveUntil,
		)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}

		if cmdTag.RowsAffected() == 0 {
			// Либо профиль отсутствует, либо версия устарела; различаем отдельным чтением.
			var exists bool
			err := s.pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM profiles WHERE user_id = $1)`,
				userID,
			).Scan(&exists)
			if err != nil {
				return fmt.Errorf("check profile exists: %w", err)
			}
			if !exists {
				return ErrProfileNotFound
			}
			return ErrVersionConflict
		}

		return nil
	})
}
