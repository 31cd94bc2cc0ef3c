package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/hvtracker-system/internal/catalog"
	"github.com/mmeshcher/hvtracker-system/internal/ledger"
	"github.com/mmeshcher/hvtracker-system/internal/model"
	"github.com/mmeshcher/hvtracker-system/internal/reward"
)

// StudyClaimable сообщает по снапшоту профиля, доступна ли награда за
// учебное достижение: порог в часах достигнут и награда ещё не получена.
func StudyClaimable(def model.AchievementDefinition, p *model.Profile, totalHours float64) bool {
	return totalHours >= float64(def.Threshold) && !p.HasClaimedStudy(def.ID)
}

// StreakClaimable сообщает по снапшоту профиля, доступна ли награда за
// достижение стрика.
func StreakClaimable(def model.AchievementDefinition, p *model.Profile) bool {
	return p.CurrentStreak >= def.Threshold && !p.HasClaimedStreak(def.ID)
}

// ClaimStudyAchievement выдаёт награду за учебное достижение ровно один раз.
// Суммарные часы учёбы запрашиваются у внешнего сервиса в момент получения,
// а защита от повторной выдачи проверяется по свежему состоянию профиля
// внутри той же атомарной транзакции, что и начисление награды: из двух
// конкурентных запросов награду получает ровно один.
func (s *Service) ClaimStudyAchievement(ctx context.Context, userID, achievementID int64) error {
	def, ok := catalog.StudyAchievement(achievementID)
	if !ok {
		return fmt.Errorf("%w: study %d", ErrUnknownAchievement, achievementID)
	}

	if s.study == nil {
		return fmt.Errorf("studytime client not configured")
	}

	hours, err := s.study.GetTotalHours(ctx, userID)
	if err != nil {
		return fmt.Errorf("get total hours: %w", err)
	}

	if hours < float64(def.Threshold) {
		return fmt.Errorf("%w: %.1f of %d hours", ledger.ErrThresholdNotMet, hours, def.Threshold)
	}

	now := s.clock.Now()

	_, err = s.txr.Apply(ctx, userID, func(p *model.Profile) (*ledger.Mutation, error) {
		m, err := reward.Bundle(def.Reward, now)
		if err != nil {
			return nil, err
		}

		m.ClaimStudy = []int64{def.ID}
		m.Guards = append(m.Guards, ledger.NotYetClaimedStudy(def.ID))

		return m, nil
	})

	return err
}

// ClaimStreakAchievement выдаёт награду за достижение стрика ровно один раз.
// Порог проверяется по текущему стрику свежепрочитанного профиля внутри
// атомарной транзакции вместе с защитой от повторной выдачи.
func (s *Service) ClaimStreakAchievement(ctx context.Context, userID, achievementID int64) error {
	def, ok := catalog.StreakAchievement(achievementID)
	if !ok {
		return fmt.Errorf("%w: streak %d", ErrUnknownAchievement, achievementID)
	}

	now := s.clock.Now()

	_, err := s.txr.Apply(ctx, userID, func(p *model.Profile) (*ledger.Mutation, error) {
		m, err := reward.Bundle(def.Reward, now)
		if err != nil {
			return nil, err
		}

		m.ClaimStreak = []int64{def.ID}
		m.Guards = append(m.Guards,
			ledger.StreakAtLeast(def.Threshold),
			ledger.NotYetClaimedStreak(def.ID),
		)

		return m, nil
	})

	return err
}

// AchievementStatus описывает достижение вместе с состоянием его получения.
type AchievementStatus struct {
	Definition model.AchievementDefinition
	Claimed    bool
	Claimable  bool
}

// AchievementsView объединяет списки достижений пользователя.
type AchievementsView struct {
	Study      []AchievementStatus
	Streak     []AchievementStatus
	StudyHours float64
}

// ListAchievements возвращает все достижения каталога с признаками
// полученности и доступности для текущего пользователя.
func (s *Service) ListAchievements(ctx context.Context, userID int64) (*AchievementsView, error) {
	p, _, err := s.store.ReadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var hours float64
	if s.study != nil {
		h, err := s.study.GetTotalHours(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("get total hours: %w", err)
		}
		hours = h
	}

	view := &AchievementsView{StudyHours: hours}

	for _, def := range catalog.StudyAchievements() {
		view.Study = append(view.Study, AchievementStatus{
			Definition: def,
			Claimed:    p.HasClaimedStudy(def.ID),
			Claimable:  s.study != nil && StudyClaimable(def, p, hours),
		})
	}

	for _, def := range catalog.StreakAchievements() {
		view.Streak = append(view.Streak, AchievementStatus{
			Definition: def,
			Claimed:    p.HasClaimedStreak(def.ID),
			Claimable:  StreakClaimable(def, p),
		})
	}

	return view, nil
}
