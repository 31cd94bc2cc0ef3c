package service

import (
	"context"
	"time"

	"github.com/mmeshcher/hvtracker-system/internal/catalog"
	"github.com/mmeshcher/hvtracker-system/internal/ledger"
	"github.com/mmeshcher/hvtracker-system/internal/model"
)

// ActivityResult описывает исход обработки события активности.
type ActivityResult struct {
	// Updated равно false, если активность в этот календарный день уже учтена.
	Updated        bool
	CurrentStreak  int64
	ShieldConsumed bool
}

// RecordActivity выполняет переход машины состояний стрика для события
// активности (например, завершённой учебной сессии). Календарные дни
// сравниваются по UTC. Проверка «тот же день» служит защитой от повторного
// учёта активности в пределах одних суток. Обновление стрика и списание
// щита (если он расходуется) применяются одной атомарной мутацией.
func (s *Service) RecordActivity(ctx context.Context, userID int64) (*ActivityResult, error) {
	today := dateUTC(s.clock.Now())

	var res ActivityResult

	_, err := s.txr.Apply(ctx, userID, func(p *model.Profile) (*ledger.Mutation, error) {
		res = ActivityResult{}

		if p.LastActivityDate != nil && dateUTC(*p.LastActivityDate).Equal(today) {
			res.CurrentStreak = p.CurrentStreak
			return nil, nil
		}

		m := &ledger.Mutation{}

		switch {
		case p.LastActivityDate == nil:
			// Первая активность: стрик начинается с единицы.
			m.SetStreak = &ledger.StreakState{Count: 1, LastActivity: today}

		case dateUTC(*p.LastActivityDate).AddDate(0, 0, 1).Equal(today):
			// Вчерашняя активность: стрик продолжается.
			m.SetStreak = &ledger.StreakState{Count: p.CurrentStreak + 1, LastActivity: today}

		default:
			// Пропуск: щит «тратит день» и сохраняет стрик без инкремента,
			// без щита стрик начинается заново.
			if inst, ok := p.FindItem(catalog.ItemStreakShield); ok {
				m.SetStreak = &ledger.StreakState{Count: p.CurrentStreak, LastActivity: today}
				m.RemoveItems = append(m.RemoveItems, inst)
				res.ShieldConsumed = true
			} else {
				m.SetStreak = &ledger.StreakState{Count: 1, LastActivity: today}
			}
		}

		res.Updated = true
		res.CurrentStreak = m.SetStreak.Count

		return m, nil
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}

// dateUTC усекает момент времени до календарной даты в UTC.
func dateUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
