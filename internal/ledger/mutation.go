package ledger

import (
	"fmt"
	"time"

	"github.com/mmeshcher/hvtracker-system/internal/model"
)

// Deltas содержит знаковые изменения числовых полей профиля.
type Deltas struct {
	XP          int64
	GoldLingots int64
	Gems        int64
	CasinoChips int64
}

// StreakState описывает новое состояние стрика, выставляемое мутацией.
type StreakState struct {
	Count        int64
	LastActivity time.Time
}

// Guard — декларативная проверка, выполняемая над свежепрочитанным профилем
// внутри той же атомарной транзакции, что и применение мутации.
type Guard struct {
	check func(p *model.Profile) error
}

// MinBalance требует, чтобы баланс в указанной валюте был не меньше amount.
func MinBalance(currency model.Currency, amount int64) Guard {
	return Guard{check: func(p *model.Profile) error {
		if balanceOf(p, currency) < amount {
			return fmt.Errorf("%w: need %d %s", ErrInsufficientFunds, amount, currency)
		}
		return nil
	}}
}

// NotYetOwned требует, чтобы предмет отсутствовал в инвентаре.
func NotYetOwned(itemID int64) Guard {
	return Guard{check: func(p *model.Profile) error {
		if p.Owns(itemID) {
			return fmt.Errorf("%w: item %d", ErrAlreadyOwned, itemID)
		}
		return nil
	}}
}

// NotYetClaimedStudy требует, чтобы учебное достижение ещё не было получено.
func NotYetClaimedStudy(achievementID int64) Guard {
	return Guard{check: func(p *model.Profile) error {
		if p.HasClaimedStudy(achievementID) {
			return fmt.Errorf("%w: study achievement %d", ErrAlreadyClaimed, achievementID)
		}
		return nil
	}}
}

// NotYetClaimedStreak требует, чтобы достижение стрика ещё не было получено.
func NotYetClaimedStreak(achievementID int64) Guard {
	return Guard{check: func(p *model.Profile) error {
		if p.HasClaimedStreak(achievementID) {
			return fmt.Errorf("%w: streak achievement %d", ErrAlreadyClaimed, achievementID)
		}
		return nil
	}}
}

// StreakAtLeast требует, чтобы текущий стрик был не меньше days дней.
func StreakAtLeast(days int64) Guard {
	return Guard{check: func(p *model.Profile) error {
		if p.CurrentStreak < days {
			return fmt.Errorf("%w: streak %d of %d days", ErrThresholdNotMet, p.CurrentStreak, days)
		}
		return nil
	}}
}

// Mutation описывает декларативный набор изменений профиля, применяемый
// транзактором как одно неделимое целое: либо все изменения, либо ни одного.
type Mutation struct {
	Deltas           Deltas
	AddItems         []model.OwnedItem
	RemoveItems      []model.OwnedItem
	ClaimStudy       []int64
	ClaimStreak      []int64
	SetStreak        *StreakState
	SetFocusUntil    *time.Time
	GrantPremiumPass bool
	Guards           []Guard
}

// checkGuards выполняет все проверки мутации над свежим состоянием профиля.
func (m *Mutation) checkGuards(p *model.Profile) error {
	for _, g := range m.Guards {
		if err := g.check(p); err != nil {
			return err
		}
	}
	return nil
}

// applyTo применяет мутацию к профилю. Профиль — рабочая копия транзактора,
// поэтому ошибка на любом шаге оставляет сохранённое состояние нетронутым.
func (m *Mutation) applyTo(p *model.Profile) error {
	p.ExperiencePoints += m.Deltas.XP
	p.GoldLingots += m.Deltas.GoldLingots
	p.Gems += m.Deltas.Gems
	p.CasinoChips += m.Deltas.CasinoChips

	// Страховочный нижний предел: охраняемое списание не должно было
	// довести баланс до отрицательного значения, но итог всё равно
	// ограничивается нулём.
	clampAtZero(&p.ExperiencePoints)
	clampAtZero(&p.GoldLingots)
	clampAtZero(&p.Gems)
	clampAtZero(&p.CasinoChips)

	for _, inst := range m.RemoveItems {
		if !removeInstance(p, inst) {
			return fmt.Errorf("%w: item %d", ErrNotOwned, inst.ItemID)
		}
	}

	p.OwnedItems = append(p.OwnedItems, m.AddItems...)

	for _, id := range m.ClaimStudy {
		if p.HasClaimedStudy(id) {
			return fmt.Errorf("%w: study achievement %d", ErrAlreadyClaimed, id)
		}
		p.ClaimedStudyAchievements = append(p.ClaimedStudyAchievements, id)
	}
	for _, id := range m.ClaimStreak {
		if p.HasClaimedStreak(id) {
			return fmt.Errorf("%w: streak achievement %d", ErrAlreadyClaimed, id)
		}
		p.ClaimedStreakAchievements = append(p.ClaimedStreakAchievements, id)
	}

	if m.SetStreak != nil {
		p.CurrentStreak = m.SetStreak.Count
		la := m.SetStreak.LastActivity
		p.LastActivityDate = &la
	}

	if m.SetFocusUntil != nil {
		ts := *m.SetFocusUntil
		p.FocusGemActiveUntil = &ts
	}

	if m.GrantPremiumPass {
		p.HasPremiumPass = true
	}

	return nil
}

func balanceOf(p *model.Profile, currency model.Currency) int64 {
	if currency == model.CurrencyGems {
		return p.Gems
	}
	return p.GoldLingots
}

func clampAtZero(v *int64) {
	if *v < 0 {
		*v = 0
	}
}

// removeInstance удаляет ровно один экземпляр с точным совпадением
// (ItemID, PurchaseDate). Возвращает false, если экземпляр не найден.
func removeInstance(p *model.Profile, inst model.OwnedItem) bool {
	for i, it := range p.OwnedItems {
		if it.ItemID == inst.ItemID && it.PurchaseDate.Equal(inst.PurchaseDate) {
			p.OwnedItems = append(p.OwnedItems[:i], p.OwnedItems[i+1:]...)
			return true
		}
	}
	return false
}
