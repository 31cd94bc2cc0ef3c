package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/hvtracker-system/internal/catalog"
	"github.com/mmeshcher/hvtracker-system/internal/ledger"
	"github.com/mmeshcher/hvtracker-system/internal/model"
	"github.com/mmeshcher/hvtracker-system/internal/reward"
)

// UseOutcome описывает результат использования предмета.
type UseOutcome struct {
	Effect model.EffectKind
	// FocusGemActiveUntil заполняется для временного баффа.
	FocusGemActiveUntil *time.Time
	// Поля ниже заполняются при открытии сундука.
	GoldLingots        int64
	CasinoChips        int64
	BonusGems          int64
	PremiumPassGranted bool
}

// UseItem находит в инвентаре пригодный экземпляр предмета, применяет его
// эффект и удаляет ровно один экземпляр той же атомарной мутацией.
// Дубликаты взаимозаменяемы, выбирается первый найденный. Результат
// розыгрыша сундука фиксируется до транзакции и не переигрывается при
// повторах из-за конкурентной записи.
func (s *Service) UseItem(ctx context.Context, userID, itemID int64) (*UseOutcome, error) {
	def, ok := catalog.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: item %d", ErrUnknownItem, itemID)
	}
	if !def.Consumable {
		return nil, fmt.Errorf("%w: item %d", ErrNotConsumable, itemID)
	}

	now := s.clock.Now()

	// Броски для сундука выполняются один раз на открытие.
	var rolls []float64
	if def.Effect == model.EffectChest {
		rolls = []float64{s.rng.Next(), s.rng.Next(), s.rng.Next()}
	}

	var out UseOutcome

	_, err := s.txr.Apply(ctx, userID, func(p *model.Profile) (*ledger.Mutation, error) {
		out = UseOutcome{Effect: def.Effect}

		inst, ok := p.FindItem(itemID)
		if !ok {
			return nil, fmt.Errorf("%w: item %d", ledger.ErrNotOwned, itemID)
		}

		switch def.Effect {
		case model.EffectTimedBuff:
			until := now.Add(catalog.FocusGemDuration)
			out.FocusGemActiveUntil = &until
			return &ledger.Mutation{
				SetFocusUntil: &until,
				RemoveItems:   []model.OwnedItem{inst},
			}, nil

		case model.EffectChest:
			m, err := reward.OpenChest(def.ChestTier, inst, p.HasPremiumPass, reward.Replay(rolls...))
			if err != nil {
				return nil, err
			}
			out.GoldLingots = m.Deltas.GoldLingots
			out.CasinoChips = m.Deltas.CasinoChips
			out.BonusGems = m.Deltas.Gems
			out.PremiumPassGranted = m.GrantPremiumPass
			return m, nil

		default:
			// Щит стрика расходуется только движком стрика, остальное
			// не имеет применимого эффекта.
			return nil, fmt.Errorf("%w: item %d", ErrNoEffect, itemID)
		}
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}
