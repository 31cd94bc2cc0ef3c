package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/hvtracker-system/internal/catalog"
	"github.com/mmeshcher/hvtracker-system/internal/ledger"
	"github.com/mmeshcher/hvtracker-system/internal/model"
	"github.com/mmeshcher/hvtracker-system/internal/reward"
)

// Purchase проверяет запрос на покупку и применяет его одной атомарной
// мутацией. Порядок проверок: сначала повторное владение непотребляемым
// предметом, затем достаточность средств; обе выполняются по свежему
// состоянию профиля внутри транзакции. Предметы с мгновенным эффектом
// начисляют награду сразу вместо добавления в инвентарь — поведение
// определяется полем Effect каталога, а не идентификатором предмета.
func (s *Service) Purchase(ctx context.Context, userID, itemID int64) error {
	def, ok := catalog.Item(itemID)
	if !ok {
		return fmt.Errorf("%w: item %d", ErrUnknownItem, itemID)
	}

	now := s.clock.Now()

	_, err := s.txr.Apply(ctx, userID, func(p *model.Profile) (*ledger.Mutation, error) {
		m := &ledger.Mutation{}

		if !def.Consumable {
			m.Guards = append(m.Guards, ledger.NotYetOwned(def.ID))
		}
		m.Guards = append(m.Guards, ledger.MinBalance(def.Currency, def.Price))

		switch def.Currency {
		case model.CurrencyGems:
			m.Deltas.Gems -= def.Price
		default:
			m.Deltas.GoldLingots -= def.Price
		}

		if def.Effect == model.EffectInstantGrant {
			grant, err := reward.Bundle(*def.Grant, now)
			if err != nil {
				return nil, err
			}
			m.Deltas.XP += grant.Deltas.XP
			m.Deltas.GoldLingots += grant.Deltas.GoldLingots
			m.Deltas.Gems += grant.Deltas.Gems
			m.Deltas.CasinoChips += grant.Deltas.CasinoChips
			m.AddItems = append(m.AddItems, grant.AddItems...)
		} else {
			m.AddItems = append(m.AddItems, model.OwnedItem{ItemID: def.ID, PurchaseDate: now})
		}

		return m, nil
	})

	return err
}
