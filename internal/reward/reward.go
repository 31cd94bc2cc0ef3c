// Package reward преобразует абстрактные наборы наград и открытие сундуков
// в конкретные леджер-мутации. Пакет не обращается к хранилищу: результат —
// только описание изменений, применяемое транзактором.
package reward

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mmeshcher/hvtracker-system/internal/catalog"
	"github.com/mmeshcher/hvtracker-system/internal/ledger"
	"github.com/mmeshcher/hvtracker-system/internal/model"
)

// RandomSource выдаёт равномерно распределённые значения в [0,1).
// Интерфейс позволяет подставлять детерминированные последовательности в тестах.
type RandomSource interface {
	Next() float64
}

type systemSource struct{}

func (systemSource) Next() float64 { return rand.Float64() }

// SystemSource возвращает источник случайности на базе math/rand.
func SystemSource() RandomSource { return systemSource{} }

type replaySource struct {
	values []float64
	pos    int
}

func (r *replaySource) Next() float64 {
	if len(r.values) == 0 {
		return 0
	}
	if r.pos >= len(r.values) {
		return r.values[len(r.values)-1]
	}
	v := r.values[r.pos]
	r.pos++
	return v
}

// Replay возвращает источник, выдающий заранее заданную последовательность.
// Используется для фиксации результата розыгрыша между повторами транзакции
// и для детерминированных тестов. После исчерпания последовательности
// повторяется последнее значение.
func Replay(values ...float64) RandomSource {
	return &replaySource{values: values}
}

// Параметры розыгрыша сундуков по редкости.
type chestTable struct {
	goldMin, goldMax   int64
	chipsMin, chipsMax int64
	bonusChance        float64
}

var chestTables = map[model.ChestTier]chestTable{
	model.ChestTierEpic:      {goldMin: 100, goldMax: 200, chipsMin: 5, chipsMax: 10, bonusChance: 0.01},
	model.ChestTierLegendary: {goldMin: 250, goldMax: 500, chipsMin: 10, chipsMax: 20, bonusChance: 0.05},
}

// ConsolationGems — количество гемов, выдаваемое вместо премиум-пасса,
// если бонусный бросок выпал, а пасс уже есть.
const ConsolationGems = 5

// Bundle преобразует набор наград в мутацию: каждое ненулевое поле становится
// аддитивной дельтой, а поле Chest — добавлением одного сундука в инвентарь
// (без открытия).
func Bundle(b model.RewardBundle, now time.Time) (*ledger.Mutation, error) {
	m := &ledger.Mutation{
		Deltas: ledger.Deltas{
			XP:          b.XP,
			GoldLingots: b.GoldLingots,
			Gems:        b.Gems,
			CasinoChips: b.CasinoChips,
		},
	}

	if b.Chest != nil {
		itemID, ok := catalog.ChestItemID(*b.Chest)
		if !ok {
			return nil, fmt.Errorf("no chest item for tier %q", *b.Chest)
		}
		m.AddItems = append(m.AddItems, model.OwnedItem{ItemID: itemID, PurchaseDate: now})
	}

	return m, nil
}

// OpenChest разыгрывает награду за открытие сундука указанной редкости.
// Розыгрыш выполняется один раз: золото и фишки равномерно из целого
// диапазона редкости, затем один бонусный бросок — премиум-пасс, если его
// ещё нет, иначе утешительные гемы. Сам экземпляр сундука удаляется той же
// мутацией: открытие есть потребление.
func OpenChest(tier model.ChestTier, instance model.OwnedItem, hasPremiumPass bool, rng RandomSource) (*ledger.Mutation, error) {
	table, ok := chestTables[tier]
	if !ok {
		return nil, fmt.Errorf("unknown chest tier %q", tier)
	}

	m := &ledger.Mutation{
		Deltas: ledger.Deltas{
			GoldLingots: uniformInt(rng, table.goldMin, table.goldMax),
			CasinoChips: uniformInt(rng, table.chipsMin, table.chipsMax),
		},
		RemoveItems: []model.OwnedItem{instance},
	}

	if rng.Next() < table.bonusChance {
		if hasPremiumPass {
			m.Deltas.Gems += ConsolationGems
		} else {
			m.GrantPremiumPass = true
		}
	}

	return m, nil
}

// uniformInt возвращает целое, равномерно распределённое на [min, max].
func uniformInt(rng RandomSource, min, max int64) int64 {
	return min + int64(rng.Next()*float64(max-min+1))
}
