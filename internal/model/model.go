// Package model содержит доменные сущности сервиса HV-трекера.
package model

import "time"

// User представляет зарегистрированного пользователя трекера.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Currency определяет валюту, в которой выражена цена или баланс.
type Currency string

const (
	CurrencyGoldLingots Currency = "gold_lingots"
	CurrencyGems        Currency = "gems"
)

// ChestTier определяет редкость сундука.
type ChestTier string

const (
	ChestTierEpic      ChestTier = "epic"
	ChestTierLegendary ChestTier = "legendary"
)

// EffectKind описывает действие предмета каталога при использовании или покупке.
type EffectKind string

const (
	// EffectNone — предмет без эффекта (косметика).
	EffectNone EffectKind = "none"
	// EffectTimedBuff — временный бафф с фиксированной длительностью.
	EffectTimedBuff EffectKind = "timed_buff"
	// EffectChest — сундук, при открытии разыгрывающий награду.
	EffectChest EffectKind = "chest"
	// EffectStreakShield — щит, сохраняющий стрик при пропущенном дне.
	EffectStreakShield EffectKind = "streak_shield"
	// EffectInstantGrant — мгновенное начисление вместо добавления в инвентарь.
	EffectInstantGrant EffectKind = "instant_grant"
)

// OwnedItem описывает один экземпляр предмета в инвентаре пользователя.
// Идентичность экземпляра структурная: пара (ItemID, PurchaseDate).
type OwnedItem struct {
	ItemID       int64     `json:"item_id"`
	PurchaseDate time.Time `json:"purchase_date"`
}

// Profile содержит балансы, стрик, инвентарь и полученные награды пользователя.
// Изменяется только через леджер-транзактор.
type Profile struct {
	UserID                    int64
	ExperiencePoints          int64
	GoldLingots               int64
	Gems                      int64
	CasinoChips               int64
	CurrentStreak             int64
	LastActivityDate          *time.Time
	OwnedItems                []OwnedItem
	ClaimedStudyAchievements  []int64
	ClaimedStreakAchievements []int64
	HasPremiumPass            bool
	FocusGemActiveUntil       *time.Time
}

// Clone возвращает глубокую копию профиля.
func (p *Profile) Clone() *Profile {
	cp := *p

	if p.LastActivityDate != nil {
		d := *p.LastActivityDate
		cp.LastActivityDate = &d
	}
	if p.FocusGemActiveUntil != nil {
		ts := *p.FocusGemActiveUntil
		cp.FocusGemActiveUntil = &ts
	}

	cp.OwnedItems = make([]OwnedItem, len(p.OwnedItems))
	copy(cp.OwnedItems, p.OwnedItems)

	cp.ClaimedStudyAchievements = make([]int64, len(p.ClaimedStudyAchievements))
	copy(cp.ClaimedStudyAchievements, p.ClaimedStudyAchievements)

	cp.ClaimedStreakAchievements = make([]int64, len(p.ClaimedStreakAchievements))
	copy(cp.ClaimedStreakAchievements, p.ClaimedStreakAchievements)

	return &cp
}

// Owns сообщает, есть ли в инвентаре хотя бы один экземпляр предмета.
func (p *Profile) Owns(itemID int64) bool {
	for _, it := range p.OwnedItems {
		if it.ItemID == itemID {
			return true
		}
	}
	return false
}

// FindItem возвращает первый экземпляр предмета с указанным идентификатором.
// Дубликаты взаимозаменяемы, поэтому выбора первого достаточно.
func (p *Profile) FindItem(itemID int64) (OwnedItem, bool) {
	for _, it := range p.OwnedItems {
		if it.ItemID == itemID {
			return it, true
		}
	}
	return OwnedItem{}, false
}

// CountItems возвращает количество экземпляров предмета в инвентаре.
func (p *Profile) CountItems(itemID int64) int {
	n := 0
	for _, it := range p.OwnedItems {
		if it.ItemID == itemID {
			n++
		}
	}
	return n
}

// HasClaimedStudy сообщает, получена ли уже награда за учебное достижение.
func (p *Profile) HasClaimedStudy(achievementID int64) bool {
	return containsID(p.ClaimedStudyAchievements, achievementID)
}

// HasClaimedStreak сообщает, получена ли уже награда за достижение стрика.
func (p *Profile) HasClaimedStreak(achievementID int64) bool {
	return containsID(p.ClaimedStreakAchievements, achievementID)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// RewardBundle описывает набор начислений; каждое ненулевое поле аддитивно.
// Chest добавляет в инвентарь один сундук, не открывая его.
type RewardBundle struct {
	XP          int64
	GoldLingots int64
	Gems        int64
	CasinoChips int64
	Chest       *ChestTier
}

// ItemDefinition описывает предмет каталога магазина.
type ItemDefinition struct {
	ID         int64
	Name       string
	Price      int64
	Currency   Currency
	Consumable bool
	Effect     EffectKind
	// ChestTier заполняется только для Effect == EffectChest.
	ChestTier ChestTier
	// Grant заполняется только для Effect == EffectInstantGrant.
	Grant *RewardBundle
}

// AchievementDefinition описывает достижение: порог в часах учёбы
// или днях стрика в зависимости от таблицы, в которой оно объявлено.
type AchievementDefinition struct {
	ID        int64
	Name      string
	Threshold int64
	Reward    RewardBundle
}

// PassLevel описывает уровень HV-пасса и награды за его достижение.
type PassLevel struct {
	Level         int64
	RequiredXP    int64
	FreeReward    RewardBundle
	PremiumReward RewardBundle
}
