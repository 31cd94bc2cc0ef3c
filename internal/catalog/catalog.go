// Package catalog содержит статические таблицы предметов магазина,
// достижений и уровней HV-пасса. Таблицы неизменяемы и загружаются
// один раз при старте процесса.
package catalog

import (
	"fmt"
	"time"

	"github.com/mmeshcher/hvtracker-system/internal/model"
)

// StartingCasinoChips — стартовое количество фишек, начисляемое при создании профиля.
const StartingCasinoChips = 25

// FocusGemDuration — длительность баффа «гем фокуса».
const FocusGemDuration = 30 * time.Minute

// Идентификаторы предметов магазина.
const (
	ItemStreakShield  int64 = 1
	ItemFocusGem      int64 = 2
	ItemEpicChest     int64 = 3
	ItemLegendChest   int64 = 4
	ItemGemPack       int64 = 5
	ItemGoldenAvatar  int64 = 6
	ItemMidnightTheme int64 = 7
)

func tier(t model.ChestTier) *model.ChestTier { return &t }

var shopItems = []model.ItemDefinition{
	{
		ID:         ItemStreakShield,
		Name:       "Щит стрика",
		Price:      200,
		Currency:   model.CurrencyGoldLingots,
		Consumable: true,
		Effect:     model.EffectStreakShield,
	},
	{
		ID:         ItemFocusGem,
		Name:       "Гем фокуса",
		Price:      150,
		Currency:   model.CurrencyGoldLingots,
		Consumable: true,
		Effect:     model.EffectTimedBuff,
	},
	{
		ID:         ItemEpicChest,
		Name:       "Эпический сундук",
		Price:      20,
		Currency:   model.CurrencyGems,
		Consumable: true,
		Effect:     model.EffectChest,
		ChestTier:  model.ChestTierEpic,
	},
	{
		ID:         ItemLegendChest,
		Name:       "Легендарный сундук",
		Price:      45,
		Currency:   model.CurrencyGems,
		Consumable: true,
		Effect:     model.EffectChest,
		ChestTier:  model.ChestTierLegendary,
	},
	{
		ID:         ItemGemPack,
		Name:       "Один гем",
		Price:      500,
		Currency:   model.CurrencyGoldLingots,
		Consumable: true,
		Effect:     model.EffectInstantGrant,
		Grant:      &model.RewardBundle{Gems: 1},
	},
	{
		ID:         ItemGoldenAvatar,
		Name:       "Золотая рамка аватара",
		Price:      60,
		Currency:   model.CurrencyGems,
		Consumable: false,
		Effect:     model.EffectNone,
	},
	{
		ID:         ItemMidnightTheme,
		Name:       "Тема «Полночь»",
		Price:      800,
		Currency:   model.CurrencyGoldLingots,
		Consumable: false,
		Effect:     model.EffectNone,
	},
}

// Пороги учебных достижений указаны в часах суммарного времени учёбы.
var studyAchievements = []model.AchievementDefinition{
	{ID: 1, Name: "Первый час", Threshold: 1, Reward: model.RewardBundle{XP: 50, GoldLingots: 100}},
	{ID: 2, Name: "Втянулся", Threshold: 5, Reward: model.RewardBundle{XP: 150, GoldLingots: 250}},
	{ID: 3, Name: "Десятка", Threshold: 10, Reward: model.RewardBundle{XP: 300, GoldLingots: 400, CasinoChips: 5}},
	{ID: 4, Name: "Четверть сотни", Threshold: 25, Reward: model.RewardBundle{XP: 600, Gems: 10, Chest: tier(model.ChestTierEpic)}},
	{ID: 5, Name: "Полсотни", Threshold: 50, Reward: model.RewardBundle{XP: 1200, GoldLingots: 1000, Gems: 20}},
	{ID: 6, Name: "Сотня часов", Threshold: 100, Reward: model.RewardBundle{XP: 2500, Gems: 50, Chest: tier(model.ChestTierLegendary)}},
}

// Пороги достижений стрика указаны в днях подряд.
var streakAchievements = []model.AchievementDefinition{
	{ID: 1, Name: "Три дня подряд", Threshold: 3, Reward: model.RewardBundle{XP: 30, GoldLingots: 50}},
	{ID: 2, Name: "Неделя", Threshold: 7, Reward: model.RewardBundle{XP: 100, GoldLingots: 150, CasinoChips: 3}},
	{ID: 3, Name: "Две недели", Threshold: 14, Reward: model.RewardBundle{XP: 250, GoldLingots: 300}},
	{ID: 4, Name: "Месяц", Threshold: 30, Reward: model.RewardBundle{XP: 600, Gems: 15, Chest: tier(model.ChestTierEpic)}},
	{ID: 5, Name: "Два месяца", Threshold: 60, Reward: model.RewardBundle{XP: 1500, Gems: 30}},
	{ID: 6, Name: "Сто дней", Threshold: 100, Reward: model.RewardBundle{XP: 3000, Gems: 60, Chest: tier(model.ChestTierLegendary)}},
}

var passLevels = []model.PassLevel{
	{Level: 1, RequiredXP: 0, FreeReward: model.RewardBundle{GoldLingots: 50}, PremiumReward: model.RewardBundle{Gems: 5}},
	{Level: 2, RequiredXP: 250, FreeReward: model.RewardBundle{GoldLingots: 100}, PremiumReward: model.RewardBundle{Gems: 10, CasinoChips: 5}},
	{Level: 3, RequiredXP: 600, FreeReward: model.RewardBundle{GoldLingots: 150, CasinoChips: 3}, PremiumReward: model.RewardBundle{Gems: 15}},
	{Level: 4, RequiredXP: 1200, FreeReward: model.RewardBundle{GoldLingots: 250}, PremiumReward: model.RewardBundle{Gems: 20, Chest: tier(model.ChestTierEpic)}},
	{Level: 5, RequiredXP: 2500, FreeReward: model.RewardBundle{GoldLingots: 400, CasinoChips: 5}, PremiumReward: model.RewardBundle{Gems: 30}},
	{Level: 6, RequiredXP: 5000, FreeReward: model.RewardBundle{GoldLingots: 700}, PremiumReward: model.RewardBundle{Gems: 50, Chest: tier(model.ChestTierLegendary)}},
}

// Item возвращает определение предмета магазина по идентификатору.
func Item(id int64) (model.ItemDefinition, bool) {
	for _, it := range shopItems {
		if it.ID == id {
			return it, true
		}
	}
	return model.ItemDefinition{}, false
}

// Items возвращает все предметы магазина в порядке каталога.
func Items() []model.ItemDefinition {
	out := make([]model.ItemDefinition, len(shopItems))
	copy(out, shopItems)
	return out
}

// ChestItemID возвращает идентификатор предмета-сундука указанной редкости.
func ChestItemID(t model.ChestTier) (int64, bool) {
	for _, it := range shopItems {
		if it.Effect == model.EffectChest && it.ChestTier == t {
			return it.ID, true
		}
	}
	return 0, false
}

// StudyAchievement возвращает определение учебного достижения по идентификатору.
func StudyAchievement(id int64) (model.AchievementDefinition, bool) {
	return findAchievement(studyAchievements, id)
}

// StreakAchievement возвращает определение достижения стрика по идентификатору.
func StreakAchievement(id int64) (model.AchievementDefinition, bool) {
	return findAchievement(streakAchievements, id)
}

// StudyAchievements возвращает все учебные достижения в порядке возрастания порога.
func StudyAchievements() []model.AchievementDefinition {
	out := make([]model.AchievementDefinition, len(studyAchievements))
	copy(out, studyAchievements)
	return out
}

// StreakAchievements возвращает все достижения стрика в порядке возрастания порога.
func StreakAchievements() []model.AchievementDefinition {
	out := make([]model.AchievementDefinition, len(streakAchievements))
	copy(out, streakAchievements)
	return out
}

func findAchievement(defs []model.AchievementDefinition, id int64) (model.AchievementDefinition, bool) {
	for _, d := range defs {
		if d.ID == id {
			return d, true
		}
	}
	return model.AchievementDefinition{}, false
}

// LevelForXP возвращает максимальный уровень HV-пасса, достигнутый при данном опыте.
func LevelForXP(xp int64) model.PassLevel {
	level := passLevels[0]
	for _, pl := range passLevels {
		if xp >= pl.RequiredXP {
			level = pl
		}
	}
	return level
}

// PassLevels возвращает таблицу уровней HV-пасса.
func PassLevels() []model.PassLevel {
	out := make([]model.PassLevel, len(passLevels))
	copy(out, passLevels)
	return out
}

// Validate проверяет целостность таблиц каталога. Вызывается при старте сервиса.
func Validate() error {
	seen := make(map[int64]bool, len(shopItems))
	for _, it := range shopItems {
		if seen[it.ID] {
			return fmt.Errorf("duplicate item id %d", it.ID)
		}
		seen[it.ID] = true

		if it.Price <= 0 {
			return fmt.Errorf("item %d: price must be positive", it.ID)
		}
		if it.Currency != model.CurrencyGoldLingots && it.Currency != model.CurrencyGems {
			return fmt.Errorf("item %d: unknown currency %q", it.ID, it.Currency)
		}
		if it.Effect == model.EffectChest && it.ChestTier != model.ChestTierEpic && it.ChestTier != model.ChestTierLegendary {
			return fmt.Errorf("item %d: unknown chest tier %q", it.ID, it.ChestTier)
		}
		if it.Effect == model.EffectInstantGrant && it.Grant == nil {
			return fmt.Errorf("item %d: instant grant without bundle", it.ID)
		}
		if it.Effect != model.EffectNone && !it.Consumable && it.Effect != model.EffectInstantGrant {
			return fmt.Errorf("item %d: non-consumable item cannot have effect %q", it.ID, it.Effect)
		}
	}

	for _, t := range []model.ChestTier{model.ChestTierEpic, model.ChestTierLegendary} {
		if _, ok := ChestItemID(t); !ok {
			return fmt.Errorf("no chest item for tier %q", t)
		}
	}

	if err := validateAchievements("study", studyAchievements); err != nil {
		return err
	}
	if err := validateAchievements("streak", streakAchievements); err != nil {
		return err
	}

	prev := int64(-1)
	for _, pl := range passLevels {
		if pl.RequiredXP <= prev {
			return fmt.Errorf("pass level %d: thresholds must increase", pl.Level)
		}
		prev = pl.RequiredXP
	}

	return nil
}

func validateAchievements(kind string, defs []model.AchievementDefinition) error {
	seen := make(map[int64]bool, len(defs))
	for _, d := range defs {
		if seen[d.ID] {
			return fmt.Errorf("duplicate %s achievement id %d", kind, d.ID)
		}
		seen[d.ID] = true
		if d.Threshold <= 0 {
			return fmt.Errorf("%s achievement %d: threshold must be positive", kind, d.ID)
		}
	}
	return nil
}
