package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/hvtracker-system/internal/catalog"
	"github.com/mmeshcher/hvtracker-system/internal/ledger"
	"github.com/mmeshcher/hvtracker-system/internal/model"
	"github.com/mmeshcher/hvtracker-system/internal/reward"
)

func TestUseItem_FocusGem(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	gem := model.OwnedItem{ItemID: catalog.ItemFocusGem, PurchaseDate: now.Add(-time.Hour)}

	svc, store := newTestService(t, &model.Profile{
		UserID:     1,
		OwnedItems: []model.OwnedItem{gem},
	})
	svc.clock = fixedClock{now: now}

	out, err := svc.UseItem(context.Background(), 1, catalog.ItemFocusGem)
	require.NoError(t, err)
	assert.Equal(t, model.EffectTimedBuff, out.Effect)
	require.NotNil(t, out.FocusGemActiveUntil)
	assert.True(t, out.FocusGemActiveUntil.Equal(now.Add(catalog.FocusGemDuration)))

	p, _, err := store.ReadProfile(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, p.FocusGemActiveUntil)
	assert.True(t, p.FocusGemActiveUntil.Equal(now.Add(catalog.FocusGemDuration)))
	assert.Equal(t, 0, p.CountItems(catalog.ItemFocusGem))
}

func TestUseItem_FocusGemReplacesExpiry(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	old := now.Add(-10 * time.Minute)

	svc, store := newTestService(t, &model.Profile{
		UserID:              1,
		FocusGemActiveUntil: &old,
		OwnedItems:          []model.OwnedItem{{ItemID: catalog.ItemFocusGem, PurchaseDate: now}},
	})
	svc.clock = fixedClock{now: now}

	_, err := svc.UseItem(context.Background(), 1, catalog.ItemFocusGem)
	require.NoError(t, err)

	p, _, err := store.ReadProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, p.FocusGemActiveUntil.Equal(now.Add(catalog.FocusGemDuration)))
}

func TestUseItem_OpenChest(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	chest := model.OwnedItem{ItemID: catalog.ItemLegendChest, PurchaseDate: now.Add(-time.Hour)}

	svc, store := newTestService(t, &model.Profile{
		UserID:     1,
		OwnedItems: []model.OwnedItem{chest},
	})
	svc.clock = fixedClock{now: now}
	// Золото и фишки по нижней границе, бонус не выпадает.
	svc.rng = reward.Replay(0, 0, 0.5)

	out, err := svc.UseItem(context.Background(), 1, catalog.ItemLegendChest)
	require.NoError(t, err)
	assert.Equal(t, model.EffectChest, out.Effect)
	assert.Equal(t, int64(250), out.GoldLingots)
	assert.Equal(t, int64(10), out.CasinoChips)
	assert.Equal(t, int64(0), out.BonusGems)
	assert.False(t, out.PremiumPassGranted)

	p, _, err := store.ReadProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(250), p.GoldLingots)
	assert.Equal(t, int64(10), p.CasinoChips)
	assert.Equal(t, 0, p.CountItems(catalog.ItemLegendChest))
}

func TestUseItem_ChestBonusGrantsPass(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	svc, store := newTestService(t, &model.Profile{
		UserID:     1,
		OwnedItems: []model.OwnedItem{{ItemID: catalog.ItemLegendChest, PurchaseDate: now}},
	})
	svc.clock = fixedClock{now: now}
	svc.rng = reward.Replay(0.5, 0.5, 0.01)

	out, err := svc.UseItem(context.Background(), 1, catalog.ItemLegendChest)
	require.NoError(t, err)
	assert.True(t, out.PremiumPassGranted)

	p, _, err := store.ReadProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, p.HasPremiumPass)
}

func TestUseItem_ChestBonusConsolationWhenPassHeld(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	svc, store := newTestService(t, &model.Profile{
		UserID:         1,
		HasPremiumPass: true,
		OwnedItems:     []model.OwnedItem{{ItemID: catalog.ItemLegendChest, PurchaseDate: now}},
	})
	svc.clock = fixedClock{now: now}
	svc.rng = reward.Replay(0.5, 0.5, 0.01)

	out, err := svc.UseItem(context.Background(), 1, catalog.ItemLegendChest)
	require.NoError(t, err)
	assert.False(t, out.PremiumPassGranted)
	assert.Equal(t, int64(reward.ConsolationGems), out.BonusGems)

	p, _, err := store.ReadProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, p.HasPremiumPass)
	assert.Equal(t, int64(reward.ConsolationGems), p.Gems)
}

func TestUseItem_RemovesOneOfDuplicates(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	svc, store := newTestService(t, &model.Profile{
		UserID: 1,
		OwnedItems: []model.OwnedItem{
			{ItemID: catalog.ItemFocusGem, PurchaseDate: now.Add(-2 * time.Hour)},
			{ItemID: catalog.ItemFocusGem, PurchaseDate: now.Add(-time.Hour)},
		},
	})
	svc.clock = fixedClock{now: now}

	_, err := svc.UseItem(context.Background(), 1, catalog.ItemFocusGem)
	require.NoError(t, err)

	p, _, err := store.ReadProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CountItems(catalog.ItemFocusGem))
}

func TestUseItem_NotOwned(t *testing.T) {
	svc, _ := newTestService(t, &model.Profile{UserID: 1})

	_, err := svc.UseItem(context.Background(), 1, catalog.ItemFocusGem)
	assert.ErrorIs(t, err, ledger.ErrNotOwned)
}

func TestUseItem_NotConsumable(t *testing.T) {
	svc, _ := newTestService(t, &model.Profile{
		UserID:     1,
		OwnedItems: []model.OwnedItem{{ItemID: catalog.ItemGoldenAvatar, PurchaseDate: time.Now()}},
	})

	_, err := svc.UseItem(context.Background(), 1, catalog.ItemGoldenAvatar)
	assert.ErrorIs(t, err, ErrNotConsumable)
}

func TestUseItem_ShieldHasNoDirectEffect(t *testing.T) {
	svc, store := newTestService(t, &model.Profile{
		UserID:     1,
		OwnedItems: []model.OwnedItem{{ItemID: catalog.ItemStreakShield, PurchaseDate: time.Now()}},
	})

	_, err := svc.UseItem(context.Background(), 1, catalog.ItemStreakShield)
	require.ErrorIs(t, err, ErrNoEffect)

	p, _, err := store.ReadProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CountItems(catalog.ItemStreakShield), "failed use must not consume the item")
}

func TestUseItem_UnknownItem(t *testing.T) {
	svc, _ := newTestService(t, &model.Profile{UserID: 1})

	_, err := svc.UseItem(context.Background(), 1, 9999)
	assert.ErrorIs(t, err, ErrUnknownItem)
}
