package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hvtracker-system/internal/ledger"
	"github.com/mmeshcher/hvtracker-system/internal/middleware"
	"github.com/mmeshcher/hvtracker-system/internal/model"
	"github.com/mmeshcher/hvtracker-system/internal/repository"
	"github.com/mmeshcher/hvtracker-system/internal/service"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUserID int64
	authErr    error

	profileResp *service.ProfileView
	profileErr  error

	inventoryResp []model.OwnedItem
	inventoryErr  error

	achievementsResp *service.AchievementsView
	achievementsErr  error

	activityResp *service.ActivityResult
	activityErr  error

	claimStudyErr  error
	claimStreakErr error

	purchaseErr error

	useResp *service.UseOutcome
	useErr  error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	return s.authUserID, s.authErr
}

func (s *stubService) GetProfile(ctx context.Context, userID int64) (*service.ProfileView, error) {
	return s.profileResp, s.profileErr
}

func (s *stubService) GetInventory(ctx context.Context, userID int64) ([]model.OwnedItem, error) {
	return s.inventoryResp, s.inventoryErr
}

func (s *stubService) ListAchievements(ctx context.Context, userID int64) (*service.AchievementsView, error) {
	return s.achievementsResp, s.achievementsErr
}

func (s *stubService) RecordActivity(ctx context.Context, userID int64) (*service.ActivityResult, error) {
	return s.activityResp, s.activityErr
}

func (s *stubService) ClaimStudyAchievement(ctx context.Context, userID, achievementID int64) error {
	return s.claimStudyErr
}

func (s *stubService) ClaimStreakAchievement(ctx context.Context, userID, achievementID int64) error {
	return s.claimStreakErr
}

func (s *stubService) Purchase(ctx context.Context, userID, itemID int64) error {
	return s.purchaseErr
}

func (s *stubService) UseItem(ctx context.Context, userID, itemID int64) (*service.UseOutcome, error) {
	return s.useResp, s.useErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger := zap.NewNop()
	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func authorizedRequest(h *Handler, req *http.Request, userID int64) *http.Request {
	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, userID)
	req.AddCookie(rec.Result().Cookies()[0])
	return req
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerUserID: 42,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatal("expected auth cookie to be set")
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{
		registerErr: repository.ErrUserExists,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestRegister_BadRequest(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader([]byte(`{"login":""}`)))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &stubService{
		authErr: errors.New("invalid credentials"),
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "wrong",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestGetProfile_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetProfile))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestGetProfile_JSONResponse(t *testing.T) {
	until := time.Now().Add(10 * time.Minute)
	last := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	svc := &stubService{
		profileResp: &service.ProfileView{
			Profile: &model.Profile{
				UserID:              1,
				ExperiencePoints:    700,
				GoldLingots:         120,
				Gems:                4,
				CasinoChips:         25,
				CurrentStreak:       9,
				LastActivityDate:    &last,
				FocusGemActiveUntil: &until,
			},
			PassLevel: 3,
		},
	}
	h := newTestHandler(t, svc)

	req := authorizedRequest(h, httptest.NewRequest(http.MethodGet, "/api/user/profile", nil), 1)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetProfile))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp profileResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ExperiencePoints != 700 || resp.PassLevel != 3 {
		t.Fatalf("unexpected profile: %+v", resp)
	}
	if resp.LastActivityDate != "2025-06-10" {
		t.Fatalf("last activity = %q, want 2025-06-10", resp.LastActivityDate)
	}
	if !resp.FocusGemActive {
		t.Fatal("focus gem must be reported active")
	}
}

func TestGetInventory_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := authorizedRequest(h, httptest.NewRequest(http.MethodGet, "/api/user/inventory", nil), 1)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetInventory))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
}

func TestPurchase_PaymentRequired(t *testing.T) {
	svc := &stubService{
		purchaseErr: ledger.ErrInsufficientFunds,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(purchaseRequest{ItemID: 7})
	req := authorizedRequest(h, httptest.NewRequest(http.MethodPost, "/api/user/shop/purchase", bytes.NewReader(body)), 1)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.Purchase))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusPaymentRequired)
	}
}

func TestPurchase_AlreadyOwnedConflict(t *testing.T) {
	svc := &stubService{
		purchaseErr: ledger.ErrAlreadyOwned,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(purchaseRequest{ItemID: 6})
	req := authorizedRequest(h, httptest.NewRequest(http.MethodPost, "/api/user/shop/purchase", bytes.NewReader(body)), 1)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.Purchase))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestClaimStudy_UnknownNotFound(t *testing.T) {
	svc := &stubService{
		claimStudyErr: service.ErrUnknownAchievement,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(claimRequest{AchievementID: 99})
	req := authorizedRequest(h, httptest.NewRequest(http.MethodPost, "/api/user/achievements/study/claim", bytes.NewReader(body)), 1)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.ClaimStudyAchievement))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestClaimStreak_ThresholdUnprocessable(t *testing.T) {
	svc := &stubService{
		claimStreakErr: ledger.ErrThresholdNotMet,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(claimRequest{AchievementID: 2})
	req := authorizedRequest(h, httptest.NewRequest(http.MethodPost, "/api/user/achievements/streak/claim", bytes.NewReader(body)), 1)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.ClaimStreakAchievement))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestUseItem_ConflictWhenNotOwned(t *testing.T) {
	svc := &stubService{
		useErr: ledger.ErrNotOwned,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(useItemRequest{ItemID: 2})
	req := authorizedRequest(h, httptest.NewRequest(http.MethodPost, "/api/user/inventory/use", bytes.NewReader(body)), 1)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.UseItem))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestUseItem_ChestResponse(t *testing.T) {
	svc := &stubService{
		useResp: &service.UseOutcome{
			Effect:      model.EffectChest,
			GoldLingots: 250,
			CasinoChips: 12,
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(useItemRequest{ItemID: 4})
	req := authorizedRequest(h, httptest.NewRequest(http.MethodPost, "/api/user/inventory/use", bytes.NewReader(body)), 1)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.UseItem))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp useItemResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Effect != string(model.EffectChest) || resp.GoldLingots != 250 || resp.CasinoChips != 12 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRecordActivity_JSONResponse(t *testing.T) {
	svc := &stubService{
		activityResp: &service.ActivityResult{
			Updated:        true,
			CurrentStreak:  5,
			ShieldConsumed: true,
		},
	}
	h := newTestHandler(t, svc)

	req := authorizedRequest(h, httptest.NewRequest(http.MethodPost, "/api/user/activity", nil), 1)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.RecordActivity))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp activityResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Updated || resp.CurrentStreak != 5 || !resp.ShieldConsumed {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetShopItems_Public(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/shop/items", nil)
	rec := httptest.NewRecorder()

	h.GetShopItems(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp []shopItemResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) == 0 {
		t.Fatal("expected non-empty catalog")
	}
}

func TestWriteError_ServiceUnavailable(t *testing.T) {
	svc := &stubService{
		profileErr: ledger.ErrConflict,
	}
	h := newTestHandler(t, svc)

	req := authorizedRequest(h, httptest.NewRequest(http.MethodGet, "/api/user/profile", nil), 1)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetProfile))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusServiceUnavailable)
	}
}
