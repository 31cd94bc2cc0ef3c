// Package handler содержит HTTP-обработчики API сервиса HV-трекера.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hvtracker-system/internal/catalog"
	"github.com/mmeshcher/hvtracker-system/internal/ledger"
	"github.com/mmeshcher/hvtracker-system/internal/middleware"
	"github.com/mmeshcher/hvtracker-system/internal/model"
	"github.com/mmeshcher/hvtracker-system/internal/repository"
	"github.com/mmeshcher/hvtracker-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	GetProfile(ctx context.Context, userID int64) (*service.ProfileView, error)
	GetInventory(ctx context.Context, userID int64) ([]model.OwnedItem, error)
	ListAchievements(ctx context.Context, userID int64) (*service.AchievementsView, error)
	RecordActivity(ctx context.Context, userID int64) (*service.ActivityResult, error)
	ClaimStudyAchievement(ctx context.Context, userID, achievementID int64) error
	ClaimStreakAchievement(ctx context.Context, userID, achievementID int64) error
	Purchase(ctx context.Context, userID, itemID int64) error
	UseItem(ctx context.Context, userID, itemID int64) (*service.UseOutcome, error)
}

// Handler реализует HTTP-обработчики API сервиса HV-трекера.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || err.Error() == "invalid credentials" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type profileResponse struct {
	ExperiencePoints int64  `json:"experience_points"`
	GoldLingots      int64  `json:"gold_lingots"`
	Gems             int64  `json:"gems"`
	CasinoChips      int64  `json:"casino_chips"`
	CurrentStreak    int64  `json:"current_streak"`
	LastActivityDate string `json:"last_activity_date,omitempty"`
	HasPremiumPass   bool   `json:"has_premium_pass"`
	FocusGemActive   bool   `json:"focus_gem_active"`
	PassLevel        int64  `json:"pass_level"`
}

// GetProfile возвращает балансы, стрик и уровень пасса текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	view, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile error", zap.Error(err), zap.Int64("userID", userID))
		h.writeError(w, err)
		return
	}

	p := view.Profile
	resp := profileResponse{
		ExperiencePoints: p.ExperiencePoints,
		GoldLingots:      p.GoldLingots,
		Gems:             p.Gems,
		CasinoChips:      p.CasinoChips,
		CurrentStreak:    p.CurrentStreak,
		HasPremiumPass:   p.HasPremiumPass,
		PassLevel:        view.PassLevel,
	}
	if p.LastActivityDate != nil {
		resp.LastActivityDate = p.LastActivityDate.Format("2006-01-02")
	}
	if p.FocusGemActiveUntil != nil {
		resp.FocusGemActive = p.FocusGemActiveUntil.After(time.Now())
	}

	h.writeJSON(w, resp)
}

type inventoryItemResponse struct {
	ItemID       int64  `json:"item_id"`
	Name         string `json:"name"`
	PurchaseDate string `json:"purchase_date"`
}

// GetInventory возвращает инвентарь текущего пользователя в порядке покупки.
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	items, err := h.service.GetInventory(r.Context(), userID)
	if err != nil {
		h.logger.Error("get inventory error", zap.Error(err), zap.Int64("userID", userID))
		h.writeError(w, err)
		return
	}

	if len(items) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]inventoryItemResponse, 0, len(items))
	for _, it := range items {
		name := ""
		if def, ok := catalog.Item(it.ItemID); ok {
			name = def.Name
		}
		resp = append(resp, inventoryItemResponse{
			ItemID:       it.ItemID,
			Name:         name,
			PurchaseDate: it.PurchaseDate.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}

type achievementResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
	Claimed   bool   `json:"claimed"`
	Claimable bool   `json:"claimable"`
}

type achievementsResponse struct {
	StudyHours float64               `json:"study_hours"`
	Study      []achievementResponse `json:"study"`
	Streak     []achievementResponse `json:"streak"`
}

// GetAchievements возвращает достижения каталога с признаками получения.
func (h *Handler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	view, err := h.service.ListAchievements(r.Context(), userID)
	if err != nil {
		h.logger.Error("list achievements error", zap.Error(err), zap.Int64("userID", userID))
		h.writeError(w, err)
		return
	}

	resp := achievementsResponse{StudyHours: view.StudyHours}
	for _, st := range view.Study {
		resp.Study = append(resp.Study, achievementResponse{
			ID:        st.Definition.ID,
			Name:      st.Definition.Name,
			Threshold: st.Definition.Threshold,
			Claimed:   st.Claimed,
			Claimable: st.Claimable,
		})
	}
	for _, st := range view.Streak {
		resp.Streak = append(resp.Streak, achievementResponse{
			ID:        st.Definition.ID,
			Name:      st.Definition.Name,
			Threshold: st.Definition.Threshold,
			Claimed:   st.Claimed,
			Claimable: st.Claimable,
		})
	}

	h.writeJSON(w, resp)
}

type activityResponse struct {
	Updated        bool  `json:"updated"`
	CurrentStreak  int64 `json:"current_streak"`
	ShieldConsumed bool  `json:"shield_consumed"`
}

// RecordActivity учитывает событие активности для стрика текущего пользователя.
func (h *Handler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	res, err := h.service.RecordActivity(r.Context(), userID)
	if err != nil {
		h.logger.Error("record activity error", zap.Error(err), zap.Int64("userID", userID))
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, activityResponse{
		Updated:        res.Updated,
		CurrentStreak:  res.CurrentStreak,
		ShieldConsumed: res.ShieldConsumed,
	})
}

type claimRequest struct {
	AchievementID int64 `json:"achievement_id"`
}

// ClaimStudyAchievement выдаёт награду за учебное достижение.
func (h *Handler) ClaimStudyAchievement(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, h.service.ClaimStudyAchievement)
}

// ClaimStreakAchievement выдаёт награду за достижение стрика.
func (h *Handler) ClaimStreakAchievement(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, h.service.ClaimStreakAchievement)
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request, claimFn func(ctx context.Context, userID, achievementID int64) error) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := claimFn(r.Context(), userID, req.AchievementID); err != nil {
		if !ledger.IsGuardFailure(err) && !errors.Is(err, service.ErrUnknownAchievement) {
			h.logger.Error("claim achievement error", zap.Error(err),
				zap.Int64("userID", userID), zap.Int64("achievementID", req.AchievementID))
		}
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type purchaseRequest struct {
	ItemID int64 `json:"item_id"`
}

// Purchase выполняет покупку предмета каталога текущим пользователем.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.Purchase(r.Context(), userID, req.ItemID); err != nil {
		if !ledger.IsGuardFailure(err) && !errors.Is(err, service.ErrUnknownItem) {
			h.logger.Error("purchase error", zap.Error(err),
				zap.Int64("userID", userID), zap.Int64("itemID", req.ItemID))
		}
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type useItemRequest struct {
	ItemID int64 `json:"item_id"`
}

type useItemResponse struct {
	Effect             string `json:"effect"`
	FocusUntil         string `json:"focus_until,omitempty"`
	GoldLingots        int64  `json:"gold_lingots,omitempty"`
	CasinoChips        int64  `json:"casino_chips,omitempty"`
	BonusGems          int64  `json:"bonus_gems,omitempty"`
	PremiumPassGranted bool   `json:"premium_pass_granted,omitempty"`
}

// UseItem применяет эффект потребляемого предмета из инвентаря.
func (h *Handler) UseItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req useItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	out, err := h.service.UseItem(r.Context(), userID, req.ItemID)
	if err != nil {
		if !ledger.IsGuardFailure(err) &&
			!errors.Is(err, service.ErrUnknownItem) &&
			!errors.Is(err, service.ErrNotConsumable) &&
			!errors.Is(err, service.ErrNoEffect) {
			h.logger.Error("use item error", zap.Error(err),
				zap.Int64("userID", userID), zap.Int64("itemID", req.ItemID))
		}
		h.writeError(w, err)
		return
	}

	resp := useItemResponse{
		Effect:             string(out.Effect),
		GoldLingots:        out.GoldLingots,
		CasinoChips:        out.CasinoChips,
		BonusGems:          out.BonusGems,
		PremiumPassGranted: out.PremiumPassGranted,
	}
	if out.FocusGemActiveUntil != nil {
		resp.FocusUntil = out.FocusGemActiveUntil.Format(time.RFC3339)
	}

	h.writeJSON(w, resp)
}

type shopItemResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Currency   string `json:"currency"`
	Consumable bool   `json:"consumable"`
	Effect     string `json:"effect"`
}

// GetShopItems возвращает каталог магазина. Доступен без авторизации.
func (h *Handler) GetShopItems(w http.ResponseWriter, r *http.Request) {
	items := catalog.Items()

	resp := make([]shopItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, shopItemResponse{
			ID:         it.ID,
			Name:       it.Name,
			Price:      it.Price,
			Currency:   string(it.Currency),
			Consumable: it.Consumable,
			Effect:     string(it.Effect),
		})
	}

	h.writeJSON(w, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// writeError переводит ошибки бизнес-правил и инфраструктуры в HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
	case errors.Is(err, ledger.ErrAlreadyOwned),
		errors.Is(err, ledger.ErrAlreadyClaimed),
		errors.Is(err, ledger.ErrNotOwned):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	case errors.Is(err, ledger.ErrThresholdNotMet),
		errors.Is(err, service.ErrNotConsumable),
		errors.Is(err, service.ErrNoEffect):
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrUnknownItem),
		errors.Is(err, service.ErrUnknownAchievement),
		errors.Is(err, repository.ErrProfileNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, ledger.ErrConflict),
		errors.Is(err, repository.ErrStoreUnavailable):
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
