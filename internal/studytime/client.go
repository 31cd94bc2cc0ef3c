// Package studytime предоставляет клиент внешнего сервиса учёта учебных сессий.
// Сервис — источник прогресса для учебных достижений: суммарные часы
// запрашиваются в момент получения награды и никогда не кэшируются.
package studytime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client инкапсулирует HTTP-взаимодействие с сервисом учёта учебного времени.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// TotalHours описывает ответ сервиса по суммарному учебному времени пользователя.
type TotalHours struct {
	UserID     int64   `json:"user_id"`
	TotalHours float64 `json:"total_hours"`
}

// NewClient создаёт клиент сервиса учебного времени по указанному адресу.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc.StandardClient(),
	}
}

// GetTotalHours запрашивает суммарное количество часов учёбы пользователя.
func (c *Client) GetTotalHours(ctx context.Context, userID int64) (float64, error) {
	if c == nil || c.baseURL == "" {
		return 0, fmt.Errorf("studytime client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := fmt.Sprintf("%s/api/study/%d/total", base, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return 0, nil
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result TotalHours
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	return result.TotalHours, nil
}
