// Package panel is the client for the external subscription panel: a narrow
// create/get/delete/extend contract over its JSON API. The panel is a black
// box; it does not deduplicate extensions, so callers guarantee at-most-once
// invocation per payment.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
)

var _ adapter.PanelClient = (*Client)(nil)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	log     *zerolog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
	}
}

type panelUserPayload struct {
	UUID        string `json:"uuid"`
	Username    string `json:"username"`
	Status      string `json:"status"`
	ExpireAt    string `json:"expireAt"`
	SubURL      string `json:"subscriptionUrl"`
	TrafficUsed int64  `json:"usedTrafficBytes"`
}

type userResponse struct {
	Response panelUserPayload `json:"response"`
}

func (p *panelUserPayload) toUser() (*adapter.PanelUser, error) {
	u := &adapter.PanelUser{
		UUID:        p.UUID,
		Username:    p.Username,
		Status:      p.Status,
		SubURL:      p.SubURL,
		TrafficUsed: p.TrafficUsed,
	}
	if p.ExpireAt != "" {
		t, err := time.Parse(time.RFC3339, p.ExpireAt)
		if err != nil {
			return nil, fmt.Errorf("panel: bad expireAt %q: %w", p.ExpireAt, err)
		}
		u.ExpireAt = t
	}
	return u, nil
}

func (c *Client) CreateUser(ctx context.Context, username string, expireDays int, trafficLimit int64) (*adapter.PanelUser, error) {
	body := map[string]any{
		"username":             username,
		"expireAt":             time.Now().UTC().AddDate(0, 0, expireDays).Format(time.RFC3339),
		"trafficLimitBytes":    trafficLimit,
		"trafficLimitStrategy": "NO_RESET",
		"status":               "DISABLED",
	}
	raw, err := c.do(ctx, http.MethodPost, "/api/users", body)
	if err != nil {
		return nil, err
	}
	var resp userResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if resp.Response.UUID == "" {
		return nil, fmt.Errorf("%w: no uuid in create response", domain.ErrMalformedResponse)
	}
	return resp.Response.toUser()
}

func (c *Client) GetUserByUUID(ctx context.Context, uuid string) (*adapter.PanelUser, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/users/"+uuid, nil)
	if err != nil {
		return nil, err
	}
	var resp userResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if resp.Response.UUID == "" {
		return nil, domain.ErrNotFound
	}
	return resp.Response.toUser()
}

func (c *Client) DeleteUser(ctx context.Context, uuid string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/users/"+uuid, nil)
	return err
}

// ExtendSubscription activates or extends a user's access by whole months.
func (c *Client) ExtendSubscription(ctx context.Context, userID int64, months int, provider string) (*adapter.PanelUser, error) {
	body := map[string]any{
		"telegramId": userID,
		"months":     months,
		"source":     provider,
	}
	raw, err := c.do(ctx, http.MethodPost, "/api/subscriptions/extend", body)
	if err != nil {
		return nil, err
	}
	var resp userResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if resp.Response.UUID == "" {
		return nil, fmt.Errorf("%w: extend returned no user", domain.ErrMalformedResponse)
	}
	return resp.Response.toUser()
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("panel: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("panel: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayNetwork, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error().Int("status", resp.StatusCode).Str("endpoint", endpoint).Bytes("raw", body).Msg("panel: request failed")
		return nil, fmt.Errorf("%w: status %s", domain.ErrGatewayRejected, strconv.Itoa(resp.StatusCode))
	}
	return body, nil
}
