// Package bitable is the HTTP client for the Feishu bitable open API:
// tenant token exchange plus paginated record listing.
package bitable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"dispatchboard/internal/models"
)

const tokenCacheKey = "tenant_access_token"

// Client talks to the bitable open API. Tokens are cached until shortly
// before expiry; all requests share a QPS limiter so paginated fetches stay
// inside the platform quota.
type Client struct {
	httpClient *http.Client
	baseURL    string

	appID     string
	appSecret string
	appToken  string
	tableID   string

	tokens  *cache.Cache
	limiter *rate.Limiter
}

// Options configures a bitable client.
type Options struct {
	BaseURL   string
	AppID     string
	AppSecret string
	AppToken  string
	TableID   string
	QPS       int
}

// NewClient creates a bitable client with pooled connections.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	qps := opts.QPS
	if qps <= 0 {
		qps = 5
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
		},
		baseURL:   opts.BaseURL,
		appID:     opts.AppID,
		appSecret: opts.AppSecret,
		appToken:  opts.AppToken,
		tableID:   opts.TableID,
		tokens:    cache.New(cache.NoExpiration, 5*time.Minute),
		limiter:   rate.NewLimiter(rate.Limit(qps), qps),
	}
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// tenantAccessToken returns a cached token, fetching a fresh one when the
// cached copy is missing or expired.
func (c *Client) tenantAccessToken(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(tokenCacheKey); ok {
		return token.(string), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/v3/tenant_access_token/internal/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, data)
	}

	var tr tokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.Code != 0 {
		return "", fmt.Errorf("token request rejected (code %d): %s", tr.Code, tr.Msg)
	}

	// Expire the cached token a minute early so in-flight requests never
	// hit the API with a token about to lapse.
	ttl := time.Duration(tr.Expire-60) * time.Second
	if ttl <= 0 {
		ttl = time.Duration(tr.Expire) * time.Second
	}
	c.tokens.Set(tokenCacheKey, tr.TenantAccessToken, ttl)

	return tr.TenantAccessToken, nil
}

type recordsResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		HasMore   bool   `json:"has_more"`
		PageToken string `json:"page_token"`
		Items     []struct {
			RecordID         string         `json:"record_id"`
			Fields           map[string]any `json:"fields"`
			CreatedTime      int64          `json:"created_time"`
			LastModifiedTime int64          `json:"last_modified_time"`
		} `json:"items"`
	} `json:"data"`
}

// Records fetches every record from the configured table, following
// pagination until the API reports no more pages. A failed page fails the
// whole fetch: callers must never mistake a partial listing for the full
// table.
func (c *Client) Records(ctx context.Context) ([]models.RawRecord, error) {
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	var records []models.RawRecord
	pageToken := ""

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := c.recordsPage(ctx, token, pageToken)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Data.Items {
			records = append(records, models.RawRecord{
				RecordID:         item.RecordID,
				Fields:           item.Fields,
				CreatedTime:      item.CreatedTime,
				LastModifiedTime: item.LastModifiedTime,
			})
		}

		if !page.Data.HasMore {
			return records, nil
		}
		pageToken = page.Data.PageToken
	}
}

func (c *Client) recordsPage(ctx context.Context, token, pageToken string) (*recordsResponse, error) {
	endpoint := fmt.Sprintf("%s/bitable/v1/apps/%s/tables/%s/records",
		c.baseURL, url.PathEscape(c.appToken), url.PathEscape(c.tableID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create records request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	q := req.URL.Query()
	q.Set("page_size", "500")
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("records request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read records response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("records request returned %d: %s", resp.StatusCode, data)
	}

	var rr recordsResponse
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, fmt.Errorf("failed to decode records response: %w", err)
	}
	if rr.Code != 0 {
		return nil, fmt.Errorf("records request rejected (code %d): %s", rr.Code, rr.Msg)
	}
	return &rr, nil
}
