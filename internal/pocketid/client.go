package pocketid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/devilmonastery/pocketid-dashboard/internal/config"
	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/metrics"
)

// Group is a user group as returned by the management API
type Group struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FriendlyName string `json:"friendlyName"`
}

// OIDCClient is a downstream OIDC client registration at Pocket-ID
type OIDCClient struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	CallbackURLs      []string `json:"callbackURLs"`
	AllowedUserGroups []Group  `json:"allowedUserGroups"`
	IsPublic          bool     `json:"isPublic"`
	HasLogo           bool     `json:"hasLogo"`
}

// User is an account at Pocket-ID
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsAdmin   bool   `json:"isAdmin"`
}

type paginated[T any] struct {
	Data       []T `json:"data"`
	Pagination struct {
		TotalPages   int `json:"totalPages"`
		TotalItems   int `json:"totalItems"`
		CurrentPage  int `json:"currentPage"`
		ItemsPerPage int `json:"itemsPerPage"`
	} `json:"pagination"`
}

const listPageSize = 100

// Client talks to the Pocket-ID management API with an API key. The client
// list (including per-client group detail) is cached; everything else is
// fetched fresh.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger

	cacheTTL time.Duration
	mu       sync.Mutex
	cached   []OIDCClient
	cachedAt time.Time
}

// NewClient creates a management API client
func NewClient(cfg config.PocketIDConfig, log *slog.Logger) *Client {
	return &Client{
		apiURL:   cfg.ManagementAPIURL(),
		apiKey:   cfg.APIKey,
		cacheTTL: cfg.CacheTTL.Std(),
		log:      log.With(slog.String("component", "pocketid")),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ListClients returns every OIDC client registration, with allowed-group
// detail resolved per client. Served from cache within the TTL.
func (c *Client) ListClients(ctx context.Context) ([]OIDCClient, error) {
	c.mu.Lock()
	if c.cached != nil && time.Since(c.cachedAt) < c.cacheTTL {
		out := make([]OIDCClient, len(c.cached))
		copy(out, c.cached)
		c.mu.Unlock()
		metrics.CacheHits.Inc()
		return out, nil
	}
	c.mu.Unlock()
	metrics.CacheMisses.Inc()

	summaries, err := c.listClientSummaries(ctx)
	if err != nil {
		return nil, err
	}

	// The list endpoint omits callback URLs and allowed groups; fetch the
	// detail view for each client
	clients := make([]OIDCClient, 0, len(summaries))
	for _, summary := range summaries {
		detail, err := c.GetClient(ctx, summary.ID)
		if err != nil {
			c.log.Warn("failed to fetch client detail",
				slog.String("client_id", summary.ID), slog.Any("error", err))
			clients = append(clients, summary)
			continue
		}
		clients = append(clients, *detail)
	}

	c.mu.Lock()
	c.cached = clients
	c.cachedAt = time.Now()
	c.mu.Unlock()

	out := make([]OIDCClient, len(clients))
	copy(out, clients)
	return out, nil
}

func (c *Client) listClientSummaries(ctx context.Context) ([]OIDCClient, error) {
	var all []OIDCClient
	for page := 1; ; page++ {
		var resp paginated[OIDCClient]
		path := fmt.Sprintf("/oidc/clients?pagination[page]=%d&pagination[limit]=%d", page, listPageSize)
		if err := c.do(ctx, "list_clients", http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to list clients: %w", err)
		}
		all = append(all, resp.Data...)
		if page >= resp.Pagination.TotalPages || len(resp.Data) == 0 {
			break
		}
	}
	return all, nil
}

// GetClient returns one client registration with full detail
func (c *Client) GetClient(ctx context.Context, clientID string) (*OIDCClient, error) {
	var client OIDCClient
	if err := c.do(ctx, "get_client", http.MethodGet, "/oidc/clients/"+url.PathEscape(clientID), nil, &client); err != nil {
		return nil, fmt.Errorf("failed to get client %s: %w", clientID, err)
	}
	return &client, nil
}

// GetClientLogo fetches a client's logo image. Returns the raw bytes and the
// content type reported by the API.
func (c *Client) GetClientLogo(ctx context.Context, clientID string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/oidc/clients/"+url.PathEscape(clientID)+"/logo", nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	metrics.RecordUpstream("get_logo", err)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch logo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("logo fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read logo body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// GetUserGroups returns the groups a user belongs to
func (c *Client) GetUserGroups(ctx context.Context, userID string) ([]Group, error) {
	var groups []Group
	path := "/users/" + url.PathEscape(userID) + "/groups"
	if err := c.do(ctx, "get_user_groups", http.MethodGet, path, nil, &groups); err != nil {
		return nil, fmt.Errorf("failed to get groups for user %s: %w", userID, err)
	}
	return groups, nil
}

// GetUser returns a user's account details
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.do(ctx, "get_user", http.MethodGet, "/users/"+url.PathEscape(userID), nil, &user); err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return &user, nil
}

// ListGroups returns every user group
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var all []Group
	for page := 1; ; page++ {
		var resp paginated[Group]
		path := fmt.Sprintf("/user-groups?pagination[page]=%d&pagination[limit]=%d", page, listPageSize)
		if err := c.do(ctx, "list_groups", http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to list groups: %w", err)
		}
		all = append(all, resp.Data...)
		if page >= resp.Pagination.TotalPages || len(resp.Data) == 0 {
			break
		}
	}
	return all, nil
}

// UpdateUserGroups replaces a user's group membership with the given group IDs
func (c *Client) UpdateUserGroups(ctx context.Context, userID string, groupIDs []string) error {
	payload := struct {
		UserGroupIDs []string `json:"userGroupIds"`
	}{UserGroupIDs: groupIDs}

	path := "/users/" + url.PathEscape(userID) + "/user-groups"
	if err := c.do(ctx, "update_user_groups", http.MethodPut, path, payload, nil); err != nil {
		return fmt.Errorf("failed to update groups for user %s: %w", userID, err)
	}
	return nil
}

// ClearCache drops the cached client list; the next ListClients refetches
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.cachedAt = time.Time{}
}

// do performs an API request with one retry on transient failure. The retry
// covers network errors and 5xx responses only; 4xx means the request itself
// is wrong and repeating it cannot help.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}

		retryable, err := c.doOnce(ctx, op, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
		c.log.Debug("retrying upstream request",
			slog.String("method", method), slog.String("path", path), slog.Any("error", err))
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, op, method, path string, body, out interface{}) (retryable bool, err error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reqBody)
	if err != nil {
		return false, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	metrics.RecordUpstream(op, err)
	if err != nil {
		return true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return false, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
