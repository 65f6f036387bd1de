package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/maxshopweb/checkout/internal/domain"
)

// HTTPClient talks to the identity service. It implements both EmailChecker
// and Provider and tracks the current principal in memory.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.RWMutex
	token  string
	userID string
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPClient) CheckEmail(ctx context.Context, email string) (*EmailCheck, error) {
	body := map[string]string{"email": email}
	var check EmailCheck
	if err := c.post(ctx, "/auth/check-email", body, &check); err != nil {
		return nil, err
	}
	return &check, nil
}

func (c *HTTPClient) GuestSignIn(ctx context.Context, profile GuestProfile) (string, error) {
	var resp struct {
		UserID string `json:"user_id"`
		Token  string `json:"token"`
	}
	if err := c.post(ctx, "/auth/guest", profile, &resp); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.userID = resp.UserID
	c.token = resp.Token
	c.mu.Unlock()

	return resp.UserID, nil
}

func (c *HTTPClient) ConvertGuestToAccount(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.post(ctx, "/auth/guest/convert", body, nil)
}

func (c *HTTPClient) ObtainToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		return token, nil
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/auth/token", nil, &resp); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()

	return resp.Token, nil
}

func (c *HTTPClient) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID != ""
}

func (c *HTTPClient) CurrentUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// ListAddresses fetches the user's saved delivery addresses from the
// identity service.
func (c *HTTPClient) ListAddresses(ctx context.Context, userID string) ([]domain.Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/"+userID+"/addresses", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var addresses []domain.Address
	if err := json.NewDecoder(resp.Body).Decode(&addresses); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return addresses, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
