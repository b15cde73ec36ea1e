package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"warden/pkg/platform/sentinel"
)

// HTTPProvider calls the identity provider's admin REST API.
type HTTPProvider struct {
	baseURL    string
	adminToken string
	client     *http.Client
}

// NewHTTPProvider builds a client for the given base URL. The admin token is
// sent as a bearer credential on every call.
func NewHTTPProvider(baseURL, adminToken string) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    baseURL,
		adminToken: adminToken,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) DisableAccount(ctx context.Context, accountName string) error {
	return p.post(ctx, accountName, "disable")
}

func (p *HTTPProvider) EnableAccount(ctx context.Context, accountName string) error {
	return p.post(ctx, accountName, "enable")
}

func (p *HTTPProvider) post(ctx context.Context, accountName, action string) error {
	endpoint := fmt.Sprintf("%s/admin/accounts/%s/%s", p.baseURL, url.PathEscape(accountName), action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("identity %s: %w", action, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.adminToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity %s %s: %w: %v", action, accountName, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("identity account %s: %w", accountName, sentinel.ErrNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("identity %s %s: status %d: %w", action, accountName, resp.StatusCode, sentinel.ErrUnavailable)
	case resp.StatusCode >= 400:
		return fmt.Errorf("identity %s %s: status %d", action, accountName, resp.StatusCode)
	}
	return nil
}
