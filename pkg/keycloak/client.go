package keycloak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// DiscordProviderAlias is the identity provider alias Keycloak uses for
// the Discord broker.
const DiscordProviderAlias = "discord"

// ErrUserNotFound is returned when the admin API reports no user with
// the requested ID.
var ErrUserNotFound = fmt.Errorf("keycloak: user not found")

// ClientConfig holds the settings for the admin API client.
type ClientConfig struct {
	// BaseURL is the root of the Keycloak deployment, without a
	// trailing slash, e.g. https://sso.example.edu.
	BaseURL string
	// Realm is the realm user accounts live in.
	Realm string
	// ClientID and ClientSecret identify a confidential service
	// client with the manage-users and view-users roles.
	ClientID     string
	ClientSecret string
	// HTTPTimeout bounds individual admin API calls. Defaults to 10s.
	HTTPTimeout time.Duration
}

// Client talks to the Keycloak admin REST API for a single realm.
type Client struct {
	baseURL string
	realm   string
	http    *http.Client
}

// NewClient creates an admin API client. Tokens are obtained with the
// client credentials grant and refreshed automatically.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("keycloak base URL is required")
	}
	if cfg.Realm == "" {
		return nil, fmt.Errorf("keycloak realm is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("keycloak admin client credentials are required")
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", cfg.BaseURL, cfg.Realm),
	}

	httpClient := creds.Client(ctx)
	httpClient.Timeout = timeout

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		realm:   cfg.Realm,
		http:    httpClient,
	}, nil
}

// Validate checks that the admin credentials can reach the realm. The
// caller decides whether a failure is fatal; a misconfigured client
// surfaces on first use either way.
func (c *Client) Validate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.adminBase(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach admin API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return apiError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// GetUser fetches a user representation by Keycloak user ID.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.get(ctx, fmt.Sprintf("/users/%s", url.PathEscape(userID)), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetFederatedIdentities lists the identity provider links on a user's
// account.
func (c *Client) GetFederatedIdentities(ctx context.Context, userID string) ([]FederatedIdentity, error) {
	var identities []FederatedIdentity
	if err := c.get(ctx, fmt.Sprintf("/users/%s/federated-identity", url.PathEscape(userID)), &identities); err != nil {
		return nil, err
	}
	return identities, nil
}

// DiscordIdentity returns the Discord federated identity on the user's
// account, or nil when the account has no Discord link.
func (c *Client) DiscordIdentity(ctx context.Context, userID string) (*FederatedIdentity, error) {
	identities, err := c.GetFederatedIdentities(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range identities {
		if identities[i].IdentityProvider == DiscordProviderAlias {
			return &identities[i], nil
		}
	}
	return nil, nil
}

// DeleteFederatedIdentity removes an identity provider link from a
// user's account. Removing a link that does not exist is not an error.
func (c *Client) DeleteFederatedIdentity(ctx context.Context, userID, providerAlias string) error {
	endpoint := fmt.Sprintf("%s/users/%s/federated-identity/%s",
		c.adminBase(), url.PathEscape(userID), url.PathEscape(providerAlias))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call admin API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode >= 300:
		return apiError(resp)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil
	}
}

func (c *Client) adminBase() string {
	return fmt.Sprintf("%s/admin/realms/%s", c.baseURL, c.realm)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.adminBase()+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call admin API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.StatusCode >= 300 {
		return apiError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode admin API response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("admin API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
