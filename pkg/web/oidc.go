package web

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// kcActionLinkDiscord asks Keycloak to run the Discord identity-link
// flow during authentication instead of a plain login.
const kcActionLinkDiscord = "idp_link:discord"

// Authenticator is the OIDC surface the server's handlers use. OIDC
// implements it; tests substitute a fake.
type Authenticator interface {
	// AuthURL returns the provider's authorization URL for the login
	// leg of the flow.
	AuthURL(state string) string
	// LinkAuthURL returns the authorization URL that triggers the
	// provider's Discord identity-link action.
	LinkAuthURL(state string) string
	// Exchange trades an authorization code for the authenticated SSO
	// subject. link selects which leg's redirect URI to present.
	Exchange(ctx context.Context, code string, link bool) (string, error)
}

// OIDCConfig holds the relying-party settings.
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	// RedirectURL receives the login leg, LinkRedirectURL the
	// identity-link leg.
	RedirectURL     string
	LinkRedirectURL string
}

// OIDC implements Authenticator against a discovered OpenID Connect
// provider.
type OIDC struct {
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	linkRedirect string
}

// NewOIDC discovers the provider and builds the relying-party
// configuration.
func NewOIDC(ctx context.Context, config OIDCConfig) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: config.ClientID})

	oauth2Config := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  config.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID},
	}

	return &OIDC{
		provider:     provider,
		verifier:     verifier,
		oauth2Config: oauth2Config,
		linkRedirect: config.LinkRedirectURL,
	}, nil
}

// AuthURL returns the authorization URL for the login leg.
func (o *OIDC) AuthURL(state string) string {
	return o.oauth2Config.AuthCodeURL(state)
}

// LinkAuthURL returns the authorization URL for the identity-link leg.
func (o *OIDC) LinkAuthURL(state string) string {
	return o.oauth2Config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("kc_action", kcActionLinkDiscord),
		oauth2.SetAuthURLParam("redirect_uri", o.linkRedirect),
	)
}

// Exchange trades the authorization code for tokens and returns the
// verified ID token's subject.
func (o *OIDC) Exchange(ctx context.Context, code string, link bool) (string, error) {
	var opts []oauth2.AuthCodeOption
	if link {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", o.linkRedirect))
	}

	oauth2Token, err := o.oauth2Config.Exchange(ctx, code, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return "", fmt.Errorf("missing id_token in response")
	}

	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("failed to verify ID token: %w", err)
	}
	if idToken.Subject == "" {
		return "", fmt.Errorf("missing subject in ID token")
	}
	return idToken.Subject, nil
}
