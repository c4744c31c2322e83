// Package auth wires the external OAuth provider to the session store and
// guards protected route subtrees based on session and privilege state.
package auth

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/grindolympiads/examgate/config"
	"github.com/grindolympiads/examgate/session"
	"golang.org/x/oauth2"
)

// OIDCProvider handles the OpenID Connect login flow and feeds the resulting
// identity assertion into the session store.
type OIDCProvider struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	config   *oauth2.Config
	cfg      *config.OIDCConfig
	manager  *session.Manager
}

// NewOIDCProvider creates an OIDC provider.
func NewOIDCProvider(ctx context.Context, cfg *config.OIDCConfig, manager *session.Manager) (*OIDCProvider, error) {
	p := OIDCProvider{
		cfg:     cfg,
		manager: manager,
	}
	var err error
	p.provider, err = oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	p.config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	p.verifier = p.provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return &p, nil
}
