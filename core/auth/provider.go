package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/createproresume/resume-service/api/web"
	"github.com/createproresume/resume-service/api/weberr"
	"github.com/createproresume/resume-service/random"
	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"
)

const stateKey = "oauth_state"

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

type Provider struct {
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// MakeProviders discovers the OIDC endpoints of the configured providers.
// Providers sign admins in; there is no customer account model.
func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (map[string]Provider, error) {
	provs := make(map[string]Provider, len(cfgs))

	for _, cfg := range cfgs {
		p, err := oidc.NewProvider(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider %q: %w", cfg.Name, err)
		}

		provs[cfg.Name] = Provider{
			config: oauth2.Config{
				ClientID:     cfg.Client,
				ClientSecret: cfg.Secret,
				Endpoint:     p.Endpoint(),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "email"},
			},
			verifier: p.Verifier(&oidc.Config{ClientID: cfg.Client}),
		}
	}
	return provs, nil
}

func HandleOauthLogin(session *scs.SessionManager, provs map[string]Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := provs[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(errors.New("unknown oauth provider"))
		}

		state, err := random.StringSecure(32)
		if err != nil {
			return fmt.Errorf("generating oauth state: %w", err)
		}
		session.Put(ctx, stateKey, state)

		http.Redirect(w, r, prov.config.AuthCodeURL(state), http.StatusFound)
		return nil
	}
}

func HandleOauthCallback(db *sqlx.DB, session *scs.SessionManager, provs map[string]Provider, redirectURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := provs[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(errors.New("unknown oauth provider"))
		}

		state := session.PopString(ctx, stateKey)
		if state == "" || state != web.Query(r, "state") {
			return weberr.BadRequest(errors.New("oauth state mismatch"))
		}

		token, err := prov.config.Exchange(ctx, web.Query(r, "code"))
		if err != nil {
			return fmt.Errorf("exchanging oauth code: %w", err)
		}

		rawID, ok := token.Extra("id_token").(string)
		if !ok {
			return weberr.BadRequest(errors.New("oauth token without id_token"))
		}

		idToken, err := prov.verifier.Verify(ctx, rawID)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("verifying id token: %w", err))
		}

		var idClaims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&idClaims); err != nil {
			return fmt.Errorf("extracting id token claims: %w", err)
		}

		admin, err := FetchAdminByEmail(ctx, db, idClaims.Email)
		if err != nil {
			if errors.Is(err, ErrAdminNotFound) {
				return weberr.NotAuthorized(errors.New("no admin account for this identity"))
			}
			return err
		}

		if err := login(ctx, session, admin); err != nil {
			return err
		}

		http.Redirect(w, r, redirectURL, http.StatusFound)
		return nil
	}
}
