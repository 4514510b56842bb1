// Package auth wraps WorkOS AuthKit for the OAuth sign-in flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bizportal/internal/config"

	"github.com/workos/workos-go/v6/pkg/usermanagement"
)

var ErrInvalidCode = errors.New("invalid authorization code")

// Identity is the subset of the provider profile stored on users.
type Identity struct {
	ProviderID string
	Email      string
	Name       string
}

type Provider interface {
	AuthorizationURL(state string) (string, error)
	Authenticate(ctx context.Context, code string) (Identity, error)
}

type WorkOS struct {
	cfg config.WorkOSConfig
}

// NewWorkOS returns nil when WorkOS credentials are missing.
func NewWorkOS(cfg config.WorkOSConfig) *WorkOS {
	if !cfg.Enabled() {
		return nil
	}
	usermanagement.SetAPIKey(cfg.APIKey)
	return &WorkOS{cfg: cfg}
}

func (w *WorkOS) AuthorizationURL(state string) (string, error) {
	url, err := usermanagement.GetAuthorizationURL(usermanagement.GetAuthorizationURLOpts{
		ClientID:    w.cfg.ClientID,
		RedirectURI: w.cfg.RedirectURI,
		State:       state,
		Provider:    "authkit",
	})
	if err != nil {
		return "", fmt.Errorf("generating authorization URL: %w", err)
	}
	return url.String(), nil
}

func (w *WorkOS) Authenticate(ctx context.Context, code string) (Identity, error) {
	resp, err := usermanagement.AuthenticateWithCode(ctx, usermanagement.AuthenticateWithCodeOpts{
		ClientID: w.cfg.ClientID,
		Code:     code,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to authenticate with code", "error", err)
		return Identity{}, ErrInvalidCode
	}
	return Identity{
		ProviderID: resp.User.ID,
		Email:      resp.User.Email,
		Name:       displayName(resp.User.FirstName, resp.User.LastName, resp.User.Email),
	}, nil
}

func displayName(first, last, email string) string {
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	}
	return email
}
