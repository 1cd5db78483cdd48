package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/skyanki/internal/services"
	"github.com/desertthunder/skyanki/internal/shared"
)

// AuthLogin logs in with the configured credentials even when the stored token is valid.
//
// The new token is persisted by the session's change callback, so a failed login keeps the stored one.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	username := r.conf().Skyeng.Username
	if err := r.connectSkyeng(); err != nil {
		return err
	}

	r.logger.Info("logging in", "login", shared.RedactLogin(username))
	tok, err := r.session.Refresh(ctx)
	if err != nil {
		return err
	}

	r.writePlain("✓ Logged in as %s\n", shared.RedactLogin(username))
	return r.writePlain("Token expires: %s\n", tok.ExpiresAt.Local().Format(time.RFC1123))
}

// AuthStatus reports whether a stored token exists and is still valid.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.connectSkyeng(); err != nil {
		return err
	}

	r.writePlain("Login: %s\n", shared.RedactLogin(r.conf().Skyeng.Username))

	switch state := r.session.State(); state {
	case services.TokenValid:
		tok := r.session.Current()
		r.writePlain("Token: ✓ %s\n", state)
		return r.writePlain("Expires: %s (in %s)\n",
			tok.ExpiresAt.Local().Format(time.RFC1123), time.Until(tok.ExpiresAt).Round(time.Second))
	default:
		r.writePlain("Token: ✗ %s\n", state)
		return r.writePlain("Run 'skyanki auth login' or any command that calls Skyeng to log in\n")
	}
}

// AuthLogout deletes the stored token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	username := r.conf().Skyeng.Username
	if username == "" {
		return fmt.Errorf("%w: skyeng.username is not set", shared.ErrMissingCredentials)
	}
	if err := r.openStore(); err != nil {
		return err
	}
	if err := r.tokens.Delete(username); err != nil {
		return err
	}

	r.logger.Info("token deleted", "login", shared.RedactLogin(username))
	return r.writePlain("✓ Logged out\n")
}
