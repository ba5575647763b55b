package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"linkedin-harvester/internal/browser"
	"linkedin-harvester/internal/credentials"
)

var ErrLoginFieldsNotFound = errors.New("login form not found")

type Opener func(ctx context.Context, backend string, opts browser.Options) (browser.Session, error)

// WithSession opens a browser session, hands it to fn and closes it on
// every way out of fn, panics included.
func WithSession(ctx context.Context, open Opener, backend string, opts browser.Options, fn func(browser.Session) error) error {
	if open == nil {
		open = browser.Open
	}
	sess, err := open(ctx, backend, opts)
	if err != nil {
		return err
	}
	slog.Debug("browser session opened", "backend", backend)
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("closing browser session", "backend", backend, "err", err)
		}
		slog.Debug("browser session closed", "backend", backend)
	}()
	return fn(sess)
}

// Login fills the login form on the current page and submits it. The secret
// is fetched before the page is touched. Whether the login worked is not
// checked here; a bad session shows up as failed searches.
func Login(ctx context.Context, sess browser.Session, creds credentials.Source, loc LoginLocators, username string) error {
	secret, err := creds.Get(username)
	if err != nil {
		return err
	}

	find := func(what string, l browser.Locator) (browser.Element, error) {
		el, err := sess.FindElement(ctx, l)
		if errors.Is(err, browser.ErrNotFound) {
			return nil, fmt.Errorf("%w: no %s field (%s)", ErrLoginFieldsNotFound, what, l)
		}
		return el, err
	}
	userField, err := find("username", loc.Username)
	if err != nil {
		return err
	}
	passField, err := find("password", loc.Password)
	if err != nil {
		return err
	}
	submit, err := find("submit", loc.Submit)
	if err != nil {
		return err
	}

	if err := userField.SendKeys(ctx, username); err != nil {
		return fmt.Errorf("type username: %w", err)
	}
	if err := passField.SendKeys(ctx, secret); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	if err := submit.Click(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("login click failed, submitting the form instead", "err", err)
		if err := passField.Submit(ctx); err != nil {
			return fmt.Errorf("submit login form: %w", err)
		}
	}
	slog.Info("login submitted", "username", username)
	return nil
}
