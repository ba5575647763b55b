package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// pwSession drives Firefox through Playwright. Playwright calls are not
// context aware, so the caller's context is checked before each call and
// the action timeout is installed as the page default.
type pwSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	opts    Options
}

func openFirefox(ctx context.Context, opts Options) (Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, unavailable("firefox", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(opts.Headless)}
	if opts.ExecPath != "" {
		launch.ExecutablePath = playwright.String(opts.ExecPath)
	}
	b, err := pw.Firefox.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, unavailable("firefox", err)
	}

	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{UserAgent: playwright.String(opts.UserAgent)})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, unavailable("firefox", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, unavailable("firefox", err)
	}
	page.SetDefaultTimeout(float64(opts.ActionTimeout.Milliseconds()))

	return &pwSession{pw: pw, browser: b, page: page, opts: opts}, nil
}

func (s *pwSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Goto(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func selectorFor(loc Locator) (string, error) {
	switch loc.Strategy {
	case CSS:
		return "css=" + loc.Value, nil
	case XPath:
		return "xpath=" + loc.Value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedLocator, loc)
}

func (s *pwSession) FindElement(ctx context.Context, loc Locator) (Element, error) {
	els, err := s.FindElements(ctx, loc)
	return firstMatch(loc, els, err)
}

func (s *pwSession) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := selectorFor(loc)
	if err != nil {
		return nil, err
	}
	handles, err := s.page.QuerySelectorAll(sel)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", loc, err)
	}
	return s.wrap(handles), nil
}

func (s *pwSession) wrap(handles []playwright.ElementHandle) []Element {
	out := make([]Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &pwElement{s: s, h: h})
	}
	return out
}

func (s *pwSession) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

func (s *pwSession) PageSource(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Content()
}

func (s *pwSession) Close() error {
	err := s.browser.Close()
	if stopErr := s.pw.Stop(); err == nil {
		err = stopErr
	}
	return err
}

type pwElement struct {
	s *pwSession
	h playwright.ElementHandle
}

func (e *pwElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.h.InnerText()
}

func (e *pwElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	// GetAttribute cannot tell an empty attribute from a missing one
	v, err := e.h.Evaluate(`(el, name) => el.getAttribute(name)`, name)
	if err != nil {
		return "", false, err
	}
	str, ok := v.(string)
	return str, ok, nil
}

func (e *pwElement) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.h.Type(text)
}

func (e *pwElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.h.Click(); err != nil {
		return err
	}
	return sleep(ctx, e.s.opts.Settle)
}

func (e *pwElement) Submit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := e.h.Evaluate(`el => {
		const f = el.tagName === "FORM" ? el : el.form;
		if (!f) throw new Error("not inside a form");
		f.submit();
	}`)
	if err != nil {
		return err
	}
	return sleep(ctx, e.s.opts.Settle)
}

func (e *pwElement) FindElement(ctx context.Context, loc Locator) (Element, error) {
	els, err := e.FindElements(ctx, loc)
	return firstMatch(loc, els, err)
}

func (e *pwElement) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := selectorFor(loc)
	if err != nil {
		return nil, err
	}
	handles, err := e.h.QuerySelectorAll(sel)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", loc, err)
	}
	return e.s.wrap(handles), nil
}
