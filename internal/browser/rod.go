package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type rodSession struct {
	launch  *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
	opts    Options
}

func openRod(ctx context.Context, opts Options) (Session, error) {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(true).
		Leakless(false)
	if path := chromePath(opts); path != "" {
		l = l.Bin(path)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, unavailable("chromium", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, unavailable("chromium", err)
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err == nil {
		err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent})
	}
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, unavailable("chromium", err)
	}

	return &rodSession{launch: l, browser: b, page: page, opts: opts}, nil
}

// with binds the page to the caller's context bounded by the action
// timeout.
func (s *rodSession) with(ctx context.Context) (*rod.Page, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(ctx, s.opts.ActionTimeout)
	return s.page.Context(tctx), cancel
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p, cancel := s.with(ctx)
	defer cancel()
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return p.WaitLoad()
}

func (s *rodSession) FindElement(ctx context.Context, loc Locator) (Element, error) {
	els, err := s.FindElements(ctx, loc)
	return firstMatch(loc, els, err)
}

func (s *rodSession) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	p, cancel := s.with(ctx)
	defer cancel()

	var (
		els rod.Elements
		err error
	)
	switch loc.Strategy {
	case CSS:
		els, err = p.Elements(loc.Value)
	case XPath:
		els, err = p.ElementsX(loc.Value)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocator, loc)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", loc, err)
	}
	return s.wrap(els), nil
}

func (s *rodSession) wrap(els rod.Elements) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{s: s, el: el})
	}
	return out
}

func (s *rodSession) CurrentURL(ctx context.Context) (string, error) {
	p, cancel := s.with(ctx)
	defer cancel()
	info, err := p.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *rodSession) PageSource(ctx context.Context) (string, error) {
	p, cancel := s.with(ctx)
	defer cancel()
	return p.HTML()
}

func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launch.Kill()
	s.launch.Cleanup()
	return err
}

type rodElement struct {
	s  *rodSession
	el *rod.Element
}

func (e *rodElement) with(ctx context.Context) (*rod.Element, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(ctx, e.s.opts.ActionTimeout)
	return e.el.Context(tctx), cancel
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	el, cancel := e.with(ctx)
	defer cancel()
	return el.Text()
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	el, cancel := e.with(ctx)
	defer cancel()
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) SendKeys(ctx context.Context, text string) error {
	el, cancel := e.with(ctx)
	defer cancel()
	return el.Input(text)
}

func (e *rodElement) Click(ctx context.Context) error {
	el, cancel := e.with(ctx)
	defer cancel()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	return sleep(ctx, e.s.opts.Settle)
}

func (e *rodElement) Submit(ctx context.Context) error {
	el, cancel := e.with(ctx)
	defer cancel()
	_, err := el.Eval(`() => {
		const f = this.tagName === "FORM" ? this : this.form;
		if (!f) throw new Error("not inside a form");
		f.submit();
	}`)
	if err != nil {
		return err
	}
	return sleep(ctx, e.s.opts.Settle)
}

func (e *rodElement) FindElement(ctx context.Context, loc Locator) (Element, error) {
	els, err := e.FindElements(ctx, loc)
	return firstMatch(loc, els, err)
}

func (e *rodElement) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	el, cancel := e.with(ctx)
	defer cancel()

	var (
		els rod.Elements
		err error
	)
	switch loc.Strategy {
	case CSS:
		els, err = el.Elements(loc.Value)
	case XPath:
		els, err = el.ElementsX(loc.Value)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocator, loc)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", loc, err)
	}
	return e.s.wrap(els), nil
}
