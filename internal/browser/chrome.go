package browser

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// cdpSession is a chromedp tab. Every call runs on the tab context with the
// action timeout applied and is aborted early when the caller's context is
// done.
type cdpSession struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
}

func chromePath(opts Options) string {
	if opts.ExecPath != "" {
		return opts.ExecPath
	}
	return os.Getenv("CHROME_PATH")
}

func openChrome(ctx context.Context, opts Options) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if path := chromePath(opts); path != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(path))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	return startTab(allocCtx, allocCancel, "chrome", opts)
}

// openRemote attaches to an already running browser through its DevTools
// endpoint, e.g. ws://127.0.0.1:9222.
func openRemote(ctx context.Context, opts Options) (Session, error) {
	if opts.RemoteURL == "" {
		return nil, unavailable("remote", errors.New("no remote url configured"))
	}
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	return startTab(allocCtx, allocCancel, "remote", opts)
}

func startTab(allocCtx context.Context, allocCancel context.CancelFunc, name string, opts Options) (Session, error) {
	bctx, bcancel := chromedp.NewContext(allocCtx)
	s := &cdpSession{
		name: name,
		ctx:  bctx,
		cancel: func() {
			bcancel()
			allocCancel()
		},
		opts: opts,
	}
	// the first Run starts the browser process
	if err := chromedp.Run(bctx, chromedp.Navigate("about:blank")); err != nil {
		s.cancel()
		return nil, unavailable(name, err)
	}
	return s, nil
}

func (s *cdpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.ctx, s.opts.ActionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

func (s *cdpSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *cdpSession) nodes(ctx context.Context, from *cdp.Node, loc Locator) ([]*cdp.Node, error) {
	opts := []chromedp.QueryOption{chromedp.AtLeast(0)}
	switch loc.Strategy {
	case CSS:
		opts = append(opts, chromedp.ByQueryAll)
		if from != nil {
			opts = append(opts, chromedp.FromNode(from))
		}
	case XPath:
		// DOM.performSearch always searches the whole document
		if from != nil {
			return nil, fmt.Errorf("%w: %s below an element on %s", ErrUnsupportedLocator, loc, s.name)
		}
		opts = append(opts, chromedp.BySearch)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocator, loc)
	}

	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(loc.Value, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("query %s: %w", loc, err)
	}
	return nodes, nil
}

func (s *cdpSession) first(ctx context.Context, from *cdp.Node, loc Locator) (Element, error) {
	nodes, err := s.nodes(ctx, from, loc)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return &cdpElement{s: s, node: nodes[0]}, nil
}

func (s *cdpSession) all(ctx context.Context, from *cdp.Node, loc Locator) ([]Element, error) {
	nodes, err := s.nodes(ctx, from, loc)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &cdpElement{s: s, node: n})
	}
	return out, nil
}

func (s *cdpSession) FindElement(ctx context.Context, loc Locator) (Element, error) {
	return s.first(ctx, nil, loc)
}

func (s *cdpSession) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	return s.all(ctx, nil, loc)
}

func (s *cdpSession) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := s.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (s *cdpSession) PageSource(ctx context.Context) (string, error) {
	var src string
	if err := s.run(ctx, chromedp.OuterHTML("html", &src, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return src, nil
}

func (s *cdpSession) Close() error {
	s.cancel()
	return nil
}

type cdpElement struct {
	s    *cdpSession
	node *cdp.Node
}

func (e *cdpElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *cdpElement) Text(ctx context.Context) (string, error) {
	var txt string
	if err := e.s.run(ctx, chromedp.Text(e.ids(), &txt, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return txt, nil
}

func (e *cdpElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	if err := e.s.run(ctx, chromedp.AttributeValue(e.ids(), name, &v, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, err
	}
	return v, ok, nil
}

func (e *cdpElement) SendKeys(ctx context.Context, text string) error {
	return e.s.run(ctx, chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID))
}

func (e *cdpElement) Click(ctx context.Context) error {
	if err := e.s.run(ctx, chromedp.Click(e.ids(), chromedp.ByNodeID)); err != nil {
		return err
	}
	return sleep(ctx, e.s.opts.Settle)
}

func (e *cdpElement) Submit(ctx context.Context) error {
	if err := e.s.run(ctx, chromedp.Submit(e.ids(), chromedp.ByNodeID)); err != nil {
		return err
	}
	return sleep(ctx, e.s.opts.Settle)
}

func (e *cdpElement) FindElement(ctx context.Context, loc Locator) (Element, error) {
	return e.s.first(ctx, e.node, loc)
}

func (e *cdpElement) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	return e.s.all(ctx, e.node, loc)
}
