package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrUnsupportedBackend = errors.New("unsupported browser backend")
	ErrBrowserUnavailable = errors.New("browser unavailable")
	ErrNotFound           = errors.New("element not found")
	ErrStaleElement       = errors.New("element is no longer attached to the page")
	ErrUnsupportedLocator = errors.New("locator not supported here")
)

// Element is a handle on one node of the page that was current when it was
// found. Navigating the session invalidates it.
type Element interface {
	Text(ctx context.Context) (string, error)
	// Attribute reports ok=false when the attribute is not present.
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
	SendKeys(ctx context.Context, text string) error
	Click(ctx context.Context) error
	Submit(ctx context.Context) error
	FindElement(ctx context.Context, loc Locator) (Element, error)
	FindElements(ctx context.Context, loc Locator) ([]Element, error)
}

// Session is one browser connection. Lookups never wait: a missing element
// is reported as ErrNotFound straight away.
type Session interface {
	Navigate(ctx context.Context, url string) error
	FindElement(ctx context.Context, loc Locator) (Element, error)
	FindElements(ctx context.Context, loc Locator) ([]Element, error)
	CurrentURL(ctx context.Context) (string, error)
	PageSource(ctx context.Context) (string, error)
	Close() error
}

type Options struct {
	Headless bool
	// ExecPath overrides the browser executable. The Chromium based
	// backends fall back to CHROME_PATH when empty.
	ExecPath  string
	RemoteURL string
	UserAgent string
	// Settle is the fixed pause after a click or submit so the navigation
	// it triggers can begin.
	Settle        time.Duration
	ActionTimeout time.Duration
}

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0 Safari/537.36"

func DefaultOptions() Options {
	return Options{
		Headless:      true,
		UserAgent:     DefaultUserAgent,
		Settle:        400 * time.Millisecond,
		ActionTimeout: 30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = d.ActionTimeout
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	return o
}

type Constructor func(ctx context.Context, opts Options) (Session, error)

var backends = map[string]Constructor{}

// Register makes a backend available to Open under name.
func Register(name string, ctor Constructor) {
	backends[strings.ToLower(name)] = ctor
}

func init() {
	Register("chrome", openChrome)
	// PhantomJS is gone; headless Chrome took its place.
	Register("phantomjs", func(ctx context.Context, opts Options) (Session, error) {
		opts.Headless = true
		return openChrome(ctx, opts)
	})
	Register("remote", openRemote)
	Register("chromium", openRod)
	Register("firefox", openFirefox)
	Register("http", openHTTP)
}

func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open starts a session on the named backend. If the backend cannot start,
// anything it allocated is released before the error is returned.
func Open(ctx context.Context, backend string, opts Options) (Session, error) {
	ctor, ok := backends[strings.ToLower(strings.TrimSpace(backend))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (use one of %s)", ErrUnsupportedBackend, backend, strings.Join(Backends(), ", "))
	}
	return ctor(ctx, opts.withDefaults())
}

func firstMatch(loc Locator, els []Element, err error) (Element, error) {
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return els[0], nil
}

func unavailable(backend string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBrowserUnavailable, backend, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
