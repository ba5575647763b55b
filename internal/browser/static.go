package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
)

var errSessionClosed = errors.New("session closed")

// httpSession drives a site over plain HTTP without running scripts. Typed
// text is kept per input node and sent when the enclosing form is
// submitted, the way a browser would.
type httpSession struct {
	client *resty.Client
	url    *url.URL
	doc    *html.Node
	gen    int
	typed  map[*html.Node]string
	closed bool
}

func openHTTP(ctx context.Context, opts Options) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, unavailable("http", err)
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(opts.ActionTimeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.SetHeader("User-Agent", opts.UserAgent)
	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		slog.Debug("http backend request", "method", req.Method, "url", req.URL)
		return nil
	})

	blank, _ := url.Parse("about:blank")
	return &httpSession{
		client: client,
		url:    blank,
		typed:  map[*html.Node]string{},
	}, nil
}

func (s *httpSession) Navigate(ctx context.Context, raw string) error {
	if s.closed {
		return errSessionClosed
	}
	target, err := s.resolve(raw)
	if err != nil {
		return err
	}
	res, err := s.client.R().SetContext(ctx).Get(target.String())
	if err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	return s.load(res)
}

func (s *httpSession) resolve(raw string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if ref.IsAbs() || s.url == nil || s.url.Scheme == "about" {
		return ref, nil
	}
	return s.url.ResolveReference(ref), nil
}

// load replaces the current page. Error statuses still render a page, as
// they would in a real browser.
func (s *httpSession) load(res *resty.Response) error {
	doc, err := html.Parse(bytes.NewReader(res.Body()))
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		s.url = res.RawResponse.Request.URL
	}
	s.doc = doc
	s.gen++
	s.typed = map[*html.Node]string{}
	return nil
}

func (s *httpSession) FindElement(ctx context.Context, loc Locator) (Element, error) {
	if s.closed {
		return nil, errSessionClosed
	}
	return s.first(s.doc, loc)
}

func (s *httpSession) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	if s.closed {
		return nil, errSessionClosed
	}
	return s.all(s.doc, loc)
}

func (s *httpSession) CurrentURL(ctx context.Context) (string, error) {
	if s.closed {
		return "", errSessionClosed
	}
	return s.url.String(), nil
}

func (s *httpSession) PageSource(ctx context.Context) (string, error) {
	if s.closed {
		return "", errSessionClosed
	}
	if s.doc == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, s.doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *httpSession) Close() error {
	s.closed = true
	s.doc = nil
	s.typed = nil
	return nil
}

func (s *httpSession) query(root *html.Node, loc Locator) ([]*html.Node, error) {
	if root == nil {
		return nil, nil
	}
	switch loc.Strategy {
	case CSS:
		// goquery's Find treats a selector that does not compile as matching nothing
		sel, err := cascadia.Compile(loc.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedLocator, loc, err)
		}
		return goquery.NewDocumentFromNode(root).FindMatcher(sel).Nodes, nil
	case XPath:
		nodes, err := htmlquery.QueryAll(root, loc.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedLocator, loc, err)
		}
		return nodes, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocator, loc)
}

func (s *httpSession) first(root *html.Node, loc Locator) (Element, error) {
	nodes, err := s.query(root, loc)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return &httpElement{s: s, node: nodes[0], gen: s.gen}, nil
}

func (s *httpSession) all(root *html.Node, loc Locator) ([]Element, error) {
	nodes, err := s.query(root, loc)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &httpElement{s: s, node: n, gen: s.gen})
	}
	return out, nil
}

func (s *httpSession) valueOf(n *html.Node) string {
	if v, ok := s.typed[n]; ok {
		return v
	}
	if n.Data == "textarea" {
		return htmlquery.InnerText(n)
	}
	return htmlquery.SelectAttr(n, "value")
}

func (s *httpSession) submitForm(ctx context.Context, form, submitter *html.Node) error {
	values := url.Values{}
	walk(form, func(n *html.Node) {
		name := htmlquery.SelectAttr(n, "name")
		if name == "" || htmlquery.ExistsAttr(n, "disabled") {
			return
		}
		switch n.Data {
		case "input":
			typ := strings.ToLower(htmlquery.SelectAttr(n, "type"))
			switch typ {
			case "submit", "image", "button", "reset":
				if n == submitter && typ != "reset" && typ != "button" {
					values.Add(name, htmlquery.SelectAttr(n, "value"))
				}
				return
			case "checkbox", "radio":
				if !htmlquery.ExistsAttr(n, "checked") {
					return
				}
				v := htmlquery.SelectAttr(n, "value")
				if v == "" {
					v = "on"
				}
				values.Add(name, v)
				return
			case "file":
				return
			}
			values.Add(name, s.valueOf(n))
		case "textarea":
			values.Add(name, s.valueOf(n))
		case "select":
			values.Add(name, selectedOption(n))
		case "button":
			if n == submitter {
				values.Add(name, htmlquery.SelectAttr(n, "value"))
			}
		}
	})

	action, err := s.resolve(htmlquery.SelectAttr(form, "action"))
	if err != nil {
		return err
	}
	if htmlquery.SelectAttr(form, "action") == "" {
		action = s.url
	}

	var res *resty.Response
	if strings.EqualFold(htmlquery.SelectAttr(form, "method"), "post") {
		res, err = s.client.R().SetContext(ctx).SetFormDataFromValues(values).Post(action.String())
	} else {
		u := *action
		u.RawQuery = values.Encode()
		res, err = s.client.R().SetContext(ctx).Get(u.String())
	}
	if err != nil {
		return fmt.Errorf("submit form to %s: %w", action, err)
	}
	return s.load(res)
}

type httpElement struct {
	s    *httpSession
	node *html.Node
	gen  int
}

func (e *httpElement) check() error {
	if e.s.closed {
		return errSessionClosed
	}
	if e.gen != e.s.gen {
		return ErrStaleElement
	}
	return nil
}

func (e *httpElement) Text(ctx context.Context) (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return htmlquery.InnerText(e.node), nil
}

func (e *httpElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := e.check(); err != nil {
		return "", false, err
	}
	if name == "value" {
		if v, ok := e.s.typed[e.node]; ok {
			return v, true, nil
		}
	}
	if !htmlquery.ExistsAttr(e.node, name) {
		return "", false, nil
	}
	return htmlquery.SelectAttr(e.node, name), true, nil
}

func (e *httpElement) SendKeys(ctx context.Context, text string) error {
	if err := e.check(); err != nil {
		return err
	}
	if e.node.Data != "input" && e.node.Data != "textarea" {
		return fmt.Errorf("send keys: <%s> is not editable", e.node.Data)
	}
	e.s.typed[e.node] = e.s.valueOf(e.node) + text
	return nil
}

// Click follows links and submits forms through their submit controls.
// Clicking anything else has no effect without scripts.
func (e *httpElement) Click(ctx context.Context) error {
	if err := e.check(); err != nil {
		return err
	}
	n := e.node
	switch n.Data {
	case "a":
		if href, ok := attr(n, "href"); ok {
			return e.s.Navigate(ctx, href)
		}
	case "input":
		typ := strings.ToLower(htmlquery.SelectAttr(n, "type"))
		if typ == "submit" || typ == "image" {
			if form := enclosingForm(n); form != nil {
				return e.s.submitForm(ctx, form, n)
			}
		}
	case "button":
		typ := strings.ToLower(htmlquery.SelectAttr(n, "type"))
		if typ == "" || typ == "submit" {
			if form := enclosingForm(n); form != nil {
				return e.s.submitForm(ctx, form, n)
			}
		}
	}
	return nil
}

func (e *httpElement) Submit(ctx context.Context) error {
	if err := e.check(); err != nil {
		return err
	}
	form := enclosingForm(e.node)
	if form == nil {
		return fmt.Errorf("submit: <%s> is not inside a form", e.node.Data)
	}
	return e.s.submitForm(ctx, form, nil)
}

func (e *httpElement) FindElement(ctx context.Context, loc Locator) (Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.s.first(e.node, loc)
}

func (e *httpElement) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.s.all(e.node, loc)
}

func attr(n *html.Node, name string) (string, bool) {
	if !htmlquery.ExistsAttr(n, name) {
		return "", false
	}
	return htmlquery.SelectAttr(n, name), true
}

func enclosingForm(n *html.Node) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "form" {
			return p
		}
	}
	return nil
}

func selectedOption(sel *html.Node) string {
	var first, chosen *html.Node
	walk(sel, func(n *html.Node) {
		if n.Data != "option" {
			return
		}
		if first == nil {
			first = n
		}
		if chosen == nil && htmlquery.ExistsAttr(n, "selected") {
			chosen = n
		}
	})
	if chosen == nil {
		chosen = first
	}
	if chosen == nil {
		return ""
	}
	if v, ok := attr(chosen, "value"); ok {
		return v
	}
	return strings.TrimSpace(htmlquery.InnerText(chosen))
}

func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			fn(c)
		}
		walk(c, fn)
	}
}
