package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSite(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<form class="login-form" method="post" action="/login">
  <input id="login-email" name="session_key" type="text">
  <input id="login-password" name="session_password" type="password">
  <input type="checkbox" name="remember" value="yes">
  <input name="submit" type="submit" value="Sign In">
</form></body></html>`)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.FormValue("session_key") != "me@example.com" ||
			r.FormValue("session_password") != "secret" || r.FormValue("submit") != "Sign In" ||
			r.FormValue("remember") != "" {
			http.Error(w, "bad login", http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "li_at", Value: "token", Path: "/"})
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("li_at"); err != nil {
			http.Error(w, "not signed in", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `<html><body>
<form id="global-search" action="/search"><input id="main-search-box" name="keywords" value="">
<button class="search-button">Search</button></form></body></html>`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><h1>%s</h1><ol id="results">
<li><a class="title main-headline" href="/in/jane">Jane</a></li>
<li><a class="title main-headline" href="https://example.org/in/john">John</a></li>
<li><a class="other" href="/company/acme">Acme</a></li>
</ol></body></html>`, r.URL.Query().Get("keywords"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func openTestSession(t *testing.T) Session {
	s, err := Open(context.Background(), "HTTP", DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStaticLoginAndSearch(t *testing.T) {
	ctx := context.Background()
	srv := newSite(t)
	s := openTestSession(t)

	require.NoError(t, s.Navigate(ctx, srv.URL))

	user, err := s.FindElement(ctx, ByID("login-email"))
	require.NoError(t, err)
	pass, err := s.FindElement(ctx, ByID("login-password"))
	require.NoError(t, err)
	require.NoError(t, user.SendKeys(ctx, "me@"))
	require.NoError(t, user.SendKeys(ctx, "example.com"))
	require.NoError(t, pass.SendKeys(ctx, "secret"))

	value, ok, err := user.Attribute(ctx, "value")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "me@example.com", value)

	submit, err := s.FindElement(ctx, ByXPath(`//form[@class="login-form"]/input[@name="submit"]`))
	require.NoError(t, err)
	require.NoError(t, submit.Click(ctx))

	current, err := s.CurrentURL(ctx)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/home", current)

	box, err := s.FindElement(ctx, ByID("main-search-box"))
	require.NoError(t, err)
	require.NoError(t, box.SendKeys(ctx, "Jane Doe"))
	require.NoError(t, box.Submit(ctx))

	heading, err := s.FindElement(ctx, ByCSS("h1"))
	require.NoError(t, err)
	text, err := heading.Text(ctx)
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", text)

	results, err := s.FindElement(ctx, ByID("results"))
	require.NoError(t, err)
	links, err := results.FindElements(ctx, ByClass("title main-headline"))
	require.NoError(t, err)
	require.Len(t, links, 2)

	var hrefs []string
	for _, l := range links {
		href, ok, err := l.Attribute(ctx, "href")
		require.NoError(t, err)
		require.True(t, ok)
		hrefs = append(hrefs, href)
	}
	require.Equal(t, []string{"/in/jane", "https://example.org/in/john"}, hrefs)

	_, ok, err = links[0].Attribute(ctx, "data-missing")
	require.NoError(t, err)
	require.False(t, ok)

	src, err := s.PageSource(ctx)
	require.NoError(t, err)
	require.Contains(t, src, "main-headline")
}

func TestStaticNotFoundAndStale(t *testing.T) {
	ctx := context.Background()
	srv := newSite(t)
	s := openTestSession(t)

	require.NoError(t, s.Navigate(ctx, srv.URL+"/search?keywords=x"))

	_, err := s.FindElement(ctx, ByCSS("#nothing-here"))
	require.ErrorIs(t, err, ErrNotFound)

	none, err := s.FindElements(ctx, ByXPath("//table"))
	require.NoError(t, err)
	require.Empty(t, none)

	link, err := s.FindElement(ctx, ByCSS("a.other"))
	require.NoError(t, err)
	require.NoError(t, link.Click(ctx))

	// the company page is not routed, so the mux answers from "/"
	_, err = link.Text(ctx)
	require.ErrorIs(t, err, ErrStaleElement)

	_, err = s.FindElement(ctx, ByXPath("//*[@id"))
	require.ErrorIs(t, err, ErrUnsupportedLocator)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestStaticInvalidCSSIsNotNotFound(t *testing.T) {
	ctx := context.Background()
	srv := newSite(t)
	s := openTestSession(t)
	require.NoError(t, s.Navigate(ctx, srv.URL+"/search?keywords=x"))

	_, err := s.FindElement(ctx, ByCSS("#results a["))
	require.ErrorIs(t, err, ErrUnsupportedLocator)
	require.NotErrorIs(t, err, ErrNotFound)

	results, err := s.FindElement(ctx, ByID("results"))
	require.NoError(t, err)
	_, err = results.FindElements(ctx, ByCSS("a[href"))
	require.ErrorIs(t, err, ErrUnsupportedLocator)

	links, err := results.FindElements(ctx, ByCSS("a.main-headline"))
	require.NoError(t, err)
	require.Len(t, links, 2)
}

func TestStaticErrorPageStillLoads(t *testing.T) {
	ctx := context.Background()
	srv := newSite(t)
	s := openTestSession(t)

	require.NoError(t, s.Navigate(ctx, srv.URL+"/home"))
	_, err := s.FindElement(ctx, ByID("main-search-box"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOpenUnsupportedBackend(t *testing.T) {
	_, err := Open(context.Background(), "netscape", DefaultOptions())
	require.ErrorIs(t, err, ErrUnsupportedBackend)
}

func TestRemoteWithoutURL(t *testing.T) {
	_, err := Open(context.Background(), "remote", DefaultOptions())
	require.ErrorIs(t, err, ErrBrowserUnavailable)
}

func TestClosedSession(t *testing.T) {
	s, err := Open(context.Background(), "http", DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = s.CurrentURL(context.Background())
	require.Error(t, err)
}
