package harvest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"linkedin-harvester/internal/browser"
	"linkedin-harvester/internal/credentials"
)

const (
	testUser     = "me@example.com"
	testPassword = "hunter2"
)

// site is a small stand-in for the social network: a login form, a global
// search form on every signed in page, a results page and profile pages.
type site struct {
	*httptest.Server
	results  map[string][]string
	profiles map[string]string

	mu       sync.Mutex
	searches []string
}

func newFixtureSite(t *testing.T) *site {
	s := &site{
		results: map[string][]string{
			"Jane Doe":   {"/in/jane-doe"},
			"John Smith": {},
			"Ada Lovelace": {
				"/in/ada-lovelace-1815",
				"/in/broken",
				"/in/ada-lovelace-1815",
				"",
			},
		},
		profiles: map[string]string{
			"jane-doe": `<div id="top-card"><h1 class="full-name"> Jane Doe </h1></div>`,
			"ada-lovelace-1815": `<div id="top-card">
  <h1 class="full-name">Ada&nbsp;Lovelace</h1>
  <div id="location"><span class="locality">London,
     United Kingdom</span><span class="industry">Mathematics</span></div>
  <table>
    <tr id="overview-summary-current"><td>Analyst at Analytical Engine</td></tr>
    <tr id="overview-summary-education"><td>Home schooled</td></tr>
  </table>
</div>`,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.home)
	mux.HandleFunc("/uas/login", s.login)
	mux.HandleFunc("/vsearch", s.search)
	mux.HandleFunc("/in/", s.profile)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func signedIn(r *http.Request) bool {
	c, err := r.Cookie("li_at")
	return err == nil && c.Value == "ok"
}

func page(w http.ResponseWriter, r *http.Request, body string) {
	header := ""
	if signedIn(r) {
		header = `<form id="global-search" action="/vsearch" method="get">
  <input id="main-search-box" name="keywords" type="text">
  <button class="search-button" type="submit">Search</button>
</form>`
	}
	fmt.Fprintf(w, "<html><body>%s\n%s</body></html>", header, body)
}

func (s *site) home(w http.ResponseWriter, r *http.Request) {
	if signedIn(r) {
		page(w, r, "<p>feed</p>")
		return
	}
	page(w, r, `<form class="login-form" action="/uas/login" method="POST">
  <input id="login-email" name="session_key" type="text">
  <input id="login-password" name="session_password" type="password">
  <input name="submit" type="submit" value="Sign In">
</form>`)
}

func (s *site) login(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("session_key") == testUser && r.FormValue("session_password") == testPassword {
		http.SetCookie(w, &http.Cookie{Name: "li_at", Value: "ok", Path: "/"})
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *site) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("keywords")
	s.mu.Lock()
	s.searches = append(s.searches, q)
	s.mu.Unlock()

	links, ok := s.results[q]
	if !signedIn(r) || !ok {
		page(w, r, "<p>Sign in to search</p>")
		return
	}
	var b strings.Builder
	b.WriteString(`<div id="results-container"><ol>`)
	for _, href := range links {
		fmt.Fprintf(&b, `<li><a class="title main-headline" href="%s">%s</a><a class="other" href="/company/x">co</a></li>`,
			html.EscapeString(href), html.EscapeString(q))
	}
	b.WriteString(`</ol></div>`)
	page(w, r, b.String())
}

func (s *site) profile(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimPrefix(r.URL.Path, "/in/")
	body, ok := s.profiles[slug]
	if !ok {
		page(w, r, "<p>This profile is not available</p>")
		return
	}
	page(w, r, body)
}

func (s *site) searched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.searches...)
}

func (s *site) Site() Site {
	st := DefaultSite()
	st.BaseURL = s.URL
	return st
}

type memCredentials map[string]string

func (m memCredentials) Get(username string) (string, error) {
	if v, ok := m[username]; ok {
		return v, nil
	}
	return "", credentials.ErrNoStoredCredential
}

func (m memCredentials) Set(username, secret string) error {
	m[username] = secret
	return nil
}

func httpOptions() browser.Options {
	opts := browser.DefaultOptions()
	opts.Settle = 0
	return opts
}
