package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"linkedin-harvester/internal/browser"
	"linkedin-harvester/internal/credentials"
	"linkedin-harvester/internal/output"
	"linkedin-harvester/internal/schema"
)

var errNoOverview = errors.New("profile overview not found")

// Crawler runs the search, collect, extract and persist cycle for each name
// on one logged in session. Only a cancelled context, a failed login or a
// failed write stops it; anything else costs at most the name, link or
// field it happened on.
type Crawler struct {
	Site        Site
	Credentials credentials.Source
	DumpDir     string
	// OnResult sees every name's result as soon as it is final.
	OnResult func(QueryResult)
	RunID    string

	unsupported map[string]bool
}

// RunCrawl logs in on sess and crawls queries in order, appending each
// name's records to outfile, which must already hold the header.
func (c *Crawler) RunCrawl(ctx context.Context, sess browser.Session, username string, queries []string, outfile string, s schema.Schema) (Summary, error) {
	s = s.Normalize()
	sum := Summary{RunID: c.RunID, StartedAt: time.Now()}
	if sum.RunID == "" {
		sum.RunID = uuid.NewString()
	}

	if err := s.Validate(); err != nil {
		return c.finish(sum), err
	}

	if c.Site.BaseURL != "" {
		if err := sess.Navigate(ctx, c.Site.BaseURL); err != nil {
			return c.finish(sum), fmt.Errorf("open %s: %w", c.Site.BaseURL, err)
		}
	}
	if err := Login(ctx, sess, c.Credentials, c.Site.Login, username); err != nil {
		return c.finish(sum), err
	}

	for i, q := range queries {
		slog.Info("searching", "query", q, "n", i+1, "of", len(queries))
		res, err := c.crawlQuery(ctx, sess, q, outfile, s)
		c.state(q, StateIdle)
		if err != nil {
			res.Err = err
			c.report(res)
			return c.finish(sum), err
		}
		sum.Results = append(sum.Results, res)
		sum.Records += res.Records
		c.report(res)
	}
	return c.finish(sum), ctx.Err()
}

func (c *Crawler) report(res QueryResult) {
	if c.OnResult != nil {
		c.OnResult(res)
	}
}

func (c *Crawler) finish(sum Summary) Summary {
	sum.FinishedAt = time.Now()
	return sum
}

func (c *Crawler) state(query string, s State) {
	slog.Debug("crawl state", "query", query, "state", s.String())
}

func (c *Crawler) skip(res QueryResult, err error) QueryResult {
	res.Skipped = true
	res.Note = err.Error()
	slog.Warn("skipping name", "query", res.Query, "state", res.Reached.String(), "err", err)
	return res
}

// crawlQuery returns an error only when the whole crawl has to stop.
func (c *Crawler) crawlQuery(ctx context.Context, sess browser.Session, query, outfile string, s schema.Schema) (QueryResult, error) {
	res := QueryResult{Query: query, Reached: StateSearching}
	c.state(query, StateSearching)
	if err := c.search(ctx, sess, query); err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return c.skip(res, err), nil
	}

	res.Reached = StateCollecting
	c.state(query, StateCollecting)
	links, err := c.collectLinks(ctx, sess)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return c.skip(res, err), nil
	}
	res.Links = len(links)
	slog.Info("profiles found", "query", query, "links", len(links))

	res.Reached = StateExtracting
	c.state(query, StateExtracting)
	batch := make([]schema.Record, 0, len(links))
	for _, link := range links {
		rec, err := c.extractProfile(ctx, sess, query, link, s)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.SkippedLinks++
			slog.Warn("skipping profile", "query", query, "url", link, "err", err)
			continue
		}
		batch = append(batch, rec)
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	res.Reached = StatePersisting
	c.state(query, StatePersisting)
	if err := output.AppendBatch(outfile, s, batch); err != nil {
		return res, fmt.Errorf("save results for %q: %w", query, err)
	}
	res.Records = len(batch)
	if res.SkippedLinks > 0 {
		res.Note = fmt.Sprintf("%d profile(s) skipped", res.SkippedLinks)
	}
	slog.Info("results saved", "query", query, "records", len(batch))
	return res, nil
}

func (c *Crawler) search(ctx context.Context, sess browser.Session, query string) error {
	if c.Site.SearchPage != "" {
		if err := sess.Navigate(ctx, c.Site.SearchPage); err != nil {
			return err
		}
	}
	input, err := sess.FindElement(ctx, c.Site.Search.Input)
	if err != nil {
		return fmt.Errorf("search box: %w", err)
	}
	button, err := sess.FindElement(ctx, c.Site.Search.Button)
	if err != nil {
		return fmt.Errorf("search button: %w", err)
	}
	if err := input.SendKeys(ctx, query); err != nil {
		return fmt.Errorf("type query: %w", err)
	}
	if err := button.Click(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("search click failed, submitting the form instead", "query", query, "err", err)
		if err := input.Submit(ctx); err != nil {
			return fmt.Errorf("submit search: %w", err)
		}
	}
	return nil
}

// collectLinks reads every profile href on the results page before anything
// navigates away from it. Order and duplicates are kept.
func (c *Crawler) collectLinks(ctx context.Context, sess browser.Session) ([]string, error) {
	container, err := sess.FindElement(ctx, c.Site.Search.Results)
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	anchors, err := container.FindElements(ctx, c.Site.Search.ProfileLink)
	if err != nil {
		return nil, fmt.Errorf("profile links: %w", err)
	}
	base, err := sess.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}

	links := make([]string, 0, len(anchors))
	for _, a := range anchors {
		href, ok, err := a.Attribute(ctx, "href")
		if err != nil {
			slog.Debug("reading profile link", "err", err)
			continue
		}
		if !ok || strings.TrimSpace(href) == "" {
			continue
		}
		links = append(links, absoluteURL(base, href))
	}
	return links, nil
}

func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return href
	}
	return b.ResolveReference(ref).String()
}

func (c *Crawler) extractProfile(ctx context.Context, sess browser.Session, query, link string, s schema.Schema) (schema.Record, error) {
	if err := sess.Navigate(ctx, link); err != nil {
		return nil, err
	}
	overview, err := sess.FindElement(ctx, c.Site.Profile.Overview)
	if err != nil {
		slog.Warn("profile has no overview section", "url", link)
		c.dump(ctx, sess, link)
		return nil, fmt.Errorf("%w: %v", errNoOverview, err)
	}
	rec, err := extract(ctx, overview, s, Origin{URL: link, Query: query}, c.warnUnsupported)
	if err != nil {
		return nil, err
	}
	slog.Debug("profile extracted", "url", link, "fields", len(rec))
	return rec, nil
}

// warnUnsupported reports a field locator the backend cannot evaluate below
// an element, once per field and crawl.
func (c *Crawler) warnUnsupported(f schema.Field, err error) {
	if c.unsupported[f.Name] {
		return
	}
	if c.unsupported == nil {
		c.unsupported = map[string]bool{}
	}
	c.unsupported[f.Name] = true
	slog.Warn("field locator not supported by this backend, using the default", "field", f.Name, "locator", f.Locator.String(), "err", err)
}

func (c *Crawler) dump(ctx context.Context, sess browser.Session, link string) {
	if c.DumpDir == "" {
		return
	}
	src, err := sess.PageSource(ctx)
	if err == nil {
		err = os.MkdirAll(c.DumpDir, 0o755)
	}
	path := filepath.Join(c.DumpDir, dumpName(link))
	if err == nil {
		err = os.WriteFile(path, []byte(src), 0o644)
	}
	if err != nil {
		slog.Warn("dumping page failed", "url", link, "err", err)
		return
	}
	slog.Info("page dumped", "url", link, "path", path)
}
