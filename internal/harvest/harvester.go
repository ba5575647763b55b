package harvest

import (
	"context"

	"linkedin-harvester/internal/browser"
	"linkedin-harvester/internal/output"
	"linkedin-harvester/internal/schema"
)

// Harvester is the full crawl command: read the names, write the header,
// check the credential, then run the crawl on a fresh browser session.
type Harvester struct {
	Crawler Crawler
	Backend string
	Browser browser.Options
	BOM     bool
	// Open defaults to browser.Open.
	Open Opener
}

func (h *Harvester) Crawl(ctx context.Context, username, infile, outfile string, s schema.Schema) (Summary, error) {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return Summary{}, err
	}
	queries, err := ReadQueriesFile(infile)
	if err != nil {
		return Summary{}, err
	}
	if err := output.WriteHeader(outfile, s, h.BOM); err != nil {
		return Summary{}, err
	}
	// a missing secret must stop the run before any browser starts
	if _, err := h.Crawler.Credentials.Get(username); err != nil {
		return Summary{}, err
	}

	var sum Summary
	err = WithSession(ctx, h.Open, h.Backend, h.Browser, func(sess browser.Session) error {
		var err error
		sum, err = h.Crawler.RunCrawl(ctx, sess, username, queries, outfile, s)
		return err
	})
	return sum, err
}
