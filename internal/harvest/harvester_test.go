package harvest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"linkedin-harvester/internal/browser"
	"linkedin-harvester/internal/credentials"
)

func writeNames(t *testing.T, names string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "names.txt")
	require.NoError(t, os.WriteFile(path, []byte(names), 0o644))
	return path
}

type harvesterEnv struct {
	site      *site
	harvester *Harvester
	opened    int
	closed    int
}

func newHarvesterEnv(t *testing.T) *harvesterEnv {
	t.Helper()
	keyring.MockInit()
	store := credentials.NewKeyring("")
	require.NoError(t, store.Set(testUser, testPassword))

	env := &harvesterEnv{site: newFixtureSite(t)}
	env.harvester = &Harvester{
		Crawler: Crawler{Site: env.site.Site(), Credentials: store},
		Backend: "http",
		Browser: httpOptions(),
		Open: func(ctx context.Context, backend string, opts browser.Options) (browser.Session, error) {
			sess, err := browser.Open(ctx, backend, opts)
			if err != nil {
				return nil, err
			}
			env.opened++
			return &closeCounter{Session: sess, n: &env.closed}, nil
		},
	}
	return env
}

type closeCounter struct {
	browser.Session
	n *int
}

func (c *closeCounter) Close() error {
	*c.n++
	return c.Session.Close()
}

func TestHarvesterCrawl(t *testing.T) {
	env := newHarvesterEnv(t)
	infile := writeNames(t, "\ufeffJane Doe\n\n  John Smith  \n")
	outfile := filepath.Join(t.TempDir(), "results", "out.csv")

	sum, err := env.harvester.Crawl(context.Background(), testUser, infile, outfile, nameAndLocality)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Records)
	require.Len(t, sum.Results, 2)
	require.NotEmpty(t, sum.RunID)
	require.Equal(t, "fullname,locality\nJane Doe,\n", readFile(t, outfile))
	require.Equal(t, 1, env.opened)
	require.Equal(t, 1, env.closed)
}

func TestHarvesterCrawlWithBOM(t *testing.T) {
	env := newHarvesterEnv(t)
	env.harvester.BOM = true
	infile := writeNames(t, "Jane Doe\n")
	outfile := filepath.Join(t.TempDir(), "out.csv")

	_, err := env.harvester.Crawl(context.Background(), testUser, infile, outfile, nameAndLocality)
	require.NoError(t, err)
	require.Equal(t, "\ufefffullname,locality\nJane Doe,\n", readFile(t, outfile))
}

func TestHarvesterCrawlWithoutCredential(t *testing.T) {
	env := newHarvesterEnv(t)
	infile := writeNames(t, "Jane Doe\n")
	outfile := filepath.Join(t.TempDir(), "out.csv")

	_, err := env.harvester.Crawl(context.Background(), "nobody@example.com", infile, outfile, nameAndLocality)
	require.ErrorIs(t, err, credentials.ErrNoStoredCredential)
	require.Equal(t, "fullname,locality\n", readFile(t, outfile))
	require.Zero(t, env.opened)
	require.Empty(t, env.site.searched())
}

func TestHarvesterCrawlMissingNamesFile(t *testing.T) {
	env := newHarvesterEnv(t)
	outfile := filepath.Join(t.TempDir(), "out.csv")

	_, err := env.harvester.Crawl(context.Background(), testUser,
		filepath.Join(t.TempDir(), "missing.txt"), outfile, nameAndLocality)
	require.ErrorContains(t, err, "open names file")
	require.NoFileExists(t, outfile)
	require.Zero(t, env.opened)
}

func TestHarvesterCrawlClosesSessionOnCancel(t *testing.T) {
	env := newHarvesterEnv(t)
	infile := writeNames(t, "Jane Doe\nJohn Smith\n")
	outfile := filepath.Join(t.TempDir(), "out.csv")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.harvester.Crawler.OnResult = func(QueryResult) { cancel() }

	_, err := env.harvester.Crawl(ctx, testUser, infile, outfile, nameAndLocality)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, env.closed)
	require.Equal(t, "fullname,locality\nJane Doe,\n", readFile(t, outfile))
}
