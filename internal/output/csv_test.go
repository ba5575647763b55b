package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"linkedin-harvester/internal/browser"
	"linkedin-harvester/internal/schema"
)

var testSchema = schema.Schema{
	{Name: "fullname", Locator: browser.ByCSS(".full-name")},
	{Name: "locality", Locator: browser.ByCSS(".locality")},
}

func readLines(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestHeaderThenBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "people.csv")

	require.NoError(t, WriteHeader(path, testSchema, false))
	require.NoError(t, AppendBatch(path, testSchema, []schema.Record{
		{"fullname": "Jane Doe", "locality": ""},
	}))
	require.NoError(t, AppendBatch(path, testSchema, nil))
	require.NoError(t, AppendBatch(path, testSchema, []schema.Record{
		{"fullname": "John, Smith", "locality": "Oslo"},
		{},
	}))

	rows := readLines(t, path)
	require.Equal(t, [][]string{
		{"fullname", "locality"},
		{"Jane Doe", ""},
		{"John, Smith", "Oslo"},
		{"", ""},
	}, rows)
	for _, row := range rows {
		require.Len(t, row, len(testSchema))
	}
}

func TestSingleFieldEmptyRowsSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.csv")
	single := schema.Schema{{Name: "fullname", Locator: browser.ByCSS(".full-name")}}

	require.NoError(t, WriteHeader(path, single, false))
	require.NoError(t, AppendBatch(path, single, []schema.Record{
		{"fullname": ""},
		{"fullname": "Jane Doe"},
		{},
	}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "fullname\n\"\"\nJane Doe\n\"\"\n", string(b))
	require.Equal(t, [][]string{{"fullname"}, {""}, {"Jane Doe"}, {""}}, readLines(t, path))

	table, err := Read(path, 0)
	require.NoError(t, err)
	require.Equal(t, []map[string]string{{"fullname": ""}, {"fullname": "Jane Doe"}, {"fullname": ""}}, table.Rows)
}

func TestHeaderTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("old,content\n1,2\n"), 0o644))

	require.NoError(t, WriteHeader(path, testSchema, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "fullname,locality\n", string(data))
}

func TestHeaderOnlyWhenNothingAppended(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, WriteHeader(path, testSchema, false))
	require.NoError(t, AppendBatch(path, testSchema, []schema.Record{}))

	require.Equal(t, [][]string{{"fullname", "locality"}}, readLines(t, path))
}

func TestAppendWithoutHeaderFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")
	err := AppendBatch(path, testSchema, []schema.Record{{"fullname": "x"}})
	require.Error(t, err)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestWriteHeaderUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := WriteHeader(filepath.Join(blocker, "people.csv"), testSchema, false)
	require.Error(t, err)
}

func TestReadWithBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, WriteHeader(path, testSchema, true))
	require.NoError(t, AppendBatch(path, testSchema, []schema.Record{
		{"fullname": "Jane Doe", "locality": "Lisboa"},
		{"fullname": "John Smith"},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "\ufefffullname"))

	table, err := Read(path, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"fullname", "locality"}, table.Header)
	require.Equal(t, []map[string]string{{"fullname": "Jane Doe", "locality": "Lisboa"}}, table.Rows)
}
