// Package output owns the CSV result file. The header is written once when
// a crawl starts and each name's records are appended as soon as that name
// is done, so an interrupted crawl still leaves a valid file behind.
package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"linkedin-harvester/internal/schema"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// WriteHeader creates or truncates path and writes the schema's field
// names. It runs before any browsing so an unwritable path fails fast.
func WriteHeader(path string, s schema.Schema, withBOM bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	var buf bytes.Buffer
	if withBOM {
		buf.Write(bom)
	}
	if err := writeRows(&buf, [][]string{s.Names()}); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return writeAndClose(f, buf.Bytes())
}

// AppendBatch appends one row per record in schema order. The whole batch
// goes out in a single write followed by a sync.
func AppendBatch(path string, s schema.Schema, records []schema.Record) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, s.Row(r))
	}
	var buf bytes.Buffer
	if err := writeRows(&buf, rows); err != nil {
		return err
	}

	// no O_CREATE: the header must already be there
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	return writeAndClose(f, buf.Bytes())
}

// writeRows encodes rows as CSV. A row holding one empty field is written
// as a quoted empty string, since encoding/csv would emit a blank line that
// readers skip.
func writeRows(buf *bytes.Buffer, rows [][]string) error {
	w := csv.NewWriter(buf)
	for _, row := range rows {
		if len(row) == 1 && row[0] == "" {
			w.Flush()
			buf.WriteString("\"\"\n")
			continue
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeAndClose(f *os.File, data []byte) error {
	if len(data) > 0 {
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", f.Name(), err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("sync %s: %w", f.Name(), err)
		}
	}
	return f.Close()
}

// Table is a parsed result file.
type Table struct {
	Header []string
	Rows   []map[string]string
}

// Read loads up to limit data rows (all when limit <= 0), keyed by header
// name.
func Read(path string, limit int) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Table{}, err
	}
	data = bytes.TrimPrefix(data, bom)

	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return Table{}, err
	}
	if len(records) == 0 {
		return Table{}, nil
	}

	t := Table{Header: records[0]}
	for i := 1; i < len(records) && (limit <= 0 || len(t.Rows) < limit); i++ {
		row := make(map[string]string, len(t.Header))
		for j, h := range t.Header {
			row[strings.TrimSpace(h)] = records[i][j]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
