package harvest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxQueryLine bounds a single line of the names file.
const maxQueryLine = 1 << 20

// ReadQueries returns one name per non-blank line, in file order.
func ReadQueries(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxQueryLine)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(sanitizeQuotes(line))
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func ReadQueriesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open names file: %w", err)
	}
	defer f.Close()
	names, err := ReadQueries(f)
	if err != nil {
		return nil, fmt.Errorf("read names from %s: %w", path, err)
	}
	return names, nil
}
