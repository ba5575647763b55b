package web

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Runner starts a crawl with the given command line and reports its output
// line by line until it exits.
type Runner interface {
	Run(ctx context.Context, args []string, emit func(line string)) error
}

// ExecRunner runs the crawl as a child process of Path, normally this
// binary.
type ExecRunner struct {
	Path string
}

func NewExecRunner() (*ExecRunner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate harvester binary: %w", err)
	}
	return &ExecRunner{Path: exe}, nil
}

func (r *ExecRunner) Run(ctx context.Context, args []string, emit func(line string)) error {
	cmd := exec.CommandContext(ctx, r.Path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start crawl: %w", err)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	pump := func(rd io.Reader) {
		defer wg.Done()
		sc := bufio.NewScanner(rd)
		for sc.Scan() {
			mu.Lock()
			emit(sc.Text())
			mu.Unlock()
		}
	}
	wg.Add(2)
	go pump(stdout)
	go pump(stderr)
	// the pipes must be drained before Wait closes them
	wg.Wait()
	return cmd.Wait()
}
