// Package web serves a small console for starting crawls from a browser and
// following their logs.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"linkedin-harvester/internal/browser"
	"linkedin-harvester/internal/output"
	"linkedin-harvester/internal/schema"
)

const previewRows = 200

type runPayload struct {
	Username string `json:"username"`
	Names    string `json:"names"`
	Backend  string `json:"backend"`
	Schema   string `json:"schema"`
	Headless bool   `json:"headless"`
	DumpHTML bool   `json:"dump_html"`
	BOM      bool   `json:"bom"`
}

type runResponse struct {
	Ok        bool                `json:"ok"`
	Message   string              `json:"message"`
	CSVPath   string              `json:"csv_path,omitempty"`
	StartedAt string              `json:"started_at,omitempty"`
	EndedAt   string              `json:"ended_at,omitempty"`
	Header    []string            `json:"header,omitempty"`
	Results   []map[string]string `json:"results,omitempty"`
}

type streamEvent struct {
	Type string `json:"type"` // "log" | "done"
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

type Server struct {
	OutDir string
	// ConfigPath is handed to every crawl when set.
	ConfigPath     string
	DefaultBackend string
	Runner         Runner
	// Now names result files; it defaults to time.Now.
	Now func() time.Time
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("GET /download", s.handleDownload)
	return mux
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("web console listening", "addr", addr, "out_dir", s.OutDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := pageTmpl.Execute(w, pageData{
		Backends: browser.Backends(),
		Presets:  schema.PresetNames(),
		Default:  strings.ToLower(s.DefaultBackend),
		OutDir:   s.OutDir,
	})
	if err != nil {
		slog.Error("rendering index", "err", err)
	}
}

// handleDownload only serves files below the output directory.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	target, ok := s.inOutDir(path)
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	st, err := os.Stat(target)
	if err != nil || st.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filepath.Base(target)))
	http.ServeFile(w, r, target)
}

func (s *Server) inOutDir(path string) (string, bool) {
	root, err := filepath.Abs(s.OutDir)
	if err != nil {
		return "", false
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}

func writeEvent(w http.ResponseWriter, ev streamEvent) {
	b, _ := json.Marshal(ev)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func fail(w http.ResponseWriter, msg string) {
	writeEvent(w, streamEvent{Type: "log", Msg: msg})
	writeEvent(w, streamEvent{Type: "done", Data: runResponse{Ok: false, Message: msg}})
}

func (p runPayload) validate() error {
	if strings.TrimSpace(p.Username) == "" {
		return errors.New("username is required")
	}
	if strings.TrimSpace(p.Names) == "" {
		return errors.New("at least one name is required")
	}
	if p.Backend != "" && !slices.Contains(browser.Backends(), strings.ToLower(p.Backend)) {
		return fmt.Errorf("%w: %q", browser.ErrUnsupportedBackend, p.Backend)
	}
	if p.Schema != "" && !slices.Contains(schema.PresetNames(), strings.ToLower(p.Schema)) {
		return fmt.Errorf("unknown schema preset %q", p.Schema)
	}
	return nil
}

func (s *Server) crawlArgs(p runPayload, namesFile, outfile string) []string {
	args := []string{"crawl"}
	if s.ConfigPath != "" {
		args = append(args, "--config", s.ConfigPath)
	}
	if p.Backend != "" {
		args = append(args, "--browser", p.Backend)
	}
	if p.Schema != "" {
		args = append(args, "--schema", p.Schema)
	}
	args = append(args, "--headless="+strconv.FormatBool(p.Headless))
	if p.DumpHTML {
		args = append(args, "--dump-dir", filepath.Join(s.OutDir, "pages"))
	}
	if p.BOM {
		args = append(args, "--bom")
	}
	return append(args, p.Username, namesFile, outfile)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Cache-Control", "no-cache")

	var p runPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		fail(w, fmt.Sprintf("invalid payload: %v", err))
		return
	}
	if err := p.validate(); err != nil {
		fail(w, err.Error())
		return
	}

	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		fail(w, fmt.Sprintf("create output dir: %v", err))
		return
	}
	names, err := os.CreateTemp("", "harvester-names-*.txt")
	if err != nil {
		fail(w, fmt.Sprintf("save names: %v", err))
		return
	}
	defer os.Remove(names.Name())
	_, err = names.WriteString(p.Names)
	if cerr := names.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fail(w, fmt.Sprintf("save names: %v", err))
		return
	}

	start := s.now()
	outfile := filepath.Join(s.OutDir, fmt.Sprintf("linkedin_%s.csv", start.Format("20060102_150405")))
	args := s.crawlArgs(p, names.Name(), outfile)
	writeEvent(w, streamEvent{Type: "log", Msg: "Running: harvester " + strings.Join(args, " ")})

	runErr := s.Runner.Run(ctx, args, func(line string) {
		writeEvent(w, streamEvent{Type: "log", Msg: line})
	})

	res := runResponse{
		Ok:        runErr == nil,
		Message:   "ok",
		StartedAt: start.Format(time.RFC3339),
		EndedAt:   s.now().Format(time.RFC3339),
	}
	if runErr != nil {
		res.Message = runErr.Error()
	}
	// a failed crawl can still leave rows behind
	if preview, err := output.Read(outfile, previewRows); err == nil {
		res.CSVPath = outfile
		res.Header = preview.Header
		res.Results = preview.Rows
	} else if !errors.Is(err, os.ErrNotExist) {
		writeEvent(w, streamEvent{Type: "log", Msg: fmt.Sprintf("could not read results: %v", err)})
	}
	writeEvent(w, streamEvent{Type: "done", Data: res})
}
