// Package webui serves the single TextScan page. Each browser session owns a
// workflow.Workflow; every form action maps to one workflow operation and
// redirects back to the page, which renders from a snapshot.
package webui

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/adverant/nexus/textscan/internal/clipboard"
	"github.com/adverant/nexus/textscan/internal/download"
	"github.com/adverant/nexus/textscan/internal/logging"
	"github.com/adverant/nexus/textscan/internal/preview"
	"github.com/adverant/nexus/textscan/internal/workflow"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config wires the web UI.
type Config struct {
	Extractor      workflow.Extractor
	Clipboard      clipboard.Writer
	Clock          clock.Clock
	CopiedReset    time.Duration
	RequestTimeout time.Duration
	MaxUploadBytes int64
	SessionIdleTTL time.Duration
}

// Server is the web UI.
type Server struct {
	cfg      Config
	previews *preview.Registry
	sessions *SessionStore
	page     *template.Template
	logger   *logging.Logger

	// submitCtx outlives individual HTTP requests; extraction requests are
	// not cancelled when the browser navigates away.
	submitCtx context.Context
}

// NewServer creates the web UI.
func NewServer(cfg *Config) (*Server, error) {
	page, err := template.New("index.html").Funcs(template.FuncMap{
		"previewPath": func(ref string) string { return "/preview/" + preview.ID(ref) },
	}).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       *cfg,
		previews:  preview.NewRegistry(),
		page:      page,
		logger:    logging.NewLogger("WebUI"),
		submitCtx: context.Background(),
	}
	s.sessions = NewSessionStore(s.newWorkflow, cfg.SessionIdleTTL)
	return s, nil
}

func (s *Server) newWorkflow() *workflow.Workflow {
	return workflow.New(&workflow.Config{
		Extractor:      s.cfg.Extractor,
		Previews:       s.previews,
		Clipboard:      s.cfg.Clipboard,
		Clock:          s.cfg.Clock,
		CopiedReset:    s.cfg.CopiedReset,
		RequestTimeout: s.cfg.RequestTimeout,
	})
}

// Sessions exposes the session store for sweeping and shutdown.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Previews exposes the preview registry.
func (s *Server) Previews() *preview.Registry {
	return s.previews
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.withLogging)
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/preview/{id}", s.previews.Handler())
	r.Get("/download", s.handleDownload)

	r.Post("/select", s.handleSelect)
	r.Post("/drag/{event}", s.handleDrag)
	r.Post("/drop", s.handleDrop)
	r.Post("/submit", s.handleSubmit)
	r.Post("/copy", s.handleCopy)
	r.Post("/reset", s.handleReset)

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.sessions.Workflow(w, r).Snapshot()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.page.Execute(w, snap); err != nil {
		s.logger.Error("Render failed", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"sessions": s.sessions.Len(),
		"previews": s.previews.Live(),
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	wf := s.sessions.Workflow(w, r)

	f, err := s.readUpload(w, r)
	if err != nil {
		s.uploadError(w, r, err)
		return
	}
	if f != nil {
		s.ignoreGuard(wf.SelectFile(*f))
	}
	redirectHome(w, r)
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	wf := s.sessions.Workflow(w, r)

	evt, err := workflow.ParseDragEvent(chi.URLParam(r, "event"))
	if err != nil || evt == workflow.Drop {
		http.Error(w, "unknown drag event", http.StatusNotFound)
		return
	}
	_ = wf.Drag(evt, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	wf := s.sessions.Workflow(w, r)

	f, err := s.readUpload(w, r)
	if err != nil {
		_ = wf.Drag(workflow.Drop, nil)
		s.uploadError(w, r, err)
		return
	}
	s.ignoreGuard(wf.Drag(workflow.Drop, f))
	redirectHome(w, r)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	wf := s.sessions.Workflow(w, r)
	_, err := wf.Submit(s.submitCtx)
	s.ignoreGuard(err)
	redirectHome(w, r)
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	wf := s.sessions.Workflow(w, r)
	s.ignoreGuard(wf.CopyResult(r.Context()))
	redirectHome(w, r)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	wf := s.sessions.Workflow(w, r)
	if _, err := wf.DownloadResult(r.Context(), download.HTTPSink{W: w}); err != nil {
		if errors.Is(err, workflow.ErrNoResult) {
			redirectHome(w, r)
			return
		}
		s.logger.Warn("Download failed", "error", err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.sessions.Workflow(w, r).Reset()
	redirectHome(w, r)
}

var errTooLarge = errors.New("upload too large")

// readUpload returns the "image" part of a multipart body, or nil when the
// form has no such part.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*workflow.File, error) {
	limit := s.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	// multipart overhead on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))

	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errTooLarge
		}
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if header.Size > limit {
		return nil, errTooLarge
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return &workflow.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}, nil
}

func (s *Server) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errTooLarge) {
		http.Error(w, "image exceeds the upload limit", http.StatusRequestEntityTooLarge)
		return
	}
	s.logger.Warn("Bad upload", "path", r.URL.Path, "error", err)
	http.Error(w, "bad upload", http.StatusBadRequest)
}

// ignoreGuard swallows the guard sentinels that the page treats as no-ops and
// logs anything else.
func (s *Server) ignoreGuard(err error) {
	switch {
	case err == nil,
		errors.Is(err, workflow.ErrNotImage),
		errors.Is(err, workflow.ErrBusy),
		errors.Is(err, workflow.ErrNothingToSubmit),
		errors.Is(err, workflow.ErrNoResult):
		return
	}
	s.logger.Warn("Workflow operation failed", "error", err)
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestId", chimiddleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
