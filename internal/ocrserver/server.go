// Package ocrserver is a local Extraction Service: it accepts one image per
// request on POST /api/extract/ and answers {"text": [lines...]}, the
// contract the TextScan workflow speaks.
package ocrserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	apperrors "github.com/adverant/nexus/textscan/internal/errors"
	"github.com/adverant/nexus/textscan/internal/imageinfo"
	"github.com/adverant/nexus/textscan/internal/logging"
)

// ExtractPath is the extraction route.
const ExtractPath = "/api/extract/"

// Engine turns image bytes into text lines.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) ([]string, error)
}

// Config wires the service.
type Config struct {
	Engine         Engine
	MaxUploadBytes int64         // default 10 MiB
	MaxConcurrent  int64         // default 4
	AcquireTimeout time.Duration // how long a request waits for capacity; default 30s
	RecognizeLimit time.Duration // bound on one recognition; zero means none
	RateEvery      time.Duration // per-IP refill interval; default 600ms
	RateBurst      int           // default 20
	AllowedOrigin  string        // CORS origin; default "*"
}

// Server is the extraction HTTP service.
type Server struct {
	cfg    Config
	sem    *semaphore.Weighted
	logger *logging.Logger

	limitersMu sync.Mutex
	limiters   map[string]*clientLimiter

	statsMu  sync.Mutex
	total    int64
	active   int64
	failures int64
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewServer creates the service.
func NewServer(cfg *Config) *Server {
	c := *cfg
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 30 * time.Second
	}
	if c.RateEvery <= 0 {
		c.RateEvery = 600 * time.Millisecond // ~100/min
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 20
	}
	if c.AllowedOrigin == "" {
		c.AllowedOrigin = "*"
	}

	return &Server{
		cfg:      c,
		sem:      semaphore.NewWeighted(c.MaxConcurrent),
		logger:   logging.NewLogger("OCRServer"),
		limiters: make(map[string]*clientLimiter),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.withLogging)
	r.Use(s.withRecovery)
	r.Use(s.withCORS)

	r.Get("/health", s.handleHealth)
	r.With(s.withRateLimit).Post(ExtractPath, s.handleExtract)
	r.Options(ExtractPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.statsMu.Lock()
	total, active, failures := s.total, s.active, s.failures
	s.statsMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"engine":   s.cfg.Engine.Name(),
		"active":   active,
		"total":    total,
		"failures": failures,
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	image, err := s.readImage(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeErr(w, http.StatusRequestEntityTooLarge, "too_large", "Image exceeds the upload limit")
		case apperrors.CodeOf(err) == apperrors.ErrorUnsupportedIn:
			writeErr(w, http.StatusUnsupportedMediaType, "unsupported_format", err.Error())
		default:
			writeErr(w, http.StatusBadRequest, "bad_request", err.Error())
		}
		return
	}

	acquireCtx, cancel := context.WithTimeout(r.Context(), s.cfg.AcquireTimeout)
	err = s.sem.Acquire(acquireCtx, 1)
	cancel()
	if err != nil {
		writeErr(w, http.StatusServiceUnavailable, "capacity", "Service at capacity")
		return
	}
	defer s.sem.Release(1)

	s.begin()
	defer s.end()

	ctx := r.Context()
	if s.cfg.RecognizeLimit > 0 {
		var cancelRecognize context.CancelFunc
		ctx, cancelRecognize = context.WithTimeout(ctx, s.cfg.RecognizeLimit)
		defer cancelRecognize()
	}

	startTime := time.Now()
	lines, err := s.cfg.Engine.Recognize(ctx, image)
	if err != nil {
		s.fail()
		s.logger.Error("Recognition failed",
			"engine", s.cfg.Engine.Name(),
			"size", len(image),
			"duration", time.Since(startTime),
			"error", err)
		writeErr(w, http.StatusInternalServerError, "recognition_failed", "Text recognition failed")
		return
	}
	if lines == nil {
		lines = []string{}
	}

	s.logger.Info("Image recognised",
		"engine", s.cfg.Engine.Name(),
		"size", len(image),
		"lines", len(lines),
		"duration", time.Since(startTime))
	writeJSON(w, http.StatusOK, map[string]any{"text": lines})
}

// readImage returns the bytes of the "image" field after checking that the
// content is an image.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, apperrors.NewInvalidRequestError(`multipart field "image" is required`)
		}
		return nil, err
	}
	defer file.Close()

	if header.Size > s.cfg.MaxUploadBytes {
		return nil, &http.MaxBytesError{Limit: s.cfg.MaxUploadBytes}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperrors.NewInvalidRequestError("image is empty")
	}

	if ct := imageinfo.Sniff(data).ContentType; !imageinfo.IsImage(ct) {
		return nil, apperrors.NewUnsupportedFormatError(ct)
	}
	return data, nil
}

func (s *Server) begin() {
	s.statsMu.Lock()
	s.total++
	s.active++
	s.statsMu.Unlock()
}

func (s *Server) end() {
	s.statsMu.Lock()
	s.active--
	s.statsMu.Unlock()
}

func (s *Server) fail() {
	s.statsMu.Lock()
	s.failures++
	s.statsMu.Unlock()
}

// ---------- Middleware ----------

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "60")
			writeErr(w, http.StatusTooManyRequests, "rate_limit", "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if s.cfg.AllowedOrigin != "*" {
			h.Add("Vary", "Origin")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("Handler panic", "path", r.URL.Path, "panic", rec)
				writeErr(w, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
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

// ---------- Rate limiters ----------

func (s *Server) limiter(ip string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	if cl, ok := s.limiters[ip]; ok {
		cl.lastSeen = time.Now()
		return cl.limiter
	}
	cl := &clientLimiter{
		limiter:  rate.NewLimiter(rate.Every(s.cfg.RateEvery), s.cfg.RateBurst),
		lastSeen: time.Now(),
	}
	s.limiters[ip] = cl
	return cl.limiter
}

// PruneLimiters drops limiters for clients not seen within idle and returns
// how many were dropped.
func (s *Server) PruneLimiters(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	n := 0
	for ip, cl := range s.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(s.limiters, ip)
			n++
		}
	}
	return n
}

// RunLimiterCleanup prunes idle limiters every interval until ctx ends.
func (s *Server) RunLimiterCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.PruneLimiters(interval); n > 0 {
				s.logger.Debug("Pruned rate limiters", "count", n)
			}
		}
	}
}

// ---------- Helpers ----------

// clientIP relies on chi's RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
