// Package server exposes the JSON API used by the web app and the browser
// extension, plus a server-rendered profile page.
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"slices"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
	"github.com/klauspost/compress/gzhttp"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/Folio/internal/collection"
	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/extension"
	"github.com/TobiSchelling/Folio/internal/generate"
	"github.com/TobiSchelling/Folio/internal/metadata"
	"github.com/TobiSchelling/Folio/internal/profile"
	"github.com/TobiSchelling/Folio/internal/telemetry"
	"github.com/TobiSchelling/Folio/internal/training"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var (
	md        = goldmark.New()
	sanitizer = bluemonday.UGCPolicy()
)

// maxBody bounds request bodies; extract requests carry whole pages.
const maxBody = 4 << 20

// Deps are the services the server dispatches to. Metrics may be nil.
type Deps struct {
	DB             *database.DB
	Collection     *collection.Service
	Fetcher        *metadata.Fetcher
	Profile        *profile.Service
	Discoverer     *training.Discoverer
	Generator      *generate.Generator
	Translator     *generate.Translator
	Relay          *extension.Relay
	Metrics        telemetry.Recorder
	AllowedOrigins []string
}

// Server is the HTTP server.
type Server struct {
	Deps
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(d Deps) (*Server, error) {
	if d.Metrics == nil {
		d.Metrics = telemetry.NewRecorder(false, nil)
	}
	if d.Relay == nil {
		d.Relay = extension.NewRelay(d.DB)
	}

	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"percent":  func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of the base so "title" and "content"
	// can be defined per page.
	pageNames := []string{"profile.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{Deps: d, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler with metrics, CORS and compression applied.
func (s *Server) Handler() http.Handler {
	return telemetry.Middleware(s.Metrics, s.cors(gzhttp.GzipHandler(s.mux)))
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", s.Metrics.Handler())
	s.mux.HandleFunc("GET /profile", s.auth(s.handleProfilePage))

	s.mux.HandleFunc("GET /api/collections", s.auth(s.handleListItems))
	s.mux.HandleFunc("POST /api/collections", s.auth(s.handleSaveItem))
	s.mux.HandleFunc("POST /api/collections/fetch-metadata", s.auth(s.handleFetchMetadata))
	s.mux.HandleFunc("POST /api/collections/rescan", s.auth(s.handleRescan))
	s.mux.HandleFunc("POST /api/collections/refresh-metrics", s.auth(s.handleRefreshMetrics))
	s.mux.HandleFunc("GET /api/collections/{id}", s.auth(s.handleGetItem))
	s.mux.HandleFunc("PATCH /api/collections/{id}", s.auth(s.handleUpdateItem))
	s.mux.HandleFunc("DELETE /api/collections/{id}", s.auth(s.handleDeleteItem))

	s.mux.HandleFunc("POST /api/analyze", s.auth(s.handleAnalyze))

	s.mux.HandleFunc("GET /api/taste-profile", s.auth(s.handleGetProfile))
	s.mux.HandleFunc("GET /api/taste-profile/source", s.auth(s.handleProfileSource))
	s.mux.HandleFunc("POST /api/taste-profile/rebuild", s.auth(s.handleRebuild))

	s.mux.HandleFunc("POST /api/training/rate", s.auth(s.handleRate))
	s.mux.HandleFunc("POST /api/training/refine", s.auth(s.handleRefine))
	s.mux.HandleFunc("GET /api/training/suggestions", s.auth(s.handleSuggestions))
	s.mux.HandleFunc("GET /api/training/stats", s.auth(s.handleTrainingStats))

	s.mux.HandleFunc("POST /api/generate", s.auth(s.handleGenerate))
	s.mux.HandleFunc("POST /api/translate", s.auth(s.handleTranslate))
	s.mux.HandleFunc("POST /api/extract", s.handleExtract)

	s.mux.HandleFunc("POST /api/extension/messages", s.handleExtensionMessage)
	s.mux.HandleFunc("GET /api/extension/events", s.handleExtensionEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cors answers preflight requests and marks responses for allowed origins.
// Browser extension origins are always allowed.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Client-ID")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed matches exact origins only. Browser extensions are listed
// by their full origin, e.g. chrome-extension://<id>.
func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.AllowedOrigins, origin)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Error().Str("template", name).Msg("template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("rendering template")
	}
}

// renderMarkdown converts text to HTML and strips anything unsafe.
func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(sanitizer.SanitizeBytes(buf.Bytes())) //nolint: gosec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("writing response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// internalError logs err once and answers with a generic 500.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

var errBadJSON = errors.New("Invalid JSON body")

// decode reads a JSON body into v and runs its validate tags, if any.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return errBadJSON
	}
	vd := validate.Struct(v)
	if !vd.Validate() {
		return errors.New(vd.Errors.One())
	}
	return nil
}

// Serve starts the HTTP server on addr and shuts it down when ctx ends.
func Serve(ctx context.Context, d Deps, addr string) error {
	srv, err := New(d)
	if err != nil {
		return err
	}

	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", "http://"+addr).Msg("server listening")
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return hs.Shutdown(shutdown)
	}
}
