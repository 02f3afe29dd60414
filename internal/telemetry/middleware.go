package telemetry

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/metadata"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacking unsupported")
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Middleware records one metric sample and one access log line per
// request. Routes are labelled with the matched mux pattern so ids in
// paths do not explode label cardinality.
func Middleware(rec Recorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		rec.ObserveRequest(route, sw.status, elapsed)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("took", elapsed).
			Msg("request")
	})
}

// cache counts hits and misses of a metadata cache.
type cache struct {
	metadata.Cache
	rec Recorder
}

// InstrumentCache wraps c so lookups are counted by rec.
func InstrumentCache(c metadata.Cache, rec Recorder) metadata.Cache {
	return &cache{Cache: c, rec: rec}
}

func (c *cache) Get(key string) (*metadata.Metadata, bool) {
	m, ok := c.Cache.Get(key)
	if ok {
		c.rec.IncCacheHit()
	} else {
		c.rec.IncCacheMiss()
	}
	return m, ok
}
