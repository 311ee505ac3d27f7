package serve

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ValentinKolb/dShop/lib/shop"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("http")

// healthResponse is the body of /healthz
type healthResponse struct {
	Status      string                 `json:"status"`
	Collections []store.CollectionInfo `json:"collections,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Type        string                 `json:"type,omitempty"`
}

// NewHandler returns the HTTP handler of the serve command
func NewHandler(sh *shop.Shop, debug bool) http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		if debug {
			h = loggerMiddleware(h)
		}
		mux.HandleFunc(pattern, h)
	}

	handle("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	handle("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		infos, err := sh.Collections()
		if err != nil {
			Logger.Warningf("health check failed: %v", err)
			resp := healthResponse{Status: "unavailable", Error: err.Error(), Type: "INTERNAL_ERROR"}
			var serr *store.Error
			if errors.As(err, &serr) {
				resp.Type = serr.Type()
			}
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Collections: infos})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Errorf("Error writing response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Logging
// --------------------------------------------------------------------------

// responseWriter captures the status code of a response
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}
