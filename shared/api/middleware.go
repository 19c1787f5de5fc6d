// shared/api/middleware.go
package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// ObserveFunc receives one handled request. route is the matched mux path template.
type ObserveFunc func(method, route string, status int, duration time.Duration)

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(logger *log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			// Wrap the ResponseWriter to capture status code
			lrw := newStatusRecorder(w)
			next.ServeHTTP(lrw, r)
			logger.Printf("INFO: %s %s from %s - Status: %d, Duration: %v",
				r.Method, r.URL.Path, r.RemoteAddr, lrw.statusCode, time.Since(start))
		})
	}
}

// ObserverMiddleware reports every request to observe, labelled by route template
// so path parameters do not explode label cardinality.
func ObserverMiddleware(observe ObserveFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := newStatusRecorder(w)
			next.ServeHTTP(lrw, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			observe(r.Method, route, lrw.statusCode, time.Since(start))
		})
	}
}

// statusRecorder captures the HTTP status code written by a handler.
type statusRecorder struct {
	w          http.ResponseWriter
	statusCode int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{w: w, statusCode: http.StatusOK}
}

func (sr *statusRecorder) Header() http.Header {
	return sr.w.Header()
}

func (sr *statusRecorder) Write(buf []byte) (int, error) {
	return sr.w.Write(buf)
}

func (sr *statusRecorder) WriteHeader(statusCode int) {
	sr.statusCode = statusCode
	sr.w.WriteHeader(statusCode)
}

// CORSMiddleware allows cross-origin requests from any origin.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400") // Cache preflight requests for 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
