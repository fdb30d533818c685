package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/screener/internal/api/handlers"
	"github.com/wonny/screener/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(screenHandler *handlers.ScreenHandler, streamHandler *handlers.StreamHandler, metricsHandler http.Handler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handlers.NotFound)

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Metrics
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Reference data
	api.HandleFunc("/reference", screenHandler.GetReference).Methods("GET")

	// Screening
	api.HandleFunc("/screen", screenHandler.Screen).Methods("POST")
	api.HandleFunc("/screen/export", screenHandler.Export).Methods("POST")

	// Comparison
	api.HandleFunc("/returns", screenHandler.Returns).Methods("POST")
	api.HandleFunc("/fundamentals", screenHandler.Fundamentals).Methods("POST")

	// Commentary
	api.HandleFunc("/commentary", screenHandler.Commentary).Methods("POST")

	// Interactive recomputation
	r.HandleFunc("/ws/screen", streamHandler.Serve).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "screener-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
