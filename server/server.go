// Package server exposes the bot's HTTP surface: health and readiness probes,
// Prometheus metrics, a channel overview for operators, and the Twitch OAuth
// flow that provisions the bot account's user token.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/battlesheet/telemetry"
)

const tracerName = "http-server"

// NewRouter returns the HTTP handler with all routes.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(correlate(h.log))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.HandleHealthz)
	r.Get("/readyz", h.HandleReadyz)

	r.Route("/auth/twitch", func(r chi.Router) {
		r.Get("/start", h.HandleTwitchOAuthStart)
		r.Get("/callback", h.HandleTwitchOAuthCallback)
	})

	r.Group(func(r chi.Router) {
		r.Use(adminAuth(h.adminToken, h.log))
		r.Get("/channels", h.HandleChannels)
		r.Get("/channels/{channel}", h.HandleChannel)
	})
	return r
}

// correlate attaches a correlation id and a server span to each request.
func correlate(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corr := r.Header.Get("X-Correlation-ID")
			if corr == "" {
				corr = uuid.NewString()
			}
			ctx := telemetry.WithCorrelation(r.Context(), corr)
			w.Header().Set("X-Correlation-ID", corr)

			ctx, span := telemetry.StartSpan(ctx, tracerName, r.Method+" "+r.URL.Path,
				telemetry.HTTPAttrs(r.Method, r.URL.Path)...)
			defer span.End()

			telemetry.LoggerWithCorr(ctx, log).Debug("request start",
				slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			telemetry.SetSpanHTTPStatus(span, rec.statusCode)
		})
	}
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
