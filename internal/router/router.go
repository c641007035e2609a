package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "medication-reminders/docs"
	"medication-reminders/internal/domain/reminders"
	"medication-reminders/internal/domain/sharedaccess"
	"medication-reminders/internal/middleware"
	"medication-reminders/internal/platform/logger"
	"medication-reminders/internal/ports/auth"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	SharedAccess *sharedaccess.Service
	Reminders    *reminders.Service

	// Gatherer para /metrics; nil => registry por defecto de prometheus.
	Gatherer prometheus.Gatherer
	Log      logger.Logger

	// Ready se consulta en /health (p.ej. ping a la DB). Opcional.
	Ready func(ctx context.Context) error
}

func NewRouter(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log))
	r.Use(middleware.Recover(log))

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if opts.Ready != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Ready(ctx); err != nil {
				log.Warn("health check failed", map[string]any{"error": err})
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Rutas por módulo
	if opts.SharedAccess != nil {
		sharedaccess.RegisterRoutes(r, opts.SharedAccess)
	}
	if opts.Reminders != nil {
		reminders.RegisterRoutes(r, opts.Reminders)
	}

	return r
}
