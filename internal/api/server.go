// Package api exposes visualization sessions over HTTP/JSON for a browser
// renderer.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/placemap/internal/model"
	"github.com/sells-group/placemap/internal/rank"
	"github.com/sells-group/placemap/internal/session"
)

// Options configures a Server.
type Options struct {
	TopN           int
	Metric         model.Metric
	AllowedOrigins []string

	// LoadRate limits session creation, each of which reads the whole
	// source, in sessions per second. Zero disables the limit.
	LoadRate  float64
	LoadBurst int
}

// Server owns the session registry and loads every new session from the
// same source.
type Server struct {
	ctx      context.Context
	src      session.Loader
	registry *session.Registry
	opts     Options
	loads    *rate.Limiter
	log      *zap.Logger
}

// New creates a server. Loads started by the server stop when ctx is done.
func New(ctx context.Context, src session.Loader, opts Options) *Server {
	if opts.TopN <= 0 {
		opts.TopN = rank.DefaultTopN
	}
	if !opts.Metric.Valid() {
		opts.Metric = model.MetricPopulation
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	var loads *rate.Limiter
	if opts.LoadRate > 0 {
		if opts.LoadBurst <= 0 {
			opts.LoadBurst = 1
		}
		loads = rate.NewLimiter(rate.Limit(opts.LoadRate), opts.LoadBurst)
	}
	return &Server{
		ctx:      ctx,
		src:      src,
		registry: session.NewRegistry(),
		opts:     opts,
		loads:    loads,
		log:      zap.L().With(zap.String("component", "api")),
	}
}

// Registry returns the live session registry.
func (s *Server) Registry() *session.Registry { return s.registry }

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/sessions", func(sr chi.Router) {
		sr.Get("/", s.listSessions)
		sr.Post("/", s.createSession)

		sr.Route("/{sessionID}", func(item chi.Router) {
			item.Get("/", s.getSession)
			item.Delete("/", s.deleteSession)
			item.Get("/classes", s.classes)
			item.Get("/legend", s.legend)
			item.Get("/chart", s.chart)
			item.Get("/averages", s.averages)
			item.Get("/demographics", s.demographics)
			item.Get("/places/{placeID}", s.place)
			item.Post("/events", s.dispatch)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
