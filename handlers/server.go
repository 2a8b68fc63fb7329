package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nimble.viom.tech/site/internal/config"
	"nimble.viom.tech/site/internal/logger"
	"nimble.viom.tech/site/internal/ratelimit"
	"nimble.viom.tech/site/models"
)

type LicenseChecker interface {
	HasActiveLicense(ctx context.Context, userEmail string) (models.LicenseLookupResult, error)
}

type CheckoutCreator interface {
	CreateSession(ctx context.Context, req models.CheckoutRequest, baseURL string) (string, error)
}

type ContactSubmitter interface {
	Submit(ctx context.Context, sub models.FormSubmission) error
}

type NewsletterSubscriber interface {
	Subscribe(ctx context.Context, email string) error
}

// Deps are the collaborators the routes delegate to.
type Deps struct {
	Config     *config.Config
	Licenses   LicenseChecker
	Checkout   CheckoutCreator
	Contact    ContactSubmitter
	Newsletter NewsletterSubscriber
	// Webhook is mounted at POST /webhook when set.
	Webhook http.Handler
	// RateLimit guards the public POST routes when set.
	RateLimit ratelimit.RateLimit
	Version   string
}

type Server struct {
	Router chi.Router
	deps   Deps
	now    func() time.Time
}

func NewHttpServer(deps Deps) *Server {
	s := &Server{
		Router: chi.NewRouter(),
		deps:   deps,
		now:    time.Now,
	}

	r := s.Router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/health", s.Health)
	if deps.Config.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/get-stripe-key", s.GetStripeKey)
	r.Get("/get-product-ids", s.GetProductIds)
	r.With(s.limit("check-active-license")).Post("/check-active-license", s.CheckActiveLicense)
	r.With(s.limit("create-checkout-session")).Post("/create-checkout-session", s.CreateCheckoutSession)
	r.With(s.limit("contact")).Post("/contact/submit", s.ContactSubmit)
	r.With(s.limit("newsletter")).Post("/newsletter/subscribe", s.NewsletterSubscribe)

	if deps.Webhook != nil {
		r.Method(http.MethodPost, "/webhook", deps.Webhook)
	}

	r.Get("/*", s.Static)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) limit(route string) func(http.Handler) http.Handler {
	if s.deps.RateLimit == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return ratelimit.Middleware(s.deps.RateLimit, route)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("HTTP request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
			"remote_addr": r.RemoteAddr,
		})
	})
}

// reportError sends err to Sentry through the request's hub.
func reportError(r *http.Request, err error) {
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	}
}
