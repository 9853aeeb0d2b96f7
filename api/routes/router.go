package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlastravel/backoffice-backend/api/controllers"
	"github.com/atlastravel/backoffice-backend/api/middleware"
	"github.com/atlastravel/backoffice-backend/internal/export"
	"github.com/atlastravel/backoffice-backend/internal/quotes"
	"github.com/atlastravel/backoffice-backend/internal/tracking"
	"github.com/atlastravel/backoffice-backend/pkg/config"
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
	pkgredis "github.com/atlastravel/backoffice-backend/pkg/redis"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    RedisDeps
	Gatherer prometheus.Gatherer
	Quotes   quotes.Service
	Tracking tracking.Service
	Export   export.Service
}

// RedisDeps is the slice of the redis client the router needs: idempotency
// replay storage, rate limit counters and the readiness ping.
type RedisDeps interface {
	pkgredis.IdempotencyStore
	middleware.TrackingLimiter
	controllers.Pinger
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Public engagement surface. No auth: the signed token is the credential.
	r.Route("/t", func(r chi.Router) {
		r.Use(middleware.TrackingRateLimit(cfg.RateLimit, deps.Redis, logg))
		r.Get("/{token}", controllers.TrackQuoteClick(deps.Tracking, logg))
		r.Post("/{token}/interest", controllers.TrackBookingInterest(deps.Tracking, logg))
	})

	r.Route("/api/v1/quotes", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		// list and read stay role-open; agents are scoped to their own
		// quotes inside the service
		admin := middleware.RequireRole(string(enums.MemberRoleAdmin), logg)

		r.With(admin).Post("/", controllers.CreateQuote(deps.Quotes, logg))
		r.Get("/", controllers.ListQuotes(deps.Quotes, logg))
		r.With(admin).Get("/export", controllers.ExportQuotes(deps.Export, logg))
		r.Route("/{quoteId}", func(r chi.Router) {
			r.Get("/", controllers.GetQuote(deps.Quotes, logg))
			r.With(admin).Patch("/", controllers.UpdateQuote(deps.Quotes, logg))
			r.With(admin).Post("/send", controllers.SendQuote(deps.Quotes, logg))
			r.With(admin).Post("/retry-email", controllers.RetryQuoteEmail(deps.Quotes, logg))
			r.With(admin).Post("/status", controllers.TransitionQuoteStatus(deps.Quotes, logg))
			r.With(admin).Post("/archive", controllers.ArchiveQuote(deps.Quotes, logg))
			r.With(admin).Get("/audit", controllers.QuoteAuditTrail(deps.Quotes, logg))
		})
	})

	return r
}
