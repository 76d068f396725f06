package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plateful/plateful-backend/api/controllers"
	subscriptionControllers "github.com/plateful/plateful-backend/api/controllers/subscriptions"
	usageControllers "github.com/plateful/plateful-backend/api/controllers/usage"
	webhookControllers "github.com/plateful/plateful-backend/api/controllers/webhooks"
	"github.com/plateful/plateful-backend/api/middleware"
	subscriptionsvc "github.com/plateful/plateful-backend/internal/subscriptions"
	usagesvc "github.com/plateful/plateful-backend/internal/usage"
	appstorewebhook "github.com/plateful/plateful-backend/internal/webhooks/appstore"
	googleplaywebhook "github.com/plateful/plateful-backend/internal/webhooks/googleplay"
	"github.com/plateful/plateful-backend/pkg/config"
	"github.com/plateful/plateful-backend/pkg/db"
	"github.com/plateful/plateful-backend/pkg/logger"
	"github.com/plateful/plateful-backend/pkg/redis"
)

// RouterParams groups the wiring needed by the HTTP surface.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis redis.Pinger

	SubscriptionService subscriptionsvc.Service
	VerifyService       *subscriptionsvc.VerifyService
	UsageService        usagesvc.Service

	GooglePlayWebhook *googleplaywebhook.Service
	AppStoreWebhook   *appstorewebhook.Service

	MetricsGatherer prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	if p.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/google-play", webhookControllers.GooglePlayWebhook(p.GooglePlayWebhook, logg))
		r.Post("/app-store", webhookControllers.AppStoreWebhook(p.AppStoreWebhook, logg))
	})

	r.Get("/api/v1/subscriptions/plans", subscriptionControllers.Plans())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/verify/android", subscriptionControllers.VerifyAndroid(p.VerifyService, logg))
			r.Post("/verify/ios", subscriptionControllers.VerifyIOS(p.VerifyService, logg))
			r.Get("/status", subscriptionControllers.Status(p.SubscriptionService, logg))
			r.Get("/history", subscriptionControllers.History(p.SubscriptionService, logg))
		})

		r.Route("/usage", func(r chi.Router) {
			r.Post("/", usageControllers.Record(p.UsageService, logg))
			r.Get("/", usageControllers.Get(p.UsageService, logg))
		})
	})

	return r
}
