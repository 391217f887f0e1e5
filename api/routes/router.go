package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plusonehq/plusone-backend/api/controllers"
	"github.com/plusonehq/plusone-backend/api/middleware"
	"github.com/plusonehq/plusone-backend/internal/ledger"
	"github.com/plusonehq/plusone-backend/internal/orders"
	"github.com/plusonehq/plusone-backend/pkg/config"
	"github.com/plusonehq/plusone-backend/pkg/db"
	"github.com/plusonehq/plusone-backend/pkg/logger"
	pkgredis "github.com/plusonehq/plusone-backend/pkg/redis"
)

// RouterParams bundle everything the API surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DBPinger      db.Pinger
	Redis         *pkgredis.Client
	OrdersService orders.Service
	LedgerService ledger.Service
	Metrics       prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(p.Config.Service.CORSOrigins),
	)

	var redisPinger pkgredis.Pinger
	var idemStore pkgredis.IdempotencyStore
	if p.Redis != nil {
		redisPinger = p.Redis
		idemStore = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.DBPinger, redisPinger))
	})

	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idemStore, p.Logger))

		r.Post("/intents", controllers.SubmitIntent(p.OrdersService, p.Logger))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/find", controllers.FindOrder(p.OrdersService, p.Logger))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.GetOrder(p.OrdersService, p.Logger))
				r.Post("/link", controllers.LinkOrder(p.OrdersService, p.Logger))
				r.Post("/statuses", controllers.RecordStatus(p.LedgerService, p.Logger))
				r.Get("/statuses", controllers.GetStatus(p.LedgerService, p.Logger))
				r.Get("/statuses/{statusType}", controllers.GetStatus(p.LedgerService, p.Logger))
				r.Get("/history", controllers.GetHistory(p.LedgerService, p.Logger))
			})
		})

		r.Get("/posts/{postId}/orders", controllers.ListOrdersByPost(p.OrdersService, p.Logger))

		r.Route("/admin", func(r chi.Router) {
			r.Delete("/orders/{orderId}", controllers.DeleteOrder(p.OrdersService, p.Logger))
		})
	})

	return r
}
