package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopmate/storefront-backend/api/controllers"
	cartcontrollers "github.com/shopmate/storefront-backend/api/controllers/cart"
	"github.com/shopmate/storefront-backend/api/middleware"
	"github.com/shopmate/storefront-backend/internal/auth"
	"github.com/shopmate/storefront-backend/internal/cart"
	"github.com/shopmate/storefront-backend/pkg/config"
	"github.com/shopmate/storefront-backend/pkg/logger"
	pkgredis "github.com/shopmate/storefront-backend/pkg/redis"
)

// Deps bundles everything the router needs wired in.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          *pkgredis.Client
	SessionChecker auth.SessionChecker
	AuthService    auth.Service
	CartService    cart.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var cachePinger controllers.Pinger
	var idemStore pkgredis.IdempotencyStore
	if deps.Redis != nil {
		cachePinger = deps.Redis
		idemStore = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, cachePinger))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.Idempotency(idemStore, cfg.Cart.IdempotencyTTL, logg)).Post("/register", controllers.AuthRegister(deps.AuthService, logg))
		r.Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.AuthService, logg))
		r.With(middleware.Auth(cfg.JWT, deps.SessionChecker, logg)).Post("/logout", controllers.AuthLogout(deps.AuthService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionChecker, logg))
		r.Use(middleware.Idempotency(idemStore, cfg.Cart.IdempotencyTTL, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.Get(deps.CartService, logg))
			r.Delete("/", cartcontrollers.Clear(deps.CartService, logg))
			r.Route("/items", func(r chi.Router) {
				r.Post("/", cartcontrollers.AddItem(deps.CartService, logg))
				r.Patch("/{productID}", cartcontrollers.UpdateQuantity(deps.CartService, logg))
				r.Delete("/{productID}", cartcontrollers.RemoveItem(deps.CartService, logg))
			})
		})
	})

	return r
}
