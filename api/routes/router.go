package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seralvarez/casillero-backend/api/controllers"
	"github.com/seralvarez/casillero-backend/api/middleware"
	authsvc "github.com/seralvarez/casillero-backend/internal/auth"
	"github.com/seralvarez/casillero-backend/internal/cart"
	"github.com/seralvarez/casillero-backend/internal/catalog"
	checkoutsvc "github.com/seralvarez/casillero-backend/internal/checkout"
	"github.com/seralvarez/casillero-backend/internal/pickup"
	"github.com/seralvarez/casillero-backend/internal/reservation"
	"github.com/seralvarez/casillero-backend/internal/settings"
	"github.com/seralvarez/casillero-backend/pkg/auth/session"
	"github.com/seralvarez/casillero-backend/pkg/config"
	"github.com/seralvarez/casillero-backend/pkg/logger"
	"github.com/seralvarez/casillero-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the HTTP surface needs. Grouping them in a struct
// keeps the wiring in cmd/api readable as services accumulate.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          pinger
	Redis       *redis.Client
	Sessions    *session.Manager
	Auth        authsvc.Service
	Catalog     catalog.Service
	Cart        cart.Service
	Checkout    checkoutsvc.Service
	Pickup      pickup.Service
	Settings    settings.Service
	Reservation *reservation.Windows
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Redis))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg)).Post("/register", controllers.AuthRegister(d.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, d.Sessions, logg)).Post("/logout", controllers.AuthLogout(d.Auth, logg))
	})

	// Public storefront reads.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(d.Catalog, logg))
		r.Get("/{id}", controllers.GetProduct(d.Catalog, logg))
	})
	r.Get("/api/v1/categories", controllers.ListCategories(d.Catalog, logg))
	r.Get("/api/v1/settings/store", controllers.GetStoreSettings(d.Settings, logg))

	// Authenticated storefront.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(d.Cart, logg))
			r.Post("/items", controllers.AddCartItem(d.Cart, logg))
			r.Put("/items/{productID}", controllers.SetCartItemQuantity(d.Cart, logg))
			r.Delete("/items/{productID}", controllers.RemoveCartItem(d.Cart, logg))
			r.Delete("/clear", controllers.ClearCart(d.Cart, logg))
			r.Get("/reservation", controllers.GetReservationWindow(d.Reservation, logg))
		})

		r.Post("/checkout", controllers.PlaceOrder(d.Checkout, logg))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(d.Checkout, logg))
			r.Get("/{id}", controllers.GetOrder(d.Checkout, logg))
		})

		r.Post("/pickup/verify", controllers.VerifyPickup(d.Pickup, logg))

		// Admin surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))

			r.Post("/products", controllers.CreateProduct(d.Catalog, logg))
			r.Put("/products/{id}", controllers.UpdateProduct(d.Catalog, logg))
			r.Delete("/products/{id}", controllers.DeleteProduct(d.Catalog, logg))
			r.Put("/settings/store", controllers.UpdateStoreSettings(d.Settings, logg))
		})
	})

	return r
}
