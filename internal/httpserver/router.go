package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	cartsvc "storefront/internal/service/cart"
)

type AuthService interface {
	Register(ctx context.Context, username, password, role string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, string, error)
	LookupByToken(ctx context.Context, token string) (*domain.User, error)
	Logout(ctx context.Context, token string) error
	AccessTTLSeconds() int
}

type CatalogService interface {
	Get(ctx context.Context, key string) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

type CartService interface {
	AddToCart(ctx context.Context, customerKey, productKey string) (*domain.CartLine, error)
	RemoveFromCart(ctx context.Context, customerKey, productKey string) (cartsvc.RemoveResult, error)
	UpdateQuantities(ctx context.Context, customerKey string, updates []cartsvc.QuantityUpdate) (cartsvc.UpdateResult, error)
	ViewCart(ctx context.Context, customerKey string) (domain.CartView, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, username string) ([]domain.OrderConfirmation, error)
}

type OrderService interface {
	UpdateStatus(ctx context.Context, orderKey, status, expectedVersion string) (domain.Order, error)
	DeleteOrder(ctx context.Context, orderKey string) error
	Get(ctx context.Context, orderKey string) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	ListForUser(ctx context.Context, username string) ([]domain.Order, error)
	Create(ctx context.Context, actorUsername, role, customerKey, productKey string, quantity int) (domain.Order, error)
	CustomerByUsername(ctx context.Context, username string) (domain.Customer, error)
}

// Deps are the services behind the routes.
type Deps struct {
	AuthSvc     AuthService
	CatalogSvc  CatalogService
	CartSvc     CartService
	CheckoutSvc CheckoutService
	OrderSvc    OrderService
	Metrics     *metrics.Metrics
	CORSOrigins []string
	ServiceName string
	// ReadyChecks are optional dependencies reported by /readyz.
	ReadyChecks map[string]Pinger
}

func (d Deps) validate() error {
	switch {
	case d.AuthSvc == nil:
		return errors.New("auth service required")
	case d.CatalogSvc == nil:
		return errors.New("catalog service required")
	case d.CartSvc == nil:
		return errors.New("cart service required")
	case d.CheckoutSvc == nil:
		return errors.New("checkout service required")
	case d.OrderSvc == nil:
		return errors.New("order service required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db Pinger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "storefront-api"
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(logger, db, deps.ReadyChecks))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	api := router.Group("/")
	api.Use(otelgin.Middleware(serviceName))

	h := &handlers{deps: deps, logger: logger}

	api.POST("/auth/register", h.register)
	api.POST("/auth/token", h.token)

	authed := api.Group("/")
	authed.Use(authMiddleware(deps.AuthSvc))
	authed.POST("/auth/logout", h.logout)
	authed.GET("/me", h.me)
	authed.GET("/products", h.listProducts)
	authed.GET("/products/:productKey", h.getProduct)

	customer := authed.Group("/me")
	customer.Use(requireRole(domain.RoleCustomer))
	customer.GET("/cart", h.viewCart)
	customer.POST("/cart/items", h.addToCart)
	customer.PUT("/cart/items", h.updateQuantities)
	customer.DELETE("/cart/items/:productKey", h.removeFromCart)
	customer.POST("/checkout", h.checkout)
	customer.GET("/orders", h.myOrders)

	authed.POST("/orders", requireRole(domain.RoleCustomer, domain.RoleAdmin), h.createOrder)
	authed.GET("/customers/by-username/:username", requireRole(domain.RoleAdmin), h.customerByUsername)

	admin := authed.Group("/orders")
	admin.Use(requireRole(domain.RoleAdmin))
	admin.GET("", h.listOrders)
	admin.GET("/:orderKey", h.getOrder)
	admin.PATCH("/:orderKey/status", h.updateOrderStatus)
	admin.DELETE("/:orderKey", h.deleteOrder)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-Match"},
		ExposeHeaders:    []string{"ETag"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}
