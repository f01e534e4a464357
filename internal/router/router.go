package router

import (
	"context"
	"net/http"
	"time"

	"genmart/internal/middleware"
	"genmart/internal/model"
	"genmart/internal/service"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps is everything the HTTP layer talks to.
type Deps struct {
	Settings *service.SettingsService
	Catalog  *service.CatalogService
	Coupons  *service.CouponService
	Cart     *service.CartService
	Orders   *service.OrderService
	Services *service.ServiceRequestService
	Listings *service.ListingService
	Reviews  *service.ReviewService
	Stats    *service.StatsService
	Audit    *service.AuditService

	DB    Pinger
	Redis *rd.Client // nil disables rate limiting

	JWTSecret  []byte
	RateLimit  int
	RateWindow time.Duration
	Logger     *zap.Logger
}

// Setup registers every HTTP route.
func Setup(r *gin.Engine, d Deps) {
	registerValidators()
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	r.GET("/health", healthCheck(d.DB, d.Redis))
	r.GET("/metrics", middleware.PrometheusHandler())

	limit := func(scope string) gin.HandlerFunc {
		if d.Redis == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RedisRateLimit(d.Redis, scope, d.RateLimit, d.RateWindow, d.Logger)
	}
	auth := middleware.Auth(d.JWTSecret)
	can := middleware.Authorize

	api := r.Group("/api")

	// public storefront
	api.GET("/settings", getSettings(d.Settings))
	api.GET("/generators", listProducts(d.Catalog, model.KindGenerator))
	api.GET("/generators/:slug", getProduct(d.Catalog, model.KindGenerator))
	api.GET("/parts", listProducts(d.Catalog, model.KindPart))
	api.GET("/parts/:slug", getProduct(d.Catalog, model.KindPart))
	api.GET("/categories", listCategories(d.Catalog))
	api.GET("/reviews", listReviews(d.Reviews))
	api.GET("/listings", listListings(d.Listings))
	api.GET("/listings/:id", middleware.OptionalAuth(d.JWTSecret), getListing(d.Listings))
	api.POST("/cart/quote", middleware.OptionalAuth(d.JWTSecret), quoteCart(d.Cart))

	// signed-in customers
	user := api.Group("", auth)
	user.GET("/coupons/validate", can("coupon", "validate"), limit("coupon"), validateCoupon(d.Coupons))

	user.POST("/orders", can("order", "create"), limit("checkout"), placeOrder(d.Orders))
	user.GET("/orders", can("order", "read"), listMyOrders(d.Orders))
	user.GET("/orders/:id", can("order", "read"), getOrder(d.Orders))
	user.PUT("/orders/:id", can("order", "cancel"), cancelOrder(d.Orders))

	user.POST("/services", can("service", "create"), createServiceRequest(d.Services))
	user.GET("/services", can("service", "read"), listMyServiceRequests(d.Services))
	user.GET("/services/:id", can("service", "read"), getServiceRequest(d.Services))
	user.PUT("/services/:id", can("service", "cancel"), cancelServiceRequest(d.Services))

	user.POST("/listings", can("listing", "create"), createListing(d.Listings))
	user.GET("/me/listings", can("listing", "read"), listMyListings(d.Listings))

	user.POST("/reviews", can("review", "create"), createReview(d.Reviews))
	user.GET("/wishlist", can("wishlist", "manage"), getWishlist(d.Reviews))
	user.POST("/wishlist", can("wishlist", "manage"), addToWishlist(d.Reviews))
	user.DELETE("/wishlist/:id", can("wishlist", "manage"), removeFromWishlist(d.Reviews))

	// back office
	admin := api.Group("/admin", auth)
	admin.GET("/stats", can("stats", "read"), getStats(d.Stats))
	admin.GET("/audit-logs", can("audit", "read"), listAuditLogs(d.Audit))
	admin.PUT("/settings", can("settings", "update"), updateSettings(d.Settings))

	admin.POST("/coupons", can("coupon", "manage"), createCoupon(d.Coupons))
	admin.GET("/coupons", can("coupon", "manage"), listCoupons(d.Coupons))
	admin.PATCH("/coupons/:id", can("coupon", "manage"), updateCoupon(d.Coupons))

	admin.GET("/products/low-stock", can("product", "read_admin"), lowStock(d.Catalog))
	admin.POST("/products/:family", can("product", "create"), createProduct(d.Catalog))
	admin.PATCH("/products/:family/:id/stock", can("product", "stock"), adjustStock(d.Catalog))
	admin.POST("/categories", can("category", "create"), createCategory(d.Catalog))

	admin.GET("/orders", can("order", "list_all"), listAllOrders(d.Orders))
	admin.PUT("/orders/:id/status", can("order", "update_status"), transitionOrder(d.Orders))
	admin.PUT("/orders/:id/payment", can("order", "update_payment"), updatePayment(d.Orders))

	admin.GET("/services", can("service", "list_all"), listAllServiceRequests(d.Services))
	admin.PUT("/services/:id/status", can("service", "update"), transitionServiceRequest(d.Services))

	admin.GET("/listings", can("listing", "list_all"), listAllListings(d.Listings))
	admin.PUT("/listings/:id", can("listing", "moderate"), moderateListing(d.Listings))
}

// healthCheck reports the database and, when configured, Redis.
func healthCheck(db Pinger, rdb *rd.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true
		if db != nil {
			checks["database"] = "ok"
			if err := db.PingContext(ctx); err != nil {
				checks["database"] = "down"
				healthy = false
			}
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "down"
				healthy = false
			}
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "checks": checks})
	}
}
