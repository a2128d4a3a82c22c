package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/icecreamshop/pkg/auth"
	"github.com/example/icecreamshop/pkg/config"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services are the business operations the gateway exposes.
type Services struct {
	Auth    *service.AuthService
	Catalog *service.CatalogService
	Cart    *service.CartService
	Orders  *service.OrderService
	Reviews *service.ReviewService
}

type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
	tokens   *auth.TokenManager
	services Services
	dbCheck  func(ctx context.Context) error
}

func NewGateway(cfg *config.Config, logger *zap.Logger, tokens *auth.TokenManager, services Services, dbCheck func(ctx context.Context) error) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(logger))
	router.Use(securityHeaders())
	router.Use(cors.New(corsConfig(cfg.HTTP.CORSOrigins)))

	g := &Gateway{
		config:   cfg,
		logger:   logger,
		router:   router,
		tokens:   tokens,
		services: services,
		dbCheck:  dbCheck,
	}
	g.setupRoutes()
	g.server = &http.Server{
		Addr:              cfg.Server.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

func (g *Gateway) setupRoutes() {
	g.router.GET("/health", g.health)

	api := g.router.Group("/api")
	api.Use(rateLimitMiddleware(g.config.HTTP.RateLimit, g.config.HTTP.RateBurst))
	api.Use(timeoutMiddleware(g.config.HTTP.RequestTimeout))

	authn := authMiddleware(g.tokens, g.logger)
	staff := requireRole(models.RoleAdmin, models.RoleManager)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", g.register)
		authGroup.POST("/login", g.login)
		authGroup.POST("/google-login", g.googleLogin)
		authGroup.GET("/me", authn, g.me)
	}

	products := api.Group("/products")
	{
		products.GET("", g.listProducts)
		products.GET("/:id", g.getProduct)
		products.POST("", authn, staff, g.createProduct)
		products.PUT("/:id", authn, staff, g.updateProduct)
		products.DELETE("/:id", authn, staff, g.deleteProduct)
	}

	cart := api.Group("/cart", authn)
	{
		cart.GET("", g.getCart)
		cart.DELETE("", g.clearCart)
		cart.POST("/items", g.addCartItem)
		cart.PUT("/items/:item_id", g.updateCartItem)
		cart.DELETE("/items/:item_id", g.removeCartItem)
	}

	orders := api.Group("/orders", authn)
	{
		orders.POST("", g.placeOrder)
		orders.GET("", g.listOrders)
		orders.GET("/:id", g.getOrder)
		orders.PATCH("/:id/status", staff, g.updateOrderStatus)
		orders.GET("/:id/history", staff, g.orderHistory)
	}

	reviews := api.Group("/reviews")
	{
		reviews.GET("", g.listReviews)
		reviews.POST("", authn, g.createReview)
	}

	g.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "route not found"})
	})
}

func (g *Gateway) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := g.dbCheck(ctx); err != nil {
		g.logger.Warn("Database health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}
