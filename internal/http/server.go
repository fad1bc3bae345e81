package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"shopflow/internal/cart"
	"shopflow/internal/service"
)

const (
	SessionCookie   = "shopflow_session"
	SessionHeader   = "X-Session-ID"
	RequestIDHeader = "X-Request-ID"

	sessionMaxAge = 30 * 24 * 60 * 60
	ctxSessionID  = "session_id"
	ctxRequestID  = "request_id"
)

// Services зависимости HTTP слоя
type Services struct {
	Products *service.ProductService
	Orders   *service.OrderService
	Checkout *service.CheckoutService
	Carts    *cart.Registry
}

type Server struct {
	engine   *gin.Engine
	products *service.ProductService
	orders   *service.OrderService
	checkout *service.CheckoutService
	carts    *cart.Registry
	log      zerolog.Logger
}

func NewServer(svc Services, log zerolog.Logger) *Server {
	r := gin.New()
	r.Use(requestID(), requestLogger(log), gin.Recovery())
	s := &Server{
		engine:   r,
		products: svc.Products,
		orders:   svc.Orders,
		checkout: svc.Checkout,
		carts:    svc.Carts,
		log:      log,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := s.engine.Group("/api/v1")
	{
		products := v1.Group("/products")
		products.GET("", s.listProducts)
		products.GET("/featured", s.featuredProducts)
		products.GET("/categories", s.listCategories)
		products.GET("/:id", s.getProduct)

		shop := v1.Group("", session())
		c := shop.Group("/cart")
		c.GET("", s.getCart)
		c.POST("/items", s.addCartItem)
		c.PUT("/items", s.updateCartItem)
		c.DELETE("/items", s.removeCartItem)
		c.DELETE("", s.clearCart)
		c.PUT("/open", s.setCartOpen)

		shop.POST("/checkout/quote", s.quote)
		shop.POST("/checkout", s.placeOrder)

		orders := v1.Group("/orders")
		orders.GET("", s.listOrders)
		orders.GET("/:id", s.getOrder)
		orders.PUT("/:id/status", s.updateOrderStatus)
		orders.POST("/:id/cancel", s.cancelOrder)
	}
}

// requestID берёт id из заголовка или генерирует новый
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// requestLogger пишет одну строку на запрос
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := log.Info()
		if c.Writer.Status() >= 500 {
			ev = log.Error()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("error", c.Errors.String())
		}
		ev.Str("request_id", c.GetString(ctxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("url", c.Request.URL.String()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	}
}

// session определяет корзину покупателя: cookie, затем заголовок, иначе новый uuid
func session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(SessionCookie)
		if !validSession(id) {
			id = c.GetHeader(SessionHeader)
		}
		if !validSession(id) {
			id = uuid.NewString()
		}
		c.SetCookie(SessionCookie, id, sessionMaxAge, "/", "", false, true)
		c.Header(SessionHeader, id)
		c.Set(ctxSessionID, id)
		c.Next()
	}
}

func validSession(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
