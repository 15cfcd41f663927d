package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the Gin engine with required routes and middlewares. All
// /api routes sit behind the actor middleware: session handling itself lives
// in the auth collaborator, which forwards the authenticated user in X-User.
func NewRouter(handler *StockHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", requireActor())
	api.GET("/stock", handler.GetStock)
	api.GET("/stock/:id", handler.GetStockByID)
	api.GET("/stock/:id/quantity", handler.GetQuantity)
	api.POST("/stock", handler.CreateStock)
	api.PUT("/stock", handler.ModifyStock)
	api.GET("/transactions", handler.GetTransactions)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetHeader("X-User")
		if actor == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
