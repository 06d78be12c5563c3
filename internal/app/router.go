package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"hail/internal/handler"
	"hail/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler    *handler.RideHandler
	CouponHandler  *handler.CouponHandler
	AccountHandler *handler.AccountHandler
	WSHandler      *handler.WSHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.Idempotency(deps.RedisClient))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Ride lifecycle.
	ride := router.Group("/ride")
	{
		ride.POST("", deps.RideHandler.CreateRide)
		ride.GET("/:rideId", deps.RideHandler.GetRide)
		ride.POST("/accept/:rideId", deps.RideHandler.AcceptRide)
		ride.POST("/reject/:rideId", deps.RideHandler.RejectRide)
		ride.POST("/reached/:rideId", deps.RideHandler.DriverReached)
		ride.POST("/start/:rideId", deps.RideHandler.StartRide)
		ride.POST("/complete/:rideId", deps.RideHandler.CompleteRide)
		ride.POST("/cancel/:rideId", deps.RideHandler.CancelRide)
		ride.POST("/reassign-driver/:rideId", deps.RideHandler.ReassignDriver)
	}

	// Promotions.
	coupon := router.Group("/coupon")
	{
		coupon.POST("/apply", deps.CouponHandler.Apply)
		coupon.POST("/remove", deps.CouponHandler.Remove)
	}

	// Accounts (the minimal identity surface the core consumes).
	router.POST("/riders", deps.AccountHandler.RegisterRider)
	router.POST("/drivers", deps.AccountHandler.RegisterDriver)

	// Realtime notifications.
	router.GET("/ws", deps.WSHandler.Connect)

	return router
}
