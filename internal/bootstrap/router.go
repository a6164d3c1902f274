package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/config"
	httpapi "github.com/GoSim-25-26J-441/project-collab/internal/api/http"
	"github.com/GoSim-25-26J-441/project-collab/internal/api/http/middleware"
	collabhttp "github.com/GoSim-25-26J-441/project-collab/internal/collab/http"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/service"
)

type RouterDeps struct {
	ServiceName string
	Config      *config.Config
	Service     *service.Service
	Auth        gin.HandlerFunc
	DB          httpapi.Pinger
	Notify      httpapi.Pinger
	Logger      *zap.Logger
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(dep.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id", "X-User-Id", "X-User-Email"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Config.App.Version, dep.DB, dep.Notify)
	healthHandler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	collab := collabhttp.New(dep.Service, dep.Config.Server.StreamKeepAlive, dep.Logger)
	limiter := middleware.NewRateLimiter(dep.Config.RateLimit.RPS, dep.Config.RateLimit.Burst)

	api := r.Group("/api/v1")
	api.Use(dep.Auth)
	api.Use(limiter.Middleware())
	api.Use(collab.SyncCaller())
	collab.Register(api)

	return r
}
