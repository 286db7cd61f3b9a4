package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/yieldvault-backend/internal/http/handlers"
	httpMW "github.com/yungbote/yieldvault-backend/internal/http/middleware"
	"github.com/yungbote/yieldvault-backend/internal/observability"
	"github.com/yungbote/yieldvault-backend/internal/platform/ctxutil"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	VaultHandler   *httpH.VaultHandler
	HarvestHandler *httpH.HarvestHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	api.GET("/me", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"caller_id": ctxutil.CallerID(c.Request.Context())})
	})

	// Vaults
	if cfg.VaultHandler != nil {
		api.GET("/vaults", cfg.VaultHandler.List)
		api.POST("/vaults", cfg.VaultHandler.Provision)
		api.GET("/vaults/:id", cfg.VaultHandler.Get)
		api.GET("/vaults/:id/positions/:depositor", cfg.VaultHandler.Position)
		api.GET("/vaults/:id/yield", cfg.VaultHandler.Yield)
		api.GET("/vaults/:id/ledger", cfg.VaultHandler.Ledger)
		api.POST("/vaults/:id/deposit", cfg.VaultHandler.Deposit)
		api.POST("/vaults/:id/withdraw", cfg.VaultHandler.Withdraw)
		api.POST("/vaults/:id/claim", cfg.VaultHandler.Claim)
		api.POST("/vaults/:id/proceeds", cfg.VaultHandler.RecordProceeds)
		api.POST("/vaults/:id/strategies", cfg.VaultHandler.CreateStrategy)
		api.PUT("/vaults/:id/strategy", cfg.VaultHandler.SetStrategy)
		api.POST("/vaults/:id/pause", cfg.VaultHandler.Pause)
		api.POST("/vaults/:id/unpause", cfg.VaultHandler.Unpause)
	}

	// Harvest
	if cfg.HarvestHandler != nil {
		api.POST("/vaults/:id/harvest", cfg.HarvestHandler.Harvest)
		api.GET("/vaults/:id/harvest/quote", cfg.HarvestHandler.Quote)
		api.GET("/vaults/:id/harvests", cfg.HarvestHandler.List)
		api.POST("/vaults/:id/harvests/:harvest_id/resolve", cfg.HarvestHandler.Resolve)
	}

	return r
}
