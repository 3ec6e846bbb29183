package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/authorization"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/clock"
	commissiondomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	contractdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/contract/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/observability"
	obsmiddleware "github.com/CloserClaus/closer-claus-hub-sub004/internal/observability/logger"
	obsmetrics "github.com/CloserClaus/closer-claus-hub-sub004/internal/observability/metrics"
	obstracing "github.com/CloserClaus/closer-claus-hub-sub004/internal/observability/tracing"
	payoutdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	authorization.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	clock         clock.Clock
	authzSvc      authorization.Service
	contractSvc   contractdomain.Service
	commissionSvc commissiondomain.Service
	payoutSvc     payoutdomain.Service
	processor     payoutdomain.Processor
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Clock         clock.Clock
	AuthzSvc      authorization.Service
	ContractSvc   contractdomain.Service
	CommissionSvc commissiondomain.Service
	PayoutSvc     payoutdomain.Service
	Processor     payoutdomain.Processor
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		clock:         p.Clock,
		authzSvc:      p.AuthzSvc,
		contractSvc:   p.ContractSvc,
		commissionSvc: p.CommissionSvc,
		payoutSvc:     p.PayoutSvc,
		processor:     p.Processor,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Contracts --------
	api.POST("/contracts/:id/sign", s.SignContract)

	// -------- Commissions --------
	api.GET("/workspaces/:workspace_id/commissions", s.ListWorkspaceCommissions)
	api.POST("/commissions/:id/charge", s.ChargeCommission)

	// -------- Hiring & salaries --------
	api.POST("/workspaces/:workspace_id/hires", s.HireSDR)
	api.POST("/salary-payments/:id/charge", s.ChargeSalaryPayment)

	// -------- SDR payout accounts --------
	api.PUT("/sdrs/:id/payout-account", s.UpdatePayoutAccount)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminTokenRequired())

	admin.POST("/payouts/process",
		s.authorizeAction(authorization.ObjectPayout, authorization.ActionPayoutProcess),
		s.ProcessPayouts,
	)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
