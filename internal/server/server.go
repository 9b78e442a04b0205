package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustJay7/judicial-case-sync/internal/api"
	"github.com/JustJay7/judicial-case-sync/internal/cache"
	"github.com/JustJay7/judicial-case-sync/internal/config"
	"github.com/JustJay7/judicial-case-sync/internal/consult"
	"github.com/JustJay7/judicial-case-sync/internal/database"
	"github.com/JustJay7/judicial-case-sync/internal/metrics"
	"github.com/JustJay7/judicial-case-sync/internal/portal"
	"github.com/JustJay7/judicial-case-sync/internal/syncer"
	"github.com/JustJay7/judicial-case-sync/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// Components are the explicit instances behind one process. Nothing here is a
// package-level singleton.
type Components struct {
	Store    *database.Store
	Views    *cache.ViewCache
	Portal   *portal.Client
	Syncer   *syncer.Coordinator
	Service  *consult.Service
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// Wire builds every component from cfg around an open database.
func Wire(cfg *config.Config, db *gorm.DB, log *logger.Logger) *Components {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store := database.NewStore(db)
	views := cache.NewViewCache(cfg.CacheSize, cfg.CacheTTL)
	client := portal.New(cfg, log.With("component", "portal"), m)
	coord := syncer.NewCoordinator(store, log.With("component", "syncer"), m)

	svc := consult.New(consult.Deps{
		Store:   store,
		Portal:  client,
		Syncer:  coord,
		Views:   views,
		Config:  cfg,
		Logger:  log.With("component", "consult"),
		Metrics: m,
	})

	return &Components{
		Store:    store,
		Views:    views,
		Portal:   client,
		Syncer:   coord,
		Service:  svc,
		Metrics:  m,
		Registry: reg,
	}
}

type Server struct {
	cfg        *config.Config
	logger     *logger.Logger
	router     *gin.Engine
	components *Components
}

func New(cfg *config.Config, db *gorm.DB, logger *logger.Logger) *Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	components := Wire(cfg, db, logger)

	h := api.NewHandlers(components.Service, components.Store, components.Views, logger)
	api.SetupRoutes(router, h, components.Registry)

	return &Server{
		cfg:        cfg,
		logger:     logger,
		router:     router,
		components: components,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.cfg.PortalTimeout*2 + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info("Server started", "address", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}

	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
		return err
	}

	s.logger.Info("Server exited gracefully")
	return nil
}

func loggingMiddleware(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		fields := []interface{}{
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"user_agent", c.Request.UserAgent(),
		}
		if requester := c.GetHeader(api.RequesterHeader); requester != "" {
			fields = append(fields, "requester_id", requester)
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("HTTP Request", fields...)
			return
		}
		logger.Info("HTTP Request", fields...)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+api.RequesterHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
