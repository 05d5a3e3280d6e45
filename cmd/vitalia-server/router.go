package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/vitalia/portal/internal/config"
	"github.com/vitalia/portal/internal/domain/account"
	"github.com/vitalia/portal/internal/domain/consultation"
	"github.com/vitalia/portal/internal/domain/health"
	"github.com/vitalia/portal/internal/domain/insights"
	"github.com/vitalia/portal/internal/domain/profile"
	"github.com/vitalia/portal/internal/platform/auth"
	"github.com/vitalia/portal/internal/platform/blobstore"
	"github.com/vitalia/portal/internal/platform/db"
	"github.com/vitalia/portal/internal/platform/llm"
	"github.com/vitalia/portal/internal/platform/middleware"
	"github.com/vitalia/portal/internal/platform/notification"
	"github.com/vitalia/portal/internal/platform/websocket"
)

// sessionBackend keeps sign-in sessions and password reset tokens.
type sessionBackend interface {
	auth.SessionStore
	auth.ResetTokenStore
}

// deps are the connected backends the router is built from.
type deps struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pool     db.Beginner
	dbHealth echo.HandlerFunc
	sessions sessionBackend
	blobs    blobstore.BlobStore
	mailer   notification.Mailer
	model    llm.Completer
}

func newRouter(d deps) *echo.Echo {
	cfg, logger := d.cfg, d.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Client-Info", auth.APIKeyHeader},
	}))
	e.Use(middleware.BodyLimit("1M", "3M"))
	e.Use(auth.APIKeyMiddleware(cfg.PublicAPIKey))

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Tokens:   tokens,
		Sessions: d.sessions,
		Skipper:  auth.AuthSkipper,
	}))
	e.Use(db.IdentityMiddleware())

	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	limiter := middleware.RateLimit(rl)

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if d.dbHealth != nil {
		e.GET("/health/db", d.dbHealth)
	}

	// Repositories
	profileRepo := profile.NewRepoPG(d.pool)
	accountRepo := account.NewRepoPG(d.pool, profileRepo)

	// Services
	profileSvc := profile.NewService(profileRepo, d.blobs, logger)
	accountSvc := account.NewService(accountRepo, profileRepo, account.Config{
		Tokens:    tokens,
		Sessions:  d.sessions,
		Resets:    d.sessions,
		Mailer:    d.mailer,
		PublicURL: cfg.PublicURL,
	}, logger)
	healthSvc := health.NewService(
		health.NewSymptomRepoPG(d.pool),
		health.NewBMIRepoPG(d.pool),
		health.NewVitalsRepoPG(d.pool),
		logger,
	)
	hub := websocket.NewHub(logger)
	consultationSvc := consultation.NewService(
		consultation.NewRepoPG(d.pool),
		consultation.NewMessageRepoPG(d.pool),
		profileRepo,
		hub,
		logger,
	)
	insightsSvc := insights.NewService(d.model, cfg.LLMKey(), logger)

	// Auth
	authGroup := e.Group("/auth/v1", limiter)
	account.NewHandler(accountSvc).RegisterRoutes(authGroup)

	// Model-backed functions
	fnGroup := e.Group("/functions/v1", limiter)
	insights.NewHandler(insightsSvc).RegisterRoutes(fnGroup)

	// Portal API
	apiV1 := e.Group("/api/v1", limiter)
	profile.NewHandler(profileSvc).RegisterRoutes(apiV1)
	health.NewHandler(healthSvc).RegisterRoutes(apiV1)
	consultation.NewHandler(consultationSvc).RegisterRoutes(apiV1)

	// Realtime
	websocket.NewHandler(hub, consultationSvc.Authorize, cfg.CORSOrigins).RegisterRoutes(e.Group(""))

	return e
}
