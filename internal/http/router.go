package http

import (
	"context"
	"html/template"
	"log/slog"

	"github.com/geocoder89/memberhub/internal/config"
	"github.com/geocoder89/memberhub/internal/http/flash"
	"github.com/geocoder89/memberhub/internal/http/handlers"
	"github.com/geocoder89/memberhub/internal/http/middlewares"
	"github.com/geocoder89/memberhub/internal/http/views"
	"github.com/geocoder89/memberhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Sessions is what the router needs from the session authenticator.
type Sessions interface {
	handlers.Authenticator
	middlewares.SessionResolver
}

type RouterDeps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Auth     Sessions
	Reset    handlers.PasswordResetter
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	// Ping backs /readyz; nil means always ready.
	Ping func(ctx context.Context) error
	// Templates defaults to the embedded views.
	Templates *template.Template
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	tmpl := d.Templates
	if tmpl == nil {
		tmpl = views.MustTemplates()
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)

	// middleware

	r.Use(otelgin.Middleware("memberhub-api"))
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(d.Prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders(d.Cfg.IsProd()))
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.OriginGuard(d.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(d.Cfg.MaxBodyBytes))

	// probes and metrics skip flash and session handling
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", observability.MetricsHandler(d.Gatherer))
	}

	cookie := middlewares.SessionCookie{Name: d.Cfg.SessionCookieName, Secure: d.Cfg.IsProd()}
	sessions := middlewares.NewSessionMiddleware(d.Auth, cookie)

	authHandler := handlers.NewAuthHandler(d.Auth, cookie, log)
	resetHandler := handlers.NewResetHandler(d.Reset, d.Cfg.PublicBaseURL, log)

	pages := r.Group("/")
	pages.Use(flash.Middleware(d.Cfg.IsProd()))
	pages.Use(sessions.LoadSession())
	pages.Use(middlewares.RequireForm())

	pages.GET("/", func(ctx *gin.Context) {
		flash.Redirect(ctx, "/login")
	})

	anon := pages.Group("/")
	anon.Use(sessions.RequireAnonymous())
	anon.GET("/login", authHandler.LoginPage)
	anon.GET("/signup", authHandler.SignupPage)

	pages.POST("/login", authHandler.Login)
	pages.POST("/signup", authHandler.Signup)
	pages.GET("/details", authHandler.DetailsPage)
	pages.POST("/details", authHandler.Details)
	pages.GET("/logout", authHandler.Logout)

	pages.GET("/reset", resetHandler.RequestPage)
	pages.POST("/reset", resetHandler.Request)
	pages.GET("/reset/:token", resetHandler.NewPasswordPage)
	pages.POST("/reset-password/:token", resetHandler.Complete)

	member := pages.Group("/")
	member.Use(sessions.RequireAuthenticated())
	member.GET("/dashboard", authHandler.Dashboard)
	member.GET("/search", authHandler.Search)

	r.NoRoute(flash.Middleware(d.Cfg.IsProd()), sessions.LoadSession(), handlers.NotFound)

	return r
}
