// Package app assembles the deployer from its configuration.
package app

import (
	"fmt"

	"pages-deployer/config"
	"pages-deployer/controllers"
	"pages-deployer/metrics"
	"pages-deployer/middlewares"
	"pages-deployer/routes"
	"pages-deployer/services"
	"pages-deployer/stores"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the wired HTTP server plus the background dispatcher it feeds.
type App struct {
	Fiber      *fiber.App
	Dispatcher *services.Dispatcher
}

// Options overrides collaborators, mainly for tests. Nil fields get the defaults
// built from the configuration.
type Options struct {
	Hosting   services.HostingGateway
	Generator services.ContentGenerator
	Notifier  services.EvaluatorNotifier
	Registry  *prometheus.Registry
}

// New wires stores, services, controllers and routes on top of db.
func New(cfg *config.Config, db *gorm.DB, log *zap.Logger, opts Options) (*App, error) {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.New(reg)

	hosting := opts.Hosting
	if hosting == nil {
		gw, err := services.NewGitHubGateway(cfg.GitHubAPIURL)
		if err != nil {
			return nil, fmt.Errorf("github gateway: %w", err)
		}
		hosting = gw
	}
	generator := opts.Generator
	if generator == nil {
		generator = services.NewGenerator(cfg, log, m)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = services.NewNotifier()
	}

	credentials := stores.NewCredentialStore(db)
	deploymentLog := stores.NewDeploymentLog(db)
	tokens := middlewares.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	dispatcher := services.NewDispatcher(log)
	worker := services.NewWorker(cfg, generator, hosting, notifier, deploymentLog, log, m)
	deployments := services.NewDeployments(cfg.SharedSecret, deploymentLog, worker, dispatcher, log)
	accounts := services.NewAccounts(credentials, tokens)

	f := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler(log),
		BodyLimit:    cfg.BodyLimitBytes,
	})
	f.Use(middlewares.RequestID())
	f.Use(middlewares.RequestLogger(log.Named("http")))
	f.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
	}))
	if cfg.RateLimitMax > 0 {
		f.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: cfg.RateLimitWindow,
		}))
	}

	routes.Register(f, routes.Handlers{
		Auth:        controllers.NewAuthController(accounts),
		Deployments: controllers.NewDeploymentController(deployments, deploymentLog),
		Tokens:      tokens,
		Gatherer:    reg,
	})

	return &App{Fiber: f, Dispatcher: dispatcher}, nil
}
