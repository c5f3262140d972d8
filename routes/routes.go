package routes

import (
	"pages-deployer/controllers"
	"pages-deployer/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers bundles what Register wires.
type Handlers struct {
	Auth        *controllers.AuthController
	Deployments *controllers.DeploymentController
	Tokens      *middlewares.TokenIssuer
	Gatherer    prometheus.Gatherer
}

// Register wires all HTTP routes.
func Register(app *fiber.App, h Handlers) {
	app.Get("/", controllers.Root)
	if h.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}

	// Public auth endpoints
	app.Post("/auth/register", h.Auth.Register)
	app.Post("/auth/login", h.Auth.Login)

	// Deployment intake: a bearer token is optional but must be valid when sent.
	optional := middlewares.OptionalAuth(h.Tokens)
	app.Post("/deploy-requests", optional, h.Deployments.CreateDeployment)
	app.Post("/api-endpoint", optional, h.Deployments.CreateDeployment)

	// Protected endpoints (JWT auth)
	required := middlewares.RequireAuth(h.Tokens)
	app.Get("/me", required, h.Auth.Me)
	app.Get("/deployments", required, h.Deployments.GetDeployments)
	app.Get("/deployments/:id", required, h.Deployments.GetDeployment)
}
