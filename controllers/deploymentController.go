package controllers

import (
	"context"

	"pages-deployer/middlewares"
	"pages-deployer/models"
	"pages-deployer/utils"

	"github.com/gofiber/fiber/v2"
)

// DeploymentAcceptor records a deployment request and starts it in the background.
type DeploymentAcceptor interface {
	Accept(ctx context.Context, owner string, req models.DeployRequest) (uint, error)
}

// DeploymentReader answers history queries for one owner.
type DeploymentReader interface {
	ListForOwner(ctx context.Context, owner string) ([]models.Deployment, error)
	GetForOwner(ctx context.Context, owner string, id uint) (*models.Deployment, error)
}

type DeploymentController struct {
	acceptor DeploymentAcceptor
	reader   DeploymentReader
}

func NewDeploymentController(acceptor DeploymentAcceptor, reader DeploymentReader) *DeploymentController {
	return &DeploymentController{acceptor: acceptor, reader: reader}
}

// CreateDeployment answers as soon as the processing row exists; clients poll
// the history endpoints for the outcome.
func (d *DeploymentController) CreateDeployment(c *fiber.Ctx) error {
	var req models.DeployRequest
	// Caller-supplied values that are echoed back or published stay verbatim.
	if err := middlewares.BindAndValidate(c, &req, "Secret", "TargetGitHubToken", "Nonce", "Brief", "Checks"); err != nil {
		return err
	}

	// A valid bearer token names the owner; otherwise the body's email is trusted.
	owner := middlewares.Identity(c)
	if owner == "" {
		owner = req.Email
	}

	id, err := d.acceptor.Accept(c.UserContext(), owner, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":        models.StatusProcessing,
		"deployment_id": id,
	})
}

func (d *DeploymentController) GetDeployments(c *fiber.Ctx) error {
	deployments, err := d.reader.ListForOwner(c.UserContext(), middlewares.Identity(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deployments": deployments})
}

func (d *DeploymentController) GetDeployment(c *fiber.Ctx) error {
	id, ok := utils.ParseID(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "invalid deployment id")
	}
	deployment, err := d.reader.GetForOwner(c.UserContext(), middlewares.Identity(c), id)
	if err != nil {
		return err
	}
	return c.JSON(deployment)
}
