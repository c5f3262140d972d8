package controllers

import (
	"context"
	"errors"

	"pages-deployer/apperrors"
	"pages-deployer/middlewares"
	"pages-deployer/models"

	"github.com/gofiber/fiber/v2"
)

// AccountService registers users and logs them in.
type AccountService interface {
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
}

type AuthController struct {
	accounts AccountService
}

func NewAuthController(accounts AccountService) *AuthController {
	return &AuthController{accounts: accounts}
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	var data models.Credentials
	if err := middlewares.BindAndValidate(c, &data, "Password"); err != nil {
		return err
	}

	token, err := a.accounts.Register(c.UserContext(), data.Email, data.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"token": token})
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	var data models.Credentials
	if err := middlewares.BindAndValidate(c, &data, "Password"); err != nil {
		return err
	}

	token, err := a.accounts.Login(c.UserContext(), data.Email, data.Password)
	if errors.Is(err, apperrors.ErrUnauthorized) {
		// Unknown users and wrong passwords look the same and answer 400.
		return fiber.NewError(fiber.StatusBadRequest, "Invalid credentials")
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"token": token})
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"email": middlewares.Identity(c)})
}
