package middlewares

import (
	"pages-deployer/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BindAndValidate parses the JSON body into dst, trims its strings (except the
// fields named in keep) and validates it.
// Returns fiber.ErrBadRequest for parse errors and validator.ValidationErrors for validation issues.
func BindAndValidate(c *fiber.Ctx, dst interface{}, keep ...string) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizeDTO(dst, keep...)
	return validate.Struct(dst)
}
