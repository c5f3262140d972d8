package middlewares

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"pages-deployer/apperrors"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type signup struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password"`
}

func TestErrorHandler_Mapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"fiber", fiber.NewError(fiber.StatusTeapot, "short and stout"), fiber.StatusTeapot, "short and stout"},
		{"invalid input", apperrors.New(apperrors.ErrInvalidInput, "Password required"), fiber.StatusBadRequest, "Password required"},
		{"conflict", apperrors.New(apperrors.ErrConflict, "User already exists"), fiber.StatusBadRequest, "User already exists"},
		{"unauthorized", apperrors.New(apperrors.ErrUnauthorized, "Invalid secret"), fiber.StatusUnauthorized, "Invalid secret"},
		{"not found", apperrors.New(apperrors.ErrNotFound, "Deployment not found"), fiber.StatusNotFound, "Deployment not found"},
		{"internal", errors.New("db exploded: password=hunter2"), fiber.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
			app.Get("/", func(c *fiber.Ctx) error { return tc.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			var body map[string]any
			raw, _ := io.ReadAll(resp.Body)
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.message, body["message"])
		})
	}
}

func TestBindAndValidate(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Post("/", func(c *fiber.Ctx) error {
		var s signup
		if err := BindAndValidate(c, &s, "Password"); err != nil {
			return err
		}
		return c.JSON(s)
	})

	post := func(body string) (int, map[string]any) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		raw, _ := io.ReadAll(resp.Body)
		require.NoError(t, json.Unmarshal(raw, &out))
		return resp.StatusCode, out
	}

	status, out := post(`{"email":"  a@x.io ","password":" pw "}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "a@x.io", out["email"])
	assert.Equal(t, " pw ", out["password"])

	status, out = post(`{"email":"   "}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation failed", out["message"])
	assert.Equal(t, map[string]any{"Email": "required"}, out["errors"])

	status, out = post(`{"email":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid request body", out["message"])
}

func TestRequestLogger_SetsRequestIDAndFinalStatus(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Use(RequestID())
	app.Use(RequestLogger(zap.NewNop()))
	app.Get("/missing", func(c *fiber.Ctx) error {
		return apperrors.New(apperrors.ErrNotFound, "nothing here")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}
