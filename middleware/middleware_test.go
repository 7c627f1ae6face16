package middleware

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"referral-ledger/services"

	"github.com/gofiber/fiber/v2"
)

func newApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers = append(handlers, func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		return c.SendString("ok:" + uid)
	})
	app.Get("/probe", handlers...)
	return app
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := newApp(GatewayAuthMiddleware("s3cret"))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong", "Bearer nope", fiber.StatusUnauthorized},
		{"bearer", "Bearer s3cret", fiber.StatusOK},
		{"raw", "s3cret", fiber.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/probe", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: status %d want %d", tc.name, resp.StatusCode, tc.want)
		}
	}
}

func TestUserContextAndRoles(t *testing.T) {
	app := newApp(UserContextMiddleware(), RequireRole("admin"))

	req := httptest.NewRequest("GET", "/probe", nil)
	if resp, _ := app.Test(req); resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("no user id: %d", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Roles", "gamer")
	if resp, _ := app.Test(req); resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("non-admin: %d", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Roles", "gamer, admin")
	resp, _ := app.Test(req)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != "ok:u1" {
		t.Fatalf("admin: %d %s", resp.StatusCode, body)
	}
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(_ context.Context, token, deviceID string) (*services.ValidateResponse, error) {
	if token != "good-token" {
		return nil, errors.New("auth validation failed: 401")
	}
	return &services.ValidateResponse{UserID: "u42", DeviceID: deviceID}, nil
}

func TestSSEAuthMiddleware(t *testing.T) {
	app := newApp(SSEAuthMiddleware(fakeValidator{}))

	cases := []struct {
		query string
		want  int
	}{
		{"", fiber.StatusBadRequest},
		{"?token=good-token", fiber.StatusBadRequest},
		{"?token=bad&device_id=d1", fiber.StatusUnauthorized},
		{"?token=good-token&device_id=d1", fiber.StatusOK},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", "/probe"+tc.query, nil))
		if err != nil {
			t.Fatalf("%q: %v", tc.query, err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("%q: status %d want %d", tc.query, resp.StatusCode, tc.want)
		}
	}
}
