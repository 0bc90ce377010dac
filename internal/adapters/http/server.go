package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
)

// NewApp builds the fiber application with every route mounted.
// Each request's user context carries a deadline of requestTimeout, which
// bounds the engine and inventory calls it makes. Zero disables it.
func NewApp(service Lifecycle, host domain.HostResource, requestTimeout time.Duration) *fiber.App {
	containerHandler := NewContainerHandler(service, host)
	proxyHandler := NewProxyHandler(service, host)

	app := fiber.New(fiber.Config{
		AppName:               "dockerhost",
		DisableStartupMessage: true,
	})
	app.Use(requestDeadline(requestTimeout))

	api := app.Group("/api")
	v1 := api.Group("/v1")
	containerHandler.Register(v1.Group("/containers"))

	app.All("/proxy/:id/*", proxyHandler.ProxyRequest)
	return app
}

func requestDeadline(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if timeout <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
