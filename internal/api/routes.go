package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/adflow-systems/showads-connector/internal/journal"
)

func RegisterRoutes(app *fiber.App, nc *nats.Conn, jrnl journal.Journal, statusHandler *StatusHandler) {
	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":    "ok",
			"journal": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		if nc != nil {
			if !nc.IsConnected() {
				checks["nats"] = "disconnected"
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
				checks["nats"] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		} else {
			checks["nats"] = "not configured"
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := jrnl.HealthCheck(healthCtx); err != nil {
			checks["journal"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	app.Get("/status", statusHandler.Status)
}
