package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/adflow-systems/showads-connector/internal/connector"
)

// StatsSource exposes the connector's run counters.
type StatsSource interface {
	Snapshot() connector.Stats
}

// StatusHandler serves the connector's run state over HTTP.
type StatusHandler struct {
	logger *zap.Logger
	stats  StatsSource
}

func NewStatusHandler(logger *zap.Logger, stats StatsSource) *StatusHandler {
	return &StatusHandler{logger: logger, stats: stats}
}

// Status returns a snapshot of the current run counters.
func (h *StatusHandler) Status(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.stats.Snapshot())
}
