package bootstrap

import (
	"digest_server/infra/database"
	"digest_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// RegisterDevRoutes exposes pool health, latency percentiles and circuit breaker state.
// Only enable in development.
func RegisterDevRoutes(app *fiber.App, deps *Dependencies) {
	dev := app.Group("/dev")

	dev.Get("/stats", func(c *fiber.Ctx) error {
		stats := fiber.Map{
			"driver": deps.Config.DatabaseDriver,
		}
		if deps.DB != nil {
			stats["postgres"] = database.GetPoolStats(deps.DB)
		}
		if deps.SQLDB != nil {
			stats["sql"] = metrics.AssessPool(deps.SQLDB.Stats())
		}
		if deps.Redis != nil {
			stats["redis"] = database.GetRedisStats(deps.Redis)
		}
		if deps.LLMClient != nil {
			stats["llmBreaker"] = deps.LLMClient.BreakerState().String()
		}
		stats["latency"] = metrics.Global().Snapshot()
		return c.JSON(fiber.Map{"ok": true, "data": stats})
	})
}
