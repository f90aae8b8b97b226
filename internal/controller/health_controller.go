package controller

import (
	"shyra-hub-be/internal/pkg/serverutils"
	"shyra-hub-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	healthService service.IHealthService
}

func NewHealthController(healthService service.IHealthService) IHealthController {
	return &healthController{healthService: healthService}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

// Health is public and always answers 200; engine trouble shows as "degraded".
func (c *healthController) Health(ctx *fiber.Ctx) error {
	res := c.healthService.Check(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("Health check", res))
}
