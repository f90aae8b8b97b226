package controller

import (
	"shyra-hub-be/internal/mapper"
	"shyra-hub-be/internal/pkg/serverutils"
	"shyra-hub-be/internal/repository/memory"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler)
	Stats(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessions *memory.SessionRepository
	mapper   *mapper.SessionMapper
}

func NewSessionController(sessions *memory.SessionRepository) ISessionController {
	return &sessionController{
		sessions: sessions,
		mapper:   mapper.NewSessionMapper(),
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler) {
	h := r.Group("/sessions", jwtMiddleware)
	h.Get("stats", c.Stats)
}

func (c *sessionController) Stats(ctx *fiber.Ctx) error {
	res := c.mapper.ToStatsResponse(c.sessions.GetStats())
	return ctx.JSON(serverutils.SuccessResponse("Success get session stats", res))
}
