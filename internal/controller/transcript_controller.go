package controller

import (
	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/pkg/apperror"
	"shyra-hub-be/internal/pkg/serverutils"
	"shyra-hub-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ITranscriptController interface {
	RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler)
	List(ctx *fiber.Ctx) error
}

type transcriptController struct {
	transcriptService service.ITranscriptService
}

func NewTranscriptController(transcriptService service.ITranscriptService) ITranscriptController {
	return &transcriptController{transcriptService: transcriptService}
}

func (c *transcriptController) RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler) {
	h := r.Group("/transcripts", jwtMiddleware)
	h.Get("", c.List)
}

// List returns the caller's own transcript lines, newest first, optionally
// narrowed to one session.
func (c *transcriptController) List(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}

	var sessionId *uuid.UUID
	if raw := ctx.Query("session_id"); raw != "" {
		sid, err := uuid.Parse(raw)
		if err != nil {
			return apperror.NewValidation("invalid session_id", err)
		}
		sessionId = &sid
	}

	if !c.transcriptService.Enabled() {
		return ctx.JSON(serverutils.SuccessResponse("Transcript store is not configured", []dto.TranscriptResponse{}))
	}

	res, err := c.transcriptService.History(ctx.UserContext(), identity.Id, sessionId, ctx.QueryInt("limit", service.DefaultTranscriptLimit))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get transcripts", res))
}
