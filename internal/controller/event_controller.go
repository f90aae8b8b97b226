package controller

import (
	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/pkg/apperror"
	"shyra-hub-be/internal/pkg/serverutils"
	"shyra-hub-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IEventController interface {
	RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler)
	Submit(ctx *fiber.Ctx) error
	SubmitSync(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type eventController struct {
	eventService      service.IEventService
	submissionService service.ISubmissionService
}

func NewEventController(eventService service.IEventService, submissionService service.ISubmissionService) IEventController {
	return &eventController{
		eventService:      eventService,
		submissionService: submissionService,
	}
}

func (c *eventController) RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler) {
	h := r.Group("/events", jwtMiddleware)
	h.Post("", c.Submit)
	h.Post("sync", c.SubmitSync)
	h.Get("history", c.History)
	h.Get("stats", c.Stats)
	h.Get(":id", c.Show)
}

func (c *eventController) parseSubmit(ctx *fiber.Ctx) (*dto.SubmitEventRequest, error) {
	var req dto.SubmitEventRequest
	if err := ctx.BodyParser(&req); err != nil {
		return nil, apperror.NewValidation("malformed request body", err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *eventController) Submit(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	req, err := c.parseSubmit(ctx)
	if err != nil {
		return err
	}

	res, err := c.submissionService.SubmitAsync(ctx.UserContext(), *identity, req)
	if err != nil {
		return err
	}

	body := serverutils.SuccessResponse("Event accepted", res)
	body.Code = fiber.StatusAccepted
	return ctx.Status(fiber.StatusAccepted).JSON(body)
}

func (c *eventController) SubmitSync(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	req, err := c.parseSubmit(ctx)
	if err != nil {
		return err
	}

	res, err := c.submissionService.SubmitSync(ctx.UserContext(), *identity, req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Event processed", res))
}

func (c *eventController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperror.NewValidation("invalid event id", err)
	}

	res, err := c.eventService.GetEventStatus(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get event", res))
}

func (c *eventController) History(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", service.DefaultHistoryLimit)
	res := c.eventService.GetHistory(ctx.UserContext(), limit)
	return ctx.JSON(serverutils.SuccessResponse("Success get event history", res))
}

func (c *eventController) Stats(ctx *fiber.Ctx) error {
	res := c.eventService.GetStats(ctx.UserContext())
	return ctx.JSON(serverutils.SuccessResponse("Success get event stats", res))
}
