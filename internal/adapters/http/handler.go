package http

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-dockerhost/internal/adapters/docker"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
)

// Lifecycle is the subset of services.Lifecycle the handlers need.
type Lifecycle interface {
	List(ctx context.Context, ec domain.ExecContext) (json.RawMessage, error)
	Deploy(ctx context.Context, ec domain.ExecContext, req domain.DeployRequest) (domain.DeployedInstance, error)
	Start(ctx context.Context, ec domain.ExecContext, handle string) (string, error)
	Stop(ctx context.Context, ec domain.ExecContext, handle string) (string, error)
	Destroy(ctx context.Context, ec domain.ExecContext, handle string) (string, error)
	Inspect(ctx context.Context, ec domain.ExecContext, handle string) (domain.ContainerState, error)
	Logs(ctx context.Context, ec domain.ExecContext, handle string) ([]byte, error)
	Resolve(ctx context.Context, ec domain.ExecContext, handle string) (domain.NetworkBinding, error)
	RefreshIP(ctx context.Context, ec domain.ExecContext, handle string) (domain.NetworkBinding, error)
}

// ReservationHeader carries the platform reservation id on every request.
const ReservationHeader = "X-Reservation-Id"

type ContainerHandler struct {
	service Lifecycle
	host    domain.HostResource
}

func NewContainerHandler(service Lifecycle, host domain.HostResource) *ContainerHandler {
	return &ContainerHandler{service: service, host: host}
}

// Register mounts the container routes on r.
func (h *ContainerHandler) Register(r fiber.Router) {
	r.Get("/", h.ListContainers)
	r.Post("/", h.DeployContainer)
	r.Get("/:id", h.InspectContainer)
	r.Get("/:id/logs", h.GetContainerLogs)
	r.Post("/:id/start", h.StartContainer)
	r.Post("/:id/stop", h.StopContainer)
	r.Post("/:id/refresh-ip", h.RefreshIP)
	r.Delete("/:id", h.DestroyContainer)
}

func (h *ContainerHandler) execContext(c *fiber.Ctx) domain.ExecContext {
	return domain.ExecContext{
		ReservationID: c.Get(ReservationHeader),
		Host:          h.host,
		Target:        domain.Target{Name: c.Query("resource"), UID: c.Params("id")},
	}
}

func (h *ContainerHandler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.service.List(c.UserContext(), h.execContext(c))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(containers)
}

type DeployContainerRequest struct {
	AppName string `json:"app_name"`
	Image   string `json:"image"`
	Env     string `json:"env"`
	Ports   string `json:"ports"`
}

func (h *ContainerHandler) DeployContainer(c *fiber.Ctx) error {
	var req DeployContainerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Image == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Image name is required",
		})
	}

	instance, err := h.service.Deploy(c.UserContext(), h.execContext(c), domain.DeployRequest{
		AppName: req.AppName,
		Image:   req.Image,
		Env:     req.Env,
		Ports:   req.Ports,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *ContainerHandler) InspectContainer(c *fiber.Ctx) error {
	state, err := h.service.Inspect(c.UserContext(), h.execContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(state.Raw)
}

func (h *ContainerHandler) GetContainerLogs(c *fiber.Ctx) error {
	logs, err := h.service.Logs(c.UserContext(), h.execContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if c.QueryBool("demux") {
		if logs, err = docker.DemuxLogs(logs); err != nil {
			return respondError(c, err)
		}
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	return c.Send(logs)
}

func (h *ContainerHandler) StartContainer(c *fiber.Ctx) error {
	log, err := h.service.Start(c.UserContext(), h.execContext(c), c.Params("id"))
	return respondLog(c, log, err)
}

func (h *ContainerHandler) StopContainer(c *fiber.Ctx) error {
	log, err := h.service.Stop(c.UserContext(), h.execContext(c), c.Params("id"))
	return respondLog(c, log, err)
}

func (h *ContainerHandler) DestroyContainer(c *fiber.Ctx) error {
	log, err := h.service.Destroy(c.UserContext(), h.execContext(c), c.Params("id"))
	return respondLog(c, log, err)
}

func (h *ContainerHandler) RefreshIP(c *fiber.Ctx) error {
	binding, err := h.service.RefreshIP(c.UserContext(), h.execContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(binding)
}

func respondLog(c *fiber.Ctx, log string, err error) error {
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
			"log":   log,
		})
	}
	return c.JSON(fiber.Map{"log": log})
}

func respondError(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return fiber.StatusBadRequest
	case domain.IsNotFound(err):
		return fiber.StatusNotFound
	case domain.IsConflict(err):
		return fiber.StatusConflict
	case domain.IsTransport(err):
		return fiber.StatusGatewayTimeout
	case domain.IsEngine(err):
		return fiber.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
