package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/RefurbishedContent/mysounds-sub002/internal/middleware"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/render"
	"github.com/RefurbishedContent/mysounds-sub002/internal/service"
	"github.com/RefurbishedContent/mysounds-sub002/pkg/response"
)

// RenderJobs is the job service the render endpoints call
type RenderJobs interface {
	StartRender(ctx context.Context, userID string, req *model.RenderStartRequest) (*model.RenderStartResponse, error)
	GetStatus(ctx context.Context, jobID, userID string) (*model.RenderStatusResponse, error)
	GetLog(ctx context.Context, jobID, userID string) (*model.RenderLogResponse, error)
	GetResult(ctx context.Context, jobID, userID string) (*model.RenderResultResponse, error)
}

type RenderHandler struct {
	service   RenderJobs
	validator *validator.Validate
}

func NewRenderHandler(svc RenderJobs, v *validator.Validate) *RenderHandler {
	return &RenderHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/render/start
// @Summary      Start render job
// @Description  Queue an offline render of a project at the requested format and quality
// @Tags         Render
// @Accept       json
// @Produce      json
// @Param        request body model.RenderStartRequest true "Render start request"
// @Success      202 {object} model.RenderStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/render/start [post]
func (h *RenderHandler) Start(c *fiber.Ctx) error {
	var req model.RenderStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartRender(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/render/status/:jobId
// @Summary      Get render job status
// @Tags         Render
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.RenderStatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/render/status/{jobId} [get]
func (h *RenderHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.UserContext(), jobID, middleware.GetUserID(c))
	if err != nil {
		return jobError(c, err)
	}

	return response.OK(c, result)
}

// Log handles GET /api/render/log/:jobId
// @Summary      Get render job status log
// @Tags         Render
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.RenderLogResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/render/log/{jobId} [get]
func (h *RenderHandler) Log(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetLog(c.UserContext(), jobID, middleware.GetUserID(c))
	if err != nil {
		return jobError(c, err)
	}

	return response.OK(c, result)
}

// Result handles GET /api/render/result/:jobId
// @Summary      Get render job result
// @Description  Get the published URLs of a completed render
// @Tags         Render
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.RenderResultResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/render/result/{jobId} [get]
func (h *RenderHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetResult(c.UserContext(), jobID, middleware.GetUserID(c))
	if err != nil {
		return jobError(c, err)
	}

	return response.OK(c, result)
}

func jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrJobNotCompleted):
		return response.JobNotReady(c, "Job not completed yet")
	}
	return response.ServiceError(c, err.Error())
}

// Presets handles GET /api/render/presets
func (h *RenderHandler) Presets(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"presets": render.Presets()})
}
