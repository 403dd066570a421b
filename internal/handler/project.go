package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/RefurbishedContent/mysounds-sub002/internal/middleware"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/internal/store"
	"github.com/RefurbishedContent/mysounds-sub002/pkg/response"
)

// ProjectStore persists project snapshots
type ProjectStore interface {
	ReadProject(ctx context.Context, projectID, userID string) (*model.Project, error)
	SaveProject(ctx context.Context, project *model.Project) error
}

type ProjectHandler struct {
	store     ProjectStore
	validator *validator.Validate
}

// NewProjectHandler creates the project endpoints. A nil store answers 503.
func NewProjectHandler(s ProjectStore, v *validator.Validate) *ProjectHandler {
	return &ProjectHandler{
		store:     s,
		validator: v,
	}
}

// Get handles GET /api/projects/:projectId
// @Summary      Get project snapshot
// @Tags         Projects
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} model.Project
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId} [get]
func (h *ProjectHandler) Get(c *fiber.Ctx) error {
	if h.store == nil {
		return response.Unavailable(c, "Project store not configured")
	}

	project, err := h.store.ReadProject(c.UserContext(), c.Params("projectId"), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			return response.NotFound(c, "Project not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, project)
}

// Put handles PUT /api/projects/:projectId, replacing the tracks and
// placements a render reads
// @Summary      Save project snapshot
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body model.Project true "Project snapshot"
// @Success      200 {object} model.Project
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId} [put]
func (h *ProjectHandler) Put(c *fiber.Ctx) error {
	if h.store == nil {
		return response.Unavailable(c, "Project store not configured")
	}

	projectID := c.Params("projectId")
	if _, err := uuid.Parse(projectID); err != nil {
		return response.ValidationError(c, "Project ID must be a UUID", nil)
	}

	var project model.Project
	if err := c.BodyParser(&project); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	project.ID = projectID
	project.UserID = middleware.GetUserID(c)

	if err := h.validator.Struct(&project); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.store.SaveProject(c.UserContext(), &project); err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			return response.NotFound(c, "Project not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, &project)
}
