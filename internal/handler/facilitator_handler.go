package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	"github.com/mentorconnect/mentorconnect-api/internal/service"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
	"github.com/mentorconnect/mentorconnect-api/pkg/response"
)

// FacilitatorHandler exposes facilitator assignments and the scoped
// application views built on them.
type FacilitatorHandler struct {
	facilitators *service.FacilitatorService
}

// NewFacilitatorHandler constructs FacilitatorHandler.
func NewFacilitatorHandler(facilitators *service.FacilitatorService) *FacilitatorHandler {
	return &FacilitatorHandler{facilitators: facilitators}
}

// Assign godoc
// @Summary Assign a facilitator to a mentor
// @Tags Facilitators
// @Accept json
// @Produce json
// @Param payload body models.AssignFacilitatorRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /facilitators/assignments [post]
func (h *FacilitatorHandler) Assign(c *gin.Context) {
	var req models.AssignFacilitatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	assignment, err := h.facilitators.Assign(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Unassign godoc
// @Summary Remove a facilitator assignment
// @Tags Facilitators
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204 {object} response.Envelope
// @Router /facilitators/assignments/{id} [delete]
func (h *FacilitatorHandler) Unassign(c *gin.Context) {
	if err := h.facilitators.Unassign(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Assignments godoc
// @Summary List facilitator assignments
// @Description Facilitators see their own; admins can scope by facilitatorId
// @Tags Facilitators
// @Produce json
// @Param facilitatorId query string false "Filter by facilitator (admin only)"
// @Success 200 {object} response.Envelope
// @Router /facilitators/assignments [get]
func (h *FacilitatorHandler) Assignments(c *gin.Context) {
	claims := claimsFromContext(c)
	facilitatorID := claims.UserID
	if claims.Role == models.RoleAdmin {
		facilitatorID = c.Query("facilitatorId")
	}
	assignments, err := h.facilitators.Assignments(c.Request.Context(), facilitatorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Applications godoc
// @Summary List applications for the caller's assigned mentors
// @Tags Facilitators
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Search name, email or tracking code"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /facilitators/applications [get]
func (h *FacilitatorHandler) Applications(c *gin.Context) {
	claims := claimsFromContext(c)
	filter := applicationFilterFromQuery(c)
	apps, pagination, err := h.facilitators.Applications(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Reassign godoc
// @Summary Reassign an application within the assigned mentor set
// @Tags Facilitators
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body models.ReassignMentorRequest true "Target mentor"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /facilitators/applications/{id}/reassign [post]
func (h *FacilitatorHandler) Reassign(c *gin.Context) {
	var req models.ReassignMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	app, err := h.facilitators.Reassign(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}
