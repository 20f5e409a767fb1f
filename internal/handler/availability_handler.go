package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	"github.com/mentorconnect/mentorconnect-api/internal/service"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
	"github.com/mentorconnect/mentorconnect-api/pkg/response"
)

// AvailabilityHandler exposes slot management for mentors and the
// public open-slot listing for the wizard.
type AvailabilityHandler struct {
	slots *service.AvailabilityService
}

// NewAvailabilityHandler constructs AvailabilityHandler.
func NewAvailabilityHandler(slots *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{slots: slots}
}

// Create godoc
// @Summary Create an availability slot
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body models.CreateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Router /slots [post]
func (h *AvailabilityHandler) Create(c *gin.Context) {
	var req models.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	slot, err := h.slots.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Update godoc
// @Summary Update an availability slot
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body models.UpdateSlotRequest true "Slot payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /slots/{id} [put]
func (h *AvailabilityHandler) Update(c *gin.Context) {
	var req models.UpdateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	slot, err := h.slots.Update(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Delete godoc
// @Summary Delete an unbooked availability slot
// @Tags Availability
// @Produce json
// @Param id path string true "Slot ID"
// @Success 204 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /slots/{id} [delete]
func (h *AvailabilityHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.slots.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get a slot
// @Tags Availability
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /slots/{id} [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	slot, err := h.slots.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// ListOpen godoc
// @Summary List open future slots for a mentor
// @Description Public; backs the wizard's mentor selection step
// @Tags Availability
// @Produce json
// @Param mentorId path string true "Mentor ID"
// @Success 200 {object} response.Envelope
// @Router /mentors/{mentorId}/slots [get]
func (h *AvailabilityHandler) ListOpen(c *gin.Context) {
	slots, err := h.slots.ListOpen(c.Request.Context(), c.Param("mentorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// List godoc
// @Summary List slots
// @Tags Availability
// @Produce json
// @Param mentorId query string false "Filter by mentor"
// @Param open query bool false "Only slots with free seats"
// @Param from query string false "Only slots on or after this date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /slots [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	var filter models.SlotFilter
	filter.MentorID = c.Query("mentorId")
	if open, err := strconv.ParseBool(c.DefaultQuery("open", "false")); err == nil {
		filter.OpenOnly = open
	}
	if raw := c.Query("from"); raw != "" {
		if from, err := time.Parse("2006-01-02", raw); err == nil {
			filter.From = &from
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	slots, pagination, err := h.slots.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, pagination)
}
