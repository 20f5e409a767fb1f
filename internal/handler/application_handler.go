package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	"github.com/mentorconnect/mentorconnect-api/internal/service"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
	"github.com/mentorconnect/mentorconnect-api/pkg/response"
)

// ApplicationHandler exposes the application wizard and review endpoints.
type ApplicationHandler struct {
	applications *service.ApplicationService
}

// NewApplicationHandler constructs ApplicationHandler.
func NewApplicationHandler(applications *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// Start godoc
// @Summary Start an application draft
// @Description Open a new draft; anonymous sessions get a tracking code immediately
// @Tags Applications
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Start(c *gin.Context) {
	owner := ownerFromContext(c)
	app, err := h.applications.StartDraft(c.Request.Context(), owner.UserID, owner.SessionKey)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// Resume godoc
// @Summary Resume the draft for this session
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/resume [get]
func (h *ApplicationHandler) Resume(c *gin.Context) {
	app, err := h.applications.ResumeDraft(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// SavePersonal godoc
// @Summary Save the personal details step
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body models.PersonalStepRequest true "Personal details"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{id}/steps/personal [put]
func (h *ApplicationHandler) SavePersonal(c *gin.Context) {
	var req models.PersonalStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	app, err := h.applications.SavePersonalStep(c.Request.Context(), c.Param("id"), ownerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// SaveGuardian godoc
// @Summary Save the guardian details step
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body models.GuardianStepRequest true "Guardian details"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{id}/steps/guardian [put]
func (h *ApplicationHandler) SaveGuardian(c *gin.Context) {
	var req models.GuardianStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	app, err := h.applications.SaveGuardianStep(c.Request.Context(), c.Param("id"), ownerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// SaveEducation godoc
// @Summary Save the education step
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body models.EducationStepRequest true "Education details"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{id}/steps/education [put]
func (h *ApplicationHandler) SaveEducation(c *gin.Context) {
	var req models.EducationStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	app, err := h.applications.SaveEducationStep(c.Request.Context(), c.Param("id"), ownerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// SaveMentor godoc
// @Summary Save the mentor selection step
// @Description Selecting a slot reserves a seat; a full slot fails with 409
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body models.MentorStepRequest true "Mentor selection"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/steps/mentor [put]
func (h *ApplicationHandler) SaveMentor(c *gin.Context) {
	var req models.MentorStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	app, err := h.applications.SaveMentorStep(c.Request.Context(), c.Param("id"), ownerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Submit godoc
// @Summary Submit the completed wizard
// @Description Locks the wizard payload; the application leaves draft once a payment is recorded
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{id}/submit [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	app, err := h.applications.Submit(c.Request.Context(), c.Param("id"), ownerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Track godoc
// @Summary Track an application by its public code
// @Tags Applications
// @Produce json
// @Param code path string true "Tracking code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /track/{code} [get]
func (h *ApplicationHandler) Track(c *gin.Context) {
	status, err := h.applications.Track(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Get godoc
// @Summary Get an application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.applications.Get(c.Request.Context(), c.Param("id"), ownerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// ListMine godoc
// @Summary List the caller's applications
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /applications/mine [get]
func (h *ApplicationHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	apps, err := h.applications.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}

// List godoc
// @Summary List applications for staff review
// @Tags Applications
// @Produce json
// @Param status query string false "Filter by status"
// @Param mentorId query string false "Filter by mentor"
// @Param minor query bool false "Only minors"
// @Param search query string false "Search name, email or tracking code"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	filter := applicationFilterFromQuery(c)
	apps, pagination, err := h.applications.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Counts godoc
// @Summary Per-status application totals
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /applications/counts [get]
func (h *ApplicationHandler) Counts(c *gin.Context) {
	counts, err := h.applications.Counts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}

// History godoc
// @Summary Activity trail for an application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/history [get]
func (h *ApplicationHandler) History(c *gin.Context) {
	entries, err := h.applications.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Approve godoc
// @Summary Approve a reviewed application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{id}/approve [post]
func (h *ApplicationHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	app, err := h.applications.Approve(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Reject godoc
// @Summary Reject a reviewed application
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body models.RejectApplicationRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{id}/reject [post]
func (h *ApplicationHandler) Reject(c *gin.Context) {
	var req models.RejectApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	app, err := h.applications.RejectReview(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Enroll godoc
// @Summary Enroll an approved application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{id}/enroll [post]
func (h *ApplicationHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	app, err := h.applications.Enroll(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

func applicationFilterFromQuery(c *gin.Context) models.ApplicationFilter {
	var filter models.ApplicationFilter
	filter.Status = models.ApplicationStatus(strings.ToLower(c.Query("status")))
	filter.MentorID = c.Query("mentorId")
	filter.Search = c.Query("search")
	if raw := c.Query("minor"); raw != "" {
		if minor, err := strconv.ParseBool(raw); err == nil {
			filter.MinorOnly = &minor
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}
