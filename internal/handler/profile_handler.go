package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	"github.com/mentorconnect/mentorconnect-api/internal/service"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
	"github.com/mentorconnect/mentorconnect-api/pkg/response"
)

// ProfileHandler exposes student and mentor profiles and the public
// mentor directory.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetStudent godoc
// @Summary Get the caller's student profile
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /profiles/student [get]
func (h *ProfileHandler) GetStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	profile, err := h.profiles.GetStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateStudent godoc
// @Summary Create or update the caller's student profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body models.UpdateStudentProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /profiles/student [put]
func (h *ProfileHandler) UpdateStudent(c *gin.Context) {
	var req models.UpdateStudentProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	profile, err := h.profiles.UpdateStudent(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// GetMentor godoc
// @Summary Get the caller's mentor profile
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /profiles/mentor [get]
func (h *ProfileHandler) GetMentor(c *gin.Context) {
	claims := claimsFromContext(c)
	profile, err := h.profiles.GetMentor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateMentor godoc
// @Summary Create or update the caller's mentor profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body models.UpdateMentorProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /profiles/mentor [put]
func (h *ProfileHandler) UpdateMentor(c *gin.Context) {
	var req models.UpdateMentorProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	profile, err := h.profiles.UpdateMentor(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Directory godoc
// @Summary Browse the public mentor directory
// @Tags Profiles
// @Produce json
// @Param search query string false "Search name or headline"
// @Param expertise query string false "Filter by expertise"
// @Param city query string false "Filter by city"
// @Param country query string false "Filter by country"
// @Param available query bool false "Only available mentors"
// @Param verified query bool false "Only verified mentors"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /mentors [get]
func (h *ProfileHandler) Directory(c *gin.Context) {
	var filter models.MentorFilter
	filter.Search = c.Query("search")
	filter.Expertise = c.Query("expertise")
	filter.City = c.Query("city")
	filter.Country = c.Query("country")
	if available, err := strconv.ParseBool(c.DefaultQuery("available", "false")); err == nil {
		filter.AvailableOnly = available
	}
	if verified, err := strconv.ParseBool(c.DefaultQuery("verified", "false")); err == nil {
		filter.VerifiedOnly = verified
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	mentors, pagination, err := h.profiles.Directory(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentors, pagination)
}
