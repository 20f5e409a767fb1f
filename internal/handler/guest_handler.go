package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
	"github.com/mentorconnect/mentorconnect-api/internal/service"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
	"github.com/mentorconnect/mentorconnect-api/pkg/response"
	"github.com/mentorconnect/mentorconnect-api/pkg/storage"
)

const maxCVSize = 10 << 20

// GuestHandler exposes the no-account guest application flow.
type GuestHandler struct {
	guests  *service.GuestService
	uploads *storage.UploadStore
	signer  *storage.SignedURLSigner
}

// NewGuestHandler constructs GuestHandler.
func NewGuestHandler(guests *service.GuestService, uploads *storage.UploadStore, signer *storage.SignedURLSigner) *GuestHandler {
	return &GuestHandler{guests: guests, uploads: uploads, signer: signer}
}

// Create godoc
// @Summary Submit a guest application
// @Description Multipart form addressed to a mentor, with an optional CV
// @Tags Guests
// @Accept multipart/form-data
// @Produce json
// @Param full_name formData string true "Full name"
// @Param email formData string true "Email"
// @Param school formData string false "School"
// @Param interests formData string false "Interests"
// @Param message formData string true "Message to the mentor"
// @Param mentor_id formData string true "Mentor ID"
// @Param cv formData file false "CV (PDF)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /guest-applications [post]
func (h *GuestHandler) Create(c *gin.Context) {
	req := models.CreateGuestApplicationRequest{
		FullName:  c.PostForm("full_name"),
		Email:     c.PostForm("email"),
		School:    c.PostForm("school"),
		Interests: c.PostForm("interests"),
		Message:   c.PostForm("message"),
		MentorID:  c.PostForm("mentor_id"),
	}

	cvPath := ""
	if file, err := c.FormFile("cv"); err == nil {
		if file.Size > maxCVSize {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "cv exceeds the 10MB limit"))
			return
		}
		if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".pdf" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "cv must be a PDF"))
			return
		}
		src, err := file.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read cv"))
			return
		}
		defer src.Close()

		name := fmt.Sprintf("cvs/%s.pdf", uuid.NewString())
		cvPath, err = h.uploads.SaveStream(name, src)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store cv"))
			return
		}
	}

	app, err := h.guests.Create(c.Request.Context(), req, cvPath)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// Get godoc
// @Summary Get a guest application
// @Tags Guests
// @Produce json
// @Param id path string true "Guest application ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /guest-applications/{id} [get]
func (h *GuestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	staff := claims.Role == models.RoleAdmin
	app, err := h.guests.Get(c.Request.Context(), c.Param("id"), claims.UserID, staff)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// List godoc
// @Summary List guest applications
// @Description Mentors see their own inbox; admins see everything
// @Tags Guests
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Search name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /guest-applications [get]
func (h *GuestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)

	var filter models.GuestApplicationFilter
	if claims.Role == models.RoleMentor {
		filter.MentorID = claims.UserID
	} else {
		filter.MentorID = c.Query("mentorId")
	}
	filter.Status = models.GuestApplicationStatus(strings.ToLower(c.Query("status")))
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	apps, pagination, err := h.guests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Approve godoc
// @Summary Approve a guest application
// @Description Issues a single-use invitation token and mails it to the guest
// @Tags Guests
// @Accept json
// @Produce json
// @Param id path string true "Guest application ID"
// @Param payload body models.GuestDecisionRequest true "Feedback"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /guest-applications/{id}/approve [post]
func (h *GuestHandler) Approve(c *gin.Context) {
	var req models.GuestDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	token, err := h.guests.Approve(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token, nil)
}

// Reject godoc
// @Summary Reject a guest application
// @Tags Guests
// @Accept json
// @Produce json
// @Param id path string true "Guest application ID"
// @Param payload body models.GuestDecisionRequest true "Feedback"
// @Success 204 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /guest-applications/{id}/reject [post]
func (h *GuestHandler) Reject(c *gin.Context) {
	var req models.GuestDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if err := h.guests.Reject(c.Request.Context(), c.Param("id"), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CVURL godoc
// @Summary Issue a short-lived CV download link
// @Tags Guests
// @Produce json
// @Param id path string true "Guest application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /guest-applications/{id}/cv-url [get]
func (h *GuestHandler) CVURL(c *gin.Context) {
	claims := claimsFromContext(c)
	staff := claims.Role == models.RoleAdmin
	app, err := h.guests.Get(c.Request.Context(), c.Param("id"), claims.UserID, staff)
	if err != nil {
		response.Error(c, err)
		return
	}
	if app.CVPath == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "guest application has no cv"))
		return
	}
	token, expiresAt, err := h.signer.Generate(app.ID, app.CVPath)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign cv url"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":        fmt.Sprintf("/api/v1/files/cvs?token=%s", token),
		"expires_at": expiresAt,
	}, nil)
}

// DownloadCV godoc
// @Summary Download a CV via a signed token
// @Tags Guests
// @Produce application/octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /files/cvs [get]
func (h *GuestHandler) DownloadCV(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Query("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token"))
		return
	}
	c.File(h.uploads.Path(relPath))
}
