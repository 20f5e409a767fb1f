package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mentorconnect/mentorconnect-api/internal/service"
	appErrors "github.com/mentorconnect/mentorconnect-api/pkg/errors"
	"github.com/mentorconnect/mentorconnect-api/pkg/response"
)

// MatchingHandler exposes mentor suggestions.
type MatchingHandler struct {
	matching *service.MatchingService
}

// NewMatchingHandler constructs MatchingHandler.
func NewMatchingHandler(matching *service.MatchingService) *MatchingHandler {
	return &MatchingHandler{matching: matching}
}

// Suggest godoc
// @Summary Suggest compatible mentors for the caller
// @Description Ranks available mentors by profile compatibility, best first
// @Tags Matching
// @Produce json
// @Param limit query int false "Max suggestions" default(10)
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /matching/suggestions [get]
func (h *MatchingHandler) Suggest(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	suggestions, err := h.matching.Suggest(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestions, nil)
}
