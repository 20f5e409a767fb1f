package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mentorconnect/mentorconnect-api/internal/middleware"
	"github.com/mentorconnect/mentorconnect-api/internal/models"
	"github.com/mentorconnect/mentorconnect-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func sessionFromContext(c *gin.Context) string {
	value, exists := c.Get(middleware.ContextSessionKey)
	if !exists {
		return ""
	}
	key, _ := value.(string)
	return key
}

// ownerFromContext builds the wizard ownership view of the caller:
// authenticated users act through their user ID, anonymous applicants
// through the session key, and back-office roles get the staff bypass.
func ownerFromContext(c *gin.Context) service.Owner {
	owner := service.Owner{SessionKey: sessionFromContext(c)}
	if claims := claimsFromContext(c); claims != nil {
		owner.UserID = claims.UserID
		switch claims.Role {
		case models.RoleAdmin, models.RoleFinanceOfficer, models.RoleMentorFacilitator:
			owner.Staff = true
		}
	}
	return owner
}
