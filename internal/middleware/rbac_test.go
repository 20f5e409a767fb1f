package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mentorconnect/mentorconnect-api/internal/models"
)

func buildRBACRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(ContextUserKey, &models.JWTClaims{
				UserID: "user-1",
				Role:   models.UserRole(role),
			})
		}
		c.Next()
	})

	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }

	router.GET("/admin", RequireRoles(models.RoleAdmin), ok)
	router.GET("/finance", RequireRoles(models.RoleFinanceOfficer, models.RoleAdmin), ok)
	router.GET("/users/:id", RBAC(string(models.RoleAdmin), "SELF"), ok)

	return router
}

func performRBAC(t *testing.T, router *gin.Engine, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRBACRejectsAnonymous(t *testing.T) {
	router := buildRBACRouter()
	resp := performRBAC(t, router, "/admin", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRBACRejectsWrongRole(t *testing.T) {
	router := buildRBACRouter()
	resp := performRBAC(t, router, "/admin", string(models.RoleMentor))
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestRBACAllowsAnyListedRole(t *testing.T) {
	router := buildRBACRouter()

	for _, role := range []models.UserRole{models.RoleFinanceOfficer, models.RoleAdmin} {
		resp := performRBAC(t, router, "/finance", string(role))
		require.Equal(t, http.StatusOK, resp.Code, "role %s", role)
	}

	resp := performRBAC(t, router, "/finance", string(models.RoleStudent))
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestRBACSelfMatchesPathParam(t *testing.T) {
	router := buildRBACRouter()

	resp := performRBAC(t, router, "/users/user-1", string(models.RoleStudent))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = performRBAC(t, router, "/users/user-2", string(models.RoleStudent))
	require.Equal(t, http.StatusForbidden, resp.Code)
}
