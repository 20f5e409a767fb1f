package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func buildSessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Session())
	router.GET("/wizard", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"session": c.GetString(ContextSessionKey)})
	})
	return router
}

func TestSessionGeneratesKeyWhenMissing(t *testing.T) {
	router := buildSessionRouter()

	req, _ := http.NewRequest(http.MethodGet, "/wizard", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	key := w.Header().Get(SessionHeader)
	require.Len(t, key, 32)
	require.True(t, isHex(key))
	require.Contains(t, w.Body.String(), key)
}

func TestSessionEchoesValidKey(t *testing.T) {
	router := buildSessionRouter()

	req, _ := http.NewRequest(http.MethodGet, "/wizard", nil)
	req.Header.Set(SessionHeader, "0123456789abcdef0123456789abcdef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, "0123456789abcdef0123456789abcdef", w.Header().Get(SessionHeader))
}

func TestSessionReplacesMalformedKey(t *testing.T) {
	router := buildSessionRouter()

	for _, bad := range []string{"short", "zzzz56789abcdef0123456789abcdefg", "0123456789abcdef0123456789abcdef00"} {
		req, _ := http.NewRequest(http.MethodGet, "/wizard", nil)
		req.Header.Set(SessionHeader, bad)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		key := w.Header().Get(SessionHeader)
		require.NotEqual(t, bad, key)
		require.Len(t, key, 32)
	}
}
