package middleware

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

// ContextSessionKey is the gin context key storing the wizard session key.
const ContextSessionKey = "wizardSession"

// SessionHeader carries the anonymous wizard session between requests.
const SessionHeader = "X-Session-Key"

// Session assigns every request a wizard session key. Anonymous
// applicants keep their draft across requests by echoing the header
// back; a missing or malformed key gets a fresh one.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(SessionHeader)
		if len(key) != 32 || !isHex(key) {
			key = newSessionKey()
		}
		c.Set(ContextSessionKey, key)
		c.Header(SessionHeader, key)
		c.Next()
	}
}

func newSessionKey() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
