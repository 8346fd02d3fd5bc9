package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
	"github.com/AnupamNeon/Chat-app/internal/service"
	"github.com/AnupamNeon/Chat-app/pkg/response"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "jwt"

const (
	ctxUserID = "user_id"
	ctxToken  = "session_token"
)

// Auth rejects requests without a live session. The token travels in
// the session cookie or, failing that, a bearer header.
func Auth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			response.Error(c, apperr.New(apperr.KindUnauthenticated, "authentication required"))
			c.Abort()
			return
		}

		userID, err := auth.ValidateSession(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxToken, token)
		c.Next()
	}
}

// TokenFromRequest finds the session token of a request, preferring
// the cookie over the Authorization header.
func TokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	return extractBearer(c.GetHeader("Authorization"))
}

func extractBearer(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// GetUserID returns the authenticated user id set by Auth.
func GetUserID(c *gin.Context) int64 {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return 0
	}
	return userID.(int64)
}

// GetToken returns the session token set by Auth.
func GetToken(c *gin.Context) string {
	token, exists := c.Get(ctxToken)
	if !exists {
		return ""
	}
	return token.(string)
}
