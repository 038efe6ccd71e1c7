package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/auth"
	"github.com/gin-gonic/gin"
)

// Authenticate validates the bearer access token and stores the caller on
// the context. Requests without a valid token are rejected with 401.
func Authenticate(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed authorization header"})
			return
		}

		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(ctxCaller, domain.Caller{
			ID:        claims.Subject,
			Role:      claims.Role,
			PatientID: claims.PatientID,
			IP:        c.ClientIP(),
			RequestID: GetRequestID(c),
		})
		c.Next()
	}
}

// RequireRole admits only callers holding one of roles.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !slices.Contains(roles, caller.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

// RequireStaff admits admins, doctors and nurses.
func RequireStaff() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin, domain.RoleDoctor, domain.RoleNurse)
}

// Caller returns the authenticated caller, or an anonymous one carrying only
// the client ip and request id.
func Caller(c *gin.Context) domain.Caller {
	if caller, ok := callerFromContext(c); ok {
		return caller
	}
	return domain.Caller{IP: c.ClientIP(), RequestID: GetRequestID(c)}
}

func callerFromContext(c *gin.Context) (domain.Caller, bool) {
	v, ok := c.Get(ctxCaller)
	if !ok {
		return domain.Caller{}, false
	}
	caller, ok := v.(domain.Caller)
	return caller, ok
}
