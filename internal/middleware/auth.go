package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/hive/internal/access"
	"github.com/yukikurage/hive/internal/auth"
	"github.com/yukikurage/hive/internal/constants"
	apierrors "github.com/yukikurage/hive/internal/errors"
	"github.com/yukikurage/hive/internal/lifecycle"
	"github.com/yukikurage/hive/internal/models"
)

// RequireAuth checks the bearer token, taken from the token cookie or the
// Authorization header, and stores the member identity in the context. A
// cookie that fails to parse falls back to the header.
func RequireAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		candidates := extractTokens(c)
		if len(candidates) == 0 {
			apierrors.Unauthorized(c, "")
			return
		}

		var claims *auth.Claims
		for _, raw := range candidates {
			parsed, err := tokens.Parse(raw)
			if err == nil {
				claims = parsed
				break
			}
		}
		if claims == nil {
			apierrors.Unauthorized(c, "Invalid or expired token")
			return
		}

		// Parse already validated the subject.
		memberID, _ := claims.MemberID()

		c.Set(constants.ContextKeyUserID, memberID)
		c.Set(constants.ContextKeyRole, claims.Role)
		c.Next()
	}
}

// RequireCapability rejects members whose role is not on op's allow-list.
// Ownership checks happen later, once the query is loaded.
func RequireCapability(op access.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}
		if !access.RoleAllowed(role, op) {
			apierrors.Forbidden(c, "This action requires one of the roles: "+joinRoles(access.AllowedRoles(op)))
			return
		}
		c.Next()
	}
}

// extractTokens returns the cookie token, then the bearer header token.
func extractTokens(c *gin.Context) []string {
	var tokens []string
	if cookie, err := c.Cookie(constants.TokenCookieName); err == nil && cookie != "" {
		tokens = append(tokens, cookie)
	}

	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func joinRoles(roles []models.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

// GetUserID retrieves the current member ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	switch v := userID.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// GetRole retrieves the current member role from context
func GetRole(c *gin.Context) (models.Role, bool) {
	role, exists := c.Get(constants.ContextKeyRole)
	if !exists {
		return "", false
	}
	r, ok := role.(models.Role)
	return r, ok && r.Valid()
}

// GetActor combines the identity stored by RequireAuth.
func GetActor(c *gin.Context) (lifecycle.Actor, bool) {
	id, ok := GetUserID(c)
	if !ok {
		return lifecycle.Actor{}, false
	}
	role, ok := GetRole(c)
	if !ok {
		return lifecycle.Actor{}, false
	}
	return lifecycle.Actor{MemberID: id, Role: role}, true
}
