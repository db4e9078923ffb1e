package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openhomelab/smartserver/internal/types"
)

const principalKey = "principal"

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// UserAuth authenticates end users via access JWT. The user row is re-read
// on every request, so a disabled account loses access immediately.
func (a *AuthService) UserAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("AUTH_401", "Missing or malformed authorization header", nil))
			return
		}

		user, err := a.ResolveUserToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("AUTH_401", "Invalid or expired token", nil))
			return
		}

		c.Set(principalKey, UserPrincipal{ID: user.ID})
		c.Next()
	}
}

// HostAuth authenticates gateways via their static API key.
func (a *AuthService) HostAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("AUTH_401", "Missing or malformed authorization header", nil))
			return
		}

		host, err := a.ResolveHostKey(c.Request.Context(), key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("AUTH_401", "Invalid API key", nil))
			return
		}

		c.Set(principalKey, HostPrincipal{ID: host.ID})
		c.Next()
	}
}

// UserOrHostAuth accepts either credential kind. JWT is tried first; a
// bearer that is no valid JWT falls through to the API key lookup.
func (a *AuthService) UserOrHostAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("AUTH_401", "Missing or malformed authorization header", nil))
			return
		}

		if user, err := a.ResolveUserToken(c.Request.Context(), token); err == nil {
			c.Set(principalKey, UserPrincipal{ID: user.ID})
			c.Next()
			return
		}

		if host, err := a.ResolveHostKey(c.Request.Context(), token); err == nil {
			c.Set(principalKey, HostPrincipal{ID: host.ID})
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized,
			types.NewErrorResponse("AUTH_401", "Invalid or expired credential", nil))
	}
}

// RequireAdmin gates an endpoint to admin users. Must run after UserAuth.
// The admin flag is read from the user row, not from the token.
func (a *AuthService) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		up, ok := UserPrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse("AUTH_403", "Admin access required", nil))
			return
		}

		user, err := a.store.GetUserByID(c.Request.Context(), up.ID)
		if err != nil || !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse("AUTH_403", "Admin access required", nil))
			return
		}

		c.Next()
	}
}

// PrincipalFrom extracts the authenticated principal from the gin context
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// UserPrincipalFrom extracts a user principal, failing for host callers
func UserPrincipalFrom(c *gin.Context) (UserPrincipal, bool) {
	p, ok := PrincipalFrom(c)
	if !ok {
		return UserPrincipal{}, false
	}
	up, ok := p.(UserPrincipal)
	return up, ok
}

// HostPrincipalFrom extracts a host principal, failing for user callers
func HostPrincipalFrom(c *gin.Context) (HostPrincipal, bool) {
	p, ok := PrincipalFrom(c)
	if !ok {
		return HostPrincipal{}, false
	}
	hp, ok := p.(HostPrincipal)
	return hp, ok
}
