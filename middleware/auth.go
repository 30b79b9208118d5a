package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"sku-service/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const UserContextKey = "userID"

// AuthMiddleware authenticates the caller and attaches a services.Principal
// to the request context for the permission gate. A bearer token signed with
// secret wins; otherwise the identity headers injected by the API gateway are
// used.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			p   services.Principal
			err error
		)
		if token := bearerToken(c); token != "" {
			p, err = principalFromToken(token, secret)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				c.Abort()
				return
			}
		} else {
			p = principalFromHeaders(c)
		}

		if p.UserID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set(UserContextKey, p.UserID)
		c.Set("role", p.Role)
		c.Request = c.Request.WithContext(services.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if v, err := c.Cookie("token"); err == nil {
		return v
	}
	return ""
}

func principalFromToken(tokenStr string, secret []byte) (services.Principal, error) {
	if len(secret) == 0 {
		return services.Principal{}, errors.New("JWT secret not configured")
	}
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return services.Principal{}, errors.New("invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return services.Principal{}, errors.New("invalid token claims")
	}

	p := services.Principal{}
	if sub, ok := claims["sub"].(string); ok {
		p.UserID = sub
	}
	if role, ok := claims["role"].(string); ok {
		p.Role = role
	}
	switch caps := claims["capabilities"].(type) {
	case []interface{}:
		for _, v := range caps {
			if s, ok := v.(string); ok {
				p.Capabilities = append(p.Capabilities, s)
			}
		}
	case string:
		p.Capabilities = splitList(caps)
	}
	return p, nil
}

func principalFromHeaders(c *gin.Context) services.Principal {
	userID := c.GetHeader("X-User-ID")
	role := c.GetHeader("X-User-Role")

	// Fallback to cookies (set by API gateway) if headers missing
	if userID == "" {
		if v, err := c.Cookie("user_id"); err == nil && v != "" {
			userID = v
		}
	}
	if role == "" {
		if v, err := c.Cookie("user_role"); err == nil && v != "" {
			role = v
		}
	}
	return services.Principal{
		UserID:       userID,
		Role:         role,
		Capabilities: splitList(c.GetHeader("X-User-Capabilities")),
	}
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

// GetUserID extracts the user ID from the Gin context.
func GetUserID(c *gin.Context) (string, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("user ID not found in context")
}
