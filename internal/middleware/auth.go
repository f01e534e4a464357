package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"genmart/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "genmart.actor"

// Claims is the bearer token payload issued by the auth provider.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// abort writes the error envelope and stops the chain.
func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "error": msg})
}

// ParseToken verifies an HS256 token and returns the caller it names.
func ParseToken(secret []byte, raw string) (service.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return service.Actor{}, err
	}
	if !token.Valid {
		return service.Actor{}, errors.New("invalid token")
	}
	role := service.Role(strings.ToUpper(claims.Role))
	if claims.Subject == "" || !role.Valid() {
		return service.Actor{}, errors.New("token is missing subject or role")
	}
	return service.Actor{UserID: claims.Subject, Role: role, Email: claims.Email}, nil
}

// SignToken mints a token for actor. Used by the load test and handler tests;
// production tokens come from the auth provider.
func SignToken(secret []byte, actor service.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:  string(actor.Role),
		Email: actor.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}
	return strings.TrimSpace(raw), true
}

// Auth requires a valid bearer token and stores the caller on the context.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}
		actor, err := ParseToken(secret, raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// OptionalAuth records the caller when a valid token is present and lets
// anonymous requests through. A bad token is treated as anonymous.
func OptionalAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearer(c); ok {
			if actor, err := ParseToken(secret, raw); err == nil {
				c.Set(actorKey, actor)
			}
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated caller, if any.
func ActorFrom(c *gin.Context) (service.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return service.Actor{}, false
	}
	actor, ok := v.(service.Actor)
	return actor, ok
}
