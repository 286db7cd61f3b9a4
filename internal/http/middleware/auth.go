package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/yieldvault-backend/internal/http/response"
	"github.com/yungbote/yieldvault-backend/internal/platform/apierr"
	"github.com/yungbote/yieldvault-backend/internal/platform/ctxutil"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

// TokenVerifier attaches the caller named by a bearer token to ctx.
type TokenVerifier interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type AuthMiddleware struct {
	log    *logger.Logger
	tokens TokenVerifier
}

func NewAuthMiddleware(log *logger.Logger, tokens TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), tokens: tokens}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.Fail(c, apierr.Unauthorized(errors.New("missing or invalid token")))
			c.Abort()
			return
		}
		ctx, err := am.tokens.SetContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			response.Fail(c, apierr.Unauthorized(err))
			c.Abort()
			return
		}
		if ctxutil.CallerID(ctx) == "" {
			response.Fail(c, apierr.Forbidden(errors.New("token names no caller")))
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
