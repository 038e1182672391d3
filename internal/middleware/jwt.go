package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notesync/internal/pkg/errcode"
	"github.com/xxxsen/notesync/internal/pkg/jwt"
	"github.com/xxxsen/notesync/internal/pkg/response"
)

const ContextUsernameKey = "username"

// JWTAuth admits moderators holding a token minted for this community.
func JWTAuth(secret []byte, community string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Abort(c, errcode.ErrUnauthorized, "missing authorization")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Abort(c, errcode.ErrUnauthorized, "invalid authorization")
			return
		}
		claims, err := jwt.ParseToken(parts[1], secret)
		if err != nil || claims.Username == "" {
			response.Abort(c, errcode.ErrUnauthorized, "invalid token")
			return
		}
		if claims.Community != "" && !strings.EqualFold(claims.Community, community) {
			response.Abort(c, errcode.ErrForbidden, "token issued for another community")
			return
		}
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}
