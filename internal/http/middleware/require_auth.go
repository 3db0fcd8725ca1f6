package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/alaska-tech/veciapp-backend/internal/shared/apperr"
)

const (
	CtxKeyUserID   = "user_id"
	CtxKeyUserRole = "user_role"
)

// RequireAuth accepts an HS256 bearer token signed with secret. The subject claim
// becomes the current user id.
func RequireAuth(secret []byte) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			Fail(c, apperr.UnauthorizedErr("Authentication required."))
			return
		}

		claims := jwt.MapClaims{}
		_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil {
			Fail(c, apperr.UnauthorizedErr("Invalid or expired token.").WithCause(err))
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			Fail(c, apperr.UnauthorizedErr("Invalid or expired token."))
			return
		}
		c.Set(CtxKeyUserID, sub)
		if role, ok := claims["role"].(string); ok {
			c.Set(CtxKeyUserRole, role)
		}

		c.Next()
	}
}

func CurrentUserID(c *gin.Context) string {
	return c.GetString(CtxKeyUserID)
}

func bearerToken(header string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
