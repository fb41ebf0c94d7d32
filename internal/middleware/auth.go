package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Ключи gin.Context
const (
	ctxUID       = "uid"
	ctxSessionID = "session_id"
)

// Authenticator проверяет токен и возвращает владельца и id сессии.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uid, sessionID string, err error)
}

// bearerToken достаёт токен из "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth пропускает только запросы с валидным токеном.
func RequireAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "нужен заголовок Authorization: Bearer <token>")
			return
		}

		uid, sessionID, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			RespondError(c, err)
			c.Abort()
			return
		}

		c.Set(ctxUID, uid)
		c.Set(ctxSessionID, sessionID)
		c.Next()
	}
}

// CurrentUID возвращает uid авторизованного пользователя или "".
func CurrentUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

// SessionID возвращает id текущей сессии или "".
func SessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}
