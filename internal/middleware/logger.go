package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// LogUpdate логирует входящий апдейт Telegram.
// Записывает: user_id, chat_id, username, текст (первые 50 символов) или callback data.
func LogUpdate(update telego.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		text := msg.Text
		if len([]rune(text)) > 50 {
			text = string([]rune(text)[:50]) + "..."
		}
		log.WithFields(log.Fields{
			"user_id":  msg.From.ID,
			"chat_id":  msg.Chat.ID,
			"username": msg.From.Username,
			"text":     text,
			"time":     time.Now().Format("15:04:05"),
		}).Debug("Входящее сообщение")

	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		log.WithFields(log.Fields{
			"user_id":  q.From.ID,
			"username": q.From.Username,
			"data":     q.Data,
			"time":     time.Now().Format("15:04:05"),
		}).Debug("Нажатие кнопки")
	}
}

// AccessLog пишет строку лога на каждый HTTP-запрос.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if uid := CurrentUID(c); uid != "" {
			entry = entry.WithField("uid", uid)
		}
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("HTTP-запрос")
		case status >= 400:
			entry.Info("HTTP-запрос")
		default:
			entry.Debug("HTTP-запрос")
		}
	}
}

// RateLimit отклоняет запросы сверх лимита с 429.
// Ключ — uid авторизованного пользователя, иначе IP.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := CurrentUID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !rl.Allow(key) {
			abort(c, http.StatusTooManyRequests, "слишком много запросов, подождите немного")
			return
		}
		c.Next()
	}
}
