package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/common"
)

// statusFor сопоставляет доменную ошибку HTTP-статусу.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrVideoNotFound),
		errors.Is(err, common.ErrProfileNotFound),
		errors.Is(err, common.ErrPresentationNotFound):
		return http.StatusNotFound

	case errors.Is(err, common.ErrNotOwner),
		errors.Is(err, common.ErrSelfAura):
		return http.StatusForbidden

	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrSessionExpired):
		return http.StatusUnauthorized

	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests

	case errors.Is(err, common.ErrEmailTaken),
		errors.Is(err, common.ErrVideoExists):
		return http.StatusConflict

	case errors.Is(err, common.ErrInvalidReaction),
		errors.Is(err, common.ErrEmptyCaption),
		errors.Is(err, common.ErrInvalidPageKey),
		errors.Is(err, common.ErrInvalidName),
		errors.Is(err, common.ErrInvalidAmount),
		errors.Is(err, common.ErrMalformedUpload),
		errors.Is(err, common.ErrEmptyUpload),
		errors.Is(err, common.ErrWeakPassword),
		errors.Is(err, common.ErrInvalidEmail),
		errors.Is(err, common.ErrUnknownPlaybackEvent):
		return http.StatusBadRequest

	case errors.Is(err, common.ErrFeedUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// RespondError отвечает клиенту статусом по типу ошибки.
// Текст внутренних ошибок наружу не уходит, только в лог.
func RespondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("Ошибка обработки запроса")
		abort(c, status, "внутренняя ошибка сервера")
		return
	}
	_ = c.Error(err)
	abort(c, status, err.Error())
}

// BadRequest — ответ 400 на невалидное тело запроса.
func BadRequest(c *gin.Context, err error) {
	abort(c, http.StatusBadRequest, "некорректный запрос: "+err.Error())
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"status":  "error",
		"message": message,
	})
}
