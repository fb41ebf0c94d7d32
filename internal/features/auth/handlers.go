// Package auth — handlers.go обрабатывает HTTP-запросы регистрации и входа.
package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/whistle/internal/middleware"
)

// Handler обрабатывает запросы авторизации.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик авторизации.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type signUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignUp — POST /api/auth/signup.
func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err)
		return
	}

	res, err := h.service.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// SignIn — POST /api/auth/login.
func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err)
		return
	}

	res, err := h.service.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SignOut — POST /api/auth/logout (нужен токен).
func (h *Handler) SignOut(c *gin.Context) {
	if err := h.service.SignOut(c.Request.Context(), middleware.CurrentUID(c), middleware.SessionID(c)); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
