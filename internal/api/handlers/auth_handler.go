package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estatehub/api/internal/apperr"
	"estatehub/api/internal/normalize"
	"estatehub/api/internal/services"
)

// AuthHandler issues session tokens.
type AuthHandler struct {
	sessionService services.ISessionService
}

func NewAuthHandler(sessionService services.ISessionService) *AuthHandler {
	return &AuthHandler{sessionService: sessionService}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody())
		return
	}
	if err := normalize.Validate.Struct(req); err != nil {
		respondError(c, apperr.NewValidation(normalize.FieldProblems(err)))
		return
	}

	token, user, err := h.sessionService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": normalize.ToUser(user)})
}
