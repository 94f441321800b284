package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"nyumbani/rental/internal/api/middleware"
	"nyumbani/rental/internal/auth"
	"nyumbani/rental/internal/config"
	"nyumbani/rental/internal/models"
	"nyumbani/rental/internal/services"
)

// WelcomeNotifier greets newly registered users. Optional.
type WelcomeNotifier interface {
	NotifyWelcome(ctx context.Context, user *models.User) error
}

// RestAuthHandler handles registration and login.
type RestAuthHandler struct {
	cfg         *config.Config
	userService services.IUserService
	notifier    WelcomeNotifier
}

// NewRestAuthHandler creates a new RestAuthHandler. notifier may be nil.
func NewRestAuthHandler(cfg *config.Config, userService services.IUserService, notifier WelcomeNotifier) *RestAuthHandler {
	return &RestAuthHandler{cfg: cfg, userService: userService, notifier: notifier}
}

// Register handles POST /api/auth/register.
func (h *RestAuthHandler) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.notifier != nil {
		if err := h.notifier.NotifyWelcome(c.Request.Context(), user); err != nil {
			log.Printf("WARN: failed to enqueue welcome email for %s: %v", user.Email, err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"token":   token,
		"user":    user,
	})
}

// loginRequest is the POST /api/auth/login body.
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login.
func (h *RestAuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Uniform message regardless of which credential was wrong.
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    user,
	})
}

// Me handles GET /api/auth/me.
func (h *RestAuthHandler) Me(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}
