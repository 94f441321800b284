package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nyumbani/rental/internal/api/middleware"
	"nyumbani/rental/internal/services"
)

// RestUserHandler handles profile operations.
type RestUserHandler struct {
	userService services.IUserService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService) *RestUserHandler {
	return &RestUserHandler{userService: userService}
}

// GetProfile handles GET /api/users/profile.
func (h *RestUserHandler) GetProfile(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	user, err := h.userService.FindByID(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// UpdateProfile handles PUT /api/users/profile.
func (h *RestUserHandler) UpdateProfile(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	var update services.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), actor.ID, update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}
