package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nyumbani/rental/internal/api/middleware"
	"nyumbani/rental/internal/models"
	"nyumbani/rental/internal/services"
	"nyumbani/rental/internal/storage"
	"nyumbani/rental/internal/utils"
)

// PhotoEnqueuer queues background normalization of an uploaded photo.
type PhotoEnqueuer interface {
	EnqueuePhotoProcess(ctx context.Context, propertyID utils.SixID, s3Key string) error
}

// RestPropertyHandler handles property listing operations.
type RestPropertyHandler struct {
	propertyService services.IPropertyService
	userService     services.IUserService
	photoStorage    storage.IPhotoStorage
	photoEnqueuer   PhotoEnqueuer
}

// NewRestPropertyHandler creates a new RestPropertyHandler. photoStorage and
// photoEnqueuer may be nil when photo uploads are disabled.
func NewRestPropertyHandler(propertyService services.IPropertyService, userService services.IUserService, photoStorage storage.IPhotoStorage, photoEnqueuer PhotoEnqueuer) *RestPropertyHandler {
	return &RestPropertyHandler{
		propertyService: propertyService,
		userService:     userService,
		photoStorage:    photoStorage,
		photoEnqueuer:   photoEnqueuer,
	}
}

// List handles GET /api/properties.
func (h *RestPropertyHandler) List(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	filter := services.PropertyFilter{
		PropertyType: c.Query("property_type"),
		City:         c.Query("city"),
		Search:       c.Query("search"),
	}
	if v := c.Query("min_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinPrice = f
		}
	}
	if v := c.Query("max_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MaxPrice = f
		}
	}
	if v := c.Query("bedrooms"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Bedrooms = &n
		}
	}
	if v := c.Query("furnished"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Furnished = &b
		}
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	properties, total, err := h.propertyService.List(c.Request.Context(), actor, filter, page, limit, c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"properties": properties,
		"total":      total,
		"page":       page,
	})
}

// Get handles GET /api/properties/:id.
func (h *RestPropertyHandler) Get(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	propertyID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid property ID"})
		return
	}

	property, err := h.propertyService.Get(c.Request.Context(), actor, propertyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "property": property})
}

// Create handles POST /api/properties.
func (h *RestPropertyHandler) Create(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	var in services.CreatePropertyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	property, err := h.propertyService.Create(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "property": property})
}

// Update handles PUT /api/properties/:id.
func (h *RestPropertyHandler) Update(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	propertyID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid property ID"})
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	property, err := h.propertyService.Update(c.Request.Context(), actor, propertyID, updates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "property": property})
}

// Delete handles DELETE /api/properties/:id.
func (h *RestPropertyHandler) Delete(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	propertyID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid property ID"})
		return
	}

	if err := h.propertyService.Delete(c.Request.Context(), actor, propertyID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Save handles POST /api/properties/:id/save.
func (h *RestPropertyHandler) Save(c *gin.Context) {
	h.toggleSave(c, true)
}

// Unsave handles DELETE /api/properties/:id/save.
func (h *RestPropertyHandler) Unsave(c *gin.Context) {
	h.toggleSave(c, false)
}

func (h *RestPropertyHandler) toggleSave(c *gin.Context, save bool) {
	actor, _ := middleware.GetActor(c)
	propertyID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid property ID"})
		return
	}

	if save {
		if _, err := h.propertyService.FindByID(c.Request.Context(), propertyID); err != nil {
			respondError(c, err)
			return
		}
		err = h.userService.SaveProperty(c.Request.Context(), actor, propertyID)
	} else {
		err = h.userService.UnsaveProperty(c.Request.Context(), actor, propertyID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Saved handles GET /api/properties/saved.
func (h *RestPropertyHandler) Saved(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	properties, err := h.propertyService.SavedProperties(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "properties": properties})
}

// photoUploadRequest is the POST /api/properties/:id/photos body.
type photoUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// RequestPhotoUpload handles POST /api/properties/:id/photos. It returns a
// pre-signed PUT URL the client uploads to directly; the photo record is
// registered immediately and its URL swapped once processing completes.
func (h *RestPropertyHandler) RequestPhotoUpload(c *gin.Context) {
	if h.photoStorage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Photo uploads are not configured"})
		return
	}

	actor, _ := middleware.GetActor(c)
	propertyID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid property ID"})
		return
	}

	var req photoUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "filename and content_type are required"})
		return
	}

	uploadURL, key, err := h.photoStorage.GeneratePresignedPutURL(c.Request.Context(), actor.ID.String(), propertyID.String(), req.Filename, req.ContentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not prepare upload"})
		return
	}

	property, err := h.propertyService.AddPhoto(c.Request.Context(), actor, propertyID, models.PropertyPhoto{
		URL: h.photoStorage.PublicURL(key),
		Key: key,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"upload_url": uploadURL,
		"key":        key,
		"property":   property,
	})
}

// ConfirmPhotoUpload handles POST /api/properties/:id/photos/confirm. Called
// after the client finishes the S3 upload; queues normalization.
func (h *RestPropertyHandler) ConfirmPhotoUpload(c *gin.Context) {
	if h.photoEnqueuer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Photo uploads are not configured"})
		return
	}

	actor, _ := middleware.GetActor(c)
	propertyID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid property ID"})
		return
	}

	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "key is required"})
		return
	}

	property, err := h.propertyService.FindByID(c.Request.Context(), propertyID)
	if err != nil {
		respondError(c, err)
		return
	}
	if property.LandlordID != actor.ID {
		c.JSON(http.StatusForbidden, gin.H{"message": "You can only manage photos on your own properties"})
		return
	}

	if err := h.photoEnqueuer.EnqueuePhotoProcess(c.Request.Context(), propertyID, req.Key); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}
