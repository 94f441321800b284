package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nyumbani/rental/internal/api/middleware"
	"nyumbani/rental/internal/models"
	"nyumbani/rental/internal/services"
	"nyumbani/rental/internal/utils"
)

// RestInquiryHandler handles the inquiry lifecycle endpoints.
type RestInquiryHandler struct {
	inquiryService services.IInquiryService
}

// NewRestInquiryHandler creates a new RestInquiryHandler.
func NewRestInquiryHandler(inquiryService services.IInquiryService) *RestInquiryHandler {
	return &RestInquiryHandler{inquiryService: inquiryService}
}

// Create handles POST /api/inquiries.
func (h *RestInquiryHandler) Create(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	var in services.CreateInquiryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	inquiry, err := h.inquiryService.Create(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "inquiry": inquiry})
}

// List handles GET /api/inquiries.
func (h *RestInquiryHandler) List(c *gin.Context) {
	actor, _ := middleware.GetActor(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	inquiries, total, err := h.inquiryService.List(c.Request.Context(), actor, services.InquiryFilter{
		Status: c.Query("status"),
	}, page, limit, c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"inquiries": inquiries,
		"total":     total,
		"page":      page,
	})
}

// Get handles GET /api/inquiries/:id.
func (h *RestInquiryHandler) Get(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	inquiryID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid inquiry ID"})
		return
	}

	inquiry, err := h.inquiryService.GetByID(c.Request.Context(), actor, inquiryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "inquiry": inquiry})
}

// replyRequest is the POST /api/inquiries/:id/reply body.
type replyRequest struct {
	Message string `json:"message" binding:"required"`
}

// Reply handles POST /api/inquiries/:id/reply.
func (h *RestInquiryHandler) Reply(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	inquiryID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid inquiry ID"})
		return
	}

	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "message is required"})
		return
	}

	inquiry, err := h.inquiryService.Reply(c.Request.Context(), actor, inquiryID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "inquiry": inquiry})
}

// ScheduleViewing handles POST /api/inquiries/:id/schedule.
func (h *RestInquiryHandler) ScheduleViewing(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	inquiryID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid inquiry ID"})
		return
	}

	var in services.ScheduleViewingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	inquiry, err := h.inquiryService.ScheduleViewing(c.Request.Context(), actor, inquiryID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "inquiry": inquiry})
}

// ConfirmViewing handles POST /api/inquiries/:id/confirm-viewing.
func (h *RestInquiryHandler) ConfirmViewing(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	inquiryID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid inquiry ID"})
		return
	}

	inquiry, err := h.inquiryService.ConfirmViewing(c.Request.Context(), actor, inquiryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "inquiry": inquiry})
}

// statusRequest is the PATCH /api/inquiries/:id/status body.
type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus handles PATCH /api/inquiries/:id/status.
func (h *RestInquiryHandler) SetStatus(c *gin.Context) {
	actor, _ := middleware.GetActor(c)
	inquiryID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid inquiry ID"})
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "status is required"})
		return
	}

	inquiry, err := h.inquiryService.SetStatus(c.Request.Context(), actor, inquiryID, models.InquiryStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "inquiry": inquiry})
}
