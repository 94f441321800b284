package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"nyumbani/rental/internal/api/handlers"
	"nyumbani/rental/internal/api/middleware"
	"nyumbani/rental/internal/config"
	"nyumbani/rental/internal/models"
	"nyumbani/rental/internal/services"
	"nyumbani/rental/internal/storage"
	"nyumbani/rental/internal/tasks"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient *asynq.Client) *gin.Engine {
	userService := services.NewUserService(db)
	propertyService := services.NewPropertyService(db, userService)

	photoStorage, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	var notifier *tasks.TaskNotifier
	if taskClient != nil {
		notifier = tasks.NewTaskNotifier(cfg, taskClient, userService, propertyService)
	}
	var inquiryNotifier services.Notifier
	if notifier != nil {
		inquiryNotifier = notifier
	}
	inquiryService := services.NewInquiryService(db, propertyService, inquiryNotifier)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewRestAuthHandler(cfg, userService, welcomeNotifier(notifier))
	userHandler := handlers.NewRestUserHandler(userService)
	propertyHandler := handlers.NewRestPropertyHandler(propertyService, userService, photoStorage, photoEnqueuer(notifier))
	inquiryHandler := handlers.NewRestInquiryHandler(inquiryService)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/me", middleware.AuthMiddleware(cfg.JwtSecret), authHandler.Me)
		}

		authRequired := apiGroup.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			users := authRequired.Group("/users")
			{
				users.GET("/profile", userHandler.GetProfile)
				users.PUT("/profile", userHandler.UpdateProfile)
				users.GET("/saved-properties", propertyHandler.Saved)
			}

			properties := authRequired.Group("/properties")
			{
				properties.GET("", propertyHandler.List)
				properties.GET("/:id", propertyHandler.Get)
				properties.POST("/:id/save", propertyHandler.Save)
				properties.DELETE("/:id/save", propertyHandler.Unsave)

				landlordOnly := properties.Group("")
				landlordOnly.Use(middleware.RequireRole(models.RoleLandlord))
				{
					landlordOnly.POST("", propertyHandler.Create)
					landlordOnly.PUT("/:id", propertyHandler.Update)
					landlordOnly.DELETE("/:id", propertyHandler.Delete)
					landlordOnly.POST("/:id/photos", propertyHandler.RequestPhotoUpload)
					landlordOnly.POST("/:id/photos/confirm", propertyHandler.ConfirmPhotoUpload)
				}
			}

			inquiries := authRequired.Group("/inquiries")
			{
				inquiries.POST("", inquiryHandler.Create)
				inquiries.GET("", inquiryHandler.List)
				inquiries.GET("/:id", inquiryHandler.Get)
				inquiries.POST("/:id/reply", inquiryHandler.Reply)
				inquiries.POST("/:id/schedule", inquiryHandler.ScheduleViewing)
				inquiries.POST("/:id/confirm-viewing", inquiryHandler.ConfirmViewing)
				inquiries.PATCH("/:id/status", inquiryHandler.SetStatus)
			}
		}
	}

	return r
}

// welcomeNotifier avoids handing handlers a typed-nil interface when no task
// client is configured.
func welcomeNotifier(n *tasks.TaskNotifier) handlers.WelcomeNotifier {
	if n == nil {
		return nil
	}
	return n
}

func photoEnqueuer(n *tasks.TaskNotifier) handlers.PhotoEnqueuer {
	if n == nil {
		return nil
	}
	return n
}
