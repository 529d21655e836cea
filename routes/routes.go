package routes

import (
	"time"

	"coursebook/handlers"
	"coursebook/middleware"
	"coursebook/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", handlers.HealthCheck)
}

// RegisterBookingRoutes sets up the enrollment endpoints. The webhook is
// authenticated by its signature, everything else by the bearer token.
func RegisterBookingRoutes(r *gin.Engine, h *handlers.BookingHandler, tokens middleware.TokenParser) {
	bookingGroup := r.Group("/api/bookings")
	bookingGroup.POST("/webhook", h.PaymentWebhook)

	staff := middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin)

	protected := bookingGroup.Group("")
	protected.Use(middleware.JWTAuthMiddleware(tokens))
	{
		protected.POST("", h.CreateBooking)
		// Static paths first so they are not read as a booking id.
		protected.GET("/my-bookings", h.ListMyBookings)
		protected.GET("/instructor-bookings", staff, h.ListInstructorBookings)
		protected.GET("/:id", h.GetBooking)
		protected.PUT("/:id/status", staff, h.UpdateBookingStatus)
		protected.PUT("/:id/cancel", h.CancelBooking)
	}
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, h *handlers.BookingHandler, tokens middleware.TokenParser) {
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterBookingRoutes(r, h, tokens)
}
