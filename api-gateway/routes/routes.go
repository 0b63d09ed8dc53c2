package routes

import (
	"github.com/gin-gonic/gin"

	"gear-rental/api-gateway/handlers"
	"gear-rental/api-gateway/middleware"
	"gear-rental/shared/config"
)

func SetupRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	r.GET("/health", h.Health)

	// Public API routes (no authentication required)
	public := r.Group("/api/v1")
	{
		public.GET("/products", h.ListProducts)
		public.GET("/products/featured", h.FeaturedProducts)
		public.GET("/products/categories", h.Categories)
		public.GET("/products/:id", h.GetProduct)
		public.GET("/products/:id/plans", h.ProductPlans)
		public.GET("/products/:id/availability", h.ProductAvailability)

		public.POST("/leads", h.SubmitLead)
		public.POST("/contact", h.SubmitContact)
		public.POST("/product-requests", h.SubmitProductRequest)

		public.POST("/auth/signup", h.SignUp)
		public.POST("/auth/signin", h.SignIn)
	}

	// Authenticated routes
	authed := r.Group("/api/v1")
	authed.Use(middleware.AuthRequired())
	{
		authed.GET("/profile", h.GetProfile)
		authed.PUT("/profile", h.UpdateProfile)

		authed.GET("/bookings", h.GetBookings)
		authed.POST("/bookings", h.CreateBooking)
		authed.GET("/bookings/:id", h.GetBooking)
		authed.PUT("/bookings/:id/cancel", h.CancelBooking)
	}

	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.AuthRequired())
	admin.Use(middleware.RequireAdmin(cfg))
	{
		admin.GET("/products", h.AdminListProducts)
		admin.POST("/products", h.AdminCreateProduct)
		admin.PUT("/products/:id", h.AdminUpdateProduct)
		admin.DELETE("/products/:id", h.AdminDeleteProduct)
		admin.POST("/catalog/reload", h.AdminReloadCatalog)

		admin.GET("/bookings", h.AdminListBookings)
		admin.PUT("/bookings/:id/status", h.AdminUpdateBookingStatus)

		admin.GET("/leads", h.AdminListLeads)

		admin.GET("/export/bookings.csv", h.AdminExportBookings)
		admin.GET("/export/leads.csv", h.AdminExportLeads)

		admin.GET("/statistics", h.AdminStatistics)
		admin.GET("/system/health", h.AdminSystemHealth)
	}
}
