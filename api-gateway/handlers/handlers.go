package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gear-rental/api-gateway/middleware"
	admin "gear-rental/admin-service/services"
	booking "gear-rental/booking-service/services"
	catalog "gear-rental/catalog-service/services"
	"gear-rental/shared/config"
	"gear-rental/shared/i18n"
	"gear-rental/shared/models"
	users "gear-rental/user-service/services"
)

// HealthChecker reports whether a downstream dependency is reachable.
type HealthChecker interface {
	Check(ctx context.Context) error
}

type Handler struct {
	config   *config.Config
	catalog  *catalog.CatalogService
	bookings *booking.BookingService
	users    *users.UserService
	leads    *admin.LeadService
	admin    *admin.AdminService
	relay    HealthChecker
}

func NewHandler(cfg *config.Config, catalogService *catalog.CatalogService, bookingService *booking.BookingService,
	userService *users.UserService, leadService *admin.LeadService, adminService *admin.AdminService, relay HealthChecker) *Handler {
	return &Handler{
		config:   cfg,
		catalog:  catalogService,
		bookings: bookingService,
		users:    userService,
		leads:    leadService,
		admin:    adminService,
		relay:    relay,
	}
}

func language(c *gin.Context) string {
	return c.GetString(middleware.KeyLanguage)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "api-gateway",
		"status":  "healthy",
	})
}

// respondError maps service errors to HTTP responses.
func (h *Handler) respondError(c *gin.Context, err error) {
	lang := language(c)

	var lengthErr *booking.RentalLengthError
	switch {
	case errors.As(err, &lengthErr):
		msg := i18n.T(lang, "booking.rental_length_min", lengthErr.Min)
		if lengthErr.Max > 0 {
			msg = i18n.T(lang, "booking.rental_length", lengthErr.Min, lengthErr.Max)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_rental_length", "message": msg})
	case errors.Is(err, catalog.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product_not_found", "message": i18n.T(lang, "product.not_found")})
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking_not_found", "message": i18n.T(lang, "booking.not_found")})
	case errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found", "message": i18n.T(lang, "user.not_found")})
	case errors.Is(err, booking.ErrUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "dates_unavailable", "message": i18n.T(lang, "booking.unavailable")})
	case errors.Is(err, booking.ErrProductUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "product_unavailable", "message": i18n.T(lang, "booking.product_unavailable")})
	case errors.Is(err, booking.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "message": i18n.T(lang, "booking.invalid_transition")})
	case errors.Is(err, booking.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_range", "message": i18n.T(lang, "booking.invalid_range")})
	case errors.Is(err, booking.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date", "message": i18n.T(lang, "booking.invalid_date")})
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken", "message": i18n.T(lang, "auth.signup.email_taken")})
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "message": i18n.T(lang, "auth.signin.invalid_credentials")})
	case errors.Is(err, booking.ErrInvalidBookingInput),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, admin.ErrInvalidLead):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
	default:
		zap.S().Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": i18n.T(lang, "error.internal")})
	}
}

func (h *Handler) validationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "validation_error",
		"message": i18n.T(language(c), "error.validation"),
		"details": err.Error(),
	})
}

// Auth

func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationError(c, err)
		return
	}

	resp, err := h.users.SignUp(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":   resp.Token,
		"user":    resp.User,
		"message": i18n.T(language(c), "auth.signup.success"),
	})
}

func (h *Handler) SignIn(c *gin.Context) {
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationError(c, err)
		return
	}

	resp, err := h.users.SignIn(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   resp.Token,
		"user":    resp.User,
		"message": i18n.T(language(c), "auth.signin.success"),
	})
}

func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.GetString(middleware.KeyUserID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationError(c, err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), c.GetString(middleware.KeyUserID), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"message": i18n.T(language(c), "profile.updated"),
	})
}

// Catalog

type productQuery struct {
	Category string   `form:"category"`
	Levels   []string `form:"level"`
	MinPrice *int     `form:"minPrice" binding:"omitempty,gte=0"`
	MaxPrice *int     `form:"maxPrice" binding:"omitempty,gte=0"`
	Search   string   `form:"search"`
	Query    string   `form:"q"`
}

func (q productQuery) spec() catalog.FilterSpec {
	spec := catalog.FilterSpec{
		Category: strings.TrimSpace(q.Category),
		Search:   strings.TrimSpace(q.Search),
	}
	for _, level := range q.Levels {
		for _, l := range strings.Split(level, ",") {
			if l = strings.TrimSpace(l); l != "" {
				spec.ExperienceLevels = append(spec.ExperienceLevels, l)
			}
		}
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		spec.PriceRange = &catalog.PriceRange{Min: 0, Max: math.MaxInt32}
		if q.MinPrice != nil {
			spec.PriceRange.Min = *q.MinPrice
		}
		if q.MaxPrice != nil {
			spec.PriceRange.Max = *q.MaxPrice
		}
	}
	return spec
}

// ListProducts serves the catalog page. q runs the broad text search first;
// the remaining parameters narrow the result.
func (h *Handler) ListProducts(c *gin.Context) {
	var q productQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.validationError(c, err)
		return
	}

	ctx := c.Request.Context()
	products := h.catalog.All(ctx)
	if query := strings.TrimSpace(q.Query); query != "" {
		products = catalog.Search(products, query)
	}
	products = catalog.Filter(products, q.spec())

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    len(products),
	})
}

func (h *Handler) FeaturedProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.catalog.Featured(c.Request.Context())})
}

func (h *Handler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.catalog.Categories(c.Request.Context())})
}

func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handler) ProductPlans(c *gin.Context) {
	product, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	minDays, maxDays := booking.RentalLimits(product)
	c.JSON(http.StatusOK, gin.H{
		"productId":         product.ID,
		"plans":             booking.Plans(product),
		"minimumRentalDays": minDays,
		"maximumRentalDays": maxDays,
	})
}

// ProductAvailability quotes a date range: price, duration and whether the
// dates are free.
func (h *Handler) ProductAvailability(c *gin.Context) {
	start, end := c.Query("start"), c.Query("end")
	if start == "" || end == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": i18n.T(language(c), "booking.invalid_date"),
		})
		return
	}

	quote, err := h.bookings.Quote(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}
