package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gear-rental/api-gateway/middleware"
	booking "gear-rental/booking-service/services"
	"gear-rental/shared/auth"
	"gear-rental/shared/i18n"
	"gear-rental/shared/models"
)

// Bookings

func (h *Handler) CreateBooking(c *gin.Context) {
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationError(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Get(ctx, c.GetString(middleware.KeyUserID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	created, err := h.bookings.Create(ctx, *user, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"booking": created,
		"message": i18n.T(language(c), "booking.created"),
	})
}

func (h *Handler) GetBookings(c *gin.Context) {
	bookings, err := h.bookings.ListByUser(c.Request.Context(), c.GetString(middleware.KeyUserID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GetBooking returns one of the caller's bookings. Admins may read any.
func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	isAdmin := c.GetString(middleware.KeyUserRole) == auth.RoleAdmin && h.config.IsAdmin(c.GetString(middleware.KeyUserEmail))
	if b.UserID != c.GetString(middleware.KeyUserID) && !isAdmin {
		h.respondError(c, booking.ErrBookingNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) CancelBooking(c *gin.Context) {
	b, err := h.bookings.Cancel(c.Request.Context(), c.GetString(middleware.KeyUserID), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking": b,
		"message": i18n.T(language(c), "booking.cancelled"),
	})
}

// Leads

func (h *Handler) SubmitLead(c *gin.Context) {
	var req models.LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationError(c, err)
		return
	}
	lead, err := h.leads.SubmitLead(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lead": lead, "message": i18n.T(language(c), "lead.submitted")})
}

func (h *Handler) SubmitContact(c *gin.Context) {
	var req models.LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationError(c, err)
		return
	}
	lead, err := h.leads.SubmitContact(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lead": lead, "message": i18n.T(language(c), "contact.submitted")})
}

func (h *Handler) SubmitProductRequest(c *gin.Context) {
	var req models.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationError(c, err)
		return
	}
	lead, err := h.leads.SubmitProductRequest(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lead": lead, "message": i18n.T(language(c), "product_request.submitted")})
}

// Admin

func (h *Handler) AdminListProducts(c *gin.Context) {
	products := h.catalog.All(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
}

func (h *Handler) AdminCreateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		h.validationError(c, err)
		return
	}
	product.ID = ""
	h.saveProduct(c, product, http.StatusCreated)
}

func (h *Handler) AdminUpdateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		h.validationError(c, err)
		return
	}
	product.ID = c.Param("id")
	h.saveProduct(c, product, http.StatusOK)
}

func (h *Handler) saveProduct(c *gin.Context, product models.Product, status int) {
	saved, err := h.admin.SaveProduct(c.Request.Context(), product)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, gin.H{
		"product": saved,
		"message": i18n.T(language(c), "admin.product.saved"),
	})
}

func (h *Handler) AdminDeleteProduct(c *gin.Context) {
	if err := h.admin.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": i18n.T(language(c), "admin.product.deleted")})
}

func (h *Handler) AdminReloadCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"loaded": h.catalog.Reload()})
}

func bookingFilter(c *gin.Context) booking.ListFilter {
	return booking.ListFilter{
		UserID:    c.Query("userId"),
		ProductID: c.Query("productId"),
		Status:    models.BookingStatus(c.Query("status")),
	}
}

func (h *Handler) AdminListBookings(c *gin.Context) {
	details, err := h.admin.ListBookings(c.Request.Context(), bookingFilter(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": details, "total": len(details)})
}

func (h *Handler) AdminUpdateBookingStatus(c *gin.Context) {
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationError(c, err)
		return
	}
	updated, err := h.admin.UpdateBookingStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking": updated,
		"message": i18n.T(language(c), "booking.status_updated"),
	})
}

func (h *Handler) AdminListLeads(c *gin.Context) {
	leads, err := h.admin.ListLeads(c.Request.Context(), models.LeadSource(c.Query("source")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads, "total": len(leads)})
}

func (h *Handler) AdminStatistics(c *gin.Context) {
	stats, err := h.admin.Statistics(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) AdminSystemHealth(c *gin.Context) {
	health := h.admin.Health(c.Request.Context())
	if h.relay != nil {
		health.Record("notification-service", h.relay.Check(c.Request.Context()))
	}
	c.JSON(http.StatusOK, health)
}

func (h *Handler) AdminExportBookings(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.admin.ExportBookingsCSV(c.Request.Context(), &buf, bookingFilter(c)); err != nil {
		h.respondError(c, err)
		return
	}
	sendCSV(c, "bookings", buf.Bytes())
}

func (h *Handler) AdminExportLeads(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.admin.ExportLeadsCSV(c.Request.Context(), &buf, models.LeadSource(c.Query("source"))); err != nil {
		h.respondError(c, err)
		return
	}
	sendCSV(c, "leads", buf.Bytes())
}

func sendCSV(c *gin.Context, name string, data []byte) {
	filename := name + "-" + time.Now().UTC().Format("20060102") + ".csv"
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}
