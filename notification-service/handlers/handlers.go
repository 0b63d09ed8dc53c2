package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"gear-rental/notification-service/services"
	"gear-rental/shared/config"
	"gear-rental/shared/i18n"
	"gear-rental/shared/models"
)

type Sender interface {
	SendBookingConfirmation(ctx context.Context, lang string, req models.ConfirmationRequest) (services.Delivery, error)
	SendLeadNotification(ctx context.Context, lead models.Lead) (services.Delivery, error)
	SendTestEmail(ctx context.Context, lang, to string) error
}

type Handler struct {
	config        *config.Config
	notifications Sender
}

func NewHandler(cfg *config.Config, notifications Sender) *Handler {
	return &Handler{config: cfg, notifications: notifications}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.POST("/bookings/confirm", h.ConfirmBooking)
		api.POST("/leads/notify", h.NotifyLead)
		api.POST("/test-email", h.TestEmail)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "notification-service",
	})
}

// language picks the first supported tag of Accept-Language.
func (h *Handler) language(c *gin.Context) string {
	for _, part := range strings.Split(c.GetHeader("Accept-Language"), ",") {
		tag := strings.TrimSpace(strings.Split(part, ";")[0])
		if tag == "" {
			continue
		}
		base := strings.ToLower(strings.Split(tag, "-")[0])
		if i18n.IsSupported(base) {
			return base
		}
	}
	return h.config.I18n.DefaultLanguage
}

func (h *Handler) ConfirmBooking(c *gin.Context) {
	lang := h.language(c)

	var req models.ConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": i18n.T(lang, "email.missing_data")})
		return
	}

	delivery, err := h.notifications.SendBookingConfirmation(c.Request.Context(), lang, req)
	if err != nil {
		if errors.Is(err, services.ErrMissingData) {
			c.JSON(http.StatusBadRequest, gin.H{"error": i18n.T(lang, "email.missing_data")})
			return
		}
		zap.S().Errorf("Error sending booking confirmation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": i18n.T(lang, "email.failed")})
		return
	}

	h.delivered(c, lang, delivery, "email.sent")
}

func (h *Handler) NotifyLead(c *gin.Context) {
	lang := h.language(c)

	var lead models.Lead
	if err := c.ShouldBindJSON(&lead); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": i18n.T(lang, "email.missing_data")})
		return
	}

	delivery, err := h.notifications.SendLeadNotification(c.Request.Context(), lead)
	if err != nil {
		if errors.Is(err, services.ErrMissingData) || errors.Is(err, services.ErrUnsupportedLead) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		zap.S().Errorf("Error sending lead notification: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": i18n.T(lang, "email.failed")})
		return
	}

	h.delivered(c, lang, delivery, "email.sent")
}

func (h *Handler) TestEmail(c *gin.Context) {
	lang := h.language(c)

	// An empty body, chunked or not, sends to the operator.
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req models.TestEmailRequest
	if len(bytes.TrimSpace(data)) > 0 {
		if err := binding.JSON.BindBody(data, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	to := strings.TrimSpace(req.Email)
	if to != "" && !h.config.Email.TestAnyRecipient && !strings.EqualFold(to, h.config.Email.OperatorEmail) {
		zap.S().Warnf("Rejected test email to %s", to)
		c.JSON(http.StatusForbidden, gin.H{"error": i18n.T(lang, "email.test.recipient_not_allowed")})
		return
	}

	if err := h.notifications.SendTestEmail(c.Request.Context(), lang, to); err != nil {
		zap.S().Errorf("Error sending test email: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": i18n.T(lang, "email.test.sent"),
	})
}

func (h *Handler) delivered(c *gin.Context, lang string, d services.Delivery, sentKey string) {
	if d.Queued {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": i18n.T(lang, "email.queued"),
			"jobId":   d.JobID,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": i18n.T(lang, sentKey),
	})
}
