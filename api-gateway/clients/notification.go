package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"gear-rental/shared/config"
	"gear-rental/shared/models"
)

const relayServiceName = "notification-service"

// NotificationClient talks to the notification relay: JSON over HTTP for
// emails, the gRPC health service for liveness.
type NotificationClient struct {
	baseURL string
	timeout time.Duration
	conn    *grpc.ClientConn
}

func NewNotificationClient(cfg *config.Config) *NotificationClient {
	c := &NotificationClient{
		baseURL: strings.TrimRight(cfg.Services.NotificationURL, "/"),
		timeout: cfg.Services.RelayTimeout,
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}

	if cfg.Services.NotificationRPC != "" {
		conn, err := grpc.Dial(cfg.Services.NotificationRPC,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                30 * time.Second,
				Timeout:             3 * time.Second,
				PermitWithoutStream: true,
			}),
		)
		if err != nil {
			zap.S().Warnf("Notification gRPC health client disabled: %v", err)
		} else {
			c.conn = conn
		}
	}
	return c
}

func (c *NotificationClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

type relayResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *NotificationClient) post(ctx context.Context, path string, payload interface{}) error {
	var (
		resp relayResponse
		code int
	)
	err := gout.POST(c.baseURL + path).
		WithContext(ctx).
		SetTimeout(c.timeout).
		SetJSON(payload).
		BindJSON(&resp).
		Code(&code).
		Do()
	if err != nil {
		return fmt.Errorf("notification relay %s: %w", path, err)
	}
	if code != http.StatusOK {
		msg := resp.Error
		if msg == "" {
			msg = http.StatusText(code)
		}
		return fmt.Errorf("notification relay %s: %d %s", path, code, msg)
	}
	return nil
}

// BookingCreated asks the relay to mail the booking confirmation.
func (c *NotificationClient) BookingCreated(ctx context.Context, booking models.Booking, product models.Product, user models.User) error {
	return c.post(ctx, "/api/bookings/confirm", models.ConfirmationRequest{
		Booking: &booking,
		Product: &product,
		User:    &user,
	})
}

// LeadSubmitted forwards a contact message or product request to the operator.
func (c *NotificationClient) LeadSubmitted(ctx context.Context, lead models.Lead) error {
	return c.post(ctx, "/api/leads/notify", lead)
}

// Check queries the relay's gRPC health service.
func (c *NotificationClient) Check(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("notification relay health check not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: relayServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("notification relay status %s", resp.GetStatus())
	}
	return nil
}
