package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gear-rental/notification-service/templates"
	"gear-rental/shared/config"
	"gear-rental/shared/i18n"
	"gear-rental/shared/models"
)

var (
	ErrMissingData     = errors.New("missing required data")
	ErrUnsupportedLead = errors.New("lead source has no operator email")
)

// Queue hands messages to the background job workers.
type Queue interface {
	QueueEmail(ctx context.Context, msg Message) (string, error)
}

// Delivery reports how a message left the service.
type Delivery struct {
	Queued bool   `json:"queued"`
	JobID  string `json:"jobId,omitempty"`
}

type NotificationService struct {
	config *config.Config
	mailer Mailer
	queue  Queue
}

func NewNotificationService(cfg *config.Config, mailer Mailer) *NotificationService {
	return &NotificationService{
		config: cfg,
		mailer: mailer,
	}
}

// SetQueue routes messages through q instead of sending them inline.
func (s *NotificationService) SetQueue(q Queue) {
	s.queue = q
}

// Deliver sends msg right away, bypassing the queue. Workers call this.
func (s *NotificationService) Deliver(ctx context.Context, msg Message) error {
	return s.mailer.Send(ctx, msg)
}

func (s *NotificationService) dispatch(ctx context.Context, msg Message) (Delivery, error) {
	if err := msg.Validate(); err != nil {
		return Delivery{}, err
	}
	if s.queue != nil {
		jobID, err := s.queue.QueueEmail(ctx, msg)
		if err == nil {
			return Delivery{Queued: true, JobID: jobID}, nil
		}
		zap.S().Warnf("Failed to queue email, sending inline: %v", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return Delivery{}, err
	}
	return Delivery{}, nil
}

func (s *NotificationService) operator() Recipient {
	return Recipient{Email: s.config.Email.OperatorEmail, Name: s.config.Email.OperatorName}
}

func (s *NotificationService) render(name, lang string, data map[string]string) (string, error) {
	return templates.Render(name, lang, s.config.I18n.DefaultLanguage, data)
}

func orDefault(lang, value, key string) string {
	if value != "" {
		return value
	}
	return i18n.T(lang, key)
}

func displayName(u *models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func rentalDuration(lang string, days int) string {
	if days == 1 {
		return i18n.T(lang, "email.day")
	}
	return i18n.T(lang, "email.days", days)
}

// SendBookingConfirmation mails the booking summary to the customer with the
// operator in copy.
func (s *NotificationService) SendBookingConfirmation(ctx context.Context, lang string, req models.ConfirmationRequest) (Delivery, error) {
	if req.Booking == nil || req.Product == nil || req.User == nil || req.User.Email == "" {
		return Delivery{}, ErrMissingData
	}
	b, p, u := req.Booking, req.Product, req.User

	phone := b.PhoneNumber
	if phone == "" {
		phone = u.Phone
	}
	status := string(b.Status)
	if status == "" {
		status = string(models.BookingPending)
	}

	body, err := s.render(templates.BookingConfirmation, lang, map[string]string{
		"booking_id":        b.ID,
		"product_name":      p.Name,
		"customer_name":     displayName(u),
		"customer_email":    u.Email,
		"customer_phone":    orDefault(lang, phone, "email.not_provided"),
		"delivery_address":  orDefault(lang, b.DeliveryAddress, "email.not_provided"),
		"emergency_contact": orDefault(lang, b.EmergencyContact, "email.not_provided"),
		"rental_period":     fmt.Sprintf("%s to %s", b.StartDate, b.EndDate),
		"rental_duration":   rentalDuration(lang, b.Duration),
		"total_price":       fmt.Sprintf("₹%d", b.TotalPrice),
		"start_date":        b.StartDate,
		"end_date":          b.EndDate,
		"booking_status":    status,
	})
	if err != nil {
		return Delivery{}, err
	}

	msg := Message{
		To:      []Recipient{{Email: u.Email, Name: displayName(u)}, s.operator()},
		Subject: i18n.T(lang, "email.booking.confirmation.subject", p.Name, b.ID),
		HTML:    body,
	}
	return s.dispatch(ctx, msg)
}

// SendBookingReminder tells the customer their rental starts soon.
func (s *NotificationService) SendBookingReminder(ctx context.Context, lang string, b models.Booking, p models.Product, u models.User) (Delivery, error) {
	if u.Email == "" {
		return Delivery{}, ErrMissingData
	}
	body, err := s.render(templates.BookingReminder, lang, map[string]string{
		"booking_id":       b.ID,
		"product_name":     p.Name,
		"customer_name":    displayName(&u),
		"start_date":       b.StartDate,
		"end_date":         b.EndDate,
		"delivery_address": orDefault(lang, b.DeliveryAddress, "email.not_provided"),
	})
	if err != nil {
		return Delivery{}, err
	}
	return s.dispatch(ctx, Message{
		To:      []Recipient{{Email: u.Email, Name: displayName(&u)}},
		Subject: i18n.T(lang, "email.booking.reminder.subject", p.Name),
		HTML:    body,
	})
}

// SendLeadNotification forwards a contact message or product request to the
// operator.
func (s *NotificationService) SendLeadNotification(ctx context.Context, lead models.Lead) (Delivery, error) {
	lang := s.config.I18n.DefaultLanguage
	if lead.Email == "" {
		return Delivery{}, ErrMissingData
	}

	var (
		name    string
		subject string
		data    = map[string]string{
			"from_name":    lead.Name,
			"from_email":   lead.Email,
			"phone_number": orDefault(lang, lead.Phone, "email.not_provided"),
		}
	)
	switch lead.Source {
	case models.LeadContact:
		name = templates.ContactOperator
		subject = i18n.T(lang, "email.contact.subject")
		data["message"] = lead.Message
	case models.LeadProductRequest:
		name = templates.ProductRequest
		subject = i18n.T(lang, "email.product_request.subject", lead.ProductName)
		data["product_name"] = lead.ProductName
		data["category"] = orDefault(lang, lead.Category, "email.not_specified")
		data["description"] = orDefault(lang, lead.Message, "email.not_specified")
		data["budget"] = orDefault(lang, lead.Budget, "email.not_specified")
		data["timeline"] = orDefault(lang, lead.Timeline, "email.not_specified")
	default:
		return Delivery{}, fmt.Errorf("%w: %s", ErrUnsupportedLead, lead.Source)
	}

	body, err := s.render(name, lang, data)
	if err != nil {
		return Delivery{}, err
	}
	return s.dispatch(ctx, Message{To: []Recipient{s.operator()}, Subject: subject, HTML: body})
}

// SendTestEmail sends a short test message, to the operator when to is empty.
// It always goes out inline so the caller learns whether SMTP works.
func (s *NotificationService) SendTestEmail(ctx context.Context, lang, to string) error {
	recipient := s.operator()
	if to != "" {
		recipient = Recipient{Email: to, Name: "Test User"}
	}
	body, err := s.render(templates.TestEmail, lang, map[string]string{
		"message": i18n.T(lang, "email.test.body"),
	})
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, Message{
		To:      []Recipient{recipient},
		Subject: i18n.T(lang, "email.test.subject"),
		HTML:    body,
	})
}
