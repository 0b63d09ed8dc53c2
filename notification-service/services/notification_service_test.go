package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"gear-rental/shared/config"
	"gear-rental/shared/i18n"
	"gear-rental/shared/models"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeQueue struct {
	queued []Message
	err    error
}

func (q *fakeQueue) QueueEmail(ctx context.Context, msg Message) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.queued = append(q.queued, msg)
	return "job-1", nil
}

func newTestService(t *testing.T, mailer Mailer) *NotificationService {
	t.Helper()
	cfg := &config.Config{
		Email: config.EmailConfig{OperatorEmail: "ops@passionfruit.example", OperatorName: "Ops"},
		I18n:  config.I18nConfig{DefaultLanguage: "en", SupportedLanguages: []string{"en", "hi"}},
	}
	if err := i18n.Initialize(cfg); err != nil {
		t.Fatal(err)
	}
	return NewNotificationService(cfg, mailer)
}

func confirmation() models.ConfirmationRequest {
	return models.ConfirmationRequest{
		Booking: &models.Booking{
			ID: "booking_1", StartDate: "2030-06-10", EndDate: "2030-06-12", Duration: 3,
			TotalPrice: 1000, Status: models.BookingPending, DeliveryAddress: "12 MG Road",
		},
		Product: &models.Product{ID: "drone", Name: "DJI Mini 3"},
		User:    &models.User{ID: "u1", Name: "Asha <script>", Email: "asha@example.com", Phone: "9000000000"},
	}
}

func TestSendBookingConfirmation(t *testing.T) {
	mailer := &fakeMailer{}
	s := newTestService(t, mailer)

	d, err := s.SendBookingConfirmation(context.Background(), "en", confirmation())
	if err != nil {
		t.Fatal(err)
	}
	if d.Queued {
		t.Fatal("no queue configured, expected inline delivery")
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d messages, want one", len(mailer.sent))
	}

	msg := mailer.sent[0]
	if len(msg.To) != 2 || msg.To[0].Email != "asha@example.com" || msg.To[1].Email != "ops@passionfruit.example" {
		t.Fatalf("recipients = %+v", msg.To)
	}
	if msg.Subject != "Booking Confirmation - DJI Mini 3 - booking_1" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	for _, want := range []string{"booking_1", "2030-06-10 to 2030-06-12", "3 days", "₹1000", "9000000000", "12 MG Road", "Not provided"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Error("customer name was not escaped")
	}
}

func TestSendBookingConfirmationMissingParts(t *testing.T) {
	s := newTestService(t, &fakeMailer{})

	for name, mutate := range map[string]func(*models.ConfirmationRequest){
		"no booking": func(r *models.ConfirmationRequest) { r.Booking = nil },
		"no product": func(r *models.ConfirmationRequest) { r.Product = nil },
		"no user":    func(r *models.ConfirmationRequest) { r.User = nil },
		"no email":   func(r *models.ConfirmationRequest) { r.User.Email = "" },
	} {
		req := confirmation()
		mutate(&req)
		if _, err := s.SendBookingConfirmation(context.Background(), "en", req); !errors.Is(err, ErrMissingData) {
			t.Errorf("%s: got %v", name, err)
		}
	}
}

func TestSendBookingConfirmationMailerFailure(t *testing.T) {
	s := newTestService(t, &fakeMailer{err: errors.New("smtp down")})
	if _, err := s.SendBookingConfirmation(context.Background(), "en", confirmation()); err == nil {
		t.Fatal("expected mailer error")
	}
}

func TestDispatchUsesQueue(t *testing.T) {
	mailer := &fakeMailer{}
	s := newTestService(t, mailer)
	q := &fakeQueue{}
	s.SetQueue(q)

	d, err := s.SendBookingConfirmation(context.Background(), "en", confirmation())
	if err != nil {
		t.Fatal(err)
	}
	if !d.Queued || d.JobID != "job-1" || len(q.queued) != 1 || len(mailer.sent) != 0 {
		t.Fatalf("delivery = %+v, queued %d, sent %d", d, len(q.queued), len(mailer.sent))
	}

	// A broken queue falls back to sending inline.
	q.err = errors.New("redis gone")
	d, err = s.SendBookingConfirmation(context.Background(), "en", confirmation())
	if err != nil {
		t.Fatal(err)
	}
	if d.Queued || len(mailer.sent) != 1 {
		t.Fatalf("delivery = %+v, sent %d", d, len(mailer.sent))
	}
}

func TestSendLeadNotification(t *testing.T) {
	mailer := &fakeMailer{}
	s := newTestService(t, mailer)
	ctx := context.Background()

	_, err := s.SendLeadNotification(ctx, models.Lead{Source: models.LeadContact, Name: "C", Email: "c@example.com", Message: "Pune delivery?"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.SendLeadNotification(ctx, models.Lead{Source: models.LeadProductRequest, Name: "P", Email: "p@example.com", ProductName: "Sony A7 IV"})
	if err != nil {
		t.Fatal(err)
	}
	if len(mailer.sent) != 2 {
		t.Fatalf("sent %d", len(mailer.sent))
	}
	contact, request := mailer.sent[0], mailer.sent[1]
	if contact.To[0].Email != "ops@passionfruit.example" || !strings.Contains(contact.HTML, "Pune delivery?") {
		t.Errorf("contact = %+v", contact)
	}
	if request.Subject != "Product Request: Sony A7 IV - PassionFruit" || !strings.Contains(request.HTML, "Not specified") {
		t.Errorf("product request subject %q", request.Subject)
	}

	if _, err := s.SendLeadNotification(ctx, models.Lead{Source: models.LeadCapture, Email: "l@example.com"}); !errors.Is(err, ErrUnsupportedLead) {
		t.Errorf("lead capture: %v", err)
	}
}

func TestSendTestEmailDefaultsToOperator(t *testing.T) {
	mailer := &fakeMailer{}
	s := newTestService(t, mailer)
	s.SetQueue(&fakeQueue{})

	if err := s.SendTestEmail(context.Background(), "en", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.SendTestEmail(context.Background(), "en", "me@example.com"); err != nil {
		t.Fatal(err)
	}
	if len(mailer.sent) != 2 {
		t.Fatalf("test emails must bypass the queue, sent %d", len(mailer.sent))
	}
	if mailer.sent[0].To[0].Email != "ops@passionfruit.example" || mailer.sent[1].To[0].Email != "me@example.com" {
		t.Fatalf("recipients = %+v / %+v", mailer.sent[0].To, mailer.sent[1].To)
	}
	if mailer.sent[0].Subject != "PassionFruit Email Test" {
		t.Fatalf("subject = %q", mailer.sent[0].Subject)
	}
}

func TestMessageValidate(t *testing.T) {
	if err := (Message{Subject: "s", HTML: "h"}).Validate(); err == nil {
		t.Error("no recipients should fail")
	}
	if err := (Message{To: []Recipient{{Email: " "}}, Subject: "s", HTML: "h"}).Validate(); err == nil {
		t.Error("blank recipient should fail")
	}
	if err := (LogMailer{}).Send(context.Background(), Message{To: []Recipient{{Email: "a@b.c"}}, Subject: "s", HTML: "h"}); err != nil {
		t.Errorf("log mailer: %v", err)
	}
}
