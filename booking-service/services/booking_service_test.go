package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gear-rental/shared/config"
	"gear-rental/shared/models"
	"gear-rental/shared/storage"
)

var errNoProduct = errors.New("no such product")

type fakeCatalog map[string]models.Product

func (c fakeCatalog) Get(ctx context.Context, id string) (models.Product, error) {
	p, ok := c[id]
	if !ok {
		return models.Product{}, fmt.Errorf("%w: %s", errNoProduct, id)
	}
	return p, nil
}

type recordingNotifier struct {
	calls chan models.Booking
	err   error
}

func (n *recordingNotifier) BookingCreated(ctx context.Context, b models.Booking, p models.Product, u models.User) error {
	n.calls <- b
	return n.err
}

func testCatalog() fakeCatalog {
	return fakeCatalog{
		"drone": {ID: "drone", Name: "Drone", WeeklyPrice: 1000, MonthlyPrice: 3000, Available: true, MaximumRentalDays: 60},
		"scope": {ID: "scope", Name: "Telescope", WeeklyPrice: 3500, MonthlyPrice: 9000, Available: true, MinimumRentalDays: 3, MaximumRentalDays: 10},
		"tent":  {ID: "tent", Name: "Tent", WeeklyPrice: 800, MonthlyPrice: 2200, Available: false},
	}
}

func newTestService(notifier Notifier) *BookingService {
	cfg := &config.Config{Storage: config.StorageConfig{KeyPrefix: "test"}}
	svc := NewBookingService(cfg, storage.NewMemoryStore(), testCatalog(), notifier)
	svc.now = func() time.Time { return time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func bookingRequest(product, start, end string) models.BookingRequest {
	return models.BookingRequest{
		ProductID:       product,
		StartDate:       start,
		EndDate:         end,
		PhoneNumber:     "+91 90000 00000",
		DeliveryAddress: "12 MG Road, Bengaluru",
	}
}

var alice = models.User{ID: "user-alice", Email: "alice@example.com", Name: "Alice"}
var bob = models.User{ID: "user-bob", Email: "bob@example.com", Name: "Bob"}

func TestCreateBooking(t *testing.T) {
	notifier := &recordingNotifier{calls: make(chan models.Booking, 1)}
	svc := newTestService(notifier)
	ctx := context.Background()

	b, err := svc.Create(ctx, alice, bookingRequest("drone", "2030-06-10", "2030-06-15"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != models.BookingPending {
		t.Errorf("status = %s, want pending", b.Status)
	}
	if b.Duration != 6 || b.TotalPrice != 1000 {
		t.Errorf("duration/price = %d/%d, want 6/1000", b.Duration, b.TotalPrice)
	}
	if b.UserID != alice.ID || b.ID == "" {
		t.Errorf("unexpected booking %+v", b)
	}

	select {
	case got := <-notifier.calls:
		if got.ID != b.ID {
			t.Errorf("notified about %s, want %s", got.ID, b.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("notifier was not called")
	}

	stored, err := svc.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.TotalPrice != b.TotalPrice {
		t.Errorf("stored price %d, want %d", stored.TotalPrice, b.TotalPrice)
	}
}

func TestCreateBookingSurvivesNotifierFailure(t *testing.T) {
	notifier := &recordingNotifier{calls: make(chan models.Booking, 1), err: errors.New("smtp down")}
	svc := newTestService(notifier)

	if _, err := svc.Create(context.Background(), alice, bookingRequest("drone", "2030-06-10", "2030-06-11")); err != nil {
		t.Fatalf("create should not fail on notifier error: %v", err)
	}
	<-notifier.calls
}

func TestCreateBookingRejections(t *testing.T) {
	tests := []struct {
		name string
		req  models.BookingRequest
		want error
	}{
		{"end before start", bookingRequest("drone", "2030-06-15", "2030-06-10"), ErrInvalidRange},
		{"bad date", bookingRequest("drone", "15/06/2030", "2030-06-20"), ErrInvalidDate},
		{"unknown product", bookingRequest("kayak", "2030-06-10", "2030-06-12"), errNoProduct},
		{"product not for rent", bookingRequest("tent", "2030-06-10", "2030-06-12"), ErrProductUnavailable},
		{"below minimum", bookingRequest("scope", "2030-06-10", "2030-06-11"), ErrRentalLength},
		{"above maximum", bookingRequest("scope", "2030-06-10", "2030-06-30"), ErrRentalLength},
		{"longer than the product allows", bookingRequest("drone", "2030-06-01", "2030-08-30"), ErrRentalLength},
	}

	svc := newTestService(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), alice, tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	req := bookingRequest("drone", "2030-06-10", "2030-06-12")
	req.DeliveryAddress = "  "
	if _, err := svc.Create(context.Background(), alice, req); !errors.Is(err, ErrInvalidBookingInput) {
		t.Fatalf("blank address: got %v", err)
	}
}

func TestRentalLengthErrorCarriesLimits(t *testing.T) {
	svc := newTestService(nil)
	_, err := svc.Create(context.Background(), alice, bookingRequest("scope", "2030-06-10", "2030-06-10"))

	var lengthErr *RentalLengthError
	if !errors.As(err, &lengthErr) {
		t.Fatalf("expected RentalLengthError, got %v", err)
	}
	if lengthErr.Min != 3 || lengthErr.Max != 10 || lengthErr.Days != 1 {
		t.Fatalf("limits = %+v", lengthErr)
	}
}

func TestConfirmedBookingBlocksOverlap(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	b, err := svc.Create(ctx, alice, bookingRequest("drone", "2030-06-10", "2030-06-15"))
	if err != nil {
		t.Fatal(err)
	}

	// Pending bookings do not hold dates.
	if _, err := svc.Create(ctx, bob, bookingRequest("drone", "2030-06-12", "2030-06-13")); err != nil {
		t.Fatalf("pending booking should not block: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, b.ID, models.BookingConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := svc.Create(ctx, bob, bookingRequest("drone", "2030-06-15", "2030-06-20")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("boundary overlap: got %v", err)
	}
	if _, err := svc.Create(ctx, bob, bookingRequest("drone", "2030-06-16", "2030-06-20")); err != nil {
		t.Fatalf("adjacent range should be bookable: %v", err)
	}

	ok, err := svc.CheckAvailability(ctx, "drone", "2030-06-11", "2030-06-11")
	if err != nil || ok {
		t.Fatalf("availability inside confirmed range = %v, %v", ok, err)
	}

	if _, err := svc.Cancel(ctx, alice.ID, b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	ok, err = svc.CheckAvailability(ctx, "drone", "2030-06-11", "2030-06-11")
	if err != nil || !ok {
		t.Fatalf("cancelled booking should free its dates: %v, %v", ok, err)
	}
}

func TestConfirmRejectsDoubleBooking(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, alice, bookingRequest("drone", "2030-06-10", "2030-06-15"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Create(ctx, bob, bookingRequest("drone", "2030-06-14", "2030-06-18"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.UpdateStatus(ctx, first.ID, models.BookingConfirmed); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateStatus(ctx, second.ID, models.BookingConfirmed); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}

	got, err := svc.Get(ctx, second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.BookingPending {
		t.Fatalf("rejected confirmation changed status to %s", got.Status)
	}
}

func TestConcurrentConfirmationsOnlyOneWins(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 10; i++ {
		b, err := svc.Create(ctx, alice, bookingRequest("drone", "2030-07-01", "2030-07-05"))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, b.ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.UpdateStatus(ctx, id, models.BookingConfirmed); err == nil {
				mu.Lock()
				confirmed++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if confirmed != 1 {
		t.Fatalf("%d overlapping bookings confirmed, want 1", confirmed)
	}
}

func TestStatusMachine(t *testing.T) {
	tests := []struct {
		from, to models.BookingStatus
		ok       bool
	}{
		{models.BookingPending, models.BookingConfirmed, true},
		{models.BookingPending, models.BookingCancelled, true},
		{models.BookingPending, models.BookingActive, false},
		{models.BookingConfirmed, models.BookingActive, true},
		{models.BookingConfirmed, models.BookingCancelled, true},
		{models.BookingConfirmed, models.BookingPending, false},
		{models.BookingActive, models.BookingCompleted, true},
		{models.BookingActive, models.BookingCancelled, false},
		{models.BookingCompleted, models.BookingCancelled, false},
		{models.BookingCancelled, models.BookingPending, false},
		{models.BookingCancelled, models.BookingCancelled, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestUpdateStatusWalksLifecycle(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	b, err := svc.Create(ctx, alice, bookingRequest("drone", "2030-06-10", "2030-06-12"))
	if err != nil {
		t.Fatal(err)
	}
	for _, status := range []models.BookingStatus{models.BookingConfirmed, models.BookingActive, models.BookingCompleted} {
		if _, err := svc.UpdateStatus(ctx, b.ID, status); err != nil {
			t.Fatalf("to %s: %v", status, err)
		}
	}
	if _, err := svc.UpdateStatus(ctx, b.ID, models.BookingCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel completed: got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, b.ID, "archived"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unknown status: got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "missing", models.BookingConfirmed); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("missing booking: got %v", err)
	}
}

func TestCancelOnlyOwnBookings(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	b, err := svc.Create(ctx, alice, bookingRequest("drone", "2030-06-10", "2030-06-12"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Cancel(ctx, bob.ID, b.ID); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("foreign cancel: got %v", err)
	}
	cancelled, err := svc.Cancel(ctx, alice.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != models.BookingCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
}

func TestListFilters(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	clock := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	a1, _ := svc.Create(ctx, alice, bookingRequest("drone", "2030-06-10", "2030-06-12"))
	b1, _ := svc.Create(ctx, bob, bookingRequest("scope", "2030-06-10", "2030-06-12"))
	a2, _ := svc.Create(ctx, alice, bookingRequest("scope", "2030-07-10", "2030-07-12"))
	if a1 == nil || b1 == nil || a2 == nil {
		t.Fatal("fixture bookings failed")
	}

	mine, err := svc.ListByUser(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 || mine[0].ID != a2.ID || mine[1].ID != a1.ID {
		t.Fatalf("ListByUser should be newest first: %+v", mine)
	}

	scopes, _ := svc.List(ctx, ListFilter{ProductID: "scope"})
	if len(scopes) != 2 {
		t.Errorf("product filter returned %d", len(scopes))
	}

	if _, err := svc.UpdateStatus(ctx, b1.ID, models.BookingConfirmed); err != nil {
		t.Fatal(err)
	}
	confirmed, _ := svc.List(ctx, ListFilter{Status: models.BookingConfirmed})
	if len(confirmed) != 1 || confirmed[0].ID != b1.ID {
		t.Errorf("status filter = %+v", confirmed)
	}

	all, _ := svc.List(ctx, ListFilter{})
	if len(all) != 3 {
		t.Errorf("unfiltered list returned %d", len(all))
	}
}

func TestQuote(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	q, err := svc.Quote(ctx, "drone", "2030-06-01", "2030-07-07")
	if err != nil {
		t.Fatal(err)
	}
	if q.Duration != 37 || q.Price != 3800 || !q.Available {
		t.Fatalf("quote = %+v", q)
	}

	q, err = svc.Quote(ctx, "tent", "2030-06-01", "2030-06-03")
	if err != nil {
		t.Fatal(err)
	}
	if q.Available {
		t.Errorf("unavailable product quoted as available")
	}
}

func TestRemindersForBookingsStartingTomorrow(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	tomorrow := time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC)
	b, err := svc.Create(ctx, alice, bookingRequest("drone", "2030-06-10", "2030-06-12"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, bob, bookingRequest("scope", "2030-06-10", "2030-06-12")); err != nil {
		t.Fatal(err)
	}

	due, _ := svc.StartingOn(ctx, tomorrow)
	if len(due) != 0 {
		t.Fatalf("pending bookings should not be reminded, got %d", len(due))
	}

	if _, err := svc.UpdateStatus(ctx, b.ID, models.BookingConfirmed); err != nil {
		t.Fatal(err)
	}
	due, _ = svc.StartingOn(ctx, tomorrow)
	if len(due) != 1 || due[0].ID != b.ID {
		t.Fatalf("due = %+v", due)
	}

	if err := svc.MarkReminderSent(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	due, _ = svc.StartingOn(ctx, tomorrow)
	if len(due) != 0 {
		t.Fatalf("reminder should be sent once")
	}
	if err := svc.MarkReminderSent(ctx, "missing"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestCorruptBookingsReadAsEmpty(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	if err := svc.store.Save(ctx, svc.keys.For(storage.KeyBookings), map[string]int{"x": 1}); err != nil {
		t.Fatal(err)
	}
	list, err := svc.List(ctx, ListFilter{})
	if err != nil || len(list) != 0 {
		t.Fatalf("got %v, %v", list, err)
	}
}

func TestChangeHooksRunOnWrites(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()
	changes := 0
	svc.OnChange(func(context.Context) { changes++ })

	b, err := svc.Create(ctx, alice, bookingRequest("drone", "2030-06-10", "2030-06-12"))
	if err != nil {
		t.Fatal(err)
	}
	if changes != 1 {
		t.Fatalf("after create: %d changes", changes)
	}
	if _, err := svc.Cancel(ctx, alice.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if changes != 2 {
		t.Fatalf("after cancel: %d changes", changes)
	}

	// Rejected writes change nothing.
	if _, err := svc.Cancel(ctx, alice.ID, b.ID); err == nil {
		t.Fatal("second cancel should fail")
	}
	if _, err := svc.Create(ctx, alice, bookingRequest("drone", "2030-06-12", "2030-06-10")); err == nil {
		t.Fatal("reversed range should fail")
	}
	if changes != 2 {
		t.Fatalf("after rejected writes: %d changes", changes)
	}
}
