package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gear-rental/shared/config"
	"gear-rental/shared/models"
	"gear-rental/shared/storage"
)

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrUnavailable         = errors.New("product is already booked for the requested dates")
	ErrProductUnavailable  = errors.New("product is not available for rent")
	ErrInvalidTransition   = errors.New("invalid booking status transition")
	ErrInvalidRange        = errors.New("end date is before start date")
	ErrInvalidDate         = errors.New("invalid date")
	ErrRentalLength        = errors.New("rental length outside the product's allowed range")
	ErrInvalidBookingInput = errors.New("invalid booking request")
)

// ProductSource resolves catalog products by id.
type ProductSource interface {
	Get(ctx context.Context, id string) (models.Product, error)
}

// Notifier is told about new bookings. Its failures are logged and never
// affect the booking.
type Notifier interface {
	BookingCreated(ctx context.Context, booking models.Booking, product models.Product, user models.User) error
}

// transitions lists the statuses each status may move to.
var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingPending:   {models.BookingConfirmed, models.BookingCancelled},
	models.BookingConfirmed: {models.BookingActive, models.BookingCancelled},
	models.BookingActive:    {models.BookingCompleted},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to models.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type ListFilter struct {
	UserID    string
	ProductID string
	Status    models.BookingStatus
}

func (f ListFilter) matches(b models.Booking) bool {
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.ProductID != "" && b.ProductID != f.ProductID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	return true
}

type BookingService struct {
	store    storage.Store
	keys     storage.Keys
	products ProductSource
	notifier Notifier
	onChange []func(context.Context)
	now      func() time.Time
}

func NewBookingService(cfg *config.Config, store storage.Store, products ProductSource, notifier Notifier) *BookingService {
	return &BookingService{
		store:    store,
		keys:     storage.Keys{Prefix: cfg.Storage.KeyPrefix},
		products: products,
		notifier: notifier,
		now:      time.Now,
	}
}

// OnChange registers fn to run after every booking create or status change.
func (s *BookingService) OnChange(fn func(context.Context)) {
	s.onChange = append(s.onChange, fn)
}

func (s *BookingService) changed(ctx context.Context) {
	for _, fn := range s.onChange {
		fn(ctx)
	}
}

// Quote is the validated range and price for a prospective booking.
type Quote struct {
	Product   models.Product `json:"product"`
	StartDate string         `json:"startDate"`
	EndDate   string         `json:"endDate"`
	Duration  int            `json:"duration"`
	Price     int            `json:"totalPrice"`
	Available bool           `json:"available"`
}

// Create books a product for user. The overlap check and the insert happen in
// one atomic update of the bookings collection, so two concurrent requests
// for the same dates cannot both succeed.
func (s *BookingService) Create(ctx context.Context, user models.User, req models.BookingRequest) (*models.Booking, error) {
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return nil, fmt.Errorf("%w: delivery address is required", ErrInvalidBookingInput)
	}

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	product, err := s.products.Get(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Available {
		return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, product.ID)
	}

	days := Duration(start, end)
	if err := checkRentalLength(product, days); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	booking := models.Booking{
		ID:                  "booking_" + uuid.New().String(),
		UserID:              user.ID,
		ProductID:           product.ID,
		StartDate:           start.Format(DateLayout),
		EndDate:             end.Format(DateLayout),
		Duration:            days,
		TotalPrice:          Price(product.WeeklyPrice, product.MonthlyPrice, days),
		Status:              models.BookingPending,
		DeliveryAddress:     strings.TrimSpace(req.DeliveryAddress),
		PhoneNumber:         req.PhoneNumber,
		EmergencyContact:    req.EmergencyContact,
		SpecialInstructions: req.SpecialInstructions,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	var bookings []models.Booking
	err = s.store.Update(ctx, s.keys.For(storage.KeyBookings), &bookings, func() error {
		if !IsAvailable(product.ID, start, end, bookings) {
			return ErrUnavailable
		}
		bookings = append(bookings, booking)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	zap.S().Infof("Created booking %s for product %s (%s..%s, %d days, total %d)",
		booking.ID, product.ID, booking.StartDate, booking.EndDate, days, booking.TotalPrice)

	s.changed(ctx)
	s.notify(booking, product, user)

	return &booking, nil
}

func (s *BookingService) notify(booking models.Booking, product models.Product, user models.User) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.BookingCreated(ctx, booking, product, user); err != nil {
			zap.S().Warnf("Failed to send confirmation for booking %s: %v", booking.ID, err)
		}
	}()
}

// Quote validates a prospective range for productID and prices it without
// booking anything.
func (s *BookingService) Quote(ctx context.Context, productID, startDate, endDate string) (*Quote, error) {
	start, end, err := parseRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	days := Duration(start, end)
	if err := checkRentalLength(product, days); err != nil {
		return nil, err
	}

	bookings, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	return &Quote{
		Product:   product,
		StartDate: start.Format(DateLayout),
		EndDate:   end.Format(DateLayout),
		Duration:  days,
		Price:     Price(product.WeeklyPrice, product.MonthlyPrice, days),
		Available: product.Available && IsAvailable(product.ID, start, end, bookings),
	}, nil
}

// CheckAvailability reports whether productID is free for the whole range.
func (s *BookingService) CheckAvailability(ctx context.Context, productID, startDate, endDate string) (bool, error) {
	start, end, err := parseRange(startDate, endDate)
	if err != nil {
		return false, err
	}
	bookings, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	return IsAvailable(productID, start, end, bookings), nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	bookings, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		if bookings[i].ID == id {
			return &bookings[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
}

func (s *BookingService) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return s.List(ctx, ListFilter{UserID: userID})
}

// List returns matching bookings, newest first.
func (s *BookingService) List(ctx context.Context, filter ListFilter) ([]models.Booking, error) {
	bookings, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if filter.matches(b) {
			result = append(result, b)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateStatus moves a booking along the status machine. Confirming a booking
// makes it hold its dates, so it fails with ErrUnavailable when another
// confirmed or active booking already overlaps.
func (s *BookingService) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) (*models.Booking, error) {
	return s.transition(ctx, id, "", status)
}

// Cancel cancels one of userID's bookings.
func (s *BookingService) Cancel(ctx context.Context, userID, id string) (*models.Booking, error) {
	return s.transition(ctx, id, userID, models.BookingCancelled)
}

func (s *BookingService) transition(ctx context.Context, id, ownerID string, status models.BookingStatus) (*models.Booking, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	var (
		bookings []models.Booking
		updated  models.Booking
	)
	err := s.store.Update(ctx, s.keys.For(storage.KeyBookings), &bookings, func() error {
		idx := -1
		for i := range bookings {
			if bookings[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 || (ownerID != "" && bookings[idx].UserID != ownerID) {
			return fmt.Errorf("%w: %s", ErrBookingNotFound, id)
		}

		current := bookings[idx]
		if !CanTransition(current.Status, status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, status)
		}

		if status.Blocking() && !current.Status.Blocking() {
			start, end, err := parseRange(current.StartDate, current.EndDate)
			if err != nil {
				return err
			}
			others := make([]models.Booking, 0, len(bookings)-1)
			others = append(others, bookings[:idx]...)
			others = append(others, bookings[idx+1:]...)
			if !IsAvailable(current.ProductID, start, end, others) {
				return ErrUnavailable
			}
		}

		current.Status = status
		current.UpdatedAt = s.now().UTC()
		bookings[idx] = current
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infof("Booking %s moved to %s", id, status)
	s.changed(ctx)
	return &updated, nil
}

// StartingOn returns confirmed bookings that start on day and have not had a
// reminder yet.
func (s *BookingService) StartingOn(ctx context.Context, day time.Time) ([]models.Booking, error) {
	bookings, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	date := day.Format(DateLayout)
	result := make([]models.Booking, 0)
	for _, b := range bookings {
		if b.Status == models.BookingConfirmed && b.StartDate == date && !b.ReminderSent {
			result = append(result, b)
		}
	}
	return result, nil
}

// MarkReminderSent flags a booking so it is not reminded twice.
func (s *BookingService) MarkReminderSent(ctx context.Context, id string) error {
	var bookings []models.Booking
	return s.store.Update(ctx, s.keys.For(storage.KeyBookings), &bookings, func() error {
		for i := range bookings {
			if bookings[i].ID == id {
				bookings[i].ReminderSent = true
				bookings[i].UpdatedAt = s.now().UTC()
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	})
}

// load reads the bookings collection. An unreadable collection is logged and
// read as empty.
func (s *BookingService) load(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.store.Load(ctx, s.keys.For(storage.KeyBookings), &bookings)
	switch {
	case err == nil:
		return bookings, nil
	case errors.Is(err, storage.ErrNotFound):
		return []models.Booking{}, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		zap.S().Errorf("Error reading bookings: %v", err)
		return []models.Booking{}, nil
	}
}

func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s..%s", ErrInvalidRange, startDate, endDate)
	}
	return start, end, nil
}

// RentalLimits returns the product's minimum and maximum rental days. A zero
// maximum means no upper bound.
func RentalLimits(product models.Product) (int, int) {
	minDays := product.MinimumRentalDays
	if minDays < 1 {
		minDays = 1
	}
	return minDays, product.MaximumRentalDays
}

func checkRentalLength(product models.Product, days int) error {
	minDays, maxDays := RentalLimits(product)
	if days < minDays || (maxDays > 0 && days > maxDays) {
		return &RentalLengthError{Min: minDays, Max: maxDays, Days: days}
	}
	return nil
}

// RentalLengthError carries the allowed range so handlers can report it.
type RentalLengthError struct {
	Min, Max, Days int
}

func (e *RentalLengthError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("%v: %d days requested, allowed %d to %d", ErrRentalLength, e.Days, e.Min, e.Max)
	}
	return fmt.Sprintf("%v: %d days requested, minimum %d", ErrRentalLength, e.Days, e.Min)
}

func (e *RentalLengthError) Unwrap() error { return ErrRentalLength }
