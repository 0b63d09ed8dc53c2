package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	booking "gear-rental/booking-service/services"
	catalog "gear-rental/catalog-service/services"
	"gear-rental/shared/cache"
	"gear-rental/shared/config"
	"gear-rental/shared/database"
	"gear-rental/shared/models"
	"gear-rental/shared/storage"
)

const statisticsTTL = time.Minute

// UserDirectory resolves customer profiles for admin views.
type UserDirectory interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

type AdminService struct {
	config   *config.Config
	store    storage.Store
	keys     storage.Keys
	catalog  *catalog.CatalogService
	bookings *booking.BookingService
	leads    *LeadService
	users    UserDirectory
}

func NewAdminService(cfg *config.Config, store storage.Store, catalogService *catalog.CatalogService,
	bookingService *booking.BookingService, leadService *LeadService, users UserDirectory) *AdminService {
	s := &AdminService{
		config:   cfg,
		store:    store,
		keys:     storage.Keys{Prefix: cfg.Storage.KeyPrefix},
		catalog:  catalogService,
		bookings: bookingService,
		leads:    leadService,
		users:    users,
	}
	// Customer bookings, cancellations and leads change the statistics too.
	bookingService.OnChange(s.invalidateStatistics)
	leadService.OnChange(s.invalidateStatistics)
	return s
}

// BookingDetails is a booking joined with its product and customer.
type BookingDetails struct {
	models.Booking
	ProductName   string `json:"productName"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
}

type Statistics struct {
	TotalProducts     int            `json:"totalProducts"`
	AvailableProducts int            `json:"availableProducts"`
	TotalBookings     int            `json:"totalBookings"`
	BookingsByStatus  map[string]int `json:"bookingsByStatus"`
	Revenue           int            `json:"revenue"`
	TotalLeads        int            `json:"totalLeads"`
	LeadsBySource     map[string]int `json:"leadsBySource"`
	GeneratedAt       time.Time      `json:"generatedAt"`
}

type ComponentHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LastCheck string `json:"lastCheck"`
	Error     string `json:"error,omitempty"`
}

type SystemHealth struct {
	OverallStatus string            `json:"overallStatus"`
	Components    []ComponentHealth `json:"components"`
	LastCheck     string            `json:"lastCheck"`
}

func (s *AdminService) SaveProduct(ctx context.Context, product models.Product) (models.Product, error) {
	saved, err := s.catalog.UpsertProduct(ctx, product)
	if err != nil {
		return models.Product{}, err
	}
	s.invalidateStatistics(ctx)
	return saved, nil
}

func (s *AdminService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.catalog.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateStatistics(ctx)
	return nil
}

func (s *AdminService) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) (*models.Booking, error) {
	return s.bookings.UpdateStatus(ctx, id, status)
}

// ListBookings returns matching bookings joined with product and customer
// names. Missing products or users leave the joined fields empty.
func (s *AdminService) ListBookings(ctx context.Context, filter booking.ListFilter) ([]BookingDetails, error) {
	list, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	products := make(map[string]string)
	for _, p := range s.catalog.All(ctx) {
		products[p.ID] = p.Name
	}

	users := make(map[string]*models.User)
	details := make([]BookingDetails, 0, len(list))
	for _, b := range list {
		d := BookingDetails{Booking: b, ProductName: products[b.ProductID]}

		u, seen := users[b.UserID]
		if !seen {
			u, err = s.users.Get(ctx, b.UserID)
			if err != nil {
				zap.S().Debugf("Booking %s references unknown user %s", b.ID, b.UserID)
				u = nil
			}
			users[b.UserID] = u
		}
		if u != nil {
			d.CustomerName = u.Name
			d.CustomerEmail = u.Email
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *AdminService) ListLeads(ctx context.Context, source models.LeadSource) ([]models.Lead, error) {
	return s.leads.ListLeads(ctx, source)
}

// Statistics summarises the catalog, bookings and leads. Results are cached
// in Redis for a minute when Redis is configured, and dropped on any product,
// booking or lead write.
func (s *AdminService) Statistics(ctx context.Context) (*Statistics, error) {
	return cache.Remember(ctx, s.statisticsKey(), statisticsTTL, s.computeStatistics)
}

func (s *AdminService) computeStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		BookingsByStatus: make(map[string]int),
		LeadsBySource:    make(map[string]int),
		GeneratedAt:      time.Now().UTC(),
	}

	for _, p := range s.catalog.All(ctx) {
		stats.TotalProducts++
		if p.Available {
			stats.AvailableProducts++
		}
	}

	list, err := s.bookings.List(ctx, booking.ListFilter{})
	if err != nil {
		return nil, err
	}
	for _, b := range list {
		stats.TotalBookings++
		stats.BookingsByStatus[string(b.Status)]++
		if b.Status.Blocking() || b.Status == models.BookingCompleted {
			stats.Revenue += b.TotalPrice
		}
	}

	leads, err := s.leads.ListLeads(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, l := range leads {
		stats.TotalLeads++
		stats.LeadsBySource[string(l.Source)]++
	}
	return stats, nil
}

func (s *AdminService) statisticsKey() string {
	return s.keys.For("admin_statistics")
}

func (s *AdminService) invalidateStatistics(ctx context.Context) {
	if err := cache.Delete(ctx, s.statisticsKey()); err != nil && !errors.Is(err, cache.ErrDisabled) {
		zap.S().Warnf("Failed to invalidate statistics cache: %v", err)
	}
}

type bookingRow struct {
	ID              string `csv:"id"`
	CreatedAt       string `csv:"created_at"`
	Status          string `csv:"status"`
	ProductID       string `csv:"product_id"`
	ProductName     string `csv:"product_name"`
	CustomerName    string `csv:"customer_name"`
	CustomerEmail   string `csv:"customer_email"`
	PhoneNumber     string `csv:"phone_number"`
	StartDate       string `csv:"start_date"`
	EndDate         string `csv:"end_date"`
	Duration        int    `csv:"duration"`
	TotalPrice      int    `csv:"total_price"`
	DeliveryAddress string `csv:"delivery_address"`
}

type leadRow struct {
	ID          string `csv:"id"`
	CreatedAt   string `csv:"created_at"`
	Source      string `csv:"source"`
	Name        string `csv:"name"`
	Email       string `csv:"email"`
	Phone       string `csv:"phone"`
	Message     string `csv:"message"`
	Interests   string `csv:"interests"`
	ProductName string `csv:"product_name"`
	Category    string `csv:"category"`
	Budget      string `csv:"budget"`
	Timeline    string `csv:"timeline"`
}

// ExportBookingsCSV writes every booking matching filter as CSV.
func (s *AdminService) ExportBookingsCSV(ctx context.Context, w io.Writer, filter booking.ListFilter) error {
	details, err := s.ListBookings(ctx, filter)
	if err != nil {
		return err
	}

	rows := make([]*bookingRow, 0, len(details))
	for _, d := range details {
		rows = append(rows, &bookingRow{
			ID:              d.ID,
			CreatedAt:       d.CreatedAt.Format(time.RFC3339),
			Status:          string(d.Status),
			ProductID:       d.ProductID,
			ProductName:     d.ProductName,
			CustomerName:    d.CustomerName,
			CustomerEmail:   d.CustomerEmail,
			PhoneNumber:     d.PhoneNumber,
			StartDate:       d.StartDate,
			EndDate:         d.EndDate,
			Duration:        d.Duration,
			TotalPrice:      d.TotalPrice,
			DeliveryAddress: d.DeliveryAddress,
		})
	}
	return gocsv.Marshal(&rows, w)
}

// ExportLeadsCSV writes leads from source (all sources when empty) as CSV.
func (s *AdminService) ExportLeadsCSV(ctx context.Context, w io.Writer, source models.LeadSource) error {
	leads, err := s.leads.ListLeads(ctx, source)
	if err != nil {
		return err
	}

	rows := make([]*leadRow, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, &leadRow{
			ID:          l.ID,
			CreatedAt:   l.CreatedAt.Format(time.RFC3339),
			Source:      string(l.Source),
			Name:        l.Name,
			Email:       l.Email,
			Phone:       l.Phone,
			Message:     l.Message,
			Interests:   strings.Join(l.Interests, "|"),
			ProductName: l.ProductName,
			Category:    l.Category,
			Budget:      l.Budget,
			Timeline:    l.Timeline,
		})
	}
	return gocsv.Marshal(&rows, w)
}

// Record adds one component result. Any failing component makes the whole
// system critical.
func (h *SystemHealth) Record(name string, err error) {
	c := ComponentHealth{Name: name, Status: "healthy", LastCheck: h.LastCheck}
	if err != nil {
		c.Status = "critical"
		c.Error = err.Error()
		h.OverallStatus = "critical"
	}
	h.Components = append(h.Components, c)
}

// Health probes the storage backend and whichever of Postgres and Redis are
// configured.
func (s *AdminService) Health(ctx context.Context) *SystemHealth {
	health := &SystemHealth{OverallStatus: "healthy", LastCheck: time.Now().UTC().Format(time.RFC3339)}

	var probe []models.Lead
	err := s.store.Load(ctx, s.keys.For(storage.KeyLeads), &probe)
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	health.Record("storage:"+strings.ToLower(s.config.Storage.Driver), err)

	if db := database.GetDB(); db != nil {
		health.Record("database", db.PingContext(ctx))
	}
	if cache.Enabled() {
		health.Record("redis", cache.Ping(ctx))
	}

	return health
}
