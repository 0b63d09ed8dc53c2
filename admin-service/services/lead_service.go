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

var ErrInvalidLead = errors.New("invalid lead")

// LeadNotifier forwards contact and product-request submissions to the
// operator inbox.
type LeadNotifier interface {
	LeadSubmitted(ctx context.Context, lead models.Lead) error
}

// LeadService captures marketing leads. Leads are append-only.
type LeadService struct {
	store    storage.Store
	keys     storage.Keys
	notifier LeadNotifier
	onChange []func(context.Context)
	now      func() time.Time
}

func NewLeadService(cfg *config.Config, store storage.Store, notifier LeadNotifier) *LeadService {
	return &LeadService{
		store:    store,
		keys:     storage.Keys{Prefix: cfg.Storage.KeyPrefix},
		notifier: notifier,
		now:      time.Now,
	}
}

// OnChange registers fn to run after every captured lead.
func (s *LeadService) OnChange(fn func(context.Context)) {
	s.onChange = append(s.onChange, fn)
}

// SubmitLead records a newsletter / interest sign-up.
func (s *LeadService) SubmitLead(ctx context.Context, req models.LeadRequest) (*models.Lead, error) {
	lead := s.newLead(models.LeadCapture, req.Name, req.Email, req.Phone)
	lead.Message = strings.TrimSpace(req.Message)
	lead.Interests = req.Interests
	return s.append(ctx, lead, false)
}

// SubmitContact records a contact-form message and emails the operator.
func (s *LeadService) SubmitContact(ctx context.Context, req models.LeadRequest) (*models.Lead, error) {
	lead := s.newLead(models.LeadContact, req.Name, req.Email, req.Phone)
	lead.Message = strings.TrimSpace(req.Message)
	if lead.Message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidLead)
	}
	return s.append(ctx, lead, true)
}

// SubmitProductRequest records a request for gear that is not in the catalog
// and emails the operator.
func (s *LeadService) SubmitProductRequest(ctx context.Context, req models.ProductRequest) (*models.Lead, error) {
	lead := s.newLead(models.LeadProductRequest, req.Name, req.Email, req.Phone)
	lead.ProductName = strings.TrimSpace(req.ProductName)
	lead.Category = strings.TrimSpace(req.Category)
	lead.Message = strings.TrimSpace(req.Description)
	lead.Budget = strings.TrimSpace(req.Budget)
	lead.Timeline = strings.TrimSpace(req.Timeline)
	if lead.ProductName == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrInvalidLead)
	}
	return s.append(ctx, lead, true)
}

func (s *LeadService) newLead(source models.LeadSource, name, email, phone string) models.Lead {
	return models.Lead{
		ID:        "lead_" + uuid.New().String(),
		Source:    source,
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Phone:     strings.TrimSpace(phone),
		CreatedAt: s.now().UTC(),
	}
}

func (s *LeadService) append(ctx context.Context, lead models.Lead, notify bool) (*models.Lead, error) {
	if lead.Name == "" || lead.Email == "" || lead.Phone == "" {
		return nil, fmt.Errorf("%w: name, email and phone are required", ErrInvalidLead)
	}

	var leads []models.Lead
	err := s.store.Update(ctx, s.keys.For(storage.KeyLeads), &leads, func() error {
		leads = append(leads, lead)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save lead: %w", err)
	}

	zap.S().Infof("Captured %s lead %s", lead.Source, lead.ID)
	for _, fn := range s.onChange {
		fn(ctx)
	}

	if notify && s.notifier != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.notifier.LeadSubmitted(ctx, lead); err != nil {
				zap.S().Warnf("Failed to forward lead %s to operator: %v", lead.ID, err)
			}
		}()
	}

	return &lead, nil
}

// ListLeads returns leads newest first, optionally limited to one source.
func (s *LeadService) ListLeads(ctx context.Context, source models.LeadSource) ([]models.Lead, error) {
	var leads []models.Lead
	if err := s.store.Load(ctx, s.keys.For(storage.KeyLeads), &leads); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			zap.S().Errorf("Error reading leads: %v", err)
		}
		return []models.Lead{}, nil
	}

	result := make([]models.Lead, 0, len(leads))
	for _, l := range leads {
		if source == "" || l.Source == source {
			result = append(result, l)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
