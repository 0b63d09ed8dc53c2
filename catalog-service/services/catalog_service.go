package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gear-rental/shared/config"
	"gear-rental/shared/models"
	"gear-rental/shared/storage"
)

const featuredLimit = 6

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

// CatalogService serves the merged catalog: the loaded base catalog with
// admin edits applied on top. Admin records replace base records with the
// same id, admin-only records are appended, and tombstoned ids are hidden.
type CatalogService struct {
	store    storage.Store
	keys     storage.Keys
	loader   *Loader
	validate *validator.Validate

	mu   sync.RWMutex
	base []models.Product
}

func NewCatalogService(cfg *config.Config, store storage.Store, loader *Loader) *CatalogService {
	return &CatalogService{
		store:    store,
		keys:     storage.Keys{Prefix: cfg.Storage.KeyPrefix},
		loader:   loader,
		validate: validator.New(),
	}
}

// Reload re-reads the base catalog from the loader's sources.
func (s *CatalogService) Reload() int {
	products := s.loader.Load()
	s.mu.Lock()
	s.base = products
	s.mu.Unlock()
	return len(products)
}

func (s *CatalogService) baseProducts() []models.Product {
	s.mu.RLock()
	base := s.base
	s.mu.RUnlock()
	if base == nil {
		s.Reload()
		s.mu.RLock()
		base = s.base
		s.mu.RUnlock()
	}
	return base
}

// All returns every product visible to customers and admins.
func (s *CatalogService) All(ctx context.Context) []models.Product {
	base := s.baseProducts()
	overrides := s.adminProducts(ctx)
	tombstones := s.tombstones(ctx)

	overrideByID := make(map[string]models.Product, len(overrides))
	for _, p := range overrides {
		overrideByID[p.ID] = p
	}

	merged := make([]models.Product, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(base))
	for _, p := range base {
		if tombstones[p.ID] {
			continue
		}
		if o, ok := overrideByID[p.ID]; ok {
			p = o
		}
		seen[p.ID] = true
		merged = append(merged, p)
	}
	for _, p := range overrides {
		if !seen[p.ID] {
			merged = append(merged, p)
		}
	}

	return merged
}

func (s *CatalogService) Get(ctx context.Context, id string) (models.Product, error) {
	for _, p := range s.All(ctx) {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
}

func (s *CatalogService) Featured(ctx context.Context) []models.Product {
	result := make([]models.Product, 0, featuredLimit)
	for _, p := range s.All(ctx) {
		if p.Featured {
			result = append(result, p)
			if len(result) == featuredLimit {
				break
			}
		}
	}
	return result
}

func (s *CatalogService) Search(ctx context.Context, query string) []models.Product {
	return Search(s.All(ctx), query)
}

func (s *CatalogService) ByCategory(ctx context.Context, category string) []models.Product {
	return Filter(s.All(ctx), FilterSpec{Category: category})
}

func (s *CatalogService) Filter(ctx context.Context, spec FilterSpec) []models.Product {
	return Filter(s.All(ctx), spec)
}

// Categories lists the distinct categories in the catalog, sorted.
func (s *CatalogService) Categories(ctx context.Context) []string {
	set := make(map[string]bool)
	for _, p := range s.All(ctx) {
		if p.Category != "" {
			set[p.Category] = true
		}
	}
	categories := make([]string, 0, len(set))
	for c := range set {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

// UpsertProduct stores an admin edit. A product without an id gets a new one.
func (s *CatalogService) UpsertProduct(ctx context.Context, product models.Product) (models.Product, error) {
	if product.ID == "" {
		product.ID = "product_" + uuid.New().String()
	}
	product.Name = strings.TrimSpace(product.Name)
	if product.ExperienceLevel == "" {
		product.ExperienceLevel = models.LevelExplorer
	}
	if product.Image == "" && len(product.Images) > 0 {
		product.Image = product.Images[0]
	}
	if product.Price == 0 {
		product.Price = product.WeeklyPrice
	}
	if product.Rating == 0 {
		product.Rating = defaultRating
	}
	if product.Specs == nil {
		product.Specs = map[string]string{}
	}
	if product.MaximumRentalDays > 0 && product.MinimumRentalDays > product.MaximumRentalDays {
		return models.Product{}, fmt.Errorf("%w: minimum rental days exceed maximum", ErrInvalidProduct)
	}

	if err := s.validate.Struct(product); err != nil {
		return models.Product{}, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}

	var overrides []models.Product
	err := s.store.Update(ctx, s.keys.For(storage.KeyAdminProducts), &overrides, func() error {
		for i := range overrides {
			if overrides[i].ID == product.ID {
				overrides[i] = product
				return nil
			}
		}
		overrides = append(overrides, product)
		return nil
	})
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to save product: %w", err)
	}

	// Re-adding a deleted base product brings it back.
	var tombstones []string
	err = s.store.Update(ctx, s.keys.For(storage.KeyAdminTombstones), &tombstones, func() error {
		tombstones = removeString(tombstones, product.ID)
		return nil
	})
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to update tombstones: %w", err)
	}

	zap.S().Infof("Admin saved product %s", product.ID)
	return product, nil
}

// DeleteProduct removes an admin record and hides the base record, if any.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	inBase := false
	for _, p := range s.baseProducts() {
		if p.ID == id {
			inBase = true
			break
		}
	}

	removed := false
	var overrides []models.Product
	err := s.store.Update(ctx, s.keys.For(storage.KeyAdminProducts), &overrides, func() error {
		kept := overrides[:0]
		for _, p := range overrides {
			if p.ID == id {
				removed = true
				continue
			}
			kept = append(kept, p)
		}
		overrides = kept
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if !inBase {
		if !removed {
			return fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		zap.S().Infof("Admin deleted product %s", id)
		return nil
	}

	var tombstones []string
	err = s.store.Update(ctx, s.keys.For(storage.KeyAdminTombstones), &tombstones, func() error {
		tombstones = append(removeString(tombstones, id), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record tombstone: %w", err)
	}

	zap.S().Infof("Admin deleted product %s", id)
	return nil
}

// adminProducts degrades to no overrides when the stored list is unreadable.
func (s *CatalogService) adminProducts(ctx context.Context) []models.Product {
	var overrides []models.Product
	if err := s.store.Load(ctx, s.keys.For(storage.KeyAdminProducts), &overrides); err != nil {
		if err != storage.ErrNotFound {
			zap.S().Errorf("Error reading admin products: %v", err)
		}
		return nil
	}
	return overrides
}

func (s *CatalogService) tombstones(ctx context.Context) map[string]bool {
	var ids []string
	if err := s.store.Load(ctx, s.keys.For(storage.KeyAdminTombstones), &ids); err != nil {
		if err != storage.ErrNotFound {
			zap.S().Errorf("Error reading product tombstones: %v", err)
		}
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func removeString(values []string, target string) []string {
	kept := values[:0]
	for _, v := range values {
		if v != target {
			kept = append(kept, v)
		}
	}
	return kept
}
