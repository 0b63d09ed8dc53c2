package services

import (
	"strings"

	"gear-rental/shared/models"
)

type PriceRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// FilterSpec narrows a product list. Zero-valued fields place no constraint.
// Dimensions combine with AND; values inside ExperienceLevels combine with OR.
type FilterSpec struct {
	Category         string      `json:"category,omitempty"`
	ExperienceLevels []string    `json:"experienceLevels,omitempty"`
	PriceRange       *PriceRange `json:"priceRange,omitempty"`
	Search           string      `json:"search,omitempty"`
}

func (f FilterSpec) IsEmpty() bool {
	return f.Category == "" && len(f.ExperienceLevels) == 0 && f.PriceRange == nil && f.Search == ""
}

// Filter returns the products matching spec, preserving input order.
func Filter(products []models.Product, spec FilterSpec) []models.Product {
	result := make([]models.Product, 0, len(products))
	for _, p := range products {
		if spec.Matches(p) {
			result = append(result, p)
		}
	}
	return result
}

func (f FilterSpec) Matches(p models.Product) bool {
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}

	if len(f.ExperienceLevels) > 0 {
		found := false
		for _, level := range f.ExperienceLevels {
			if string(p.ExperienceLevel) == level {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	// Price range applies to the weekly rate.
	if f.PriceRange != nil {
		if p.WeeklyPrice < f.PriceRange.Min || p.WeeklyPrice > f.PriceRange.Max {
			return false
		}
	}

	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !containsFold(p.Name, q) && !containsFold(p.Description, q) && !anyContainsFold(p.Tags, q) {
			return false
		}
	}

	return true
}

// Search is the free-text catalog search. It is broader than the search
// filter and also matches category and subcategory.
func Search(products []models.Product, query string) []models.Product {
	q := strings.ToLower(query)
	result := make([]models.Product, 0)
	for _, p := range products {
		if containsFold(p.Name, q) ||
			containsFold(p.Category, q) ||
			containsFold(p.Subcategory, q) ||
			containsFold(p.Description, q) ||
			anyContainsFold(p.Tags, q) {
			result = append(result, p)
		}
	}
	return result
}

func containsFold(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}

func anyContainsFold(values []string, lowerQuery string) bool {
	for _, v := range values {
		if containsFold(v, lowerQuery) {
			return true
		}
	}
	return false
}
