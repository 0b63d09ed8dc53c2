package services

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"gear-rental/shared/config"
	"gear-rental/shared/models"
)

//go:embed data/static_products.json
var staticProducts []byte

// Loader builds the base catalog. Sources are tried in order: the
// spreadsheet export, a JSON dump, then the dataset compiled into the binary.
// The first source that can be read and parsed wins, even when it holds no
// rows: an emptied spreadsheet means an empty catalog.
type Loader struct {
	CSVPath  string
	JSONPath string
	Static   []byte
}

func NewLoader(cfg *config.Config) *Loader {
	return &Loader{
		CSVPath:  cfg.Catalog.CSVPath,
		JSONPath: cfg.Catalog.JSONPath,
		Static:   staticProducts,
	}
}

// Load never fails: an unusable source is logged and skipped, and an empty
// catalog is returned when every source is unusable.
func (l *Loader) Load() []models.Product {
	if l.CSVPath != "" {
		products, err := l.loadCSV()
		if err != nil {
			zap.S().Warnf("Failed to load products from CSV: %v", err)
		} else {
			if len(products) == 0 {
				zap.S().Warnf("Product CSV %s has no usable rows", l.CSVPath)
			}
			zap.S().Infof("Loaded %d products from CSV", len(products))
			return products
		}
	}

	if l.JSONPath != "" {
		data, err := os.ReadFile(l.JSONPath)
		if err != nil {
			zap.S().Warnf("Failed to load products from JSON: %v", err)
		} else if products, err := decodeProducts(data); err != nil {
			zap.S().Warnf("Failed to decode products JSON: %v", err)
		} else {
			zap.S().Infof("Loaded %d products from JSON fallback", len(products))
			return products
		}
	}

	if len(l.Static) > 0 {
		products, err := decodeProducts(l.Static)
		if err != nil {
			zap.S().Errorf("Bundled product dataset is corrupt: %v", err)
		} else {
			zap.S().Infof("Loaded %d products from bundled dataset", len(products))
			return products
		}
	}

	zap.S().Warn("No product source available, serving an empty catalog")
	return []models.Product{}
}

func (l *Loader) loadCSV() ([]models.Product, error) {
	data, err := os.ReadFile(l.CSVPath)
	if err != nil {
		return nil, err
	}
	return ParseProducts(string(data)), nil
}

func decodeProducts(data []byte) ([]models.Product, error) {
	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	for i := range products {
		if products[i].Specs == nil {
			products[i].Specs = map[string]string{}
		}
	}
	return products, nil
}
