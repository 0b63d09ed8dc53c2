package services

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"gear-rental/shared/models"
)

// Spreadsheet column names.
const (
	colID                = "id"
	colName              = "name"
	colDescription       = "description"
	colCategory          = "category"
	colSubcategory       = "subcategory"
	colBrand             = "brand"
	colModel             = "model"
	colCondition         = "condition"
	colExperienceLevel   = "experienceLevel"
	colWeeklyPrice       = "weeklyPrice"
	colMonthlyPrice      = "monthlyPrice"
	colDiscount          = "discount"
	colDiscountType      = "discountType"
	colTax               = "tax"
	colTaxType           = "taxType"
	colPrimaryImage      = "primaryImage"
	colAdditionalImages  = "additionalImages"
	colImages            = "images"
	colUnitOfMeasurement = "unitOfMeasurement"
	colStockQuantity     = "stockQuantity"
	colFeatures          = "features"
	colIncluded          = "included"
	colTags              = "tags"
	colDimensions        = "dimensions"
	colSecurityDeposit   = "securityDeposit"
	colInsurance         = "insurance"
	colMinimumRentalDays = "minimumRentalDays"
	colMaximumRentalDays = "maximumRentalDays"
	colDeliveryOptions   = "deliveryOptions"
	colRestrictions      = "restrictions"
	colAvailable         = "available"
	colFeatured          = "featured"
)

const defaultRating = 4.5

var unitPattern = regexp.MustCompile(`(?i)cm|mm|m`)

// ParseCSVLine splits one spreadsheet line into trimmed fields. A double quote
// toggles quoted mode and is never part of the output; commas inside quoted
// mode do not split. There is no escape for a literal quote, and unbalanced
// quotes simply leave the line in whatever mode the last toggle produced.
func ParseCSVLine(line string) []string {
	var (
		result   []string
		current  strings.Builder
		inQuotes bool
	)

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			result = append(result, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}

	return append(result, strings.TrimSpace(current.String()))
}

// ParseProducts converts spreadsheet text into products. The first non-blank
// line is the header. Rows whose field count differs from the header are
// skipped without error.
func ParseProducts(text string) []models.Product {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return []models.Product{}
	}

	headers := ParseCSVLine(lines[0])
	products := make([]models.Product, 0, len(lines)-1)

	for i, line := range lines[1:] {
		values := ParseCSVLine(line)
		if len(values) != len(headers) {
			zap.S().Debugf("catalog: skipping row %d, %d fields for %d columns", i+1, len(values), len(headers))
			continue
		}

		row := make(map[string]string, len(headers))
		for idx, header := range headers {
			row[header] = values[idx]
		}
		products = append(products, productFromRow(row))
	}

	return products
}

func productFromRow(row map[string]string) models.Product {
	weekly := parseInt(row[colWeeklyPrice], 0)

	p := models.Product{
		ID:              row[colID],
		Name:            row[colName],
		Description:     row[colDescription],
		Category:        row[colCategory],
		Subcategory:     row[colSubcategory],
		Price:           weekly,
		WeeklyPrice:     weekly,
		MonthlyPrice:    parseInt(row[colMonthlyPrice], 0),
		Image:           row[colPrimaryImage],
		Features:        splitList(row[colFeatures]),
		Included:        splitList(row[colIncluded]),
		Tags:            splitList(row[colTags]),
		ExperienceLevel: models.ExperienceLevel(row[colExperienceLevel]),
		Rating:          defaultRating,
		Available:       row[colAvailable] == "true",
		Featured:        row[colFeatured] == "true",
		Specs:           ParseDimensions(row[colDimensions]),

		Brand:             row[colBrand],
		Model:             row[colModel],
		Condition:         row[colCondition],
		DiscountType:      row[colDiscountType],
		TaxType:           row[colTaxType],
		UnitOfMeasurement: row[colUnitOfMeasurement],
		DeliveryOptions:   splitList(row[colDeliveryOptions]),
		Restrictions:      splitList(row[colRestrictions]),
	}

	if p.Image != "" {
		p.Images = append(p.Images, p.Image)
	}
	p.Images = append(p.Images, splitList(row[colAdditionalImages])...)
	p.Images = append(p.Images, splitList(row[colImages])...)
	if p.Image == "" && len(p.Images) > 0 {
		p.Image = p.Images[0]
	}

	if v := row[colDiscount]; v != "" {
		p.Discount = parseFloat(v, 0)
	}
	if v := row[colTax]; v != "" {
		p.Tax = parseFloat(v, 18)
	}
	if v := row[colStockQuantity]; v != "" {
		p.StockQuantity = parseInt(v, 1)
	}
	if v := row[colSecurityDeposit]; v != "" {
		p.SecurityDeposit = parseInt(v, 0)
	}
	if v := row[colInsurance]; v != "" {
		p.Insurance = parseInt(v, 0)
	}
	if v := row[colMinimumRentalDays]; v != "" {
		p.MinimumRentalDays = parseInt(v, 1)
	}
	if v := row[colMaximumRentalDays]; v != "" {
		p.MaximumRentalDays = parseInt(v, 30)
	}

	return p
}

// ParseDimensions decomposes "LxWxHunit, weight" (for example
// "24x12x7cm, 650g") into Length/Width/Height/Weight specs. Lengths are
// reported in cm. Without a comma nothing is extracted.
func ParseDimensions(dimensions string) map[string]string {
	specs := map[string]string{}
	if dimensions == "" || !strings.Contains(dimensions, ",") {
		return specs
	}

	parts := strings.Split(dimensions, ",")
	sizes := strings.TrimSpace(parts[0])
	weight := strings.TrimSpace(parts[1])

	if strings.Contains(sizes, "x") {
		axes := strings.Split(unitPattern.ReplaceAllString(sizes, ""), "x")
		for i, key := range []string{"Length", "Width", "Height"} {
			if i >= len(axes) {
				break
			}
			if v := strings.TrimSpace(axes[i]); v != "" {
				specs[key] = v + "cm"
			}
		}
	}

	if weight != "" {
		specs["Weight"] = weight
	}

	return specs
}

func splitList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseInt accepts the leading integer of value ("1200.50" → 1200) and
// returns fallback when there is none or the result is zero.
func parseInt(value string, fallback int) int {
	value = strings.TrimSpace(value)
	end := 0
	for end < len(value) {
		c := value[end]
		if (c >= '0' && c <= '9') || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	n, err := strconv.Atoi(value[:end])
	if err != nil || n == 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f == 0 {
		return fallback
	}
	return f
}
