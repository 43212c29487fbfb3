package normalize

import (
	"strconv"
)

// Size is one purchasable size of a product.
type Size struct {
	SizeID   string   `json:"sizeId,omitempty"`
	Size     *float64 `json:"size,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Label    string   `json:"label,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Discount *float64 `json:"discount,omitempty"`
	Stock    *int     `json:"stock,omitempty"`
}

// Product is the canonical product shape streamed to clients.
type Product struct {
	ProductID       string   `json:"productId"`
	Slug            string   `json:"slug,omitempty"`
	CategoryName    string   `json:"categoryName,omitempty"`
	SelectionReason string   `json:"selectionReason,omitempty"`
	Sizes           []Size   `json:"sizes,omitempty"`
	Ingredients     []string `json:"ingredients,omitempty"`
	Benefits        []string `json:"benefits,omitempty"`
	SkinTypes       []string `json:"skinTypes,omitempty"`
	IsNew           *bool    `json:"isNew,omitempty"`
	IsTrending      *bool    `json:"isTrending,omitempty"`
	IsBestseller    *bool    `json:"isBestseller,omitempty"`
	HasAlcohol      *bool    `json:"hasAlcohol,omitempty"`
	HasFragrance    *bool    `json:"hasFragrance,omitempty"`
}

// SanitizeProducts normalizes a raw product list. Entries may be flat or
// carry a nested "product" base record; top-level fields win over the base.
// Entries without a resolvable id are dropped.
func SanitizeProducts(list []any) []Product {
	out := make([]Product, 0, len(list))
	for _, entry := range asRecords(list) {
		if p, ok := sanitizeProduct(entry); ok {
			out = append(out, p)
		}
	}
	return out
}

func sanitizeProduct(entry Record) (Product, bool) {
	base := Fields{"product"}.Object(entry)
	records := []Record{entry, base}

	id := idFields.ID(records...)
	if id == "" {
		return Product{}, false
	}

	p := Product{
		ProductID:       id,
		Slug:            slugFields.String(records...),
		CategoryName:    categoryName(records...),
		SelectionReason: selectionFields.String(records...),
		Sizes:           sanitizeSizes(sizeListFields.List(records...)),
		Ingredients:     ingredientFields.Strings(records...),
		Benefits:        benefitFields.Strings(records...),
		SkinTypes:       skinTypeFields.Strings(records...),
	}
	p.IsNew = optionalBool(isNewFields, records)
	p.IsTrending = optionalBool(isTrendingFields, records)
	p.IsBestseller = optionalBool(isBestsellerFields, records)
	p.HasAlcohol = optionalBool(hasAlcoholFields, records)
	p.HasFragrance = optionalBool(hasFragranceFields, records)
	return p, true
}

func optionalBool(f Fields, records []Record) *bool {
	if b, ok := f.Bool(records...); ok {
		return &b
	}
	return nil
}

// categoryName resolves the first category name: a direct categoryName,
// a category that is a string or object, then the categories array.
func categoryName(records ...Record) string {
	for _, r := range records {
		if r == nil {
			continue
		}
		if name := (Fields{"categoryName"}).String(r); name != "" {
			return name
		}
		switch c := r["category"].(type) {
		case string:
			if name := (Fields{"category"}).String(r); name != "" {
				return name
			}
		case Record:
			if name := (Fields{"name", "title"}).String(c); name != "" {
				return name
			}
		}
		if list, ok := r["categories"].([]any); ok {
			for _, item := range list {
				switch c := item.(type) {
				case string:
					if c != "" {
						return c
					}
				case Record:
					if name := (Fields{"name", "title"}).String(c); name != "" {
						return name
					}
				}
			}
		}
	}
	return ""
}

func sanitizeSizes(list []any) []Size {
	records := asRecords(list)
	if len(records) == 0 {
		return nil
	}
	out := make([]Size, 0, len(records))
	for _, r := range records {
		id := sizeIDFields.ID(r)
		if id == "" {
			continue
		}
		s := Size{
			SizeID:   id,
			Unit:     unitFields.String(r),
			Label:    sizeLabelFields.String(r),
			Currency: currencyFields.String(r),
		}
		if n, ok := sizeValueFields.Number(r); ok {
			s.Size = ptr(n)
		}
		if n, ok := priceFields.Number(r); ok {
			s.Price = ptr(n)
		}
		if n, ok := discountFields.Number(r); ok {
			s.Discount = ptr(n)
		}
		if n, ok := stockFields.Int(r); ok {
			s.Stock = ptr(n)
		}
		if s.Label == "" {
			s.Label = sizeLabel(s.Size, s.Unit)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// sizeLabel builds "50 ml" style labels from the numeric size and unit.
func sizeLabel(size *float64, unit string) string {
	if size == nil {
		return ""
	}
	label := strconv.FormatFloat(*size, 'f', -1, 64)
	if unit != "" {
		label += " " + unit
	}
	return label
}
