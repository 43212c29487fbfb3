// Package normalize reduces the heterogeneous product and routine payloads
// returned by catalog tools into the two canonical shapes streamed to clients.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Record is one decoded JSON object.
type Record = map[string]any

// Fields is an ordered list of candidate keys for one logical field.
// Lookups walk the records in the order given and, inside each record,
// the keys in declaration order; the first usable value wins.
type Fields []string

// Field name precedences. Adding a legacy name is a one-line change here.
var (
	idFields           = Fields{"_id", "id", "productId"}
	sizeIDFields       = Fields{"_id", "id", "sizeId"}
	slugFields         = Fields{"slug", "productSlug"}
	selectionFields    = Fields{"selectionReason", "reason", "whyRecommended"}
	sizeListFields     = Fields{"sizes", "variants", "sizeOptions"}
	sizeLabelFields    = Fields{"label", "displayName"}
	sizeValueFields    = Fields{"size", "volume", "amount"}
	unitFields         = Fields{"unit", "sizeUnit"}
	priceFields        = Fields{"price", "amount_price", "unitPrice"}
	currencyFields     = Fields{"currency", "currencyCode"}
	discountFields     = Fields{"discount", "discountPercent"}
	stockFields        = Fields{"stock", "inventory", "quantity"}
	ingredientFields   = Fields{"ingredients", "keyIngredients", "key_ingredients", "ingredientList"}
	benefitFields      = Fields{"benefits", "keyBenefits", "key_benefits", "benefitList"}
	skinTypeFields     = Fields{"skinTypes", "skinType", "skin_types", "suitableFor"}
	isNewFields        = Fields{"isNew", "is_new"}
	isTrendingFields   = Fields{"isTrending", "is_trending"}
	isBestsellerFields = Fields{"isBestseller", "isBestSeller", "is_bestseller"}
	hasAlcoholFields   = Fields{"hasAlcohol", "has_alcohol", "containsAlcohol"}
	hasFragranceFields = Fields{"hasFragrance", "has_fragrance", "containsFragrance"}
)

// Raw returns the first non-nil value.
func (f Fields) Raw(records ...Record) (any, bool) {
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, k := range f {
			if v, ok := r[k]; ok && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

// String returns the first non-blank string value. Non-string values are skipped.
func (f Fields) String(records ...Record) string {
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, k := range f {
			if s, ok := r[k].(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// ID returns the first identifier-like value: a non-blank string, an
// integral number, or a {"$oid": "..."} wrapper.
func (f Fields) ID(records ...Record) string {
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, k := range f {
			if id := asID(r[k]); id != "" {
				return id
			}
		}
	}
	return ""
}

// Number returns the first value that coerces cleanly to a finite float.
func (f Fields) Number(records ...Record) (float64, bool) {
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, k := range f {
			if n, ok := asNumber(r[k]); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// Int is Number restricted to integral values.
func (f Fields) Int(records ...Record) (int, bool) {
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, k := range f {
			if n, ok := asNumber(r[k]); ok && n == math.Trunc(n) {
				return int(n), true
			}
		}
	}
	return 0, false
}

// Bool returns the first boolean value. The strings "true" and "false" are accepted.
func (f Fields) Bool(records ...Record) (bool, bool) {
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, k := range f {
			switch v := r[k].(type) {
			case bool:
				return v, true
			case string:
				if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
					return b, true
				}
			}
		}
	}
	return false, false
}

// List returns the first array value.
func (f Fields) List(records ...Record) []any {
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, k := range f {
			if list, ok := r[k].([]any); ok {
				return list
			}
		}
	}
	return nil
}

// Strings unions every key in every record into one trimmed, de-duplicated
// list. Values may be strings (comma separated), string arrays, or arrays of
// objects exposing a name. Returns nil when nothing survives.
func (f Fields) Strings(records ...Record) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, r := range records {
		if r == nil {
			continue
		}
		for _, k := range f {
			switch v := r[k].(type) {
			case string:
				for _, part := range strings.Split(v, ",") {
					add(part)
				}
			case []any:
				for _, item := range v {
					switch it := item.(type) {
					case string:
						add(it)
					case Record:
						add(Fields{"name", "label", "title"}.String(it))
					}
				}
			}
		}
	}
	return out
}

// Object returns the first nested object.
func (f Fields) Object(records ...Record) Record {
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, k := range f {
			if obj, ok := r[k].(Record); ok {
				return obj
			}
		}
	}
	return nil
}

func asID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		if id == math.Trunc(id) && !math.IsInf(id, 0) {
			return strconv.FormatInt(int64(id), 10)
		}
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case json.Number:
		if _, err := id.Int64(); err == nil {
			return id.String()
		}
	case Record:
		if oid, ok := id["$oid"].(string); ok {
			return strings.TrimSpace(oid)
		}
	}
	return ""
}

func asNumber(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// asRecords keeps the object entries of a decoded JSON array.
func asRecords(list []any) []Record {
	out := make([]Record, 0, len(list))
	for _, item := range list {
		if r, ok := item.(Record); ok {
			out = append(out, r)
		}
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
