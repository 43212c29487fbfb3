package normalize

import (
	"github.com/hrygo/skinsense/ai/internal/strutil"
)

// MaxInstructionRunes caps the per-step instruction text.
const MaxInstructionRunes = 320

// Routine is the canonical skincare routine shape streamed to clients.
type Routine struct {
	RoutineID   string        `json:"routineId,omitempty"`
	Title       string        `json:"title,omitempty"`
	SkinConcern string        `json:"skinConcern,omitempty"`
	Steps       []RoutineStep `json:"steps"`
}

// RoutineStep is one ordered step of a routine.
type RoutineStep struct {
	Index        *int                 `json:"index,omitempty"`
	Order        *int                 `json:"order,omitempty"`
	Step         string               `json:"step,omitempty"`
	ProductID    string               `json:"productId,omitempty"`
	ProductSlug  string               `json:"productSlug,omitempty"`
	Category     string               `json:"category,omitempty"`
	CategorySlug string               `json:"categorySlug,omitempty"`
	CategoryName string               `json:"categoryName,omitempty"`
	Instruction  string               `json:"instruction,omitempty"`
	TimeOfDay    string               `json:"timeOfDay,omitempty"`
	Sizes        []Size               `json:"sizes,omitempty"`
	Alternatives []RoutineAlternative `json:"alternatives,omitempty"`
}

// RoutineAlternative is a substitute product for a step.
type RoutineAlternative struct {
	ProductID    string               `json:"productId,omitempty"`
	ProductSlug  string               `json:"productSlug,omitempty"`
	Category     string               `json:"category,omitempty"`
	CategorySlug string               `json:"categorySlug,omitempty"`
	CategoryName string               `json:"categoryName,omitempty"`
	Instruction  string               `json:"instruction,omitempty"`
	Sizes        []Size               `json:"sizes,omitempty"`
	Alternatives []RoutineAlternative `json:"alternatives,omitempty"`
}

var (
	routineIDFields   = Fields{"routineId", "_id", "id"}
	routineStepFields = Fields{"steps", "routineSteps"}
	stepLabelFields   = Fields{"step", "stepName", "label"}
	instructionFields = Fields{"instruction", "instructions", "howToUse", "usage"}
	timeOfDayFields   = Fields{"timeOfDay", "time", "period"}
	alternativeFields = Fields{"alternatives", "alternativeProducts"}
	stepSlugFields    = Fields{"productSlug", "slug"}
)

// SanitizeRoutine normalizes a raw routine payload. Steps referencing neither
// a product id nor a slug are dropped. It returns nil when the payload is not
// an object or no step survives.
func SanitizeRoutine(raw any) *Routine {
	r, ok := raw.(Record)
	if !ok {
		return nil
	}

	var steps []RoutineStep
	for _, s := range asRecords(routineStepFields.List(r)) {
		if step, ok := sanitizeStep(s); ok {
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		return nil
	}

	return &Routine{
		// Identifiers must already be strings; numeric ids are not coerced here.
		RoutineID:   routineIDFields.String(r),
		Title:       Fields{"title", "name"}.String(r),
		SkinConcern: Fields{"skinConcern", "concern"}.String(r),
		Steps:       steps,
	}
}

// sanitizeStep reports false for steps that reference no product.
func sanitizeStep(s Record) (RoutineStep, bool) {
	ref := resolveProductRef(s)
	if ref.productID == "" && ref.slug == "" {
		return RoutineStep{}, false
	}
	step := RoutineStep{
		Step:         stepLabelFields.String(s),
		ProductID:    ref.productID,
		ProductSlug:  ref.slug,
		Category:     ref.category,
		CategorySlug: ref.categorySlug,
		CategoryName: ref.categoryName,
		Instruction:  ref.instruction,
		TimeOfDay:    timeOfDayFields.String(s),
		Sizes:        ref.sizes,
		Alternatives: sanitizeAlternatives(alternativeFields.List(s)),
	}
	if n, ok := (Fields{"index"}).Int(s); ok {
		step.Index = ptr(n)
	}
	if n, ok := (Fields{"order"}).Int(s); ok {
		step.Order = ptr(n)
	}
	return step, true
}

func sanitizeAlternatives(list []any) []RoutineAlternative {
	var out []RoutineAlternative
	for _, a := range asRecords(list) {
		ref := resolveProductRef(a)
		if ref.productID == "" && ref.slug == "" {
			continue
		}
		out = append(out, RoutineAlternative{
			ProductID:    ref.productID,
			ProductSlug:  ref.slug,
			Category:     ref.category,
			CategorySlug: ref.categorySlug,
			CategoryName: ref.categoryName,
			Instruction:  ref.instruction,
			Sizes:        ref.sizes,
			Alternatives: sanitizeAlternatives(alternativeFields.List(a)),
		})
	}
	return out
}

type productRef struct {
	productID    string
	slug         string
	category     string
	categorySlug string
	categoryName string
	instruction  string
	sizes        []Size
}

// resolveProductRef reads the product reference shared by steps and
// alternatives. Direct fields win over the embedded "product" record.
func resolveProductRef(s Record) productRef {
	product := Fields{"product"}.Object(s)

	ref := productRef{
		productID:    Fields{"productId"}.ID(s),
		slug:         stepSlugFields.String(s),
		categorySlug: Fields{"categorySlug"}.String(s),
		categoryName: Fields{"categoryName"}.String(s),
		instruction:  strutil.Clip(instructionFields.String(s), MaxInstructionRunes),
		sizes:        sanitizeSizes(sizeListFields.List(s, product)),
	}
	if ref.productID == "" {
		ref.productID = idFields.ID(product)
	}
	if ref.slug == "" {
		ref.slug = slugFields.String(product)
	}

	switch c := s["category"].(type) {
	case string:
		ref.category = Fields{"category"}.String(s)
	case Record:
		if ref.categorySlug == "" {
			ref.categorySlug = Fields{"slug"}.String(c)
		}
		if ref.categoryName == "" {
			ref.categoryName = Fields{"name"}.String(c)
		}
	}

	if ref.categorySlug == "" || ref.categoryName == "" {
		for _, c := range asRecords(Fields{"categories"}.List(product)) {
			name := Fields{"name"}.String(c)
			slug := Fields{"slug"}.String(c)
			if name == "" && slug == "" {
				continue
			}
			if ref.categorySlug == "" {
				ref.categorySlug = slug
			}
			if ref.categoryName == "" {
				ref.categoryName = name
			}
			break
		}
	}

	if ref.category == "" {
		ref.category = ref.categorySlug
	}
	if ref.category == "" {
		ref.category = ref.categoryName
	}
	return ref
}
