package tools

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/ai/normalize"
	"github.com/hrygo/skinsense/store"
)

// CatalogWriter receives imported documents. *store.Store satisfies it.
type CatalogWriter interface {
	UpsertCatalogProduct(ctx context.Context, upsert *store.CatalogProduct) error
	UpsertCatalogRoutine(ctx context.Context, upsert *store.CatalogRoutine) error
}

// ImportStats counts what an import wrote and skipped.
type ImportStats struct {
	Products int
	Routines int
	Skipped  int
}

type catalogFile struct {
	Products []json.RawMessage `json:"products"`
	Routines []json.RawMessage `json:"routines"`
}

var (
	productNameFields    = normalize.Fields{"name", "title"}
	productIDFields      = normalize.Fields{"_id", "id", "productId"}
	productSlugFields    = normalize.Fields{"slug", "handle"}
	productSkinFields    = normalize.Fields{"skinTypes", "skinType", "suitableFor"}
	routineIDFields      = normalize.Fields{"routineId", "_id", "id"}
	routineConcernFields = normalize.Fields{"skinConcern", "concern"}
	routineTitleFields   = normalize.Fields{"title", "name"}
)

// ImportCatalog reads {"products":[...],"routines":[...]} from r and upserts
// every document in its original shape. Documents without an id, and
// routines without a concern, are skipped.
func ImportCatalog(ctx context.Context, dst CatalogWriter, r io.Reader) (*ImportStats, error) {
	var file catalogFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "failed to decode catalog")
	}

	stats := &ImportStats{}
	for _, raw := range file.Products {
		p, ok := catalogProduct(raw)
		if !ok {
			stats.Skipped++
			continue
		}
		if err := dst.UpsertCatalogProduct(ctx, p); err != nil {
			return stats, errors.Wrapf(err, "failed to import product %s", p.ID)
		}
		stats.Products++
	}
	for _, raw := range file.Routines {
		rt, ok := catalogRoutine(raw)
		if !ok {
			stats.Skipped++
			continue
		}
		if err := dst.UpsertCatalogRoutine(ctx, rt); err != nil {
			return stats, errors.Wrapf(err, "failed to import routine %s", rt.ID)
		}
		stats.Routines++
	}
	return stats, nil
}

func catalogProduct(raw json.RawMessage) (*store.CatalogProduct, bool) {
	var doc normalize.Record
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return nil, false
	}
	id := productIDFields.ID(doc)
	if id == "" {
		return nil, false
	}

	category := ""
	if list := normalize.SanitizeProducts([]any{doc}); len(list) > 0 {
		category = list[0].CategoryName
	}
	skinTypes := productSkinFields.Strings(doc)
	for i := range skinTypes {
		skinTypes[i] = strings.ToLower(skinTypes[i])
	}

	return &store.CatalogProduct{
		ID:        id,
		Slug:      productSlugFields.String(doc),
		Name:      productNameFields.String(doc),
		Category:  category,
		SkinTypes: strings.Join(skinTypes, ","),
		Document:  string(raw),
	}, true
}

func catalogRoutine(raw json.RawMessage) (*store.CatalogRoutine, bool) {
	var doc normalize.Record
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return nil, false
	}
	rt := &store.CatalogRoutine{
		ID:          routineIDFields.ID(doc),
		SkinConcern: strings.ToLower(routineConcernFields.String(doc)),
		Title:       routineTitleFields.String(doc),
		Document:    string(raw),
	}
	if rt.ID == "" || rt.SkinConcern == "" {
		return nil, false
	}
	return rt, true
}
