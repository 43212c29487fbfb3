package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/ai/cache"
	"github.com/hrygo/skinsense/store"
)

// Catalog is the persistence the catalog tools need. *store.Store satisfies it.
type Catalog interface {
	SearchCatalogProducts(ctx context.Context, find *store.FindCatalogProduct) ([]*store.CatalogProduct, error)
	GetCatalogProduct(ctx context.Context, idOrSlug string) (*store.CatalogProduct, error)
	FindCatalogRoutine(ctx context.Context, find *store.FindCatalogRoutine) (*store.CatalogRoutine, error)
	UpsertCartItem(ctx context.Context, upsert *store.CartItem) (*store.CartItem, error)
	ListCartItems(ctx context.Context, find *store.FindCartItem) ([]*store.CartItem, error)
	UpsertUserPreferences(ctx context.Context, upsert *store.UpsertUserPreferences) (*store.UserPreferences, error)
}

const (
	defaultSearchLimit = 6
	maxSearchLimit     = 20

	productCacheSize = 512
	productCacheTTL  = 5 * time.Minute
)

// cachedCatalog memoizes single product lookups, which routines repeat for
// every step.
type cachedCatalog struct {
	Catalog
	products *cache.LRU[string, *store.CatalogProduct]
}

func (c *cachedCatalog) GetCatalogProduct(ctx context.Context, idOrSlug string) (*store.CatalogProduct, error) {
	if p, ok := c.products.Get(idOrSlug); ok {
		return p, nil
	}
	p, err := c.Catalog.GetCatalogProduct(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	c.products.Set(idOrSlug, p)
	return p, nil
}

// Default returns the full storefront tool set backed by catalog.
func Default(catalog Catalog) []Tool {
	catalog = &cachedCatalog{
		Catalog:  catalog,
		products: cache.NewLRU[string, *store.CatalogProduct](productCacheSize, productCacheTTL),
	}
	return []Tool{
		&SearchProductsTool{catalog: catalog},
		&GetProductTool{catalog: catalog},
		&GetRoutineTool{catalog: catalog},
		&AddToCartTool{catalog: catalog},
		&SavePreferencesTool{catalog: catalog},
		&StartSkinQuizTool{},
	}
}

// decodeDocument turns a stored raw document back into a JSON object.
func decodeDocument(doc string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, errors.Wrap(err, "corrupt catalog document")
	}
	return out, nil
}

// SearchProductsTool finds catalog products by text, category and skin type.
type SearchProductsTool struct {
	catalog Catalog
}

type searchProductsInput struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	SkinType string `json:"skinType"`
	Reason   string `json:"reason"`
	Limit    int    `json:"limit"`
}

func (t *SearchProductsTool) Name() string { return "search_products" }

func (t *SearchProductsTool) Description() string {
	return "Search the skincare catalog. Use it before recommending any product. " +
		"Returns a list of matching products with sizes and prices."
}

func (t *SearchProductsTool) Parameters() *JSONSchema {
	return object(nil, map[string]*JSONSchema{
		"query":    str("Free text such as an ingredient, product type or brand"),
		"category": str("Category name, e.g. Serums, Cleansers, Moisturizers"),
		"skinType": str("Skin type filter, e.g. dry, oily, combination, sensitive"),
		"reason":   str("One sentence on why these products fit the user"),
		"limit":    integer("Maximum number of products, default 6"),
	})
}

func (t *SearchProductsTool) Run(ctx context.Context, input string) (any, error) {
	var in searchProductsInput
	if err := decodeInput(t.Name(), input, &in); err != nil {
		return nil, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	list, err := t.catalog.SearchCatalogProducts(ctx, &store.FindCatalogProduct{
		Query:    in.Query,
		Category: in.Category,
		SkinType: in.SkinType,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	products := make([]any, 0, len(list))
	for _, p := range list {
		doc, err := decodeDocument(p.Document)
		if err != nil {
			continue
		}
		if in.Reason != "" {
			if _, ok := doc["selectionReason"]; !ok {
				doc["selectionReason"] = in.Reason
			}
		}
		products = append(products, doc)
	}
	return map[string]any{"products": products}, nil
}

// GetProductTool fetches one product by id or slug.
type GetProductTool struct {
	catalog Catalog
}

type getProductInput struct {
	ProductID string `json:"productId"`
	Slug      string `json:"slug"`
}

func (t *GetProductTool) Name() string { return "get_product" }

func (t *GetProductTool) Description() string {
	return "Fetch full details of one product, including ingredients and sizes, by productId or slug."
}

func (t *GetProductTool) Parameters() *JSONSchema {
	return object(nil, map[string]*JSONSchema{
		"productId": str("Catalog product id"),
		"slug":      str("Product slug, used when the id is unknown"),
	})
}

func (t *GetProductTool) Run(ctx context.Context, input string) (any, error) {
	var in getProductInput
	if err := decodeInput(t.Name(), input, &in); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(in.ProductID)
	if key == "" {
		key = strings.TrimSpace(in.Slug)
	}
	if key == "" {
		return nil, fmt.Errorf("productId or slug is required")
	}

	p, err := t.catalog.GetCatalogProduct(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("product %q not found", key)
		}
		return nil, err
	}
	doc, err := decodeDocument(p.Document)
	if err != nil {
		return nil, err
	}
	return map[string]any{"products": []any{doc}}, nil
}

// GetRoutineTool returns a curated routine for a skin concern. Steps that
// reference a product by id get the product document embedded.
type GetRoutineTool struct {
	catalog Catalog
}

type getRoutineInput struct {
	SkinConcern string `json:"skinConcern"`
	RoutineID   string `json:"routineId"`
}

func (t *GetRoutineTool) Name() string { return "get_routine" }

func (t *GetRoutineTool) Description() string {
	return "Get a step-by-step skincare routine for a skin concern (e.g. acne, dryness, dullness) or by routineId."
}

func (t *GetRoutineTool) Parameters() *JSONSchema {
	return object(nil, map[string]*JSONSchema{
		"skinConcern": str("Primary skin concern"),
		"routineId":   str("Routine id, when known"),
	})
}

func (t *GetRoutineTool) Run(ctx context.Context, input string) (any, error) {
	var in getRoutineInput
	if err := decodeInput(t.Name(), input, &in); err != nil {
		return nil, err
	}
	find := &store.FindCatalogRoutine{}
	switch {
	case strings.TrimSpace(in.RoutineID) != "":
		id := strings.TrimSpace(in.RoutineID)
		find.ID = &id
	case strings.TrimSpace(in.SkinConcern) != "":
		concern := strings.TrimSpace(in.SkinConcern)
		find.SkinConcern = &concern
	default:
		return nil, fmt.Errorf("skinConcern or routineId is required")
	}

	r, err := t.catalog.FindCatalogRoutine(ctx, find)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return map[string]any{"routine": nil, "message": "no routine found for this concern"}, nil
		}
		return nil, err
	}
	doc, err := decodeDocument(r.Document)
	if err != nil {
		return nil, err
	}
	if _, ok := doc["routineId"]; !ok {
		doc["routineId"] = r.ID
	}
	t.embedProducts(ctx, doc)
	return map[string]any{"routine": doc}, nil
}

func (t *GetRoutineTool) embedProducts(ctx context.Context, routine map[string]any) {
	steps, _ := routine["steps"].([]any)
	for _, s := range steps {
		step, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if _, has := step["product"]; has {
			continue
		}
		id, _ := step["productId"].(string)
		if id == "" {
			continue
		}
		p, err := t.catalog.GetCatalogProduct(ctx, id)
		if err != nil {
			continue
		}
		if doc, err := decodeDocument(p.Document); err == nil {
			step["product"] = doc
		}
	}
}

// AddToCartTool adds a product size to the user's cart.
type AddToCartTool struct {
	catalog Catalog
}

type addToCartInput struct {
	UserID    string `json:"userId"`
	ProductID string `json:"productId"`
	SizeID    string `json:"sizeId"`
	Quantity  int    `json:"quantity"`
}

func (t *AddToCartTool) Name() string { return "add_to_cart" }

func (t *AddToCartTool) Description() string {
	return "Add a product to the user's cart. Only call this when the user explicitly asks to buy or add an item. " +
		"The userId is given in the user's message as [userId: ...]."
}

func (t *AddToCartTool) Parameters() *JSONSchema {
	return object([]string{"userId", "productId"}, map[string]*JSONSchema{
		"userId":    str("Acting user id"),
		"productId": str("Catalog product id"),
		"sizeId":    str("Size id, when the product has several sizes"),
		"quantity":  integer("Quantity to add, default 1"),
	})
}

func (t *AddToCartTool) Run(ctx context.Context, input string) (any, error) {
	var in addToCartInput
	if err := decodeInput(t.Name(), input, &in); err != nil {
		return nil, err
	}
	if in.UserID == "" {
		return nil, fmt.Errorf("userId is required, ask the user to sign in")
	}
	if in.ProductID == "" {
		return nil, fmt.Errorf("productId is required")
	}
	if in.Quantity <= 0 {
		in.Quantity = 1
	}
	if _, err := t.catalog.GetCatalogProduct(ctx, in.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("product %q not found", in.ProductID)
		}
		return nil, err
	}

	item, err := t.catalog.UpsertCartItem(ctx, &store.CartItem{
		UserID:    in.UserID,
		ProductID: in.ProductID,
		SizeID:    in.SizeID,
		Quantity:  in.Quantity,
	})
	if err != nil {
		return nil, err
	}
	items, err := t.catalog.ListCartItems(ctx, &store.FindCartItem{UserID: in.UserID})
	if err != nil {
		return nil, err
	}

	lines := make([]map[string]any, 0, len(items))
	for _, it := range items {
		lines = append(lines, map[string]any{"productId": it.ProductID, "sizeId": it.SizeID, "quantity": it.Quantity})
	}
	return map[string]any{
		"cart": map[string]any{
			"added": map[string]any{"productId": item.ProductID, "sizeId": item.SizeID, "quantity": item.Quantity},
			"items": lines,
		},
	}, nil
}

// SavePreferencesTool records the user's skin profile and reports it back as
// a conversation summary patch.
type SavePreferencesTool struct {
	catalog Catalog
}

type savePreferencesInput struct {
	UserID   string   `json:"userId"`
	SkinType string   `json:"skinType"`
	Concerns []string `json:"concerns"`
	Budget   string   `json:"budget"`
}

func (t *SavePreferencesTool) Name() string { return "save_preferences" }

func (t *SavePreferencesTool) Description() string {
	return "Remember the user's skin type, concerns and budget once they have been stated or inferred."
}

func (t *SavePreferencesTool) Parameters() *JSONSchema {
	return object(nil, map[string]*JSONSchema{
		"userId":   str("Acting user id, when known"),
		"skinType": str("dry, oily, combination, normal or sensitive"),
		"concerns": strList("Skin concerns such as acne, redness, dullness"),
		"budget":   str("Budget preference, e.g. under 30 EUR"),
	})
}

func (t *SavePreferencesTool) Run(ctx context.Context, input string) (any, error) {
	var in savePreferencesInput
	if err := decodeInput(t.Name(), input, &in); err != nil {
		return nil, err
	}

	summary := map[string]any{}
	if in.SkinType != "" {
		summary["skinType"] = strings.ToLower(strings.TrimSpace(in.SkinType))
	}
	if len(in.Concerns) > 0 {
		summary["concerns"] = in.Concerns
	}
	if in.Budget != "" {
		summary["budget"] = in.Budget
	}
	if len(summary) == 0 {
		return nil, fmt.Errorf("nothing to save")
	}

	if in.UserID != "" {
		raw, err := json.Marshal(summary)
		if err != nil {
			return nil, err
		}
		if _, err := t.catalog.UpsertUserPreferences(ctx, &store.UpsertUserPreferences{UserID: in.UserID, Preferences: string(raw)}); err != nil {
			return nil, err
		}
	}
	return map[string]any{"summary": summary}, nil
}

// StartSkinQuizTool asks the client to open the skin type quiz.
type StartSkinQuizTool struct{}

func (t *StartSkinQuizTool) Name() string { return "start_skin_quiz" }

func (t *StartSkinQuizTool) Description() string {
	return "Start the interactive skin type quiz when the user does not know their skin type or asks for a diagnosis."
}

func (t *StartSkinQuizTool) Parameters() *JSONSchema {
	return object(nil, nil)
}

func (t *StartSkinQuizTool) Run(context.Context, string) (any, error) {
	return map[string]any{"startSkinTypeQuiz": true}, nil
}
