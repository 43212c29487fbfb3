package store

// CatalogProduct is a raw product document kept in whatever shape it was
// imported with. Search columns are extracted at import time.
type CatalogProduct struct {
	ID       string
	Slug     string
	Name     string
	Category string
	// SkinTypes is a comma separated list used for filtering.
	SkinTypes string
	Document  string
}

type FindCatalogProduct struct {
	ID       *string
	Slug     *string
	Query    string
	Category string
	SkinType string
	Limit    int
}

// CatalogRoutine is a raw routine document keyed by the concern it targets.
type CatalogRoutine struct {
	ID          string
	SkinConcern string
	Title       string
	Document    string
}

type FindCatalogRoutine struct {
	ID          *string
	SkinConcern *string
}
