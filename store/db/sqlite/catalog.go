package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/store"
)

func (d *DB) UpsertCatalogProduct(ctx context.Context, upsert *store.CatalogProduct) error {
	stmt := `INSERT INTO catalog_product (id, slug, name, category, skin_types, document) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug = excluded.slug,
			name = excluded.name,
			category = excluded.category,
			skin_types = excluded.skin_types,
			document = excluded.document`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.ID, upsert.Slug, upsert.Name, upsert.Category, upsert.SkinTypes, upsert.Document); err != nil {
		return errors.Wrapf(err, "failed to upsert catalog_product %s", upsert.ID)
	}
	return nil
}

// SearchCatalogProducts matches Query against name, slug and the raw
// document. LIKE is case-insensitive for ASCII in SQLite.
func (d *DB) SearchCatalogProducts(ctx context.Context, find *store.FindCatalogProduct) ([]*store.CatalogProduct, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.Slug != nil {
		where, args = append(where, "slug = ?"), append(args, *find.Slug)
	}
	if q := strings.TrimSpace(find.Query); q != "" {
		like := "%" + q + "%"
		where, args = append(where, "(name LIKE ? OR slug LIKE ? OR document LIKE ?)"), append(args, like, like, like)
	}
	if find.Category != "" {
		where, args = append(where, "category = ? COLLATE NOCASE"), append(args, find.Category)
	}
	if find.SkinType != "" {
		where, args = append(where, "skin_types LIKE ?"), append(args, "%"+find.SkinType+"%")
	}

	query := `SELECT id, slug, name, category, skin_types, document FROM catalog_product WHERE ` + strings.Join(where, " AND ") + ` ORDER BY name ASC`
	if find.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search catalog_product")
	}
	defer rows.Close()

	list := make([]*store.CatalogProduct, 0)
	for rows.Next() {
		p := &store.CatalogProduct{}
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Category, &p.SkinTypes, &p.Document); err != nil {
			return nil, errors.Wrap(err, "failed to scan catalog_product")
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate catalog_product")
	}
	return list, nil
}

func (d *DB) UpsertCatalogRoutine(ctx context.Context, upsert *store.CatalogRoutine) error {
	stmt := `INSERT INTO catalog_routine (id, skin_concern, title, document) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			skin_concern = excluded.skin_concern,
			title = excluded.title,
			document = excluded.document`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.ID, upsert.SkinConcern, upsert.Title, upsert.Document); err != nil {
		return errors.Wrapf(err, "failed to upsert catalog_routine %s", upsert.ID)
	}
	return nil
}

func (d *DB) FindCatalogRoutine(ctx context.Context, find *store.FindCatalogRoutine) (*store.CatalogRoutine, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.SkinConcern != nil {
		where, args = append(where, "skin_concern = ? COLLATE NOCASE"), append(args, *find.SkinConcern)
	}

	r := &store.CatalogRoutine{}
	err := d.db.QueryRowContext(ctx,
		`SELECT id, skin_concern, title, document FROM catalog_routine WHERE `+strings.Join(where, " AND ")+` ORDER BY id ASC LIMIT 1`, args...,
	).Scan(&r.ID, &r.SkinConcern, &r.Title, &r.Document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find catalog_routine")
	}
	return r, nil
}
