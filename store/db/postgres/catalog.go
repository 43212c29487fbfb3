package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/store"
)

func (d *DB) UpsertCatalogProduct(ctx context.Context, upsert *store.CatalogProduct) error {
	stmt := `INSERT INTO catalog_product (id, slug, name, category, skin_types, document)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug,
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			skin_types = EXCLUDED.skin_types,
			document = EXCLUDED.document`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.ID, upsert.Slug, upsert.Name, upsert.Category, upsert.SkinTypes, upsert.Document); err != nil {
		return errors.Wrapf(err, "failed to upsert catalog_product %s", upsert.ID)
	}
	return nil
}

func (d *DB) SearchCatalogProducts(ctx context.Context, find *store.FindCatalogProduct) ([]*store.CatalogProduct, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Slug != nil {
		where, args = append(where, "slug = "+placeholder(len(args)+1)), append(args, *find.Slug)
	}
	if q := strings.TrimSpace(find.Query); q != "" {
		args = append(args, "%"+q+"%")
		p := placeholder(len(args))
		where = append(where, "(name ILIKE "+p+" OR slug ILIKE "+p+" OR document::TEXT ILIKE "+p+")")
	}
	if find.Category != "" {
		where, args = append(where, "LOWER(category) = LOWER("+placeholder(len(args)+1)+")"), append(args, find.Category)
	}
	if find.SkinType != "" {
		where, args = append(where, "skin_types ILIKE "+placeholder(len(args)+1)), append(args, "%"+find.SkinType+"%")
	}

	query := `SELECT id, slug, name, category, skin_types, document::TEXT FROM catalog_product
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY name ASC`
	if find.Limit > 0 {
		query += ` LIMIT ` + placeholder(len(args)+1)
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
	stmt := `INSERT INTO catalog_routine (id, skin_concern, title, document)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (id) DO UPDATE SET
			skin_concern = EXCLUDED.skin_concern,
			title = EXCLUDED.title,
			document = EXCLUDED.document`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.ID, upsert.SkinConcern, upsert.Title, upsert.Document); err != nil {
		return errors.Wrapf(err, "failed to upsert catalog_routine %s", upsert.ID)
	}
	return nil
}

func (d *DB) FindCatalogRoutine(ctx context.Context, find *store.FindCatalogRoutine) (*store.CatalogRoutine, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.SkinConcern != nil {
		where, args = append(where, "LOWER(skin_concern) = LOWER("+placeholder(len(args)+1)+")"), append(args, *find.SkinConcern)
	}

	r := &store.CatalogRoutine{}
	err := d.db.QueryRowContext(ctx,
		`SELECT id, skin_concern, title, document::TEXT FROM catalog_routine WHERE `+strings.Join(where, " AND ")+` ORDER BY id ASC LIMIT 1`, args...,
	).Scan(&r.ID, &r.SkinConcern, &r.Title, &r.Document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find catalog_routine")
	}
	return r, nil
}
