package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Koalla18/TakeSmart/internal/domain"
)

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx,
		`SELECT id, name, slug, parent_id FROM categories WHERE id = $1`, id))
	return c, mapError("get category", err)
}

func (s *PostgresStore) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx,
		`SELECT id, name, slug, parent_id FROM categories WHERE slug = $1`, slug))
	return c, mapError("get category", err)
}

func (s *PostgresStore) ListCategories(ctx context.Context, p Page) ([]domain.Category, error) {
	p = p.Normalize()
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, slug, parent_id FROM categories ORDER BY id OFFSET $1 LIMIT $2`, p.Offset, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	out, err := scanCategory(s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, slug, parent_id) VALUES ($1, $2, $3)
		RETURNING id, name, slug, parent_id`, c.Name, c.Slug, c.ParentID))
	if err != nil {
		return nil, mapError("insert category", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, id int64, u *domain.CategoryUpdate) (*domain.Category, error) {
	var set setClause
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
		}
		set.add("name", *u.Name)
	}
	if u.Slug != nil {
		if err := domain.ValidateSlug(*u.Slug); err != nil {
			return nil, err
		}
		set.add("slug", *u.Slug)
	}
	if u.ParentID != nil {
		if *u.ParentID == id {
			return nil, fmt.Errorf("%w: category cannot be its own parent", domain.ErrInvalidInput)
		}
		set.add("parent_id", *u.ParentID)
	}
	if len(set.cols) == 0 {
		return s.GetCategory(ctx, id)
	}

	args := append(set.args, id)
	out, err := scanCategory(s.pool.QueryRow(ctx, fmt.Sprintf(
		`UPDATE categories SET %s WHERE id = $%d RETURNING id, name, slug, parent_id`,
		strings.Join(set.cols, ", "), len(args)), args...))
	if err != nil {
		return nil, mapError("update category", err)
	}
	return out, nil
}

// DeleteCategory removes a category; child categories and products keep
// existing with their reference cleared.
func (s *PostgresStore) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return mapError("delete category", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
