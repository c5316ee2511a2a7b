package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Koalla18/TakeSmart/internal/domain"
)

func scanBrand(row pgx.Row) (*domain.Brand, error) {
	var b domain.Brand
	if err := row.Scan(&b.ID, &b.Name, &b.Slug); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) GetBrand(ctx context.Context, id int64) (*domain.Brand, error) {
	b, err := scanBrand(s.pool.QueryRow(ctx, `SELECT id, name, slug FROM brands WHERE id = $1`, id))
	return b, mapError("get brand", err)
}

func (s *PostgresStore) GetBrandBySlug(ctx context.Context, slug string) (*domain.Brand, error) {
	b, err := scanBrand(s.pool.QueryRow(ctx, `SELECT id, name, slug FROM brands WHERE slug = $1`, slug))
	return b, mapError("get brand", err)
}

func (s *PostgresStore) ListBrands(ctx context.Context, p Page) ([]domain.Brand, error) {
	p = p.Normalize()
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, slug FROM brands ORDER BY id OFFSET $1 LIMIT $2`, p.Offset, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	out := []domain.Brand{}
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateBrand(ctx context.Context, b *domain.Brand) (*domain.Brand, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	out, err := scanBrand(s.pool.QueryRow(ctx,
		`INSERT INTO brands (name, slug) VALUES ($1, $2) RETURNING id, name, slug`, b.Name, b.Slug))
	if err != nil {
		return nil, mapError("insert brand", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateBrand(ctx context.Context, id int64, u *domain.BrandUpdate) (*domain.Brand, error) {
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
	if len(set.cols) == 0 {
		return s.GetBrand(ctx, id)
	}

	args := append(set.args, id)
	out, err := scanBrand(s.pool.QueryRow(ctx, fmt.Sprintf(
		`UPDATE brands SET %s WHERE id = $%d RETURNING id, name, slug`,
		strings.Join(set.cols, ", "), len(args)), args...))
	if err != nil {
		return nil, mapError("update brand", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteBrand(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM brands WHERE id = $1`, id)
	if err != nil {
		return mapError("delete brand", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
