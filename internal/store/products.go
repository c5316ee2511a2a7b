package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/Koalla18/TakeSmart/internal/domain"
)

const productColumns = `p.id, p.name, p.slug, p.description, p.price::float8, p.currency, p.stock,
	p.is_active, p.brand_id, p.category_id, p.name_embedding, p.created_at, p.updated_at`

func scanProduct(row pgx.Row, extra ...any) (*domain.Product, error) {
	var p domain.Product
	var emb *pgvector.Vector
	dest := []any{
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Currency, &p.Stock,
		&p.IsActive, &p.BrandID, &p.CategoryID, &emb, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if emb != nil {
		p.NameEmbedding = emb.Slice()
	}
	p.Images = []domain.ProductImage{}
	p.Specs = []domain.ProductSpec{}
	return &p, nil
}

func embeddingArg(v []float32) any {
	if v == nil {
		return nil
	}
	return pgvector.NewVector(v)
}

// hydrate loads images and specs for products in two queries.
func hydrate(ctx context.Context, q querier, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]int64, len(products))
	byID := make(map[int64]*domain.Product, len(products))
	for i, p := range products {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	rows, err := q.Query(ctx, `
		SELECT id, product_id, url, is_main, sort_order FROM product_images
		WHERE product_id = ANY($1) ORDER BY product_id, sort_order, id`, ids)
	if err != nil {
		return fmt.Errorf("list product images: %w", err)
	}
	for rows.Next() {
		var img domain.ProductImage
		var pid int64
		if err := rows.Scan(&img.ID, &pid, &img.URL, &img.IsMain, &img.SortOrder); err != nil {
			rows.Close()
			return fmt.Errorf("scan product image: %w", err)
		}
		byID[pid].Images = append(byID[pid].Images, img)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list product images: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT id, product_id, key, value FROM product_specs
		WHERE product_id = ANY($1) ORDER BY product_id, id`, ids)
	if err != nil {
		return fmt.Errorf("list product specs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var spec domain.ProductSpec
		var pid int64
		if err := rows.Scan(&spec.ID, &pid, &spec.Key, &spec.Value); err != nil {
			return fmt.Errorf("scan product spec: %w", err)
		}
		byID[pid].Specs = append(byID[pid].Specs, spec)
	}
	return rows.Err()
}

func (s *PostgresStore) getProduct(ctx context.Context, q querier, where string, arg any) (*domain.Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE `+where, arg))
	if err != nil {
		return nil, mapError("get product", err)
	}
	if err := hydrate(ctx, q, []*domain.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.getProduct(ctx, s.pool, "p.id = $1", id)
}

func (s *PostgresStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return s.getProduct(ctx, s.pool, "p.slug = $1", slug)
}

func (s *PostgresStore) ListProducts(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	f = f.Normalize()
	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+` FROM products p
		WHERE p.is_active
		  AND ($1::bigint IS NULL OR p.category_id = $1)
		  AND ($2::bigint IS NULL OR p.brand_id = $2)
		ORDER BY p.id
		OFFSET $3 LIMIT $4`, f.CategoryID, f.BrandID, f.Offset, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if err := hydrate(ctx, s.pool, products); err != nil {
		return nil, err
	}
	return derefProducts(products), nil
}

func collectProducts(rows pgx.Rows) ([]*domain.Product, error) {
	defer rows.Close()
	var out []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func derefProducts(ps []*domain.Product) []domain.Product {
	out := make([]domain.Product, len(ps))
	for i, p := range ps {
		out[i] = *p
	}
	return out
}

// LexicalSearch ranks active products whose weighted document matches text
// in either the russian or the english configuration.
func (s *PostgresStore) LexicalSearch(ctx context.Context, text string, limit int) ([]domain.SearchResult, error) {
	rows, err := s.pool.Query(ctx, `
		WITH q AS (
			SELECT plainto_tsquery('russian', $1) || plainto_tsquery('english', $1) AS query
		)
		SELECT `+productColumns+`, ts_rank_cd(p.tsv, q.query)::float8 AS score
		FROM products p, q
		WHERE p.is_active AND p.tsv @@ q.query
		ORDER BY score DESC, p.id ASC
		LIMIT $2`, text, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return s.collectResults(ctx, rows)
}

// VectorSearch orders active products with an embedding by cosine distance
// to embedding.
func (s *PostgresStore) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error) {
	if len(embedding) != s.embeddingDim {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, want %d",
			domain.ErrSearchInputInvalid, len(embedding), s.embeddingDim)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+`, (p.name_embedding <=> $1)::float8 AS score
		FROM products p
		WHERE p.is_active AND p.name_embedding IS NOT NULL
		ORDER BY p.name_embedding <=> $1 ASC, p.id ASC
		LIMIT $2`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return s.collectResults(ctx, rows)
}

func (s *PostgresStore) collectResults(ctx context.Context, rows pgx.Rows) ([]domain.SearchResult, error) {
	var products []*domain.Product
	var scores []float64
	for rows.Next() {
		var score float64
		p, err := scanProduct(rows, &score)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		products = append(products, p)
		scores = append(scores, score)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if err := hydrate(ctx, s.pool, products); err != nil {
		return nil, err
	}

	out := make([]domain.SearchResult, len(products))
	for i, p := range products {
		out[i] = domain.SearchResult{ProductID: p.ID, Score: scores[i], Product: p}
	}
	return out, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if err := p.Validate(s.embeddingDim); err != nil {
		return nil, err
	}

	var id int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO products (name, slug, description, price, currency, stock, is_active,
				brand_id, category_id, name_embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			p.Name, p.Slug, p.Description, p.Price, p.Currency, p.Stock, p.IsActive,
			p.BrandID, p.CategoryID, embeddingArg(p.NameEmbedding),
		).Scan(&id)
		if err != nil {
			return mapError("insert product", err)
		}
		if err := insertImages(ctx, tx, id, p.Images); err != nil {
			return err
		}
		return insertSpecs(ctx, tx, id, p.Specs)
	})
	if err != nil {
		return nil, err
	}
	return readBack(s.GetProduct(ctx, id))
}

func insertImages(ctx context.Context, tx pgx.Tx, productID int64, images []domain.ProductImage) error {
	for _, img := range images {
		if strings.TrimSpace(img.URL) == "" {
			return fmt.Errorf("%w: image url is required", domain.ErrInvalidInput)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_images (product_id, url, is_main, sort_order) VALUES ($1, $2, $3, $4)`,
			productID, img.URL, img.IsMain, img.SortOrder); err != nil {
			return mapError("insert product image", err)
		}
	}
	return nil
}

func insertSpecs(ctx context.Context, tx pgx.Tx, productID int64, specs []domain.ProductSpec) error {
	for _, spec := range specs {
		if strings.TrimSpace(spec.Key) == "" {
			return fmt.Errorf("%w: spec key is required", domain.ErrInvalidInput)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_specs (product_id, key, value) VALUES ($1, $2, $3)`,
			productID, spec.Key, spec.Value); err != nil {
			return mapError("insert product spec", err)
		}
	}
	return nil
}

// setClause accumulates "col = $n" assignments for a partial update.
type setClause struct {
	cols []string
	args []any
}

func (c *setClause) add(col string, v any) {
	c.args = append(c.args, v)
	c.cols = append(c.cols, fmt.Sprintf("%s = $%d", col, len(c.args)))
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, id int64, u *domain.ProductUpdate) (*domain.Product, error) {
	if err := u.Validate(s.embeddingDim); err != nil {
		return nil, err
	}

	var set setClause
	if u.Name != nil {
		set.add("name", *u.Name)
	}
	if u.Slug != nil {
		set.add("slug", *u.Slug)
	}
	if u.Description != nil {
		set.add("description", *u.Description)
	}
	if u.Price != nil {
		set.add("price", *u.Price)
	}
	if u.Currency != nil {
		set.add("currency", *u.Currency)
	}
	if u.Stock != nil {
		set.add("stock", *u.Stock)
	}
	if u.IsActive != nil {
		set.add("is_active", *u.IsActive)
	}
	if u.BrandID != nil {
		set.add("brand_id", *u.BrandID)
	}
	if u.CategoryID != nil {
		set.add("category_id", *u.CategoryID)
	}
	if u.NameEmbedding != nil {
		set.add("name_embedding", pgvector.NewVector(u.NameEmbedding))
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockProductRow(ctx, tx, id); err != nil {
			return err
		}
		set.cols = append(set.cols, "updated_at = NOW()")
		args := append(set.args, id)
		sql := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d`, strings.Join(set.cols, ", "), len(args))
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return mapError("update product", err)
		}

		if u.Images != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM product_images WHERE product_id = $1`, id); err != nil {
				return mapError("replace product images", err)
			}
			if err := insertImages(ctx, tx, id, *u.Images); err != nil {
				return err
			}
		}
		if u.Specs != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM product_specs WHERE product_id = $1`, id); err != nil {
				return mapError("replace product specs", err)
			}
			if err := insertSpecs(ctx, tx, id, *u.Specs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return readBack(s.GetProduct(ctx, id))
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapError("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
