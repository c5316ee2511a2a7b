package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Koalla18/TakeSmart/internal/domain"
	"github.com/Koalla18/TakeSmart/internal/store"
)

// fakeStore is an in-memory catalog. Methods not overridden fall through to
// the embedded nil store.CatalogStore and panic.
type fakeStore struct {
	store.CatalogStore

	mu         sync.Mutex
	products   map[int64]*domain.Product
	categories map[int64]*domain.Category
	brands     map[int64]*domain.Brand
	nextID     int64
	pingErr    error
	getErr     error

	listCalls    atomic.Int64
	getCalls     atomic.Int64
	lexicalCalls atomic.Int64
}

func newFakeStore() *fakeStore {
	f := &fakeStore{
		products:   map[int64]*domain.Product{},
		categories: map[int64]*domain.Category{1: {ID: 1, Name: "Phones", Slug: "phones"}},
		brands:     map[int64]*domain.Brand{1: {ID: 1, Name: "Apple", Slug: "apple"}},
		nextID:     10,
	}
	f.products[1] = &domain.Product{ID: 1, Name: "Apple iPhone 15", Slug: "iphone-15", Price: 99990,
		Currency: "RUB", IsActive: true, NameEmbedding: []float32{1, 0, 0}}
	f.products[2] = &domain.Product{ID: 2, Name: "Samsung Galaxy S24", Slug: "galaxy-s24", Price: 89990,
		Currency: "RUB", IsActive: true, NameEmbedding: []float32{0, 1, 0}}
	return f
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	f.getCalls.Add(1)
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetProductBySlug(_ context.Context, slug string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) ListProducts(_ context.Context, flt store.ProductFilter) ([]domain.Product, error) {
	f.listCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Product{}
	for _, p := range f.products {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) LexicalSearch(_ context.Context, text string, limit int) ([]domain.SearchResult, error) {
	f.lexicalCalls.Add(1)
	return []domain.SearchResult{{ProductID: 1, Score: 0.6}, {ProductID: 2, Score: 0.1}}, nil
}

func (f *fakeStore) VectorSearch(_ context.Context, v []float32, limit int) ([]domain.SearchResult, error) {
	return []domain.SearchResult{{ProductID: 2, Score: 1}, {ProductID: 1, Score: 0}}, nil
}

func (f *fakeStore) CreateProduct(_ context.Context, p *domain.Product) (*domain.Product, error) {
	if err := p.Validate(3); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.products {
		if existing.Slug == p.Slug {
			return nil, domain.ErrConflict
		}
	}
	cp := *p
	cp.ID = f.nextID
	f.nextID++
	f.products[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) UpdateProduct(_ context.Context, id int64, u *domain.ProductUpdate) (*domain.Product, error) {
	if err := u.Validate(3); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) DeleteProduct(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeStore) GetCategory(_ context.Context, id int64) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ListCategories(_ context.Context, _ store.Page) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Category{}
	for _, c := range f.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateCategory(_ context.Context, c *domain.Category) (*domain.Category, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	cp.ID = f.nextID
	f.nextID++
	f.categories[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) UpdateCategory(_ context.Context, id int64, u *domain.CategoryUpdate) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) DeleteCategory(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.categories, id)
	return nil
}

func (f *fakeStore) GetBrand(_ context.Context, id int64) (*domain.Brand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.brands[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) ListBrands(_ context.Context, _ store.Page) ([]domain.Brand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Brand{}
	for _, b := range f.brands {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateBrand(_ context.Context, b *domain.Brand) (*domain.Brand, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.brands {
		if existing.Slug == b.Slug {
			return nil, domain.ErrConflict
		}
	}
	cp := *b
	cp.ID = f.nextID
	f.nextID++
	f.brands[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) UpdateBrand(_ context.Context, id int64, u *domain.BrandUpdate) (*domain.Brand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.brands[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if u.Name != nil {
		b.Name = *u.Name
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) DeleteBrand(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.brands[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.brands, id)
	return nil
}

var errBoom = errors.New("connection reset")
