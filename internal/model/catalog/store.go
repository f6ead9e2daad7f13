package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Inventory is the read side of the storefront catalog.
type Inventory interface {
	// FindProducts matches name or description containing term, case-insensitive.
	FindProducts(ctx context.Context, term string) ([]Product, error)
	FindProductsByName(ctx context.Context, terms []string) ([]Product, error)
	FindProductsByDescription(ctx context.Context, terms []string) ([]Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// Cart is the per-owner cart persistence used by the assistant.
type Cart interface {
	// GetLines returns the owner's lines in creation order.
	GetLines(ctx context.Context, owner Owner) ([]CartLine, error)
	// UpsertLine sets the line quantity, creating the line when absent.
	UpsertLine(ctx context.Context, owner Owner, product Product, quantity int) error
	DeleteLine(ctx context.Context, owner Owner, productID string) error
	DeleteAllLines(ctx context.Context, owner Owner) error
}

// MemoryStore implements Inventory and Cart in memory, suitable for tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Product
	lines map[string][]CartLine
	now   func() time.Time
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied products.
func NewMemoryStore(items []Product) *MemoryStore {
	return &MemoryStore{
		items: append([]Product(nil), items...),
		lines: make(map[string][]CartLine),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ListProducts returns the catalog in insertion order.
func (s *MemoryStore) ListProducts(_ context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Product(nil), s.items...), nil
}

// FindByID looks up a product by identifier.
func (s *MemoryStore) FindByID(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Product{}, false
}

// FindProducts matches name or description.
func (s *MemoryStore) FindProducts(_ context.Context, term string) ([]Product, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	return s.filter(func(p Product) bool {
		return strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle)
	}), nil
}

// FindProductsByName matches products whose name contains any of the terms.
func (s *MemoryStore) FindProductsByName(_ context.Context, terms []string) ([]Product, error) {
	return s.filter(func(p Product) bool { return containsAny(p.Name, terms) }), nil
}

// FindProductsByDescription matches products whose description contains any of the terms.
func (s *MemoryStore) FindProductsByDescription(_ context.Context, terms []string) ([]Product, error) {
	return s.filter(func(p Product) bool { return containsAny(p.Description, terms) }), nil
}

func (s *MemoryStore) filter(keep func(Product) bool) []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Product
	for _, item := range s.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func containsAny(field string, terms []string) bool {
	haystack := strings.ToLower(field)
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

// GetLines returns a copy of the owner's lines.
func (s *MemoryStore) GetLines(_ context.Context, owner Owner) ([]CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := s.lines[owner.Key()]
	copied := make([]CartLine, len(lines))
	copy(copied, lines)
	sort.SliceStable(copied, func(i, j int) bool { return copied[i].CreatedAt.Before(copied[j].CreatedAt) })
	return copied, nil
}

// UpsertLine sets a line's quantity, creating it on first add.
func (s *MemoryStore) UpsertLine(_ context.Context, owner Owner, product Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := owner.Key()
	lines := s.lines[key]
	for i := range lines {
		if lines[i].Product.ID == product.ID {
			lines[i].Quantity = quantity
			return nil
		}
	}

	s.lines[key] = append(lines, CartLine{
		ID:        uuid.NewString(),
		Owner:     owner,
		Product:   product,
		Quantity:  quantity,
		CreatedAt: s.now(),
	})
	return nil
}

// DeleteLine removes a single product from the owner's cart.
func (s *MemoryStore) DeleteLine(_ context.Context, owner Owner, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := owner.Key()
	lines := s.lines[key]
	for i := range lines {
		if lines[i].Product.ID == productID {
			s.lines[key] = append(lines[:i:i], lines[i+1:]...)
			return nil
		}
	}
	return ErrProductNotFound
}

// DeleteAllLines empties the owner's cart.
func (s *MemoryStore) DeleteAllLines(_ context.Context, owner Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, owner.Key())
	return nil
}
