package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

// productRepository — in-memory реализация ProductRepository.
type productRepository struct {
	store   *Store
	locking bool
}

func (r *productRepository) lock() {
	if r.locking {
		r.store.mu.Lock()
	}
}

func (r *productRepository) unlock() {
	if r.locking {
		r.store.mu.Unlock()
	}
}

// FindBySKU возвращает товар по SKU или ErrProductNotFound.
func (r *productRepository) FindBySKU(sku string) (domain.Product, error) {
	r.lock()
	defer r.unlock()

	id, ok := r.store.productsBySKU[strings.TrimSpace(sku)]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return r.store.products[id], nil
}

// Get возвращает товар или ErrProductNotFound.
func (r *productRepository) Get(id string) (domain.Product, error) {
	r.lock()
	defer r.unlock()

	p, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// Create сохраняет новый товар.
func (r *productRepository) Create(p domain.Product) error {
	r.lock()
	defer r.unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := r.store.products[p.ID]; exists {
		return domain.ErrAlreadyExists
	}
	if _, exists := r.store.productsBySKU[p.SKU]; exists {
		return domain.ErrAlreadyExists
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.store.products[p.ID] = p
	r.store.productsBySKU[p.SKU] = p.ID
	return nil
}

// Reserve атомарно резервирует qty, если хватает доступного остатка.
func (r *productRepository) Reserve(productID string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrItemQtyInvalid
	}

	r.lock()
	defer r.unlock()

	p, ok := r.store.products[productID]
	if !ok {
		return false, domain.ErrProductNotFound
	}
	if p.Available() < qty {
		return false, nil
	}
	p.ReservedQuantity += qty
	p.UpdatedAt = time.Now().UTC()
	r.store.products[productID] = p
	return true, nil
}

// Release снимает резерв, не уводя reserved ниже нуля.
func (r *productRepository) Release(productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}

	r.lock()
	defer r.unlock()

	p, ok := r.store.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.ReservedQuantity -= qty
	if p.ReservedQuantity < 0 {
		p.ReservedQuantity = 0
	}
	p.UpdatedAt = time.Now().UTC()
	r.store.products[productID] = p
	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
