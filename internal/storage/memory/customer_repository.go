package memory

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

// customerRepository — in-memory реализация CustomerRepository.
// С locking=true каждый вызов берёт мьютекс хранилища; без него методы
// рассчитывают, что блокировку держит WithinTx.
type customerRepository struct {
	store   *Store
	locking bool
}

func (r *customerRepository) lock() {
	if r.locking {
		r.store.mu.Lock()
	}
}

func (r *customerRepository) unlock() {
	if r.locking {
		r.store.mu.Unlock()
	}
}

// FindOrCreate возвращает клиента по email, создавая запись при отсутствии.
func (r *customerRepository) FindOrCreate(c domain.Customer) (domain.Customer, error) {
	if errs := c.Validate(); len(errs) > 0 {
		return domain.Customer{}, errs[0]
	}

	r.lock()
	defer r.unlock()

	email := strings.ToLower(strings.TrimSpace(c.Email))
	if id, ok := r.store.customersByEmail[email]; ok {
		return r.store.customers[id], nil
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.Email = email
	c.CreatedAt = now
	c.UpdatedAt = now

	r.store.customers[c.ID] = c
	r.store.customersByEmail[email] = c.ID
	return c, nil
}

// Get возвращает клиента или ErrCustomerNotFound.
func (r *customerRepository) Get(id string) (domain.Customer, error) {
	r.lock()
	defer r.unlock()

	c, ok := r.store.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return c, nil
}

// Save перезаписывает клиента.
func (r *customerRepository) Save(c domain.Customer) error {
	r.lock()
	defer r.unlock()

	if _, ok := r.store.customers[c.ID]; !ok {
		return domain.ErrCustomerNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	r.store.customers[c.ID] = c
	return nil
}

// TopBySpent возвращает топ-N клиентов по total_spent.
func (r *customerRepository) TopBySpent(limit int) ([]domain.Customer, error) {
	r.lock()
	defer r.unlock()

	result := make([]domain.Customer, 0, len(r.store.customers))
	for _, c := range r.store.customers {
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalSpentMinor != result[j].TotalSpentMinor {
			return result[i].TotalSpentMinor > result[j].TotalSpentMinor
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
