package domain

import "time"

// Product описывает товар со складскими остатками.
// Инвариант: Available() >= 0 в любой момент; резервирование — условный
// декремент, который атомарно отказывает при нехватке остатка.
type Product struct {
	ID               string
	SKU              string
	Name             string
	PriceMinor       int64
	StockQuantity    int32
	ReservedQuantity int32
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Available возвращает количество, доступное для резервирования.
func (p *Product) Available() int32 {
	return p.StockQuantity - p.ReservedQuantity
}
