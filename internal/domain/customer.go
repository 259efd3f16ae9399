package domain

import "time"

// Customer хранит данные клиента и производные агрегаты.
// TotalSpentMinor и TotalOrders всегда пересчитываются из не-отменённых заказов
// (см. stats.Aggregator), а не инкрементируются независимо — иначе накапливается дрейф.
type Customer struct {
	ID              string
	Name            string
	Email           string
	Phone           string
	Address         string
	TotalSpentMinor int64
	TotalOrders     int32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate проверяет обязательные поля клиента.
func (c *Customer) Validate() []error {
	var errs []error

	if c.Email == "" {
		errs = append(errs, ErrCustomerEmailRequired)
	}
	if c.Name == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}

	return errs
}
