package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PayloadItem — одна позиция во входящем payload заказа.
type PayloadItem struct {
	SKU      string `json:"sku"`
	Quantity int32  `json:"quantity"`
}

// OrderPayload — сырой payload заказа от внешнего продюсера.
// IdempotencyKey опционален: при повторной доставке job с тем же ключом
// заказ не создаётся повторно.
type OrderPayload struct {
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CustomerEmail  string        `json:"customer_email"`
	CustomerName   string        `json:"customer_name"`
	Phone          string        `json:"phone,omitempty"`
	Address        string        `json:"address,omitempty"`
	Products       []PayloadItem `json:"products"`
}

// Validate проверяет минимальные требования к payload.
func (p *OrderPayload) Validate() []error {
	var errs []error

	if strings.TrimSpace(p.CustomerEmail) == "" {
		errs = append(errs, ErrCustomerEmailRequired)
	}
	if strings.TrimSpace(p.CustomerName) == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	if len(p.Products) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range p.Products {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
	}

	return errs
}

// Hash возвращает детерминированный хеш содержимого payload для idempotency-key.
// Порядок позиций не влияет на результат.
func (p *OrderPayload) Hash() string {
	items := make([]PayloadItem, len(p.Products))
	copy(items, p.Products)
	sort.Slice(items, func(i, j int) bool {
		if items[i].SKU != items[j].SKU {
			return items[i].SKU < items[j].SKU
		}
		return items[i].Quantity < items[j].Quantity
	})

	canonical := struct {
		Email    string        `json:"email"`
		Name     string        `json:"name"`
		Phone    string        `json:"phone"`
		Address  string        `json:"address"`
		Products []PayloadItem `json:"products"`
	}{
		Email:    strings.ToLower(strings.TrimSpace(p.CustomerEmail)),
		Name:     strings.TrimSpace(p.CustomerName),
		Phone:    p.Phone,
		Address:  p.Address,
		Products: items,
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		// Payload состоит из строк и чисел, сюда попадать не должны.
		data = []byte(fmt.Sprintf("%+v", canonical))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
