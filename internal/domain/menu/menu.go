package menu

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested pizza, size or topping does not exist.
var ErrNotFound = errors.New("menu item not found")

// Topping is an ingredient that can be a pizza default or an extra on a line item.
type Topping struct {
	ID          int64
	Description string
	Price       decimal.Decimal
}

// Size is a pizza size with its flat surcharge.
type Size struct {
	ID          int64
	Description string
	Price       decimal.Decimal
}

// Pizza is a menu pizza with its default toppings.
type Pizza struct {
	ID          int64
	Name        string
	Description string
	// BasePrice is zero unless the menu stores an explicit base.
	BasePrice decimal.Decimal
	Toppings  []Topping
}

// TotalPrice returns the base price plus the price of every default topping.
func (p *Pizza) TotalPrice() decimal.Decimal {
	return p.BasePrice.Add(SumToppings(p.Toppings))
}

// SumToppings adds up topping prices. An empty slice sums to zero.
func SumToppings(toppings []Topping) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range toppings {
		sum = sum.Add(t.Price)
	}
	return sum
}

// Repository defines read operations for the menu catalogue.
type Repository interface {
	ListPizzas(ctx context.Context) ([]Pizza, error)
	GetPizza(ctx context.Context, id int64) (*Pizza, error)
	ListSizes(ctx context.Context) ([]Size, error)
	GetSize(ctx context.Context, id int64) (*Size, error)
	ListToppings(ctx context.Context) ([]Topping, error)
	// GetToppings returns toppings in the order of ids. Unknown ids yield ErrNotFound.
	GetToppings(ctx context.Context, ids []int64) ([]Topping, error)
}
