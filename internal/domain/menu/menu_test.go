package menu

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestPizza_TotalPrice(t *testing.T) {
	tests := []struct {
		name  string
		pizza Pizza
		want  decimal.Decimal
	}{
		{
			name: "pepperoni",
			pizza: Pizza{
				Name: "Pepperoni",
				Toppings: []Topping{
					{Description: "Cheese", Price: d("5.00")},
					{Description: "Pepperoni", Price: d("7.00")},
				},
			},
			want: d("12.00"),
		},
		{
			name: "chicken",
			pizza: Pizza{
				Name: "Chicken",
				Toppings: []Topping{
					{Description: "Chicken", Price: d("6.00")},
					{Description: "Cheese", Price: d("5.00")},
					{Description: "Corn", Price: d("2.00")},
				},
			},
			want: d("13.00"),
		},
		{
			name:  "no toppings and no base",
			pizza: Pizza{Name: "Bread"},
			want:  decimal.Zero,
		},
		{
			name: "explicit base price",
			pizza: Pizza{
				Name:      "Margherita",
				BasePrice: d("8.25"),
				Toppings:  []Topping{{Description: "Basil", Price: d("0.75")}},
			},
			want: d("9.00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.pizza.TotalPrice()
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestSumToppings_NoDrift(t *testing.T) {
	toppings := make([]Topping, 10)
	for i := range toppings {
		toppings[i] = Topping{Price: d("0.10")}
	}
	assert.Equal(t, "1.00", SumToppings(toppings).StringFixed(2))
	assert.True(t, d("1").Equal(SumToppings(toppings)))
}
