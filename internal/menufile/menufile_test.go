package menufile_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pizzeria/internal/menufile"
	"github.com/xenking/pizzeria/internal/storage/memory"
)

func TestLoadAndApply(t *testing.T) {
	f, err := menufile.Load("testdata/menu.yaml")
	require.NoError(t, err)
	require.Len(t, f.Toppings, 7)
	require.Len(t, f.Sizes, 3)
	require.Len(t, f.Pizzas, 3)

	ctx := context.Background()
	st := memory.New()
	stats, err := f.Apply(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, menufile.Stats{Toppings: 7, Sizes: 3, Pizzas: 3}, stats)

	pizzas, err := st.ListPizzas(ctx)
	require.NoError(t, err)
	require.Len(t, pizzas, 3)

	want := map[string]string{
		"Pepperoni":  "12.00",
		"Chicken":    "13.00",
		"Margherita": "13.25",
	}
	for _, p := range pizzas {
		assert.True(t, decimal.RequireFromString(want[p.Name]).Equal(p.TotalPrice()),
			"%s: got %s", p.Name, p.TotalPrice())
	}

	// Applying twice updates in place.
	_, err = f.Apply(ctx, st)
	require.NoError(t, err)
	sizes, err := st.ListSizes(ctx)
	require.NoError(t, err)
	assert.Len(t, sizes, 3)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "unknown topping", in: "pizzas:\n  - name: X\n    toppings: [Ham]\n"},
		{name: "negative price", in: "sizes:\n  - description: Small\n    price: \"-1\"\n"},
		{name: "missing name", in: "pizzas:\n  - description: nameless\n"},
		{name: "unknown field", in: "drinks: []\n"},
		{name: "bad price", in: "toppings:\n  - description: Cheese\n    price: cheap\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := menufile.Decode(strings.NewReader(tt.in))
			require.Error(t, err)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := menufile.Load("testdata/nope.yaml")
	require.Error(t, err)
}
