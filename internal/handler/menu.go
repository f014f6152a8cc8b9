package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/pizzeria/internal/domain/menu"
)

// GetMenu lists pizzas with their computed totals, sizes and toppings.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pizzas, err := h.menu.ListPizzas(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sizes, err := h.menu.ListSizes(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	toppings, err := h.menu.ListToppings(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("pizzas", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range pizzas {
					encodePizza(e, &pizzas[i])
				}
			})
		})
		e.Field("sizes", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range sizes {
					encodePriced(e, s.ID, s.Description, s.Price)
				}
			})
		})
		e.Field("toppings", func(e *jx.Encoder) {
			encodeToppings(e, toppings)
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

func encodePizza(e *jx.Encoder, p *menu.Pizza) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("basePrice", func(e *jx.Encoder) { encodeMoney(e, p.BasePrice) })
		e.Field("toppings", func(e *jx.Encoder) { encodeToppings(e, p.Toppings) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, p.TotalPrice()) })
	})
}

func encodeToppings(e *jx.Encoder, toppings []menu.Topping) {
	e.Arr(func(e *jx.Encoder) {
		for _, t := range toppings {
			encodePriced(e, t.ID, t.Description, t.Price)
		}
	})
}

func encodePriced(e *jx.Encoder, id int64, description string, price decimal.Decimal) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(id) })
		e.Field("description", func(e *jx.Encoder) { e.Str(description) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, price) })
	})
}

// encodeMoney writes amounts as strings with two decimal places.
func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}
