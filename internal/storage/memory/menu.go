package memory

import (
	"context"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/pizzeria/internal/domain/menu"
)

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ListPizzas returns all pizzas ordered by id.
func (s *Store) ListPizzas(_ context.Context) ([]menu.Pizza, error) {
	a := s.read()
	out := make([]menu.Pizza, 0, len(a.pizzas))
	for _, id := range sortedIDs(a.pizzas) {
		p, err := a.pizza(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// GetPizza returns a pizza with its default toppings.
func (s *Store) GetPizza(_ context.Context, id int64) (*menu.Pizza, error) {
	p, err := s.read().pizza(id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListSizes returns all sizes ordered by id.
func (s *Store) ListSizes(_ context.Context) ([]menu.Size, error) {
	a := s.read()
	out := make([]menu.Size, 0, len(a.sizes))
	for _, id := range sortedIDs(a.sizes) {
		out = append(out, a.sizes[id])
	}
	return out, nil
}

// GetSize returns a size by id.
func (s *Store) GetSize(_ context.Context, id int64) (*menu.Size, error) {
	sz, err := s.read().size(id)
	if err != nil {
		return nil, err
	}
	return &sz, nil
}

// ListToppings returns all toppings ordered by id.
func (s *Store) ListToppings(_ context.Context) ([]menu.Topping, error) {
	a := s.read()
	out := make([]menu.Topping, 0, len(a.toppings))
	for _, id := range sortedIDs(a.toppings) {
		out = append(out, a.toppings[id])
	}
	return out, nil
}

// GetToppings returns toppings in the order of ids.
func (s *Store) GetToppings(_ context.Context, ids []int64) ([]menu.Topping, error) {
	return s.read().toppingList(ids)
}

// SaveTopping inserts t, or replaces the topping with the same description.
// The id of t is ignored.
func (s *Store) SaveTopping(_ context.Context, t menu.Topping) (menu.Topping, error) {
	t.ID = 0
	err := s.update(func(a *arena) error {
		for _, existing := range a.toppings {
			if existing.Description == t.Description {
				t.ID = existing.ID
			}
		}
		if t.ID == 0 {
			a.lastTopping++
			t.ID = a.lastTopping
		}
		a.toppings[t.ID] = t
		return nil
	})
	return t, err
}

// SaveSize inserts sz, or replaces the size with the same description.
func (s *Store) SaveSize(_ context.Context, sz menu.Size) (menu.Size, error) {
	sz.ID = 0
	err := s.update(func(a *arena) error {
		for _, existing := range a.sizes {
			if existing.Description == sz.Description {
				sz.ID = existing.ID
			}
		}
		if sz.ID == 0 {
			a.lastSize++
			sz.ID = a.lastSize
		}
		a.sizes[sz.ID] = sz
		return nil
	})
	return sz, err
}

// SavePizza inserts p, or replaces the pizza with the same name. Default
// toppings are referenced by id and must already exist.
func (s *Store) SavePizza(_ context.Context, p menu.Pizza) (menu.Pizza, error) {
	p.ID = 0
	p.Toppings = slices.Clone(p.Toppings)
	err := s.update(func(a *arena) error {
		ids := make([]int64, len(p.Toppings))
		for i, t := range p.Toppings {
			stored, ok := a.toppings[t.ID]
			if !ok {
				return errors.Wrapf(menu.ErrNotFound, "topping %d", t.ID)
			}
			ids[i] = t.ID
			p.Toppings[i] = stored
		}
		for _, existing := range a.pizzas {
			if existing.Name == p.Name {
				p.ID = existing.ID
			}
		}
		if p.ID == 0 {
			a.lastPizza++
			p.ID = a.lastPizza
		}
		a.pizzas[p.ID] = pizzaRecord{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			BasePrice:   p.BasePrice,
			ToppingIDs:  ids,
		}
		return nil
	})
	if err != nil {
		return menu.Pizza{}, err
	}
	return p, nil
}
