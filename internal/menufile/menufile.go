// Package menufile loads a menu fixture from YAML and writes it to a menu
// store.
//
// A fixture looks like:
//
//	toppings:
//	  - description: Cheese
//	    price: "5.00"
//	sizes:
//	  - description: Medium
//	    price: "21.50"
//	pizzas:
//	  - name: Pepperoni
//	    toppings: [Cheese, Pepperoni]
package menufile

import (
	"context"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/pizzeria/internal/domain/menu"
)

// File is the decoded fixture.
type File struct {
	Toppings []Item  `yaml:"toppings"`
	Sizes    []Item  `yaml:"sizes"`
	Pizzas   []Pizza `yaml:"pizzas"`
}

// Item is a priced topping or size.
type Item struct {
	Description string          `yaml:"description"`
	Price       decimal.Decimal `yaml:"price"`
}

// Pizza references its default toppings by description.
type Pizza struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	BasePrice   decimal.Decimal `yaml:"base_price"`
	Toppings    []string        `yaml:"toppings"`
}

// Writer stores menu entries, assigning identifiers.
type Writer interface {
	SaveTopping(ctx context.Context, t menu.Topping) (menu.Topping, error)
	SaveSize(ctx context.Context, s menu.Size) (menu.Size, error)
	SavePizza(ctx context.Context, p menu.Pizza) (menu.Pizza, error)
}

// Decode reads a fixture from r.
func Decode(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode menu")
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads a fixture from the named file.
func Load(name string) (*File, error) {
	fh, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open menu")
	}
	defer func() { _ = fh.Close() }()
	return Decode(fh)
}

func (f *File) validate() error {
	known := make(map[string]struct{}, len(f.Toppings))
	for _, t := range f.Toppings {
		if t.Description == "" {
			return errors.New("topping without description")
		}
		if t.Price.IsNegative() {
			return errors.Errorf("topping %q: negative price", t.Description)
		}
		known[t.Description] = struct{}{}
	}
	for _, s := range f.Sizes {
		if s.Description == "" {
			return errors.New("size without description")
		}
		if s.Price.IsNegative() {
			return errors.Errorf("size %q: negative price", s.Description)
		}
	}
	for _, p := range f.Pizzas {
		if p.Name == "" {
			return errors.New("pizza without name")
		}
		if p.BasePrice.IsNegative() {
			return errors.Errorf("pizza %q: negative base price", p.Name)
		}
		for _, name := range p.Toppings {
			if _, ok := known[name]; !ok {
				return errors.Errorf("pizza %q: unknown topping %q", p.Name, name)
			}
		}
	}
	return nil
}

// Stats counts what Apply wrote.
type Stats struct {
	Toppings int
	Sizes    int
	Pizzas   int
}

// Apply writes toppings, then sizes, then pizzas, resolving topping names to
// the identifiers assigned by w.
func (f *File) Apply(ctx context.Context, w Writer) (Stats, error) {
	var stats Stats
	ids := make(map[string]menu.Topping, len(f.Toppings))
	for _, t := range f.Toppings {
		saved, err := w.SaveTopping(ctx, menu.Topping{Description: t.Description, Price: t.Price})
		if err != nil {
			return stats, errors.Wrapf(err, "save topping %q", t.Description)
		}
		ids[t.Description] = saved
		stats.Toppings++
	}
	for _, s := range f.Sizes {
		if _, err := w.SaveSize(ctx, menu.Size{Description: s.Description, Price: s.Price}); err != nil {
			return stats, errors.Wrapf(err, "save size %q", s.Description)
		}
		stats.Sizes++
	}
	for _, p := range f.Pizzas {
		toppings := make([]menu.Topping, len(p.Toppings))
		for i, name := range p.Toppings {
			toppings[i] = ids[name]
		}
		_, err := w.SavePizza(ctx, menu.Pizza{
			Name:        p.Name,
			Description: p.Description,
			BasePrice:   p.BasePrice,
			Toppings:    toppings,
		})
		if err != nil {
			return stats, errors.Wrapf(err, "save pizza %q", p.Name)
		}
		stats.Pizzas++
	}
	return stats, nil
}
