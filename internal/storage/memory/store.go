// Package memory implements the menu and order stores in process memory.
//
// Entities live in an arena keyed by id and reference each other by id only:
// an order owns the ordered ids of its line items, a line item owns the ids of
// its extra toppings. Transactions run on a copy of the arena that replaces
// the committed one only when the transaction function succeeds.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pizzeria/internal/domain/menu"
	"github.com/xenking/pizzeria/internal/domain/order"
)

type pizzaRecord struct {
	ID          int64
	Name        string
	Description string
	BasePrice   decimal.Decimal
	ToppingIDs  []int64
}

type orderRecord struct {
	ID          int64
	Price       decimal.Decimal
	Notes       string
	Address     string
	Status      order.Status
	CreatedAt   time.Time
	LineItemIDs []int64
}

type lineItemRecord struct {
	ID              int64
	OrderID         int64
	PizzaID         int64
	SizeID          int64
	ExtraToppingIDs []int64
}

type arena struct {
	toppings  map[int64]menu.Topping
	sizes     map[int64]menu.Size
	pizzas    map[int64]pizzaRecord
	orders    map[int64]orderRecord
	lineItems map[int64]lineItemRecord

	lastTopping  int64
	lastSize     int64
	lastPizza    int64
	lastOrder    int64
	lastLineItem int64
}

func newArena() *arena {
	return &arena{
		toppings:  make(map[int64]menu.Topping),
		sizes:     make(map[int64]menu.Size),
		pizzas:    make(map[int64]pizzaRecord),
		orders:    make(map[int64]orderRecord),
		lineItems: make(map[int64]lineItemRecord),
	}
}

// clone copies the arena. Records holding id slices are copied on write, so
// sharing the slices between the copies is safe.
func (a *arena) clone() *arena {
	c := *a
	c.toppings = maps.Clone(a.toppings)
	c.sizes = maps.Clone(a.sizes)
	c.pizzas = maps.Clone(a.pizzas)
	c.orders = maps.Clone(a.orders)
	c.lineItems = maps.Clone(a.lineItems)
	return &c
}

func (a *arena) pizza(id int64) (menu.Pizza, error) {
	rec, ok := a.pizzas[id]
	if !ok {
		return menu.Pizza{}, errors.Wrapf(menu.ErrNotFound, "pizza %d", id)
	}
	toppings, err := a.toppingList(rec.ToppingIDs)
	if err != nil {
		return menu.Pizza{}, err
	}
	return menu.Pizza{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		BasePrice:   rec.BasePrice,
		Toppings:    toppings,
	}, nil
}

func (a *arena) size(id int64) (menu.Size, error) {
	s, ok := a.sizes[id]
	if !ok {
		return menu.Size{}, errors.Wrapf(menu.ErrNotFound, "size %d", id)
	}
	return s, nil
}

func (a *arena) toppingList(ids []int64) ([]menu.Topping, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]menu.Topping, len(ids))
	for i, id := range ids {
		t, ok := a.toppings[id]
		if !ok {
			return nil, errors.Wrapf(menu.ErrNotFound, "topping %d", id)
		}
		out[i] = t
	}
	return out, nil
}

func (a *arena) order(id int64) (*order.Order, error) {
	rec, ok := a.orders[id]
	if !ok {
		return nil, errors.Wrapf(order.ErrNotFound, "order %d", id)
	}

	o := &order.Order{
		ID:        rec.ID,
		Price:     rec.Price,
		Notes:     rec.Notes,
		Address:   rec.Address,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
		LineItems: make([]order.LineItem, 0, len(rec.LineItemIDs)),
	}
	for _, liID := range rec.LineItemIDs {
		li := a.lineItems[liID]
		p, err := a.pizza(li.PizzaID)
		if err != nil {
			return nil, err
		}
		s, err := a.size(li.SizeID)
		if err != nil {
			return nil, err
		}
		extras, err := a.toppingList(li.ExtraToppingIDs)
		if err != nil {
			return nil, err
		}
		o.LineItems = append(o.LineItems, order.LineItem{
			ID:            li.ID,
			OrderID:       li.OrderID,
			Pizza:         p,
			Size:          s,
			ExtraToppings: extras,
		})
	}
	return o, nil
}

var (
	_ menu.Repository = (*Store)(nil)
	_ order.Store     = (*Store)(nil)
)

// Store is an in-memory menu repository and order store. It is safe for
// concurrent use; transactions are serialized.
type Store struct {
	mu sync.RWMutex
	a  *arena
}

// New returns an empty Store.
func New() *Store {
	return &Store{a: newArena()}
}

func (s *Store) read() *arena {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.a
}

// update runs fn against a copy of the arena and commits the copy when fn
// succeeds.
func (s *Store) update(fn func(a *arena) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.a.clone()
	if err := fn(staged); err != nil {
		return err
	}
	s.a = staged
	return nil
}

// InTx implements order.Store.
func (s *Store) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(a *arena) error {
		return fn(&tx{a: a})
	})
}

// GetOrder implements order.Store.
func (s *Store) GetOrder(_ context.Context, id int64) (*order.Order, error) {
	return s.read().order(id)
}

// Orders returns the number of committed orders.
func (s *Store) Orders() int {
	return len(s.read().orders)
}

// LineItems returns the number of committed line items.
func (s *Store) LineItems() int {
	return len(s.read().lineItems)
}

type tx struct {
	a *arena
}

func (t *tx) CreateOrder(ctx context.Context, o *order.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.a.lastOrder++
	o.ID = t.a.lastOrder
	t.a.orders[o.ID] = orderRecord{
		ID:        o.ID,
		Price:     o.Price,
		Notes:     o.Notes,
		Address:   o.Address,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
	}
	return nil
}

func (t *tx) CreateLineItem(ctx context.Context, orderID int64, li *order.LineItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := t.a.orders[orderID]
	if !ok {
		return errors.Wrapf(order.ErrNotFound, "order %d", orderID)
	}
	if _, ok := t.a.pizzas[li.Pizza.ID]; !ok {
		return errors.Wrapf(menu.ErrNotFound, "pizza %d", li.Pizza.ID)
	}
	if _, ok := t.a.sizes[li.Size.ID]; !ok {
		return errors.Wrapf(menu.ErrNotFound, "size %d", li.Size.ID)
	}

	t.a.lastLineItem++
	li.ID = t.a.lastLineItem
	li.OrderID = orderID
	t.a.lineItems[li.ID] = lineItemRecord{
		ID:      li.ID,
		OrderID: orderID,
		PizzaID: li.Pizza.ID,
		SizeID:  li.Size.ID,
	}

	rec.LineItemIDs = append(slices.Clip(rec.LineItemIDs), li.ID)
	t.a.orders[orderID] = rec
	return nil
}

func (t *tx) SetExtraToppings(ctx context.Context, lineItemID int64, toppingIDs []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := t.a.lineItems[lineItemID]
	if !ok {
		return errors.Errorf("line item %d not found", lineItemID)
	}
	for _, id := range toppingIDs {
		if _, ok := t.a.toppings[id]; !ok {
			return errors.Wrapf(menu.ErrNotFound, "topping %d", id)
		}
	}
	rec.ExtraToppingIDs = slices.Clone(toppingIDs)
	t.a.lineItems[lineItemID] = rec
	return nil
}

func (t *tx) SetPrice(ctx context.Context, orderID int64, price decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := t.a.orders[orderID]
	if !ok {
		return errors.Wrapf(order.ErrNotFound, "order %d", orderID)
	}
	rec.Price = price
	t.a.orders[orderID] = rec
	return nil
}

func (t *tx) SetNotes(ctx context.Context, orderID int64, notes string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := t.a.orders[orderID]
	if !ok {
		return errors.Wrapf(order.ErrNotFound, "order %d", orderID)
	}
	rec.Notes = notes
	t.a.orders[orderID] = rec
	return nil
}

func (t *tx) GetOrder(_ context.Context, id int64) (*order.Order, error) {
	return t.a.order(id)
}
