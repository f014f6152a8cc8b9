package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pizzeria/internal/domain/menu"
)

// Status is the lifecycle state of an order. Only StatusNew is assigned here.
type Status int

const (
	// StatusNew is the status of a freshly composed order.
	StatusNew Status = 0
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	default:
		return "unknown"
	}
}

// Order is a customer order with its line items in creation order.
type Order struct {
	ID      int64
	Price   decimal.Decimal
	Notes   string
	Address string
	Status  Status
	// CreatedAt is taken from the service clock when the order is composed.
	CreatedAt time.Time
	LineItems []LineItem
}

// LineItem is one pizza of an order: a pizza, a size and optional extras.
type LineItem struct {
	ID            int64
	OrderID       int64
	Pizza         menu.Pizza
	Size          menu.Size
	ExtraToppings []menu.Topping
}

// TotalPrice returns pizza total + size price + extra toppings.
// Extras are counted even when the pizza already has the same topping.
func (li *LineItem) TotalPrice() decimal.Decimal {
	return li.Pizza.TotalPrice().
		Add(li.Size.Price).
		Add(menu.SumToppings(li.ExtraToppings))
}

// TotalPrice sums the totals of all line items.
func (o *Order) TotalPrice() decimal.Decimal {
	sum := decimal.Zero
	for i := range o.LineItems {
		sum = sum.Add(o.LineItems[i].TotalPrice())
	}
	return sum
}

// First returns the first created line item.
func (o *Order) First() (LineItem, bool) {
	if len(o.LineItems) == 0 {
		return LineItem{}, false
	}
	return o.LineItems[0], true
}

// Last returns the most recently created line item.
func (o *Order) Last() (LineItem, bool) {
	if len(o.LineItems) == 0 {
		return LineItem{}, false
	}
	return o.LineItems[len(o.LineItems)-1], true
}

// InTime reports whether the order was created inside the daily window.
func (o *Order) InTime(w Window) bool {
	return w.Contains(o.CreatedAt)
}

// Window is the daily acceptance window: everything from midnight up to Cutoff.
type Window struct {
	// Cutoff is the offset from local midnight.
	Cutoff time.Duration
	// Inclusive accepts an order created exactly at Cutoff.
	Inclusive bool
	// Location is the clock context the time of day is read in.
	// Nil means the timestamp's own location.
	Location *time.Location
}

// DefaultWindow accepts orders up to and including 19:30:00 UTC.
var DefaultWindow = Window{
	Cutoff:    19*time.Hour + 30*time.Minute,
	Inclusive: true,
	Location:  time.UTC,
}

// Contains reports whether the time of day of t is within the window.
func (w Window) Contains(t time.Time) bool {
	if w.Location != nil {
		t = t.In(w.Location)
	}
	h, m, s := t.Clock()
	tod := time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
	if w.Inclusive {
		return tod <= w.Cutoff
	}
	return tod < w.Cutoff
}

// ParseCutoff parses a time of day in "15:04:05" or "15:04" form into an
// offset from midnight.
func ParseCutoff(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		h, m, sec := t.Clock()
		return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
	}
	return 0, errors.Errorf("invalid cutoff %q: want HH:MM or HH:MM:SS", s)
}

// Store persists orders. Every write goes through a transaction.
type Store interface {
	// InTx runs fn in one transaction. When fn returns an error nothing it
	// wrote is kept.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// GetOrder returns a committed order with line items in creation order.
	GetOrder(ctx context.Context, id int64) (*Order, error)
}

// Tx is the set of writes available inside a transaction.
type Tx interface {
	// CreateOrder inserts the order row and sets o.ID.
	CreateOrder(ctx context.Context, o *Order) error
	// CreateLineItem appends a line item to the order and sets li.ID and li.OrderID.
	CreateLineItem(ctx context.Context, orderID int64, li *LineItem) error
	// SetExtraToppings replaces the extra toppings of a line item.
	SetExtraToppings(ctx context.Context, lineItemID int64, toppingIDs []int64) error
	SetPrice(ctx context.Context, orderID int64, price decimal.Decimal) error
	SetNotes(ctx context.Context, orderID int64, notes string) error
	GetOrder(ctx context.Context, id int64) (*Order, error)
}
