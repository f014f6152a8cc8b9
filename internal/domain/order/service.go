package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/pizzeria/internal/domain/menu"
)

// LineRequest is one requested pizza. Pizza and Size are required,
// ExtraToppings may be empty.
type LineRequest struct {
	Pizza         *menu.Pizza
	Size          *menu.Size
	ExtraToppings []menu.Topping
}

// Service composes orders and their line items atomically.
type Service struct {
	store   Store
	address string
	clock   clockwork.Clock
	window  Window

	tracer trace.Tracer
	placed metric.Int64Counter
	value  metric.Float64Histogram

	err error
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to stamp CreatedAt.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithWindow sets the daily acceptance window used by InTime.
func WithWindow(w Window) Option {
	return func(s *Service) { s.window = w }
}

// WithTracerProvider enables spans for service calls.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("pizzeria/order") }
}

// WithMeterProvider enables the placed-orders counter and order value histogram.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		meter := mp.Meter("pizzeria/order")
		placed, err := meter.Int64Counter("orders.placed",
			metric.WithDescription("Number of composed orders"),
		)
		if err != nil {
			s.err = errors.Wrap(err, "orders.placed counter")
			return
		}
		value, err := meter.Float64Histogram("orders.value",
			metric.WithDescription("Aggregate price of composed orders"),
		)
		if err != nil {
			s.err = errors.Wrap(err, "orders.value histogram")
			return
		}
		s.placed, s.value = placed, value
	}
}

// NewService creates a Service that delivers to address. It fails when an
// option cannot be applied, e.g. the meter provider rejects an instrument.
func NewService(store Store, address string, opts ...Option) (*Service, error) {
	s := &Service{
		store:   store,
		address: address,
		clock:   clockwork.NewRealClock(),
		window:  DefaultWindow,
		tracer:  tracenoop.NewTracerProvider().Tracer("pizzeria/order"),
		placed:  metricnoop.Int64Counter{},
		value:   metricnoop.Float64Histogram{},
	}
	for _, o := range opts {
		o(s)
		if s.err != nil {
			return nil, s.err
		}
	}
	return s, nil
}

// WithAddress returns a copy of the service bound to another address.
func (s *Service) WithAddress(address string) *Service {
	c := *s
	c.address = address
	return &c
}

// Address returns the configured destination address.
func (s *Service) Address() string {
	return s.address
}

// InTime reports whether o was created inside the service window.
func (s *Service) InTime(o *Order) bool {
	return o.InTime(s.window)
}

// OrderPizza validates the requested lines and then, in one transaction,
// creates the order, each line item in request order, their extra toppings,
// and finally the aggregate price of the stored line items. Only ids of the
// requested menu entries are used. On any error nothing is persisted.
func (s *Service) OrderPizza(ctx context.Context, lines []LineRequest, notes string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.OrderPizza",
		trace.WithAttributes(attribute.Int("order.lines", len(lines))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if err := validate(lines); err != nil {
		return nil, err
	}

	o := &Order{
		Notes:     notes,
		Address:   s.address,
		Status:    StatusNew,
		CreatedAt: s.clock.Now(),
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		for i, l := range lines {
			li := LineItem{
				Pizza: *l.Pizza,
				Size:  *l.Size,
			}
			if err := tx.CreateLineItem(ctx, o.ID, &li); err != nil {
				return errors.Wrapf(err, "create line item %d", i)
			}

			if len(l.ExtraToppings) > 0 {
				ids := make([]int64, len(l.ExtraToppings))
				for j, t := range l.ExtraToppings {
					ids[j] = t.ID
				}
				if err := tx.SetExtraToppings(ctx, li.ID, ids); err != nil {
					return errors.Wrapf(err, "set extra toppings of line item %d", i)
				}
			}
		}

		// The price is computed from the rows as stored, not from the request.
		stored, err := tx.GetOrder(ctx, o.ID)
		if err != nil {
			return errors.Wrap(err, "read composed order")
		}
		stored.Price = stored.TotalPrice()
		if err := tx.SetPrice(ctx, stored.ID, stored.Price); err != nil {
			return errors.Wrap(err, "set order price")
		}
		o = stored
		return nil
	})
	if err != nil {
		return nil, persistence("order pizza", err)
	}

	s.placed.Add(ctx, 1)
	s.value.Record(ctx, o.Price.InexactFloat64())
	span.SetAttributes(attribute.Int64("order.id", o.ID))

	zctx.From(ctx).Info("Order placed",
		zap.Int64("order_id", o.ID),
		zap.Int("line_items", len(o.LineItems)),
		zap.Stringer("price", o.Price),
		zap.Bool("in_time", s.InTime(o)),
	)

	return o, nil
}

// validate checks the whole request before anything is written.
func validate(lines []LineRequest) error {
	if len(lines) == 0 {
		return &InvalidArgumentError{Line: -1, Reason: ReasonNoLineItems}
	}
	for i, l := range lines {
		if l.Pizza == nil {
			return &InvalidArgumentError{Line: i, Reason: ReasonMissingPizza}
		}
		if l.Size == nil {
			return &InvalidArgumentError{Line: i, Reason: ReasonMissingSize}
		}
	}
	return nil
}

// UpdateNotes overwrites the notes of an order with the service address.
//
// Existing clients rely on the address landing in the notes field. Use
// SetNotes to write real notes.
func (s *Service) UpdateNotes(ctx context.Context, orderID int64) (*Order, error) {
	return s.SetNotes(ctx, orderID, s.address)
}

// SetNotes overwrites the notes of an existing order.
func (s *Service) SetNotes(ctx context.Context, orderID int64, notes string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.SetNotes",
		trace.WithAttributes(attribute.Int64("order.id", orderID)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	var o *Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.SetNotes(ctx, orderID, notes); err != nil {
			return err
		}
		var err error
		o, err = tx.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, persistence("update notes", err)
	}
	return o, nil
}

// Get returns a committed order by id.
func (s *Service) Get(ctx context.Context, orderID int64) (*Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, persistence("get order", err)
	}
	return o, nil
}
