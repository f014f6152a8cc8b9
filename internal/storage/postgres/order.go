package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pizzeria/internal/domain/menu"
	"github.com/xenking/pizzeria/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (price, notes, address, status, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	createLineItemSQL = `INSERT INTO order_line_items (order_id, position, pizza_id, size_id)
		SELECT $1::bigint, COALESCE(MAX(position) + 1, 0), $2::bigint, $3::bigint
		FROM order_line_items WHERE order_id = $1::bigint
		RETURNING id`

	deleteExtraToppingsSQL = `DELETE FROM line_item_extra_toppings WHERE line_item_id = $1`

	insertExtraToppingsSQL = `INSERT INTO line_item_extra_toppings (line_item_id, position, topping_id)
		SELECT $1::bigint, t.ord - 1, t.id FROM unnest($2::bigint[]) WITH ORDINALITY AS t(id, ord)`

	setOrderPriceSQL = `UPDATE orders SET price = $2 WHERE id = $1`

	setOrderNotesSQL = `UPDATE orders SET notes = $2 WHERE id = $1`

	getOrderSQL = `SELECT id, price, notes, address, status, created_at FROM orders WHERE id = $1`

	getLineItemsSQL = `SELECT li.id, li.order_id, li.pizza_id, s.id, s.description, s.price
		FROM order_line_items li JOIN sizes s ON s.id = li.size_id
		WHERE li.order_id = $1
		ORDER BY li.position`

	getExtraToppingsSQL = `SELECT e.line_item_id, t.id, t.description, t.price
		FROM line_item_extra_toppings e
		JOIN order_line_items li ON li.id = e.line_item_id
		JOIN toppings t ON t.id = e.topping_id
		WHERE li.order_id = $1
		ORDER BY e.line_item_id, e.position`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// InTx runs fn in a read committed transaction. The transaction is rolled
// back when fn returns an error and committed otherwise.
func (s *OrderStore) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&orderTx{q: tx})
	})
}

// GetOrder reads an order and its line items from one snapshot.
func (s *OrderStore) GetOrder(ctx context.Context, id int64) (*order.Order, error) {
	var o *order.Order
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		var err error
		o, err = getOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

type orderTx struct {
	q querier
}

func (t *orderTx) CreateOrder(ctx context.Context, o *order.Order) error {
	err := t.q.QueryRow(ctx, createOrderSQL,
		o.Price, o.Notes, o.Address, int16(o.Status), o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}
	return nil
}

func (t *orderTx) CreateLineItem(ctx context.Context, orderID int64, li *order.LineItem) error {
	err := t.q.QueryRow(ctx, createLineItemSQL, orderID, li.Pizza.ID, li.Size.ID).Scan(&li.ID)
	if err != nil {
		return mapWriteError(err, "creating line item for order %d", orderID)
	}
	li.OrderID = orderID
	return nil
}

func (t *orderTx) SetExtraToppings(ctx context.Context, lineItemID int64, toppingIDs []int64) error {
	if _, err := t.q.Exec(ctx, deleteExtraToppingsSQL, lineItemID); err != nil {
		return fmt.Errorf("clearing extra toppings of line item %d: %w", lineItemID, err)
	}
	if len(toppingIDs) == 0 {
		return nil
	}
	if _, err := t.q.Exec(ctx, insertExtraToppingsSQL, lineItemID, toppingIDs); err != nil {
		return mapWriteError(err, "setting extra toppings of line item %d", lineItemID)
	}
	return nil
}

func (t *orderTx) SetPrice(ctx context.Context, orderID int64, price decimal.Decimal) error {
	tag, err := t.q.Exec(ctx, setOrderPriceSQL, orderID, price)
	if err != nil {
		return fmt.Errorf("setting price of order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(order.ErrNotFound, "order %d", orderID)
	}
	return nil
}

func (t *orderTx) SetNotes(ctx context.Context, orderID int64, notes string) error {
	tag, err := t.q.Exec(ctx, setOrderNotesSQL, orderID, notes)
	if err != nil {
		return fmt.Errorf("setting notes of order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(order.ErrNotFound, "order %d", orderID)
	}
	return nil
}

func (t *orderTx) GetOrder(ctx context.Context, id int64) (*order.Order, error) {
	return getOrder(ctx, t.q, id)
}

type lineItemRow struct {
	item    order.LineItem
	pizzaID int64
}

func getOrder(ctx context.Context, q querier, id int64) (*order.Order, error) {
	var (
		o         order.Order
		status    int16
		createdAt time.Time
	)
	err := q.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.Price, &o.Notes, &o.Address, &status, &createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(order.ErrNotFound, "order %d", id)
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o.Status = order.Status(status)
	o.CreatedAt = createdAt

	rows, err := q.Query(ctx, getLineItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting line items of order %d: %w", id, err)
	}
	items, err := pgx.CollectRows(rows, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("getting line items of order %d: %w", id, err)
	}

	pizzaIDs := make([]int64, 0, len(items))
	index := make(map[int64]int, len(items))
	for i, it := range items {
		pizzaIDs = append(pizzaIDs, it.pizzaID)
		index[it.item.ID] = i
	}
	pizzas, err := loadPizzas(ctx, q, pizzaIDs)
	if err != nil {
		return nil, err
	}

	if err := attachExtras(ctx, q, id, items, index); err != nil {
		return nil, err
	}

	o.LineItems = make([]order.LineItem, len(items))
	for i, it := range items {
		p, ok := pizzas[it.pizzaID]
		if !ok {
			return nil, errors.Wrapf(menu.ErrNotFound, "pizza %d", it.pizzaID)
		}
		it.item.Pizza = p
		o.LineItems[i] = it.item
	}
	return &o, nil
}

func attachExtras(ctx context.Context, q querier, orderID int64, items []lineItemRow, index map[int64]int) error {
	rows, err := q.Query(ctx, getExtraToppingsSQL, orderID)
	if err != nil {
		return fmt.Errorf("getting extra toppings of order %d: %w", orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			lineItemID int64
			t          menu.Topping
		)
		if err := rows.Scan(&lineItemID, &t.ID, &t.Description, &t.Price); err != nil {
			return fmt.Errorf("scanning extra topping: %w", err)
		}
		i := index[lineItemID]
		items[i].item.ExtraToppings = append(items[i].item.ExtraToppings, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("getting extra toppings of order %d: %w", orderID, err)
	}
	return nil
}

func scanLineItem(row pgx.CollectableRow) (lineItemRow, error) {
	var r lineItemRow
	err := row.Scan(
		&r.item.ID, &r.item.OrderID, &r.pizzaID,
		&r.item.Size.ID, &r.item.Size.Description, &r.item.Size.Price,
	)
	return r, err
}
