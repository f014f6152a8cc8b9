package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pizzeria/internal/domain/menu"
)

const (
	listPizzasSQL = `SELECT id, name, description, base_price FROM pizzas ORDER BY id`

	getPizzasByIDsSQL = `SELECT id, name, description, base_price FROM pizzas WHERE id = ANY($1)`

	getPizzaToppingsSQL = `SELECT pt.pizza_id, t.id, t.description, t.price
		FROM pizza_toppings pt JOIN toppings t ON t.id = pt.topping_id
		WHERE pt.pizza_id = ANY($1)
		ORDER BY pt.pizza_id, pt.position`

	listSizesSQL = `SELECT id, description, price FROM sizes ORDER BY id`

	getSizeByIDSQL = `SELECT id, description, price FROM sizes WHERE id = $1`

	listToppingsSQL = `SELECT id, description, price FROM toppings ORDER BY id`

	getToppingsByIDsSQL = `SELECT id, description, price FROM toppings WHERE id = ANY($1)`

	upsertToppingSQL = `INSERT INTO toppings (description, price) VALUES ($1, $2)
		ON CONFLICT (description) DO UPDATE SET price = EXCLUDED.price
		RETURNING id`

	upsertSizeSQL = `INSERT INTO sizes (description, price) VALUES ($1, $2)
		ON CONFLICT (description) DO UPDATE SET price = EXCLUDED.price
		RETURNING id`

	upsertPizzaSQL = `INSERT INTO pizzas (name, description, base_price) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, base_price = EXCLUDED.base_price
		RETURNING id`

	deletePizzaToppingsSQL = `DELETE FROM pizza_toppings WHERE pizza_id = $1`

	insertPizzaToppingsSQL = `INSERT INTO pizza_toppings (pizza_id, position, topping_id)
		SELECT $1::bigint, t.ord - 1, t.id FROM unnest($2::bigint[]) WITH ORDINALITY AS t(id, ord)`
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// ListPizzas returns all pizzas with their default toppings ordered by id.
func (r *MenuRepository) ListPizzas(ctx context.Context) ([]menu.Pizza, error) {
	rows, err := r.pool.Query(ctx, listPizzasSQL)
	if err != nil {
		return nil, fmt.Errorf("listing pizzas: %w", err)
	}
	pizzas, err := pgx.CollectRows(rows, scanPizza)
	if err != nil {
		return nil, fmt.Errorf("listing pizzas: %w", err)
	}
	if err := attachToppings(ctx, r.pool, pizzas); err != nil {
		return nil, err
	}
	return pizzas, nil
}

// GetPizza returns a single pizza with its default toppings.
func (r *MenuRepository) GetPizza(ctx context.Context, id int64) (*menu.Pizza, error) {
	byID, err := loadPizzas(ctx, r.pool, []int64{id})
	if err != nil {
		return nil, err
	}
	p, ok := byID[id]
	if !ok {
		return nil, errors.Wrapf(menu.ErrNotFound, "pizza %d", id)
	}
	return &p, nil
}

// ListSizes returns all sizes ordered by id.
func (r *MenuRepository) ListSizes(ctx context.Context) ([]menu.Size, error) {
	rows, err := r.pool.Query(ctx, listSizesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing sizes: %w", err)
	}
	return pgx.CollectRows(rows, scanSize)
}

// GetSize returns a single size by its identifier.
func (r *MenuRepository) GetSize(ctx context.Context, id int64) (*menu.Size, error) {
	rows, err := r.pool.Query(ctx, getSizeByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting size %d: %w", id, err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanSize)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(menu.ErrNotFound, "size %d", id)
		}
		return nil, fmt.Errorf("getting size %d: %w", id, err)
	}
	return &s, nil
}

// ListToppings returns all toppings ordered by id.
func (r *MenuRepository) ListToppings(ctx context.Context) ([]menu.Topping, error) {
	rows, err := r.pool.Query(ctx, listToppingsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing toppings: %w", err)
	}
	return pgx.CollectRows(rows, scanTopping)
}

// GetToppings returns toppings in the order of ids, repeating duplicates.
func (r *MenuRepository) GetToppings(ctx context.Context, ids []int64) ([]menu.Topping, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, getToppingsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting toppings by ids: %w", err)
	}
	found, err := pgx.CollectRows(rows, scanTopping)
	if err != nil {
		return nil, fmt.Errorf("getting toppings by ids: %w", err)
	}

	byID := make(map[int64]menu.Topping, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	out := make([]menu.Topping, len(ids))
	for i, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, errors.Wrapf(menu.ErrNotFound, "topping %d", id)
		}
		out[i] = t
	}
	return out, nil
}

// SaveTopping upserts a topping by description.
func (r *MenuRepository) SaveTopping(ctx context.Context, t menu.Topping) (menu.Topping, error) {
	if err := r.pool.QueryRow(ctx, upsertToppingSQL, t.Description, t.Price).Scan(&t.ID); err != nil {
		return menu.Topping{}, fmt.Errorf("upserting topping %q: %w", t.Description, err)
	}
	return t, nil
}

// SaveSize upserts a size by description.
func (r *MenuRepository) SaveSize(ctx context.Context, s menu.Size) (menu.Size, error) {
	if err := r.pool.QueryRow(ctx, upsertSizeSQL, s.Description, s.Price).Scan(&s.ID); err != nil {
		return menu.Size{}, fmt.Errorf("upserting size %q: %w", s.Description, err)
	}
	return s, nil
}

// SavePizza upserts a pizza by name and replaces its default toppings in one
// transaction. Toppings are referenced by id.
func (r *MenuRepository) SavePizza(ctx context.Context, p menu.Pizza) (menu.Pizza, error) {
	ids := make([]int64, len(p.Toppings))
	for i, t := range p.Toppings {
		ids[i] = t.ID
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, upsertPizzaSQL, p.Name, p.Description, p.BasePrice).Scan(&p.ID); err != nil {
			return fmt.Errorf("upserting pizza %q: %w", p.Name, err)
		}
		if _, err := tx.Exec(ctx, deletePizzaToppingsSQL, p.ID); err != nil {
			return fmt.Errorf("clearing toppings of pizza %q: %w", p.Name, err)
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, insertPizzaToppingsSQL, p.ID, ids); err != nil {
			return mapWriteError(err, "setting toppings of pizza %q", p.Name)
		}
		return nil
	})
	if err != nil {
		return menu.Pizza{}, err
	}
	return p, nil
}

// loadPizzas fetches the given pizzas with their toppings, keyed by id.
func loadPizzas(ctx context.Context, q querier, ids []int64) (map[int64]menu.Pizza, error) {
	rows, err := q.Query(ctx, getPizzasByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting pizzas by ids: %w", err)
	}
	pizzas, err := pgx.CollectRows(rows, scanPizza)
	if err != nil {
		return nil, fmt.Errorf("getting pizzas by ids: %w", err)
	}
	if err := attachToppings(ctx, q, pizzas); err != nil {
		return nil, err
	}

	byID := make(map[int64]menu.Pizza, len(pizzas))
	for _, p := range pizzas {
		byID[p.ID] = p
	}
	return byID, nil
}

// attachToppings fills the default toppings of pizzas in place.
func attachToppings(ctx context.Context, q querier, pizzas []menu.Pizza) error {
	if len(pizzas) == 0 {
		return nil
	}
	ids := make([]int64, len(pizzas))
	index := make(map[int64]int, len(pizzas))
	for i, p := range pizzas {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := q.Query(ctx, getPizzaToppingsSQL, ids)
	if err != nil {
		return fmt.Errorf("getting pizza toppings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pizzaID int64
			t       menu.Topping
		)
		if err := rows.Scan(&pizzaID, &t.ID, &t.Description, &t.Price); err != nil {
			return fmt.Errorf("scanning pizza topping: %w", err)
		}
		i := index[pizzaID]
		pizzas[i].Toppings = append(pizzas[i].Toppings, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("getting pizza toppings: %w", err)
	}
	return nil
}

func scanPizza(row pgx.CollectableRow) (menu.Pizza, error) {
	var (
		p    menu.Pizza
		base decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &base)
	p.BasePrice = base
	return p, err
}

func scanSize(row pgx.CollectableRow) (menu.Size, error) {
	var s menu.Size
	err := row.Scan(&s.ID, &s.Description, &s.Price)
	return s, err
}

func scanTopping(row pgx.CollectableRow) (menu.Topping, error) {
	var t menu.Topping
	err := row.Scan(&t.ID, &t.Description, &t.Price)
	return t, err
}
