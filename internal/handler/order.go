package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pizzeria/internal/domain/order"
)

type itemReq struct {
	PizzaID         int64
	SizeID          int64
	ExtraToppingIDs []int64
}

type orderReq struct {
	Address string
	Notes   string
	Items   []itemReq
}

func decodeOrderReq(r io.Reader) (*orderReq, error) {
	var req orderReq
	d := jx.Decode(r, 1024)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "address":
			return decodeOptStr(d, &req.Address)
		case "notes":
			return decodeOptStr(d, &req.Notes)
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItemReq(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, badRequest("decode order: %v", err)
	}
	return &req, nil
}

func decodeItemReq(d *jx.Decoder) (itemReq, error) {
	var item itemReq
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "pizzaId":
			item.PizzaID, err = decodeOptID(d)
		case "sizeId":
			item.SizeID, err = decodeOptID(d)
		case "extraToppingIds":
			err = d.Arr(func(d *jx.Decoder) error {
				id, err := d.Int64()
				if err != nil {
					return err
				}
				item.ExtraToppingIDs = append(item.ExtraToppingIDs, id)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return item, err
}

// decodeOptID reads an id, treating null as absent.
func decodeOptID(d *jx.Decoder) (int64, error) {
	if d.Next() == jx.Null {
		return 0, d.Null()
	}
	return d.Int64()
}

func decodeOptStr(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// resolve looks up the menu entries referenced by a request line. Absent
// pizza or size ids stay nil so that the service reports which line is
// incomplete.
func (h *Handler) resolve(ctx context.Context, items []itemReq) ([]order.LineRequest, error) {
	lines := make([]order.LineRequest, len(items))
	for i, item := range items {
		if item.PizzaID != 0 {
			p, err := h.menu.GetPizza(ctx, item.PizzaID)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", i)
			}
			lines[i].Pizza = p
		}
		if item.SizeID != 0 {
			s, err := h.menu.GetSize(ctx, item.SizeID)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", i)
			}
			lines[i].Size = s
		}
		if len(item.ExtraToppingIDs) > 0 {
			extras, err := h.menu.GetToppings(ctx, item.ExtraToppingIDs)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", i)
			}
			lines[i].ExtraToppings = extras
		}
	}
	return lines, nil
}

// PlaceOrder composes a new order from the request body.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeOrderReq(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	lines, err := h.resolve(ctx, req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	svc := h.orders
	if req.Address != "" {
		svc = svc.WithAddress(req.Address)
	}
	o, err := svc.OrderPizza(ctx, lines, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOrder(w, http.StatusCreated, o)
}

// GetOrder returns a stored order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOrder(w, http.StatusOK, o)
}

// UpdateNotes replaces the notes of a stored order.
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var (
		notes    string
		hasNotes bool
	)
	d := jx.Decode(http.MaxBytesReader(w, r.Body, maxBodySize), 256)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "notes" {
			return d.Skip()
		}
		hasNotes = true
		return decodeOptStr(d, &notes)
	})
	if err != nil {
		h.writeError(w, r, badRequest("decode notes: %v", err))
		return
	}
	if !hasNotes {
		h.writeError(w, r, badRequest("notes is required"))
		return
	}

	o, err := h.orders.SetNotes(r.Context(), id, notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOrder(w, http.StatusOK, o)
}

func (h *Handler) writeOrder(w http.ResponseWriter, code int, o *order.Order) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, o.Price) })
		e.Field("notes", func(e *jx.Encoder) { e.Str(o.Notes) })
		e.Field("address", func(e *jx.Encoder) { e.Str(o.Address) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status.String()) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(timeLayout)) })
		e.Field("inTime", func(e *jx.Encoder) { e.Bool(h.orders.InTime(o)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range o.LineItems {
					encodeLineItem(e, &o.LineItems[i])
				}
			})
		})
	})
	writeJSON(w, code, &e)
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func encodeLineItem(e *jx.Encoder, li *order.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(li.ID) })
		e.Field("pizza", func(e *jx.Encoder) { encodePizza(e, &li.Pizza) })
		e.Field("size", func(e *jx.Encoder) {
			encodePriced(e, li.Size.ID, li.Size.Description, li.Size.Price)
		})
		e.Field("extraToppings", func(e *jx.Encoder) { encodeToppings(e, li.ExtraToppings) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, li.TotalPrice()) })
	})
}
