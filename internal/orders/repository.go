package orders

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/caicara-stock/internal/database"
	"github.com/joao-fontenele/caicara-stock/internal/domain"
	"github.com/joao-fontenele/caicara-stock/internal/listing"
	"github.com/joao-fontenele/caicara-stock/internal/outbox"
)

const (
	orderColumns = `id, order_date, total_price, status, created_at, updated_at`
	itemColumns  = `id, order_id, product_id, quantity, price, created_at, updated_at`
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.OrderDate, &o.TotalPrice, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanItem(row rowScanner) (domain.OrderItem, error) {
	var item domain.OrderItem
	err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func orderID(o domain.Order) int64 {
	return o.ID
}

// List returns orders filtered by an inclusive order_date range. All modes
// order by id in the requested direction; a cursor of 0 starts from the
// first row in that direction.
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter, params listing.Params) (listing.Result[domain.Order], error) {
	var w listing.Where

	if filter.DateFrom != nil {
		w.And("order_date >= " + w.Arg(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		w.And("order_date <= " + w.Arg(*filter.DateTo))
	}

	direction, cursorOp := "ASC", ">"
	if filter.Descending {
		direction, cursorOp = "DESC", "<"
	}

	var (
		result listing.Result[domain.Order]
		err    error
	)

	switch params.Mode() {
	case listing.ModeCursor:
		if *params.Cursor > 0 {
			w.And("id " + cursorOp + " " + w.Arg(*params.Cursor))
		}
		limit := w.Arg(params.Limit + 1)

		var orders []domain.Order
		orders, err = r.queryOrders(ctx, `
			SELECT `+orderColumns+`
			FROM orders
			`+w.SQL()+`
			ORDER BY id `+direction+`
			LIMIT `+limit, w.Args()...)
		if err != nil {
			return result, err
		}
		result = listing.CursorResult(orders, params.Limit, orderID)

	case listing.ModePage:
		var total int64
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+w.SQL(), w.Args()...).Scan(&total)
		if err != nil {
			return result, err
		}

		limit := w.Arg(params.Limit)
		offset := w.Arg(params.Offset())

		var orders []domain.Order
		orders, err = r.queryOrders(ctx, `
			SELECT `+orderColumns+`
			FROM orders
			`+w.SQL()+`
			ORDER BY id `+direction+`
			LIMIT `+limit+` OFFSET `+offset, w.Args()...)
		if err != nil {
			return result, err
		}
		result = listing.PageResult(orders, *params.Page, params.Limit, total)

	default:
		var orders []domain.Order
		orders, err = r.queryOrders(ctx, `
			SELECT `+orderColumns+`
			FROM orders
			`+w.SQL()+`
			ORDER BY id `+direction, w.Args()...)
		if err != nil {
			return result, err
		}
		result = listing.FullResult(orders)
	}

	if err := r.attachItems(ctx, result.Items); err != nil {
		return result, err
	}

	return result, nil
}

func (r *OrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// attachItems loads the items of every order in one query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[int64]int, len(orders))
	ids := make([]int64, 0, len(orders))
	for i := range orders {
		orders[i].Items = []domain.OrderItem{}
		index[orders[i].ID] = i
		ids = append(ids, orders[i].ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.created_at, oi.updated_at,
		       p.name, p.description, p.price, p.quantity
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			item        domain.OrderItem
			product     domain.ProductSnapshot
			description sql.NullString
		)

		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.CreatedAt, &item.UpdatedAt,
			&product.Name, &description, &product.Price, &product.Quantity,
		)
		if err != nil {
			return err
		}

		if description.Valid {
			product.Description = &description.String
		}
		item.Product = &product

		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}

	return rows.Err()
}

// Create inserts an order and its items in one transaction. The total is
// derived from the items.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	order.TotalPrice = domain.SumLines(order.Items)

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO orders (order_date, total_price, status)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at
		`, order.OrderDate, order.TotalPrice, order.Status).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return err
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID

			err = tx.QueryRowContext(ctx, `
				INSERT INTO order_items (order_id, product_id, quantity, price)
				VALUES ($1, $2, $3, $4)
				RETURNING id, created_at, updated_at
			`, item.OrderID, item.ProductID, item.Quantity, item.Price).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("order", id)
		}
		return nil, err
	}

	orders := []domain.Order{order}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

// lockOrder reads an order row and holds it FOR UPDATE until the
// transaction ends. Every item mutation and status change goes through it.
func lockOrder(ctx context.Context, tx *sql.Tx, id int64) (domain.Order, error) {
	order, err := scanOrder(tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order, domain.NewNotFoundError("order", id)
		}
		return order, err
	}
	return order, nil
}

// Update applies a date and/or status change under the order row lock.
func (r *OrderRepository) Update(ctx context.Context, id int64, patch domain.OrderPatch) (*domain.Order, error) {
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		status := order.Status
		if patch.Status != nil {
			status, err = order.Status.Transition(id, *patch.Status)
			if err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET
				order_date = COALESCE($2, order_date),
				status = $3,
				updated_at = NOW()
			WHERE id = $1
		`, id, patch.OrderDate, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// Delete removes an order and, by cascade, its items. It returns the status
// the order had.
func (r *OrderRepository) Delete(ctx context.Context, id int64) (domain.OrderStatus, error) {
	var status domain.OrderStatus

	err := r.db.QueryRowContext(ctx, `DELETE FROM orders WHERE id = $1 RETURNING status`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.NewNotFoundError("order", id)
		}
		return "", err
	}

	return status, nil
}

// AddItem snapshots the product's current price into a new line of a
// pending order.
func (r *OrderRepository) AddItem(ctx context.Context, orderID, productID int64, quantity int) (*domain.OrderItem, error) {
	var item domain.OrderItem

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := order.Status.RequireMutable(orderID); err != nil {
			return err
		}

		var (
			price    domain.Money
			disabled bool
		)
		err = tx.QueryRowContext(ctx, `
			SELECT price, is_disabled
			FROM products
			WHERE id = $1
			FOR SHARE
		`, productID).Scan(&price, &disabled)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewNotFoundError("product", productID)
			}
			return err
		}
		if disabled {
			return domain.NewInvalidStateError("product", productID, string(domain.ProductStatusDisabled), "disabled products cannot be added to orders")
		}

		item, err = scanItem(tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING `+itemColumns,
			orderID, productID, quantity, price))
		if err != nil {
			return err
		}

		return database.RecomputeOrderTotals(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}

	return &item, nil
}

func (r *OrderRepository) UpdateItem(ctx context.Context, orderID, itemID int64, quantity int) (*domain.OrderItem, error) {
	var item domain.OrderItem

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := order.Status.RequireMutable(orderID); err != nil {
			return err
		}

		item, err = scanItem(tx.QueryRowContext(ctx, `
			UPDATE order_items SET quantity = $3, updated_at = NOW()
			WHERE id = $2 AND order_id = $1
			RETURNING `+itemColumns,
			orderID, itemID, quantity))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewNotFoundError("order item", itemID)
			}
			return err
		}

		return database.RecomputeOrderTotals(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}

	return &item, nil
}

func (r *OrderRepository) RemoveItem(ctx context.Context, orderID, itemID int64) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := order.Status.RequireMutable(orderID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = $2 AND order_id = $1`, orderID, itemID)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return domain.NewNotFoundError("order item", itemID)
		}

		return database.RecomputeOrderTotals(ctx, tx, orderID)
	})
}

// Complete restocks every product on the order by the item quantities,
// marks the order completed and enqueues an order.completed event, all in
// one transaction. Products are updated in id order.
func (r *OrderRepository) Complete(ctx context.Context, id int64) (*domain.OrderCompletedEvent, error) {
	var event *domain.OrderCompletedEvent

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		next, err := order.Status.Complete(id)
		if err != nil {
			return err
		}

		restock, err := restockLines(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(restock) == 0 {
			return domain.NewValidationError("items", "cannot complete an order with no items")
		}

		for _, line := range restock {
			result, err := tx.ExecContext(ctx, `
				UPDATE products SET quantity = quantity + $2, updated_at = NOW()
				WHERE id = $1
			`, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}

			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if rowsAffected == 0 {
				return domain.NewNotFoundError("product", line.ProductID)
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = $2, updated_at = NOW()
			WHERE id = $1
		`, id, next)
		if err != nil {
			return err
		}

		event = &domain.OrderCompletedEvent{
			OrderID:    id,
			OrderDate:  order.OrderDate,
			TotalPrice: order.TotalPrice,
			Items:      restock,
			Timestamp:  time.Now().UTC(),
		}
		return outbox.Insert(ctx, tx, domain.TopicOrderCompleted, strconv.FormatInt(id, 10), event)
	})
	if err != nil {
		return nil, err
	}

	return event, nil
}

// restockLines sums item quantities per product.
func restockLines(ctx context.Context, tx *sql.Tx, orderID int64) ([]domain.RestockedItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, SUM(quantity)
		FROM order_items
		WHERE order_id = $1
		GROUP BY product_id
		ORDER BY product_id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []domain.RestockedItem
	for rows.Next() {
		var line domain.RestockedItem
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}
