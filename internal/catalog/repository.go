package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/caicara-stock/internal/database"
	"github.com/joao-fontenele/caicara-stock/internal/domain"
	"github.com/joao-fontenele/caicara-stock/internal/listing"
	"github.com/joao-fontenele/caicara-stock/internal/outbox"
)

const productColumns = `id, name, description, price, quantity, is_disabled, created_at, updated_at`

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p           domain.Product
		description sql.NullString
		disabled    bool
	)

	err := row.Scan(&p.ID, &p.Name, &description, &p.Price, &p.Quantity, &disabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}

	if description.Valid {
		p.Description = &description.String
	}
	p.Status = domain.ProductStatusOf(disabled)

	return p, nil
}

func productID(p domain.Product) int64 {
	return p.ID
}

func (r *ProductRepository) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// List scans one partition of the catalog. Cursor pages are ordered by id
// ascending; offset pages and full scans by creation time, newest first.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter, search string, params listing.Params) (listing.Result[domain.Product], error) {
	var w listing.Where

	switch filter {
	case domain.ProductFilterActive:
		w.And("is_disabled = FALSE")
	case domain.ProductFilterDisabled:
		w.And("is_disabled = TRUE")
	}

	if term := strings.TrimSpace(search); term != "" {
		pattern := w.Arg(listing.ContainsPattern(term))
		w.And("(name ILIKE " + pattern + " OR description ILIKE " + pattern + ")")
	}

	switch params.Mode() {
	case listing.ModeCursor:
		w.And("id > " + w.Arg(*params.Cursor))
		limit := w.Arg(params.Limit + 1)

		products, err := r.queryProducts(ctx, `
			SELECT `+productColumns+`
			FROM products
			`+w.SQL()+`
			ORDER BY id ASC
			LIMIT `+limit, w.Args()...)
		if err != nil {
			return listing.Result[domain.Product]{}, err
		}

		return listing.CursorResult(products, params.Limit, productID), nil

	case listing.ModePage:
		var total int64
		err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products `+w.SQL(), w.Args()...).Scan(&total)
		if err != nil {
			return listing.Result[domain.Product]{}, err
		}

		limit := w.Arg(params.Limit)
		offset := w.Arg(params.Offset())

		products, err := r.queryProducts(ctx, `
			SELECT `+productColumns+`
			FROM products
			`+w.SQL()+`
			ORDER BY created_at DESC, id DESC
			LIMIT `+limit+` OFFSET `+offset, w.Args()...)
		if err != nil {
			return listing.Result[domain.Product]{}, err
		}

		return listing.PageResult(products, *params.Page, params.Limit, total), nil

	default:
		products, err := r.queryProducts(ctx, `
			SELECT `+productColumns+`
			FROM products
			`+w.SQL()+`
			ORDER BY created_at DESC, id DESC
		`, w.Args()...)
		if err != nil {
			return listing.Result[domain.Product]{}, err
		}

		return listing.FullResult(products), nil
	}
}

func (r *ProductRepository) Get(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("product", id)
		}
		return nil, err
	}

	return &p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	var disabled bool

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_disabled, created_at, updated_at
	`, p.Name, p.Description, p.Price, p.Quantity).Scan(&p.ID, &disabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return database.TranslateError(err)
	}

	p.Status = domain.ProductStatusOf(disabled)
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products SET
			name = COALESCE($2, name),
			description = CASE WHEN $3 THEN $4 ELSE description END,
			price = COALESCE($5, price),
			quantity = COALESCE($6, quantity),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		id, patch.Name, patch.SetDescription, patch.Description, patch.Price, patch.Quantity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("product", id)
		}
		return nil, database.TranslateError(err)
	}

	return &p, nil
}

// Disable soft-deletes a product. Items referencing it are removed from
// pending and cancelled orders, whose totals are recomputed; completed orders
// keep their items. Everything, including the product.disabled event, commits
// atomically.
func (r *ProductRepository) Disable(ctx context.Context, id int64) (*domain.ProductDisabledEvent, error) {
	var event *domain.ProductDisabledEvent

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var name string
		err := tx.QueryRowContext(ctx, `SELECT name FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&name)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewNotFoundError("product", id)
			}
			return err
		}

		orderIDs, err := lockOpenOrdersReferencing(ctx, tx, id)
		if err != nil {
			return err
		}

		if len(orderIDs) > 0 {
			_, err = tx.ExecContext(ctx, `
				DELETE FROM order_items
				WHERE product_id = $1 AND order_id = ANY($2)
			`, id, pq.Array(orderIDs))
			if err != nil {
				return err
			}

			if err := database.RecomputeOrderTotals(ctx, tx, orderIDs...); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products SET is_disabled = TRUE, updated_at = NOW()
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}

		event = &domain.ProductDisabledEvent{
			ProductID:        id,
			Name:             name,
			AffectedOrderIDs: orderIDs,
			Timestamp:        time.Now().UTC(),
		}
		return outbox.Insert(ctx, tx, domain.TopicProductDisabled, strconv.FormatInt(id, 10), event)
	})
	if err != nil {
		return nil, err
	}

	return event, nil
}

// lockOpenOrdersReferencing locks the pending and cancelled orders that hold
// at least one item for productID.
func lockOpenOrdersReferencing(ctx context.Context, tx *sql.Tx, productID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT o.id
		FROM orders o
		WHERE o.status IN ('pending', 'cancelled')
		  AND EXISTS (
			SELECT 1 FROM order_items oi
			WHERE oi.order_id = o.id AND oi.product_id = $1
		  )
		ORDER BY o.id
		FOR UPDATE
	`, productID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderIDs := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		orderIDs = append(orderIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orderIDs, nil
}

func (r *ProductRepository) Restore(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products SET is_disabled = FALSE, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.NewNotFoundError("product", id)
	}

	return nil
}

// AdjustQuantity applies delta in one statement, clamping at zero, so
// concurrent adjustments cannot lose updates.
func (r *ProductRepository) AdjustQuantity(ctx context.Context, id int64, delta int) (*domain.StockLevel, error) {
	stock := &domain.StockLevel{}

	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = GREATEST(0, quantity::BIGINT + $2), updated_at = NOW()
		WHERE id = $1
		RETURNING id, quantity
	`, id, delta).Scan(&stock.ProductID, &stock.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("product", id)
		}
		return nil, database.TranslateError(err)
	}

	return stock, nil
}

// CountPendingOrders returns how many distinct pending orders reference an
// active product.
func (r *ProductRepository) CountPendingOrders(ctx context.Context, id int64) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT oi.order_id)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE oi.product_id = $1
		  AND o.status = 'pending'
		  AND p.is_disabled = FALSE
	`, id).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Purge hard-deletes a disabled product. Products still referenced by any
// order item cannot be purged.
func (r *ProductRepository) Purge(ctx context.Context, id int64) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var disabled bool
		err := tx.QueryRowContext(ctx, `SELECT is_disabled FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&disabled)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewNotFoundError("product", id)
			}
			return err
		}

		if !disabled {
			return domain.NewInvalidStateError("product", id, string(domain.ProductStatusActive), "only disabled products can be purged")
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		return err
	})
}
