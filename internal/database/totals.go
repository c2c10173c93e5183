package database

import (
	"context"

	"github.com/lib/pq"
)

// RecomputeOrderTotals sets total_price of each order to the sum of its
// remaining line items (0 when none are left).
func RecomputeOrderTotals(ctx context.Context, q Querier, orderIDs ...int64) error {
	if len(orderIDs) == 0 {
		return nil
	}

	_, err := q.ExecContext(ctx, `
		UPDATE orders o
		SET total_price = COALESCE((
			SELECT SUM(oi.price * oi.quantity)
			FROM order_items oi
			WHERE oi.order_id = o.id
		), 0),
		updated_at = NOW()
		WHERE o.id = ANY($1)
	`, pq.Array(orderIDs))

	return err
}
