package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StockMetrics counts the business events that move stock. A nil
// *StockMetrics is valid and records nothing.
type StockMetrics struct {
	ordersCompleted  metric.Int64Counter
	unitsRestocked   metric.Int64Counter
	stockAdjustments metric.Int64Counter
	productsDisabled metric.Int64Counter
	ordersAffected   metric.Int64Counter
}

func NewStockMetrics(scope string) (*StockMetrics, error) {
	meter := otel.Meter(scope)

	ordersCompleted, err := meter.Int64Counter("stock.orders.completed",
		metric.WithDescription("Orders moved to completed"))
	if err != nil {
		return nil, err
	}

	unitsRestocked, err := meter.Int64Counter("stock.units.restocked",
		metric.WithDescription("Product units returned to stock by completed orders"),
		metric.WithUnit("{unit}"))
	if err != nil {
		return nil, err
	}

	stockAdjustments, err := meter.Int64Counter("stock.adjustments",
		metric.WithDescription("Manual quantity adjustments by direction"))
	if err != nil {
		return nil, err
	}

	productsDisabled, err := meter.Int64Counter("stock.products.disabled",
		metric.WithDescription("Products soft deleted"))
	if err != nil {
		return nil, err
	}

	ordersAffected, err := meter.Int64Counter("stock.orders.affected_by_disable",
		metric.WithDescription("Open orders that lost items because a product was disabled"))
	if err != nil {
		return nil, err
	}

	return &StockMetrics{
		ordersCompleted:  ordersCompleted,
		unitsRestocked:   unitsRestocked,
		stockAdjustments: stockAdjustments,
		productsDisabled: productsDisabled,
		ordersAffected:   ordersAffected,
	}, nil
}

func (m *StockMetrics) OrderCompleted(ctx context.Context, units int) {
	if m == nil {
		return
	}
	m.ordersCompleted.Add(ctx, 1)
	m.unitsRestocked.Add(ctx, int64(units))
}

func (m *StockMetrics) StockAdjusted(ctx context.Context, delta int) {
	if m == nil {
		return
	}
	direction := "increase"
	if delta < 0 {
		direction = "decrease"
	}
	m.stockAdjustments.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", direction)))
}

func (m *StockMetrics) ProductDisabled(ctx context.Context, affectedOrders int) {
	if m == nil {
		return
	}
	m.productsDisabled.Add(ctx, 1)
	m.ordersAffected.Add(ctx, int64(affectedOrders))
}
