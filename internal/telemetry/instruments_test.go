package telemetry

import (
	"context"
	"testing"
)

func TestNilStockMetricsIsNoop(t *testing.T) {
	var m *StockMetrics

	m.OrderCompleted(context.Background(), 3)
	m.StockAdjusted(context.Background(), -2)
	m.ProductDisabled(context.Background(), 1)
}

func TestNewStockMetrics(t *testing.T) {
	m, err := NewStockMetrics("caicara-stock/test")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	m.OrderCompleted(context.Background(), 3)
	m.StockAdjusted(context.Background(), 5)
	m.ProductDisabled(context.Background(), 2)
}
