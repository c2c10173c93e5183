// Package worker turns catalog and order events into stock notifications.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/caicara-stock/internal/domain"
)

type StockNotifier struct {
	emailServiceURL   string
	catalogServiceURL string
	ordersServiceURL  string
	recipient         string
	httpClient        *http.Client
	logger            *slog.Logger
}

func NewStockNotifier(emailServiceURL, catalogServiceURL, ordersServiceURL, recipient string, client *http.Client, logger *slog.Logger) *StockNotifier {
	return &StockNotifier{
		emailServiceURL:   strings.TrimRight(emailServiceURL, "/"),
		catalogServiceURL: strings.TrimRight(catalogServiceURL, "/"),
		ordersServiceURL:  strings.TrimRight(ordersServiceURL, "/"),
		recipient:         recipient,
		httpClient:        client,
		logger:            logger,
	}
}

// HandleOrderCompleted reports the restocked products with their new
// quantities. Malformed payloads are logged and skipped; delivery failures
// are returned so the message is retried.
func (n *StockNotifier) HandleOrderCompleted(ctx context.Context, payload []byte) error {
	var event domain.OrderCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		n.logger.Error("skipping malformed order completed event", "error", err)
		return nil
	}

	n.logger.Info("processing order completed event", "order_id", event.OrderID, "products", len(event.Items))

	var body strings.Builder
	fmt.Fprintf(&body, "Order %d (%s, total %s) was completed and restocked:\n",
		event.OrderID, event.OrderDate.Display(), event.TotalPrice)

	for _, item := range event.Items {
		product, err := n.getProduct(ctx, item.ProductID)
		if err != nil {
			n.logger.Warn("failed to load product for notification", "error", err, "product_id", item.ProductID)
			fmt.Fprintf(&body, "- product %d: +%d\n", item.ProductID, item.Quantity)
			continue
		}
		fmt.Fprintf(&body, "- %s (#%d): +%d, now %d in stock\n", product.Name, product.ID, item.Quantity, product.Quantity)
	}

	subject := fmt.Sprintf("Order %d completed", event.OrderID)
	if err := n.sendEmail(ctx, subject, body.String()); err != nil {
		n.logger.Error("failed to send restock email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send restock email: %w", err)
	}

	n.logger.Info("restock notification sent", "order_id", event.OrderID)
	return nil
}

// HandleProductDisabled reports the open orders that lost items when a
// product was disabled, with their recomputed totals.
func (n *StockNotifier) HandleProductDisabled(ctx context.Context, payload []byte) error {
	var event domain.ProductDisabledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		n.logger.Error("skipping malformed product disabled event", "error", err)
		return nil
	}

	n.logger.Info("processing product disabled event", "product_id", event.ProductID, "affected_orders", len(event.AffectedOrderIDs))

	var body strings.Builder
	fmt.Fprintf(&body, "Product %q (#%d) was disabled.\n", event.Name, event.ProductID)

	if len(event.AffectedOrderIDs) == 0 {
		body.WriteString("No open orders referenced it.\n")
	}

	for _, id := range event.AffectedOrderIDs {
		order, err := n.getOrder(ctx, id)
		if err != nil {
			n.logger.Warn("failed to load order for notification", "error", err, "order_id", id)
			fmt.Fprintf(&body, "- order %d: item removed\n", id)
			continue
		}
		fmt.Fprintf(&body, "- order %d (%s): item removed, total now %s\n", order.ID, order.Status, order.TotalPrice)
	}

	subject := fmt.Sprintf("Product %s disabled", event.Name)
	if err := n.sendEmail(ctx, subject, body.String()); err != nil {
		n.logger.Error("failed to send product disabled email", "error", err, "product_id", event.ProductID)
		return fmt.Errorf("send product disabled email: %w", err)
	}

	n.logger.Info("product disabled notification sent", "product_id", event.ProductID)
	return nil
}

func (n *StockNotifier) getProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	if err := n.getJSON(ctx, fmt.Sprintf("%s/products/%d", n.catalogServiceURL, id), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (n *StockNotifier) getOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	if err := n.getJSON(ctx, fmt.Sprintf("%s/orders/%d", n.ordersServiceURL, id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (n *StockNotifier) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(dst)
}

func (n *StockNotifier) sendEmail(ctx context.Context, subject, body string) error {
	data, err := json.Marshal(map[string]string{
		"to":      n.recipient,
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
