//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/caicara-stock/internal/catalog"
	"github.com/joao-fontenele/caicara-stock/internal/domain"
	"github.com/joao-fontenele/caicara-stock/internal/listing"
	"github.com/joao-fontenele/caicara-stock/internal/messaging"
	"github.com/joao-fontenele/caicara-stock/internal/orders"
	"github.com/joao-fontenele/caicara-stock/internal/outbox"
	"github.com/joao-fontenele/caicara-stock/internal/worker"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProduct(ctx context.Context, t *testing.T, repo *catalog.ProductRepository, name, price string, quantity int) domain.Product {
	t.Helper()

	p, err := domain.ParsePrice(price)
	require.NoError(t, err)

	product := domain.Product{Name: name, Price: p, Quantity: quantity}
	require.NoError(t, repo.Create(ctx, &product))
	return product
}

func newOrder(ctx context.Context, t *testing.T, repo *orders.OrderRepository, status domain.OrderStatus, items ...domain.OrderItem) domain.Order {
	t.Helper()

	order := domain.Order{
		OrderDate: domain.NewDate(2024, time.March, 1),
		Status:    status,
		Items:     items,
	}
	require.NoError(t, repo.Create(ctx, &order))
	return order
}

func line(p domain.Product, quantity int) domain.OrderItem {
	return domain.OrderItem{ProductID: p.ID, Quantity: quantity, Price: p.Price}
}

func assertMoney(t *testing.T, want string, got domain.Money) {
	t.Helper()

	expected, err := domain.ParsePrice(want)
	require.NoError(t, err)
	assert.Truef(t, expected.Equal(got), "expected %s, got %s", expected, got)
}

type harness struct {
	db       *sql.DB
	products *catalog.ProductRepository
	orders   *orders.OrderRepository
	pg       *PostgresSetup
}

func setup(t *testing.T) (context.Context, *harness) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	pg := SetupPostgres(ctx, t)
	t.Cleanup(pg.Cleanup)

	db := OpenDB(ctx, t, pg.ConnStr)

	return ctx, &harness{
		db:       db,
		products: catalog.NewProductRepository(db),
		orders:   orders.NewOrderRepository(db),
		pg:       pg,
	}
}

func TestProductLifecycleOverHTTP(t *testing.T) {
	_, h := setup(t)

	handler := catalog.NewHandler(h.products, nil, quietLogger())
	mux := http.NewServeMux()
	handler.Register(mux)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/products", `{"name": "Canoa", "description": "  ", "price": "1250.90", "quantity": "3"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotZero(t, created.ID)
	assert.Nil(t, created.Description)
	assert.Equal(t, domain.ProductStatusActive, created.Status)
	assertMoney(t, "1250.90", created.Price)

	rec = do(http.MethodPatch, fmt.Sprintf("/products/%d", created.ID), `{"description": "remo incluso", "quantity": 7}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated domain.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	require.NotNil(t, updated.Description)
	assert.Equal(t, "remo incluso", *updated.Description)
	assert.Equal(t, 7, updated.Quantity)
	assert.Equal(t, "Canoa", updated.Name)

	rec = do(http.MethodPost, fmt.Sprintf("/products/%d/adjust", created.ID), `{"delta": -10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stock domain.StockLevel
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stock))
	assert.Equal(t, 0, stock.Quantity)

	rec = do(http.MethodDelete, fmt.Sprintf("/products/%d", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(http.MethodGet, "/products/all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(http.MethodPost, fmt.Sprintf("/products/%d/restore", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(http.MethodGet, "/products/999999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderTotalFollowsItems(t *testing.T) {
	ctx, h := setup(t)

	rede := newProduct(ctx, t, h.products, "Rede de pesca", "10.50", 20)
	boia := newProduct(ctx, t, h.products, "Boia", "3.25", 20)

	order := newOrder(ctx, t, h.orders, domain.OrderStatusPending, line(rede, 2))
	assertMoney(t, "21.00", order.TotalPrice)

	item, err := h.orders.AddItem(ctx, order.ID, boia.ID, 4)
	require.NoError(t, err)

	got, err := h.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assertMoney(t, "34.00", got.TotalPrice)
	require.Len(t, got.Items, 2)

	_, err = h.orders.UpdateItem(ctx, order.ID, item.ID, 1)
	require.NoError(t, err)

	got, err = h.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assertMoney(t, "24.25", got.TotalPrice)

	require.NoError(t, h.orders.RemoveItem(ctx, order.ID, item.ID))
	require.NoError(t, h.orders.RemoveItem(ctx, order.ID, got.Items[0].ID))

	got, err = h.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assertMoney(t, "0", got.TotalPrice)
	assert.Empty(t, got.Items)
}

func TestAddItemRejectsDisabledProduct(t *testing.T) {
	ctx, h := setup(t)

	remo := newProduct(ctx, t, h.products, "Remo", "80.00", 5)
	order := newOrder(ctx, t, h.orders, domain.OrderStatusPending)

	_, err := h.products.Disable(ctx, remo.ID)
	require.NoError(t, err)

	_, err = h.orders.AddItem(ctx, order.ID, remo.ID, 1)
	assert.True(t, domain.IsInvalidStateError(err), "got %v", err)

	_, err = h.orders.AddItem(ctx, order.ID, 424242, 1)
	assert.True(t, domain.IsNotFoundError(err), "got %v", err)
}

func TestCompleteRestocksAndFreezesOrder(t *testing.T) {
	ctx, h := setup(t)

	rede := newProduct(ctx, t, h.products, "Rede", "10.00", 5)
	anzol := newProduct(ctx, t, h.products, "Anzol", "0.50", 100)

	order := newOrder(ctx, t, h.orders, domain.OrderStatusPending, line(rede, 2), line(anzol, 30), line(rede, 1))

	event, err := h.orders.Complete(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, event.Items, 2)

	frozen, err := h.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, frozen.Status)
	require.Len(t, frozen.Items, 3)
	assert.Equal(t, domain.RestockedItem{ProductID: rede.ID, Quantity: 3}, event.Items[0])
	assert.Equal(t, domain.RestockedItem{ProductID: anzol.ID, Quantity: 30}, event.Items[1])

	p, err := h.products.Get(ctx, rede.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Quantity)

	p, err = h.products.Get(ctx, anzol.ID)
	require.NoError(t, err)
	assert.Equal(t, 130, p.Quantity)

	_, err = h.orders.Complete(ctx, order.ID)
	assert.True(t, domain.IsInvalidStateError(err), "second completion: %v", err)

	_, err = h.orders.AddItem(ctx, order.ID, rede.ID, 1)
	assert.True(t, domain.IsInvalidStateError(err), "add to completed: %v", err)

	_, err = h.orders.UpdateItem(ctx, order.ID, frozen.Items[0].ID, 9)
	assert.True(t, domain.IsInvalidStateError(err), "update item of completed: %v", err)

	err = h.orders.RemoveItem(ctx, order.ID, frozen.Items[1].ID)
	assert.True(t, domain.IsInvalidStateError(err), "remove item of completed: %v", err)

	cancelled := domain.OrderStatusCancelled
	_, err = h.orders.Update(ctx, order.ID, domain.OrderPatch{Status: &cancelled})
	assert.True(t, domain.IsInvalidStateError(err), "update completed: %v", err)

	after, err := h.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, after.Status)
	assert.Equal(t, frozen.OrderDate.ISO(), after.OrderDate.ISO())
	assertMoney(t, "45.00", after.TotalPrice)
	require.Len(t, after.Items, len(frozen.Items))
	for i, item := range after.Items {
		assert.Equal(t, frozen.Items[i].ID, item.ID)
		assert.Equal(t, frozen.Items[i].ProductID, item.ProductID)
		assert.Equal(t, frozen.Items[i].Quantity, item.Quantity)
		assert.True(t, frozen.Items[i].Price.Equal(item.Price), "item %d price changed", item.ID)
	}

	p, err = h.products.Get(ctx, rede.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Quantity, "rejected operations must not touch stock")

	empty := newOrder(ctx, t, h.orders, domain.OrderStatusPending)
	_, err = h.orders.Complete(ctx, empty.ID)
	assert.True(t, domain.IsValidationError(err), "empty order: %v", err)
}

func TestDisableCascadesToOpenOrders(t *testing.T) {
	ctx, h := setup(t)

	caiaque := newProduct(ctx, t, h.products, "Caiaque", "1000.00", 2)
	colete := newProduct(ctx, t, h.products, "Colete", "150.00", 10)

	pending := newOrder(ctx, t, h.orders, domain.OrderStatusPending, line(caiaque, 1), line(colete, 2))
	cancelled := newOrder(ctx, t, h.orders, domain.OrderStatusCancelled, line(caiaque, 2))
	completed := newOrder(ctx, t, h.orders, domain.OrderStatusPending, line(caiaque, 1))
	_, err := h.orders.Complete(ctx, completed.ID)
	require.NoError(t, err)

	count, err := h.products.CountPendingOrders(ctx, caiaque.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	event, err := h.products.Disable(ctx, caiaque.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{pending.ID, cancelled.ID}, event.AffectedOrderIDs)

	got, err := h.orders.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, colete.ID, got.Items[0].ProductID)
	assertMoney(t, "300.00", got.TotalPrice)

	got, err = h.orders.GetByID(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assertMoney(t, "0", got.TotalPrice)

	got, err = h.orders.GetByID(ctx, completed.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assertMoney(t, "1000.00", got.TotalPrice)

	count, err = h.products.CountPendingOrders(ctx, caiaque.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	err = h.products.Purge(ctx, caiaque.ID)
	assert.True(t, domain.IsConflictError(err), "purge referenced product: %v", err)

	err = h.products.Purge(ctx, colete.ID)
	assert.True(t, domain.IsInvalidStateError(err), "purge active product: %v", err)
}

func TestConcurrentAdjustmentsNeverLoseUpdates(t *testing.T) {
	ctx, h := setup(t)

	prancha := newProduct(ctx, t, h.products, "Prancha", "900.00", 0)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.products.AdjustQuantity(ctx, prancha.ID, 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := h.products.Get(ctx, prancha.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Quantity)

	stock, err := h.products.AdjustQuantity(ctx, prancha.ID, -1000)
	require.NoError(t, err)
	assert.Equal(t, 0, stock.Quantity)
}

func TestCursorPagesCoverCatalogOnce(t *testing.T) {
	ctx, h := setup(t)

	want := make([]int64, 0, 23)
	for i := range 23 {
		p := newProduct(ctx, t, h.products, fmt.Sprintf("Item %02d", i), "1.00", 1)
		want = append(want, p.ID)
	}

	var (
		got    []int64
		cursor int64
	)
	for {
		c := cursor
		result, err := h.products.List(ctx, domain.ProductFilterActive, "", listing.Params{Cursor: &c, Limit: 5})
		require.NoError(t, err)

		for _, p := range result.Items {
			got = append(got, p.ID)
		}
		if result.Pagination.NextCursor == nil {
			break
		}
		cursor = *result.Pagination.NextCursor
	}

	assert.Equal(t, want, got)

	page := 5
	result, err := h.products.List(ctx, domain.ProductFilterActive, "", listing.Params{Page: &page, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, result.Items, 3)
	assert.Equal(t, int64(23), *result.Pagination.Total)
	assert.False(t, *result.Pagination.HasMore)
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	ctx, h := setup(t)

	newProduct(ctx, t, h.products, "Desconto 50% off", "1.00", 1)
	newProduct(ctx, t, h.products, "Desconto 500 reais", "1.00", 1)
	newProduct(ctx, t, h.products, "linha_grossa", "1.00", 1)
	newProduct(ctx, t, h.products, "linhaXgrossa", "1.00", 1)

	result, err := h.products.List(ctx, domain.ProductFilterActive, "50%", listing.Params{Limit: listing.DefaultLimit})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Desconto 50% off", result.Items[0].Name)

	result, err = h.products.List(ctx, domain.ProductFilterActive, "LINHA_", listing.Params{Limit: listing.DefaultLimit})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "linha_grossa", result.Items[0].Name)
}

func TestOrderListingFiltersByDate(t *testing.T) {
	ctx, h := setup(t)

	for _, day := range []int{1, 10, 20} {
		order := domain.Order{OrderDate: domain.NewDate(2024, time.May, day), Status: domain.OrderStatusPending}
		require.NoError(t, h.orders.Create(ctx, &order))
	}

	from := domain.NewDate(2024, time.May, 5)
	to := domain.NewDate(2024, time.May, 20)

	result, err := h.orders.List(ctx, domain.OrderFilter{DateFrom: &from, DateTo: &to}, listing.Params{Limit: listing.DefaultLimit})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	for _, o := range result.Items {
		assert.False(t, o.OrderDate.Before(from))
		assert.False(t, to.Before(o.OrderDate))
	}
}

func TestDeleteOrderRemovesItems(t *testing.T) {
	ctx, h := setup(t)

	bote := newProduct(ctx, t, h.products, "Bote", "500.00", 3)
	kept := newOrder(ctx, t, h.orders, domain.OrderStatusPending, line(bote, 1))

	for _, status := range []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusCompleted} {
		order := newOrder(ctx, t, h.orders, domain.OrderStatusPending, line(bote, 1), line(bote, 2))
		if status == domain.OrderStatusCompleted {
			_, err := h.orders.Complete(ctx, order.ID)
			require.NoError(t, err)
		}

		got, err := h.orders.Delete(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, status, got)

		var remaining int
		err = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID).Scan(&remaining)
		require.NoError(t, err)
		assert.Zero(t, remaining, "items of deleted %s order", status)

		_, err = h.orders.GetByID(ctx, order.ID)
		assert.True(t, domain.IsNotFoundError(err), "got %v", err)
	}

	var total int
	err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items`).Scan(&total)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	got, err := h.orders.GetByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	_, err = h.orders.Delete(ctx, kept.ID+1000)
	assert.True(t, domain.IsNotFoundError(err), "got %v", err)
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, topic+"/"+key)
	return nil
}

func TestOutboxRelayPublishesInCommitOrder(t *testing.T) {
	ctx, h := setup(t)

	db := OpenDB(ctx, t, h.pg.ConnStr)
	products := catalog.NewProductRepository(db)
	orderRepo := orders.NewOrderRepository(db)

	vela := newProduct(ctx, t, products, "Vela", "45.00", 1)
	order := newOrder(ctx, t, orderRepo, domain.OrderStatusPending, line(vela, 1))

	_, err := orderRepo.Complete(ctx, order.ID)
	require.NoError(t, err)
	_, err = products.Disable(ctx, vela.ID)
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	relay := outbox.NewRelay(db, publisher, time.Second, quietLogger())

	sent, err := relay.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{
		fmt.Sprintf("%s/%d", domain.TopicOrderCompleted, order.ID),
		fmt.Sprintf("%s/%d", domain.TopicProductDisabled, vela.ID),
	}, publisher.messages)

	sent, err = relay.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

type emailCapture struct {
	mu     sync.Mutex
	emails []map[string]string
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, req)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"id":"test","status":"sent"}`))
}

func (e *emailCapture) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.emails)
}

func (e *emailCapture) last() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emails[len(e.emails)-1]
}

func TestOrderCompletedNotificationOverKafka(t *testing.T) {
	ctx, h := setup(t)

	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()

	db := OpenDB(ctx, t, h.pg.ConnStr)
	products := catalog.NewProductRepository(db)
	orderRepo := orders.NewOrderRepository(db)

	catalogMux := http.NewServeMux()
	catalog.NewHandler(products, nil, quietLogger()).Register(catalogMux)
	catalogServer := httptest.NewServer(catalogMux)
	defer catalogServer.Close()

	capture := &emailCapture{}
	emailServer := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer emailServer.Close()

	tarrafa := newProduct(ctx, t, products, "Tarrafa", "60.00", 4)
	order := newOrder(ctx, t, orderRepo, domain.OrderStatusPending, line(tarrafa, 6))

	_, err := orderRepo.Complete(ctx, order.ID)
	require.NoError(t, err)

	producer := messaging.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	sent, err := outbox.NewRelay(db, producer, time.Second, quietLogger()).Flush(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	notifier := worker.NewStockNotifier(emailServer.URL, catalogServer.URL, "http://orders.invalid", "estoque@example.com", http.DefaultClient, quietLogger())
	consumer := messaging.NewConsumer(brokers, domain.TopicOrderCompleted, "integration-test")
	defer func() { _ = consumer.Close() }()

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = consumer.Consume(consumeCtx, notifier.HandleOrderCompleted) }()

	require.Eventually(t, func() bool { return capture.count() > 0 }, time.Minute, 200*time.Millisecond)

	email := capture.last()
	assert.Equal(t, "estoque@example.com", email["to"])
	assert.Contains(t, email["subject"], fmt.Sprintf("Order %d", order.ID))
	assert.Contains(t, email["body"], "Tarrafa")
	assert.Contains(t, email["body"], "now 10 in stock")
}
