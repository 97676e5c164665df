//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tableside-pos/api/internal/config"
	"github.com/tableside-pos/api/internal/enum"
	"github.com/tableside-pos/api/internal/model"
	"github.com/tableside-pos/api/internal/orderstore"
	"github.com/tableside-pos/api/internal/postgres"
	"github.com/tableside-pos/api/internal/realtime"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tableside_test"),
		tcpostgres.WithUsername("pos"),
		tcpostgres.WithPassword("pos"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
	return connStr, cleanup
}

func setup(t *testing.T) (context.Context, *pgxpool.Pool, *postgres.Queries) {
	t.Helper()
	ctx := context.Background()
	connStr, cleanup := setupPostgresContainer(t, ctx)
	t.Cleanup(cleanup)

	if err := postgres.Migrate(connStr); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Second run is a no-op.
	if err := postgres.Migrate(connStr); err != nil {
		t.Fatalf("migrate again: %v", err)
	}

	pool, err := postgres.Connect(ctx, config.DBConfig{URL: connStr, MaxConns: 5})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return ctx, pool, postgres.New(pool)
}

func seedMenu(t *testing.T, ctx context.Context, q *postgres.Queries) (model.MenuItem, model.MenuItem) {
	t.Helper()
	burger, err := q.InsertMenuItem(ctx, model.MenuItem{Name: "Burger", Price: decimal.RequireFromString("5.00"), Category: "Mains", Availability: true})
	if err != nil {
		t.Fatalf("insert burger: %v", err)
	}
	fries, err := q.InsertMenuItem(ctx, model.MenuItem{Name: "Fries", Price: decimal.RequireFromString("3.50"), Category: "Sides", Availability: true})
	if err != nil {
		t.Fatalf("insert fries: %v", err)
	}
	if _, err := q.InsertMenuItem(ctx, model.MenuItem{Name: "Soup", Price: decimal.RequireFromString("4.00"), Category: "Starters"}); err != nil {
		t.Fatalf("insert soup: %v", err)
	}
	return burger, fries
}

func TestIntegrationOrderLifecycle(t *testing.T) {
	ctx, _, q := setup(t)

	cardiff, err := q.InsertBranch(ctx, "Cardiff", "Queen Street")
	if err != nil {
		t.Fatalf("insert branch: %v", err)
	}
	wembley, err := q.InsertBranch(ctx, "Wembley", "High Road")
	if err != nil {
		t.Fatalf("insert branch: %v", err)
	}
	burger, fries := seedMenu(t, ctx, q)

	menu, err := q.ListAvailableMenuItems(ctx)
	if err != nil {
		t.Fatalf("list menu: %v", err)
	}
	if len(menu) != 2 {
		t.Fatalf("unavailable items must be excluded, got %d", len(menu))
	}

	store := orderstore.New(q, cardiff.ID, orderstore.Options{})
	created, err := store.CreateOrder(ctx, orderstore.CreateOrderRequest{
		TableNumber: 4,
		Items: []model.NewOrderItem{
			{MenuItemID: burger.ID, Quantity: 2, ItemPrice: burger.Price},
			{MenuItemID: fries.ID, Quantity: 1, ItemPrice: fries.Price, Notes: "extra salt"},
		},
		TotalAmount: decimal.RequireFromString("13.50"),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if created.Status != enum.OrderStatusNew {
		t.Fatalf("new order status: got %s", created.Status)
	}

	orders := store.Orders()
	if len(orders) != 1 || len(orders[0].Items) != 2 {
		t.Fatalf("expected one order with two items, got %+v", orders)
	}
	if orders[0].TotalAmount.StringFixed(2) != "13.50" {
		t.Fatalf("total: got %s", orders[0].TotalAmount)
	}
	for _, it := range orders[0].Items {
		if it.MenuItem == nil || it.MenuItem.Name == "" {
			t.Fatalf("item without menu item: %+v", it)
		}
	}

	// Wembley can neither see nor change Cardiff's order.
	other, err := q.ListOrders(ctx, wembley.ID)
	if err != nil {
		t.Fatalf("list wembley: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("wembley sees %d cardiff orders", len(other))
	}
	err = q.UpdateOrderStatus(ctx, wembley.ID, created.ID, enum.OrderStatusReady, time.Now())
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("cross-branch update: got %v, want pgx.ErrNoRows", err)
	}
	if _, err := q.GetOrder(ctx, wembley.ID, created.ID); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("cross-branch get: got %v", err)
	}

	if err := store.UpdateStatus(ctx, created.ID, enum.OrderStatusPreparing); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := q.GetOrder(ctx, cardiff.ID, created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != enum.OrderStatusPreparing || !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("unexpected order after update: %+v", got)
	}
}

func TestIntegrationListenerDeliversChanges(t *testing.T) {
	ctx, pool, q := setup(t)

	branch, err := q.InsertBranch(ctx, "Cardiff", "Queen Street")
	if err != nil {
		t.Fatalf("insert branch: %v", err)
	}
	burger, _ := seedMenu(t, ctx, q)

	changes := make(chan realtime.Change, 8)
	listener := postgres.NewListener(pool, 100*time.Millisecond, nil)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go listener.Run(runCtx, func(_ context.Context, c realtime.Change) { changes <- c })

	// Give LISTEN a moment before the first write.
	time.Sleep(500 * time.Millisecond)

	header, err := q.InsertOrder(ctx, model.NewOrder{
		BranchID:    branch.ID,
		TableNumber: 2,
		Status:      enum.OrderStatusNew,
		TotalAmount: burger.Price,
	})
	if err != nil {
		t.Fatalf("insert order: %v", err)
	}
	if err := q.InsertOrderItems(ctx, []model.NewOrderItem{{OrderID: header.ID, MenuItemID: burger.ID, Quantity: 1, ItemPrice: burger.Price}}); err != nil {
		t.Fatalf("insert items: %v", err)
	}

	want := []string{enum.ChangeInsert, enum.ChangeUpdate}
	for _, op := range want {
		select {
		case c := <-changes:
			if c.BranchID != branch.ID || c.OrderID != header.ID || c.Op != op {
				t.Fatalf("unexpected change %+v, want op %s", c, op)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s notification", op)
		}
	}

	if header.ID == uuid.Nil {
		t.Fatal("order id not returned")
	}
}
