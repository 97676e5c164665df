package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tableside-pos/api/internal/enum"
	"github.com/tableside-pos/api/internal/model"
)

const orderColumns = `o.id, o.branch_id, o.table_number, o.status, o.total_amount, o.notes, o.created_at, o.updated_at`

const itemColumns = `oi.id, oi.order_id, oi.menu_item_id, oi.quantity, oi.item_price, oi.notes, oi.created_at,
	m.id, m.name, m.description, m.price, m.category, m.availability, m.image_url`

const listOrders = `SELECT ` + orderColumns + `
FROM orders o
WHERE o.branch_id = $1
ORDER BY o.created_at DESC`

const listOrderItems = `SELECT ` + itemColumns + `
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
LEFT JOIN menu_items m ON m.id = oi.menu_item_id
WHERE o.branch_id = $1
ORDER BY oi.created_at DESC, oi.id`

// ListOrders returns every order of the branch, newest first, with items
// and their menu items.
func (q *Queries) ListOrders(ctx context.Context, branchID uuid.UUID) ([]model.Order, error) {
	rows, err := q.db.Query(ctx, listOrders, branchID)
	if err != nil {
		return nil, err
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	rows, err = q.db.Query(ctx, listOrderItems, branchID)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("scan order items: %w", err)
	}

	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		index[o.ID] = i
	}
	for _, it := range items {
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return orders, nil
}

const getOrder = `SELECT ` + orderColumns + `
FROM orders o
WHERE o.branch_id = $1 AND o.id = $2`

const listItemsByOrder = `SELECT ` + itemColumns + `
FROM order_items oi
LEFT JOIN menu_items m ON m.id = oi.menu_item_id
WHERE oi.order_id = $1
ORDER BY oi.created_at DESC, oi.id`

// GetOrder returns one order of the branch with its items. Returns
// pgx.ErrNoRows when the order is missing or belongs to another branch.
func (q *Queries) GetOrder(ctx context.Context, branchID, orderID uuid.UUID) (model.Order, error) {
	rows, err := q.db.Query(ctx, getOrder, branchID, orderID)
	if err != nil {
		return model.Order{}, err
	}
	order, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		return model.Order{}, err
	}

	rows, err = q.db.Query(ctx, listItemsByOrder, orderID)
	if err != nil {
		return model.Order{}, err
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return model.Order{}, fmt.Errorf("scan order items: %w", err)
	}
	order.Items = items
	return order, nil
}

const insertOrder = `INSERT INTO orders (branch_id, table_number, status, total_amount, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, branch_id, table_number, status, total_amount, notes, created_at, updated_at`

// InsertOrder writes an order header and returns the stored row.
func (q *Queries) InsertOrder(ctx context.Context, header model.NewOrder) (model.Order, error) {
	rows, err := q.db.Query(ctx, insertOrder,
		header.BranchID,
		header.TableNumber,
		string(header.Status),
		decimalToNumeric(header.TotalAmount),
		textOrNull(header.Notes),
	)
	if err != nil {
		return model.Order{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanOrder)
}

var orderItemColumns = []string{"order_id", "menu_item_id", "quantity", "item_price", "notes"}

// InsertOrderItems writes all items in a single COPY.
func (q *Queries) InsertOrderItems(ctx context.Context, items []model.NewOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	n, err := q.db.CopyFrom(ctx, pgx.Identifier{"order_items"}, orderItemColumns,
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			it := items[i]
			return []any{
				it.OrderID,
				it.MenuItemID,
				it.Quantity,
				decimalToNumeric(it.ItemPrice),
				textOrNull(it.Notes),
			}, nil
		}))
	if err != nil {
		return err
	}
	if n != int64(len(items)) {
		return fmt.Errorf("inserted %d of %d order items", n, len(items))
	}
	return nil
}

const updateOrderStatus = `UPDATE orders
SET status = $3, updated_at = $4
WHERE branch_id = $1 AND id = $2`

// UpdateOrderStatus sets status and updated_at. Returns pgx.ErrNoRows when
// no order of the branch matched.
func (q *Queries) UpdateOrderStatus(ctx context.Context, branchID, orderID uuid.UUID, status enum.OrderStatus, updatedAt time.Time) error {
	tag, err := q.db.Exec(ctx, updateOrderStatus, branchID, orderID, string(status), updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (model.Order, error) {
	var (
		o      model.Order
		status string
		total  pgtype.Numeric
		notes  pgtype.Text
	)
	err := row.Scan(&o.ID, &o.BranchID, &o.TableNumber, &status, &total, &notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return model.Order{}, err
	}
	o.Status = enum.OrderStatus(status)
	o.TotalAmount = numericToDecimal(total)
	o.Notes = notes.String
	return o, nil
}

func scanOrderItem(row pgx.CollectableRow) (model.OrderItem, error) {
	var (
		it        model.OrderItem
		price     pgtype.Numeric
		notes     pgtype.Text
		menuID    pgtype.UUID
		menuName  pgtype.Text
		menuDesc  pgtype.Text
		menuPrice pgtype.Numeric
		menuCat   pgtype.Text
		menuAvail pgtype.Bool
		menuImage pgtype.Text
	)
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Quantity, &price, &notes, &it.CreatedAt,
		&menuID, &menuName, &menuDesc, &menuPrice, &menuCat, &menuAvail, &menuImage)
	if err != nil {
		return model.OrderItem{}, err
	}
	it.ItemPrice = numericToDecimal(price)
	it.Notes = notes.String
	if menuID.Valid {
		it.MenuItem = &model.MenuItem{
			ID:           uuid.UUID(menuID.Bytes),
			Name:         menuName.String,
			Description:  menuDesc.String,
			Price:        numericToDecimal(menuPrice),
			Category:     menuCat.String,
			Availability: menuAvail.Bool,
			ImageURL:     menuImage.String,
		}
	}
	return it, nil
}
