package cart

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/tableside-pos/api/internal/model"
	"github.com/tableside-pos/api/internal/orderstore"
)

// Errors returned by Submit before anything is sent to the backend.
var (
	ErrTableNumberRequired = errors.New("please enter a table number")
	ErrEmptyCart           = errors.New("please add items to your order")
)

// OrderCreator persists an order. Satisfied by *orderstore.Store.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req orderstore.CreateOrderRequest) (model.Order, error)
}

// Submit validates the table number and cart, creates the order and clears
// the cart once the order is confirmed. On any failure the cart is left
// untouched so staff can re-submit.
func Submit(ctx context.Context, c *Cart, creator OrderCreator, tableNumber, notes string) (model.Order, error) {
	tableNumber = strings.TrimSpace(tableNumber)
	if tableNumber == "" {
		return model.Order{}, ErrTableNumberRequired
	}
	table, err := strconv.ParseInt(tableNumber, 10, 32)
	if err != nil || table <= 0 {
		return model.Order{}, orderstore.ErrInvalidTableNumber
	}
	if c.Len() == 0 {
		return model.Order{}, ErrEmptyCart
	}

	order, err := creator.CreateOrder(ctx, orderstore.CreateOrderRequest{
		TableNumber: int32(table),
		Items:       c.ToOrderItemsPayload(),
		TotalAmount: c.Total(),
		Notes:       strings.TrimSpace(notes),
	})
	if err != nil {
		return model.Order{}, err
	}

	c.Clear()
	return order, nil
}
