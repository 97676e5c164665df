// Package realtime models "something changed" notifications for a branch's
// orders as a stream that can be subscribed to, closed, and subscribed to again.
package realtime

import (
	"context"

	"github.com/google/uuid"
)

// Change is a single notification. OrderID and Op are best-effort hints; a
// consumer that only needs "something changed" may ignore them.
type Change struct {
	BranchID uuid.UUID `json:"branch_id"`
	OrderID  uuid.UUID `json:"order_id"`
	Op       string    `json:"op"`
}

// Subscription is a live stream of changes for one branch. C is closed
// after Close is called or when the underlying transport gives up.
type Subscription interface {
	C() <-chan Change
	Close() error
}

// Source opens subscriptions filtered to one branch. Every call returns a
// fresh stream, so a consumer can restart after its subscription ends.
type Source interface {
	Subscribe(ctx context.Context, branchID uuid.UUID) (Subscription, error)
}

// Handler receives changes read from a transport.
type Handler func(ctx context.Context, change Change)
