package orderstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tableside-pos/api/internal/enum"
	"github.com/tableside-pos/api/internal/realtime"
)

// RefreshPolicy decides how the store reacts to a change notification.
type RefreshPolicy interface {
	Apply(ctx context.Context, s *Store, change realtime.Change)
}

// FullRefetch reloads the whole branch list on every notification.
type FullRefetch struct{}

func (FullRefetch) Apply(ctx context.Context, s *Store, _ realtime.Change) {
	_ = s.refresh(ctx, "realtime")
}

// IncrementalPatch fetches only the changed order and patches it into the
// list. Notifications without an order id fall back to a full refetch.
type IncrementalPatch struct{}

func (IncrementalPatch) Apply(ctx context.Context, s *Store, change realtime.Change) {
	if change.OrderID == uuid.Nil {
		_ = s.refresh(ctx, "realtime")
		return
	}
	if change.Op == enum.ChangeDelete {
		s.remove(change.OrderID)
		return
	}

	order, err := s.backend.GetOrder(ctx, s.branchID, change.OrderID)
	if errors.Is(err, pgx.ErrNoRows) {
		s.remove(change.OrderID)
		return
	}
	if err != nil {
		s.log.Error(s.log.WithField(s.logContext(ctx), "order_id", change.OrderID.String()),
			"error fetching changed order", err)
		return
	}
	s.upsert(order)
}

// PolicyFor maps a configured policy name to a RefreshPolicy.
func PolicyFor(name string) (RefreshPolicy, error) {
	switch name {
	case "", enum.RefreshPolicyFull:
		return FullRefetch{}, nil
	case enum.RefreshPolicyPatch:
		return IncrementalPatch{}, nil
	}
	return nil, fmt.Errorf("unknown refresh policy %q", name)
}
