package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/realtime"
)

// OrderChangesChannel is the NOTIFY channel written by the orders trigger.
const OrderChangesChannel = "order_changes"

// Listener holds one pooled connection in LISTEN mode and hands every
// decoded notification to a handler.
type Listener struct {
	pool           *pgxpool.Pool
	channel        string
	reconnectDelay time.Duration
	log            *logger.Logger
	// OnReconnect runs after LISTEN is re-established, since notifications
	// sent while disconnected are lost.
	OnReconnect func(ctx context.Context)
}

func NewListener(pool *pgxpool.Pool, reconnectDelay time.Duration, log *logger.Logger) *Listener {
	if log == nil {
		log = logger.Nop()
	}
	return &Listener{
		pool:           pool,
		channel:        OrderChangesChannel,
		reconnectDelay: reconnectDelay,
		log:            log,
	}
}

// Run listens until ctx is done, reconnecting after failures.
func (l *Listener) Run(ctx context.Context, handle realtime.Handler) error {
	ctx = l.log.WithField(ctx, "channel", l.channel)
	first := true
	for {
		err := l.listen(ctx, handle, first)
		if ctx.Err() != nil {
			return nil
		}
		first = false
		l.log.Error(ctx, "order change listener disconnected", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context, handle realtime.Handler, first bool) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	// A LISTENing connection must not go back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.log.Info(ctx, "listening for order changes")
	if !first && l.OnReconnect != nil {
		l.OnReconnect(ctx)
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		change, err := realtime.Decode([]byte(n.Payload))
		if err != nil {
			if errors.Is(err, realtime.ErrMissingBranch) {
				l.log.Warn(ctx, "order change without branch ignored")
			} else {
				l.log.Error(ctx, "undecodable order change", err)
			}
			continue
		}
		handle(ctx, change)
	}
}
