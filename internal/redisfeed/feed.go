// Package redisfeed carries order change notifications over Redis pub/sub,
// one channel per branch, so several gateway instances can share a single
// Postgres listener.
package redisfeed

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/realtime"
)

// Client is the Redis surface the feed needs. Satisfied by *redis.Client.
type Client interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
	OrderChannel(branchID string) string
}

// Publisher forwards changes to the branch channel.
type Publisher struct {
	client Client
	log    *logger.Logger
}

func NewPublisher(client Client, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{client: client, log: log}
}

// Publish sends change to its branch channel.
func (p *Publisher) Publish(ctx context.Context, change realtime.Change) error {
	payload, err := realtime.Encode(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	channel := p.client.OrderChannel(change.BranchID.String())
	if err := p.client.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Handle is a realtime.Handler that publishes and logs failures.
func (p *Publisher) Handle(ctx context.Context, change realtime.Change) {
	if err := p.Publish(ctx, change); err != nil {
		p.log.Error(p.log.WithBranchID(ctx, change.BranchID.String()), "error relaying order change", err)
	}
}

// Source subscribes to branch channels.
type Source struct {
	client Client
	log    *logger.Logger
}

func NewSource(client Client, log *logger.Logger) *Source {
	if log == nil {
		log = logger.Nop()
	}
	return &Source{client: client, log: log}
}

// Subscribe opens a subscription on the branch channel.
func (s *Source) Subscribe(ctx context.Context, branchID uuid.UUID) (realtime.Subscription, error) {
	ps, err := s.client.Subscribe(ctx, s.client.OrderChannel(branchID.String()))
	if err != nil {
		return nil, err
	}
	sub := &subscription{
		ps:   ps,
		ch:   make(chan realtime.Change, 64),
		done: make(chan struct{}),
	}
	go sub.pump(ctx, branchID, s.log)
	return sub, nil
}

type subscription struct {
	ps   *goredis.PubSub
	ch   chan realtime.Change
	done chan struct{}
	once sync.Once
}

func (s *subscription) C() <-chan realtime.Change { return s.ch }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *subscription) pump(ctx context.Context, branchID uuid.UUID, log *logger.Logger) {
	defer close(s.ch)
	logCtx := log.WithBranchID(ctx, branchID.String())
	msgs := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			change, ok := decode(logCtx, log, branchID, msg.Payload)
			if !ok {
				continue
			}
			select {
			case s.ch <- change:
			default:
				// Consumer is behind; it refreshes on the next change anyway.
			}
		}
	}
}

// decode parses a payload and drops anything for another branch.
func decode(ctx context.Context, log *logger.Logger, branchID uuid.UUID, payload string) (realtime.Change, bool) {
	change, err := realtime.Decode([]byte(payload))
	if err != nil {
		log.Error(ctx, "undecodable order change", err)
		return realtime.Change{}, false
	}
	if change.BranchID != branchID {
		return realtime.Change{}, false
	}
	return change, true
}
