package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const subscriptionBuffer = 64

// Broker fans changes out to in-process subscribers, one room per branch.
type Broker struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*brokerSub]bool
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{rooms: make(map[uuid.UUID]map[*brokerSub]bool)}
}

type brokerSub struct {
	broker   *Broker
	branchID uuid.UUID
	ch       chan Change
	once     sync.Once
}

func (s *brokerSub) C() <-chan Change { return s.ch }

func (s *brokerSub) Close() error {
	s.once.Do(func() {
		s.broker.remove(s)
	})
	return nil
}

// Subscribe registers a subscriber for branchID. The subscription is closed
// when ctx is done or Close is called.
func (b *Broker) Subscribe(ctx context.Context, branchID uuid.UUID) (Subscription, error) {
	sub := &brokerSub{
		broker:   b,
		branchID: branchID,
		ch:       make(chan Change, subscriptionBuffer),
	}

	b.mu.Lock()
	if b.rooms[branchID] == nil {
		b.rooms[branchID] = make(map[*brokerSub]bool)
	}
	b.rooms[branchID][sub] = true
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish delivers change to every subscriber of change.BranchID. A
// subscriber whose buffer is full misses the change; the next one still
// triggers a refresh.
func (b *Broker) Publish(_ context.Context, change Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.rooms[change.BranchID] {
		select {
		case sub.ch <- change:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers for branchID.
func (b *Broker) Subscribers(branchID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[branchID])
}

func (b *Broker) remove(sub *brokerSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.rooms[sub.branchID]
	if !ok {
		return
	}
	if _, exists := clients[sub]; !exists {
		return
	}
	delete(clients, sub)
	close(sub.ch)
	// Clean up empty rooms
	if len(clients) == 0 {
		delete(b.rooms, sub.branchID)
	}
}
