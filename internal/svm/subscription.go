package svm

import (
	"sync"

	"go.uber.org/zap"

	"escrow-lab/internal/solana"
)

// DefaultSubscriptionQueue is the number of undelivered notifications a
// subscription may hold before it is closed as lagging.
const DefaultSubscriptionQueue = 1024

// Subscription delivers log notifications for processed transactions that
// match its filter. A subscriber that falls more than the queue limit behind
// is closed and reports Lagged.
type Subscription struct {
	ID     uint64
	filter solana.LogsFilter

	mu     sync.Mutex
	queue  []solana.LogNotification
	limit  int
	lagged bool
	signal chan struct{}
	out    chan solana.LogNotification
	done   chan struct{}
	once   sync.Once
	parent *subscriptions
}

// Notifications returns the delivery channel. It is closed after Close.
func (sub *Subscription) Notifications() <-chan solana.LogNotification {
	return sub.out
}

// Close stops delivery and releases the subscription.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		close(sub.done)
		sub.parent.remove(sub.ID)
	})
}

// Lagged reports whether the subscription was closed because its queue
// overflowed.
func (sub *Subscription) Lagged() bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.lagged
}

// enqueue queues n. It returns false, dropping n and the queue, once the
// subscriber is limit notifications behind.
func (sub *Subscription) enqueue(n solana.LogNotification) bool {
	sub.mu.Lock()
	if sub.lagged {
		sub.mu.Unlock()
		return false
	}
	if len(sub.queue) >= sub.limit {
		sub.lagged = true
		sub.queue = nil
		sub.mu.Unlock()
		return false
	}
	sub.queue = append(sub.queue, n)
	sub.mu.Unlock()
	select {
	case sub.signal <- struct{}{}:
	default:
	}
	return true
}

func (sub *Subscription) pump() {
	defer close(sub.out)
	for {
		select {
		case <-sub.done:
			return
		case <-sub.signal:
		}
		for {
			sub.mu.Lock()
			if len(sub.queue) == 0 {
				sub.mu.Unlock()
				break
			}
			n := sub.queue[0]
			sub.queue = sub.queue[1:]
			sub.mu.Unlock()

			select {
			case sub.out <- n:
			case <-sub.done:
				return
			}
		}
	}
}

type subscriptions struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	limit  int
	logger *zap.Logger
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		subs:   make(map[uint64]*Subscription),
		limit:  DefaultSubscriptionQueue,
		logger: zap.NewNop(),
	}
}

func (s *subscriptions) add(filter solana.LogsFilter) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub := &Subscription{
		ID:     s.nextID,
		filter: filter,
		limit:  s.limit,
		signal: make(chan struct{}, 1),
		out:    make(chan solana.LogNotification),
		done:   make(chan struct{}),
		parent: s,
	}
	s.subs[sub.ID] = sub
	go sub.pump()
	return sub
}

func (s *subscriptions) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func (s *subscriptions) get(id uint64) (*Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	return sub, ok
}

func (s *subscriptions) publish(keys []string, n solana.LogNotification) {
	var lagging []*Subscription
	s.mu.RLock()
	for _, sub := range s.subs {
		if sub.filter.Matches(keys) && !sub.enqueue(n) {
			lagging = append(lagging, sub)
		}
	}
	s.mu.RUnlock()

	// Close takes the write lock.
	for _, sub := range lagging {
		s.logger.Warn("closing lagging subscription",
			zap.Uint64("subscription", sub.ID),
			zap.Int("queue_limit", sub.limit),
		)
		sub.Close()
	}
}

func (s *subscriptions) closeAll() {
	s.mu.RLock()
	all := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		all = append(all, sub)
	}
	s.mu.RUnlock()
	for _, sub := range all {
		sub.Close()
	}
}

// Subscribe registers a log subscription.
func (s *SVM) Subscribe(filter solana.LogsFilter) *Subscription {
	return s.subs.add(filter)
}

// Unsubscribe closes the subscription with id. It reports whether it existed.
func (s *SVM) Unsubscribe(id uint64) bool {
	sub, ok := s.subs.get(id)
	if ok {
		sub.Close()
	}
	return ok
}

// Close closes every subscription.
func (s *SVM) Close() {
	s.subs.closeAll()
}
