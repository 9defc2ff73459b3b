package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"balance_engine/internal/domain/entity"
	"balance_engine/internal/pkg/metrics"
)

// Notifier fans BalanceChanged events out to subscribers without ever blocking
// the publisher. A subscriber whose buffer is full misses the event.
type Notifier struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan entity.BalanceChanged
	closed bool
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[uint64]chan entity.BalanceChanged)}
}

// Subscribe registers a subscriber. The returned func unsubscribes and closes the channel.
func (n *Notifier) Subscribe(buffer int) (<-chan entity.BalanceChanged, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan entity.BalanceChanged, buffer)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if sub, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(sub)
			}
		})
	}
}

// Publish emits a change for accountID.
func (n *Notifier) Publish(accountID entity.AccountID, isFirstUpdate bool) entity.BalanceChanged {
	event := entity.BalanceChanged{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		IsFirstUpdate: isFirstUpdate,
		At:            time.Now().UTC(),
	}
	metrics.Notifications.Inc()

	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ch := range n.subs {
		select {
		case ch <- event:
		default:
			metrics.DroppedNotifications.Inc()
		}
	}
	return event
}

// Close unsubscribes everybody.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}
