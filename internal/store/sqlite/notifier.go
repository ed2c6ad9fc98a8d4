package sqlite

import (
	"sync"

	"github.com/HammerMeetNail/splitsync/internal/store"
)

// notifier is the in-process stand-in for the remote change feed: writers
// ping the collection, watchers re-query. Pings coalesce — a subscriber
// that is already flagged dirty is not queued twice.
type notifier struct {
	mu     sync.Mutex
	next   int
	subs   map[int]*subscriber
	closed bool
}

type subscriber struct {
	collection store.Collection
	ch         chan struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]*subscriber)}
}

func (n *notifier) subscribe(c store.Collection) (int, <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	sub := &subscriber{collection: c, ch: make(chan struct{}, 1)}
	if n.closed {
		close(sub.ch)
	} else {
		n.subs[id] = sub
	}
	return id, sub.ch
}

func (n *notifier) unsubscribe(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if sub, ok := n.subs[id]; ok {
		delete(n.subs, id)
		close(sub.ch)
	}
}

func (n *notifier) notify(c store.Collection) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.subs {
		if sub.collection != c {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for id, sub := range n.subs {
		delete(n.subs, id)
		close(sub.ch)
	}
}
