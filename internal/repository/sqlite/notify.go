package sqlite

import (
	"context"
	"sync"

	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
)

var _ repository.ChangeFeed = (*DB)(nil)

// feedBuffer is the per-subscriber backlog. Once full, further changes for
// that subscriber are dropped until it catches up.
const feedBuffer = 64

// notifier fans committed writes out to in-process subscribers. SQLite has
// no cross-process change notification, so only writes made through this
// *DB are seen.
type notifier struct {
	mu     sync.Mutex
	subs   map[chan model.Change]struct{}
	closed bool
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[chan model.Change]struct{})}
}

func (n *notifier) subscribe(ctx context.Context) <-chan model.Change {
	ch := make(chan model.Change, feedBuffer)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch
	}
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[ch]; ok {
			delete(n.subs, ch)
			close(ch)
		}
	}()

	return ch
}

// publish never blocks the writer.
func (n *notifier) publish(c model.Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	for ch := range n.subs {
		delete(n.subs, ch)
		close(ch)
	}
}

// Changes subscribes to writes made through this DB.
func (db *DB) Changes(ctx context.Context) (<-chan model.Change, error) {
	return db.feed.subscribe(ctx), nil
}
