package session

import (
	"sync"

	"github.com/thevaultgame/vault-auth-client/api"
)

// userCache is a single current-value holder with latest-value broadcast:
// subscribers get the cached value replayed on subscribe and then only the
// most recent publish. A slow consumer's buffered value is swapped out,
// never queued behind.
type userCache struct {
	mu          sync.Mutex
	user        *api.User
	subscribers map[int]chan *api.User
	nextID      int
}

func newUserCache() *userCache {
	return &userCache{
		subscribers: make(map[int]chan *api.User),
	}
}

func (c *userCache) current() *api.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *userCache) publish(user *api.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.user = user
	for _, ch := range c.subscribers {
		// Swap out an unconsumed value so the channel always holds the latest.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- user:
		default:
		}
	}
}

func (c *userCache) subscribe() (<-chan *api.User, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++

	ch := make(chan *api.User, 1)
	ch <- c.user // Replay the latest value
	c.subscribers[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}
