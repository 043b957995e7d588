package bot

import (
	"sync"

	"github.com/ivanoskov/sheets_bot/internal/model"
)

// conversations owns the per-user pending transactions and the per-user
// locks serializing conversation events. A button press and a stray
// text message from the same user never interleave.
type conversations struct {
	mu      sync.Mutex
	pending map[int64]*model.PendingTransaction
	locks   map[int64]*sync.Mutex
}

func newConversations() *conversations {
	return &conversations{
		pending: make(map[int64]*model.PendingTransaction),
		locks:   make(map[int64]*sync.Mutex),
	}
}

// userLock returns the mutex serializing one user's events.
func (c *conversations) userLock(userID int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[userID] = lock
	}
	return lock
}

// get returns the user's pending transaction, or nil. Absence of a
// pending transaction is what "Idle" means.
func (c *conversations) get(userID int64) *model.PendingTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[userID]
}

// put installs a fresh pending transaction, replacing any previous one.
func (c *conversations) put(p *model.PendingTransaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[p.UserID] = p
}

// destroy removes the user's pending transaction.
func (c *conversations) destroy(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, userID)
}
