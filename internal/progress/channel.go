// Package progress hands progress events from a download worker to the
// streaming consumer without ever blocking the worker.
package progress

import (
	"sync"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
)

// DefaultCapacity bounds the number of pending samples per channel.
const DefaultCapacity = 64

type item struct {
	snap      domain.ProgressSnapshot
	milestone bool
}

// Channel is a bounded, lossy queue of progress events. Samples are dropped
// oldest-first when the queue is full; milestones and terminal events are
// always delivered.
type Channel struct {
	mu       sync.Mutex
	queue    []item
	samples  int
	capacity int
	dropped  uint64
	terminal []domain.ProgressSnapshot
	closed   bool
	done     chan struct{}
}

func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{
		capacity: capacity,
		done:     make(chan struct{}),
	}
}

// Publish enqueues a progress sample. It reports false once the channel is
// finished.
func (c *Channel) Publish(s domain.ProgressSnapshot) bool {
	return c.push(item{snap: s})
}

// Milestone enqueues an event that must reach the consumer, such as a phase
// change or an item boundary.
func (c *Channel) Milestone(s domain.ProgressSnapshot) bool {
	return c.push(item{snap: s, milestone: true})
}

func (c *Channel) push(it item) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if !it.milestone && c.samples >= c.capacity {
		c.dropOldestSample()
	}
	c.queue = append(c.queue, it)
	if !it.milestone {
		c.samples++
	}
	return true
}

func (c *Channel) dropOldestSample() {
	for i := range c.queue {
		if c.queue[i].milestone {
			continue
		}
		c.queue = append(c.queue[:i], c.queue[i+1:]...)
		c.samples--
		c.dropped++
		return
	}
}

// Finish records the terminal events and marks the producer as done. Calls
// after the first are ignored.
func (c *Channel) Finish(terminal ...domain.ProgressSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.terminal = append(c.terminal, terminal...)
	c.closed = true
	close(c.done)
}

// Drain returns every pending event in order. complete is true once the
// producer has finished and nothing remains to deliver.
func (c *Channel) Drain() (batch []domain.ProgressSnapshot, complete bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch = make([]domain.ProgressSnapshot, 0, len(c.queue)+len(c.terminal))
	for _, it := range c.queue {
		batch = append(batch, it.snap)
	}
	c.queue = c.queue[:0]
	c.samples = 0

	if c.closed {
		batch = append(batch, c.terminal...)
		c.terminal = nil
	}
	return batch, c.closed
}

// Done is closed when the producer finishes.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Dropped reports how many samples were discarded.
func (c *Channel) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
