// Package response matches ring slots to the callers waiting on them.
package response

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gobeyondidentity/ipclink/pkg/message"
)

// ErrSlotBusy is returned when a slot still holds an unresolved completion.
// It means slot ownership was violated and is never expected in normal operation.
var ErrSlotBusy = errors.New("response: slot busy")

// Completion is the record a caller waits on. It is resolved exactly once.
type Completion struct {
	once   sync.Once
	done   chan struct{}
	status message.Status
}

// NewCompletion returns an unresolved completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Done is closed once the completion is resolved.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Status returns the resolved status, or StatusInvalid while still pending.
func (c *Completion) Status() message.Status {
	select {
	case <-c.done:
		return c.status
	default:
		return message.StatusInvalid
	}
}

// Wait blocks until the completion resolves or timeout elapses.
func (c *Completion) Wait(timeout time.Duration) (message.Status, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return c.status, true
	case <-timer.C:
		return message.StatusInvalid, false
	}
}

func (c *Completion) resolve(s message.Status) bool {
	resolved := false
	c.once.Do(func() {
		c.status = s
		close(c.done)
		resolved = true
	})
	return resolved
}

// Table holds one optional completion per ring slot.
type Table struct {
	mu      sync.Mutex
	slots   []*Completion
	pending int
}

// NewTable returns a table with size slots.
func NewTable(size int) *Table {
	return &Table{slots: make([]*Completion, size)}
}

// Register binds c to slot. A nil completion leaves the slot untracked.
func (t *Table) Register(slot uint32, c *Completion) error {
	if int(slot) >= len(t.slots) {
		return fmt.Errorf("response: slot %d out of range", slot)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.slots[slot] != nil {
		return fmt.Errorf("%w: slot %d", ErrSlotBusy, slot)
	}
	if c == nil {
		return nil
	}
	t.slots[slot] = c
	t.pending++
	return nil
}

// Resolve completes the record bound to slot with status and frees the slot.
// It reports whether a record was resolved; unbound slots are a no-op.
func (t *Table) Resolve(slot uint32, status message.Status) bool {
	if int(slot) >= len(t.slots) {
		return false
	}
	t.mu.Lock()
	c := t.slots[slot]
	if c == nil {
		t.mu.Unlock()
		return false
	}
	t.slots[slot] = nil
	t.pending--
	t.mu.Unlock()

	return c.resolve(status)
}

// Expire resolves slot with status only while c is still the record bound to
// it. The timeout path uses it so a slot reused after a late completion is
// left alone.
func (t *Table) Expire(slot uint32, c *Completion, status message.Status) bool {
	if int(slot) >= len(t.slots) || c == nil {
		return false
	}
	t.mu.Lock()
	if t.slots[slot] != c {
		t.mu.Unlock()
		return false
	}
	t.slots[slot] = nil
	t.pending--
	t.mu.Unlock()

	return c.resolve(status)
}

// ResolveAll completes every bound record with status and returns how many there were.
func (t *Table) ResolveAll(status message.Status) int {
	t.mu.Lock()
	var bound []*Completion
	for i, c := range t.slots {
		if c != nil {
			bound = append(bound, c)
			t.slots[i] = nil
		}
	}
	t.pending = 0
	t.mu.Unlock()

	for _, c := range bound {
		c.resolve(status)
	}
	return len(bound)
}

// Pending returns the number of bound, unresolved records.
func (t *Table) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
