package scheduler

import (
	"fmt"

	"github.com/beeker1121/goque"

	"github.com/icao-pkd/pkd-core/core"
)

// Trigger is one manual/external request to run the daily tick outside its
// normal schedule. Manual triggers bypass the at-most-once-daily guard.
type Trigger struct {
	Source core.TriggerSource
	Reason string
}

// TriggerQueue is a disk-backed FIFO of pending Triggers, so a trigger
// requested moments before a process restart is not silently lost — the
// same durability goal the teacher's own orphaned-certificate backlog
// serves, repurposed here for scheduler triggers instead.
type TriggerQueue struct {
	q *goque.Queue
}

// OpenTriggerQueue opens (or creates) a disk-backed queue rooted at dataDir.
func OpenTriggerQueue(dataDir string) (*TriggerQueue, error) {
	q, err := goque.OpenQueue(dataDir)
	if err != nil {
		return nil, fmt.Errorf("scheduler: open trigger queue at %s: %w", dataDir, err)
	}
	return &TriggerQueue{q: q}, nil
}

// Push enqueues a Trigger for later processing.
func (t *TriggerQueue) Push(trig Trigger) error {
	if _, err := t.q.EnqueueObject(trig); err != nil {
		return fmt.Errorf("scheduler: enqueue trigger: %w", err)
	}
	return nil
}

// Pop dequeues the oldest pending Trigger. Returns (Trigger{}, false, nil)
// when the queue is empty.
func (t *TriggerQueue) Pop() (Trigger, bool, error) {
	item, err := t.q.Dequeue()
	if err == goque.ErrEmpty {
		return Trigger{}, false, nil
	}
	if err != nil {
		return Trigger{}, false, fmt.Errorf("scheduler: dequeue trigger: %w", err)
	}
	var trig Trigger
	if err := item.ToObject(&trig); err != nil {
		return Trigger{}, false, fmt.Errorf("scheduler: decode trigger: %w", err)
	}
	return trig, true, nil
}

// Close releases the underlying on-disk queue.
func (t *TriggerQueue) Close() error {
	return t.q.Close()
}
