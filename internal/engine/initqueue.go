package engine

import (
	"sync"

	"github.com/sourcegraph/conc"
)

// initQueue serializes strategy initialization on one worker goroutine so a
// slow history load never stalls event dispatch and two inits never overlap.
type initQueue struct {
	tasks     chan func()
	wg        conc.WaitGroup
	closeOnce sync.Once
}

func newInitQueue(depth int) *initQueue {
	if depth <= 0 {
		depth = 16
	}
	q := &initQueue{tasks: make(chan func(), depth)}
	q.wg.Go(q.run)
	return q
}

func (q *initQueue) run() {
	for task := range q.tasks {
		task()
	}
}

// enqueue submits a task, reporting false when the queue is full.
func (q *initQueue) enqueue(task func()) bool {
	select {
	case q.tasks <- task:
		return true
	default:
		return false
	}
}

// close drains outstanding tasks and stops the worker.
func (q *initQueue) close() {
	q.closeOnce.Do(func() {
		close(q.tasks)
		q.wg.Wait()
	})
}
