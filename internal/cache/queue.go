package cache

import (
	"github.com/google/btree"
)

// request is one pending load. All futures asking for the same key attach to it.
type request struct {
	id       string
	key      string
	priority int
	seq      uint64
	queued   bool
	waiters  []*Future
}

// requestLess orders higher priorities first and earlier requests first within a priority.
func requestLess(a, b *request) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq < b.seq
}

// requestQueue holds requests waiting for a worker. It is guarded by the cache mutex.
type requestQueue struct {
	tree *btree.BTreeG[*request]
}

func newRequestQueue() *requestQueue {
	return &requestQueue{tree: btree.NewG[*request](8, requestLess)}
}

func (q *requestQueue) Len() int {
	return q.tree.Len()
}

func (q *requestQueue) push(r *request) {
	r.queued = true
	q.tree.ReplaceOrInsert(r)
}

// pop removes the most urgent request.
func (q *requestQueue) pop() (*request, bool) {
	r, ok := q.tree.DeleteMin()
	if ok {
		r.queued = false
	}
	return r, ok
}

// remove takes r out of the queue, reporting whether it was queued.
func (q *requestQueue) remove(r *request) bool {
	if !r.queued {
		return false
	}
	q.tree.Delete(r)
	r.queued = false
	return true
}

// raise lifts r to priority if that is higher. r keeps its place among requests of the
// new priority by its original sequence number.
func (q *requestQueue) raise(r *request, priority int) {
	if priority <= r.priority {
		return
	}
	if !r.queued {
		r.priority = priority
		return
	}
	q.tree.Delete(r)
	r.priority = priority
	q.tree.ReplaceOrInsert(r)
}

// drain empties the queue and returns its requests in service order.
func (q *requestQueue) drain() []*request {
	requests := make([]*request, 0, q.tree.Len())
	q.tree.Ascend(func(r *request) bool {
		r.queued = false
		requests = append(requests, r)
		return true
	})
	q.tree.Clear(false)
	return requests
}
