package estimator

import (
	"sync"

	"github.com/mlo-robotics/mlo-estimator/pointcloud"
)

// frame is one dequeued unit of work: a timestamp plus one feature cloud
// pair per sensor, matching spec.md §6's inputCloud(t, [cloud_per_sensor])
// contract once downstream of the external feature extractor.
type frame struct {
	stamp float64
	surf  []pointcloud.RawCloud
	edge  []pointcloud.RawCloud
}

// featureQueue is the FIFO feature queue of spec.md §5, guarded by its own
// mutex (m_buf) so the ingest side never blocks on the estimator's
// process mutex.
type featureQueue struct {
	mu    sync.Mutex
	items []frame
}

func (q *featureQueue) push(f frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, f)
}

// pop removes and returns the oldest frame, preserving enqueue order.
func (q *featureQueue) pop() (frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return frame{}, false
	}
	f := q.items[0]
	q.items = q.items[1:]
	return f, true
}

func (q *featureQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
