package store

import "github.com/acunetix2/sysmonitor/pkg/models"

// ring is a fixed-capacity FIFO of snapshots. It is not safe for concurrent use;
// familyBuffer guards it.
type ring struct {
	buf   []models.Snapshot
	head  int // index of the oldest element
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]models.Snapshot, capacity)}
}

// push appends s, overwriting the oldest entry when full. It reports whether an entry was evicted.
func (r *ring) push(s models.Snapshot) bool {
	capacity := len(r.buf)
	if r.count < capacity {
		r.buf[(r.head+r.count)%capacity] = s
		r.count++
		return false
	}

	r.buf[r.head] = s
	r.head = (r.head + 1) % capacity
	return true
}

// last returns the newest element
func (r *ring) last() (models.Snapshot, bool) {
	if r.count == 0 {
		return models.Snapshot{}, false
	}
	return r.buf[(r.head+r.count-1)%len(r.buf)], true
}

// snapshot copies the contents oldest to newest
func (r *ring) snapshot() []models.Snapshot {
	out := make([]models.Snapshot, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)].Clone()
	}
	return out
}

func (r *ring) len() int {
	return r.count
}
