package audio

import (
	"sync"
	"sync/atomic"
)

// clipQueue is a ring of one-shot clips with a single, lock-free consumer (the audio
// callback). Producers are serialised by a mutex and never wait for space: a push to a
// full queue is dropped.
type clipQueue struct {
	mu          sync.Mutex
	clips       [][]float64
	read, write atomic.Uint32
}

func newClipQueue(size int) *clipQueue {
	if size <= 0 || size&(size-1) != 0 {
		panic("clip queue size must be a power of 2")
	}
	return &clipQueue{clips: make([][]float64, size)}
}

func (q *clipQueue) push(clip []float64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	write := q.write.Load()
	if write-q.read.Load() == uint32(len(q.clips)) {
		return false
	}
	q.clips[write%uint32(len(q.clips))] = clip
	q.write.Store(write + 1)
	return true
}

func (q *clipQueue) pop() ([]float64, bool) {
	read := q.read.Load()
	if read == q.write.Load() {
		return nil, false
	}
	slot := read % uint32(len(q.clips))
	clip := q.clips[slot]
	q.clips[slot] = nil
	q.read.Store(read + 1)
	return clip, true
}

func (q *clipQueue) len() int {
	return int(q.write.Load() - q.read.Load())
}
