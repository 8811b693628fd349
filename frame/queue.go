package frame

import (
	"sync/atomic"

	"github.com/lixenwraith/synapse/parameter"
)

// Queue is a lock-free MPSC ring buffer of analyzed frames
// Thread-Safety:
//   - Push: Lock-free CAS, multiple producers OK
//   - ConsumeUpTo: Single consumer (engine tick)
//   - Published flags prevent reading partial writes
//
// Overflow: Oldest frames overwritten when full, counted in Dropped
type Queue struct {
	frames    [parameter.FrameQueueSize]*AudioFrame
	published [parameter.FrameQueueSize]atomic.Bool // True = slot fully written
	head      atomic.Uint64                         // Read index
	tail      atomic.Uint64                         // Write index
	dropped   atomic.Uint64
}

func NewQueue() *Queue {
	return &Queue{}
}

// Push adds a frame using lock-free CAS with published flags pattern
// Never blocks; producers must not mutate the frame after pushing
func (q *Queue) Push(f *AudioFrame) {
	for {
		currentTail := q.tail.Load()
		nextTail := currentTail + 1

		if q.tail.CompareAndSwap(currentTail, nextTail) {
			idx := currentTail & parameter.FrameBufferMask

			q.frames[idx] = f
			q.published[idx].Store(true) // MUST be after write

			// Advance head past overwritten frames; the mover counts the skipped span
			for {
				currentHead := q.head.Load()
				oldest := nextTail - parameter.FrameQueueSize
				if nextTail-currentHead <= parameter.FrameQueueSize || currentHead >= oldest {
					break
				}
				if q.head.CompareAndSwap(currentHead, oldest) {
					q.dropped.Add(oldest - currentHead)
					break
				}
			}
			return
		}
	}
}

// ConsumeUpTo returns at most limit pending frames in FIFO order and advances head
// Remaining frames stay queued for the next call; returns nil when empty
func (q *Queue) ConsumeUpTo(limit int) []*AudioFrame {
	if limit <= 0 {
		return nil
	}
	for {
		currentHead := q.head.Load()
		currentTail := q.tail.Load()

		if currentTail == currentHead {
			return nil
		}

		available := currentTail - currentHead
		if available > parameter.FrameQueueSize {
			available = parameter.FrameQueueSize
			currentHead = currentTail - parameter.FrameQueueSize
		}
		available = min(available, uint64(limit))

		result := make([]*AudioFrame, 0, available)
		for i := uint64(0); i < available; i++ {
			idx := (currentHead + i) & parameter.FrameBufferMask

			if !q.published[idx].Load() {
				break // Writer incomplete
			}

			result = append(result, q.frames[idx])
		}

		// Slots are released only once head is ours; a lost race leaves them for the retry
		newHead := currentHead + uint64(len(result))
		if q.head.CompareAndSwap(currentHead, newHead) {
			if len(result) == 0 {
				return nil
			}
			for i, f := range result {
				idx := (currentHead + uint64(i)) & parameter.FrameBufferMask
				if q.frames[idx] == f {
					q.frames[idx] = nil
					q.published[idx].Store(false)
				}
			}
			return result
		}
	}
}

// Len returns approximate pending frame count
func (q *Queue) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	if tail <= head {
		return 0
	}
	diff := int(tail - head)
	if diff > parameter.FrameQueueSize {
		return parameter.FrameQueueSize
	}
	return diff
}

// Dropped returns how many unread frames were overwritten
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
