package segment

import (
	"container/heap"
	"fmt"
	"sync"
)

// ParallelReadConfig configures ParallelRead.
type ParallelReadConfig struct {
	Opts       ForEachOpts
	SortOutput bool // true: globally timestamp-ordered via k-way merge; false: unordered fanout for throughput
	BufferSize int  // per-worker channel buffer; 0 means DefaultParallelBuffer
}

// DefaultParallelBuffer bounds per-segment in-memory buffering during a
// parallel read, per spec §4.9's "bounded in-memory buffers" requirement.
const DefaultParallelBuffer = 256

// ParallelRead decodes every segment in readers concurrently, one worker
// goroutine per segment, and delivers events to cb. With SortOutput=true,
// a k-way merge over the per-segment streams guarantees a
// globally timestamp-ordered callback sequence; with SortOutput=false,
// results are delivered as they arrive, unordered, for higher throughput.
// SortOutput is a plain bool, so a zero ParallelReadConfig reads unordered.
func ParallelRead(readers []*Reader, cfg ParallelReadConfig, cb func(Event) bool) error {
	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultParallelBuffer
	}

	if !cfg.SortOutput {
		return parallelUnordered(readers, cfg.Opts, bufSize, cb)
	}
	return parallelMerged(readers, cfg.Opts, bufSize, cb)
}

func parallelUnordered(readers []*Reader, opts ForEachOpts, bufSize int, cb func(Event) bool) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(readers))
	out := make(chan Event, bufSize)
	stop := make(chan struct{})
	var stopOnce sync.Once

	for _, r := range readers {
		wg.Add(1)
		go func(r *Reader) {
			defer wg.Done()
			err := r.ForEach(opts, func(ev Event) bool {
				select {
				case out <- ev:
					return true
				case <-stop:
					return false
				}
			})
			if err != nil {
				errs <- err
			}
		}(r)
	}

	go func() {
		wg.Wait()
		close(out)
		close(errs)
	}()

	var firstErr error
	stopped := false
	for ev := range out {
		if stopped {
			continue
		}
		if !cb(ev) {
			stopped = true
			stopOnce.Do(func() { close(stop) })
		}
	}
	for err := range errs {
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// mergeItem is one buffered event plus which worker it came from, used by
// the k-way merge heap.
type mergeItem struct {
	ev       Event
	workerID int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	return h[i].ev.TimestampNs() < h[j].ev.TimestampNs()
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func parallelMerged(readers []*Reader, opts ForEachOpts, bufSize int, cb func(Event) bool) error {
	n := len(readers)
	channels := make([]chan Event, n)
	errs := make([]error, n)
	var wg sync.WaitGroup

	for i, r := range readers {
		channels[i] = make(chan Event, bufSize)
		wg.Add(1)
		go func(i int, r *Reader) {
			defer wg.Done()
			defer close(channels[i])
			err := r.ForEach(opts, func(ev Event) bool {
				channels[i] <- ev
				return true
			})
			errs[i] = err
		}(i, r)
	}

	h := &mergeHeap{}
	heap.Init(h)
	for i, ch := range channels {
		if ev, ok := <-ch; ok {
			heap.Push(h, mergeItem{ev: ev, workerID: i})
		}
	}

	for h.Len() > 0 {
		item := heap.Pop(h).(mergeItem)
		if !cb(item.ev) {
			break
		}
		if next, ok := <-channels[item.workerID]; ok {
			heap.Push(h, mergeItem{ev: next, workerID: item.workerID})
		}
	}

	// Drain any channels left open after an early cb-initiated stop so the
	// producer goroutines don't block forever on a full buffer.
	for _, ch := range channels {
		for range ch {
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("segment: worker %d: %w", i, err)
		}
	}
	return nil
}

// MapReduce runs fn over every segment independently (one call per
// segment, each seeing only that segment's events) and concatenates the
// results in segment order.
func MapReduce[T any](readers []*Reader, opts ForEachOpts, fn func(*Reader) (T, error)) ([]T, error) {
	results := make([]T, len(readers))
	errs := make([]error, len(readers))
	var wg sync.WaitGroup

	for i, r := range readers {
		wg.Add(1)
		go func(i int, r *Reader) {
			defer wg.Done()
			v, err := fn(r)
			results[i] = v
			errs[i] = err
		}(i, r)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("segment: mapreduce worker %d: %w", i, err)
		}
	}
	return results, nil
}
