// pcm_queue.go - Bounded hand-off of PCM buffers to the audio device.
//
// The stepping goroutine blocks in WritePCM while the queue is full. The
// device side never blocks: when no buffer is ready it plays silence.

package main

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"
)

type pcmQueue struct {
	ctx     context.Context
	ch      chan []int16
	free    sync.Pool
	current []int16
	offset  int
	closing sync.Once
	drained chan struct{}
	drainMu sync.Once

	underruns atomic.Uint64
}

func newPCMQueue(ctx context.Context, depth int) *pcmQueue {
	if depth < 1 {
		depth = 1
	}
	return &pcmQueue{
		ctx:     ctx,
		ch:      make(chan []int16, depth),
		drained: make(chan struct{}),
	}
}

// WritePCM copies buf into the queue, waiting for room or cancellation.
func (q *pcmQueue) WritePCM(buf []int16) error {
	var block []int16
	if v, ok := q.free.Get().(*[]int16); ok && cap(*v) >= len(buf) {
		block = (*v)[:len(buf)]
	} else {
		block = make([]int16, len(buf))
	}
	copy(block, buf)

	select {
	case q.ch <- block:
		return nil
	case <-q.ctx.Done():
		return q.ctx.Err()
	}
}

// Close ends the stream. Queued buffers are still played.
func (q *pcmQueue) Close() error {
	q.closing.Do(func() { close(q.ch) })
	return nil
}

// Read fills p with interleaved signed 16-bit little-endian stereo frames.
func (q *pcmQueue) Read(p []byte) (int, error) {
	n := 0
	for n+1 < len(p) {
		if q.current == nil {
			select {
			case block, ok := <-q.ch:
				if !ok {
					q.drainMu.Do(func() { close(q.drained) })
					clear(p[n:])
					return len(p), nil
				}
				q.current = block
				q.offset = 0
			default:
				q.underruns.Add(1)
				clear(p[n:])
				return len(p), nil
			}
		}
		for q.offset < len(q.current) && n+1 < len(p) {
			binary.LittleEndian.PutUint16(p[n:], uint16(q.current[q.offset]))
			q.offset++
			n += 2
		}
		if q.offset >= len(q.current) {
			block := q.current
			q.free.Put(&block)
			q.current = nil
		}
	}
	clear(p[n:])
	return len(p), nil
}

// WaitDrained blocks until the device has read every buffer queued before
// Close, or until timeout. It reports whether the queue drained.
func (q *pcmQueue) WaitDrained(timeout time.Duration) bool {
	select {
	case <-q.drained:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Underruns counts the reads that had to be padded with silence.
func (q *pcmQueue) Underruns() uint64 {
	return q.underruns.Load()
}
