//go:build headless

package main

import (
	"sync"
	"time"
)

// OtoPlayer without a device drains the queue in real time so the stepping
// loop keeps its pace.
type OtoPlayer struct {
	sampleRate int
	queue      *pcmQueue
	started    bool
	stop       chan struct{}
	done       chan struct{}
	mutex      sync.Mutex
}

func NewOtoPlayer(sampleRate int, bufferFrames int) (*OtoPlayer, error) {
	return &OtoPlayer{sampleRate: sampleRate}, nil
}

func (op *OtoPlayer) SetupPlayer(queue *pcmQueue) {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	op.queue = queue
}

func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	if op.queue == nil {
		clear(p)
		return len(p), nil
	}
	return op.queue.Read(p)
}

func (op *OtoPlayer) Start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.started {
		return
	}
	op.started = true
	op.stop = make(chan struct{})
	op.done = make(chan struct{})
	go op.drain(op.stop, op.done)
}

func (op *OtoPlayer) drain(stop, done chan struct{}) {
	defer close(done)
	const period = 10 * time.Millisecond
	buf := make([]byte, op.sampleRate*4/100)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			op.Read(buf)
		}
	}
}

func (op *OtoPlayer) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if !op.started {
		return
	}
	close(op.stop)
	<-op.done
	op.started = false
}

func (op *OtoPlayer) Close() {
	op.Stop()
}

func (op *OtoPlayer) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}
