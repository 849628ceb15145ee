package game

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	eventBufferSize    = 1024 // circular buffer slots
	maxEventsPerSec    = 10000
	batchFlushSize     = 64
	batchFlushInterval = 100 * time.Millisecond
)

// EventLog provides bounded, rate-limited logging of movement events with
// an async writer, so replay capture never stalls the tick. Events are
// dropped (and counted) under backpressure rather than blocking.
type EventLog struct {
	buffer    [eventBufferSize]Event
	writeHead atomic.Uint64
	readHead  uint64 // writer goroutine only

	limiter *rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	fileMu sync.Mutex

	dropped atomic.Uint64
	total   atomic.Uint64
}

// NewEventLog creates an event log; call Start to begin persisting.
func NewEventLog() *EventLog {
	return &EventLog{
		limiter:  rate.NewLimiter(maxEventsPerSec, maxEventsPerSec/10),
		stopChan: make(chan struct{}),
	}
}

// Start opens the output file and begins the async writer.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() || filePath == "" {
		return nil
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	el.file = file

	el.running.Store(true)
	el.writerWg.Add(1)
	go el.writerLoop()
	return nil
}

// Stop flushes and shuts the writer down.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Load() {
			return
		}
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit records an event. Non-blocking; drops under rate limiting or a
// full buffer.
func (el *EventLog) Emit(ev Event) {
	if !el.running.Load() {
		return
	}
	if !el.limiter.Allow() {
		el.dropped.Add(1)
		return
	}
	head := el.writeHead.Load()
	if head-atomic.LoadUint64(&el.readHead) >= eventBufferSize {
		el.dropped.Add(1)
		return
	}
	el.buffer[head%eventBufferSize] = ev
	el.writeHead.Store(head + 1)
	el.total.Add(1)
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()
	ticker := time.NewTicker(batchFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			el.flush()
		case <-el.stopChan:
			el.flush()
			return
		}
	}
}

func (el *EventLog) flush() {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()
	if el.file == nil {
		return
	}

	head := el.writeHead.Load()
	n := 0
	for atomic.LoadUint64(&el.readHead) < head && n < batchFlushSize {
		ev := el.buffer[atomic.LoadUint64(&el.readHead)%eventBufferSize]
		if b, err := json.Marshal(ev); err == nil {
			el.file.Write(append(b, '\n'))
		}
		atomic.AddUint64(&el.readHead, 1)
		n++
	}
}

// Stats reports totals for ops monitoring.
func (el *EventLog) Stats() (total, dropped uint64) {
	return el.total.Load(), el.dropped.Load()
}
