package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher hands confirmations to a small worker pool. Dispatch never
// blocks: when the queue is full the confirmation is dropped and logged.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	log     zerolog.Logger

	queue chan BookingConfirmation
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sink Sink, workers, queueSize int, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	d := &Dispatcher{
		sink:    sink,
		timeout: timeout,
		log:     log,
		queue:   make(chan BookingConfirmation, queueSize),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) Dispatch(msg BookingConfirmation) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn().Str("recipient", msg.Recipient).Msg("dispatcher closed, dropping booking confirmation")
		return
	}

	select {
	case d.queue <- msg:
	default:
		d.log.Warn().Str("recipient", msg.Recipient).Msg("notification queue full, dropping booking confirmation")
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for msg := range d.queue {
		d.send(msg)
	}
}

func (d *Dispatcher) send(msg BookingConfirmation) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Send(ctx, msg); err != nil {
		d.log.Warn().Err(err).Str("recipient", msg.Recipient).Msg("booking confirmation failed")
		return
	}
	d.log.Debug().Str("recipient", msg.Recipient).Time("start_at", msg.StartAt).Msg("booking confirmation sent")
}

// Close stops accepting confirmations and waits for queued ones until ctx
// is done, then closes the sink.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.log.Warn().Int("pending", len(d.queue)).Msg("gave up draining notification queue")
	}

	return d.sink.Close()
}

// LogSink only logs. Used when no notification transport is configured.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Send(_ context.Context, msg BookingConfirmation) error {
	s.Log.Warn().Str("recipient", msg.Recipient).Msg("notification transport not configured; skipping booking confirmation")
	return nil
}

func (LogSink) Close() error { return nil }
