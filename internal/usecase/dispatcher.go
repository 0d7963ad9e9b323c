package usecase

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"ArbPull/internal/domain/models"
	"ArbPull/internal/domain/repository"
	applogger "ArbPull/pkg/logger"
)

// ErrQueueFull means the dispatcher queue has no room for another unit.
var ErrQueueFull = errors.New("dispatcher: queue is full")

// ErrStopped means the dispatcher no longer accepts work.
var ErrStopped = errors.New("dispatcher: stopped")

// Evaluator computes opportunities for one game.
type Evaluator interface {
	Evaluate(game models.Game, totalStake, minMargin float64) []models.ArbitrageOpportunity
}

// Handle tracks one submitted calculation unit through its lifecycle.
// State transitions go through CAS so a cancel racing a worker settles
// exactly one winner.
type Handle struct {
	unit       models.CalculationUnit
	state      atomic.Int32
	cancelCh   chan struct{}
	cancelOnce sync.Once
	done       chan models.UnitResult
	cancelled  *atomic.Int64 // pool counter, shared with the dispatcher
}

// State returns the unit's current lifecycle state.
func (h *Handle) State() models.UnitState {
	return models.UnitState(h.state.Load())
}

// Done delivers exactly one result when the unit reaches a terminal state.
func (h *Handle) Done() <-chan models.UnitResult {
	return h.done
}

// Cancel requests cancellation. Queued units settle immediately; running
// units stop at their next checkpoint. Terminal units are unaffected.
func (h *Handle) Cancel() {
	if h.state.CompareAndSwap(int32(models.UnitQueued), int32(models.UnitCancelled)) {
		h.cancelOnce.Do(func() { close(h.cancelCh) })
		if h.cancelled != nil {
			h.cancelled.Add(1)
		}
		h.done <- models.UnitResult{GameID: h.unit.Game.ID, State: models.UnitCancelled}
		return
	}
	if h.State() == models.UnitDispatched {
		h.cancelOnce.Do(func() { close(h.cancelCh) })
	}
}

// Dispatcher runs arbitrage evaluation on a fixed worker pool. Units are
// queued, picked up by workers, and settle in exactly one terminal state.
type Dispatcher struct {
	engine      Evaluator
	workers     int
	unitTimeout time.Duration
	metrics     repository.Metrics
	logger      *applogger.Logger

	queue    chan *Handle
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	dispatched atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	cancelled  atomic.Int64
	timedOut   atomic.Int64
	respawns   atomic.Int64
}

// DispatcherOption configures Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkers sets the worker count. Zero means NumCPU/2 clamped to [2,8].
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan *Handle, n)
		}
	}
}

// WithUnitTimeout bounds the time one unit may compute.
func WithUnitTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.unitTimeout = t
		}
	}
}

// NewDispatcher creates a dispatcher. Call Start before submitting.
func NewDispatcher(engine Evaluator, metrics repository.Metrics, logger *applogger.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		engine:      engine,
		workers:     defaultWorkers(),
		unitTimeout: 30 * time.Second,
		metrics:     metrics,
		logger:      logger.With("dispatcher"),
		queue:       make(chan *Handle, 256),
		stopCh:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func defaultWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 2 {
		n = 2
	}
	if n > 8 {
		n = 8
	}
	return n
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("dispatcher started", applogger.Int("workers", d.workers))
}

// Stop drains nothing: queued units settle as cancelled, workers finish
// their current unit and exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	d.wg.Wait()

	for {
		select {
		case h := <-d.queue:
			h.Cancel()
		default:
			return
		}
	}
}

// Submit queues one unit. Returns ErrQueueFull when the queue has no room.
func (d *Dispatcher) Submit(unit models.CalculationUnit) (*Handle, error) {
	select {
	case <-d.stopCh:
		return nil, ErrStopped
	default:
	}

	h := &Handle{
		unit:      unit,
		cancelCh:  make(chan struct{}),
		done:      make(chan models.UnitResult, 1),
		cancelled: &d.cancelled,
	}
	h.state.Store(int32(models.UnitQueued))

	select {
	case d.queue <- h:
		return h, nil
	default:
		return nil, ErrQueueFull
	}
}

// Stats returns a snapshot of pool counters.
func (d *Dispatcher) Stats() models.PoolStats {
	return models.PoolStats{
		Workers:    d.workers,
		QueueDepth: len(d.queue),
		Dispatched: d.dispatched.Load(),
		Completed:  d.completed.Load(),
		Failed:     d.failed.Load(),
		Cancelled:  d.cancelled.Load(),
		TimedOut:   d.timedOut.Load(),
		Respawns:   d.respawns.Load(),
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	defer func() {
		// A worker that dies outside the guarded compute path gets
		// replaced so the pool never shrinks.
		if r := recover(); r != nil {
			d.respawns.Add(1)
			d.logger.Error("worker crashed, respawning",
				applogger.Int("worker", id),
				applogger.Any("panic", r),
			)
			d.wg.Add(1)
			go d.worker(id)
		}
	}()

	for {
		select {
		case <-d.stopCh:
			return
		case h := <-d.queue:
			d.run(h)
		}
	}
}

func (d *Dispatcher) run(h *Handle) {
	if !h.state.CompareAndSwap(int32(models.UnitQueued), int32(models.UnitDispatched)) {
		return // cancelled while queued, already settled
	}
	d.dispatched.Add(1)
	d.publishGauges()

	start := time.Now()
	innerDone := make(chan models.UnitResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				innerDone <- models.UnitResult{
					GameID: h.unit.Game.ID,
					State:  models.UnitFailed,
					Err:    fmt.Errorf("evaluation panic: %v", r),
				}
			}
		}()

		opps := d.engine.Evaluate(h.unit.Game, h.unit.TotalStake, h.unit.MinMargin)
		innerDone <- models.UnitResult{
			GameID:        h.unit.Game.ID,
			State:         models.UnitCompleted,
			Opportunities: opps,
		}
	}()

	timer := time.NewTimer(d.unitTimeout)
	defer timer.Stop()

	var result models.UnitResult
	select {
	case result = <-innerDone:
	case <-h.cancelCh:
		result = models.UnitResult{GameID: h.unit.Game.ID, State: models.UnitCancelled}
	case <-timer.C:
		result = models.UnitResult{
			GameID: h.unit.Game.ID,
			State:  models.UnitTimedOut,
			Err:    fmt.Errorf("unit exceeded %s", d.unitTimeout),
		}
	}

	result.Elapsed = time.Since(start)
	d.settle(h, result)
}

func (d *Dispatcher) settle(h *Handle, result models.UnitResult) {
	if !h.state.CompareAndSwap(int32(models.UnitDispatched), int32(result.State)) {
		return // lost the race to another terminal transition
	}

	switch result.State {
	case models.UnitCompleted:
		d.completed.Add(1)
	case models.UnitFailed:
		d.failed.Add(1)
		d.metrics.RecordError("unit_failed")
	case models.UnitCancelled:
		d.cancelled.Add(1)
	case models.UnitTimedOut:
		d.timedOut.Add(1)
		d.metrics.RecordError("unit_timeout")
	}

	d.metrics.ObserveLatency("unit_evaluate", result.Elapsed)
	d.publishGauges()
	h.done <- result
}

func (d *Dispatcher) publishGauges() {
	d.metrics.SetPoolGauge("queued", len(d.queue))
	d.metrics.SetPoolGauge("completed", int(d.completed.Load()))
	d.metrics.SetPoolGauge("failed", int(d.failed.Load()))
}
