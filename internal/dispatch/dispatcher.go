// Package dispatch implements the single-writer event loop that owns the
// subscriber registry.
//
// The registry itself performs no locking (it is a plain synchronous state
// machine), so every mutation must come from one goroutine. The dispatcher
// provides that goroutine:
//   - Producers enqueue decoded S1AP events through Enqueue
//   - The loop applies them to the registry in arrival order
//   - Non-nil outputs are recorded in the history buffer and forwarded to
//     the northbound Notifier
//   - A periodic tick drives Registry.HandleTimeouts with a monotonic clock
//   - Read-only registry access (status API, tests) is relayed onto the
//     loop goroutine through Inspect.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/free5gc/mme/internal/history"
	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/internal/model"
	"github.com/free5gc/mme/internal/northbound"
	"github.com/free5gc/mme/internal/registry"
	"github.com/free5gc/mme/internal/s1ap"
)

// ErrQueueFull is returned by Enqueue when the event queue is saturated.
var ErrQueueFull = errors.New("event queue full")

// ErrNotStarted is returned by Inspect when the loop is not running.
var ErrNotStarted = errors.New("dispatcher not started")

// Clock supplies the monotonic timestamp used for timeout sweeps. The
// default derives milliseconds from the wall clock; deployments feeding
// event timestamps from another time base should supply a matching clock.
type Clock func() model.Timestamp

// DefaultClock returns the wall clock in milliseconds.
func DefaultClock() model.Timestamp {
	return model.Timestamp(time.Now().UnixMilli())
}

// Dispatcher owns the registry and serializes all access to it.
type Dispatcher struct {
	subscriberRegistry *registry.Registry
	notifier           northbound.Notifier
	historyStore       history.Store

	sweepInterval time.Duration
	clock         Clock

	eventChannel   chan s1ap.Event
	inspectChannel chan func(*registry.Registry)

	startStopMutex sync.Mutex
	started        bool
	stopChannel    chan struct{}
	stoppedChannel chan struct{}
}

// NewDispatcher creates a dispatcher around the given registry.
//
// Parameters:
//   - subscriberRegistry: the engine; the dispatcher becomes its only writer
//   - notifier:           delivery mechanism for registration notifications
//   - historyStore:       bounded record of emitted notifications; may be nil
//   - queueSize:          capacity of the event queue (minimum 1)
//   - sweepInterval:      cadence of HandleTimeouts ticks; if <= 0, a
//     one-second default is applied
//   - clock:              monotonic timestamp source; nil uses DefaultClock
func NewDispatcher(
	subscriberRegistry *registry.Registry,
	notifier northbound.Notifier,
	historyStore history.Store,
	queueSize int,
	sweepInterval time.Duration,
	clock Clock,
) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Second
	}
	if clock == nil {
		clock = DefaultClock
	}

	return &Dispatcher{
		subscriberRegistry: subscriberRegistry,
		notifier:           notifier,
		historyStore:       historyStore,
		sweepInterval:      sweepInterval,
		clock:              clock,
		eventChannel:       make(chan s1ap.Event, queueSize),
		inspectChannel:     make(chan func(*registry.Registry)),
		stopChannel:        make(chan struct{}),
		stoppedChannel:     make(chan struct{}),
	}
}

// Start launches the dispatch loop in a background goroutine. It returns
// immediately after successful start. Cancellation is signalled via Stop().
func (dispatcher *Dispatcher) Start(ctx context.Context) error {
	dispatcher.startStopMutex.Lock()
	defer dispatcher.startStopMutex.Unlock()

	if dispatcher.started {
		logger.DispatchLog.Warn("Dispatcher.Start called more than once; ignoring subsequent call")
		return nil
	}

	dispatcher.started = true

	go dispatcher.runLoop()

	logger.DispatchLog.Info("Dispatcher started")
	return nil
}

// Stop requests the dispatch loop to stop and waits for it to exit. Events
// still queued when Stop is called are drained before the loop exits. It is
// safe to call Stop multiple times.
func (dispatcher *Dispatcher) Stop(ctx context.Context) error {
	dispatcher.startStopMutex.Lock()
	defer dispatcher.startStopMutex.Unlock()

	if !dispatcher.started {
		return nil
	}

	select {
	case <-dispatcher.stopChannel:
		// Already closing or closed.
	default:
		close(dispatcher.stopChannel)
	}

	select {
	case <-dispatcher.stoppedChannel:
	case <-ctx.Done():
		return ctx.Err()
	}

	dispatcher.started = false
	logger.DispatchLog.Info("Dispatcher stopped")
	return nil
}

// Enqueue hands one event to the dispatch loop. It never blocks; when the
// queue is saturated it returns ErrQueueFull and the caller decides whether
// to retry or surface backpressure.
func (dispatcher *Dispatcher) Enqueue(event s1ap.Event) error {
	select {
	case dispatcher.eventChannel <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of events waiting in the queue.
func (dispatcher *Dispatcher) QueueDepth() int {
	return len(dispatcher.eventChannel)
}

// Inspect runs the given function on the dispatch goroutine with exclusive
// access to the registry, and waits for it to finish. The function must not
// retain the registry beyond the call.
func (dispatcher *Dispatcher) Inspect(ctx context.Context, inspect func(*registry.Registry)) error {
	dispatcher.startStopMutex.Lock()
	running := dispatcher.started
	dispatcher.startStopMutex.Unlock()
	if !running {
		return ErrNotStarted
	}

	doneChannel := make(chan struct{})
	relayed := func(subscriberRegistry *registry.Registry) {
		inspect(subscriberRegistry)
		close(doneChannel)
	}

	select {
	case dispatcher.inspectChannel <- relayed:
	case <-dispatcher.stoppedChannel:
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-doneChannel:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop is the single writer. It exits when stopChannel is closed and the
// event queue has been drained.
func (dispatcher *Dispatcher) runLoop() {
	defer close(dispatcher.stoppedChannel)

	sweepTicker := time.NewTicker(dispatcher.sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case event := <-dispatcher.eventChannel:
			dispatcher.applyEvent(event)

		case inspect := <-dispatcher.inspectChannel:
			inspect(dispatcher.subscriberRegistry)

		case <-sweepTicker.C:
			dispatcher.sweepTimeouts()

		case <-dispatcher.stopChannel:
			dispatcher.drainQueuedEvents()
			return
		}
	}
}

// applyEvent feeds one event through the registry and forwards any
// resulting notification.
func (dispatcher *Dispatcher) applyEvent(event s1ap.Event) {
	output, handleError := dispatcher.subscriberRegistry.Handle(event)
	if handleError != nil {
		logger.DispatchLog.Warnf(
			"event type=%s ts=%d rejected: %v",
			event.Type(), event.Timestamp(), handleError,
		)
		return
	}

	if output == nil {
		return
	}

	notification := northbound.NotificationFromOutput(*output, event.Timestamp())

	if dispatcher.historyStore != nil {
		if appendError := dispatcher.historyStore.Append(context.Background(), notification); appendError != nil {
			logger.DispatchLog.Warnf("failed to record notification in history: %v", appendError)
		}
	}

	if notifyError := dispatcher.notifier.Notify(context.Background(), notification); notifyError != nil {
		logger.DispatchLog.Warnf(
			"failed to deliver notification type=%s imsi=%d: %v",
			notification.Type, notification.Imsi, notifyError,
		)
	}
}

// sweepTimeouts runs one HandleTimeouts pass with the configured clock.
func (dispatcher *Dispatcher) sweepTimeouts() {
	sweptCount := dispatcher.subscriberRegistry.HandleTimeouts(dispatcher.clock())
	if sweptCount > 0 {
		logger.DispatchLog.Infof("timeout sweep tore down %d pending attach(es)", sweptCount)
	}
}

// drainQueuedEvents applies events that were accepted before Stop so no
// acknowledged event is silently lost.
func (dispatcher *Dispatcher) drainQueuedEvents() {
	for {
		select {
		case event := <-dispatcher.eventChannel:
			dispatcher.applyEvent(event)
		default:
			return
		}
	}
}
