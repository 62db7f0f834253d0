package dispatch

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/free5gc/mme/internal/history"
	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/internal/model"
	"github.com/free5gc/mme/internal/northbound"
	"github.com/free5gc/mme/internal/registry"
	"github.com/free5gc/mme/internal/s1ap"
)

func TestMain(m *testing.M) {
	_ = logger.InitLog("error", false)
	os.Exit(m.Run())
}

// captureNotifier records delivered notifications for inspection.
type captureNotifier struct {
	mutex         sync.Mutex
	notifications []northbound.RegistrationNotification
}

func (notifier *captureNotifier) Notify(
	ctx context.Context,
	notification northbound.RegistrationNotification,
) error {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	notifier.notifications = append(notifier.notifications, notification)
	return nil
}

func (notifier *captureNotifier) snapshot() []northbound.RegistrationNotification {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	return append([]northbound.RegistrationNotification(nil), notifier.notifications...)
}

const (
	testImsi     = model.Imsi(123456789)
	testEnodebID = model.EnodebID(1000)
	testMmeID    = model.MmeID(7)
)

var testCgi = model.Cgi{0x01, 0x02, 0x03}

func TestDispatcherForwardsOutputsInOrder(t *testing.T) {
	notifier := &captureNotifier{}
	historyStore := history.NewMemoryStore(16)
	dispatcher := NewDispatcher(
		registry.NewRegistry(nil), notifier, historyStore, 16, time.Minute, nil,
	)

	require.NoError(t, dispatcher.Start(context.Background()))

	require.NoError(t, dispatcher.Enqueue(
		s1ap.NewAttachRequestWithImsi(10000, testImsi, testEnodebID, testCgi)))
	// Duplicate attach produces no notification.
	require.NoError(t, dispatcher.Enqueue(
		s1ap.NewAttachRequestWithImsi(10100, testImsi, testEnodebID, testCgi)))
	require.NoError(t, dispatcher.Enqueue(
		s1ap.NewUEContextReleaseResponse(10200, testEnodebID, testMmeID)))

	stopContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, dispatcher.Stop(stopContext))

	notifications := notifier.snapshot()
	require.Len(t, notifications, 2)
	assert.Equal(t, model.OutputReg, notifications[0].Type)
	assert.Equal(t, testImsi, notifications[0].Imsi)
	assert.Equal(t, model.Timestamp(10000), notifications[0].Timestamp)
	assert.Equal(t, model.OutputUnReg, notifications[1].Type)
	assert.Equal(t, model.Timestamp(10200), notifications[1].Timestamp)

	assert.Equal(t, 2, historyStore.Len())
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	dispatcher := NewDispatcher(
		registry.NewRegistry(nil), northbound.NewLogNotifier(), nil, 1, time.Minute, nil,
	)

	// The loop is not started, so the single queue slot fills up.
	require.NoError(t, dispatcher.Enqueue(
		s1ap.NewAttachRequestWithImsi(1, testImsi, testEnodebID, testCgi)))
	assert.Equal(t, 1, dispatcher.QueueDepth())

	enqueueError := dispatcher.Enqueue(
		s1ap.NewAttachRequestWithImsi(2, testImsi, testEnodebID, testCgi))
	assert.ErrorIs(t, enqueueError, ErrQueueFull)
}

func TestDispatcherSweepsTimeouts(t *testing.T) {
	clock := func() model.Timestamp { return 10000 }
	dispatcher := NewDispatcher(
		registry.NewRegistry(nil), northbound.NewLogNotifier(), nil, 16,
		5*time.Millisecond, clock,
	)

	require.NoError(t, dispatcher.Start(context.Background()))
	defer func() {
		stopContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Stop(stopContext)
	}()

	// Seed a pending identity procedure through the loop goroutine; its
	// deadline is already behind the fixed clock.
	seedError := dispatcher.Inspect(context.Background(), func(subscriberRegistry *registry.Registry) {
		require.NoError(t, subscriberRegistry.RecordIdentityRequest(testImsi, 5000))
	})
	require.NoError(t, seedError)

	assert.Eventually(t, func() bool {
		var subscriberCount int
		inspectError := dispatcher.Inspect(context.Background(), func(subscriberRegistry *registry.Registry) {
			subscriberCount = subscriberRegistry.SubscriberCount()
		})
		return inspectError == nil && subscriberCount == 0
	}, 2*time.Second, 10*time.Millisecond, "pending attach should be torn down by the sweep")
}

func TestDispatcherDrainsQueueOnStop(t *testing.T) {
	notifier := &captureNotifier{}
	dispatcher := NewDispatcher(
		registry.NewRegistry(nil), notifier, nil, 16, time.Minute, nil,
	)

	// Enqueue before the loop starts, then start and immediately stop;
	// accepted events must still be applied.
	require.NoError(t, dispatcher.Enqueue(
		s1ap.NewAttachRequestWithImsi(10000, testImsi, testEnodebID, testCgi)))

	require.NoError(t, dispatcher.Start(context.Background()))

	stopContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, dispatcher.Stop(stopContext))

	notifications := notifier.snapshot()
	require.Len(t, notifications, 1)
	assert.Equal(t, model.OutputReg, notifications[0].Type)
}
