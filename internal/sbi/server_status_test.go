package sbi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/free5gc/mme/internal/dispatch"
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

const (
	testImsi     = model.Imsi(123456789)
	testEnodebID = model.EnodebID(1000)
	testMmeID    = model.MmeID(7)
)

var testCgi = model.Cgi{0x01, 0x02, 0x03}

// newRunningServer builds a status server on a started dispatcher and
// attaches one subscriber.
func newRunningServer(t *testing.T) (*StatusServer, *dispatch.Dispatcher) {
	t.Helper()

	historyStore := history.NewMemoryStore(16)
	dispatcher := dispatch.NewDispatcher(
		registry.NewRegistry(nil), northbound.NewLogNotifier(), historyStore,
		16, time.Minute, nil,
	)
	require.NoError(t, dispatcher.Start(context.Background()))
	t.Cleanup(func() {
		stopContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Stop(stopContext)
	})

	require.NoError(t, dispatcher.Enqueue(
		s1ap.NewAttachRequestWithImsi(10000, testImsi, testEnodebID, testCgi)))

	// Wait for the dispatch loop to apply the attach.
	require.Eventually(t, func() bool {
		var subscriberCount int
		inspectError := dispatcher.Inspect(context.Background(), func(subscriberRegistry *registry.Registry) {
			subscriberCount = subscriberRegistry.SubscriberCount()
		})
		return inspectError == nil && subscriberCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	return NewStatusServer(dispatcher, historyStore), dispatcher
}

func get(server *StatusServer, path string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	server.Routes(mux)
	request := httptest.NewRequest(http.MethodGet, path, nil)
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, request)
	return recorder
}

func TestStatusEndpoint(t *testing.T) {
	server, _ := newRunningServer(t)

	recorder := get(server, "/mme/v1/status")
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		SubscriberCount         int `json:"subscriberCount"`
		PendingIdentityRequests int `json:"pendingIdentityRequests"`
		RetainedNotifications   int `json:"retainedNotifications"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))

	assert.Equal(t, 1, response.SubscriberCount)
	assert.Equal(t, 0, response.PendingIdentityRequests)
	assert.Equal(t, 1, response.RetainedNotifications)
}

func TestSubscribersEndpoints(t *testing.T) {
	server, _ := newRunningServer(t)

	recorder := get(server, "/mme/v1/subscribers")
	require.Equal(t, http.StatusOK, recorder.Code)

	var views []registry.SubscriberView
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, testImsi, views[0].Imsi)
	assert.Equal(t, model.StateAttached, views[0].State)

	single := get(server, "/mme/v1/subscribers/123456789")
	require.Equal(t, http.StatusOK, single.Code)

	var view registry.SubscriberView
	require.NoError(t, json.Unmarshal(single.Body.Bytes(), &view))
	assert.Equal(t, testImsi, view.Imsi)

	missing := get(server, "/mme/v1/subscribers/42")
	assert.Equal(t, http.StatusNotFound, missing.Code)

	malformed := get(server, "/mme/v1/subscribers/not-a-number")
	assert.Equal(t, http.StatusBadRequest, malformed.Code)
}

func TestNotificationsEndpoint(t *testing.T) {
	server, _ := newRunningServer(t)

	recorder := get(server, "/mme/v1/notifications?type=Reg")
	require.Equal(t, http.StatusOK, recorder.Code)

	var notifications []northbound.RegistrationNotification
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &notifications))
	require.Len(t, notifications, 1)
	assert.Equal(t, model.OutputReg, notifications[0].Type)
	assert.Equal(t, testImsi, notifications[0].Imsi)

	filtered := get(server, "/mme/v1/notifications?imsi=42")
	require.Equal(t, http.StatusOK, filtered.Code)
	var empty []northbound.RegistrationNotification
	require.NoError(t, json.Unmarshal(filtered.Body.Bytes(), &empty))
	assert.Empty(t, empty)

	badType := get(server, "/mme/v1/notifications?type=Bogus")
	assert.Equal(t, http.StatusBadRequest, badType.Code)

	badLimit := get(server, "/mme/v1/notifications?limit=-1")
	assert.Equal(t, http.StatusBadRequest, badLimit.Code)
}

func TestStatusEndpointsRejectNonGet(t *testing.T) {
	server, _ := newRunningServer(t)

	mux := http.NewServeMux()
	server.Routes(mux)
	request := httptest.NewRequest(http.MethodPost, "/mme/v1/status", nil)
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}
