package southbound

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/free5gc/mme/internal/dispatch"
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

func newTestReceiver(t *testing.T, queueSize int) (*S1apReceiver, *dispatch.Dispatcher) {
	t.Helper()
	dispatcher := dispatch.NewDispatcher(
		registry.NewRegistry(nil), northbound.NewLogNotifier(), nil,
		queueSize, time.Minute, nil,
	)
	return NewS1apReceiver(dispatcher), dispatcher
}

func postEvent(receiver *S1apReceiver, path string, body string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	receiver.HandleEventReport(recorder, request)
	return recorder
}

func TestHandleEventReportAcceptsAttachRequest(t *testing.T) {
	receiver, dispatcher := newTestReceiver(t, 16)

	recorder := postEvent(receiver, "/s1ap/v1/events/enb-1", `{
		"type": "AttachRequest",
		"timestamp": 10000,
		"imsi": 123456789,
		"enodebId": 1000,
		"cgi": "AQID"
	}`)

	assert.Equal(t, http.StatusAccepted, recorder.Code)
	assert.Equal(t, 1, dispatcher.QueueDepth())
}

func TestHandleEventReportRejectsMalformedRequests(t *testing.T) {
	receiver, _ := newTestReceiver(t, 16)

	t.Run("wrong method", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/s1ap/v1/events/enb-1", nil)
		recorder := httptest.NewRecorder()
		receiver.HandleEventReport(recorder, request)
		assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
	})

	t.Run("missing enbId", func(t *testing.T) {
		recorder := postEvent(receiver, "/s1ap/v1/events/", `{}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		recorder := postEvent(receiver, "/s1ap/v1/events/enb-1", `{not json`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("unknown event type", func(t *testing.T) {
		recorder := postEvent(receiver, "/s1ap/v1/events/enb-1", `{
			"type": "DetachRequest",
			"timestamp": 1
		}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("attach request with both identities", func(t *testing.T) {
		recorder := postEvent(receiver, "/s1ap/v1/events/enb-1", `{
			"type": "AttachRequest",
			"timestamp": 1,
			"imsi": 123456789,
			"mTmsi": 1000,
			"enodebId": 1,
			"cgi": "AQID"
		}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("attach request without cgi", func(t *testing.T) {
		recorder := postEvent(receiver, "/s1ap/v1/events/enb-1", `{
			"type": "AttachRequest",
			"timestamp": 1,
			"imsi": 123456789,
			"enodebId": 1
		}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestHandleEventReportSignalsBackpressure(t *testing.T) {
	receiver, _ := newTestReceiver(t, 1)

	body := `{
		"type": "Paging",
		"timestamp": 1,
		"mTmsi": 1000,
		"cgi": "AQID"
	}`

	first := postEvent(receiver, "/s1ap/v1/events/enb-1", body)
	require.Equal(t, http.StatusAccepted, first.Code)

	second := postEvent(receiver, "/s1ap/v1/events/enb-1", body)
	assert.Equal(t, http.StatusServiceUnavailable, second.Code)
}

func TestBuildEventCoversAllTypes(t *testing.T) {
	imsi := model.Imsi(123456789)
	mTmsi := model.MTmsi(1000)
	enodebID := model.EnodebID(1)
	mmeID := model.MmeID(7)
	cgi := []byte{0x01, 0x02, 0x03}

	testCases := []struct {
		name    string
		message eventMessage
	}{
		{
			"attach request with imsi",
			eventMessage{Type: model.EventAttachRequest, Timestamp: 1, Imsi: &imsi, EnodebID: &enodebID, Cgi: cgi},
		},
		{
			"attach request with mTmsi",
			eventMessage{Type: model.EventAttachRequest, Timestamp: 1, MTmsi: &mTmsi, EnodebID: &enodebID, Cgi: cgi},
		},
		{
			"identity response",
			eventMessage{Type: model.EventIdentityResponse, Timestamp: 1, Imsi: &imsi, EnodebID: &enodebID, MmeID: &mmeID, Cgi: cgi},
		},
		{
			"attach accept",
			eventMessage{Type: model.EventAttachAccept, Timestamp: 1, EnodebID: &enodebID, MmeID: &mmeID, MTmsi: &mTmsi},
		},
		{
			"paging",
			eventMessage{Type: model.EventPaging, Timestamp: 1, MTmsi: &mTmsi, Cgi: cgi},
		},
		{
			"path switch request",
			eventMessage{Type: model.EventPathSwitchRequest, Timestamp: 1, EnodebID: &enodebID, MmeID: &mmeID, Cgi: cgi},
		},
		{
			"path switch request acknowledge",
			eventMessage{Type: model.EventPathSwitchRequestAcknowledge, Timestamp: 1, EnodebID: &enodebID, MmeID: &mmeID},
		},
		{
			"ue context release command",
			eventMessage{Type: model.EventUEContextReleaseCommand, Timestamp: 1, EnodebID: &enodebID, MmeID: &mmeID, Cgi: cgi},
		},
		{
			"ue context release response",
			eventMessage{Type: model.EventUEContextReleaseResponse, Timestamp: 1, EnodebID: &enodebID, MmeID: &mmeID},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			event, buildError := buildEvent(testCase.message)
			require.NoError(t, buildError)
			assert.Equal(t, testCase.message.Type, event.Type())
			assert.NoError(t, event.Verify())
		})
	}
}

func TestBuildEventPropagatesShapeErrors(t *testing.T) {
	imsi := model.Imsi(123456789)
	enodebID := model.EnodebID(1)

	_, buildError := buildEvent(eventMessage{
		Type:      model.EventAttachRequest,
		Timestamp: 1,
		Imsi:      &imsi,
		EnodebID:  &enodebID,
	})
	assert.ErrorIs(t, buildError, s1ap.ErrBadCgi)

	_, buildError = buildEvent(eventMessage{
		Type:      model.EventIdentityResponse,
		Timestamp: 1,
		EnodebID:  &enodebID,
	})
	assert.ErrorIs(t, buildError, s1ap.ErrImsiNotExist)

	_, buildError = buildEvent(eventMessage{Type: "Bogus"})
	assert.ErrorIs(t, buildError, s1ap.ErrWrongEventType)
}
