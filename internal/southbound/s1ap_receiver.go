// Package southbound exposes the HTTP endpoint where the MME receives
// decoded S1AP signalling events from eNodeB-facing front-ends.
//
// Expected URL pattern (per reporting eNodeB):
//
//	POST /s1ap/v1/events/{enbId}
//
// The {enbId} segment names the front-end that decoded the message and is
// used for logging only; subscriber resolution always uses the identifiers
// carried inside the event body.
//
// This receiver:
//   - Parses the reporting eNodeB ID from the request path
//   - Decodes the JSON payload into an eventMessage
//   - Rebuilds the typed s1ap.Event through the factory constructors
//     (shape errors surface as 400 before anything is enqueued)
//   - Hands the event to the single-writer dispatcher queue (202 Accepted)
//   - Signals backpressure with 503 when the queue is full.
package southbound

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/free5gc/mme/internal/dispatch"
	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/internal/model"
	"github.com/free5gc/mme/internal/s1ap"
)

// eventMessage is the JSON wire form of one S1AP event. Optional identifier
// fields are pointers so absence is distinguishable from zero.
type eventMessage struct {
	Type      model.EventType `json:"type"`
	Timestamp model.Timestamp `json:"timestamp"`
	Imsi      *model.Imsi     `json:"imsi,omitempty"`
	MTmsi     *model.MTmsi    `json:"mTmsi,omitempty"`
	EnodebID  *model.EnodebID `json:"enodebId,omitempty"`
	MmeID     *model.MmeID    `json:"mmeId,omitempty"`
	Cgi       []byte          `json:"cgi,omitempty"`
}

// S1apReceiver handles incoming S1AP event reports.
type S1apReceiver struct {
	dispatcher      *dispatch.Dispatcher
	maxRequestBytes int64
}

// NewS1apReceiver creates a new receiver that forwards decoded events to
// the given dispatcher.
func NewS1apReceiver(dispatcher *dispatch.Dispatcher) *S1apReceiver {
	return &S1apReceiver{
		dispatcher:      dispatcher,
		maxRequestBytes: 1 << 20, // 1 MiB limit for event payloads
	}
}

// Routes registers the southbound handler on the given mux. It mounts a
// prefix handler under /s1ap/v1/events/ and expects the last path segment
// to be the reporting eNodeB ID.
func (receiver *S1apReceiver) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/s1ap/v1/events/", receiver.HandleEventReport)
}

// Serve starts a standalone HTTP server for the southbound endpoint. In many
// deployments, an external component (e.g., app package) is expected to call
// Routes() on a shared mux instead of using Serve() directly.
func (receiver *S1apReceiver) Serve(listenAddr string) error {
	mux := http.NewServeMux()
	receiver.Routes(mux)

	server := &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	logger.SouthboundLog.Infof("Starting southbound S1AP event receiver on %s", listenAddr)
	return server.ListenAndServe()
}

// HandleEventReport processes a single S1AP event report. It expects the
// path to match /s1ap/v1/events/{enbId} and the body to contain a
// JSON-encoded eventMessage.
//
// On success it returns 202 Accepted; the event is applied asynchronously
// by the dispatch loop. On client-side errors it returns 4xx; when the
// dispatcher queue is full it returns 503.
func (receiver *S1apReceiver) HandleEventReport(
	responseWriter http.ResponseWriter,
	request *http.Request,
) {
	if request.Method != http.MethodPost {
		http.Error(responseWriter, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reportingEnbID, parseError := parseEnbIDFromPath(request.URL.Path)
	if parseError != nil {
		logger.SouthboundLog.Warnf("failed to parse enbId from path %q: %v", request.URL.Path, parseError)
		http.Error(responseWriter, "bad request", http.StatusBadRequest)
		return
	}

	limitedReader := http.MaxBytesReader(responseWriter, request.Body, receiver.maxRequestBytes)

	defer func() {
		if closeErr := limitedReader.Close(); closeErr != nil {
			logger.SouthboundLog.Debugf("failed to close request body reader: %v", closeErr)
		}
	}()

	var message eventMessage
	jsonDecoder := json.NewDecoder(limitedReader)
	if decodeError := jsonDecoder.Decode(&message); decodeError != nil {
		logger.SouthboundLog.Warnf(
			"failed to decode S1AP event report from enbId=%s: %v",
			reportingEnbID, decodeError,
		)
		http.Error(responseWriter, "invalid JSON body", http.StatusBadRequest)
		return
	}

	event, buildError := buildEvent(message)
	if buildError != nil {
		logger.SouthboundLog.Warnf(
			"rejected S1AP event report type=%s from enbId=%s: %v",
			message.Type, reportingEnbID, buildError,
		)
		http.Error(responseWriter, buildError.Error(), http.StatusBadRequest)
		return
	}

	if enqueueError := receiver.dispatcher.Enqueue(event); enqueueError != nil {
		if errors.Is(enqueueError, dispatch.ErrQueueFull) {
			logger.SouthboundLog.Warnf(
				"event queue full, rejecting report type=%s from enbId=%s",
				message.Type, reportingEnbID,
			)
			http.Error(responseWriter, "event queue full", http.StatusServiceUnavailable)
			return
		}

		logger.SouthboundLog.Errorf(
			"failed to enqueue event type=%s from enbId=%s: %v",
			message.Type, reportingEnbID, enqueueError,
		)
		http.Error(responseWriter, "internal server error", http.StatusInternalServerError)
		return
	}

	logger.SouthboundLog.Debugf(
		"accepted S1AP event type=%s ts=%d from enbId=%s",
		message.Type, message.Timestamp, reportingEnbID,
	)

	responseWriter.WriteHeader(http.StatusAccepted)
}

// buildEvent rebuilds a typed s1ap.Event from its wire form. The factory
// constructors require exactly the fields each event type carries, so the
// shape checks here mirror Event.Verify and reuse its sentinel errors.
func buildEvent(message eventMessage) (s1ap.Event, error) {
	switch message.Type {
	case model.EventAttachRequest:
		if message.Imsi != nil && message.MTmsi != nil {
			return s1ap.Event{}, s1ap.ErrWrongImsiAndMTmsiArgs
		}
		if message.EnodebID == nil {
			return s1ap.Event{}, s1ap.ErrBadEnodebID
		}
		if message.Cgi == nil {
			return s1ap.Event{}, s1ap.ErrBadCgi
		}
		if message.Imsi != nil {
			return s1ap.NewAttachRequestWithImsi(
				message.Timestamp, *message.Imsi, *message.EnodebID, model.Cgi(message.Cgi),
			), nil
		}
		if message.MTmsi != nil {
			return s1ap.NewAttachRequestWithMTmsi(
				message.Timestamp, *message.EnodebID, *message.MTmsi, model.Cgi(message.Cgi),
			), nil
		}
		return s1ap.Event{}, s1ap.ErrMissingImsiOrMTmsi

	case model.EventIdentityResponse:
		if message.Imsi == nil {
			return s1ap.Event{}, s1ap.ErrImsiNotExist
		}
		if message.EnodebID == nil {
			return s1ap.Event{}, s1ap.ErrBadEnodebID
		}
		if message.MmeID == nil {
			return s1ap.Event{}, s1ap.ErrBadMmeID
		}
		if message.Cgi == nil {
			return s1ap.Event{}, s1ap.ErrBadCgi
		}
		return s1ap.NewIdentityResponse(
			message.Timestamp, *message.Imsi, *message.EnodebID, *message.MmeID, model.Cgi(message.Cgi),
		), nil

	case model.EventAttachAccept:
		if message.EnodebID == nil {
			return s1ap.Event{}, s1ap.ErrBadEnodebID
		}
		if message.MmeID == nil {
			return s1ap.Event{}, s1ap.ErrBadMmeID
		}
		if message.MTmsi == nil {
			return s1ap.Event{}, s1ap.ErrBadMTmsi
		}
		return s1ap.NewAttachAccept(
			message.Timestamp, *message.EnodebID, *message.MmeID, *message.MTmsi,
		), nil

	case model.EventPaging:
		if message.MTmsi == nil {
			return s1ap.Event{}, s1ap.ErrBadMTmsi
		}
		if message.Cgi == nil {
			return s1ap.Event{}, s1ap.ErrBadCgi
		}
		return s1ap.NewPaging(message.Timestamp, *message.MTmsi, model.Cgi(message.Cgi)), nil

	case model.EventPathSwitchRequest:
		if message.EnodebID == nil {
			return s1ap.Event{}, s1ap.ErrBadEnodebID
		}
		if message.MmeID == nil {
			return s1ap.Event{}, s1ap.ErrBadMmeID
		}
		if message.Cgi == nil {
			return s1ap.Event{}, s1ap.ErrBadCgi
		}
		return s1ap.NewPathSwitchRequest(
			message.Timestamp, *message.EnodebID, *message.MmeID, model.Cgi(message.Cgi),
		), nil

	case model.EventPathSwitchRequestAcknowledge:
		if message.EnodebID == nil {
			return s1ap.Event{}, s1ap.ErrBadEnodebID
		}
		if message.MmeID == nil {
			return s1ap.Event{}, s1ap.ErrBadMmeID
		}
		return s1ap.NewPathSwitchRequestAcknowledge(
			message.Timestamp, *message.EnodebID, *message.MmeID,
		), nil

	case model.EventUEContextReleaseCommand:
		if message.EnodebID == nil {
			return s1ap.Event{}, s1ap.ErrBadEnodebID
		}
		if message.MmeID == nil {
			return s1ap.Event{}, s1ap.ErrBadMmeID
		}
		if message.Cgi == nil {
			return s1ap.Event{}, s1ap.ErrBadCgi
		}
		return s1ap.NewUEContextReleaseCommand(
			message.Timestamp, *message.EnodebID, *message.MmeID, model.Cgi(message.Cgi),
		), nil

	case model.EventUEContextReleaseResponse:
		if message.EnodebID == nil {
			return s1ap.Event{}, s1ap.ErrBadEnodebID
		}
		if message.MmeID == nil {
			return s1ap.Event{}, s1ap.ErrBadMmeID
		}
		return s1ap.NewUEContextReleaseResponse(
			message.Timestamp, *message.EnodebID, *message.MmeID,
		), nil

	default:
		return s1ap.Event{}, s1ap.ErrWrongEventType
	}
}

// parseEnbIDFromPath extracts the reporting eNodeB ID from a path of the
// form /s1ap/v1/events/{enbId} or /s1ap/v1/events/{enbId}/.
func parseEnbIDFromPath(path string) (string, error) {
	const prefix = "/s1ap/v1/events/"

	if !strings.HasPrefix(path, prefix) {
		return "", fmt.Errorf("path %q does not start with %q", path, prefix)
	}

	trimmed := strings.TrimPrefix(path, prefix)
	trimmed = strings.Trim(trimmed, "/")

	if trimmed == "" {
		return "", fmt.Errorf("missing enbId in path %q", path)
	}

	return trimmed, nil
}
