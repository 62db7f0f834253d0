// Package sbi provides service-based interfaces used by the MME to
// communicate with external components. This file implements the read-only
// status HTTP server exposed to operators and monitoring.
//
// Exposed endpoints:
//
//	GET /mme/v1/status               - subscriber count, queue depth, pending identity requests
//	GET /mme/v1/subscribers          - snapshot of all subscriber records
//	GET /mme/v1/subscribers/{imsi}   - snapshot of one subscriber record
//	GET /mme/v1/notifications        - recent registration notifications (?imsi=&type=&limit=)
//
// Registry reads are relayed onto the dispatch goroutine so they never race
// the single writer.
package sbi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/free5gc/mme/internal/dispatch"
	"github.com/free5gc/mme/internal/history"
	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/internal/model"
	"github.com/free5gc/mme/internal/registry"
)

// StatusServer serves the read-only MME status API.
type StatusServer struct {
	dispatcher   *dispatch.Dispatcher
	historyStore history.Store
}

// statusResponse is the body of GET /mme/v1/status.
type statusResponse struct {
	SubscriberCount         int `json:"subscriberCount"`
	PendingIdentityRequests int `json:"pendingIdentityRequests"`
	QueueDepth              int `json:"queueDepth"`
	RetainedNotifications   int `json:"retainedNotifications"`
}

// NewStatusServer creates a new status server backed by the given
// dispatcher and notification history.
func NewStatusServer(dispatcher *dispatch.Dispatcher, historyStore history.Store) *StatusServer {
	return &StatusServer{
		dispatcher:   dispatcher,
		historyStore: historyStore,
	}
}

// Routes registers the status handlers on the given mux.
func (server *StatusServer) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/mme/v1/status", server.handleStatus)
	mux.HandleFunc("/mme/v1/subscribers", server.handleSubscribers)
	mux.HandleFunc("/mme/v1/subscribers/", server.handleSubscriberByImsi)
	mux.HandleFunc("/mme/v1/notifications", server.handleNotifications)
}

// Serve starts a standalone HTTP server for the status endpoints.
// In many deployments, an external component (e.g., app package) is expected
// to call Routes() on a shared mux instead of using Serve() directly.
func (server *StatusServer) Serve(listenAddr string) error {
	mux := http.NewServeMux()
	server.Routes(mux)

	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.SbiLog.Infof("Starting MME status server on %s", listenAddr)
	return httpServer.ListenAndServe()
}

// handleStatus serves GET /mme/v1/status.
func (server *StatusServer) handleStatus(
	responseWriter http.ResponseWriter,
	request *http.Request,
) {
	if request.Method != http.MethodGet {
		http.Error(responseWriter, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var response statusResponse
	inspectError := server.dispatcher.Inspect(request.Context(), func(subscriberRegistry *registry.Registry) {
		response.SubscriberCount = subscriberRegistry.SubscriberCount()
		response.PendingIdentityRequests = subscriberRegistry.PendingIdentityRequestCount()
	})
	if inspectError != nil {
		logger.SbiLog.Warnf("status inspection failed: %v", inspectError)
		http.Error(responseWriter, "internal server error", http.StatusInternalServerError)
		return
	}

	response.QueueDepth = server.dispatcher.QueueDepth()
	if server.historyStore != nil {
		response.RetainedNotifications = server.historyStore.Len()
	}

	writeJSON(responseWriter, http.StatusOK, response)
}

// handleSubscribers serves GET /mme/v1/subscribers.
func (server *StatusServer) handleSubscribers(
	responseWriter http.ResponseWriter,
	request *http.Request,
) {
	if request.Method != http.MethodGet {
		http.Error(responseWriter, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var views []registry.SubscriberView
	inspectError := server.dispatcher.Inspect(request.Context(), func(subscriberRegistry *registry.Registry) {
		views = subscriberRegistry.SubscribersSnapshot()
	})
	if inspectError != nil {
		logger.SbiLog.Warnf("subscriber snapshot failed: %v", inspectError)
		http.Error(responseWriter, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(responseWriter, http.StatusOK, views)
}

// handleSubscriberByImsi serves GET /mme/v1/subscribers/{imsi}.
func (server *StatusServer) handleSubscriberByImsi(
	responseWriter http.ResponseWriter,
	request *http.Request,
) {
	if request.Method != http.MethodGet {
		http.Error(responseWriter, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	imsi, parseError := parseImsiFromPath(request.URL.Path)
	if parseError != nil {
		logger.SbiLog.Warnf("failed to parse imsi from path %q: %v", request.URL.Path, parseError)
		http.Error(responseWriter, "bad request", http.StatusBadRequest)
		return
	}

	var (
		view  registry.SubscriberView
		found bool
	)
	inspectError := server.dispatcher.Inspect(request.Context(), func(subscriberRegistry *registry.Registry) {
		view, found = subscriberRegistry.GetSubscriberView(imsi)
	})
	if inspectError != nil {
		logger.SbiLog.Warnf("subscriber lookup failed: %v", inspectError)
		http.Error(responseWriter, "internal server error", http.StatusInternalServerError)
		return
	}

	if !found {
		http.Error(responseWriter, "subscriber not found", http.StatusNotFound)
		return
	}

	writeJSON(responseWriter, http.StatusOK, view)
}

// handleNotifications serves GET /mme/v1/notifications with optional
// imsi, type, and limit query parameters.
func (server *StatusServer) handleNotifications(
	responseWriter http.ResponseWriter,
	request *http.Request,
) {
	if request.Method != http.MethodGet {
		http.Error(responseWriter, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if server.historyStore == nil {
		http.Error(responseWriter, "notification history disabled", http.StatusNotFound)
		return
	}

	query, queryError := parseNotificationQuery(request)
	if queryError != nil {
		logger.SbiLog.Warnf("invalid notification query: %v", queryError)
		http.Error(responseWriter, "bad request", http.StatusBadRequest)
		return
	}

	notifications, historyError := server.historyStore.Query(request.Context(), query)
	if historyError != nil {
		logger.SbiLog.Warnf("notification query failed: %v", historyError)
		http.Error(responseWriter, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(responseWriter, http.StatusOK, notifications)
}

// parseNotificationQuery translates query parameters into a history.Query.
func parseNotificationQuery(request *http.Request) (history.Query, error) {
	var query history.Query

	if imsiParam := request.URL.Query().Get("imsi"); imsiParam != "" {
		imsiValue, parseError := strconv.ParseUint(imsiParam, 10, 64)
		if parseError != nil {
			return history.Query{}, fmt.Errorf("invalid imsi %q: %w", imsiParam, parseError)
		}
		imsi := model.Imsi(imsiValue)
		query.Imsi = &imsi
	}

	if typeParam := request.URL.Query().Get("type"); typeParam != "" {
		switch outputType := model.OutputType(typeParam); outputType {
		case model.OutputReg, model.OutputUnReg, model.OutputCgiChange:
			query.Type = outputType
		default:
			return history.Query{}, fmt.Errorf("unknown notification type %q", typeParam)
		}
	}

	if limitParam := request.URL.Query().Get("limit"); limitParam != "" {
		limitValue, parseError := strconv.Atoi(limitParam)
		if parseError != nil || limitValue < 0 {
			return history.Query{}, fmt.Errorf("invalid limit %q", limitParam)
		}
		query.Limit = limitValue
	}

	return query, nil
}

// parseImsiFromPath extracts the IMSI from a path of the form
// /mme/v1/subscribers/{imsi}.
func parseImsiFromPath(path string) (model.Imsi, error) {
	const prefix = "/mme/v1/subscribers/"

	if !strings.HasPrefix(path, prefix) {
		return 0, fmt.Errorf("path %q does not start with %q", path, prefix)
	}

	trimmed := strings.TrimPrefix(path, prefix)
	trimmed = strings.Trim(trimmed, "/")

	if trimmed == "" {
		return 0, fmt.Errorf("missing imsi in path %q", path)
	}

	imsiValue, parseError := strconv.ParseUint(trimmed, 10, 64)
	if parseError != nil {
		return 0, fmt.Errorf("invalid imsi %q: %w", trimmed, parseError)
	}

	return model.Imsi(imsiValue), nil
}

// writeJSON serializes the payload with a JSON content type.
func writeJSON(responseWriter http.ResponseWriter, statusCode int, payload interface{}) {
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(statusCode)

	if encodeError := json.NewEncoder(responseWriter).Encode(payload); encodeError != nil {
		logger.SbiLog.Debugf("failed to encode JSON response: %v", encodeError)
	}
}
