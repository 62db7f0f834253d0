// Package northbound delivers registration notifications (Reg, UnReg,
// CgiChange) from the MME to downstream subscriber-tracking consumers.
//
// This file implements a Notifier abstraction, an HTTP-based concrete
// implementation that pushes JSON-encoded RegistrationNotification payloads
// to a configured notifUri endpoint, and a log-only implementation used
// when push delivery is disabled.
package northbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/internal/model"
	"github.com/free5gc/mme/internal/s1ap"
)

// RegistrationNotification is the wire form of an s1ap.Output pushed to
// downstream consumers. The CGI is base64-encoded by encoding/json.
type RegistrationNotification struct {
	Type      model.OutputType `json:"type"`
	Imsi      model.Imsi       `json:"imsi"`
	Cgi       []byte           `json:"cgi,omitempty"`
	Timestamp model.Timestamp  `json:"timestamp"`
}

// NotificationFromOutput converts an engine output into its wire form,
// stamping it with the timestamp of the event that produced it.
func NotificationFromOutput(output s1ap.Output, timestamp model.Timestamp) RegistrationNotification {
	return RegistrationNotification{
		Type:      output.Type(),
		Imsi:      output.Imsi(),
		Cgi:       output.Cgi(),
		Timestamp: timestamp,
	}
}

// Notifier hides the details of how notifications are delivered. The
// default implementation uses HTTP POST with JSON, but future
// implementations could use message buses or other transports without
// changing the caller.
type Notifier interface {
	// Notify sends a single registration notification.
	Notify(ctx context.Context, notification RegistrationNotification) error
}

// logNotifier writes notifications to the notifier log only. Used when push
// delivery is disabled.
type logNotifier struct{}

// NewLogNotifier creates a Notifier that records notifications as log lines.
func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) Notify(ctx context.Context, notification RegistrationNotification) error {
	logger.NotifierLog.Infof(
		"registration notification type=%s imsi=%d cgi=%x ts=%d",
		notification.Type, notification.Imsi, notification.Cgi, notification.Timestamp,
	)
	return nil
}

// httpNotifier is the concrete HTTP/JSON implementation of Notifier.
type httpNotifier struct {
	notifURI           string
	httpClient         *http.Client
	maxResponseBodyLen int64
}

// NewHTTPNotifier creates a new Notifier that delivers notifications via
// HTTP POST with a JSON body to the given notifUri.
func NewHTTPNotifier(notifURI string) Notifier {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   3 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &httpNotifier{
		notifURI: notifURI,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   5 * time.Second,
		},
		maxResponseBodyLen: 4 << 10, // 4 KiB for logging snippets
	}
}

// Notify implements the Notifier interface.
func (notifier *httpNotifier) Notify(
	ctx context.Context,
	notification RegistrationNotification,
) error {
	if notifier.notifURI == "" {
		return fmt.Errorf("notifUri must not be empty")
	}

	jsonBytes, marshalError := json.Marshal(notification)
	if marshalError != nil {
		return fmt.Errorf("failed to marshal registration notification: %w", marshalError)
	}

	httpRequest, requestError := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		notifier.notifURI,
		bytes.NewReader(jsonBytes),
	)
	if requestError != nil {
		return fmt.Errorf("failed to create HTTP request to %s: %w", notifier.notifURI, requestError)
	}

	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("User-Agent", "mme-northbound-notifier/1.0")

	logger.NotifierLog.Debugf(
		"sending registration notification to notifUri=%s type=%s imsi=%d",
		notifier.notifURI, notification.Type, notification.Imsi,
	)

	httpResponse, doError := notifier.httpClient.Do(httpRequest)
	if doError != nil {
		logger.NotifierLog.Errorf(
			"registration notification delivery failed to notifUri=%s: %v",
			notifier.notifURI, doError,
		)
		return fmt.Errorf("registration notification delivery failed: %w", doError)
	}

	defer func() {
		if closeErr := httpResponse.Body.Close(); closeErr != nil {
			logger.NotifierLog.Debugf("failed to close response body: %v", closeErr)
		}
	}()

	if httpResponse.StatusCode/100 != 2 {
		bodySnippet := notifier.readBodySnippet(httpResponse.Body)
		logger.NotifierLog.Warnf(
			"registration notification non-2xx status=%s notifUri=%s bodySnippet=%q",
			httpResponse.Status, notifier.notifURI, bodySnippet,
		)
		return fmt.Errorf("registration notification non-2xx status: %s", httpResponse.Status)
	}

	logger.NotifierLog.Debugf(
		"registration notification delivered notifUri=%s type=%s imsi=%d",
		notifier.notifURI, notification.Type, notification.Imsi,
	)

	return nil
}

// readBodySnippet reads at most maxResponseBodyLen bytes from the response
// body for logging purposes. It never returns an error and is best-effort only.
func (notifier *httpNotifier) readBodySnippet(body io.Reader) string {
	if notifier.maxResponseBodyLen <= 0 {
		return ""
	}

	limitedReader := io.LimitedReader{
		R: body,
		N: notifier.maxResponseBodyLen,
	}
	rawBytes, readError := io.ReadAll(&limitedReader)
	if readError != nil {
		return ""
	}
	return string(rawBytes)
}
