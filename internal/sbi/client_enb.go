// This file implements the client side of the identity procedure: when the
// registry sees an ATTACH REQUEST with an M-TMSI it cannot resolve, the
// configured eNodeB command endpoint is asked to transmit an IDENTITY
// REQUEST towards the UE.
//
// Delivery is fire-and-forget from the registry's perspective: the request
// is posted from a separate goroutine so the single-writer dispatch loop
// never blocks on network I/O.
package sbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/internal/model"
)

// identityRequestCommand is the JSON payload sent to the eNodeB command
// endpoint.
type identityRequestCommand struct {
	Command  string         `json:"command"` // "IDENTITY_REQUEST"
	MTmsi    model.MTmsi    `json:"mTmsi"`
	EnodebID model.EnodebID `json:"enodebId"`
}

// EnbClient posts IDENTITY REQUEST commands to an eNodeB-facing front-end.
// It implements registry.IdentityRequester.
type EnbClient struct {
	commandURI     string
	httpClient     *http.Client
	requestTimeout time.Duration
}

// NewEnbClient creates a new HTTP-based eNodeB command client. It sets
// timeouts suitable for control-plane workloads.
func NewEnbClient(commandURI string) *EnbClient {
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

	return &EnbClient{
		commandURI: commandURI,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   5 * time.Second,
		},
		requestTimeout: 5 * time.Second,
	}
}

// RequestIdentity implements registry.IdentityRequester. The HTTP exchange
// runs on its own goroutine; failures are logged, never surfaced. The
// registry keeps no pending record for the unresolved M-TMSI, so a lost
// request is neither retried nor swept; the attach completes only if an
// Identity Response arrives.
func (client *EnbClient) RequestIdentity(mTmsi model.MTmsi, enodebID model.EnodebID) {
	logger.SbiLog.Infof(
		"sending Identity Request for mTmsi=%d via enodebId=%d",
		mTmsi, enodebID,
	)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), client.requestTimeout)
		defer cancel()

		if sendError := client.sendIdentityRequest(ctx, mTmsi, enodebID); sendError != nil {
			logger.SbiLog.Warnf(
				"Identity Request delivery failed for mTmsi=%d enodebId=%d: %v",
				mTmsi, enodebID, sendError,
			)
		}
	}()
}

// sendIdentityRequest performs the HTTP POST to the eNodeB command endpoint.
func (client *EnbClient) sendIdentityRequest(
	ctx context.Context,
	mTmsi model.MTmsi,
	enodebID model.EnodebID,
) error {
	if client.commandURI == "" {
		return fmt.Errorf("eNodeB command URI must not be empty")
	}

	command := identityRequestCommand{
		Command:  "IDENTITY_REQUEST",
		MTmsi:    mTmsi,
		EnodebID: enodebID,
	}

	jsonBytes, marshalError := json.Marshal(command)
	if marshalError != nil {
		return fmt.Errorf("failed to marshal identity request command: %w", marshalError)
	}

	httpRequest, requestError := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		client.commandURI,
		bytes.NewReader(jsonBytes),
	)
	if requestError != nil {
		return fmt.Errorf("failed to create HTTP request to %s: %w", client.commandURI, requestError)
	}

	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("User-Agent", "mme-enb-client/1.0")

	httpResponse, doError := client.httpClient.Do(httpRequest)
	if doError != nil {
		return fmt.Errorf("identity request delivery failed: %w", doError)
	}

	defer func() {
		if closeErr := httpResponse.Body.Close(); closeErr != nil {
			logger.SbiLog.Debugf("failed to close response body: %v", closeErr)
		}
	}()

	if httpResponse.StatusCode/100 != 2 {
		return fmt.Errorf("identity request non-2xx status: %s", httpResponse.Status)
	}

	return nil
}
