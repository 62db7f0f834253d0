// Package app wires together all major MME components:
//   - configuration
//   - logging
//   - subscriber registry (the bookkeeping engine)
//   - single-writer dispatch loop and timeout sweeps
//   - southbound S1AP event receiver
//   - northbound registration notifier
//   - notification history buffer
//   - read-only status API
//   - eNodeB command client for Identity Requests.
//
// The App implementation is intentionally small and procedural, so that
// cmd/main.go can simply create an App from the loaded Config and call
// Start/Stop without knowing internal details.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/free5gc/mme/internal/dispatch"
	"github.com/free5gc/mme/internal/history"
	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/internal/northbound"
	"github.com/free5gc/mme/internal/registry"
	"github.com/free5gc/mme/internal/sbi"
	"github.com/free5gc/mme/internal/southbound"
	"github.com/free5gc/mme/pkg/factory"
)

// App is the high-level interface implemented by the MME. It hides wiring,
// HTTP server startup and dispatcher lifecycle from cmd/main.go.
type App interface {
	// Start brings the whole MME instance online: the dispatch loop, the
	// southbound event receiver, and (when enabled) the status API.
	Start(ctx context.Context) error

	// Stop attempts a graceful shutdown: the dispatcher drains its queue
	// and exits. HTTP servers are brought down when the process exits.
	Stop(ctx context.Context) error
}

// appImpl is the concrete implementation of App.
type appImpl struct {
	config *factory.Config

	subscriberRegistry *registry.Registry
	dispatcher         *dispatch.Dispatcher
	historyStore       history.Store
	notifier           northbound.Notifier

	southboundReceiver *southbound.S1apReceiver
	statusServer       *sbi.StatusServer

	startStopMutex sync.Mutex
	started        bool
}

// NewApp constructs a new App from a validated configuration. It creates
// the internal components but does not start any network listeners yet;
// that is handled by Start().
func NewApp(config *factory.Config) (App, error) {
	if config == nil {
		return nil, errors.New("config must not be nil")
	}

	// Initialise logging according to configuration. It is safe if main()
	// calls InitLog again; InitLog is idempotent w.r.t logger instances and
	// updates only the level and reportCaller flag.
	if initError := logger.InitLog(config.Logging.Level, config.Logging.ReportCaller); initError != nil {
		// We log a warning but still continue; falling back to "info" is fine.
		logger.MainLog.Warnf("InitLog failed with level=%s, using fallback: %v",
			config.Logging.Level, initError)
	}

	logger.MainLog.Infof(
		"Starting MME version=%s description=%q",
		config.Info.Version, config.Info.Description,
	)

	// Identity Request side effect: HTTP command towards the eNodeB
	// front-end when configured, log-only otherwise.
	var identityRequester registry.IdentityRequester
	if config.Enb.EnableIdentityRequests {
		identityRequester = sbi.NewEnbClient(config.Enb.CommandURI)
	}

	subscriberRegistry := registry.NewRegistry(identityRequester)

	// Northbound delivery: HTTP push when configured, log-only otherwise.
	var notifier northbound.Notifier
	if config.Northbound.EnablePush {
		notifier = northbound.NewHTTPNotifier(config.Northbound.NotifURI)
	} else {
		notifier = northbound.NewLogNotifier()
	}

	// Bounded record of emitted notifications for the status API.
	historyStore := history.NewMemoryStore(config.Registry.HistoryMaxItems)

	// The dispatcher is the registry's single writer.
	dispatcher := dispatch.NewDispatcher(
		subscriberRegistry,
		notifier,
		historyStore,
		config.Registry.EventQueueSize,
		time.Duration(config.Registry.SweepIntervalMs)*time.Millisecond,
		nil,
	)

	// Southbound receiver for decoded S1AP event reports.
	southboundReceiver := southbound.NewS1apReceiver(dispatcher)

	// Read-only status API.
	var statusServer *sbi.StatusServer
	if config.Sbi.EnableStatus {
		statusServer = sbi.NewStatusServer(dispatcher, historyStore)
	}

	return &appImpl{
		config:             config,
		subscriberRegistry: subscriberRegistry,
		dispatcher:         dispatcher,
		historyStore:       historyStore,
		notifier:           notifier,
		southboundReceiver: southboundReceiver,
		statusServer:       statusServer,
	}, nil
}

// Start implements App.Start.
func (app *appImpl) Start(ctx context.Context) error {
	app.startStopMutex.Lock()
	defer app.startStopMutex.Unlock()

	if app.started {
		logger.MainLog.Warn("App.Start called more than once; ignoring subsequent call")
		return nil
	}

	// The dispatch loop must be running before any HTTP listener accepts
	// events.
	if dispatchError := app.dispatcher.Start(ctx); dispatchError != nil {
		return errors.Wrap(dispatchError, "failed to start dispatcher")
	}

	// Start southbound HTTP server (eNodeB front-ends → MME).
	go func(listenAddr string) {
		if listenAddr == "" {
			// This should have been prevented by config validation.
			logger.SouthboundLog.Error("southbound listenAddr is empty; server will not start")
			return
		}

		if serveError := app.southboundReceiver.Serve(listenAddr); serveError != nil {
			logger.SouthboundLog.Errorf("southbound server stopped with error: %v", serveError)
		}
	}(app.config.Southbound.ListenAddr)

	// Start status API server when enabled.
	if app.statusServer != nil {
		go func(listenAddr string) {
			if listenAddr == "" {
				logger.SbiLog.Error("sbi listenAddr is empty; server will not start")
				return
			}

			if serveError := app.statusServer.Serve(listenAddr); serveError != nil {
				logger.SbiLog.Errorf("status server stopped with error: %v", serveError)
			}
		}(app.config.Sbi.ListenAddr)
	}

	app.started = true
	logger.MainLog.Infof("MME successfully started")
	return nil
}

// Stop implements App.Stop.
func (app *appImpl) Stop(ctx context.Context) error {
	app.startStopMutex.Lock()
	defer app.startStopMutex.Unlock()

	if !app.started {
		return nil
	}

	logger.MainLog.Infof("MME shutdown requested")

	// Stop the dispatcher; it drains accepted events before exiting.
	if dispatchError := app.dispatcher.Stop(ctx); dispatchError != nil {
		logger.MainLog.Warnf("dispatcher stop returned error: %v", dispatchError)
	}

	// future work: gracefully shutdown the HTTP servers using
	// http.Server.Shutdown and a shared mux/server instead of the
	// per-component Serve() helpers.

	app.started = false
	logger.MainLog.Infof("MME shutdown completed")
	return nil
}
