// cmd/main.go
//
// Entry point for the MME. Responsibilities:
//   - Parse command-line flags (config path, etc.).
//   - Initialise a temporary logger so config loading has a logger.
//   - Load and validate configuration from YAML.
//   - Construct the App (wires all internal components).
//   - Start the App and block until SIGINT/SIGTERM.
//   - Trigger a best-effort graceful shutdown on signal.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/pkg/app"
	"github.com/free5gc/mme/pkg/factory"
)

func main() {
	// ---- 1. Parse flags ------------------------------------------------------

	configPath := flag.String("c", factory.MmeDefaultConfigPath, "path to MME config file (YAML)")
	flag.Parse()

	// ---- 2. Temporary logger initialisation ---------------------------------
	//
	// We initialise logging with a safe default so that configuration loading
	// and validation can use logger.CfgLog / logger.MainLog. NewApp() will call
	// InitLog again with the level from the config, which is safe.
	_ = logger.InitLog("info", false)

	logger.MainLog.Infof("MME starting, configPath=%s", *configPath)

	// ---- 3. Load configuration ----------------------------------------------

	config, readError := factory.ReadConfig(*configPath)
	if readError != nil {
		logger.MainLog.Errorf("failed to read config: %v", readError)
		os.Exit(1)
	}

	// ---- 4. Build App --------------------------------------------------------

	mmeApp, appError := app.NewApp(config)
	if appError != nil {
		logger.MainLog.Errorf("failed to create MME app: %v", appError)
		os.Exit(1)
	}

	// ---- 5. Start MME --------------------------------------------------------

	// Root context for Start; Stop will create its own timeout context.
	rootContext, rootCancel := context.WithCancel(context.Background())
	if startError := mmeApp.Start(rootContext); startError != nil {
		logger.MainLog.Errorf("failed to start MME: %v", startError)
		rootCancel()
		os.Exit(1)
	}

	// ---- 6. Wait for OS signals (Ctrl-C / kill) -----------------------------

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	receivedSignal := <-signalChannel
	logger.MainLog.Infof("received signal=%s, initiating shutdown", receivedSignal.String())

	// Let any Start()-spawned logic that honours the root context know we are
	// shutting down.
	rootCancel()

	// ---- 7. Graceful shutdown ------------------------------------------------
	//
	// We give the App a bounded time window to finish cleanup. If it cannot
	// complete in time, we log a warning and exit anyway.
	shutdownTimeout := 10 * time.Second
	shutdownContext, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if stopError := mmeApp.Stop(shutdownContext); stopError != nil {
		logger.MainLog.Warnf("MME shutdown encountered error: %v", stopError)
	} else {
		logger.MainLog.Infof("MME shutdown completed within %s", shutdownTimeout)
	}
}
