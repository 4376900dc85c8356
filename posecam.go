package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"posecam/calibration"
	"posecam/config"
	"posecam/console"
	"posecam/detection"
	"posecam/dispatch"
	"posecam/orders"
	"posecam/overlay"
	"posecam/vision"
)

var (
	configPath   = flag.String("config", "config.yaml", "Path to the YAML configuration document")
	envFile      = flag.String("env", ".env", "Optional .env file with POSECAM_DATABASE_URL / POSECAM_AUTH_TOKEN")
	testMode     = flag.Bool("test-mode", false, "Send each zone's answer pose verbatim instead of computing it from vision")
	debugMode    = flag.Bool("debug", false, "Write per-order debug logs to -debug-dir")
	debugVerbose = flag.Bool("debug-verbose", false, "Enable verbose per-frame output (contours, axis, rejected detections)")
	debugDir     = flag.String("debug-dir", "/tmp/posecam-debug", "Directory for per-order debug logs")
	consoleAddr  = flag.String("console-addr", "", "Listen address for the operator console (e.g. :8090); empty disables it")
	noWindow     = flag.Bool("no-window", false, "Run without display windows; use the console for controls")
	offline      = flag.Bool("offline", false, "Use an in-memory order store instead of Firebase")
	orderID      = flag.String("order", "", "Order id for manual sends when nothing is armed (overrides auto_send.default_order_id)")

	// Global debug logger instance
	globalDebugLogger *DebugLogger
)

// debugMsg is the global convenience function for unified debug logging
func debugMsg(component, message string, ids ...string) {
	if globalDebugLogger != nil {
		globalDebugLogger.debugMsg(component, message, ids...)
	} else {
		fmt.Printf("[%s][%s] %s\n", time.Now().Format("15:04:05.000"), component, message)
	}
}

// debugMsgVerbose only outputs if debug-verbose flag is enabled
func debugMsgVerbose(component, message string, ids ...string) {
	if !*debugVerbose {
		return
	}
	debugMsg(component, message, ids...)
}

func wireDebugFunctions() {
	detection.SetDebugFunction(debugMsg)
	detection.SetDebugVerboseFunction(debugMsgVerbose)
	calibration.SetDebugFunction(debugMsg)
	config.SetDebugFunction(debugMsg)
	orders.SetDebugFunction(debugMsg)
	dispatch.SetDebugFunction(debugMsg)
	dispatch.SetDebugVerboseFunction(debugMsgVerbose)
	vision.SetDebugFunction(debugMsg)
	vision.SetDebugVerboseFunction(debugMsgVerbose)
	overlay.SetDebugFunction(debugMsg)
	console.SetDebugFunction(debugMsg)
}

func newStore(ctx context.Context, snap *config.Snapshot) (orders.Store, error) {
	if *offline {
		debugMsg("STORE", "Offline mode: using in-memory order store")
		return orders.NewMemoryStore(), nil
	}
	if snap.Store.DatabaseURL == "" {
		return nil, fmt.Errorf("store.database_url (or %s) is required unless -offline is set", config.EnvDatabaseURL)
	}
	return orders.NewFirebaseStore(ctx, orders.FirebaseConfig{
		DatabaseURL:     snap.Store.DatabaseURL,
		OrdersPath:      snap.Store.OrdersPath,
		CredentialsFile: snap.Store.CredentialsFile,
		Timeout:         snap.StoreTimeout,
	})
}

func main() {
	flag.Parse()

	globalDebugLogger = NewDebugLogger(*debugMode, *debugVerbose, *debugDir)
	defer globalDebugLogger.Close()
	wireDebugFunctions()

	if err := run(); err != nil {
		debugMsg("ERROR", err.Error())
		globalDebugLogger.Close()
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadEnv(*envFile); err != nil {
		return err
	}
	snap, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	for _, line := range snap.Summary() {
		debugMsg("CONFIG", line)
	}
	holder := config.NewHolder(snap)

	mode := dispatch.RealMode
	if *testMode || snap.Mode.TestMode {
		mode = dispatch.TestMode
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, snap)
	if err != nil {
		return err
	}

	var state dispatch.StateSource
	if snap.AutoSend.ManualOnly {
		debugMsg("WATCHER", "auto_send.manual_only set: order monitoring disabled, SPACE to send")
	} else {
		watcher := orders.NewWatcher(store, snap.PollInterval)
		watcher.Start(ctx)
		defer watcher.Stop()
		state = watcher
	}

	camera, err := vision.OpenCamera(snap.Camera)
	if err != nil {
		return err
	}
	defer camera.Close()

	locator := vision.NewContourLocator(holder)
	defer locator.Close()

	var display dispatch.Display = vision.HeadlessDisplay{}
	if !*noWindow {
		renderer := overlay.NewRenderer()
		renderer.SetHistorySource(globalDebugLogger.History)
		window := vision.NewWindow(renderer, true)
		defer window.Close()
		display = window
	}

	loop := dispatch.New(dispatch.Options{
		Mode:           mode,
		Source:         camera,
		Locator:        locator,
		Display:        display,
		State:          state,
		Sender:         store,
		Config:         holder,
		DefaultOrderID: *orderID,
	})

	if *consoleAddr != "" {
		srv := console.NewServer(loop, globalDebugLogger.History)
		srv.Start(ctx, *consoleAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	} else if *noWindow {
		debugMsg("WARN", "-no-window without -console-addr: only automatic sends are possible")
	}

	debugMsg("INFO", fmt.Sprintf("Dispatcher running in %s mode", mode))
	err = loop.Run(ctx)
	if errors.Is(err, dispatch.ErrCaptureFailed) {
		return fmt.Errorf("camera %d stopped delivering frames: %w", snap.Camera.CameraNumber, err)
	}
	debugMsg("INFO", "Dispatcher stopped")
	return nil
}
