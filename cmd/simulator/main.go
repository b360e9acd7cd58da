package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	serverURL       = flag.String("server", "ws://localhost:8080", "Central system WebSocket URL")
	chargePointID   = flag.String("id", "CP_1", "Charge Point ID")
	vendor          = flag.String("vendor", "GoCharge", "Charge Point Vendor")
	model           = flag.String("model", "SimulatorV1", "Charge Point Model")
	serial          = flag.String("serial", "SIM001", "Serial Number")
	firmware        = flag.String("firmware", "1.0.0", "Firmware Version")
	idTag           = flag.String("tag", "TEST_TAG_123", "Id tag used for authorize/start")
	connectorCount  = flag.Int("connectors", 2, "Number of connectors")
	scenario        = flag.Bool("scenario", false, "Run a scripted charge session and exit")
	scenarioSamples = flag.Int("samples", 5, "Meter values sent during the scripted session")
	scenarioPeriod  = flag.Duration("period", 5*time.Second, "Delay between scripted meter values")
	interactive     = flag.Bool("interactive", false, "Enable interactive mode")
	verbose         = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	config := &SimulatorConfig{
		ServerURL:       *serverURL,
		ChargePointID:   *chargePointID,
		Vendor:          *vendor,
		Model:           *model,
		SerialNumber:    *serial,
		FirmwareVersion: *firmware,
		IdTag:           *idTag,
		ConnectorCount:  *connectorCount,
	}

	simulator := NewSimulator(config, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down simulator...")
		simulator.Stop()
		os.Exit(0)
	}()

	if err := simulator.Connect(); err != nil {
		logger.Fatal("Failed to connect to server", zap.Error(err))
	}

	switch {
	case *scenario:
		if err := simulator.RunScenario(*scenarioSamples, *scenarioPeriod); err != nil {
			logger.Fatal("Scenario failed", zap.Error(err))
		}
		simulator.Stop()

	case *interactive:
		runInteractiveMode(simulator)
		simulator.Stop()

	default:
		fmt.Printf("OCPP 1.6 Charge Point Simulator started\n")
		fmt.Printf("  ID: %s\n", *chargePointID)
		fmt.Printf("  Server: %s\n", *serverURL)
		fmt.Println("\nPress Ctrl+C to stop")
		select {}
	}
}

func runInteractiveMode(sim *Simulator) {
	fmt.Println("\nOCPP 1.6 Charge Point Simulator - Interactive Mode")
	fmt.Println("==================================================")
	fmt.Println("Commands:")
	fmt.Println("  auth [tag]              - Authorize an id tag")
	fmt.Println("  start <connector>       - Start a transaction on connector")
	fmt.Println("  stop                    - Stop the current transaction")
	fmt.Println("  status <connector> [st] - Send StatusNotification (default Available)")
	fmt.Println("  meter <value>           - Send meter value (Wh)")
	fmt.Println("  heartbeat               - Send heartbeat")
	fmt.Println("  fault <connector>       - Report a faulted connector")
	fmt.Println("  firmware <status>       - Send FirmwareStatusNotification")
	fmt.Println("  diag <status>           - Send DiagnosticsStatusNotification")
	fmt.Println("  dt <vendor> [msg] [dat] - Send DataTransfer")
	fmt.Println("  boot                    - Re-send BootNotification")
	fmt.Println("  quit                    - Exit simulator")
	fmt.Println("")

	sim.RunInteractive()
}
