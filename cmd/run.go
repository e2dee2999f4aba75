// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hyped/podctl/internal/barrier"
	podconfig "github.com/hyped/podctl/internal/config"
	"github.com/hyped/podctl/internal/motor"
	"github.com/hyped/podctl/internal/navigation"
	"github.com/hyped/podctl/internal/sensors"
	"github.com/hyped/podctl/internal/statemachine"
	"github.com/hyped/podctl/internal/telemetry"
	"github.com/hyped/podctl/internal/transport/can"
	"github.com/hyped/podctl/internal/transport/groundstation"
	"github.com/hyped/podctl/internal/tui"
)

var (
	logLevel       string
	sensorsOnly    bool
	motorsOnly     bool
	barrierParties int
	withMonitor    bool
	wsURL          string
	askToken       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pod control firmware",
	Long: `Run starts the pod control firmware: the sensor aggregator, navigation
estimator, motor controller, state machine, and ground-station link, all
synchronized through the shared telemetry registry.

--sensors-only and --motors-only start a reduced worker set for isolated
bench testing; they are mutually exclusive with each other and with a full
run.

Exit codes: 0 clean shutdown, 1 configuration error, 2 critical failure.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	runCmd.Flags().BoolVar(&sensorsOnly, "sensors-only", false, "Run only the sensor aggregator and navigation estimator")
	runCmd.Flags().BoolVar(&motorsOnly, "motors-only", false, "Run only the motor controller")
	runCmd.Flags().IntVar(&barrierParties, "barrier-parties", 0, "Override the post-calibration barrier party count")
	runCmd.Flags().BoolVar(&withMonitor, "with-monitor", false, "Attach the monitor dashboard and its command line to this run")
	runCmd.Flags().StringVar(&wsURL, "ws-url", "", "Ground station WebSocket URL (ws:// or wss://), overriding TCP")
	runCmd.Flags().BoolVar(&askToken, "ask-token", false, "Prompt for a ground-station auth token without echoing it")
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	if sensorsOnly && motorsOnly {
		return fmt.Errorf("--sensors-only and --motors-only are mutually exclusive")
	}

	var cfg podconfig.Config
	if configPath != "" {
		loaded, err := podconfig.Load(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = podconfig.Default()
	}
	if cmd.Flags().Changed("barrier-parties") {
		cfg.Settings.BarrierParties = barrierParties
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Settings.LogLevel = logLevel
	}
	if wsURL != "" {
		cfg.GroundStation.WebSocketURL = wsURL
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, err := parseLogLevel(cfg.Settings.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	token := ""
	if askToken {
		token, err = readToken()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	registry := telemetry.New(logger)
	bar := barrier.New(cfg.Settings.BarrierParties)
	machine := statemachine.New(registry, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		machine.Send(statemachine.OnExit)
		cancel()
	}()

	go machine.Run(ctx)

	runSensors := !motorsOnly
	runMotors := !sensorsOnly
	runComms := !sensorsOnly && !motorsOnly

	if runSensors {
		agg := sensors.New(registry, logger, defaultSensorConfig(cfg))
		go agg.Run(ctx)

		est := navigation.New(registry, logger, bar, navigation.Config{
			MinCalibrationSamples:   cfg.Navigation.MinSamples,
			StripePitchMetres:       cfg.Navigation.StripePitchMetres,
			MaxAccelerationDistance: cfg.Navigation.MaxAccelerationDistance,
			TubeLength:              cfg.Navigation.TubeLength,
			OnCriticalFailure:       func() { machine.Send(statemachine.CriticalFailureDetected) },
			OnCalibrationComplete:   func() { machine.Send(statemachine.CalibrationComplete) },
			OnMaxDistanceReached:    func() { machine.Send(statemachine.MaxDistanceReached) },
			OnEndOfTubeReached:      func() { machine.Send(statemachine.EndOfTubeReached) },
		})
		go est.Run(ctx, cfg.Navigation.CalibrationTimeout)
	}

	if runMotors {
		comm, err := buildCommunicator(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		ctl := motor.New(registry, logger, comm, bar, motor.ConstantStepStrategy{},
			func() { machine.Send(statemachine.CriticalFailureDetected) },
			func() { machine.Send(statemachine.AllMotorsStopped) },
		)
		go ctl.Run(ctx)
	}

	if runComms {
		dial := buildGroundStationDialer(cfg, token)
		comms := groundstation.New(dial, registry, machine, logger)
		go comms.Run(ctx)
	}

	if withMonitor {
		width, height, err := term.GetSize(int(os.Stdin.Fd()))
		if err != nil {
			width, height = 0, 0
		}
		p := tea.NewProgram(tui.New(registry, machine, width, height), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			logger.Error("monitor exited with error", "error", err)
		}
		cancel()
	} else {
		<-ctx.Done()
	}

	if registry.GetStateMachineData().CriticalFailure {
		os.Exit(2)
	}
	return nil
}

func defaultSensorConfig(cfg podconfig.Config) sensors.Config {
	var imus [telemetry.NumImus]sensors.ImuReader
	for i := range imus {
		imus[i] = sensors.NewFakeImu()
	}
	var lowPower [telemetry.NumLowPowerBatteries]sensors.BatteryReader
	for i := range lowPower {
		lowPower[i] = sensors.NewFakeBattery()
	}
	var highPower [telemetry.NumHighPowerBatteries]sensors.BatteryReader
	for i := range highPower {
		highPower[i] = sensors.NewFakeBattery()
	}
	policy := sensors.AllAdvanced
	if cfg.Sensors.ImuUpdatePolicy == "any" {
		policy = sensors.AnyAdvanced
	}
	return sensors.Config{
		Imus:       imus,
		ProxiFront: sensors.NewFakeProximityBank(),
		ProxiBack:  sensors.NewFakeProximityBank(),
		Stripe:     sensors.NewFakeStripeCounter(),
		LowPower:   lowPower,
		HighPower:  highPower,
		ImuPolicy:  policy,
	}
}

func buildCommunicator(cfg podconfig.Config) (motor.Communicator, error) {
	if cfg.CAN.Simulated {
		return can.NewSimulated(), nil
	}
	return can.OpenCanProxi(cfg.CAN.Port, cfg.CAN.BaudRate)
}

func buildGroundStationDialer(cfg podconfig.Config, token string) groundstation.Dialer {
	return func() (groundstation.Connection, error) {
		var conn groundstation.Connection
		var err error
		if cfg.GroundStation.WebSocketURL != "" {
			conn, err = groundstation.DialWebSocket(cfg.GroundStation.WebSocketURL, 10*time.Second, cfg.GroundStation.SkipSSLVerify)
		} else {
			conn, err = groundstation.DialTCP(cfg.GroundStation.Address, 10*time.Second)
		}
		if err != nil {
			return nil, err
		}
		if token != "" {
			if _, err := fmt.Fprintf(conn, "AUTH %s\n", token); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ground station auth: %w", err)
			}
		}
		return conn, nil
	}
}

func readToken() (string, error) {
	fmt.Fprint(os.Stderr, "Ground station token: ")
	tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(tokenBytes), nil
}
