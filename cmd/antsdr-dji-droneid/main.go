// Package main implements the entry point for the AntSDR DJI DroneID
// gateway: it decodes DroneID telemetry frames from an AntSDR receiver and
// republishes them as JSON messages and CoT events for TAK consumers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/alphafox02/antsdr-dji-droneid/component"
	"github.com/alphafox02/antsdr-dji-droneid/componentregistry"
	"github.com/alphafox02/antsdr-dji-droneid/config"
	"github.com/alphafox02/antsdr-dji-droneid/metric"
	"github.com/alphafox02/antsdr-dji-droneid/natsclient"
	"github.com/alphafox02/antsdr-dji-droneid/pkg/retry"
	"github.com/alphafox02/antsdr-dji-droneid/types"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "antsdr-dji-droneid"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	natsClient, err := createNATSClient(cfg)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	defer func() { _ = natsClient.Close(ctx) }()

	if err := connectToNATS(ctx, natsClient); err != nil {
		return err
	}

	metricsRegistry := metric.NewMetricsRegistry()
	metricsServer, err := startMetricsServer(cfg, metricsRegistry)
	if err != nil {
		return err
	}
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop() }()
	}

	registry := component.NewRegistry()
	if err := componentregistry.Register(registry); err != nil {
		return fmt.Errorf("register components: %w", err)
	}

	deps := component.Dependencies{
		NATSClient:      natsClient,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
		Platform:        cfg.Platform.Meta(),
	}

	components, err := createComponents(cfg, registry, deps)
	if err != nil {
		return err
	}
	if len(components) == 0 {
		return fmt.Errorf("no enabled components in configuration")
	}

	return runWithSignalHandling(ctx, components, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting AntSDR DJI DroneID gateway",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadConfig loads configuration from the specified file path
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// createNATSClient builds the NATS client from connection settings
func createNATSClient(cfg *config.Config) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithClientName(appName),
	}
	if cfg.NATS.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects))
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	return natsclient.NewClient(cfg.NATS.URL, opts...)
}

// connectToNATS establishes the NATS connection with exponential backoff
// and waits for it to be ready
func connectToNATS(ctx context.Context, natsClient *natsclient.Client) error {
	slog.Info("Connecting to NATS", "url", natsClient.URL())

	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		return natsClient.Connect(ctx)
	})
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	return nil
}

// startMetricsServer starts the Prometheus metrics endpoint if enabled
func startMetricsServer(cfg *config.Config, registry *metric.MetricsRegistry) (*metric.Server, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}

	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start metrics server: %w", err)
	}

	slog.Info("Metrics server started", "address", server.Address(), "path", cfg.Metrics.Path)
	return server, nil
}

// namedComponent pairs a created component instance with its config
type namedComponent struct {
	name      string
	component component.LifecycleComponent
}

// typeStartRank orders component startup so downstream consumers are
// subscribed before upstream producers emit anything. Shutdown runs in
// reverse, draining the pipeline from the source.
func typeStartRank(t types.ComponentType) int {
	switch t {
	case types.ComponentTypeOutput:
		return 0
	case types.ComponentTypeProcessor:
		return 1
	default:
		return 2
	}
}

// createComponents creates all enabled component instances in start order
func createComponents(
	cfg *config.Config, registry *component.Registry, deps component.Dependencies,
) ([]namedComponent, error) {
	names := make([]string, 0, len(cfg.Components))
	for name := range cfg.Components {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri := typeStartRank(cfg.Components[names[i]].Type)
		rj := typeStartRank(cfg.Components[names[j]].Type)
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	components := make([]namedComponent, 0, len(names))
	for _, name := range names {
		componentCfg := cfg.Components[name]
		if !componentCfg.Enabled {
			slog.Info("Component disabled in config", "instance", name)
			continue
		}

		instance, err := registry.CreateComponent(name, componentCfg, deps)
		if err != nil {
			return nil, fmt.Errorf("create component %s: %w", name, err)
		}

		lifecycle, ok := component.AsLifecycleComponent(instance)
		if !ok {
			return nil, fmt.Errorf("component %s does not support lifecycle management", name)
		}

		slog.Info("Created component",
			"instance", name,
			"factory", componentCfg.Name,
			"type", componentCfg.Type.String())
		components = append(components, namedComponent{name: name, component: lifecycle})
	}

	return components, nil
}

// runWithSignalHandling starts components and handles shutdown signals
func runWithSignalHandling(ctx context.Context, components []namedComponent, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	started := make([]namedComponent, 0, len(components))
	for _, nc := range components {
		if err := nc.component.Initialize(); err != nil {
			stopAll(started, shutdownTimeout)
			return fmt.Errorf("initialize component %s: %w", nc.name, err)
		}
		if err := nc.component.Start(signalCtx); err != nil {
			stopAll(started, shutdownTimeout)
			return fmt.Errorf("start component %s: %w", nc.name, err)
		}
		slog.Info("Started component", "instance", nc.name)
		started = append(started, nc)
	}

	slog.Info("Gateway started", "components", len(started))

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	stopAll(started, shutdownTimeout)
	slog.Info("Gateway shutdown complete")
	return nil
}

// stopAll stops components in reverse start order
func stopAll(components []namedComponent, timeout time.Duration) {
	for i := len(components) - 1; i >= 0; i-- {
		nc := components[i]
		if err := nc.component.Stop(timeout); err != nil {
			slog.Error("Error stopping component", "instance", nc.name, "error", err)
			continue
		}
		slog.Info("Stopped component", "instance", nc.name)
	}
}
