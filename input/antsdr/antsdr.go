package antsdr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alphafox02/antsdr-dji-droneid/component"
	"github.com/alphafox02/antsdr-dji-droneid/errors"
	"github.com/alphafox02/antsdr-dji-droneid/metric"
	"github.com/alphafox02/antsdr-dji-droneid/natsclient"
	"github.com/alphafox02/antsdr-dji-droneid/pkg/retry"
)

// Defaults when no port configuration is supplied. The AntSDR firmware
// serves its frame stream on TCP 41030.
const (
	defaultHost          = "192.168.1.10"
	defaultPort          = 41030
	defaultSubject       = "droneid.frames.raw"
	defaultReconnectWait = 5 * time.Second
)

// Dialer opens the TCP connection to the SDR. Injectable so tests can
// substitute a loopback listener or a failing transport.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

func defaultDialer(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

// Metrics holds Prometheus metrics for the AntSDR input component
type Metrics struct {
	framesReceived prometheus.Counter
	bytesReceived  prometheus.Counter
	frameErrors    prometheus.Counter
	reconnects     prometheus.Counter
	lastActivity   prometheus.Gauge
}

// newMetrics creates and registers AntSDR input metrics
func newMetrics(registry *metric.MetricsRegistry, port int) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "antsdr",
			Name:      "frames_received_total",
			Help:      "Total complete frames read from the SDR stream",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "antsdr",
			Name:      "bytes_received_total",
			Help:      "Total frame bytes read from the SDR stream",
		}),
		frameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "antsdr",
			Name:      "frame_errors_total",
			Help:      "Frames discarded due to truncated or malformed headers",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "antsdr",
			Name:      "reconnects_total",
			Help:      "Connection attempts after a lost or refused stream",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "droneid",
			Subsystem: "antsdr",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last received frame",
		}),
	}

	serviceName := fmt.Sprintf("antsdr_%d", port)
	registry.RegisterCounter(serviceName, "frames_received", metrics.framesReceived)
	registry.RegisterCounter(serviceName, "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter(serviceName, "frame_errors", metrics.frameErrors)
	registry.RegisterCounter(serviceName, "reconnects", metrics.reconnects)
	registry.RegisterGauge(serviceName, "last_activity", metrics.lastActivity)

	return metrics
}

// Input connects to an AntSDR frame stream over TCP and publishes each
// complete raw frame to NATS. A supervisor goroutine owns the connection:
// on end-of-stream or dial failure it closes the socket, waits a fixed
// backoff and reconnects indefinitely.
type Input struct {
	name          string
	host          string
	port          int
	subject       string
	reconnectWait time.Duration
	dialer        Dialer
	natsClient    *natsclient.Client
	logger        *slog.Logger

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	conn      net.Conn

	// Flow counters (atomic for thread safety)
	framesReceived atomic.Int64
	bytesReceived  atomic.Int64
	errorCount     atomic.Int64
	lastActivity   atomic.Value // stores time.Time

	// Prometheus metrics
	metrics *Metrics
}

// Ensure Input implements all required interfaces
var _ component.Discoverable = (*Input)(nil)
var _ component.LifecycleComponent = (*Input)(nil)

// antsdrSchema is generated from InputConfig struct tags using reflection
var antsdrSchema = component.GenerateConfigSchema(reflect.TypeOf(InputConfig{}))

// InputConfig holds configuration for the AntSDR input component
type InputConfig struct {
	// Port configuration for inputs and outputs
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	// Delay between reconnect attempts after a lost stream
	ReconnectWait string `json:"reconnect_wait" schema:"type:string,description:Fixed delay between reconnect attempts,default:5s,category:basic"`
}

// Validate implements component.Validatable for secure config validation
func (c *InputConfig) Validate() error {
	if c.ReconnectWait != "" {
		d, err := time.ParseDuration(c.ReconnectWait)
		if err != nil {
			return errors.WrapInvalid(
				fmt.Errorf("invalid reconnect_wait %q: %w", c.ReconnectWait, err),
				"InputConfig", "Validate", "duration parsing")
		}
		if d <= 0 {
			return errors.WrapInvalid(
				fmt.Errorf("reconnect_wait must be positive, got %q", c.ReconnectWait),
				"InputConfig", "Validate", "duration validation")
		}
	}

	if c.Ports == nil {
		return nil
	}

	for _, input := range c.Ports.Inputs {
		if input.Type != "network" || input.Subject == "" {
			continue
		}
		host, port, err := parseTCPSubject(input.Subject)
		if err != nil {
			return err
		}
		if err := component.ValidateNetworkConfig(port, host); err != nil {
			return errors.Wrap(err, "InputConfig", "Validate", "network port validation")
		}
	}

	for _, output := range c.Ports.Outputs {
		if output.Type == "nats" && output.Subject == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"InputConfig", "Validate", "NATS output subject validation")
		}
	}

	return nil
}

// parseTCPSubject splits a tcp://host:port network subject into its parts.
func parseTCPSubject(subject string) (string, int, error) {
	const prefix = "tcp://"
	if len(subject) <= len(prefix) || subject[:len(prefix)] != prefix {
		return "", 0, errors.WrapInvalid(
			fmt.Errorf("invalid TCP address format: %s", subject),
			"InputConfig", "Validate", "address parsing")
	}
	host, portStr, err := net.SplitHostPort(subject[len(prefix):])
	if err != nil {
		return "", 0, errors.WrapInvalid(
			fmt.Errorf("invalid TCP address format: %s", subject),
			"InputConfig", "Validate", "address parsing")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, errors.WrapInvalid(
			fmt.Errorf("invalid port number: %s", portStr),
			"InputConfig", "Validate", "port parsing")
	}
	return host, port, nil
}

// DefaultConfig returns sensible defaults for the AntSDR input
func DefaultConfig() InputConfig {
	return InputConfig{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "sdr_stream",
					Type:        "network",
					Subject:     fmt.Sprintf("tcp://%s:%d", defaultHost, defaultPort),
					Required:    true,
					Description: "TCP frame stream served by the AntSDR",
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "nats_output",
					Type:        "nats",
					Subject:     defaultSubject,
					Required:    true,
					Description: "NATS subject for publishing raw frames",
				},
			},
		},
		ReconnectWait: "5s",
	}
}

// getConfiguredEndpoints extracts host, port, subject and reconnect delay
// from the configuration, applying defaults for anything unset.
func (c *InputConfig) getConfiguredEndpoints() (host string, port int, subject string, wait time.Duration) {
	host = defaultHost
	port = defaultPort
	subject = defaultSubject
	wait = defaultReconnectWait

	if c.ReconnectWait != "" {
		if d, err := time.ParseDuration(c.ReconnectWait); err == nil && d > 0 {
			wait = d
		}
	}

	if c.Ports == nil {
		return host, port, subject, wait
	}

	for _, input := range c.Ports.Inputs {
		if input.Type == "network" && input.Subject != "" {
			if h, p, err := parseTCPSubject(input.Subject); err == nil {
				host = h
				port = p
			}
			break
		}
	}
	for _, output := range c.Ports.Outputs {
		if output.Type == "nats" {
			// Keep explicit subjects, even empty, for Initialize to reject.
			subject = output.Subject
			break
		}
	}

	return host, port, subject, wait
}

// InputDeps holds runtime dependencies for the AntSDR input component
type InputDeps struct {
	Name            string                  // Instance name
	Config          InputConfig             // Business logic configuration
	NATSClient      *natsclient.Client      // Runtime dependency
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency
	Dialer          Dialer                  // Optional; tests inject a fake transport
}

// NewInput creates a new AntSDR input component
func NewInput(deps InputDeps) *Input {
	host, port, subject, wait := deps.Config.getConfiguredEndpoints()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "antsdr-input", "host", host, "port", port)
	}

	dialer := deps.Dialer
	if dialer == nil {
		dialer = defaultDialer
	}

	i := &Input{
		name:          deps.Name,
		host:          host,
		port:          port,
		subject:       subject,
		reconnectWait: wait,
		dialer:        dialer,
		natsClient:    deps.NATSClient,
		logger:        logger,
		startTime:     time.Now(),
		metrics:       newMetrics(deps.MetricsRegistry, port),
	}
	i.lastActivity.Store(time.Time{})
	return i
}

// Meta returns the component metadata
func (i *Input) Meta() component.Metadata {
	name := i.name
	if name == "" {
		name = fmt.Sprintf("antsdr-input-%d", i.port)
	}

	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("AntSDR frame stream from %s:%d publishing to %s", i.host, i.port, i.subject),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (i *Input) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "sdr_stream",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: fmt.Sprintf("TCP frame stream from %s:%d", i.host, i.port),
			Config: component.NetworkPort{
				Protocol: "tcp",
				Host:     i.host,
				Port:     i.port,
			},
		},
	}
}

// OutputPorts returns the output ports for this component
func (i *Input) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "nats_output",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: "NATS subject for publishing raw frames",
			Config: component.NATSPort{
				Subject: i.subject,
			},
		},
	}
}

// ConfigSchema returns the configuration schema for this component
func (i *Input) ConfigSchema() component.ConfigSchema {
	return antsdrSchema
}

// Health returns the current health status of the component
func (i *Input) Health() component.HealthStatus {
	i.mu.RLock()
	connected := i.conn != nil
	i.mu.RUnlock()
	running := i.running.Load()

	return component.HealthStatus{
		Healthy:    running && connected,
		LastCheck:  time.Now(),
		ErrorCount: int(i.errorCount.Load()),
		LastError:  "",
		Uptime:     time.Since(i.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (i *Input) DataFlow() component.FlowMetrics {
	frames := i.framesReceived.Load()
	bytes := i.bytesReceived.Load()
	errCount := i.errorCount.Load()
	lastActivity, _ := i.lastActivity.Load().(time.Time)

	var framesPerSecond float64
	var bytesPerSecond float64
	var errorRate float64

	if uptime := time.Since(i.startTime).Seconds(); uptime > 0 {
		framesPerSecond = float64(frames) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}
	if frames > 0 {
		errorRate = float64(errCount) / float64(frames)
	}

	return component.FlowMetrics{
		MessagesPerSecond: framesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates the component configuration but opens no sockets
func (i *Input) Initialize() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.port < 1 || i.port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d", i.port),
			"antsdr-input", "Initialize", "port validation")
	}
	if i.host == "" {
		return errors.WrapInvalid(fmt.Errorf("empty host"),
			"antsdr-input", "Initialize", "host validation")
	}
	if i.subject == "" {
		return errors.WrapInvalid(fmt.Errorf("empty subject"),
			"antsdr-input", "Initialize", "subject validation")
	}
	if i.reconnectWait <= 0 {
		return errors.WrapInvalid(fmt.Errorf("invalid reconnect wait %v", i.reconnectWait),
			"antsdr-input", "Initialize", "reconnect wait validation")
	}
	if i.natsClient == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS client"),
			"antsdr-input", "Initialize", "NATS client validation")
	}

	return nil
}

// Start launches the connection supervisor. It returns immediately; the
// first dial happens on the supervisor goroutine so a down SDR never blocks
// startup.
func (i *Input) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running.Load() {
		return nil // Already running, idempotent
	}

	i.shutdown = make(chan struct{})
	i.done = make(chan struct{})
	i.running.Store(true)
	i.startTime = time.Now()

	go func() {
		defer close(i.done)
		i.supervise(ctx)
	}()

	return nil
}

// supervise dials, reads and re-dials until shutdown. Each pass of the
// retry loop is one connection lifetime.
func (i *Input) supervise(ctx context.Context) {
	cfg := retry.Fixed(i.reconnectWait)

	firstDial := true
	err := retry.Forever(ctx, cfg, func() error {
		select {
		case <-i.shutdown:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		// The initial dial is not a reconnect.
		if firstDial {
			firstDial = false
		} else if i.metrics != nil {
			i.metrics.reconnects.Inc()
		}

		if err := i.runConnection(ctx); err != nil {
			i.logger.Warn("SDR stream lost, reconnecting",
				"address", net.JoinHostPort(i.host, strconv.Itoa(i.port)),
				"backoff", i.reconnectWait,
				"error", err)
			return err
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		i.logger.Error("Connection supervisor exited", "error", err)
	}
}

// runConnection dials the SDR and reads frames until the stream ends or
// shutdown is requested. A nil return means shutdown; any error means the
// supervisor should back off and reconnect.
func (i *Input) runConnection(ctx context.Context) error {
	address := net.JoinHostPort(i.host, strconv.Itoa(i.port))
	conn, err := i.dialer(ctx, "tcp", address)
	if err != nil {
		i.errorCount.Add(1)
		return errors.WrapTransient(err, "antsdr-input", "runConnection", "dial")
	}

	i.mu.Lock()
	i.conn = conn
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		if i.conn != nil {
			_ = i.conn.Close()
			i.conn = nil
		}
		i.mu.Unlock()
	}()

	i.logger.Info("Connected to SDR stream", "address", address)

	// Close the socket when shutdown or cancellation arrives so the
	// blocking frame read unwinds promptly.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-i.shutdown:
		case <-ctx.Done():
		case <-watchDone:
			return
		}
		_ = conn.Close()
	}()

	framer := NewFramer(conn)
	for {
		select {
		case <-i.shutdown:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := framer.Next()
		if err != nil {
			select {
			case <-i.shutdown:
				return nil
			case <-ctx.Done():
				return nil
			default:
			}

			if errors.IsFrameParse(err) {
				// Partial frame: drop it and keep reading. The next read
				// surfaces EOF if the stream actually died.
				i.errorCount.Add(1)
				if i.metrics != nil {
					i.metrics.frameErrors.Inc()
				}
				i.logger.Debug("Discarded malformed frame", "error", err)
				continue
			}

			if err == io.EOF {
				return errors.WrapTransient(errors.ErrConnectionClosed,
					"antsdr-input", "runConnection", "stream read")
			}
			i.errorCount.Add(1)
			return errors.WrapTransient(err, "antsdr-input", "runConnection", "stream read")
		}

		i.framesReceived.Add(1)
		i.bytesReceived.Add(int64(len(frame)))
		now := time.Now()
		i.lastActivity.Store(now)

		if i.metrics != nil {
			i.metrics.framesReceived.Inc()
			i.metrics.bytesReceived.Add(float64(len(frame)))
			i.metrics.lastActivity.Set(float64(now.Unix()))
		}

		if err := i.publishFrame(frame); err != nil {
			// At-most-once: log and move to the next frame.
			i.errorCount.Add(1)
			i.logger.Warn("Frame publish failed", "subject", i.subject, "error", err)
		}
	}
}

// publishFrame publishes one raw frame to the configured NATS subject
func (i *Input) publishFrame(frame []byte) error {
	nc := i.natsClient.GetConnection()
	if nc == nil {
		return errors.WrapTransient(errors.ErrNoConnection,
			"antsdr-input", "publishFrame", "NATS connection check")
	}
	if err := nc.Publish(i.subject, frame); err != nil {
		return errors.WrapTransient(err, "antsdr-input", "publishFrame", "NATS publish")
	}
	return nil
}

// Stop gracefully stops the input with the specified timeout
func (i *Input) Stop(timeout time.Duration) error {
	if !i.running.Load() {
		return nil
	}
	i.running.Store(false)

	i.mu.Lock()
	if i.shutdown != nil {
		select {
		case <-i.shutdown:
		default:
			close(i.shutdown)
		}
	}
	if i.conn != nil {
		_ = i.conn.Close()
	}
	i.mu.Unlock()

	select {
	case <-i.done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"antsdr-input", "Stop", "graceful shutdown")
	}

	return nil
}

// CreateInput creates an AntSDR input component from raw JSON configuration
func CreateInput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()

	if len(rawConfig) > 0 {
		var userConfig InputConfig
		if err := component.SafeUnmarshal(rawConfig, &userConfig); err != nil {
			return nil, errors.Wrap(err, "antsdr-input-factory", "create", "secure config parsing")
		}
		if userConfig.Ports != nil {
			cfg.Ports = userConfig.Ports
		}
		if userConfig.ReconnectWait != "" {
			cfg.ReconnectWait = userConfig.ReconnectWait
		}
	}

	if deps.NATSClient == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("NATS client is required"),
			"antsdr-input-factory", "create", "NATS client validation")
	}

	inputDeps := InputDeps{
		Name:            "antsdr-input",
		Config:          cfg,
		NATSClient:      deps.NATSClient,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.GetLoggerWithComponent("antsdr-input"),
	}

	return NewInput(inputDeps), nil
}

// Register registers the AntSDR input component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "antsdr",
		Factory:     CreateInput,
		Schema:      antsdrSchema,
		Type:        "input",
		Protocol:    "tcp",
		Domain:      "droneid",
		Description: "AntSDR input component streaming raw DroneID frames over TCP",
		Version:     "1.0.0",
	})
}
