// Package cot provides the Cursor-on-Target output component for TAK consumers
package cot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alphafox02/antsdr-dji-droneid/component"
	"github.com/alphafox02/antsdr-dji-droneid/errors"
	"github.com/alphafox02/antsdr-dji-droneid/metric"
	"github.com/alphafox02/antsdr-dji-droneid/natsclient"
	"github.com/alphafox02/antsdr-dji-droneid/types"
)

// Destination modes.
const (
	ModeUnicast   = "unicast"
	ModeMulticast = "multicast"

	defaultSubject       = "droneid.display"
	defaultUnicastHost   = "127.0.0.1"
	defaultUnicastPort   = 6666
	defaultMulticastIP   = "239.2.3.1"
	defaultMulticastPort = 6969
)

// Config holds configuration for the CoT output component
type Config struct {
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	Mode string `json:"mode" schema:"type:enum,enum:unicast|multicast,description:Datagram destination mode,default:unicast,category:basic"`

	// Unicast TAK server destination.
	Host string `json:"host" schema:"type:string,description:TAK server host,default:127.0.0.1,category:basic"`
	Port int    `json:"port" schema:"type:int,description:TAK server port,default:6666,min:1,max:65535,category:basic"`

	// Multicast group destination.
	MulticastGroup string `json:"multicast_group" schema:"type:string,description:Multicast group address,default:239.2.3.1,category:advanced"`
	MulticastPort  int    `json:"multicast_port"  schema:"type:int,description:Multicast port,default:6969,min:1,max:65535,category:advanced"`
}

// Validate implements component.Validatable for secure config validation
func (c *Config) Validate() error {
	if c.Mode != "" && c.Mode != ModeUnicast && c.Mode != ModeMulticast {
		return errors.WrapInvalid(
			fmt.Errorf("invalid mode %q", c.Mode),
			"Config", "Validate", "mode validation")
	}
	if c.Port != 0 {
		if err := component.ValidatePortNumber(c.Port); err != nil {
			return errors.Wrap(err, "Config", "Validate", "port validation")
		}
	}
	if c.MulticastPort != 0 {
		if err := component.ValidatePortNumber(c.MulticastPort); err != nil {
			return errors.Wrap(err, "Config", "Validate", "multicast port validation")
		}
	}
	if c.MulticastGroup != "" {
		ip := net.ParseIP(c.MulticastGroup)
		if ip == nil || !ip.IsMulticast() {
			return errors.WrapInvalid(
				fmt.Errorf("invalid multicast group %q", c.MulticastGroup),
				"Config", "Validate", "multicast group validation")
		}
	}
	return nil
}

// DefaultConfig returns default configuration for the CoT output
func DefaultConfig() Config {
	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "display_input",
					Type:        "nats",
					Subject:     defaultSubject,
					Required:    true,
					Description: "Display records to render as CoT events",
				},
			},
		},
		Mode:           ModeUnicast,
		Host:           defaultUnicastHost,
		Port:           defaultUnicastPort,
		MulticastGroup: defaultMulticastIP,
		MulticastPort:  defaultMulticastPort,
	}
}

// cotSchema is generated from Config struct tags using reflection
var cotSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// cotMetrics holds Prometheus metrics for the CoT output.
type cotMetrics struct {
	eventsSent  prometheus.Counter
	sendErrors  prometheus.Counter
	skipped     prometheus.Counter
	parseErrors prometheus.Counter
}

func newCotMetrics(registry *metric.MetricsRegistry) *cotMetrics {
	if registry == nil {
		return nil
	}

	m := &cotMetrics{
		eventsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "cot",
			Name:      "events_sent_total",
			Help:      "CoT events sent as UDP datagrams",
		}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "cot",
			Name:      "send_errors_total",
			Help:      "Datagram send failures (events abandoned)",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "cot",
			Name:      "events_skipped_total",
			Help:      "Records skipped because no plottable position exists",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "droneid",
			Subsystem: "cot",
			Name:      "parse_errors_total",
			Help:      "Display envelopes that could not be parsed",
		}),
	}

	registry.RegisterCounter("cot_output", "events_sent", m.eventsSent)
	registry.RegisterCounter("cot_output", "send_errors", m.sendErrors)
	registry.RegisterCounter("cot_output", "events_skipped", m.skipped)
	registry.RegisterCounter("cot_output", "parse_errors", m.parseErrors)

	return m
}

// Output renders display records as CoT events and sends them over UDP.
// Delivery is unacknowledged: send errors are logged and the event is
// abandoned.
type Output struct {
	name       string
	subject    string
	mode       string
	address    string
	natsClient *natsclient.Client
	logger     *slog.Logger
	clock      func() time.Time

	// Lifecycle management
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex
	conn        net.Conn
	sub         *nats.Subscription

	// Flow counters
	eventsSent   atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Value // stores time.Time

	metrics *cotMetrics
}

// Ensure Output implements all required interfaces
var _ component.Discoverable = (*Output)(nil)
var _ component.LifecycleComponent = (*Output)(nil)

// NewOutput creates a CoT output component from raw JSON configuration
func NewOutput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()

	if len(rawConfig) > 0 {
		var userConfig Config
		if err := component.SafeUnmarshal(rawConfig, &userConfig); err != nil {
			return nil, errors.Wrap(err, "cot-output", "NewOutput", "secure config parsing")
		}
		if userConfig.Ports != nil {
			cfg.Ports = userConfig.Ports
		}
		if userConfig.Mode != "" {
			cfg.Mode = userConfig.Mode
		}
		if userConfig.Host != "" {
			cfg.Host = userConfig.Host
		}
		if userConfig.Port != 0 {
			cfg.Port = userConfig.Port
		}
		if userConfig.MulticastGroup != "" {
			cfg.MulticastGroup = userConfig.MulticastGroup
		}
		if userConfig.MulticastPort != 0 {
			cfg.MulticastPort = userConfig.MulticastPort
		}
	}

	if deps.NATSClient == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("NATS client is required"),
			"cot-output", "NewOutput", "NATS client validation")
	}

	subject := defaultSubject
	for _, input := range cfg.Ports.Inputs {
		if input.Type == "nats" && input.Subject != "" {
			subject = input.Subject
			break
		}
	}

	address := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	if cfg.Mode == ModeMulticast {
		address = net.JoinHostPort(cfg.MulticastGroup, strconv.Itoa(cfg.MulticastPort))
	}

	o := &Output{
		name:       "cot-output",
		subject:    subject,
		mode:       cfg.Mode,
		address:    address,
		natsClient: deps.NATSClient,
		logger:     deps.GetLoggerWithComponent("cot-output"),
		clock:      time.Now,
		metrics:    newCotMetrics(deps.MetricsRegistry),
	}
	o.lastActivity.Store(time.Time{})
	return o, nil
}

// Initialize validates the destination address
func (o *Output) Initialize() error {
	if o.subject == "" {
		return errors.WrapInvalid(fmt.Errorf("empty subject"),
			"cot-output", "Initialize", "subject validation")
	}
	if _, err := net.ResolveUDPAddr("udp", o.address); err != nil {
		return errors.WrapInvalid(err, "cot-output", "Initialize", "address resolution")
	}
	return nil
}

// Start opens the UDP socket and subscribes to the display subject
func (o *Output) Start(ctx context.Context) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if o.running {
		return nil
	}

	// A connected UDP socket; for multicast destinations the kernel's
	// default multicast TTL of 1 keeps datagrams on the local segment.
	conn, err := net.Dial("udp", o.address)
	if err != nil {
		return errors.WrapTransient(err, "cot-output", "Start", "UDP socket")
	}

	sub, err := o.natsClient.Subscribe(ctx, o.subject, o.handleEnvelope)
	if err != nil {
		_ = conn.Close()
		return errors.WrapTransient(err, "cot-output", "Start",
			fmt.Sprintf("subscribe to %s", o.subject))
	}

	o.mu.Lock()
	o.conn = conn
	o.sub = sub
	o.running = true
	o.startTime = time.Now()
	o.mu.Unlock()

	o.logger.Info("CoT output started",
		"subject", o.subject,
		"mode", o.mode,
		"destination", o.address)

	return nil
}

// Stop closes the UDP socket
func (o *Output) Stop(timeout time.Duration) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if !o.running {
		return nil
	}

	o.mu.Lock()
	// Unsubscribe before closing the socket so late envelopes are not
	// counted as send failures.
	if o.sub != nil {
		_ = o.sub.Unsubscribe()
		o.sub = nil
	}
	if o.conn != nil {
		_ = o.conn.Close()
		o.conn = nil
	}
	o.running = false
	o.mu.Unlock()

	return nil
}

// handleEnvelope renders one display envelope as a CoT event and sends it
func (o *Output) handleEnvelope(_ context.Context, data []byte) {
	o.lastActivity.Store(time.Now())

	var envelope types.DisplayEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		o.errorCount.Add(1)
		if o.metrics != nil {
			o.metrics.parseErrors.Inc()
		}
		o.logger.Debug("Dropped unparseable display envelope", "error", err)
		return
	}

	// A record without a usable position must not be plotted.
	if envelope.Record.PositionSource == types.PositionSourceNone {
		if o.metrics != nil {
			o.metrics.skipped.Inc()
		}
		return
	}

	payload, err := Render(BuildEvent(envelope.Record, o.clock()))
	if err != nil {
		o.errorCount.Add(1)
		o.logger.Error("CoT render failed", "error", err)
		return
	}

	o.mu.RLock()
	conn := o.conn
	o.mu.RUnlock()
	if conn == nil {
		// Envelope raced the unsubscribe during shutdown; not an error.
		return
	}

	if _, err := conn.Write(payload); err != nil {
		o.errorCount.Add(1)
		if o.metrics != nil {
			o.metrics.sendErrors.Inc()
		}
		o.logger.Warn("CoT send failed", "destination", o.address, "error", err)
		return
	}

	o.eventsSent.Add(1)
	if o.metrics != nil {
		o.metrics.eventsSent.Inc()
	}
}

// Discoverable interface implementation

// Meta returns component metadata
func (o *Output) Meta() component.Metadata {
	return component.Metadata{
		Name:        o.name,
		Type:        "output",
		Description: fmt.Sprintf("CoT XML over UDP %s to %s", o.mode, o.address),
		Version:     "1.0.0",
	}
}

// InputPorts returns the display subject this output consumes
func (o *Output) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "display_input",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: "Display records to render as CoT events",
			Config:      component.NATSPort{Subject: o.subject},
		},
	}
}

// OutputPorts returns the UDP destination port
func (o *Output) OutputPorts() []component.Port {
	host, portStr, err := net.SplitHostPort(o.address)
	port := 0
	if err == nil {
		port, _ = strconv.Atoi(portStr)
	}

	return []component.Port{
		{
			Name:        "udp_destination",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: fmt.Sprintf("UDP %s destination for CoT datagrams", o.mode),
			Config: component.NetworkPort{
				Protocol: "udp",
				Host:     host,
				Port:     port,
			},
		},
	}
}

// ConfigSchema returns the configuration schema
func (o *Output) ConfigSchema() component.ConfigSchema {
	return cotSchema
}

// Health returns the current health status
func (o *Output) Health() component.HealthStatus {
	o.mu.RLock()
	running := o.running
	connected := o.conn != nil
	o.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    running && connected,
		LastCheck:  time.Now(),
		ErrorCount: int(o.errorCount.Load()),
		Uptime:     time.Since(o.startTime),
	}
}

// DataFlow returns current data flow metrics
func (o *Output) DataFlow() component.FlowMetrics {
	sent := o.eventsSent.Load()
	errCount := o.errorCount.Load()
	lastActivity, _ := o.lastActivity.Load().(time.Time)

	var perSecond float64
	if uptime := time.Since(o.startTime).Seconds(); uptime > 0 {
		perSecond = float64(sent) / uptime
	}

	var errorRate float64
	if total := sent + errCount; total > 0 {
		errorRate = float64(errCount) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Register registers the CoT output component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "cot",
		Factory:     NewOutput,
		Schema:      cotSchema,
		Type:        "output",
		Protocol:    "udp",
		Domain:      "tak",
		Description: "CoT XML output over UDP unicast or multicast for TAK consumers",
		Version:     "1.0.0",
	})
}
