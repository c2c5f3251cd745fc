package droneid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/alphafox02/antsdr-dji-droneid/component"
	"github.com/alphafox02/antsdr-dji-droneid/errors"
	"github.com/alphafox02/antsdr-dji-droneid/natsclient"
	"github.com/alphafox02/antsdr-dji-droneid/types"
)

// Default NATS subjects for the pipeline.
const (
	defaultFramesSubject   = "droneid.frames.raw"
	defaultAuxSubject      = "droneid.aux.gps"
	defaultMessagesSubject = "droneid.messages"
	defaultDisplaySubject  = "droneid.display"

	defaultPollTimeout = 50 * time.Millisecond
	defaultPollBatch   = 4

	// nextMsgWait bounds each blocking wait for a frame so shutdown is
	// always observed promptly.
	nextMsgWait = 250 * time.Millisecond
)

// Config holds configuration for the telemetry pipeline processor
type Config struct {
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	// Bound on the first auxiliary feed receive per frame; "0s" polls
	// strictly non-blockingly.
	PollTimeout string `json:"poll_timeout" schema:"type:string,description:Auxiliary feed poll timeout,default:50ms,category:advanced"`

	// Maximum auxiliary messages drained per frame.
	PollBatch int `json:"poll_batch" schema:"type:int,description:Auxiliary messages drained per poll,default:4,min:1,category:advanced"`

	// Horizontal speeds above this are reset to zero.
	MaxHorizontalSpeed float64 `json:"max_horizontal_speed" schema:"type:float,description:Speed artifact threshold in m/s,default:200,category:advanced"`

	// Serials with fewer visible characters are replaced with the alert
	// sentinel.
	MinSerialChars int `json:"min_serial_chars" schema:"type:int,description:Minimum visible serial characters,default:5,min:1,category:advanced"`
}

// Validate implements component.Validatable for secure config validation
func (c *Config) Validate() error {
	if c.PollTimeout != "" {
		d, err := time.ParseDuration(c.PollTimeout)
		if err != nil {
			return errors.WrapInvalid(
				fmt.Errorf("invalid poll_timeout %q: %w", c.PollTimeout, err),
				"Config", "Validate", "duration parsing")
		}
		if d < 0 {
			return errors.WrapInvalid(
				fmt.Errorf("poll_timeout must not be negative, got %q", c.PollTimeout),
				"Config", "Validate", "duration validation")
		}
	}
	if c.PollBatch < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("poll_batch must not be negative, got %d", c.PollBatch),
			"Config", "Validate", "batch validation")
	}
	if c.MaxHorizontalSpeed < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("max_horizontal_speed must not be negative, got %g", c.MaxHorizontalSpeed),
			"Config", "Validate", "speed validation")
	}
	if c.MinSerialChars < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("min_serial_chars must not be negative, got %d", c.MinSerialChars),
			"Config", "Validate", "serial validation")
	}

	if c.Ports != nil {
		for _, port := range append(c.Ports.Inputs, c.Ports.Outputs...) {
			if port.Type == "nats" && port.Subject == "" {
				return errors.WrapInvalid(errors.ErrInvalidConfig,
					"Config", "Validate", "NATS subject validation")
			}
		}
	}

	return nil
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "frames_input",
					Type:        "nats",
					Subject:     defaultFramesSubject,
					Required:    true,
					Description: "Raw SDR frames to decode",
				},
				{
					Name:        "aux_input",
					Type:        "nats",
					Subject:     defaultAuxSubject,
					Required:    false,
					Description: "Host sensor GPS feed for position fallback",
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "messages_output",
					Type:        "nats",
					Subject:     defaultMessagesSubject,
					Required:    true,
					Description: "Public JSON message array endpoint",
				},
				{
					Name:        "display_output",
					Type:        "nats",
					Subject:     defaultDisplaySubject,
					Required:    true,
					Description: "Internal display records for the CoT output",
				},
			},
		},
		PollTimeout:        "50ms",
		PollBatch:          defaultPollBatch,
		MaxHorizontalSpeed: 200.0,
		MinSerialChars:     5,
	}
}

// pipelineSchema is generated from Config struct tags using reflection
var pipelineSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Processor drives the decode → validate/fallback → format → publish
// pipeline. One worker goroutine consumes frames strictly sequentially:
// one record in yields one publish action out before the next frame is
// read. The auxiliary feed is drained between frames so the cache holds
// the freshest available fix without ever blocking the pipeline.
type Processor struct {
	name            string
	framesSubject   string
	auxSubject      string
	messagesSubject string
	displaySubject  string
	policy          Policy
	pollTimeout     time.Duration
	pollBatch       int
	natsClient      *natsclient.Client
	logger          *slog.Logger

	cache *Cache
	clock func() time.Time
	newID func() string

	// Lifecycle management
	shutdown    chan struct{}
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex
	wg          sync.WaitGroup

	framesSub *nats.Subscription
	auxSub    *nats.Subscription

	// Flow counters
	framesProcessed atomic.Int64
	recordsOut      atomic.Int64
	errorCount      atomic.Int64
	lastActivity    atomic.Value // stores time.Time

	metrics *pipelineMetrics
}

// Ensure Processor implements all required interfaces
var _ component.Discoverable = (*Processor)(nil)
var _ component.LifecycleComponent = (*Processor)(nil)

// NewProcessor creates a telemetry pipeline processor from raw JSON
// configuration.
func NewProcessor(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()

	if len(rawConfig) > 0 {
		var userConfig Config
		if err := component.SafeUnmarshal(rawConfig, &userConfig); err != nil {
			return nil, errors.Wrap(err, "droneid-processor", "NewProcessor", "secure config parsing")
		}
		if userConfig.Ports != nil {
			cfg.Ports = userConfig.Ports
		}
		if userConfig.PollTimeout != "" {
			cfg.PollTimeout = userConfig.PollTimeout
		}
		if userConfig.PollBatch > 0 {
			cfg.PollBatch = userConfig.PollBatch
		}
		if userConfig.MaxHorizontalSpeed > 0 {
			cfg.MaxHorizontalSpeed = userConfig.MaxHorizontalSpeed
		}
		if userConfig.MinSerialChars > 0 {
			cfg.MinSerialChars = userConfig.MinSerialChars
		}
	}

	if deps.NATSClient == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("NATS client is required"),
			"droneid-processor", "NewProcessor", "NATS client validation")
	}

	metrics, err := newPipelineMetrics(deps.MetricsRegistry, "droneid-processor")
	if err != nil {
		deps.GetLogger().Error("Failed to initialize pipeline metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	pollTimeout := defaultPollTimeout
	if d, perr := time.ParseDuration(cfg.PollTimeout); perr == nil && d >= 0 {
		pollTimeout = d
	}

	p := &Processor{
		name:            "droneid-processor",
		framesSubject:   defaultFramesSubject,
		auxSubject:      defaultAuxSubject,
		messagesSubject: defaultMessagesSubject,
		displaySubject:  defaultDisplaySubject,
		policy: Policy{
			MaxHorizontalSpeed: cfg.MaxHorizontalSpeed,
			MinSerialChars:     cfg.MinSerialChars,
		},
		pollTimeout: pollTimeout,
		pollBatch:   cfg.PollBatch,
		natsClient:  deps.NATSClient,
		logger:      deps.GetLoggerWithComponent("droneid-processor"),
		cache:       &Cache{},
		clock:       time.Now,
		newID:       uuid.NewString,
		metrics:     metrics,
	}
	p.lastActivity.Store(time.Time{})
	p.applyPortSubjects(cfg.Ports)
	return p, nil
}

// applyPortSubjects maps configured port subjects onto the pipeline by
// port name.
func (p *Processor) applyPortSubjects(ports *component.PortConfig) {
	if ports == nil {
		return
	}
	for _, input := range ports.Inputs {
		if input.Type != "nats" || input.Subject == "" {
			continue
		}
		switch input.Name {
		case "aux_input":
			p.auxSubject = input.Subject
		default:
			p.framesSubject = input.Subject
		}
	}
	for _, output := range ports.Outputs {
		if output.Type != "nats" || output.Subject == "" {
			continue
		}
		switch output.Name {
		case "display_output":
			p.displaySubject = output.Subject
		default:
			p.messagesSubject = output.Subject
		}
	}
}

// Initialize validates the pipeline configuration
func (p *Processor) Initialize() error {
	if p.framesSubject == "" || p.messagesSubject == "" || p.displaySubject == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"droneid-processor", "Initialize", "subject validation")
	}
	if p.natsClient == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS client"),
			"droneid-processor", "Initialize", "NATS client validation")
	}
	return nil
}

// Start subscribes to the frame and auxiliary subjects and launches the
// pipeline worker.
func (p *Processor) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running {
		return nil
	}

	framesSub, err := p.natsClient.SubscribeSync(p.framesSubject)
	if err != nil {
		return errors.WrapTransient(err, "droneid-processor", "Start",
			fmt.Sprintf("subscribe to %s", p.framesSubject))
	}

	auxSub, err := p.natsClient.SubscribeSync(p.auxSubject)
	if err != nil {
		_ = framesSub.Unsubscribe()
		return errors.WrapTransient(err, "droneid-processor", "Start",
			fmt.Sprintf("subscribe to %s", p.auxSubject))
	}

	p.mu.Lock()
	p.framesSub = framesSub
	p.auxSub = auxSub
	p.running = true
	p.startTime = time.Now()
	p.mu.Unlock()

	p.shutdown = make(chan struct{})
	feed := NewFeed(auxSub, p.cache, p.pollTimeout, p.pollBatch)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, framesSub, feed)
	}()

	p.logger.Info("Pipeline started",
		"frames_subject", p.framesSubject,
		"aux_subject", p.auxSubject,
		"messages_subject", p.messagesSubject,
		"display_subject", p.displaySubject)

	return nil
}

// run is the single pipeline worker: strictly sequential frame handling
// with an auxiliary drain between frames, and during frame-quiet periods
// so the cache tracks the freshest fix.
func (p *Processor) run(ctx context.Context, frames messageSource, feed *Feed) {
	for {
		select {
		case <-p.shutdown:
			return
		case <-ctx.Done():
			return
		default:
		}

		msg, err := frames.NextMsg(nextMsgWait)
		if err != nil {
			if err == nats.ErrTimeout {
				updates := feed.Poll()
				p.metrics.recordAuxUpdates(p.name, updates)
				continue
			}
			// Subscription closed or connection gone; the NATS client owns
			// reconnection, the worker just stops consuming.
			select {
			case <-p.shutdown:
			case <-ctx.Done():
			default:
				p.logger.Warn("Frame subscription ended", "error", err)
			}
			return
		}

		updates := feed.Poll()
		p.metrics.recordAuxUpdates(p.name, updates)

		p.handleFrame(ctx, msg.Data)
	}
}

// handleFrame runs one frame through the pipeline and publishes the
// results. Publish failures are logged and never retried.
func (p *Processor) handleFrame(ctx context.Context, frame []byte) {
	start := time.Now()
	p.framesProcessed.Add(1)
	p.lastActivity.Store(start)

	display, ok := p.processFrame(frame)
	if !ok {
		return
	}

	p.metrics.recordPositionSource(p.name, display.PositionSource)
	p.metrics.recordDecoded(p.name, time.Since(start))

	msgs := FormatMessages(display)
	if len(msgs) == 0 {
		return
	}

	payload, err := json.Marshal(msgs)
	if err != nil {
		p.errorCount.Add(1)
		p.logger.Error("Message array marshal failed", "error", err)
		return
	}
	if err := p.natsClient.Publish(ctx, p.messagesSubject, payload); err != nil {
		p.errorCount.Add(1)
		p.metrics.recordPublishError(p.name, p.messagesSubject)
		p.logger.Warn("Message publish failed", "subject", p.messagesSubject, "error", err)
	}

	envelope := types.DisplayEnvelope{
		ID:         p.newID(),
		ObservedAt: p.clock(),
		Record:     display,
	}
	envPayload, err := json.Marshal(envelope)
	if err != nil {
		p.errorCount.Add(1)
		p.logger.Error("Display envelope marshal failed", "error", err)
		return
	}
	if err := p.natsClient.Publish(ctx, p.displaySubject, envPayload); err != nil {
		p.errorCount.Add(1)
		p.metrics.recordPublishError(p.name, p.displaySubject)
		p.logger.Warn("Display publish failed", "subject", p.displaySubject, "error", err)
	}

	p.recordsOut.Add(1)
}

// processFrame runs parse → decode → validate/fallback for one raw frame.
// The second return is false when the frame yielded no record (skipped
// package type or decode failure).
func (p *Processor) processFrame(frame []byte) (types.DisplayRecord, bool) {
	packageType, payload, err := ParseFrame(frame)
	if err != nil {
		p.errorCount.Add(1)
		p.metrics.recordDecodeError(p.name, "frame")
		p.logger.Debug("Dropped unparseable frame", "error", err)
		return types.DisplayRecord{}, false
	}

	if packageType != PackageTypeTelemetry {
		p.metrics.recordFrameSkipped(p.name)
		return types.DisplayRecord{}, false
	}

	record, err := DecodeRecord(payload)
	if err != nil {
		p.errorCount.Add(1)
		p.metrics.recordDecodeError(p.name, "record")
		p.logger.Debug("Dropped undecodable record", "error", err)
		return types.DisplayRecord{}, false
	}

	aux, haveAux := p.cache.Snapshot()
	return p.policy.BuildDisplayRecord(record, aux, haveAux), true
}

// Stop gracefully stops the pipeline worker
func (p *Processor) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.running {
		return nil
	}

	close(p.shutdown)

	waitCh := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("shutdown timeout after %v", timeout),
			"droneid-processor", "Stop", "graceful shutdown")
	}

	p.mu.Lock()
	if p.framesSub != nil {
		_ = p.framesSub.Unsubscribe()
		p.framesSub = nil
	}
	if p.auxSub != nil {
		_ = p.auxSub.Unsubscribe()
		p.auxSub = nil
	}
	p.running = false
	p.mu.Unlock()

	return nil
}

// Discoverable interface implementation

// Meta returns metadata describing this processor component.
func (p *Processor) Meta() component.Metadata {
	return component.Metadata{
		Name:        p.name,
		Type:        "processor",
		Description: "DroneID telemetry pipeline: decode, validate, format, publish",
		Version:     "1.0.0",
	}
}

// InputPorts returns the NATS input ports this processor consumes.
func (p *Processor) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "frames_input",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: "Raw SDR frames to decode",
			Config:      component.NATSPort{Subject: p.framesSubject},
		},
		{
			Name:        "aux_input",
			Direction:   component.DirectionInput,
			Required:    false,
			Description: "Host sensor GPS feed for position fallback",
			Config:      component.NATSPort{Subject: p.auxSubject},
		},
	}
}

// OutputPorts returns the NATS output ports this processor publishes to.
func (p *Processor) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "messages_output",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: "Public JSON message array endpoint",
			Config:      component.NATSPort{Subject: p.messagesSubject},
		},
		{
			Name:        "display_output",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: "Internal display records for the CoT output",
			Config:      component.NATSPort{Subject: p.displaySubject},
		},
	}
}

// ConfigSchema returns the configuration schema for this processor.
func (p *Processor) ConfigSchema() component.ConfigSchema {
	return pipelineSchema
}

// Health returns the current health status of this processor.
func (p *Processor) Health() component.HealthStatus {
	p.mu.RLock()
	running := p.running
	p.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(p.errorCount.Load()),
		Uptime:     time.Since(p.startTime),
	}
}

// DataFlow returns current data flow metrics for this processor.
func (p *Processor) DataFlow() component.FlowMetrics {
	processed := p.framesProcessed.Load()
	errCount := p.errorCount.Load()
	lastActivity, _ := p.lastActivity.Load().(time.Time)

	var perSecond float64
	if uptime := time.Since(p.startTime).Seconds(); uptime > 0 {
		perSecond = float64(processed) / uptime
	}

	var errorRate float64
	if processed > 0 {
		errorRate = float64(errCount) / float64(processed)
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Register registers the pipeline processor with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "droneid",
		Factory:     NewProcessor,
		Schema:      pipelineSchema,
		Type:        "processor",
		Protocol:    "nats",
		Domain:      "droneid",
		Description: "DroneID telemetry pipeline processor",
		Version:     "1.0.0",
	})
}
