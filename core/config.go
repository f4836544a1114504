package core

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const defaultQueueName = "dispatch-queue"

// OverflowPolicy decides what a bounded queue does with a batch that does
// not fit.
type OverflowPolicy string

const (
	// OverflowBlock makes the producer wait for the worker to make room.
	OverflowBlock OverflowPolicy = "block"

	// OverflowReject fails the dispatch with ErrQueueFull.
	OverflowReject OverflowPolicy = "reject"
)

// UnmarshalText implements encoding.TextUnmarshaler so env parsing validates
// the value.
func (p *OverflowPolicy) UnmarshalText(text []byte) error {
	switch v := OverflowPolicy(strings.ToLower(strings.TrimSpace(string(text)))); v {
	case OverflowBlock, OverflowReject:
		*p = v
		return nil
	case "":
		*p = OverflowBlock
		return nil
	default:
		return fmt.Errorf("%w: unknown overflow policy %q", ErrInvalidConfig, string(text))
	}
}

// Config holds the tunables of a DispatchQueue.
type Config struct {
	// Name labels logs, metrics and history records.
	Name string `env:"DISPATCH_QUEUE_NAME" envDefault:"dispatch-queue"`

	// MaxPending bounds the work queue; 0 means unbounded. A bounded queue
	// needs room for at least the two items Sync enqueues.
	MaxPending int `env:"DISPATCH_QUEUE_MAX_PENDING" envDefault:"0"`

	// Overflow applies when MaxPending is set.
	Overflow OverflowPolicy `env:"DISPATCH_QUEUE_OVERFLOW" envDefault:"block"`

	// HistoryCapacity is the size of the execution history ring buffer.
	HistoryCapacity int `env:"DISPATCH_QUEUE_HISTORY_CAPACITY" envDefault:"100"`
}

// DefaultConfig returns an unbounded queue configuration.
func DefaultConfig() Config {
	return Config{
		Name:            defaultQueueName,
		Overflow:        OverflowBlock,
		HistoryCapacity: defaultTaskHistoryCapacity,
	}
}

// LoadConfig reads a Config from DISPATCH_QUEUE_* environment variables.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("load dispatch queue config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration errors wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if c.MaxPending < 0 {
		return fmt.Errorf("%w: max pending must not be negative, got %d", ErrInvalidConfig, c.MaxPending)
	}
	if c.MaxPending == 1 {
		return fmt.Errorf("%w: max pending must be 0 or at least 2, got 1", ErrInvalidConfig)
	}
	switch c.Overflow {
	case OverflowBlock, OverflowReject, "":
	default:
		return fmt.Errorf("%w: unknown overflow policy %q", ErrInvalidConfig, c.Overflow)
	}
	if c.HistoryCapacity < 0 {
		return fmt.Errorf("%w: history capacity must not be negative, got %d", ErrInvalidConfig, c.HistoryCapacity)
	}
	return nil
}

// =============================================================================
// Options
// =============================================================================

type options struct {
	config              Config
	logger              Logger
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler
}

// Option configures a DispatchQueue.
type Option func(*options)

// WithConfig replaces the whole Config, e.g. one returned by LoadConfig.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithName sets the queue name used in logs, metrics and history.
func WithName(name string) Option {
	return func(o *options) {
		o.config.Name = name
	}
}

// WithMaxPending bounds the work queue.
func WithMaxPending(maxPending int, policy OverflowPolicy) Option {
	return func(o *options) {
		o.config.MaxPending = maxPending
		o.config.Overflow = policy
	}
}

// WithHistoryCapacity sets how many execution records are kept.
func WithHistoryCapacity(capacity int) Option {
	return func(o *options) {
		o.config.HistoryCapacity = capacity
	}
}

// WithLogger sets the logger for lifecycle and panic events.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPanicHandler sets the handler for recovered task panics.
func WithPanicHandler(handler PanicHandler) Option {
	return func(o *options) {
		o.panicHandler = handler
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithRejectedTaskHandler sets the handler told about refused tasks.
func WithRejectedTaskHandler(handler RejectedTaskHandler) Option {
	return func(o *options) {
		o.rejectedTaskHandler = handler
	}
}

func buildOptions(opts []Option) (options, error) {
	o := options{config: DefaultConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if err := o.config.Validate(); err != nil {
		return o, err
	}
	if o.config.Name == "" {
		o.config.Name = defaultQueueName
	}
	if o.config.Overflow == "" {
		o.config.Overflow = OverflowBlock
	}
	if o.logger == nil {
		o.logger = NewDefaultLogger()
	}
	if o.panicHandler == nil {
		o.panicHandler = NewDefaultPanicHandler(o.logger)
	}
	if o.metrics == nil {
		o.metrics = &NilMetrics{}
	}
	if o.rejectedTaskHandler == nil {
		o.rejectedTaskHandler = NewDefaultRejectedTaskHandler(o.logger)
	}
	return o, nil
}
