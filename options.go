package gojabridge

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// defaultLogRateLimits bound the rate of repeated log events attributable
// to a single native callback.
var defaultLogRateLimits = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// instanceOptions holds configuration for an [Instance].
type instanceOptions struct {
	logger           *logiface.Logger[logiface.Event]
	logLimiter       *catrate.Limiter
	registry         *require.Registry
	fieldNameMapper  goja.FieldNameMapper
	maxCallStackSize int
	console          bool
}

// Option configures an [Instance]. Options are applied by [New].
type Option interface {
	applyOption(*instanceOptions) error
}

// optionFunc implements [Option] via a closure.
type optionFunc struct {
	fn func(*instanceOptions) error
}

func (o *optionFunc) applyOption(opts *instanceOptions) error {
	return o.fn(opts)
}

// WithLogger configures the structured logger used by the instance. A nil
// logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionFunc{fn: func(opts *instanceOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithLogRateLimits configures the per-callback rate limits applied to
// warnings and errors logged for native callbacks, e.g. recovered panics.
// The rates have the semantics of [catrate.NewLimiter]. An empty map
// disables rate limiting.
func WithLogRateLimits(rates map[time.Duration]int) Option {
	return &optionFunc{fn: func(opts *instanceOptions) (err error) {
		if len(rates) == 0 {
			opts.logLimiter = nil
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("invalid log rate limits: %v", r)
			}
		}()
		opts.logLimiter = catrate.NewLimiter(rates)
		return nil
	}}
}

// WithConsole installs a global console object, backed by the
// goja_nodejs console module, which writes through the instance logger.
func WithConsole(enabled bool) Option {
	return &optionFunc{fn: func(opts *instanceOptions) error {
		opts.console = enabled
		return nil
	}}
}

// WithRegistry enables require() on the runtime, resolving modules using
// the given registry. If combined with [WithConsole], the console module is
// registered on this registry.
func WithRegistry(registry *require.Registry) Option {
	return &optionFunc{fn: func(opts *instanceOptions) error {
		opts.registry = registry
		return nil
	}}
}

// WithFieldNameMapper sets the [goja.FieldNameMapper] used when Go values
// reachable via [Instance.Runtime] are reflected into the runtime.
func WithFieldNameMapper(mapper goja.FieldNameMapper) Option {
	return &optionFunc{fn: func(opts *instanceOptions) error {
		opts.fieldNameMapper = mapper
		return nil
	}}
}

// WithMaxCallStackSize limits the depth of the script call stack. Zero
// keeps the engine default.
func WithMaxCallStackSize(size int) Option {
	return &optionFunc{fn: func(opts *instanceOptions) error {
		if size < 0 {
			return fmt.Errorf("invalid max call stack size: %d", size)
		}
		opts.maxCallStackSize = size
		return nil
	}}
}

// resolveOptions applies the given options to a default [instanceOptions].
func resolveOptions(opts []Option) (*instanceOptions, error) {
	cfg := &instanceOptions{
		logLimiter: catrate.NewLimiter(defaultLogRateLimits),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
