package telemetry

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/argus-labs/zone-engine/pkg/assert"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Telemetry struct {
	Logger      zerolog.Logger
	serviceName string

	metrics *Metrics
}

func New(opts Options) (Telemetry, error) {
	config, err := loadConfig()
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to load telemetry config")
	}

	options := newDefaultOptions()
	config.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return Telemetry{}, eris.Wrap(err, "invalid telemetry options")
	}

	logger := newLogger(options)

	metrics, err := newMetrics(options)
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to setup metrics")
	}

	return Telemetry{
		Logger:      logger,
		serviceName: options.ServiceName,
		metrics:     metrics,
	}, nil
}

// Metrics returns the statsd-backed metrics sink. It is never nil.
func (t *Telemetry) Metrics() *Metrics {
	if t.metrics == nil {
		return NopMetrics()
	}
	return t.metrics
}

// Shutdown flushes and closes the metrics client.
func (t *Telemetry) Shutdown(_ context.Context) error {
	if t.metrics != nil {
		return t.metrics.Close()
	}
	return nil
}

// GetLogger returns a component-specific logger.
func (t *Telemetry) GetLogger(component string) zerolog.Logger {
	return t.Logger.With().Str("component", t.serviceName+"."+component).Logger()
}

func init() { //nolint:gochecknoinits // Its fine
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	log.Logger = zerolog.New(consoleWriter). //nolint:reassign // Its fine
							With().
							Timestamp().
							Caller().
							Logger()
}

// GetGlobalLogger returns a component-specific logger using the global console logger.
func GetGlobalLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

func newLogger(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writer io.Writer
	switch opts.LogFormat {
	case LogFormatPretty:
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	case LogFormatJSON:
		writer = os.Stdout
	case LogFormatUndefined:
		assert.Unreachable("log format validated before logger setup")
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}
