package messaging

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// NATSConfig holds the connection settings of the notifier.
type NATSConfig struct {
	Name string `env:"NATS_NAME" envDefault:"zone"`
	// URL of the NATS server. Empty means notifications are only logged.
	URL             string `env:"NATS_URL"`
	CredentialsFile string `env:"NATS_CREDENTIALS_FILE"`
	// SubjectPrefix is prepended to every subject, usually "<cluster>.<zone id>".
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"zone"`
}

// LoadNATSConfig parses NATSConfig from the environment.
func LoadNATSConfig() (NATSConfig, error) {
	cfg, err := env.ParseAs[NATSConfig]()
	if err != nil {
		return cfg, eris.Wrap(err, "failed to parse NATS config")
	}
	return cfg, nil
}

func (cfg NATSConfig) validate() error {
	if cfg.URL == "" {
		return eris.New("NATS URL is required")
	}
	if cfg.SubjectPrefix == "" {
		return eris.New("NATS subject prefix is required")
	}
	return nil
}

// NATSNotifier publishes notifications as JSON on `<prefix>.entity.<id>.<event>` or
// `<prefix>.zone.<event>`.
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
	log    zerolog.Logger
}

var _ Notifier = (*NATSNotifier)(nil)

func NewNATSNotifier(cfg NATSConfig, logger zerolog.Logger) (*NATSNotifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid NATS config")
	}

	n := &NATSNotifier{prefix: cfg.SubjectPrefix, log: logger}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(10),
		nats.ReconnectWait(5 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			n.log.Warn().Err(err).Msg("Disconnected from NATS server")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			n.log.Info().Str("url", c.ConnectedUrl()).Msg("Reconnected to NATS server")
		}),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredentialsFile))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to NATS server")
	}
	n.conn = conn

	n.log.Info().Str("url", conn.ConnectedUrl()).Str("prefix", cfg.SubjectPrefix).Msg("Connected to NATS server")
	return n, nil
}

// Notify publishes the event. Publishing is buffered by the NATS client, so this does not block
// on the network; failures are logged and dropped.
func (n *NATSNotifier) Notify(scope Scope, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Error().Err(err).Str("event", event.Name()).Msg("Failed to marshal notification")
		return
	}
	subject := n.prefix + "." + scope.Subject(event.Name())
	if err := n.conn.Publish(subject, payload); err != nil {
		n.log.Error().Err(err).Str("subject", subject).Msg("Failed to publish notification")
	}
}

// Close flushes pending notifications and closes the connection.
func (n *NATSNotifier) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return eris.Wrap(err, "failed to drain NATS connection")
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when no NATS server is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (l *LogNotifier) Notify(scope Scope, event Event) {
	l.log.Debug().Str("subject", scope.Subject(event.Name())).Interface("payload", event).Msg("notification")
}
