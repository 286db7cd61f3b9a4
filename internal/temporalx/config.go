package temporalx

import (
	"strings"
	"time"
)

// Config is parsed from TEMPORAL_* variables. An empty Address disables
// Temporal.
type Config struct {
	Address   string `env:"ADDRESS"`
	Namespace string `env:"NAMESPACE" envDefault:"yieldvault"`
	TaskQueue string `env:"TASK_QUEUE" envDefault:"yieldvault-harvest"`

	ClientCertPath string `env:"CLIENT_CERT_PATH"`
	ClientKeyPath  string `env:"CLIENT_KEY_PATH"`
	ClientCAPath   string `env:"CLIENT_CA_PATH"`

	DialTimeout    time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	DialMaxWait    time.Duration `env:"DIAL_MAX_WAIT" envDefault:"60s"`
	DialBackoff    time.Duration `env:"DIAL_BACKOFF" envDefault:"250ms"`
	DialBackoffMax time.Duration `env:"DIAL_BACKOFF_MAX" envDefault:"5s"`

	AutoRegisterNamespace  bool          `env:"AUTO_REGISTER_NAMESPACE" envDefault:"false"`
	NamespaceRetentionDays int           `env:"NAMESPACE_RETENTION_DAYS" envDefault:"7"`
	NamespaceEnsureTimeout time.Duration `env:"NAMESPACE_ENSURE_TIMEOUT" envDefault:"10s"`

	WorkerStartMaxWait time.Duration `env:"WORKER_START_MAX_WAIT" envDefault:"60s"`
	WorkerConcurrency  int           `env:"WORKER_CONCURRENCY" envDefault:"4"`
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Address) != "" }

func (c Config) hasTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

func (c Config) retentionDays() int {
	switch {
	case c.NamespaceRetentionDays < 1:
		return 7
	case c.NamespaceRetentionDays > 365:
		return 365
	default:
		return c.NamespaceRetentionDays
	}
}
