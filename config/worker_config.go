package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Mode identifies which command the process runs as. Validation rules differ per mode.
type Mode string

const (
	ModeServe           Mode = "serve"
	ModeRun             Mode = "run"
	ModeRunRemote       Mode = "run-remote"
	ModeScanCorrections Mode = "scan-corrections"
)

// Mail store backends
const (
	MailStoreNotmuch = "notmuch"
	MailStoreMaildir = "maildir"
	MailStoreGmail   = "gmail"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Pipeline
	MonitoredAddresses  []string `env:"MONITORED_ADDRESSES" envSeparator:","`
	ConfidenceThreshold float64  `env:"CONFIDENCE_THRESHOLD" envDefault:"0.6"`
	WorkerConcurrency   int      `env:"WORKER_CONCURRENCY" envDefault:"4"`
	FewShotLimit        int      `env:"FEW_SHOT_LIMIT" envDefault:"5"`
	CorrectionPoolCap   int      `env:"CORRECTION_POOL_CAP" envDefault:"50"`
	PromptBodyChars     int      `env:"PROMPT_BODY_CHARS" envDefault:"3000"`
	BatchLimit          int      `env:"BATCH_LIMIT" envDefault:"200"`
	RulesFile           string   `env:"RULES_FILE"`
	CorrectionsFile     string   `env:"CORRECTIONS_FILE" envDefault:"corrections.json"`

	// LLM (OpenAI-compatible endpoint, Ollama by default)
	LLM LLMConfig `envPrefix:"LLM_"`

	// Ingestion
	SyncSecret    string `env:"SYNC_SECRET"`
	RemoteSyncURL string `env:"REMOTE_SYNC_URL"`

	// Storage
	DatabaseURL string        `env:"DATABASE_URL"`
	SQLitePath  string        `env:"SQLITE_PATH"`
	RedisURL    string        `env:"REDIS_URL"`
	DedupTTL    time.Duration `env:"DEDUP_TTL" envDefault:"24h"`
	MongoDBURL  string        `env:"MONGODB_URL"`
	MongoDBName string        `env:"MONGODB_DATABASE" envDefault:"jobtrack"`

	// Mail store
	MailStore   string      `env:"MAIL_STORE" envDefault:"notmuch"`
	NotmuchBin  string      `env:"NOTMUCH_BIN" envDefault:"notmuch"`
	MaildirPath string      `env:"MAILDIR_PATH"`
	Gmail       GmailConfig `envPrefix:"GMAIL_"`
}

type LLMConfig struct {
	BaseURL     string        `env:"BASE_URL" envDefault:"http://localhost:11434/v1"`
	Model       string        `env:"MODEL" envDefault:"llama3.1:8b"`
	APIKey      string        `env:"API_KEY" envDefault:"ollama"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"90s"`
	Temperature float32       `env:"TEMPERATURE" envDefault:"0.1"`
	MaxTokens   int           `env:"MAX_TOKENS" envDefault:"512"`
}

type GmailConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RefreshToken string `env:"REFRESH_TOKEN"`
	User         string `env:"USER" envDefault:"me"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	// .env is optional; real environment always wins.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	addrs := c.MonitoredAddresses[:0]
	for _, a := range c.MonitoredAddresses {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			addrs = append(addrs, a)
		}
	}
	c.MonitoredAddresses = addrs

	if c.WorkerConcurrency < 1 {
		c.WorkerConcurrency = 1
	}
	if c.FewShotLimit < 0 {
		c.FewShotLimit = 0
	}
	if c.CorrectionPoolCap < 1 {
		c.CorrectionPoolCap = 50
	}
	if c.PromptBodyChars < 1 {
		c.PromptBodyChars = 3000
	}
	c.MailStore = strings.ToLower(strings.TrimSpace(c.MailStore))
}

// Validate returns an error for configuration that must stop the process at startup.
func (c *Config) Validate(mode Mode) error {
	var errs []error

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.ConfidenceThreshold))
	}

	switch mode {
	case ModeServe:
		if c.SyncSecret == "" {
			errs = append(errs, errors.New("SYNC_SECRET is required to serve the ingestion endpoint"))
		}
		if c.DatabaseURL == "" && c.SQLitePath == "" {
			errs = append(errs, errors.New("DATABASE_URL or SQLITE_PATH is required"))
		}
	case ModeRunRemote:
		if c.RemoteSyncURL == "" {
			errs = append(errs, errors.New("REMOTE_SYNC_URL is required for remote delivery"))
		}
		if c.SyncSecret == "" {
			errs = append(errs, errors.New("SYNC_SECRET is required for remote delivery"))
		}
	case ModeRun, ModeScanCorrections:
		if c.DatabaseURL == "" && c.SQLitePath == "" && c.RemoteSyncURL == "" {
			errs = append(errs, errors.New("DATABASE_URL, SQLITE_PATH or REMOTE_SYNC_URL is required"))
		}
	}

	errs = append(errs, c.validateMailStore(mode)...)

	return errors.Join(errs...)
}

func (c *Config) validateMailStore(mode Mode) []error {
	if mode == ModeServe {
		return nil
	}
	switch c.MailStore {
	case MailStoreNotmuch:
		if c.NotmuchBin == "" {
			return []error{errors.New("NOTMUCH_BIN is required")}
		}
	case MailStoreMaildir:
		if c.MaildirPath == "" {
			return []error{errors.New("MAILDIR_PATH is required for the maildir store")}
		}
	case MailStoreGmail:
		var errs []error
		if c.Gmail.ClientID == "" || c.Gmail.ClientSecret == "" {
			errs = append(errs, errors.New("GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET are required for the gmail store"))
		}
		if c.Gmail.RefreshToken == "" {
			errs = append(errs, errors.New("GMAIL_REFRESH_TOKEN is required for the gmail store"))
		}
		return errs
	default:
		return []error{fmt.Errorf("unknown MAIL_STORE %q", c.MailStore)}
	}
	return nil
}

// UsesPostgres reports whether staging lives in Postgres rather than SQLite.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

// RemoteOnly reports whether the only configured sink is the remote ingestion endpoint.
func (c *Config) RemoteOnly() bool {
	return c.RemoteSyncURL != "" && c.DatabaseURL == "" && c.SQLitePath == ""
}
