package config

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-meet/internal/logging"
	"gopkg.in/yaml.v3"
)

const (
	DefaultServerAddr  = "localhost:8000"
	DefaultDatabaseDSN = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
	// development only
	DefaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="
)

type Realtime struct {
	MaxChatHistory  int           `yaml:"max_chat_history"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	SendQueue       int           `yaml:"send_queue"`
	PongWait        time.Duration `yaml:"pong_wait"`
}

type Blob struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url"`
}

type Config struct {
	ServerAddr     string         `yaml:"server_addr"`
	DatabaseDSN    string         `yaml:"database_dsn"`
	SigningSecret  string         `yaml:"signing_key"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Migrate        bool           `yaml:"migrate"`
	Logging        logging.Config `yaml:"logging"`
	Realtime       Realtime       `yaml:"realtime"`
	Blob           Blob           `yaml:"blob"`

	SigningKey []byte `yaml:"-"`
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

// NewConfig builds a validated config from the required values and the
// defaults for everything else.
func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	cfg := Default()
	cfg.ServerAddr = serverAddr
	cfg.DatabaseDSN = databaseDSN
	cfg.SigningSecret = base64Secret
	cfg.AllowedOrigins = allowedOrigins

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		ServerAddr:     DefaultServerAddr,
		DatabaseDSN:    DefaultDatabaseDSN,
		SigningSecret:  DefaultSigningKey,
		AllowedOrigins: []string{},
		Logging: logging.Config{
			Service: "go-meet",
		},
		Realtime: Realtime{
			MaxChatHistory:  500,
			MaxMessageBytes: 1 << 20,
			SendQueue:       256,
			PongWait:        60 * time.Second,
		},
		Blob: Blob{
			Dir:     "./data/files",
			BaseURL: "/files",
		},
	}
}

// Validate checks required values and decodes the signing key.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(c.SigningSecret)
	if err != nil {
		return fmt.Errorf("decode signing secret: %w", err)
	}
	c.SigningKey = signingKey

	if c.Realtime.MaxChatHistory <= 0 {
		return fmt.Errorf("realtime.max_chat_history must be positive")
	}
	if c.Realtime.MaxMessageBytes <= 0 {
		return fmt.Errorf("realtime.max_message_bytes must be positive")
	}
	if c.Realtime.SendQueue <= 0 {
		return fmt.Errorf("realtime.send_queue must be positive")
	}
	if c.Realtime.PongWait < time.Second {
		return fmt.Errorf("realtime.pong_wait must be at least 1s")
	}

	return nil
}

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, splitList(value)...)
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Load resolves the configuration. Later sources win: defaults, the YAML
// file, the environment (after loading .env), then explicitly set flags.
func Load(args []string, stderr io.Writer) (*Config, error) {
	var (
		configPath     string
		envFile        string
		addr           string
		dsn            string
		signingKey     string
		allowedOrigins stringSliceFlag
		migrate        bool
		debug          bool
	)

	flags := flag.NewFlagSet("go-meet", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&configPath, "config", "", "path to a YAML config file (or CONFIG_PATH)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	flags.StringVar(&addr, "addr", DefaultServerAddr, "server address")
	flags.StringVar(&dsn, "dsn", DefaultDatabaseDSN, "database connection string")
	flags.StringVar(&signingKey, "signing-key", DefaultSigningKey, "base64 encoded signing key")
	flags.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flags.BoolVar(&migrate, "migrate", false, "apply database migrations on startup")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Default()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.ServerAddr = addr
		case "dsn":
			cfg.DatabaseDSN = dsn
		case "signing-key":
			cfg.SigningSecret = signingKey
		case "allowed-origins":
			cfg.AllowedOrigins = allowedOrigins
		case "migrate":
			cfg.Migrate = migrate
		case "debug":
			cfg.Logging.Debug = debug
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MEET_ADDR"); v != "" {
		c.ServerAddr = v
	}
	if v := os.Getenv("MEET_DATABASE_DSN"); v != "" {
		c.DatabaseDSN = v
	}
	if v := os.Getenv("MEET_SIGNING_KEY"); v != "" {
		c.SigningSecret = v
	}
	if v := os.Getenv("MEET_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("MEET_BLOB_DIR"); v != "" {
		c.Blob.Dir = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Logging.Env = logging.ParseEnv(v)
	}
}
