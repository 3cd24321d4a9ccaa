package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/flowview/pkg/session"
)

// envPrefix prefixes every environment override.
const envPrefix = "FLOWVIEW_"

// Config holds settings shared by all commands.
//
// Precedence: environment variables > config file > defaults.
type Config struct {
	Addr          string `toml:"addr"`           // serve listen address
	Store         string `toml:"store"`          // session backend
	StateDir      string `toml:"state_dir"`      // file store directory
	SQLitePath    string `toml:"sqlite_path"`    // sqlite store path
	RedisAddr     string `toml:"redis_addr"`     // redis store address
	RedisPassword string `toml:"redis_password"` // redis store password
	MongoURI      string `toml:"mongo_uri"`      // mongo store URI
	SessionTTL    string `toml:"session_ttl"`    // e.g. "24h"; "0" never expires
	Strict        bool   `toml:"strict"`         // refuse datasets that fail validation

	ttl time.Duration
}

// defaultConfig returns the settings used when nothing is configured.
func defaultConfig() Config {
	return Config{
		Addr:       "127.0.0.1:8080",
		Store:      session.BackendFile,
		SessionTTL: session.DefaultTTL.String(),
	}
}

// loadConfig reads the TOML file at path over the defaults, then applies
// environment overrides. A missing file is not an error unless path was
// given explicitly.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err == nil {
			path = filepath.Join(dir, "config.toml")
		}
	}
	if path != "" {
		_, err := toml.DecodeFile(path, &cfg)
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	cfg.Addr = envOr(envPrefix+"ADDR", cfg.Addr)
	cfg.Store = envOr(envPrefix+"STORE", cfg.Store)
	cfg.StateDir = envOr(envPrefix+"STATE_DIR", cfg.StateDir)
	cfg.SQLitePath = envOr(envPrefix+"SQLITE_PATH", cfg.SQLitePath)
	cfg.RedisAddr = envOr(envPrefix+"REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envOr(envPrefix+"REDIS_PASSWORD", cfg.RedisPassword)
	cfg.MongoURI = envOr(envPrefix+"MONGO_URI", cfg.MongoURI)
	cfg.SessionTTL = envOr(envPrefix+"SESSION_TTL", cfg.SessionTTL)
	if v := os.Getenv(envPrefix + "STRICT"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%sSTRICT: %w", envPrefix, err)
		}
		cfg.Strict = strict
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the backend name and its required settings, and parses
// the session TTL.
func (c *Config) Validate() error {
	c.Store = strings.ToLower(c.Store)
	switch c.Store {
	case session.BackendMemory, session.BackendFile, session.BackendSQLite:
	case session.BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("store %q requires redis_addr (or %sREDIS_ADDR)", c.Store, envPrefix)
		}
	case session.BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("store %q requires mongo_uri (or %sMONGO_URI)", c.Store, envPrefix)
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, file, sqlite, redis or mongo)", c.Store)
	}

	ttl, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return fmt.Errorf("invalid session_ttl %q: %w", c.SessionTTL, err)
	}
	if ttl < 0 {
		return fmt.Errorf("invalid session_ttl %q: negative", c.SessionTTL)
	}
	c.ttl = ttl
	return nil
}

// TTL returns the parsed session lifetime.
func (c Config) TTL() time.Duration { return c.ttl }

// sessionConfig maps the CLI settings onto a session backend config.
func (c Config) sessionConfig() session.Config {
	return session.Config{
		Backend:       c.Store,
		Dir:           c.StateDir,
		SQLitePath:    c.SQLitePath,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		MongoURI:      c.MongoURI,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
