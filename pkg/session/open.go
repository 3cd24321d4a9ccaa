package session

import (
	"context"
	"path/filepath"
	"strings"

	ferrors "github.com/matzehuels/flowview/pkg/errors"
)

// Backend names accepted by [Open].
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config selects and configures a session backend.
type Config struct {
	Backend string // One of the Backend* names; empty means file

	Dir        string // FileStore directory; empty means DefaultDir
	SQLitePath string // SQLiteStore path; empty means sessions.db under DefaultDir

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI      string
	MongoDatabase string
}

// Open creates the store named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendMemory:
		return NewMemoryStore(), nil
	case "", BackendFile:
		return NewFileStore(cfg.Dir)
	case BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			dir, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "sessions.db")
		}
		return NewSQLiteStore(ctx, path)
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, ferrors.New(ferrors.ErrCodeInvalidInput, "redis backend needs an address")
		}
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, ferrors.New(ferrors.ErrCodeInvalidInput, "mongo backend needs a URI")
		}
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	}
	return nil, ferrors.New(ferrors.ErrCodeUnsupported,
		"unknown session backend %q (want memory, file, sqlite, redis or mongo)", cfg.Backend)
}
