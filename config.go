package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	backendMemory = "memory"
	backendRedis  = "redis"
	backendMongo  = "mongo"
	// backendNone runs offline on the file cache alone.
	backendNone = "none"
)

type Config struct {
	User           string      `toml:"user"`
	SaveDirectory  string      `toml:"save_directory"`
	CacheDirectory string      `toml:"cache_directory"`
	Confirmations  bool        `toml:"confirmations"`
	Store          StoreConfig `toml:"store"`
	Sync           SyncConfig  `toml:"sync"`
}

type StoreConfig struct {
	Backend         string `toml:"backend"`
	RedisAddr       string `toml:"redis_addr"`
	RedisPassword   string `toml:"redis_password"`
	RedisDB         int    `toml:"redis_db"`
	KeyPrefix       string `toml:"key_prefix"`
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

type SyncConfig struct {
	PushesPerSecond float64       `toml:"pushes_per_second"`
	PushBurst       int           `toml:"push_burst"`
	PushTimeout     time.Duration `toml:"push_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Confirmations: true,
		Store: StoreConfig{
			Backend:   backendMemory,
			RedisAddr: "localhost:6379",
			KeyPrefix: "corkboard:",
		},
		Sync: SyncConfig{
			PushesPerSecond: 10,
			PushBurst:       5,
			PushTimeout:     10 * time.Second,
		},
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".corkboard.toml")
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()
	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	config.SaveDirectory = expandPath(config.SaveDirectory)
	config.CacheDirectory = expandPath(config.CacheDirectory)
	if config.CacheDirectory == "" {
		config.CacheDirectory = defaultCacheDir()
	}
	config.Store.Backend = strings.ToLower(strings.TrimSpace(config.Store.Backend))
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case backendMemory, backendRedis, backendMongo, backendNone:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == backendMongo && c.Store.MongoURI == "" {
		return errors.New("mongo backend needs store.mongo_uri")
	}
	if c.Sync.PushesPerSecond < 0 {
		return errors.New("sync.pushes_per_second must not be negative")
	}
	return nil
}

func (c *Config) GetSavePath(filename string) string {
	if c.SaveDirectory == "" || filepath.IsAbs(filename) {
		return filename
	}
	os.MkdirAll(c.SaveDirectory, 0o755)
	return filepath.Join(c.SaveDirectory, filename)
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return p
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "corkboard")
	}
	return filepath.Join(dir, "corkboard")
}
