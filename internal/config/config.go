package config

import (
	"os"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server Server `yaml:"server"`
	View   View   `yaml:"view"`
}

type Server struct {
	ListenAddr    string `yaml:"listenAddr"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type View struct {
	DefaultPageSize  int      `yaml:"defaultPageSize"`
	MaxPageSize      int      `yaml:"maxPageSize"`
	CursorSecret     string   `yaml:"cursorSecret"`
	CacheCollections []string `yaml:"cacheCollections"`
	CacheTTLSeconds  int      `yaml:"cacheTTLSeconds"`
	EdgeCountTTL     int      `yaml:"edgeCountTTLSeconds"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.ListenAddr == "" {
		config.Server.ListenAddr = ":8000"
	}
	if config.View.MaxPageSize <= 0 {
		config.View.MaxPageSize = 100
	}
	if config.View.DefaultPageSize <= 0 {
		config.View.DefaultPageSize = 10
	}

	return config, nil
}
