package game

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/fhegol/internal/queue"
	"github.com/luxfi/fhegol/life"
)

// Transport names.
const (
	TransportActor  = "actor"
	TransportStream = "stream"
	TransportRedis  = "redis"
)

// Scheme names.
const (
	SchemeRLWE = "rlwe"
	SchemeBGV  = "bgv"
)

// RedisConfig locates the job queue used by the redis transport.
type RedisConfig struct {
	queue.RedisConfig `yaml:",inline"`
	Queue             string `yaml:"queue"`
}

// Config holds everything a run needs.
type Config struct {
	Dim       int     `yaml:"dim"`
	Density   float64 `yaml:"density"`
	Seed      uint64  `yaml:"seed"`
	Transport string  `yaml:"transport"`
	Scheme    string  `yaml:"scheme"`

	StreamAddr     string `yaml:"stream_addr"`
	ReadBufferSize int    `yaml:"read_buffer_size"`

	PollInterval    time.Duration `yaml:"poll_interval"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	GenerationDelay time.Duration `yaml:"generation_delay"`
	DrainInterval   time.Duration `yaml:"drain_interval"`

	Redis RedisConfig `yaml:"redis"`
	// StoragePath switches ciphertext storage from Redis to a shared
	// directory when set.
	StoragePath string `yaml:"storage_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Dim:             15,
		Density:         life.DefaultDensity,
		Seed:            1,
		Transport:       TransportActor,
		Scheme:          SchemeRLWE,
		StreamAddr:      "127.0.0.1:12345",
		ReadBufferSize:  4096,
		PollInterval:    100 * time.Millisecond,
		ResponseTimeout: 30 * time.Second,
		GenerationDelay: 250 * time.Millisecond,
		DrainInterval:   200 * time.Millisecond,
		Redis: RedisConfig{
			RedisConfig: queue.RedisConfig{Addr: "localhost:6379"},
			Queue:       "gol",
		},
	}
}

// LoadConfig reads a YAML file over the defaults. Durations are Go duration
// strings such as "250ms".
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and names.
func (c Config) Validate() error {
	if c.Dim < 1 {
		return errors.Newf("dim must be positive, got %d", c.Dim)
	}
	if c.Density < 0 || c.Density > 1 {
		return errors.Newf("density must be in [0,1], got %g", c.Density)
	}
	switch c.Transport {
	case TransportActor, TransportStream, TransportRedis:
	default:
		return errors.Newf("unknown transport %q", c.Transport)
	}
	switch c.Scheme {
	case SchemeRLWE, SchemeBGV:
	default:
		return errors.Newf("unknown scheme %q", c.Scheme)
	}
	if c.Transport == TransportStream && c.StreamAddr == "" {
		return errors.New("stream transport needs stream_addr")
	}
	if c.Transport == TransportRedis && c.Redis.Addr == "" {
		return errors.New("redis transport needs redis.addr")
	}
	if c.ReadBufferSize < 1 {
		return errors.Newf("read_buffer_size must be positive, got %d", c.ReadBufferSize)
	}
	if c.ResponseTimeout < 0 || c.GenerationDelay < 0 || c.PollInterval < 0 || c.DrainInterval < 0 {
		return errors.New("durations must not be negative")
	}
	if c.DrainInterval == 0 {
		return errors.New("drain_interval must be positive")
	}
	return nil
}
