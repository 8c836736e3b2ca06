// Package config loads feedbook settings from flags, environment
// (FEEDBOOK_ prefix) and an optional YAML file, in that order of precedence.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	KafkaOff    = ""
	KafkaDirect = "direct"
	KafkaOutbox = "outbox"
)

type Config struct {
	Target  uint32        `mapstructure:"-"`
	Log     LogConfig     `mapstructure:"log"`
	Arena   ArenaConfig   `mapstructure:"arena"`
	Journal JournalConfig `mapstructure:"journal"`
	Replay  ReplayConfig  `mapstructure:"replay"`
	Outbox  OutboxConfig  `mapstructure:"outbox"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Output  OutputConfig  `mapstructure:"output"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ArenaConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
}

// JournalConfig enables the raw input journal when Dir is set.
type JournalConfig struct {
	Dir         string `mapstructure:"dir"`
	SegmentSize int64  `mapstructure:"segment_size"`
}

// ReplayConfig makes the process read a journal instead of stdin.
type ReplayConfig struct {
	Dir string `mapstructure:"dir"`
}

type OutboxConfig struct {
	Dir      string        `mapstructure:"dir"`
	Interval time.Duration `mapstructure:"interval"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Mode    string   `mapstructure:"mode"`
}

type AdminConfig struct {
	GRPCAddr string `mapstructure:"grpc_addr"`
}

type OutputConfig struct {
	// LineBuffered flushes stdout after every quote.
	LineBuffered bool `mapstructure:"line_buffered"`
}

var (
	ErrInvalid  = errors.New("invalid configuration")
	ErrNoTarget = errors.Wrap(ErrInvalid, "missing target size argument")
)

// flag name -> viper key
var flagKeys = map[string]string{
	"log-level":            "log.level",
	"arena-chunk-size":     "arena.chunk_size",
	"journal-dir":          "journal.dir",
	"journal-segment-size": "journal.segment_size",
	"replay":               "replay.dir",
	"outbox-dir":           "outbox.dir",
	"outbox-interval":      "outbox.interval",
	"kafka-brokers":        "kafka.brokers",
	"kafka-topic":          "kafka.topic",
	"kafka-mode":           "kafka.mode",
	"admin-addr":           "admin.grpc_addr",
	"line-buffered":        "output.line_buffered",
}

// RegisterFlags declares every feedbook flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "optional YAML config file")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Int("arena-chunk-size", 4096, "orders per arena chunk")
	fs.String("journal-dir", "", "journal every input line into this directory")
	fs.Int64("journal-segment-size", 8<<20, "journal segment rotation size in bytes")
	fs.String("replay", "", "replay a journal directory instead of reading stdin")
	fs.String("outbox-dir", "", "pebble directory for the quote outbox")
	fs.Duration("outbox-interval", 250*time.Millisecond, "broadcaster drain interval")
	fs.StringSlice("kafka-brokers", nil, "kafka bootstrap brokers")
	fs.String("kafka-topic", "", "kafka topic for quotes")
	fs.String("kafka-mode", KafkaOff, "kafka publication: direct or outbox (empty disables)")
	fs.String("admin-addr", "", "gRPC health endpoint address (empty disables)")
	fs.Bool("line-buffered", true, "flush output after every quote")
}

// Load resolves configuration for an already parsed flag set. The first
// positional argument is the target size and is mandatory; it is never
// taken from the environment or the config file.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if fs.NArg() == 0 {
		return nil, ErrNoTarget
	}
	target, err := ParseTarget(fs.Arg(0))
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("FEEDBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			return nil, errors.Newf("flag %q not registered", name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, errors.Wrapf(err, "bind flag %s", name)
		}
	}

	if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.Target = target
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseTarget parses a positive uint32 target size.
func ParseTarget(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalid, "target %q is not a uint32", s)
	}
	if n == 0 {
		return 0, errors.Wrap(ErrInvalid, "target must be positive")
	}
	return uint32(n), nil
}

func (c *Config) Validate() error {
	if c.Target == 0 {
		return errors.Wrap(ErrInvalid, "target size is required and must be positive")
	}
	switch c.Kafka.Mode {
	case KafkaOff:
	case KafkaDirect, KafkaOutbox:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return errors.Wrapf(ErrInvalid, "kafka mode %q needs brokers and topic", c.Kafka.Mode)
		}
		if c.Kafka.Mode == KafkaOutbox && c.Outbox.Dir == "" {
			return errors.Wrap(ErrInvalid, "kafka outbox mode needs outbox.dir")
		}
	default:
		return errors.Wrapf(ErrInvalid, "unknown kafka mode %q", c.Kafka.Mode)
	}
	if c.Arena.ChunkSize < 0 {
		return errors.Wrap(ErrInvalid, "arena.chunk_size must not be negative")
	}
	if c.Journal.Dir != "" && c.Journal.Dir == c.Replay.Dir {
		return errors.Wrap(ErrInvalid, "cannot journal into the directory being replayed")
	}
	return nil
}
