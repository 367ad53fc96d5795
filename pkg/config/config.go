package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/srg/sensectl/internal/connection"
	"github.com/srg/sensectl/internal/transport"
	"github.com/srg/sensectl/pkg/sense"
)

const (
	// EnvPrefix prefixes every environment override, e.g. SENSECTL_DEVICE_ADDRESS.
	EnvPrefix = "SENSECTL"
	// FileName is the config file base name searched for when no explicit file is given.
	FileName = "sensectl"
)

// ErrNoConfigFile is returned by Watch when only defaults, env and flags were loaded.
var ErrNoConfigFile = errors.New("no config file to watch")

// SearchPaths are the directories searched for FileName, in order.
var SearchPaths = []string{".", "./config", "$HOME/.config/sensectl", "/etc/sensectl"}

// Config holds application configuration
type Config struct {
	// LogLevel is empty unless set by file, env or flag; commands pick their own default.
	LogLevel string       `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Device   DeviceConfig `mapstructure:"device"`
	BLE      BLEConfig    `mapstructure:"ble"`
	MQTT     MQTTConfig   `mapstructure:"mqtt"`
}

// DeviceConfig identifies the hood. The raw scales are decoded as int so that out of range
// values fail validation instead of wrapping into uint8.
type DeviceConfig struct {
	Address        string `mapstructure:"address" validate:"required"`
	LightMaxRaw    int    `mapstructure:"light_max_raw" default:"90" validate:"min=1,max=255"`
	FanMaxRaw      int    `mapstructure:"fan_max_raw" default:"120" validate:"min=1,max=255"`
	Characteristic string `mapstructure:"characteristic" default:"0000fff3-0000-1000-8000-00805f9b34fb" validate:"required,bleuuid"`
}

// BLEConfig tunes connection and write retries.
type BLEConfig struct {
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" default:"10s" validate:"gt=0"`
	MaxAttempts     int           `mapstructure:"max_attempts" default:"3" validate:"min=1,max=10"`
	BackoffBase     time.Duration `mapstructure:"backoff_base" default:"1s" validate:"gt=0"`
	WriteRetryDelay time.Duration `mapstructure:"write_retry_delay" default:"1s" validate:"gte=0"`
	SettleDelay     time.Duration `mapstructure:"settle_delay" default:"200ms" validate:"gte=0"`
}

// MQTTConfig configures the serve command's broker connection.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker" validate:"omitempty,url"`
	TopicPrefix string `mapstructure:"topic_prefix" default:"sense" validate:"required"`
	ClientID    string `mapstructure:"client_id" default:"sensectl" validate:"required"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is an explicit config file. Empty searches SearchPaths for FileName.
	File string
	// Flags, when set, override file and env values. Recognized names: address,
	// log-level, broker.
	Flags *pflag.FlagSet
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"address":   "device.address",
	"log-level": "log_level",
	"broker":    "mqtt.broker",
}

// Load merges defaults, the config file, SENSECTL_* environment variables and flags,
// in increasing precedence, and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	v, err := newViper(opts)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch loads the configuration, then calls onChange with every re-read after the config
// file changes on disk. It fails with ErrNoConfigFile when no file was found.
func Watch(opts LoadOptions, onChange func(*Config, error)) (*Config, error) {
	v, err := newViper(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, ErrNoConfigFile
	}

	v.OnConfigChange(func(fsnotify.Event) {
		onChange(decode(v))
	})
	v.WatchConfig()
	return cfg, nil
}

func newViper(opts LoadOptions) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(FileName)
		for _, p := range SearchPaths {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
				}
			}
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key with viper so env overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("device.address", d.Device.Address)
	v.SetDefault("device.light_max_raw", d.Device.LightMaxRaw)
	v.SetDefault("device.fan_max_raw", d.Device.FanMaxRaw)
	v.SetDefault("device.characteristic", d.Device.Characteristic)
	v.SetDefault("ble.connect_timeout", d.BLE.ConnectTimeout)
	v.SetDefault("ble.max_attempts", d.BLE.MaxAttempts)
	v.SetDefault("ble.backoff_base", d.BLE.BackoffBase)
	v.SetDefault("ble.write_retry_delay", d.BLE.WriteRetryDelay)
	v.SetDefault("ble.settle_delay", d.BLE.SettleDelay)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.topic_prefix", d.MQTT.TopicPrefix)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
}

// DeviceConfig projects the device section into the facade's configuration.
func (c *Config) DeviceConfig() sense.DeviceConfig {
	return sense.DeviceConfig{
		Address:        c.Device.Address,
		LightMaxRaw:    uint8(c.Device.LightMaxRaw),
		FanMaxRaw:      uint8(c.Device.FanMaxRaw),
		Characteristic: c.Device.Characteristic,
	}
}

// RetryPolicy projects the ble section into the connection retry policy.
func (c *Config) RetryPolicy() connection.RetryPolicy {
	return connection.RetryPolicy{
		MaxAttempts:     c.BLE.MaxAttempts,
		BackoffBase:     c.BLE.BackoffBase,
		WriteRetryDelay: c.BLE.WriteRetryDelay,
	}
}

// ControllerOptions returns the facade options for this configuration.
func (c *Config) ControllerOptions(logger *logrus.Logger) sense.Options {
	settle := c.BLE.SettleDelay
	if settle == 0 {
		// The dispatcher treats zero as "use the default".
		settle = -1
	}
	return sense.Options{
		ConnectTimeout: c.BLE.ConnectTimeout,
		Retry:          c.RetryPolicy(),
		SettleDelay:    settle,
		Logger:         logger,
	}
}

// Level parses LogLevel, returning fallback when it is empty.
func (c *Config) Level(fallback logrus.Level) (logrus.Level, error) {
	if c.LogLevel == "" {
		return fallback, nil
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fallback, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	return level, nil
}

// NewLogger creates a configured logger instance at LogLevel, or fallback when unset.
func (c *Config) NewLogger(fallback logrus.Level) *logrus.Logger {
	level, err := c.Level(fallback)
	if err != nil {
		level = fallback
	}

	logger := logrus.New()
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// validate is shared; validator caches struct metadata per instance.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("bleuuid", validateBLEUUID)
	return v
}

// validateBLEUUID accepts 16-bit, 32-bit and 128-bit UUIDs in any common spelling.
func validateBLEUUID(fl validator.FieldLevel) bool {
	u := transport.NormalizeUUID(fl.Field().String())
	switch len(u) {
	case 4, 8, 32:
	default:
		return false
	}
	for _, r := range u {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}
