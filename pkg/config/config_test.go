package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config search at an empty directory so stray files never leak in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	saved := SearchPaths
	SearchPaths = []string{dir}
	t.Cleanup(func() { SearchPaths = saved })
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Empty(t, cfg.LogLevel)
	assert.Empty(t, cfg.Device.Address)
	assert.Equal(t, 90, cfg.Device.LightMaxRaw)
	assert.Equal(t, 120, cfg.Device.FanMaxRaw)
	assert.Equal(t, "0000fff3-0000-1000-8000-00805f9b34fb", cfg.Device.Characteristic)
	assert.Equal(t, 10*time.Second, cfg.BLE.ConnectTimeout)
	assert.Equal(t, 3, cfg.BLE.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BLE.BackoffBase)
	assert.Equal(t, time.Second, cfg.BLE.WriteRetryDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.BLE.SettleDelay)
	assert.Equal(t, "sense", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "sensectl", cfg.MQTT.ClientID)
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "sensectl.yaml", `
log_level: debug
device:
  address: "AA:BB:CC:DD:EE:FF"
  fan_max_raw: 100
ble:
  max_attempts: 5
  settle_delay: 50ms
mqtt:
  broker: tcp://broker.local:1883
`)

	cfg, err := Load(LoadOptions{})

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.Device.Address)
	assert.Equal(t, 100, cfg.Device.FanMaxRaw)
	assert.Equal(t, 90, cfg.Device.LightMaxRaw, "unset keys MUST keep defaults")
	assert.Equal(t, 5, cfg.BLE.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.BLE.SettleDelay)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)
	path := writeFile(t, t.TempDir(), "hood.json", `{"device": {"address": "11:22:33:44:55:66"}}`)

	cfg, err := Load(LoadOptions{File: path})

	require.NoError(t, err)
	assert.Equal(t, "11:22:33:44:55:66", cfg.Device.Address)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	isolate(t)

	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "missing.yaml")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("SENSECTL_DEVICE_ADDRESS", "AA:BB:CC:DD:EE:01")
	t.Setenv("SENSECTL_DEVICE_LIGHT_MAX_RAW", "64")
	t.Setenv("SENSECTL_BLE_BACKOFF_BASE", "250ms")
	t.Setenv("SENSECTL_MQTT_TOPIC_PREFIX", "kitchen/hood")

	cfg, err := Load(LoadOptions{})

	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", cfg.Device.Address)
	assert.Equal(t, 64, cfg.Device.LightMaxRaw)
	assert.Equal(t, 250*time.Millisecond, cfg.BLE.BackoffBase)
	assert.Equal(t, "kitchen/hood", cfg.MQTT.TopicPrefix)
}

func TestLoad_FlagsOverride(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "sensectl.yaml", "device:\n  address: \"AA:AA:AA:AA:AA:AA\"\nlog_level: warn\n")
	t.Setenv("SENSECTL_DEVICE_ADDRESS", "BB:BB:BB:BB:BB:BB")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("address", "", "")
	flags.String("log-level", "", "")
	flags.String("broker", "", "")
	require.NoError(t, flags.Parse([]string{"--address", "CC:CC:CC:CC:CC:CC"}))

	cfg, err := Load(LoadOptions{Flags: flags})

	require.NoError(t, err)
	assert.Equal(t, "CC:CC:CC:CC:CC:CC", cfg.Device.Address, "flag MUST win over env and file")
	assert.Equal(t, "warn", cfg.LogLevel, "unchanged flag MUST NOT clobber the file value")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantKey string
		wantMsg string
	}{
		{
			name:    "missing address",
			yaml:    "ble:\n  max_attempts: 3\n",
			wantKey: "device.address",
			wantMsg: "device.address is required",
		},
		{
			name:    "attempts out of range",
			yaml:    "device:\n  address: x\nble:\n  max_attempts: 11\n",
			wantKey: "ble.max_attempts",
			wantMsg: "ble.max_attempts must be at most 10",
		},
		{
			name:    "zero fan scale",
			yaml:    "device:\n  address: x\n  fan_max_raw: 0\n",
			wantKey: "device.fan_max_raw",
			wantMsg: "device.fan_max_raw must be at least 1",
		},
		{
			name:    "light scale wraps past uint8",
			yaml:    "device:\n  address: x\n  light_max_raw: 300\n",
			wantKey: "device.light_max_raw",
			wantMsg: "device.light_max_raw must be at most 255",
		},
		{
			name:    "light scale just past uint8",
			yaml:    "device:\n  address: x\n  light_max_raw: 256\n",
			wantKey: "device.light_max_raw",
			wantMsg: "device.light_max_raw must be at most 255",
		},
		{
			name:    "negative fan scale",
			yaml:    "device:\n  address: x\n  fan_max_raw: -1\n",
			wantKey: "device.fan_max_raw",
			wantMsg: "device.fan_max_raw must be at least 1",
		},
		{
			name:    "bad characteristic",
			yaml:    "device:\n  address: x\n  characteristic: not-a-uuid\n",
			wantKey: "device.characteristic",
			wantMsg: "must be a 16-, 32- or 128-bit UUID",
		},
		{
			name:    "negative settle",
			yaml:    "device:\n  address: x\nble:\n  settle_delay: -1s\n",
			wantKey: "ble.settle_delay",
			wantMsg: "must not be negative",
		},
		{
			name:    "unknown log level",
			yaml:    "device:\n  address: x\nlog_level: loud\n",
			wantKey: "log_level",
			wantMsg: "log_level must be one of: debug info warn error",
		},
		{
			name:    "broker not a URL",
			yaml:    "device:\n  address: x\nmqtt:\n  broker: localhost\n",
			wantKey: "mqtt.broker",
			wantMsg: "mqtt.broker must be a URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			writeFile(t, dir, "sensectl.yaml", tt.yaml)

			_, err := Load(LoadOptions{})

			require.ErrorIs(t, err, ErrInvalid)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.wantKey, verr.Fields[0].Key)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateBLEUUID(t *testing.T) {
	for _, u := range []string{"fff3", "0xFFF3", "0000fff3", "0000fff3-0000-1000-8000-00805f9b34fb", "6E400002-B5A3-F393-E0A9-E50E24DCCA9E"} {
		cfg := DefaultConfig()
		cfg.Device.Address = "x"
		cfg.Device.Characteristic = u
		assert.NoError(t, cfg.Validate(), u)
	}
	for _, u := range []string{"fff", "zzzz", "0000fff3-0000"} {
		cfg := DefaultConfig()
		cfg.Device.Address = "x"
		cfg.Device.Characteristic = u
		assert.ErrorIs(t, cfg.Validate(), ErrInvalid, u)
	}
}

func TestConfig_Projections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device.Address = "AA:BB:CC:DD:EE:FF"
	cfg.BLE.MaxAttempts = 4
	cfg.BLE.SettleDelay = 0
	cfg.Device.LightMaxRaw = 255

	dev := cfg.DeviceConfig()
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", dev.Address)
	assert.Equal(t, uint8(120), dev.FanMaxRaw)
	assert.Equal(t, uint8(255), dev.LightMaxRaw, "upper bound MUST survive the uint8 conversion")
	assert.NoError(t, dev.Validate())

	policy := cfg.RetryPolicy()
	assert.Equal(t, 4, policy.MaxAttempts)
	assert.Equal(t, time.Second, policy.BackoffBase)

	opts := cfg.ControllerOptions(logrus.New())
	assert.Equal(t, 10*time.Second, opts.ConnectTimeout)
	assert.Negative(t, opts.SettleDelay, "zero settle MUST disable the delay rather than select the default")
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		fallback logrus.Level
		want     logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: "debug",
			fallback: logrus.PanicLevel,
			want:     logrus.DebugLevel,
		},
		{
			name:     "creates logger with warn level",
			logLevel: "warn",
			fallback: logrus.InfoLevel,
			want:     logrus.WarnLevel,
		},
		{
			name:     "unset level uses fallback",
			fallback: logrus.InfoLevel,
			want:     logrus.InfoLevel,
		},
		{
			name:     "invalid level uses fallback",
			logLevel: "loud",
			fallback: logrus.ErrorLevel,
			want:     logrus.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel: tt.logLevel,
			}

			logger := cfg.NewLogger(tt.fallback)

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_Level(t *testing.T) {
	_, err := (&Config{LogLevel: "loud"}).Level(logrus.InfoLevel)
	assert.ErrorContains(t, err, "invalid log level: loud")
}

func TestWatch(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "sensectl.yaml", "device:\n  address: x\nlog_level: info\n")

	changes := make(chan *Config, 4)
	cfg, err := Watch(LoadOptions{File: path}, func(c *Config, err error) {
		if err == nil {
			changes <- c
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)

	require.NoError(t, os.WriteFile(path, []byte("device:\n  address: x\nlog_level: debug\n"), 0o600))

	select {
	case c := <-changes:
		assert.Equal(t, "debug", c.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("change MUST be reported")
	}
}

func TestWatch_NoFile(t *testing.T) {
	isolate(t)
	t.Setenv("SENSECTL_DEVICE_ADDRESS", "x")

	cfg, err := Watch(LoadOptions{}, func(*Config, error) {})

	assert.ErrorIs(t, err, ErrNoConfigFile)
	require.NotNil(t, cfg, "configuration MUST still be returned")
	assert.Equal(t, "x", cfg.Device.Address)
}
