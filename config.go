package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"pisense/sampling"
)

// defaultConfigPath is the default filename for persisted configuration.
const defaultConfigPath = "pisense.yaml"

// DefaultConfig returns the wiring of the reference board: HC-SR04 on
// GPIO18/24, ADC0804 clocked from GPIO12 and the ACT LED with GPIO4 as
// fallback.
func DefaultConfig() Config {
	return Config{
		HTTPPort: 5000,
		LogFile:  "events.log",
		Pins: Pins{
			LED:     4,
			Trigger: 18,
			Echo:    24,
			Clock:   12,
			WR:      27,
			RD:      17,
			INTR:    22,
			Data:    []int{5, 6, 13, 19, 26, 21, 20, 16},
		},
		ADC: ADCSettings{
			ClockHz: int(sampling.DefaultClockFrequency / physic.Hertz),
			ADCConfig: sampling.ADCConfig{
				ConversionTimeout: sampling.DefaultConversionTimeout,
				StrobeWidth:       sampling.DefaultStrobeWidth,
				PollInterval:      sampling.DefaultPollInterval,
			},
		},
		Gas: sampling.SamplerConfig{
			SampleCount:      sampling.DefaultSampleCount,
			InterSampleDelay: sampling.DefaultInterSampleDelay,
			MaxFailureRatio:  sampling.Ratio(sampling.DefaultMaxFailureRatio),
		},
		Ultrasonic: sampling.PulseTimerConfig{
			TriggerWidth: sampling.DefaultTriggerWidth,
			Timeout:      sampling.DefaultEchoTimeout,
		},
		Door: DoorConfig{
			ThresholdCM:  50,
			PollInterval: 200 * time.Millisecond,
			CaptureDelay: 500 * time.Millisecond,
		},
		Schedule: ScheduleConfig{Enabled: true, Hour: 11, Minute: 43},
		Camera: CameraConfig{
			Command: "rpicam-still",
			Args:    []string{"-n", "-t", "1"},
			Dir:     "captures",
		},
		LED:    LEDConfig{Name: "ACT"},
		BME280: BME280Config{Enabled: true, Address: 0x76},
		MQTT: MQTTConfig{
			ClientID: "pisense",
			Topic:    "pisense/readings",
			Interval: 10 * time.Second,
		},
	}
}

// ConfigManager wraps the loaded configuration and a mutex for concurrent
// access.
type ConfigManager struct {
	mu     sync.RWMutex
	path   string
	cfg    Config
	loaded bool
}

// NewConfigManager returns a manager for the file at path.
func NewConfigManager(path string) *ConfigManager {
	if path == "" {
		path = defaultConfigPath
	}
	return &ConfigManager{path: path}
}

// Load reads configuration from disk.  If the file does not exist the
// default configuration is written out so that it can be edited.  Fields
// missing from an existing file keep their defaults.
func (cm *ConfigManager) Load() error {
	cm.mu.Lock()
	if cm.loaded {
		cm.mu.Unlock()
		return nil
	}
	data, err := os.ReadFile(cm.path)
	if err != nil {
		if os.IsNotExist(err) {
			cm.cfg = DefaultConfig()
			cm.loaded = true
			// Save takes the read lock.
			cm.mu.Unlock()
			return cm.Save()
		}
		cm.mu.Unlock()
		return fmt.Errorf("unable to read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		cm.mu.Unlock()
		return fmt.Errorf("invalid %s: %w", cm.path, err)
	}
	cfg.ensureDefaults()
	if err := cfg.Validate(); err != nil {
		cm.mu.Unlock()
		return fmt.Errorf("invalid %s: %w", cm.path, err)
	}
	cm.cfg = cfg
	cm.loaded = true
	cm.mu.Unlock()
	return nil
}

// Save writes the configuration to disk, replacing the file atomically.
func (cm *ConfigManager) Save() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	bytes, err := yaml.Marshal(cm.cfg)
	if err != nil {
		return err
	}
	tmpPath := cm.path + ".tmp"
	if err := os.WriteFile(tmpPath, bytes, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, cm.path)
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.cfg
}

// ensureDefaults fills zero values left by a partial file.
func (c *Config) ensureDefaults() {
	def := DefaultConfig()

	if c.HTTPPort == 0 {
		c.HTTPPort = def.HTTPPort
	}
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}
	if len(c.Pins.Data) == 0 {
		c.Pins.Data = def.Pins.Data
	}
	if c.ADC.ClockHz == 0 {
		c.ADC.ClockHz = def.ADC.ClockHz
	}
	if c.Door.ThresholdCM == 0 {
		c.Door.ThresholdCM = def.Door.ThresholdCM
	}
	if c.Door.PollInterval == 0 {
		c.Door.PollInterval = def.Door.PollInterval
	}
	if c.Camera.Command == "" {
		c.Camera.Command = def.Camera.Command
	}
	if c.Camera.Dir == "" {
		c.Camera.Dir = def.Camera.Dir
	}
	if c.BME280.Address == 0 {
		c.BME280.Address = def.BME280.Address
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.Gas.MaxFailureRatio == nil {
		c.Gas.MaxFailureRatio = def.Gas.MaxFailureRatio
	}
	if c.MQTT.Interval == 0 {
		c.MQTT.Interval = def.MQTT.Interval
	}
}

// Validate rejects configurations the board cannot run with.
func (c Config) Validate() error {
	if len(c.Pins.Data) != sampling.BusWidth {
		return fmt.Errorf("pins.data: need %d ADC data pins, got %d", sampling.BusWidth, len(c.Pins.Data))
	}
	if c.Door.ThresholdCM < 0 {
		return fmt.Errorf("door.threshold_cm: must not be negative")
	}
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 || c.Schedule.Minute < 0 || c.Schedule.Minute > 59 {
		return fmt.Errorf("schedule: %02d:%02d is not a time of day", c.Schedule.Hour, c.Schedule.Minute)
	}
	if r := c.Gas.MaxFailureRatio; r != nil && (*r < 0 || *r > 1) {
		return fmt.Errorf("gas.max_failure_ratio: must be within [0, 1]")
	}
	return nil
}
