package main

import (
	"time"

	"pisense/sampling"
)

// Pins holds the BCM numbers of every line the board uses.  Data lists the
// ADC data bus, D0 first.
type Pins struct {
	LED     int   `yaml:"led"`     // fallback LED when the sysfs LED is missing
	Trigger int   `yaml:"trigger"` // ultrasonic trigger
	Echo    int   `yaml:"echo"`    // ultrasonic echo
	Clock   int   `yaml:"clock"`   // ADC conversion clock (hardware PWM pin)
	WR      int   `yaml:"wr"`
	RD      int   `yaml:"rd"`
	INTR    int   `yaml:"intr"`
	Data    []int `yaml:"data"`
}

// ADCSettings configures the parallel ADC and its conversion clock.
type ADCSettings struct {
	ClockHz           int `yaml:"clock_hz"`
	sampling.ADCConfig `yaml:",inline"`
}

// DoorConfig configures the door watcher.  The door counts as open while the
// measured distance is above ThresholdCM.
type DoorConfig struct {
	ThresholdCM  float64       `yaml:"threshold_cm"`
	PollInterval time.Duration `yaml:"poll_interval"`
	CaptureDelay time.Duration `yaml:"capture_delay"` // LED settle time before a door capture
}

// ScheduleConfig is the once-a-day capture, in local time.
type ScheduleConfig struct {
	Enabled bool `yaml:"enabled"`
	Hour    int  `yaml:"hour"`
	Minute  int  `yaml:"minute"`
}

// CameraConfig describes the still capture command.  The output path is
// appended as "-o <path>".
type CameraConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
}

// LEDConfig names the sysfs LED (e.g. ACT for the Pi's activity LED).
type LEDConfig struct {
	Name string `yaml:"name"`
}

// BME280Config locates the environment sensor.  An empty Bus selects the
// first I²C bus.
type BME280Config struct {
	Enabled bool   `yaml:"enabled"`
	Bus     string `yaml:"bus"`
	Address uint16 `yaml:"address"`
}

// MQTTConfig enables the readings publisher when Broker is set.
type MQTTConfig struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	Interval time.Duration `yaml:"interval"`
}

// Config is the top-level structure serialised to the YAML config file.
type Config struct {
	HTTPPort   int                       `yaml:"http_port"`
	LogFile    string                    `yaml:"log_file"`
	Debug      bool                      `yaml:"debug"`
	Pins       Pins                      `yaml:"pins"`
	ADC        ADCSettings               `yaml:"adc"`
	Gas        sampling.SamplerConfig    `yaml:"gas"`
	Ultrasonic sampling.PulseTimerConfig `yaml:"ultrasonic"`
	Door       DoorConfig                `yaml:"door"`
	Schedule   ScheduleConfig            `yaml:"schedule"`
	Camera     CameraConfig              `yaml:"camera"`
	LED        LEDConfig                 `yaml:"led"`
	BME280     BME280Config              `yaml:"bme280"`
	MQTT       MQTTConfig                `yaml:"mqtt"`
}
