// Package config loads the YAML configuration file that supplies the
// baseline identity, channel and default payload values for every send.
package config

import (
	"fmt"
	"os"

	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/meshforge/meshtx/pkg/meshid"
)

type Config struct {
	Mqtt        MqttConfig        `yaml:"mqtt"`
	Channel     ChannelConfig     `yaml:"channel"`
	NodeInfo    NodeInfoConfig    `yaml:"nodeinfo"`
	Message     MessageConfig     `yaml:"message"`
	Position    PositionConfig    `yaml:"position"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Environment EnvironmentConfig `yaml:"environment"`
	Power       PowerConfig       `yaml:"power"`
	Health      HealthConfig      `yaml:"health"`
	Logging     zeroconfig.Config `yaml:"logging"`
}

type MqttConfig struct {
	Server    string `yaml:"server"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	RootTopic string `yaml:"root_topic"`
}

type ChannelConfig struct {
	Preset string `yaml:"preset"`
	Key    string `yaml:"key"`
}

type NodeInfoConfig struct {
	ID             string `yaml:"id"`
	LongName       string `yaml:"long_name"`
	ShortName      string `yaml:"short_name"`
	HwModel        *int32 `yaml:"hw_model"`
	Role           string `yaml:"role"`
	IsLicensed     bool   `yaml:"is_licensed"`
	IsUnmessagable *bool  `yaml:"is_unmessagable"`
}

type MessageConfig struct {
	DestinationID uint32 `yaml:"destination_id"`
	HopLimit      uint32 `yaml:"hop_limit"`
	Priority      string `yaml:"priority"`
}

type PositionConfig struct {
	Lat       *float64 `yaml:"lat"`
	Lon       *float64 `yaml:"lon"`
	Alt       *int32   `yaml:"alt"`
	Precision *uint32  `yaml:"precision"`
}

type TelemetryConfig struct {
	BatteryLevel       *uint32  `yaml:"battery_level"`
	Voltage            *float32 `yaml:"voltage"`
	ChannelUtilization *float32 `yaml:"channel_utilization"`
	AirUtilTx          *float32 `yaml:"air_util_tx"`
	UptimeSeconds      *uint32  `yaml:"uptime_seconds"`
}

type EnvironmentConfig struct {
	Temperature   *float32 `yaml:"temperature"`
	Humidity      *float32 `yaml:"humidity"`
	Pressure      *float32 `yaml:"pressure"`
	Lux           *float32 `yaml:"lux"`
	WindDirection *uint32  `yaml:"wind_direction"`
	WindSpeed     *float32 `yaml:"wind_speed"`
	Weight        *float32 `yaml:"weight"`
	Radiation     *float32 `yaml:"radiation"`
}

type PowerConfig struct {
	Ch1Voltage *float32 `yaml:"ch1_voltage"`
	Ch1Current *float32 `yaml:"ch1_current"`
	Ch2Voltage *float32 `yaml:"ch2_voltage"`
	Ch2Current *float32 `yaml:"ch2_current"`
	Ch3Voltage *float32 `yaml:"ch3_voltage"`
	Ch3Current *float32 `yaml:"ch3_current"`
}

type HealthConfig struct {
	HeartBpm        *uint32  `yaml:"heart_bpm"`
	SpO2            *uint32  `yaml:"spo2"`
	BodyTemperature *float32 `yaml:"body_temperature"`
}

// Load reads and parses the file at path and fills in defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mqtt.RootTopic == "" {
		c.Mqtt.RootTopic = "msh/US"
	}
	if c.Channel.Preset == "" {
		c.Channel.Preset = "LongFast"
	}
	if c.Message.DestinationID == 0 {
		c.Message.DestinationID = uint32(meshid.BROADCAST_ID)
	}
	if c.Message.HopLimit == 0 {
		c.Message.HopLimit = 3
	}
	if len(c.Logging.Writers) == 0 {
		c.Logging.Writers = []zeroconfig.WriterConfig{{
			Type:   zeroconfig.WriterTypeStdout,
			Format: zeroconfig.LogFormatPrettyColored,
		}}
	}
}

func (c *Config) Validate() error {
	if c.Mqtt.Server == "" {
		return fmt.Errorf("mqtt.server is required")
	}
	if c.NodeInfo.ID == "" {
		return fmt.Errorf("nodeinfo.id is required")
	}
	if _, err := meshid.ParseNodeID(c.NodeInfo.ID); err != nil {
		return fmt.Errorf("nodeinfo.id: %w", err)
	}
	if len([]byte(c.NodeInfo.LongName)) >= 40 {
		return fmt.Errorf("nodeinfo.long_name must be less than 40 bytes")
	}
	if len([]byte(c.NodeInfo.ShortName)) >= 5 {
		return fmt.Errorf("nodeinfo.short_name must be less than 5 bytes")
	}
	if c.Message.HopLimit > meshid.MAX_HOPS {
		return fmt.Errorf("message.hop_limit must be at most %d", meshid.MAX_HOPS)
	}
	return nil
}
