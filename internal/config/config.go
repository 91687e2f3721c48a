package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Sensors    SensorsConfig    `mapstructure:"sensors"`
	Collection CollectionConfig `mapstructure:"collection"`
	Report     ReportConfig     `mapstructure:"report"`
	Server     ServerConfig     `mapstructure:"server"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// SensorsConfig names the entities the collector reads. Temperature, HVAC
// and thermostat are mandatory; the rest are optional extras.
type SensorsConfig struct {
	Temperature     string `mapstructure:"temperature"`
	HVAC            string `mapstructure:"hvac"`
	Thermostat      string `mapstructure:"thermostat"`
	Humidity        string `mapstructure:"humidity"`
	Weather         string `mapstructure:"weather"`
	ThermalLearning string `mapstructure:"thermal_learning"`
}

type CollectionConfig struct {
	Level               string `mapstructure:"level"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
	BatchSize           int    `mapstructure:"batch_size"`
	MaxQueueSize        int    `mapstructure:"max_queue_size"`
	RetentionDays       int    `mapstructure:"retention_days"`
	RolloverHour        int    `mapstructure:"rollover_hour"`
	RolloverMinute      int    `mapstructure:"rollover_minute"`
}

type ReportConfig struct {
	Endpoint            string `mapstructure:"endpoint"`
	APIKey              string `mapstructure:"api_key"`
	AnonymousID         string `mapstructure:"anonymous_id"`
	IDFile              string `mapstructure:"id_file"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	DailyTimeoutSeconds int    `mapstructure:"daily_timeout_seconds"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Collection levels gate which event types are recorded beyond the raw
// readings.
const (
	LevelMinimal  = "minimal"
	LevelStandard = "standard"
	LevelDetailed = "detailed"
)

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("mqtt.client_id", "hvac-collector")
	viper.SetDefault("mqtt.topic_prefix", "statestream")
	viper.SetDefault("collection.level", LevelStandard)
	viper.SetDefault("collection.poll_interval_seconds", 300)
	viper.SetDefault("collection.batch_size", 12)
	viper.SetDefault("collection.max_queue_size", 1000)
	viper.SetDefault("collection.retention_days", 8)
	viper.SetDefault("collection.rollover_hour", 0)
	viper.SetDefault("collection.rollover_minute", 5)
	viper.SetDefault("report.id_file", "anonymous_id")
	viper.SetDefault("report.timeout_seconds", 30)
	viper.SetDefault("report.daily_timeout_seconds", 60)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 9320)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.MQTT.Broker == "" {
		config.MQTT.Broker = os.Getenv("MQTT_BROKER")
	}
	if config.MQTT.Username == "" {
		config.MQTT.Username = os.Getenv("MQTT_USERNAME")
	}
	if config.MQTT.Password == "" {
		config.MQTT.Password = os.Getenv("MQTT_PASSWORD")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Sensors.Temperature == "" || c.Sensors.HVAC == "" || c.Sensors.Thermostat == "" {
		return fmt.Errorf("sensors.temperature, sensors.hvac and sensors.thermostat are required")
	}
	switch c.Collection.Level {
	case LevelMinimal, LevelStandard, LevelDetailed:
	default:
		return fmt.Errorf("invalid collection.level %q", c.Collection.Level)
	}
	if c.Collection.PollIntervalSeconds <= 0 {
		return fmt.Errorf("collection.poll_interval_seconds must be positive")
	}
	if c.Collection.RetentionDays < 2 {
		return fmt.Errorf("collection.retention_days must be at least 2")
	}
	return nil
}

// EnsureAnonymousID resolves the anonymous installation ID: configured value
// first, then the persisted ID file, else a fresh UUID written back to the
// file so the same installation keeps one ID across restarts.
func (c *Config) EnsureAnonymousID() (string, error) {
	if c.Report.AnonymousID != "" {
		return c.Report.AnonymousID, nil
	}

	if data, err := os.ReadFile(c.Report.IDFile); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			c.Report.AnonymousID = id
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.WriteFile(c.Report.IDFile, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("persisting anonymous id: %w", err)
	}
	c.Report.AnonymousID = id
	return id, nil
}
