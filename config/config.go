package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// OpenAIConfig holds the server-side credential and endpoint for the
// realtime transcription upstream. The api key never leaves this process.
type OpenAIConfig struct {
	ApiKey      string `mapstructure:"api_key" validate:"required"`
	RealtimeUrl string `mapstructure:"realtime_url" validate:"required"`
	Model       string `mapstructure:"model" validate:"required"`
}

// RelayConfig tunes the relay session behavior.
type RelayConfig struct {
	// BackpressureThreshold is the outbound buffer occupancy, in bytes, at
	// which droppable frames are discarded instead of queued.
	BackpressureThreshold int64 `mapstructure:"backpressure_threshold" validate:"required,gt=0"`
	// HandshakeTimeout bounds the upstream websocket dial.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"required"`
	// ReadLimit is the maximum inbound frame size on either leg.
	ReadLimit int64 `mapstructure:"read_limit" validate:"required,gt=0"`
}

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogFile  string `mapstructure:"log_file"`

	OpenAIConfig OpenAIConfig `mapstructure:"openai" validate:"required"`
	RelayConfig  RelayConfig  `mapstructure:"relay" validate:"required"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env variables.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "realtime-relay")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 9090)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("OPENAI__API_KEY", "")
	v.SetDefault("OPENAI__REALTIME_URL", "wss://api.openai.com/v1/realtime")
	v.SetDefault("OPENAI__MODEL", "gpt-4o-realtime-preview-2024-12-17")

	// 2,000,000 bytes mirrors the browser bufferedAmount ceiling the web
	// client was tuned against.
	v.SetDefault("RELAY__BACKPRESSURE_THRESHOLD", 2_000_000)
	v.SetDefault("RELAY__HANDSHAKE_TIMEOUT", "15s")
	v.SetDefault("RELAY__READ_LIMIT", 10*1024*1024)
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
