package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Engines  EnginesConfig  `mapstructure:"engines"`
	Voices   []VoiceConfig  `mapstructure:"voices"`
}

type ServerConfig struct {
	Port           string `mapstructure:"port"`
	RequestTimeout int    `mapstructure:"request_timeout"` // seconds, applied up to dispatch
}

type PathsConfig struct {
	ReferenceAudioDir string `mapstructure:"reference_audio_dir"`
	OutputDir         string `mapstructure:"output_dir"`
	ModelsDir         string `mapstructure:"models_dir"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// EnginesConfig carries one fallback chain per engine family. The chain is
// data: candidates are tried in order and the first one that loads wins.
type EnginesConfig struct {
	Preload    []string     `mapstructure:"preload"` // engine keys, e.g. "xtts/pt"
	XTTS       ChainConfig  `mapstructure:"xtts"`
	Chatterbox ChainConfig  `mapstructure:"chatterbox"`
	Google     GoogleConfig `mapstructure:"google"`
}

type ChainConfig struct {
	Models []ModelConfig `mapstructure:"models"`
}

type ModelConfig struct {
	File       string `mapstructure:"file"`        // ONNX model file under paths.models_dir
	SampleRate int    `mapstructure:"sample_rate"` // output rate the model was exported with
}

type GoogleConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CredentialsFile string `mapstructure:"credentials_file"`
	SampleRate      int    `mapstructure:"sample_rate"`
}

// VoiceConfig overrides the built-in voice table when present.
type VoiceConfig struct {
	Name     string `mapstructure:"name"`
	Engine   string `mapstructure:"engine"`
	Language string `mapstructure:"language"`
	RefAudio string `mapstructure:"ref_audio"`
	Gender   string `mapstructure:"gender"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", "5003")
	viper.SetDefault("server.request_timeout", 120)

	viper.SetDefault("paths.reference_audio_dir", "./reference_audio")
	viper.SetDefault("paths.output_dir", "./data/temp")
	viper.SetDefault("paths.models_dir", "./models")

	viper.SetDefault("database.path", "./voxbridge.db")
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("engines.preload", []string{})
	viper.SetDefault("engines.xtts.models", []map[string]interface{}{
		{"file": "xtts_v2.onnx", "sample_rate": 24000},
		{"file": "your_tts.onnx", "sample_rate": 24000},
	})
	viper.SetDefault("engines.chatterbox.models", []map[string]interface{}{
		{"file": "chatterbox.onnx", "sample_rate": 24000},
	})
	viper.SetDefault("engines.google.enabled", false)
	viper.SetDefault("engines.google.sample_rate", 24000)

	// Allow environment variables
	viper.SetEnvPrefix("VOXBRIDGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, use defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
