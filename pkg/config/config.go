package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ModelSettings struct {
		Temperature float64 `yaml:"temperature"`
		TopP        float64 `yaml:"top_p"`
	} `yaml:"model_settings"`
	Chat struct {
		HistoryLimit   int     `yaml:"history_limit"`
		RequestTimeout float64 `yaml:"request_timeout_seconds"`
	} `yaml:"chat"`
	Voice struct {
		VoiceID string `yaml:"voice_id"`
		Model   string `yaml:"model"`
	} `yaml:"voice"`
	Image struct {
		Engine       string `yaml:"engine"`
		PromptPrefix string `yaml:"prompt_prefix"`
		MaxDimension int    `yaml:"max_dimension"`
	} `yaml:"image"`
	CharacterFile string `yaml:"character_file"`
}

func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		// Set default values
		setDefaults(config)
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	// Fill holes left by a partial file
	if config.ModelSettings.Temperature == 0 {
		config.ModelSettings.Temperature = 1
	}
	if config.ModelSettings.TopP == 0 {
		config.ModelSettings.TopP = 1
	}
	if config.Chat.HistoryLimit == 0 {
		config.Chat.HistoryLimit = 10
	}
	if config.Chat.RequestTimeout == 0 {
		config.Chat.RequestTimeout = 30
	}
	if config.Image.MaxDimension == 0 {
		config.Image.MaxDimension = 512
	}
	if config.Image.PromptPrefix == "" {
		config.Image.PromptPrefix = "cute anime cat girl: "
	}
	if config.CharacterFile == "" {
		config.CharacterFile = "character.json"
	}

	return config, nil
}

func setDefaults(config *Config) {
	config.ModelSettings.Temperature = 1
	config.ModelSettings.TopP = 1
	config.Chat.HistoryLimit = 10
	config.Chat.RequestTimeout = 30
	config.Voice.VoiceID = ""
	config.Voice.Model = "eleven_multilingual_v2"
	config.Image.Engine = "stable-diffusion-xl-1024-v1-0"
	config.Image.PromptPrefix = "cute anime cat girl: "
	config.Image.MaxDimension = 512
	config.CharacterFile = "character.json"
}
