package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration.
type Config struct {
	Server struct {
		Port       int    `koanf:"port"`
		AuthSecret string `koanf:"auth_secret"`
	} `koanf:"server"`

	AI struct {
		APIURL  string `koanf:"api_url"`
		APIKey  string `koanf:"api_key"`
		TTSURL  string `koanf:"tts_url"`
		Model   string `koanf:"model"`
		Voice   string `koanf:"voice"`
		// Directory holding prompt.json and developer_prompt.txt.
		PromptDir string `koanf:"prompt_dir"`
	} `koanf:"ai"`

	Files struct {
		// Directory where audio artifacts are stored.
		Dir string `koanf:"dir"`
	} `koanf:"files"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"server.port":   8888,
		"ai.tts_url":    "https://api.openai.com/v1/audio/speech",
		"ai.model":      "tts-1",
		"ai.voice":      "alloy",
		"ai.prompt_dir": "./prompts",
		"files.dir":     "./anodata/files",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations - prioritize anodata directory for containerized environments
		defaultPaths := []string{"./anodata/anochat.toml", "./anochat.toml", "$HOME/.anochat.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix ANOCHAT_
	k.Load(env.Provider("ANOCHAT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "ANOCHAT_")), "_", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Create sample configuration
	sampleConfig := `# anochat configuration

[server]
port = 8888
auth_secret = "change-me"

[ai]
api_url = "https://api.openai.com/v1/responses"
api_key = "your-api-key"
tts_url = "https://api.openai.com/v1/audio/speech"
model = "tts-1"
voice = "alloy"
prompt_dir = "./prompts"

[files]
dir = "./anodata/files"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Server.Port <= 0 {
		return fmt.Errorf("server port is required")
	}

	if config.Server.AuthSecret == "" {
		return fmt.Errorf("server auth_secret is required")
	}

	if config.AI.APIURL == "" {
		return fmt.Errorf("ai api_url is required")
	}

	if config.AI.APIKey == "" {
		return fmt.Errorf("ai api_key is required")
	}

	return nil
}
