// Package config loads and holds all looped server configuration.
// Settings are layered: defaults → looped-config.json → environment
// variables (env vars win).
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds the full server configuration.
type Config struct {
	ListenAddress    string        `json:"listenAddress"`
	AdminAddress     string        `json:"adminAddress"`
	LogLevel         string        `json:"logLevel"`
	ManagementToken  string        `json:"managementToken"`
	SnapshotFile     string        `json:"snapshotFile"` // empty = in-memory only
	SnapshotInterval time.Duration `json:"snapshotInterval"`
	ChatVariants     int           `json:"chatVariants"`

	// PersonaDefaults maps a short name (e.g. "merchant") to the raw persona
	// JSON a demo CLI can hand to chat.NewWalker, mirroring the teacher's
	// family-keyed string-map pattern.
	PersonaDefaults map[string]string `json:"personaDefaults"`
}

// Load returns config with defaults overridden by looped-config.json and
// env vars.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg, "looped-config.json")
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		ListenAddress:    "127.0.0.1:7070",
		AdminAddress:     "127.0.0.1:7071",
		LogLevel:         "info",
		SnapshotFile:     "",
		SnapshotInterval: 5 * time.Minute,
		ChatVariants:     4,
		PersonaDefaults: map[string]string{
			"farmer":   `{"job":"Farmer","character":{"hostile":0,"rebellious":0}}`,
			"merchant": `{"job":"Merchant","character":{"hostile":1,"rebellious":-1}}`,
			"priest":   `{"job":"Priest","character":{"hostile":-2,"rebellious":-2}}`,
		},
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G703: path is a controlled config file path, not user input
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("LOOPED_LISTEN_ADDRESS"); v != "" {
		cfg.ListenAddress = v
	}
	if v := os.Getenv("LOOPED_ADMIN_ADDRESS"); v != "" {
		cfg.AdminAddress = v
	}
	if v := os.Getenv("LOOPED_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOOPED_MANAGEMENT_TOKEN"); v != "" {
		cfg.ManagementToken = v
	}
	if v := os.Getenv("LOOPED_SNAPSHOT_FILE"); v != "" {
		cfg.SnapshotFile = v
	}
	if v := os.Getenv("LOOPED_SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SnapshotInterval = d
		}
	}
	if v := os.Getenv("LOOPED_CHAT_VARIANTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChatVariants = n
		}
	}
}
