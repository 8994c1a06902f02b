// Package config loads the receptionist's YAML configuration.
//
// Environment variables referenced as ${VAR} in the file are expanded before
// parsing, so secrets like the Twilio auth token stay out of the file itself.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Twilio   TwilioConfig   `yaml:"twilio"`
	Voice    VoiceConfig    `yaml:"voice"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	Storage  StorageConfig  `yaml:"storage"`
	Practice PracticeConfig `yaml:"practice"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the webhook HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TwilioConfig holds gateway credentials and webhook verification settings.
type TwilioConfig struct {
	AuthToken        string `yaml:"auth_token"`
	VerifySignatures bool   `yaml:"verify_signatures"`
}

// VoiceConfig selects the TTS voice the gateway renders prompts with.
type VoiceConfig struct {
	Name     string `yaml:"name"`
	Language string `yaml:"language"`
}

// DialogueConfig tunes the conversation engine's patience.
type DialogueConfig struct {
	// MaxSilences is how many consecutive silent turns a stage tolerates
	// before the call is ended.
	MaxSilences int `yaml:"max_silences"`

	// MaxNameAttempts bounds the booking_name stage; beyond it the call is
	// terminated politely instead of looping.
	MaxNameAttempts int `yaml:"max_name_attempts"`

	// ConfidenceThreshold is the recognition confidence below which an
	// unmatched utterance gets the direct clarifier instead of the generic
	// "say that again".
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// StorageConfig names the flat files behind the schedule and call records.
type StorageConfig struct {
	ScheduleCSV    string `yaml:"schedule_csv"`
	TranscriptsDir string `yaml:"transcripts_dir"`
	CallsLog       string `yaml:"calls_log"`
	BookingsCSV    string `yaml:"bookings_csv"`
}

// PracticeConfig is the spoken identity of the practice: the lines the
// receptionist reads out for the informational intents.
type PracticeConfig struct {
	Name      string            `yaml:"name"`
	Hours     string            `yaml:"hours"`
	Address   string            `yaml:"address"`
	Prices    string            `yaml:"prices"`
	Consent   string            `yaml:"consent"`
	Greetings []string          `yaml:"greetings"`
	Services  map[string]string `yaml:"services"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Voice:  VoiceConfig{Name: "Polly.Amy", Language: "en-GB"},
		Dialogue: DialogueConfig{
			MaxSilences:         2,
			MaxNameAttempts:     2,
			ConfidenceThreshold: 0.45,
		},
		Storage: StorageConfig{
			ScheduleCSV:    "data/schedule.csv",
			TranscriptsDir: "transcripts",
			CallsLog:       "data/calls.jsonl",
			BookingsCSV:    "data/bookings.csv",
		},
		Practice: PracticeConfig{
			Name:    "Oak Dental",
			Hours:   "We're open Monday to Friday nine to five, Saturday nine to one. Closed Sundays and bank holidays.",
			Address: "We're at 12 High Street, Oakford, OX1 2AB. Entrance next to the pharmacy.",
			Prices:  "A routine check-up is forty five pounds. Hygiene is sixty five. Whitening starts from two hundred and fifty.",
			Consent: "Just so you know, I'm your AI receptionist, not a medical professional.",
			Services: map[string]string{
				"Check-up":   "A check-up is forty five pounds and takes about twenty minutes.",
				"Hygiene":    "A hygiene visit is sixty five pounds with our hygienist.",
				"Whitening":  "Whitening starts from two hundred and fifty pounds.",
				"Filling":    "White fillings start from ninety five pounds.",
				"Extraction": "A tooth extraction is one hundred and twenty pounds.",
				"Emergency":  "We keep same-day emergency slots; the call-out fee is seventy five pounds.",
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads and validates the configuration file at path, layering it over
// the defaults. An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Twilio.VerifySignatures && strings.TrimSpace(c.Twilio.AuthToken) == "" {
		return errors.New("config: twilio.verify_signatures is enabled but twilio.auth_token is empty")
	}
	if c.Dialogue.MaxSilences < 1 {
		return fmt.Errorf("config: dialogue.max_silences must be at least 1, got %d", c.Dialogue.MaxSilences)
	}
	if c.Dialogue.MaxNameAttempts < 1 {
		return fmt.Errorf("config: dialogue.max_name_attempts must be at least 1, got %d", c.Dialogue.MaxNameAttempts)
	}
	return nil
}
