package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Journal     JournalConfig     `yaml:"journal"`
	Dictation   DictationConfig   `yaml:"dictation"`
	Translation TranslationConfig `yaml:"translation"`
	Rules       RulesConfig       `yaml:"rules"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type DictationConfig struct {
	Enabled                bool   `yaml:"enabled"`
	Language               string `yaml:"language"`
	Source                 string `yaml:"source"` // mock, bus, exec
	Command                string `yaml:"command"`
	InterimResults         bool   `yaml:"interim_results"`
	DisableAutoPunctuation bool   `yaml:"disable_auto_punctuation"`
	RecognitionTimeoutMS   int    `yaml:"recognition_timeout_ms"`
	RestartDelayMS         int    `yaml:"restart_delay_ms"`
	FocusDebounceMS        int    `yaml:"focus_debounce_ms"`
	RepositionDebounceMS   int    `yaml:"reposition_debounce_ms"`
	StickyDisplayMS        int    `yaml:"sticky_display_ms"`
}

type TranslationConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	CustomModel string `yaml:"custom_model"`
	TargetLang  string `yaml:"target_lang"`
	TimeoutMS   int    `yaml:"timeout_ms"`
}

type RulesConfig struct {
	AutoReplace    string            `yaml:"auto_replace"`
	Commands       map[string]string `yaml:"commands"`
	BlacklistSites string            `yaml:"blacklist_sites"`
}

// DefaultAutoReplace is the substitution table the engine ships with, one
// "spoken phrase : replacement" per line with \n escapes expanded at parse
// time.
const DefaultAutoReplace = `question mark : ?
exclamation mark : !
full stop : .
comma : ,
colon : :
semicolon : ;
dash : -
hyphen : -
open bracket : (
close bracket : )
new line : \n
paragraph : \n\n`

// DefaultCommands maps spoken phrases to surface actions. Near-duplicate
// phrases are plain table entries, not distinct behaviors.
func DefaultCommands() map[string]string {
	return map[string]string{
		"delete word":   "delete-word",
		"clear all":     "clear-all",
		"erase all":     "clear-all",
		"new line":      "insert:\n",
		"new paragraph": "insert:\n\n",
		"paragraph":     "insert:\n\n",
	}
}

func Default() Config {
	return Config{
		RuntimeName: "vox-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Journal: JournalConfig{
			Path:          "./data/vox-journal.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Dictation: DictationConfig{
			Enabled:              true,
			Language:             "en-US",
			Source:               "bus",
			InterimResults:       true,
			RecognitionTimeoutMS: 30000,
			RestartDelayMS:       50,
			FocusDebounceMS:      50,
			RepositionDebounceMS: 150,
			StickyDisplayMS:      4000,
		},
		Translation: TranslationConfig{
			Enabled:    false,
			Endpoint:   "https://generativelanguage.googleapis.com/v1beta/models",
			Model:      "gemini-1.5-flash-latest",
			TargetLang: "en",
			TimeoutMS:  15000,
		},
		Rules: RulesConfig{
			AutoReplace: DefaultAutoReplace,
			Commands:    DefaultCommands(),
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RecognitionTimeout is the inactivity ceiling beyond which a terminated
// stream is not restarted.
func (c DictationConfig) RecognitionTimeout() time.Duration {
	return time.Duration(c.RecognitionTimeoutMS) * time.Millisecond
}

func (c DictationConfig) RestartDelay() time.Duration {
	return time.Duration(c.RestartDelayMS) * time.Millisecond
}

func (c DictationConfig) FocusDebounce() time.Duration {
	return time.Duration(c.FocusDebounceMS) * time.Millisecond
}

func (c DictationConfig) RepositionDebounce() time.Duration {
	return time.Duration(c.RepositionDebounceMS) * time.Millisecond
}

func (c DictationConfig) StickyDisplay() time.Duration {
	return time.Duration(c.StickyDisplayMS) * time.Millisecond
}

func (c TranslationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// ModelInUse resolves the custom model override the same way the settings UI
// does: "custom" selects the free-form model name.
func (c TranslationConfig) ModelInUse() string {
	if c.Model == "custom" && c.CustomModel != "" {
		return c.CustomModel
	}
	return c.Model
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VOX_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VOX_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOX_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOX_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOX_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOX_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOX_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VOX_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "VOX_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOX_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VOX_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOX_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOX_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOX_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOX_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOX_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Journal.Path, "VOX_JOURNAL_PATH")
	overrideString(&cfg.Journal.RetentionMode, "VOX_JOURNAL_RETENTION_MODE")
	overrideInt(&cfg.Journal.RetentionDays, "VOX_JOURNAL_RETENTION_DAYS")
	overrideInt(&cfg.Journal.MaxSessions, "VOX_JOURNAL_MAX_SESSIONS")
	overrideBool(&cfg.Journal.VacuumOnStart, "VOX_JOURNAL_VACUUM_ON_START")
	overrideBool(&cfg.Dictation.Enabled, "VOX_DICTATION_ENABLED")
	overrideString(&cfg.Dictation.Language, "VOX_DICTATION_LANGUAGE")
	overrideString(&cfg.Dictation.Source, "VOX_DICTATION_SOURCE")
	overrideString(&cfg.Dictation.Command, "VOX_DICTATION_COMMAND")
	overrideBool(&cfg.Dictation.InterimResults, "VOX_DICTATION_INTERIM_RESULTS")
	overrideBool(&cfg.Dictation.DisableAutoPunctuation, "VOX_DICTATION_DISABLE_AUTO_PUNCTUATION")
	overrideInt(&cfg.Dictation.RecognitionTimeoutMS, "VOX_DICTATION_RECOGNITION_TIMEOUT_MS")
	overrideInt(&cfg.Dictation.RestartDelayMS, "VOX_DICTATION_RESTART_DELAY_MS")
	overrideBool(&cfg.Translation.Enabled, "VOX_TRANSLATION_ENABLED")
	overrideString(&cfg.Translation.Endpoint, "VOX_TRANSLATION_ENDPOINT")
	overrideString(&cfg.Translation.APIKey, "VOX_TRANSLATION_API_KEY")
	overrideString(&cfg.Translation.Model, "VOX_TRANSLATION_MODEL")
	overrideString(&cfg.Translation.CustomModel, "VOX_TRANSLATION_CUSTOM_MODEL")
	overrideString(&cfg.Translation.TargetLang, "VOX_TRANSLATION_TARGET_LANG")
	overrideInt(&cfg.Translation.TimeoutMS, "VOX_TRANSLATION_TIMEOUT_MS")
	overrideString(&cfg.Rules.AutoReplace, "VOX_RULES_AUTO_REPLACE")
	overrideString(&cfg.Rules.BlacklistSites, "VOX_RULES_BLACKLIST_SITES")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Journal.Path == "" {
		return errors.New("journal.path must not be empty")
	}
	switch cfg.Journal.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("journal.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Dictation.Language == "" {
		return errors.New("dictation.language must not be empty")
	}
	switch cfg.Dictation.Source {
	case "mock", "bus", "exec":
	default:
		return errors.New("dictation.source must be one of mock|bus|exec")
	}
	if cfg.Dictation.Source == "exec" && cfg.Dictation.Command == "" {
		return errors.New("dictation.command must be set when source=exec")
	}
	if cfg.Dictation.RecognitionTimeoutMS <= 0 {
		return errors.New("dictation.recognition_timeout_ms must be positive")
	}
	if cfg.Dictation.RestartDelayMS < 0 {
		return errors.New("dictation.restart_delay_ms must be >= 0")
	}
	if cfg.Translation.Enabled {
		if cfg.Translation.Endpoint == "" {
			return errors.New("translation.endpoint must be set when translation is enabled")
		}
		if cfg.Translation.ModelInUse() == "" {
			return errors.New("translation.model must be set when translation is enabled")
		}
		if cfg.Translation.TargetLang == "" {
			return errors.New("translation.target_lang must be set when translation is enabled")
		}
	}
	return nil
}
