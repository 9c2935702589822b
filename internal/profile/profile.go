// Package profile holds the process configuration for the empathia server.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Profile is the configuration to start the main server.
// Every default is applied exactly once, in FromEnv; downstream code
// treats the loaded values as final.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to where empathia stores its own data
	DSN string
	// Driver is the durable backend driver: "sqlite", "postgres" or "" (cache only)
	Driver string
	// Version is the current version of server
	Version string

	// Generation service configuration
	AIAPIKey      string  // EMPATHIA_AI_API_KEY
	AIBaseURL     string  // EMPATHIA_AI_BASE_URL (default: https://api.openai.com/v1)
	AIModel       string  // EMPATHIA_AI_MODEL (default: gpt-4o-mini)
	AIMaxTokens   int     // EMPATHIA_AI_MAX_TOKENS (default: 1000)
	AITemperature float64 // EMPATHIA_AI_TEMPERATURE (default: 0.7)

	// BasePrompt is the standing system instruction for the assistant.
	BasePrompt string // EMPATHIA_BASE_PROMPT
	// ReferenceDocPath points to an optional static reference document
	// injected into every prompt.
	ReferenceDocPath string // EMPATHIA_REFERENCE_DOC

	// Memory engine cadence
	HistoryCapacity int // EMPATHIA_HISTORY_CAPACITY (default: 50)
	SummaryInterval int // EMPATHIA_SUMMARY_INTERVAL (default: 10)
	CategoryCap     int // EMPATHIA_CATEGORY_CAP (default: 5)
	NoteInterval    int // EMPATHIA_NOTE_INTERVAL (default: 10)

	// Timezone is the conversation-local timezone for diary dates.
	Timezone string // EMPATHIA_TIMEZONE (default: UTC)

	// Timeouts
	GenerationTimeout time.Duration // EMPATHIA_GENERATION_TIMEOUT (default: 30s)
	StoreTimeout      time.Duration // EMPATHIA_STORE_TIMEOUT (default: 3s)

	// Messaging gateway
	GatewayMaxLength int    // EMPATHIA_GATEWAY_MAX_LENGTH (default: 4096)
	TelegramToken    string // EMPATHIA_TELEGRAM_TOKEN

	// DiarySweep enables the midnight diary sweeper.
	DiarySweep bool // EMPATHIA_DIARY_SWEEP
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if a generation service is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIAPIKey != ""
}

// FromEnv loads configuration from EMPATHIA_* environment variables.
func FromEnv() *Profile {
	v := viper.New()
	v.SetEnvPrefix("empathia")
	v.AutomaticEnv()

	v.SetDefault("mode", "demo")
	v.SetDefault("data", "")
	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", "")

	v.SetDefault("ai_base_url", "https://api.openai.com/v1")
	v.SetDefault("ai_model", "gpt-4o-mini")
	v.SetDefault("ai_max_tokens", 1000)
	v.SetDefault("ai_temperature", 0.7)

	v.SetDefault("history_capacity", 50)
	v.SetDefault("summary_interval", 10)
	v.SetDefault("category_cap", 5)
	v.SetDefault("note_interval", 10)

	v.SetDefault("timezone", "UTC")
	v.SetDefault("generation_timeout", "30s")
	v.SetDefault("store_timeout", "3s")
	v.SetDefault("gateway_max_length", 4096)
	v.SetDefault("diary_sweep", false)

	return &Profile{
		Mode:              v.GetString("mode"),
		Data:              v.GetString("data"),
		DSN:               v.GetString("dsn"),
		Driver:            v.GetString("driver"),
		AIAPIKey:          v.GetString("ai_api_key"),
		AIBaseURL:         v.GetString("ai_base_url"),
		AIModel:           v.GetString("ai_model"),
		AIMaxTokens:       v.GetInt("ai_max_tokens"),
		AITemperature:     v.GetFloat64("ai_temperature"),
		BasePrompt:        v.GetString("base_prompt"),
		ReferenceDocPath:  v.GetString("reference_doc"),
		HistoryCapacity:   v.GetInt("history_capacity"),
		SummaryInterval:   v.GetInt("summary_interval"),
		CategoryCap:       v.GetInt("category_cap"),
		NoteInterval:      v.GetInt("note_interval"),
		Timezone:          v.GetString("timezone"),
		GenerationTimeout: v.GetDuration("generation_timeout"),
		StoreTimeout:      v.GetDuration("store_timeout"),
		GatewayMaxLength:  v.GetInt("gateway_max_length"),
		TelegramToken:     v.GetString("telegram_token"),
		DiarySweep:        v.GetBool("diary_sweep"),
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and fails on unusable combinations.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	switch p.Driver {
	case "sqlite", "postgres", "":
	default:
		return errors.Errorf("unknown driver %q: only 'sqlite', 'postgres' or empty (cache only) are supported", p.Driver)
	}

	if p.Driver == "sqlite" {
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("empathia_%s.db", p.Mode))
		}
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return errors.Wrapf(err, "invalid timezone %q", p.Timezone)
	}

	if p.HistoryCapacity <= 0 {
		p.HistoryCapacity = 50
	}
	if p.SummaryInterval <= 0 {
		p.SummaryInterval = 10
	}
	if p.CategoryCap <= 0 {
		p.CategoryCap = 5
	}
	if p.NoteInterval <= 0 {
		p.NoteInterval = 10
	}
	if p.GenerationTimeout <= 0 {
		p.GenerationTimeout = 30 * time.Second
	}
	if p.StoreTimeout <= 0 {
		p.StoreTimeout = 3 * time.Second
	}
	if p.GatewayMaxLength <= 0 {
		p.GatewayMaxLength = 4096
	}

	return nil
}

// Location returns the conversation-local timezone.
// Validate must have succeeded before calling.
func (p *Profile) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
