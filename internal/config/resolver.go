// Package config resolves lognexus settings from built-in defaults, the
// YAML config file, the environment and CLI flags, in that order. Every
// resolved value remembers where it came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sbomarketplace/log-nexus-sub000/internal/textutil"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// Built-in defaults.
const (
	DefaultDBPath           = "~/.lognexus/lognexus.db"
	DefaultTimezone         = "Local"
	DefaultWorkers          = 4
	DefaultMaxExistingNotes = 8000
	DefaultMaxBlock         = 2000
	DefaultLLMRatePerMinute = 10
)

type ResolvedValue struct {
	Value  string      `json:"value" yaml:"value"`
	Source ValueSource `json:"source" yaml:"source"`
	From   string      `json:"from,omitempty" yaml:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath  string
	CLILLM      string
	CLIDBPath   string
	CLITimezone string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path" yaml:"config_path"`

	DBPath   ResolvedValue `json:"db_path" yaml:"db_path"`
	Timezone ResolvedValue `json:"timezone" yaml:"timezone"`
	Workers  ResolvedValue `json:"workers" yaml:"workers"`

	LLMProvider ResolvedValue `json:"llm_provider" yaml:"llm_provider"`
	LLMModel    ResolvedValue `json:"llm_model" yaml:"llm_model"`
	LLMRate     ResolvedValue `json:"llm_rate_per_minute" yaml:"llm_rate_per_minute"`

	MaxExistingNotes ResolvedValue `json:"notes_max_existing" yaml:"notes_max_existing"`
	MaxBlock         ResolvedValue `json:"notes_max_block" yaml:"notes_max_block"`

	LLMKeys map[string]ResolvedValue `json:"llm_keys,omitempty" yaml:"llm_keys,omitempty"`
}

type fileConfig struct {
	DBPath   string `yaml:"db_path"`
	Timezone string `yaml:"timezone"`
	Workers  int    `yaml:"workers"`
	LLM      struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
		Rate     int    `yaml:"rate_per_minute"`
	} `yaml:"llm"`
	Notes struct {
		MaxExisting int `yaml:"max_existing"`
		MaxBlock    int `yaml:"max_block"`
	} `yaml:"notes"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lognexus", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		LLMKeys:    map[string]ResolvedValue{},
	}
	apply(&out.DBPath, DefaultDBPath, SourceDefault, "built-in default")
	apply(&out.Timezone, DefaultTimezone, SourceDefault, "built-in default")
	apply(&out.Workers, strconv.Itoa(DefaultWorkers), SourceDefault, "built-in default")
	apply(&out.MaxExistingNotes, strconv.Itoa(DefaultMaxExistingNotes), SourceDefault, "built-in default")
	apply(&out.MaxBlock, strconv.Itoa(DefaultMaxBlock), SourceDefault, "built-in default")
	apply(&out.LLMRate, strconv.Itoa(DefaultLLMRatePerMinute), SourceDefault, "built-in default")

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Timezone, cfg.Timezone, SourceConfig, path)
		applyInt(&out.Workers, cfg.Workers, path)
		apply(&out.LLMProvider, cfg.LLM.Provider, SourceConfig, path)
		apply(&out.LLMModel, cfg.LLM.Model, SourceConfig, path)
		applyInt(&out.LLMRate, cfg.LLM.Rate, path)
		applyInt(&out.MaxExistingNotes, cfg.Notes.MaxExisting, path)
		applyInt(&out.MaxBlock, cfg.Notes.MaxBlock, path)

		if key := strings.TrimSpace(cfg.LLM.APIKey); key != "" {
			provider := providerOf(textutil.FirstNonEmpty(cfg.LLM.Provider, cfg.LLM.Model))
			if provider == "" {
				provider = "default"
			}
			out.LLMKeys[provider] = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}
	}

	applyEnv(&out.DBPath, "LOGNEXUS_DB")
	applyEnv(&out.Timezone, "LOGNEXUS_TIMEZONE")
	applyEnv(&out.Workers, "LOGNEXUS_WORKERS")
	applyEnv(&out.LLMProvider, "LOGNEXUS_LLM")
	applyEnv(&out.LLMRate, "LOGNEXUS_LLM_RATE")

	for env, provider := range map[string]string{
		"OPENROUTER_API_KEY": "openrouter",
		"GEMINI_API_KEY":     "google",
		"GOOGLE_API_KEY":     "google",
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			out.LLMKeys[provider] = ResolvedValue{Value: v, Source: SourceEnv, From: env}
		}
	}

	apply(&out.LLMProvider, opts.CLILLM, SourceCLI, "--llm")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Timezone, opts.CLITimezone, SourceCLI, "--timezone")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// Location loads the configured timezone. "Local" and "" mean time.Local.
func (r ResolvedConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(r.Timezone.Value)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q (from %s): %w", name, r.Timezone.From, err)
	}
	return loc, nil
}

// WorkerCount returns the parser pool size, falling back to the default
// for missing or non-positive values.
func (r ResolvedConfig) WorkerCount() int {
	return positiveOr(r.Workers.Value, DefaultWorkers)
}

// LLMRatePerMinute returns how many completions per minute the organizer
// may send.
func (r ResolvedConfig) LLMRatePerMinute() int {
	return positiveOr(r.LLMRate.Value, DefaultLLMRatePerMinute)
}

// NotesLimits returns the notes augmentation budgets.
func (r ResolvedConfig) NotesLimits() (maxExisting, maxBlock int) {
	return positiveOr(r.MaxExistingNotes.Value, DefaultMaxExistingNotes),
		positiveOr(r.MaxBlock.Value, DefaultMaxBlock)
}

// EffectiveLLMModel returns the provider/model string to use. An explicit
// llm.model wins; otherwise the provider value is used if it already names
// a model, or expanded with fallback when fallback belongs to that provider.
func (r ResolvedConfig) EffectiveLLMModel(fallback string) ResolvedValue {
	for _, c := range []ResolvedValue{r.LLMModel, r.LLMProvider} {
		if strings.TrimSpace(c.Value) == "" {
			continue
		}
		if strings.Contains(c.Value, "/") {
			return c
		}
		if fallback != "" && strings.HasPrefix(strings.ToLower(fallback), strings.ToLower(strings.TrimSpace(c.Value))+"/") {
			return ResolvedValue{Value: fallback, Source: c.Source, From: c.From}
		}
	}

	if strings.TrimSpace(fallback) != "" {
		return ResolvedValue{Value: fallback, Source: SourceDefault, From: "built-in default"}
	}
	return ResolvedValue{}
}

func (r ResolvedConfig) APIKeyForProvider(providerOrModel string) ResolvedValue {
	provider := providerOf(providerOrModel)
	if provider == "" {
		return ResolvedValue{}
	}
	if v, ok := r.LLMKeys[provider]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	if v, ok := r.LLMKeys["default"]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	return ResolvedValue{}
}

// Masked returns a copy safe to print: API keys keep only their last four
// characters.
func (r ResolvedConfig) Masked() ResolvedConfig {
	out := r
	out.LLMKeys = make(map[string]ResolvedValue, len(r.LLMKeys))
	for k, v := range r.LLMKeys {
		v.Value = MaskSecret(v.Value)
		out.LLMKeys[k] = v
	}
	return out
}

func MaskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func providerOf(providerOrModel string) string {
	v := strings.ToLower(strings.TrimSpace(providerOrModel))
	if v == "" {
		return ""
	}
	if idx := strings.Index(v, "/"); idx > 0 {
		return v[:idx]
	}
	return v
}

// ProviderOf returns the provider part of a "provider/model" string.
func ProviderOf(providerOrModel string) string {
	return providerOf(providerOrModel)
}

func positiveOr(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyInt(dst *ResolvedValue, n int, from string) {
	if n > 0 {
		*dst = ResolvedValue{Value: strconv.Itoa(n), Source: SourceConfig, From: from}
	}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
