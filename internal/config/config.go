// Package config charge config.json avec des valeurs par défaut sûres.
// Un fichier absent est généré; une valeur invalide retombe sur son défaut
// et produit un avertissement que l'appelant affiche au démarrage.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
)

type ScheduleRules struct {
	MinOffsetMinutes int `json:"minOffsetMinutes"`
	MaxOffsetMonths  int `json:"maxOffsetMonths"`
	MinuteStep       int `json:"minuteStep"`
	IntervalMinutes  int `json:"intervalMinutes"`
	DailyLimit       int `json:"dailyLimit"`
}

type Paths struct {
	StorageDir string `json:"storageDir"`
	CookiesDir string `json:"cookiesDir"`
}

type Config struct {
	Addr                  string        `json:"addr"`
	LogLevel              string        `json:"logLevel"`
	HeadlessDefault       bool          `json:"headlessDefault"`
	MaxConcurrentSessions int           `json:"maxConcurrentSessions"`
	ScheduleRules         ScheduleRules `json:"scheduleRules"`
	Paths                 Paths         `json:"paths"`

	warnings []string
}

func Default() Config {
	return Config{
		Addr:                  envOr("TBS_ADDR", "127.0.0.1:8080"),
		LogLevel:              envOr("TBS_LOG_LEVEL", "INFO"),
		HeadlessDefault:       true,
		MaxConcurrentSessions: 1,
		ScheduleRules: ScheduleRules{
			MinOffsetMinutes: 15,
			MaxOffsetMonths:  1,
			MinuteStep:       5,
			IntervalMinutes:  60,
			DailyLimit:       0,
		},
		Paths: Paths{
			StorageDir: envOr("TBS_STORAGE_DIR", "storage"),
			CookiesDir: envOr("TBS_COOKIES_DIR", "cookies"),
		},
	}
}

// Load lit le fichier et fusionne par-dessus les défauts: une clé absente
// garde son défaut, une valeur invalide y retombe avec un avertissement.
// Un fichier manquant est créé avec les défauts.
func Load(path string) Config {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.warn("%s not found, generating defaults", path)
			cfg.save(path)
		} else {
			cfg.warn("cannot read %s: %v", path, err)
		}
		return cfg
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		cfg = Default()
		cfg.warn("cannot parse %s: %v", path, err)
		return cfg
	}

	cfg.sanitize()
	return cfg
}

func (c *Config) save(path string) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.warn("cannot create %s: %v", dir, err)
			return
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.warn("cannot write %s: %v", path, err)
	}
}

func (c *Config) sanitize() {
	def := Default()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if _, ok := logLevels[strings.ToUpper(c.LogLevel)]; !ok {
		c.warn("invalid logLevel %q, using %s", c.LogLevel, def.LogLevel)
		c.LogLevel = def.LogLevel
	}
	if c.MaxConcurrentSessions < 1 {
		c.warn("invalid maxConcurrentSessions %d, using %d", c.MaxConcurrentSessions, def.MaxConcurrentSessions)
		c.MaxConcurrentSessions = def.MaxConcurrentSessions
	}
	if err := c.BaseRule().Validate(); err != nil {
		c.warn("invalid scheduleRules (%v), using defaults", err)
		c.ScheduleRules = def.ScheduleRules
	}
	if c.Paths.StorageDir == "" {
		c.Paths.StorageDir = def.Paths.StorageDir
	}
	if c.Paths.CookiesDir == "" {
		c.Paths.CookiesDir = def.Paths.CookiesDir
	}
}

func (c *Config) warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

// Warnings liste ce qui a été corrigé silencieusement au chargement.
func (c *Config) Warnings() []string { return c.warnings }

var logLevels = map[string]zerolog.Level{
	"DEBUG":    zerolog.DebugLevel,
	"INFO":     zerolog.InfoLevel,
	"WARNING":  zerolog.WarnLevel,
	"ERROR":    zerolog.ErrorLevel,
	"CRITICAL": zerolog.ErrorLevel,
}

func (c Config) ZerologLevel() zerolog.Level {
	if lvl, ok := logLevels[strings.ToUpper(c.LogLevel)]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// BaseRule construit la règle de planification issue de la config. Les
// batchs peuvent la surcharger champ par champ.
func (c Config) BaseRule() domain.Rule {
	return domain.Rule{
		MinOffsetMinutes: c.ScheduleRules.MinOffsetMinutes,
		MaxOffsetMonths:  c.ScheduleRules.MaxOffsetMonths,
		MinuteStep:       c.ScheduleRules.MinuteStep,
		IntervalMinutes:  c.ScheduleRules.IntervalMinutes,
		DailyLimit:       c.ScheduleRules.DailyLimit,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
