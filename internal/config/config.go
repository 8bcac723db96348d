// Package config builds the one explicit Config value docnum runs with.
// Nothing in docnum reads settings from package-level state; the Config is
// constructed at startup and passed to every component that needs it.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	DatabasePath     string `json:"database"`
	OffersDir        string `json:"offers_dir"`
	WzDir            string `json:"wz_dir"`
	TemplatesDir     string `json:"templates_dir"`
	Workers          int    `json:"workers,omitempty"`
	MaxAllocAttempts int    `json:"max_alloc_attempts,omitempty"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd    string `json:"-"`
	DatabasePathAbs string `json:"-"`
	OffersDirAbs    string `json:"-"`
	WzDirAbs        string `json:"-"`
	TemplatesDirAbs string `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
	DotEnv  string // Path to .env if loaded, empty otherwise
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DatabasePath:     "docnum.sqlite",
		OffersDir:        "Oferty",
		WzDir:            "WZ",
		TemplatesDir:     "templates",
		Workers:          4,
		MaxAllocAttempts: 5,
	}
}

// FileName is the default project config file name.
const FileName = ".docnum.json"

// Environment variable names. They override config files.
const (
	EnvDatabase     = "DOCNUM_DB"
	EnvOffersDir    = "DOCNUM_OFFERS_DIR"
	EnvWzDir        = "DOCNUM_WZ_DIR"
	EnvTemplatesDir = "DOCNUM_TEMPLATES_DIR"
	EnvWorkers      = "DOCNUM_WORKERS"
)

var (
	ErrFileNotFound = errors.New("config file not found")
	ErrFileRead     = errors.New("cannot read config file")
	ErrInvalid      = errors.New("invalid config")
)

// globalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/docnum/config.json if set, otherwise ~/.config/docnum/config.json.
func globalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "docnum", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "docnum", "config.json")
	}

	return ""
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDir    string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath string            // -c/--config flag value
	Overrides  Config            // CLI flag values; zero fields mean no override
	Env        map[string]string // process environment
}

// Load builds the configuration with the following precedence (highest wins):
//  1. Defaults
//  2. Global user config
//  3. Project config (.docnum.json), or the explicit --config file
//  4. .env in the working directory
//  5. Process environment
//  6. CLI overrides
//
// All paths in the returned Config are resolved to absolute paths.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDir
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if gp := globalPath(input.Env); gp != "" {
		globalCfg, loaded, err := loadFile(gp, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, globalCfg)
			cfg.Sources.Global = gp
		}
	}

	projectFile := filepath.Join(workDir, FileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectFile = input.ConfigPath
		if !filepath.IsAbs(projectFile) {
			projectFile = filepath.Join(workDir, projectFile)
		}

		mustExist = true
	}

	projectCfg, loaded, err := loadFile(projectFile, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, projectCfg)
		cfg.Sources.Project = projectFile
	}

	dotEnvPath := filepath.Join(workDir, ".env")

	dotEnv, err := godotenv.Read(dotEnvPath)
	if err == nil {
		cfg, err = mergeEnv(cfg, dotEnv)
		if err != nil {
			return Config{}, fmt.Errorf("%w %s: %w", ErrInvalid, dotEnvPath, err)
		}

		cfg.Sources.DotEnv = dotEnvPath
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("%w %s: %w", ErrFileRead, dotEnvPath, err)
	}

	cfg, err = mergeEnv(cfg, input.Env)
	if err != nil {
		return Config{}, fmt.Errorf("%w: environment: %w", ErrInvalid, err)
	}

	cfg = merge(cfg, input.Overrides)

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir
	cfg.DatabasePathAbs = absFrom(workDir, cfg.DatabasePath)
	cfg.OffersDirAbs = absFrom(workDir, cfg.OffersDir)
	cfg.WzDirAbs = absFrom(workDir, cfg.WzDir)
	cfg.TemplatesDirAbs = absFrom(workDir, cfg.TemplatesDir)

	return cfg, nil
}

func absFrom(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(base, p)
}

// loadFile loads a config file. If mustExist is false, a missing file is not an error.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}

			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrFileRead, path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	return cfg, true, nil
}

// Parse reads a JSONC config document.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.DatabasePath != "" {
		base.DatabasePath = overlay.DatabasePath
	}

	if overlay.OffersDir != "" {
		base.OffersDir = overlay.OffersDir
	}

	if overlay.WzDir != "" {
		base.WzDir = overlay.WzDir
	}

	if overlay.TemplatesDir != "" {
		base.TemplatesDir = overlay.TemplatesDir
	}

	if overlay.Workers != 0 {
		base.Workers = overlay.Workers
	}

	if overlay.MaxAllocAttempts != 0 {
		base.MaxAllocAttempts = overlay.MaxAllocAttempts
	}

	return base
}

func mergeEnv(base Config, env map[string]string) (Config, error) {
	overlay := Config{
		DatabasePath: env[EnvDatabase],
		OffersDir:    env[EnvOffersDir],
		WzDir:        env[EnvWzDir],
		TemplatesDir: env[EnvTemplatesDir],
	}

	if v := env[EnvWorkers]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvWorkers, err)
		}

		overlay.Workers = n
	}

	return merge(base, overlay), nil
}

func validate(cfg Config) error {
	switch {
	case cfg.DatabasePath == "":
		return fmt.Errorf("%w: database cannot be empty", ErrInvalid)
	case cfg.OffersDir == "":
		return fmt.Errorf("%w: offers_dir cannot be empty", ErrInvalid)
	case cfg.WzDir == "":
		return fmt.Errorf("%w: wz_dir cannot be empty", ErrInvalid)
	case cfg.Workers < 1:
		return fmt.Errorf("%w: workers must be >= 1", ErrInvalid)
	case cfg.MaxAllocAttempts < 1:
		return fmt.Errorf("%w: max_alloc_attempts must be >= 1", ErrInvalid)
	}

	return nil
}
