package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/docnum/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	err := os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func Test_Load_Returns_Defaults_When_No_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := config.Load(config.LoadInput{WorkDir: dir, Env: map[string]string{}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DatabasePathAbs != filepath.Join(dir, "docnum.sqlite") {
		t.Fatalf("database = %s", cfg.DatabasePathAbs)
	}

	if cfg.OffersDirAbs != filepath.Join(dir, "Oferty") || cfg.WzDirAbs != filepath.Join(dir, "WZ") {
		t.Fatalf("roots = %s, %s", cfg.OffersDirAbs, cfg.WzDirAbs)
	}

	if cfg.MaxAllocAttempts != 5 {
		t.Fatalf("max_alloc_attempts = %d, want 5", cfg.MaxAllocAttempts)
	}
}

func Test_Load_Reads_Project_File_With_Comments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{
		// shared drive
		"offers_dir": "/mnt/share/Oferty",
		"workers": 2,
	}`)

	cfg, err := config.Load(config.LoadInput{WorkDir: dir, Env: map[string]string{}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.OffersDirAbs != "/mnt/share/Oferty" {
		t.Fatalf("offers_dir = %s", cfg.OffersDirAbs)
	}

	if cfg.Workers != 2 {
		t.Fatalf("workers = %d, want 2", cfg.Workers)
	}

	if cfg.Sources.Project != filepath.Join(dir, config.FileName) {
		t.Fatalf("project source = %q", cfg.Sources.Project)
	}
}

// Contract: process env beats .env, and CLI overrides beat both.
func Test_Load_Applies_Precedence_When_All_Layers_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{"database": "from-file.sqlite", "wz_dir": "wz-file"}`)
	writeFile(t, filepath.Join(dir, ".env"), "DOCNUM_DB=from-dotenv.sqlite\nDOCNUM_WZ_DIR=wz-dotenv\n")

	cfg, err := config.Load(config.LoadInput{
		WorkDir:   dir,
		Env:       map[string]string{config.EnvDatabase: "from-env.sqlite"},
		Overrides: config.Config{TemplatesDir: "tpl-cli"},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DatabasePath != "from-env.sqlite" {
		t.Fatalf("database = %s, want from-env.sqlite", cfg.DatabasePath)
	}

	if cfg.WzDir != "wz-dotenv" {
		t.Fatalf("wz_dir = %s, want wz-dotenv", cfg.WzDir)
	}

	if cfg.TemplatesDir != "tpl-cli" {
		t.Fatalf("templates_dir = %s, want tpl-cli", cfg.TemplatesDir)
	}
}

func Test_Load_Fails_When_Explicit_Config_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(config.LoadInput{WorkDir: t.TempDir(), ConfigPath: "nope.json"})
	if !errors.Is(err, config.ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
}

func Test_Load_Fails_When_Config_Is_Invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{"workers": "many"}`)

	_, err := config.Load(config.LoadInput{WorkDir: dir})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func Test_Load_Fails_When_Env_Workers_Not_Numeric(t *testing.T) {
	t.Parallel()

	_, err := config.Load(config.LoadInput{
		WorkDir: t.TempDir(),
		Env:     map[string]string{config.EnvWorkers: "x"},
	})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}
