package cli

import (
	"context"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/docnum/internal/config"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execPrintConfig(o, cfg)
		},
	}
}

func execPrintConfig(o *IO, cfg *config.Config) error {
	o.Println("effective_cwd=" + cfg.EffectiveCwd)
	o.Println("database=" + cfg.DatabasePathAbs)
	o.Println("offers_dir=" + cfg.OffersDirAbs)
	o.Println("wz_dir=" + cfg.WzDirAbs)
	o.Println("templates_dir=" + cfg.TemplatesDirAbs)
	o.Println("workers=" + strconv.Itoa(cfg.Workers))
	o.Println("max_alloc_attempts=" + strconv.Itoa(cfg.MaxAllocAttempts))

	o.Println("")
	o.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" && cfg.Sources.DotEnv == "" {
		o.Println("(defaults only)")

		return nil
	}

	if cfg.Sources.Global != "" {
		o.Println("global_config=" + cfg.Sources.Global)
	}

	if cfg.Sources.Project != "" {
		o.Println("project_config=" + cfg.Sources.Project)
	}

	if cfg.Sources.DotEnv != "" {
		o.Println("dotenv=" + cfg.Sources.DotEnv)
	}

	return nil
}
