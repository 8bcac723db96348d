package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/docnum/internal/audit"
	"github.com/calvinalkan/docnum/internal/docs"
)

// AuditCmd returns the audit command.
func AuditCmd(a *app) *Command {
	flags := flag.NewFlagSet("audit", flag.ContinueOnError)
	kinds := flags.StringSliceP("kind", "k", nil, "Audit only `kind` (offer, wz); repeatable")
	format := flags.StringP("format", "f", audit.FormatText, "Output `format`: text, json, yaml")
	xlsx := flags.String("xlsx", "", "Also export the report to an Excel `file`")
	watch := flags.BoolP("watch", "w", false, "Re-audit whenever documents change, until interrupted")
	debounce := flags.Duration("debounce", audit.DefaultDebounce, "Quiet `period` before a re-audit in watch mode")

	return &Command{
		Flags: flags,
		Usage: "audit [flags]",
		Short: "Reconcile the database with the document folders",
		Long: "Compare every document row with the files under the root folders and report\n" +
			"missing files, orphaned files, number mismatches and alias mismatches.\n" +
			"Exits 1 when anything is found.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			err := requireArgs(args)
			if err != nil {
				return err
			}

			selected := make([]docs.Kind, 0, len(*kinds))

			for _, k := range *kinds {
				kind, err := docs.ParseKind(k)
				if err != nil {
					return err
				}

				selected = append(selected, kind)
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			auditor := audit.New(s, a.resolver(),
				audit.WithWorkers(a.cfg.Workers), audit.WithLogger(a.log))

			if *watch {
				return auditor.Watch(ctx, audit.WatchOptions{
					Kinds:        selected,
					DatabasePath: a.cfg.DatabasePathAbs,
					Debounce:     *debounce,
				}, func(r *audit.Report, err error) {
					if err != nil {
						a.log.Error("audit run failed", zap.Error(err))
						o.ErrPrintln("error:", err)

						return
					}

					err = emitReport(o, r, *format, a.path(*xlsx))
					if err != nil {
						o.ErrPrintln("error:", err)
					}
				})
			}

			report, err := auditor.Audit(ctx, selected...)
			if err != nil {
				return err
			}

			err = emitReport(o, report, *format, a.path(*xlsx))
			if err != nil {
				return err
			}

			if !report.Success() {
				o.Warn(fmt.Sprintf("%d discrepancies found", report.Findings()),
					"fix the listed rows or files and audit again")
			}

			return nil
		},
	}
}

func emitReport(o *IO, r *audit.Report, format, xlsx string) error {
	err := audit.Write(o.Out(), r, format)
	if err != nil {
		return err
	}

	if xlsx != "" {
		err = audit.ExportXLSX(xlsx, r)
		if err != nil {
			return err
		}
	}

	return nil
}
