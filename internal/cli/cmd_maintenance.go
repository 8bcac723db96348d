package cli

import (
	"context"
	"encoding/json"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/docnum/internal/layout"
	"github.com/calvinalkan/docnum/internal/restore"
)

// MigrateRootCmd returns the migrate-root command.
func MigrateRootCmd(a *app) *Command {
	flags := flag.NewFlagSet("migrate-root", flag.ContinueOnError)
	dryRun := flags.BoolP("dry-run", "n", false, "Report what would change without writing")
	yes := flags.BoolP("yes", "y", false, "Do not ask for confirmation")
	asJSON := flags.Bool("json", false, "Print the summary as JSON")

	return &Command{
		Flags: flags,
		Usage: "migrate-root <kind> <old-root> <new-root>",
		Short: "Repoint stored paths after a root folder moved",
		Long: "Rewrite stored document paths from <old-root> to <new-root>. Copy the files first:\n" +
			"a row is only rewritten when its file already exists under <new-root>.\n" +
			"No file is ever created, moved or deleted.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			kind, err := kindArgs(args, "old-root", "new-root")
			if err != nil {
				return err
			}

			if !*dryRun && !*yes {
				ok, err := o.Confirm(fmt.Sprintf("Rewrite %s paths from %s to %s?", kind, args[1], args[2]))
				if err != nil {
					return err
				}

				if !ok {
					o.Println("aborted")
					return nil
				}
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			summary, err := layout.MigrateRoot(ctx, s, kind, a.path(args[1]), a.path(args[2]),
				layout.MigrateOptions{DryRun: *dryRun, Logger: a.log})
			if err != nil {
				return err
			}

			if *asJSON {
				enc := json.NewEncoder(o.Out())
				enc.SetIndent("", "  ")

				err = enc.Encode(summary)
				if err != nil {
					return err
				}
			} else {
				for _, e := range summary.Entries {
					switch {
					case e.NewPath != "":
						o.Printf("%-18s %s -> %s\n", e.Status, e.OldPath, e.NewPath)
					case e.Err != "":
						o.Printf("%-18s %s (%s)\n", e.Status, e.OldPath, e.Err)
					default:
						o.Printf("%-18s %s\n", e.Status, e.OldPath)
					}
				}

				o.Printf("checked=%d updated=%d skipped_not_found=%d errors=%d dry_run=%t\n",
					summary.Checked, summary.Updated, summary.SkippedNotFound, summary.Errors, summary.DryRun)
			}

			if summary.Errors > 0 {
				o.Warn(fmt.Sprintf("%d paths could not be migrated", summary.Errors), "fix them by hand or with edit")
			}

			return nil
		},
	}
}

// RestoreCmd returns the restore command.
func RestoreCmd(a *app) *Command {
	flags := flag.NewFlagSet("restore", flag.ContinueOnError)
	progress := flags.BoolP("progress", "p", false, "Print one line per restored document")
	asJSON := flags.Bool("json", false, "Print the report as JSON")

	return &Command{
		Flags: flags,
		Usage: "restore <db> <output-dir>",
		Short: "Re-render every document from a database copy",
		Long: "Open <db> read-only and render every stored document into <output-dir>,\n" +
			"mirroring the offers/WZ year layout. The database is never modified.\n" +
			"Templates come from the configured templates folder.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			err := requireArgs(args, "db", "output-dir")
			if err != nil {
				return err
			}

			engine := restore.New(a.renderer(), restore.WithLogger(a.log))
			runner := restore.NewRunner(engine, nil)

			var onProgress func(restore.Progress)
			if *progress {
				onProgress = func(p restore.Progress) {
					status := "ok"
					if p.Err != nil {
						status = "error: " + p.Err.Error()
					}

					o.Printf("[%d/%d] %s %s %s\n", p.Done, p.Total, p.Kind, p.FilePath, status)
				}
			}

			job, err := runner.Start(ctx, a.path(args[0]), a.path(args[1]), onProgress, nil)
			if err != nil {
				return err
			}

			report, err := job.Wait()
			if err != nil && report == nil {
				return err
			}

			if *asJSON {
				enc := json.NewEncoder(o.Out())
				enc.SetIndent("", "  ")

				encErr := enc.Encode(report)
				if encErr != nil {
					return encErr
				}
			} else {
				o.Printf("offers: %d/%d restored\n", report.OffersOK, report.OffersTotal)
				o.Printf("wz: %d/%d restored\n", report.WzOK, report.WzTotal)

				for _, fe := range append(report.OffersErrors, report.WzErrors...) {
					o.Println("failed:", fe.Error())
				}
			}

			if err != nil {
				return err
			}

			if !report.Success() {
				o.Warn(fmt.Sprintf("%d documents could not be restored",
					len(report.OffersErrors)+len(report.WzErrors)), "check the templates and the listed rows")
			}

			return nil
		},
	}
}
