package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/docnum/internal/config"
	"github.com/calvinalkan/docnum/internal/docs"
	"github.com/calvinalkan/docnum/internal/numbering"
	"github.com/calvinalkan/docnum/internal/store"
)

// InitCmd returns the init command.
func InitCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("init", flag.ContinueOnError),
		Usage: "init",
		Short: "Create the database and root folders",
		Long: "Create the database with all tables and the offers, WZ and templates folders.\n" +
			"Running it again on an existing database is harmless.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			err := requireArgs(args)
			if err != nil {
				return err
			}

			return execInit(ctx, o, a.cfg, a)
		},
	}
}

func execInit(ctx context.Context, o *IO, cfg *config.Config, a *app) error {
	_, err := store.Init(ctx, cfg.DatabasePathAbs, store.WithLogger(a.log))
	if err != nil {
		return err
	}

	for _, dir := range []string{cfg.OffersDirAbs, cfg.WzDirAbs, cfg.TemplatesDirAbs} {
		err = os.MkdirAll(dir, 0o750)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}

	o.Println("database=" + cfg.DatabasePathAbs)
	o.Println("offers_dir=" + cfg.OffersDirAbs)
	o.Println("wz_dir=" + cfg.WzDirAbs)
	o.Println("templates_dir=" + cfg.TemplatesDirAbs)

	return nil
}

// NextCmd returns the next command.
func NextCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("next", flag.ContinueOnError),
		Usage: "next <kind> <year>",
		Short: "Print the next free number",
		Long:  "Print the number the next document of <kind> dated in <year> would get. Nothing is reserved.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			kind, err := kindArgs(args, "year")
			if err != nil {
				return err
			}

			year, err := parseYear(args[1])
			if err != nil {
				return err
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			next, err := numbering.New(s).NextNumber(ctx, kind, year)
			if err != nil {
				return err
			}

			o.Println(docs.FormatNumber(kind, next, year))

			return nil
		},
	}
}

// GenerateCmd returns the generate command.
func GenerateCmd(a *app) *Command {
	flags := flag.NewFlagSet("generate", flag.ContinueOnError)
	contextFile := flags.String("context", "", "Context JSON `file` (- for stdin)")

	return &Command{
		Flags: flags,
		Usage: "generate <kind> --context <file>",
		Short: "Number, store and render a new document",
		Long: "Allocate the next number for the context's business year, store the context\n" +
			"and render the document into the kind's root folder. Prints the file path.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			kind, err := kindArgs(args)
			if err != nil {
				return err
			}

			c, err := readContext(o, a.path(*contextFile))
			if err != nil {
				return err
			}

			l, _, err := a.ledger(ctx)
			if err != nil {
				return err
			}

			rec, err := l.Generate(ctx, kind, c)
			if err != nil {
				return err
			}

			abs, err := a.resolver().Abs(kind, rec.FilePath)
			if err != nil {
				return err
			}

			o.Println(rec.DeclaredNumber(), abs)

			return nil
		},
	}
}

// EditCmd returns the edit command.
func EditCmd(a *app) *Command {
	flags := flag.NewFlagSet("edit", flag.ContinueOnError)
	contextFile := flags.String("context", "", "Context JSON `file` (- for stdin)")

	return &Command{
		Flags: flags,
		Usage: "edit <kind> <path> --context <file>",
		Short: "Replace a document's context and re-render it",
		Long: "Replace the stored context of the document at <path> (as stored, e.g.\n" +
			"2025/12_OF_2025_ACME.docx) and re-render its file in place. The number never changes.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			kind, err := kindArgs(args, "path")
			if err != nil {
				return err
			}

			c, err := readContext(o, a.path(*contextFile))
			if err != nil {
				return err
			}

			l, _, err := a.ledger(ctx)
			if err != nil {
				return err
			}

			rec, err := l.Edit(ctx, kind, args[1], c)
			if err != nil {
				return err
			}

			o.Println(rec.DeclaredNumber(), rec.FilePath)

			return nil
		},
	}
}

// DeleteCmd returns the delete command.
func DeleteCmd(a *app) *Command {
	flags := flag.NewFlagSet("delete", flag.ContinueOnError)
	yes := flags.BoolP("yes", "y", false, "Do not ask for confirmation")

	return &Command{
		Flags: flags,
		Usage: "delete <kind> <path> [--yes]",
		Short: "Delete a document row and its file",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			kind, err := kindArgs(args, "path")
			if err != nil {
				return err
			}

			if !*yes {
				ok, err := o.Confirm(fmt.Sprintf("Delete %s %s?", kind, args[1]))
				if err != nil {
					return err
				}

				if !ok {
					o.Println("aborted")
					return nil
				}
			}

			l, _, err := a.ledger(ctx)
			if err != nil {
				return err
			}

			err = l.Delete(ctx, kind, args[1])
			if err != nil {
				return err
			}

			o.Println("deleted", args[1])

			return nil
		},
	}
}

// ShowCmd returns the show command.
func ShowCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("show", flag.ContinueOnError),
		Usage: "show <kind> <path>",
		Short: "Print a document's stored context",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			kind, err := kindArgs(args, "path")
			if err != nil {
				return err
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			rec, err := s.Load(ctx, kind, args[1])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(o.Out())
			enc.SetIndent("", "  ")

			return enc.Encode(rec.Context)
		},
	}
}

// LsCmd returns the ls command.
func LsCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("ls", flag.ContinueOnError),
		Usage: "ls <kind>",
		Short: "List stored documents",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			kind, err := kindArgs(args)
			if err != nil {
				return err
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			rows, err := s.List(ctx, kind)
			if err != nil {
				return err
			}

			for _, r := range rows {
				o.Printf("%-14s %s\n", docs.FormatNumber(kind, r.Number, r.Year), r.FilePath)
			}

			return nil
		},
	}
}

// readContext loads a context from path, or stdin for "-".
func readContext(o *IO, path string) (docs.Context, error) {
	if path == "" {
		return docs.Context{}, usageErr("--context is required")
	}

	var (
		data []byte
		err  error
	)

	if path == "-" {
		if o.In() == nil {
			return docs.Context{}, usageErr("no stdin for --context -")
		}

		data, err = io.ReadAll(o.In())
	} else {
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return docs.Context{}, fmt.Errorf("read context: %w", err)
	}

	c, err := docs.DecodeContext(data)
	if err != nil {
		return docs.Context{}, err
	}

	c.EscapeLineBreaks()

	return c, nil
}
