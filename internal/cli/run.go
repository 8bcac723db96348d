package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/calvinalkan/docnum/internal/config"
	"github.com/calvinalkan/docnum/internal/layout"
	"github.com/calvinalkan/docnum/internal/ledger"
	"github.com/calvinalkan/docnum/internal/render"
	"github.com/calvinalkan/docnum/internal/store"
)

// Run is the main entry point. Returns exit code.
//
// sigCh, when not nil, cancels the running command on the first signal.
func Run(stdin io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("docnum", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	workDir := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "Use specified config `file`")
	dbPath := globals.String("db", "", "Database `file`")
	offersDir := globals.String("offers-dir", "", "Offers root `dir`")
	wzDir := globals.String("wz-dir", "", "WZ root `dir`")
	templatesDir := globals.String("templates-dir", "", "Templates `dir`")
	verbose := globals.BoolP("verbose", "v", false, "Debug logging on stderr")
	help := globals.BoolP("help", "h", false, "Show help")

	if len(args) < 2 {
		printUsage(out, globals, nil)

		return 0
	}

	err := globals.Parse(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globals, nil)

		return 1
	}

	if *help {
		printUsage(out, globals, nil)

		return 0
	}

	for _, name := range []string{"cwd", "config", "db", "offers-dir", "wz-dir", "templates-dir"} {
		f := globals.Lookup(name)
		if f.Changed && f.Value.String() == "" {
			fprintf(errOut, "error: --%s cannot be empty\n\n", name)
			printUsage(errOut, globals, nil)

			return 1
		}
	}

	rest := globals.Args()
	if len(rest) == 0 {
		fprintln(errOut, "error: no command provided")
		fprintln(errOut)
		printUsage(errOut, globals, nil)

		return 1
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDir:    *workDir,
		ConfigPath: *configPath,
		Overrides: config.Config{
			DatabasePath: *dbPath,
			OffersDir:    *offersDir,
			WzDir:        *wzDir,
			TemplatesDir: *templatesDir,
		},
		Env: env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	log := newLogger(errOut, *verbose)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case sig := <-sigCh:
				log.Warn("signal received, stopping", zap.String("signal", sig.String()))
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	a := &app{cfg: &cfg, log: log}
	commands := a.commands()

	name := rest[0]

	var cmd *Command

	for _, c := range commands {
		if c.Name() == name {
			cmd = c
			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error: unknown command:", name)
		fprintln(errOut)
		printUsage(errOut, globals, commands)

		return 1
	}

	o := NewIO(stdin, out, errOut)

	code := cmd.Run(ctx, o, rest[1:])
	if code != 0 {
		return code
	}

	return o.Finish()
}

// app carries the resolved configuration into the commands.
type app struct {
	cfg *config.Config
	log *zap.Logger
}

func (a *app) commands() []*Command {
	return []*Command{
		InitCmd(a),
		NextCmd(a),
		GenerateCmd(a),
		EditCmd(a),
		DeleteCmd(a),
		ShowCmd(a),
		LsCmd(a),
		ClientCmd(a),
		SupplierCmd(a),
		AuditCmd(a),
		MigrateRootCmd(a),
		RestoreCmd(a),
		PrintConfigCmd(a.cfg),
	}
}

// path resolves a command argument against the effective working directory.
// "", "-" and absolute paths are returned unchanged.
func (a *app) path(p string) string {
	if p == "" || p == "-" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(a.cfg.EffectiveCwd, p)
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, a.cfg.DatabasePathAbs, store.WithLogger(a.log))
}

func (a *app) resolver() *layout.Resolver {
	return layout.NewResolver(a.cfg)
}

func (a *app) renderer() *render.DocxRenderer {
	return render.NewDocxRenderer(a.cfg.TemplatesDirAbs, render.WithLogger(a.log))
}

func (a *app) ledger(ctx context.Context) (*ledger.Ledger, *store.Store, error) {
	s, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	l := ledger.New(s, a.resolver(), a.renderer(),
		ledger.WithLogger(a.log), ledger.WithMaxAttempts(a.cfg.MaxAllocAttempts))

	return l, s, nil
}

// newLogger logs JSON to errOut with the production encoder. Only warnings
// and errors show unless verbose is set.
func newLogger(errOut io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(errOut),
		zap.NewAtomicLevelAt(level),
	)

	return zap.New(core)
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func fprintf(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, format, a...)
}

func printUsage(w io.Writer, globals *flag.FlagSet, commands []*Command) {
	if commands == nil {
		commands = (&app{cfg: &config.Config{}, log: zap.NewNop()}).commands()
	}

	fprintln(w, `docnum - document numbering and reconciliation

Usage: docnum [global flags] <command> [args]

Global flags:`)

	var buf strings.Builder
	globals.SetOutput(&buf)
	globals.PrintDefaults()
	globals.SetOutput(&strings.Builder{})
	fprintf(w, "%s", buf.String())

	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range commands {
		fprintln(w, c.HelpLine())
	}
}
