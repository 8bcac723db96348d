package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/docnum/internal/docs"
)

// Command is one docnum subcommand.
//
// Usage doubles as the command's identity: its first word is the name the
// dispatcher matches, the rest documents the positional arguments.
type Command struct {
	Flags *flag.FlagSet

	// Usage, e.g. "next <kind> <year>".
	Usage string

	// Short is listed in the global help; Long replaces it in the command's own
	// help when set.
	Short string
	Long  string

	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name is the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(strings.TrimSpace(c.Usage), " ")

	return name
}

// HelpLine formats the command for the "Commands:" listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-34s %s", c.Usage, c.Short)
}

// PrintHelp writes "docnum <cmd> --help" output to stdout.
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: docnum", c.Usage)
	o.Println()

	if c.Long != "" {
		o.Println(c.Long)
	} else {
		o.Println(c.Short)
	}

	if c.Flags == nil || !c.Flags.HasFlags() {
		return
	}

	o.Println()
	o.Println("Flags:")
	o.Printf("%s", c.Flags.FlagUsages())
}

// Run parses flags, executes the command and returns the exit code.
//
// A flag error prints the full help. An argument error from Exec prints only
// the usage line, so the error stays the first thing on stderr.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	err := c.Flags.Parse(args)

	switch {
	case errors.Is(err, flag.ErrHelp):
		c.PrintHelp(o)

		return 0
	case err != nil:
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err == nil {
		return 0
	}

	o.ErrPrintln("error:", err)

	if errors.Is(err, errUsage) {
		o.ErrPrintln("usage: docnum", c.Usage)
	}

	return 1
}

// errUsage marks errors in the positional arguments or required flags.
var errUsage = errors.New("usage")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// requireArgs wants exactly one argument per name.
func requireArgs(args []string, names ...string) error {
	switch {
	case len(args) < len(names):
		return usageErr("missing %s", strings.Join(names[len(args):], ", "))
	case len(args) > len(names):
		return usageErr("unexpected argument %q", args[len(names)])
	}

	return nil
}

// kindArgs is requireArgs for commands whose first argument is a document
// kind. The parsed kind is returned; args[1:] hold the rest in order.
func kindArgs(args []string, names ...string) (docs.Kind, error) {
	err := requireArgs(args, append([]string{"kind"}, names...)...)
	if err != nil {
		return 0, err
	}

	return docs.ParseKind(args[0])
}

// parseYear accepts a positive business year.
func parseYear(s string) (int, error) {
	year, err := strconv.Atoi(s)
	if err != nil || year < 1 {
		return 0, usageErr("invalid year %q", s)
	}

	return year, nil
}
