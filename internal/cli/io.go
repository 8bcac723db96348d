package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// IO handles command input and output. Warnings are collected while a
// command runs and printed to stderr before the first and after the last
// line of output, so they survive truncation (head/tail).
type IO struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	warnings []string
	started  bool
}

// NewIO creates a new IO instance. in may be nil when no input is available.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	return &IO{in: in, out: out, errOut: errOut}
}

// Warn adds an actionable warning.
//
// Parameters:
//   - issue: what went wrong
//   - action: what the operator should do about it
//
// Output to stdout (via Println) still occurs - warnings don't suppress
// normal output. Any warnings cause exit code 1.
func (o *IO) Warn(issue string, action string) {
	o.warnings = append(o.warnings, fmt.Sprintf("%s: %s", issue, action))
}

// Println writes to stdout. On first call, any collected warnings
// are printed to stderr first.
func (o *IO) Println(a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout. On first call, any collected
// warnings are printed to stderr first.
func (o *IO) Printf(format string, a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Out is the stdout writer, for encoders.
func (o *IO) Out() io.Writer {
	o.flushWarningsStart()
	return o.out
}

// In is the stdin reader, possibly nil.
func (o *IO) In() io.Reader {
	return o.in
}

// Finish prints warnings to stderr and returns exit code.
// Returns 1 if any warnings, 0 otherwise.
func (o *IO) Finish() int {
	// If no output happened but we have warnings, print them at "start" position
	o.flushWarningsStart()

	// Always print at end
	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	if len(o.warnings) > 0 {
		return 1
	}

	return 0
}

func (o *IO) flushWarningsStart() {
	if !o.started && len(o.warnings) > 0 {
		for _, w := range o.warnings {
			_, _ = fmt.Fprintln(o.errOut, "warning:", w)
		}

		o.started = true
	}
}

// Confirm asks a yes/no question. On a terminal the prompt is line-edited;
// otherwise one line is read from the input. Anything but "y"/"yes" is no.
func (o *IO) Confirm(question string) (bool, error) {
	prompt := question + " [y/N] "

	var (
		answer string
		err    error
	)

	switch {
	case o.in == nil:
		return false, fmt.Errorf("%s: no input available, pass --yes", question)
	case isTerminal(o.in):
		answer, err = promptTerminal(prompt)
	default:
		o.Printf("%s", prompt)

		answer, err = bufio.NewReader(o.in).ReadString('\n')
		if err == io.EOF {
			err = nil
		}
	}

	if err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "t", "tak":
		return true, nil
	default:
		return false, nil
	}
}

func promptTerminal(prompt string) (string, error) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	answer, err := line.Prompt(prompt)
	if err == liner.ErrPromptAborted {
		return "", nil
	}

	return answer, err
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok || f != os.Stdin {
		return false
	}

	info, err := f.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}
