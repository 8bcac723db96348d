package cli_test

import (
	"bytes"
	"testing"

	"github.com/calvinalkan/docnum/internal/cli"
)

func Test_Invalid_Global_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("--invalid-flag", "ls", "offer")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "unknown flag")
	cli.AssertContains(t, stderr, "--invalid-flag")

	cli.AssertContains(t, stderr, "Global flags:")
	cli.AssertContains(t, stderr, "--help")
	cli.AssertContains(t, stderr, "--cwd")
	cli.AssertContains(t, stderr, "--config")
	cli.AssertContains(t, stderr, "--offers-dir")
}

func Test_Empty_Path_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	for _, flag := range []string{"--db=", "--offers-dir=", "--wz-dir=", "--templates-dir="} {
		c := cli.NewCLI(t)
		stdout, stderr, exitCode := c.Run(flag, "ls", "offer")

		if got, want := exitCode, 1; got != want {
			t.Errorf("%s: exitCode=%d, want=%d", flag, got, want)
		}

		if got, want := stdout, ""; got != want {
			t.Errorf("%s: stdout=%q, want=%q", flag, got, want)
		}

		cli.AssertContains(t, stderr, "cannot be empty")
		cli.AssertContains(t, stderr, "Global flags:")
	}
}

func Test_Bare_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	// Call Run directly without test helper (which adds --cwd)
	var stdout, stderr bytes.Buffer

	exitCode := cli.Run(nil, &stdout, &stderr, []string{"docnum"}, nil, nil)

	if got, want := exitCode, 0; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stderr.String(), ""; got != want {
		t.Errorf("stderr=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stdout.String(), "docnum - document numbering and reconciliation")
	cli.AssertContains(t, stdout.String(), "--cwd")
	cli.AssertContains(t, stdout.String(), "generate <kind> --context <file>")
}

func Test_Main_Help_When_Invoked(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name string
		args []string
	}{
		{name: "long flag", args: []string{"--help"}},
		{name: "short flag", args: []string{"-h"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			stdout, stderr, exitCode := c.Run(tt.args...)

			if got, want := exitCode, 0; got != want {
				t.Errorf("exitCode=%d, want=%d", got, want)
			}

			if got, want := stderr, ""; got != want {
				t.Errorf("stderr=%q, want=%q", got, want)
			}

			cli.AssertContains(t, stdout, "docnum - document numbering and reconciliation")
			cli.AssertContains(t, stdout, "--cwd")
			cli.AssertContains(t, stdout, "audit [flags]")
			cli.AssertContains(t, stdout, "restore <db> <output-dir>")
			cli.AssertContains(t, stdout, "migrate-root <kind> <old-root> <new-root>")
		})
	}
}

func Test_No_Command_With_Flags_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("--verbose")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "no command provided")
	cli.AssertContains(t, stderr, "docnum - document numbering and reconciliation")
	cli.AssertContains(t, stderr, "Commands:")
}

func Test_Unknown_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("frobnicate")

	cli.AssertContains(t, stderr, "unknown command: frobnicate")
	cli.AssertContains(t, stderr, "Commands:")
}

func Test_Invalid_Command_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("generate", "--invalid-flag")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	cli.AssertContains(t, stdout, "Usage: docnum generate <kind> --context <file>")
	cli.AssertContains(t, stdout, "Flags:")

	cli.AssertContains(t, stderr, "error:")
	cli.AssertContains(t, stderr, "unknown flag")
	cli.AssertContains(t, stderr, "--invalid-flag")
}

func Test_Print_Config_Shows_Resolved_Paths_When_Env_Overrides(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.Env["DOCNUM_OFFERS_DIR"] = "elsewhere/oferty"

	out := c.MustRun("print-config")

	cli.AssertContains(t, out, "offers_dir="+c.Path("elsewhere", "oferty"))
	cli.AssertContains(t, out, "wz_dir="+c.WzDir())
	cli.AssertContains(t, out, "(defaults only)")
}

func Test_Argument_Errors_Print_Usage_Line_When_Invoked(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		args []string
		want string
	}{
		{args: []string{"next"}, want: "missing kind, year"},
		{args: []string{"next", "offer"}, want: "missing year"},
		{args: []string{"next", "offer", "2025", "extra"}, want: `unexpected argument "extra"`},
		{args: []string{"next", "offer", "zero"}, want: `invalid year "zero"`},
		{args: []string{"next", "invoice", "2025"}, want: "unknown document kind"},
	} {
		c := cli.NewCLI(t)
		stdout, stderr, exitCode := c.Run(tt.args...)

		if got, want := exitCode, 1; got != want {
			t.Errorf("%v: exitCode=%d, want=%d", tt.args, got, want)
		}

		if got, want := stdout, ""; got != want {
			t.Errorf("%v: stdout=%q, want=%q", tt.args, got, want)
		}

		cli.AssertContains(t, stderr, tt.want)
	}

	c := cli.NewCLI(t)
	stderr := c.MustFail("show", "offer")

	cli.AssertContains(t, stderr, "error: usage: missing path")
	cli.AssertContains(t, stderr, "usage: docnum show <kind> <path>")
}
