package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown report format")

// Write renders r in format to w.
func Write(w io.Writer, r *Report, format string) error {
	switch format {
	case FormatText, "":
		return WriteText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(r)
		if err != nil {
			return err
		}

		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteText prints one line per finding followed by a summary line.
func WriteText(w io.Writer, r *Report) error {
	var err error

	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format+"\n", args...)
		}
	}

	for _, f := range r.MissingFiles {
		p("missing     %-5s %s (%s)", f.Kind, f.FilePath, f.AbsPath)
	}

	for _, f := range r.OrphanedFiles {
		p("orphaned    %-5s %s", f.Kind, f.AbsPath)
	}

	for _, f := range r.NumberMismatches {
		p("number      %-5s %s: document says %s, expected %s", f.Kind, f.FilePath, f.Declared, f.Expected)
	}

	for _, f := range r.AliasMismatches {
		resolved := f.ResolvedAlias
		if resolved == "" {
			resolved = "(unregistered)"
		}

		p("alias       %-5s %s: NIP %s is %s, file name says %s", f.Kind, f.FilePath, f.TaxID, resolved, f.FileAlias)
	}

	for _, f := range r.UnreadableFiles {
		p("unreadable  %-5s %s: %s", f.Kind, f.FilePath, f.Err)
	}

	if r.Success() {
		p("ok: %d records, %d files, no discrepancies", r.RecordsChecked, r.FilesScanned)
	} else {
		p("%d discrepancies in %d records, %d files", r.Findings(), r.RecordsChecked, r.FilesScanned)
	}

	return err
}

// ExportXLSX writes r as a workbook with a summary sheet and one sheet per
// finding type. The file is replaced atomically.
func ExportXLSX(path string, r *Report) error {
	f := excelize.NewFile()

	defer func() { _ = f.Close() }()

	err := f.SetSheetName("Sheet1", "Summary")
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}

	sheets := []struct {
		name    string
		headers []any
		rows    [][]any
	}{
		{
			name:    "Summary",
			headers: []any{"Run", "Started", "Records", "Files", "Findings"},
			rows:    [][]any{{r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.RecordsChecked, r.FilesScanned, r.Findings()}},
		},
		{name: "Missing", headers: []any{"Kind", "File path", "Absolute path"}},
		{name: "Orphaned", headers: []any{"Kind", "Absolute path"}},
		{name: "Number mismatches", headers: []any{"Kind", "File path", "Declared", "Expected"}},
		{name: "Alias mismatches", headers: []any{"Kind", "File path", "NIP", "Registered alias", "File alias"}},
		{name: "Unreadable", headers: []any{"Kind", "File path", "Error"}},
	}

	for _, m := range r.MissingFiles {
		sheets[1].rows = append(sheets[1].rows, []any{m.Kind.String(), m.FilePath, m.AbsPath})
	}

	for _, o := range r.OrphanedFiles {
		sheets[2].rows = append(sheets[2].rows, []any{o.Kind.String(), o.AbsPath})
	}

	for _, n := range r.NumberMismatches {
		sheets[3].rows = append(sheets[3].rows, []any{n.Kind.String(), n.FilePath, n.Declared, n.Expected})
	}

	for _, a := range r.AliasMismatches {
		sheets[4].rows = append(sheets[4].rows, []any{a.Kind.String(), a.FilePath, a.TaxID, a.ResolvedAlias, a.FileAlias})
	}

	for _, u := range r.UnreadableFiles {
		sheets[5].rows = append(sheets[5].rows, []any{u.Kind.String(), u.FilePath, u.Err})
	}

	for i, s := range sheets {
		if i > 0 {
			_, err = f.NewSheet(s.name)
			if err != nil {
				return fmt.Errorf("export xlsx: sheet %s: %w", s.name, err)
			}
		}

		err = f.SetSheetRow(s.name, "A1", &s.headers)
		if err != nil {
			return fmt.Errorf("export xlsx: sheet %s: %w", s.name, err)
		}

		for j, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return fmt.Errorf("export xlsx: %w", err)
			}

			err = f.SetSheetRow(s.name, cell, &row)
			if err != nil {
				return fmt.Errorf("export xlsx: sheet %s: %w", s.name, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}

	err = atomic.WriteFile(path, buf)
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}

	return nil
}
