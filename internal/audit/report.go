package audit

import (
	"time"

	"github.com/calvinalkan/docnum/internal/docs"
)

// MissingFile is a database row whose file does not exist.
type MissingFile struct {
	Kind     docs.Kind `json:"kind" yaml:"kind"`
	FilePath string    `json:"file_path" yaml:"file_path"`
	AbsPath  string    `json:"abs_path" yaml:"abs_path"`
}

// OrphanedFile is a document under a root with no database row.
type OrphanedFile struct {
	Kind    docs.Kind `json:"kind" yaml:"kind"`
	AbsPath string    `json:"abs_path" yaml:"abs_path"`
}

// NumberMismatch is a document whose printed number disagrees with its
// file name.
type NumberMismatch struct {
	Kind     docs.Kind `json:"kind" yaml:"kind"`
	FilePath string    `json:"file_path" yaml:"file_path"`
	Declared string    `json:"declared" yaml:"declared"`
	Expected string    `json:"expected" yaml:"expected"`
}

// AliasMismatch is a document whose printed counter-party NIP resolves to a
// different alias than the one in its file name. ResolvedAlias is empty when
// the NIP is not registered.
type AliasMismatch struct {
	Kind          docs.Kind `json:"kind" yaml:"kind"`
	FilePath      string    `json:"file_path" yaml:"file_path"`
	TaxID         string    `json:"tax_id" yaml:"tax_id"`
	ResolvedAlias string    `json:"resolved_alias" yaml:"resolved_alias"`
	FileAlias     string    `json:"file_alias" yaml:"file_alias"`
}

// UnreadableFile is a tracked document whose contents could not be read.
type UnreadableFile struct {
	Kind     docs.Kind `json:"kind" yaml:"kind"`
	FilePath string    `json:"file_path" yaml:"file_path"`
	Err      string    `json:"error" yaml:"error"`
}

// Report is the outcome of one audit run.
type Report struct {
	RunID          string    `json:"run_id" yaml:"run_id"`
	StartedAt      time.Time `json:"started_at" yaml:"started_at"`
	RecordsChecked int       `json:"records_checked" yaml:"records_checked"`
	FilesScanned   int       `json:"files_scanned" yaml:"files_scanned"`

	MissingFiles     []MissingFile    `json:"missing_files" yaml:"missing_files"`
	OrphanedFiles    []OrphanedFile   `json:"orphaned_files" yaml:"orphaned_files"`
	NumberMismatches []NumberMismatch `json:"number_mismatches" yaml:"number_mismatches"`
	AliasMismatches  []AliasMismatch  `json:"alias_mismatches" yaml:"alias_mismatches"`
	UnreadableFiles  []UnreadableFile `json:"unreadable_files" yaml:"unreadable_files"`
}

func newReport(runID string, started time.Time) *Report {
	return &Report{
		RunID:            runID,
		StartedAt:        started,
		MissingFiles:     []MissingFile{},
		OrphanedFiles:    []OrphanedFile{},
		NumberMismatches: []NumberMismatch{},
		AliasMismatches:  []AliasMismatch{},
		UnreadableFiles:  []UnreadableFile{},
	}
}

// Success reports whether the audit found nothing.
func (r *Report) Success() bool {
	return r.Findings() == 0
}

// Findings counts every discrepancy.
func (r *Report) Findings() int {
	return len(r.MissingFiles) + len(r.OrphanedFiles) + len(r.NumberMismatches) +
		len(r.AliasMismatches) + len(r.UnreadableFiles)
}
