// Package layout resolves where rendered documents live on disk.
//
// Every kind has its own root folder. Inside it documents are grouped by the
// year of their number:
//
//	{root}/{year}/{number}_{KIND}_{year}_{alias}.docx
//
// The database stores the storage-relative part ("2025/12_OF_2025_ACME.docx"),
// always with forward slashes, so a database stays valid when the root moves.
package layout

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/calvinalkan/docnum/internal/config"
	"github.com/calvinalkan/docnum/internal/docs"
)

// Extension is the file extension of rendered documents.
const Extension = ".docx"

var (
	// ErrInvalidAlias is returned for aliases that would escape the year folder.
	ErrInvalidAlias = errors.New("invalid alias")

	// ErrNotDocumentName is returned when a file name does not follow the layout.
	ErrNotDocumentName = errors.New("not a document file name")

	// ErrNoRoot is returned when no root folder is configured for a kind.
	ErrNoRoot = errors.New("no root folder configured")
)

// Resolver maps document identities to paths under the configured roots.
type Resolver struct {
	roots map[docs.Kind]string
}

// NewResolver builds a resolver from the configured kind roots.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		roots: map[docs.Kind]string{
			docs.KindOffer: cfg.OffersDirAbs,
			docs.KindWZ:    cfg.WzDirAbs,
		},
	}
}

// Root returns the configured root for kind.
func (r *Resolver) Root(kind docs.Kind) (string, error) {
	root := r.roots[kind]
	if root == "" {
		return "", fmt.Errorf("%w for %s", ErrNoRoot, kind)
	}

	return root, nil
}

// ValidateAlias rejects aliases that are empty, dot segments, or contain a
// path separator.
func ValidateAlias(alias string) error {
	switch {
	case strings.TrimSpace(alias) == "":
		return fmt.Errorf("%w: empty", ErrInvalidAlias)
	case alias == "." || alias == "..":
		return fmt.Errorf("%w: %q", ErrInvalidAlias, alias)
	case strings.ContainsAny(alias, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidAlias, alias)
	}

	return nil
}

// FileName is the document file name without directories.
func FileName(kind docs.Kind, year, number int, alias string) (string, error) {
	err := ValidateAlias(alias)
	if err != nil {
		return "", err
	}

	if number < 1 {
		return "", fmt.Errorf("file name: number must be >= 1, got %d", number)
	}

	return fmt.Sprintf("%d_%s_%d_%s%s", number, kind.Code(), year, alias, Extension), nil
}

// RelPath is the storage-relative path recorded in the database.
func RelPath(kind docs.Kind, year, number int, alias string) (string, error) {
	name, err := FileName(kind, year, number, alias)
	if err != nil {
		return "", err
	}

	return path.Join(strconv.Itoa(year), name), nil
}

// BuildPath is the absolute on-disk path for a document.
func (r *Resolver) BuildPath(kind docs.Kind, year, number int, alias string) (string, error) {
	root, err := r.Root(kind)
	if err != nil {
		return "", err
	}

	rel, err := RelPath(kind, year, number, alias)
	if err != nil {
		return "", err
	}

	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

// Abs resolves a stored FilePath. Legacy rows that hold an absolute path are
// returned unchanged.
func (r *Resolver) Abs(kind docs.Kind, stored string) (string, error) {
	if filepath.IsAbs(stored) {
		return stored, nil
	}

	root, err := r.Root(kind)
	if err != nil {
		return "", err
	}

	return filepath.Join(root, filepath.FromSlash(stored)), nil
}

// Rel converts an absolute path under the kind root into the stored form.
func (r *Resolver) Rel(kind docs.Kind, abs string) (string, error) {
	root, err := r.Root(kind)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("rel %s: %w", abs, err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("rel %s: outside %s", abs, root)
	}

	return filepath.ToSlash(rel), nil
}

// Name is a parsed document file name.
type Name struct {
	Number int
	Kind   docs.Kind
	Year   int
	Alias  string
}

// Stem is the file name without extension, e.g. "12_OF_2025_ACME".
func (n Name) Stem() string {
	return fmt.Sprintf("%d_%s_%d_%s", n.Number, n.Kind.Code(), n.Year, n.Alias)
}

var fileNamePattern = regexp.MustCompile(`^(\d+)_([A-Za-z]{2})_(\d{4})_(.+)\.(?i:docx)$`)

// ParseFilename inverts [FileName]. Directories in name are ignored.
func ParseFilename(name string) (Name, error) {
	base := path.Base(filepath.ToSlash(name))

	m := fileNamePattern.FindStringSubmatch(base)
	if m == nil {
		return Name{}, fmt.Errorf("%w: %q", ErrNotDocumentName, base)
	}

	kind, ok := docs.KindFromCode(m[2])
	if !ok {
		return Name{}, fmt.Errorf("%w: %q: unknown kind code %q", ErrNotDocumentName, base, m[2])
	}

	number, err := strconv.Atoi(m[1])
	if err != nil {
		return Name{}, fmt.Errorf("%w: %q: number out of range", ErrNotDocumentName, base)
	}

	year, err := strconv.Atoi(m[3])
	if err != nil {
		return Name{}, fmt.Errorf("%w: %q: year out of range", ErrNotDocumentName, base)
	}

	return Name{Number: number, Kind: kind, Year: year, Alias: m[4]}, nil
}

// Stem strips directories and the extension from a stored path.
func Stem(stored string) string {
	base := path.Base(filepath.ToSlash(stored))

	return strings.TrimSuffix(base, path.Ext(base))
}

// trailingPattern matches "<year>/<filename>" at the end of a stored path,
// with either separator so rows written on Windows parse anywhere.
var trailingPattern = regexp.MustCompile(`(?:^|[/\\])(\d{4})[/\\]([^/\\]+)$`)

// splitStored splits a stored path into the root prefix (empty for relative
// rows), the year folder and the file name.
func splitStored(stored string) (prefix, year, file string, ok bool) {
	loc := trailingPattern.FindStringSubmatchIndex(stored)
	if loc == nil {
		return "", "", "", false
	}

	year = stored[loc[2]:loc[3]]
	file = stored[loc[4]:loc[5]]
	prefix = strings.TrimRight(stored[:loc[2]], `/\`)

	return prefix, year, file, true
}

// Trailing returns the "<year>/<file>" tail of a stored path, relative or
// legacy absolute, with forward slashes.
func Trailing(stored string) (string, bool) {
	_, year, file, ok := splitStored(stored)
	if !ok {
		return "", false
	}

	return path.Join(year, file), true
}
