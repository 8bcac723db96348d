package render

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/calvinalkan/docnum/internal/docs"
)

// DocxRenderer fills {{key}} placeholders in .docx templates stored as
// <dir>/<templateID>.docx.
//
// A table row holding an {{item.*}} placeholder is repeated once per line
// item. Line break markers in values become <w:br/> inside the run. A
// placeholder must sit inside a single text run; Word splits a placeholder
// across runs when it is edited piecemeal, which leaves it unreplaced.
type DocxRenderer struct {
	dir string
	log *zap.Logger
}

// DocxOption configures a DocxRenderer.
type DocxOption func(*DocxRenderer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) DocxOption {
	return func(r *DocxRenderer) {
		if l != nil {
			r.log = l
		}
	}
}

// NewDocxRenderer returns a renderer reading templates from dir.
func NewDocxRenderer(dir string, opts ...DocxOption) *DocxRenderer {
	r := &DocxRenderer{dir: dir, log: zap.NewNop()}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

var _ Renderer = (*DocxRenderer)(nil)

// TemplatePath returns the file a template id maps to.
func (r *DocxRenderer) TemplatePath(templateID string) (string, error) {
	if templateID == "" || strings.ContainsAny(templateID, `/\`) || templateID == "." || templateID == ".." {
		return "", fmt.Errorf("%w: invalid id %q", ErrTemplateNotFound, templateID)
	}

	return filepath.Join(r.dir, templateID+".docx"), nil
}

// Render implements [Renderer].
func (r *DocxRenderer) Render(ctx context.Context, templateID string, values map[string]any) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("render: context is nil")
	}

	path, err := r.TemplatePath(templateID)
	if err != nil {
		return nil, err
	}

	tpl, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}

		return nil, fmt.Errorf("render: read template: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(tpl), int64(len(tpl)))
	if err != nil {
		return nil, fmt.Errorf("render: template %s: %w", templateID, err)
	}

	var out bytes.Buffer

	zw := zip.NewWriter(&out)

	for _, f := range zr.File {
		err = ctx.Err()
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}

		err = copyPart(zw, f, values)
		if err != nil {
			return nil, fmt.Errorf("render: template %s: %s: %w", templateID, f.Name, err)
		}
	}

	err = zw.Close()
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	r.log.Debug("rendered", zap.String("template", templateID), zap.Int("bytes", out.Len()))

	return out.Bytes(), nil
}

func copyPart(zw *zip.Writer, f *zip.File, values map[string]any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}

	data, err := io.ReadAll(rc)
	_ = rc.Close()

	if err != nil {
		return err
	}

	if isFillable(f.Name) {
		data = []byte(Fill(string(data), values))
	}

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     f.Name,
		Method:   f.Method,
		Modified: f.Modified,
	})
	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}

func isFillable(name string) bool {
	if name == "word/document.xml" {
		return true
	}

	file, ok := strings.CutPrefix(name, "word/")

	return ok && !strings.Contains(file, "/") && strings.HasSuffix(file, ".xml") &&
		(strings.HasPrefix(file, "header") || strings.HasPrefix(file, "footer"))
}

var (
	placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)
	tableRow    = regexp.MustCompile(`(?s)<w:tr[ >].*?</w:tr>`)
)

const itemPrefix = "item."

// lineBreakXML closes the current text element, breaks the line and opens
// a new one in the same run.
const lineBreakXML = `</w:t><w:br/><w:t xml:space="preserve">`

// Fill substitutes placeholders in a WordprocessingML part.
func Fill(part string, values map[string]any) string {
	items, _ := values["items"].([]map[string]string)

	part = tableRow.ReplaceAllStringFunc(part, func(row string) string {
		if !rowHasItems(row) {
			return row
		}

		var b strings.Builder

		for _, item := range items {
			b.WriteString(placeholder.ReplaceAllStringFunc(row, func(m string) string {
				key := placeholder.FindStringSubmatch(m)[1]
				if field, ok := strings.CutPrefix(key, itemPrefix); ok {
					return escapeValue(item[field])
				}

				return m
			}))
		}

		return b.String()
	})

	return placeholder.ReplaceAllStringFunc(part, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if strings.HasPrefix(key, itemPrefix) {
			return ""
		}

		v, ok := values[key]
		if !ok || v == nil {
			return ""
		}

		return escapeValue(fmt.Sprint(v))
	})
}

func rowHasItems(row string) bool {
	for _, m := range placeholder.FindAllStringSubmatch(row, -1) {
		if strings.HasPrefix(m[1], itemPrefix) {
			return true
		}
	}

	return false
}

func escapeValue(s string) string {
	var b strings.Builder

	_ = xml.EscapeText(&b, []byte(s))

	return strings.ReplaceAll(b.String(), docs.LineBreakMarker, lineBreakXML)
}
