package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// Paragraph renders one text paragraph.
func Paragraph(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + escape(text) + `</w:t></w:r></w:p>`
}

// Paragraphs renders one paragraph per line.
func Paragraphs(lines ...string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(Paragraph(l))
	}

	return b.String()
}

// TableRow renders one table row with a paragraph per cell.
func TableRow(cells ...string) string {
	var b strings.Builder

	b.WriteString("<w:tr>")

	for _, c := range cells {
		b.WriteString("<w:tc>" + Paragraph(c) + "</w:tc>")
	}

	b.WriteString("</w:tr>")

	return b.String()
}

// Table wraps rows in a table element.
func Table(rows ...string) string {
	return "<w:tbl>" + strings.Join(rows, "") + "</w:tbl>"
}

// DocumentXML wraps body in a WordprocessingML document.
func DocumentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
}

// FooterXML wraps body in a footer part.
func FooterXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:ftr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		body + `</w:ftr>`
}

// Docx builds a minimal .docx package around body.
func Docx(tb testing.TB, body string) []byte {
	tb.Helper()

	return DocxWithParts(tb, body, nil)
}

// DocxWithParts builds a .docx around body plus extra parts keyed by their
// name inside the package, e.g. "word/footer1.xml".
func DocxWithParts(tb testing.TB, body string, extra map[string]string) []byte {
	tb.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	parts := []struct{ name, data string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", DocumentXML(body)},
	}

	for name, data := range extra {
		parts = append(parts, struct{ name, data string }{name, data})
	}

	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			tb.Fatalf("zip create %s: %v", p.name, err)
		}

		_, err = w.Write([]byte(p.data))
		if err != nil {
			tb.Fatalf("zip write %s: %v", p.name, err)
		}
	}

	err := zw.Close()
	if err != nil {
		tb.Fatalf("zip close: %v", err)
	}

	return buf.Bytes()
}

// WriteDocx writes a .docx with one paragraph per line to path, creating
// parent directories.
func WriteDocx(tb testing.TB, path string, lines ...string) {
	tb.Helper()

	WriteFile(tb, path, Docx(tb, Paragraphs(lines...)))
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(tb testing.TB, path string, data []byte) {
	tb.Helper()

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}

// ReadDocumentXML returns word/document.xml from a .docx package.
func ReadDocumentXML(tb testing.TB, data []byte) string {
	tb.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		tb.Fatalf("open docx: %v", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			tb.Fatalf("open document.xml: %v", err)
		}

		raw, err := io.ReadAll(rc)
		_ = rc.Close()

		if err != nil {
			tb.Fatalf("read document.xml: %v", err)
		}

		return string(raw)
	}

	tb.Fatal("word/document.xml missing")

	return ""
}

func escape(s string) string {
	var b strings.Builder

	_ = xml.EscapeText(&b, []byte(s))

	return b.String()
}
