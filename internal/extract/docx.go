// Package extract reads text out of rendered .docx documents and scrapes the
// document number and the counter-party NIP from it.
//
// The scraping is heuristic: it looks for the labels the templates print.
// It lives behind [DocumentTextExtractor] so the auditor's comparison logic
// does not depend on it.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrUnreadable reports bytes that are not a readable .docx package.
var ErrUnreadable = errors.New("unreadable document")

// maxPartSize bounds how much of one XML part is read.
const maxPartSize = 32 << 20

const (
	mainPart = "word/document.xml"

	// markupCompat is the namespace of mc:AlternateContent. Its mc:Fallback
	// branch repeats the text of mc:Choice for older readers.
	markupCompat = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// Text returns the visible body text of a .docx: one line per paragraph,
// table cells as separate paragraphs. Headers and footers are skipped: they
// carry the supplier's own details, not the counter-party's. Text is
// NFC-normalized.
func Text(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	idx := slices.IndexFunc(zr.File, func(f *zip.File) bool { return f.Name == mainPart })
	if idx < 0 {
		return "", fmt.Errorf("%w: %s missing", ErrUnreadable, mainPart)
	}

	var b strings.Builder

	err = partText(zr.File[idx], &b)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnreadable, mainPart, err)
	}

	return norm.NFC.String(b.String()), nil
}

// partText streams one WordprocessingML part and appends its paragraphs.
func partText(f *zip.File, b *strings.Builder) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}

	defer func() { _ = rc.Close() }()

	dec := xml.NewDecoder(io.LimitReader(rc, maxPartSize))

	var (
		inText   bool
		fallback int
		line     strings.Builder
	)

	flush := func() {
		text := strings.TrimRight(line.String(), " \t")
		if text != "" {
			b.WriteString(text)
			b.WriteByte('\n')
		}

		line.Reset()
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return err
		}

		if isFallback(tok) {
			if _, start := tok.(xml.StartElement); start {
				fallback++
			} else {
				fallback--
			}

			continue
		}

		if fallback > 0 {
			continue
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteByte('\t')
			case "br", "cr":
				flush()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}

	flush()

	return nil
}

// isFallback matches mc:Fallback, also when the prefix is left undeclared.
func isFallback(tok xml.Token) bool {
	var name xml.Name

	switch t := tok.(type) {
	case xml.StartElement:
		name = t.Name
	case xml.EndElement:
		name = t.Name
	default:
		return false
	}

	return name.Local == "Fallback" && (name.Space == markupCompat || name.Space == "mc")
}
