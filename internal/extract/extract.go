package extract

import (
	"regexp"
	"strings"
)

// DocumentTextExtractor scrapes a rendered document for what it declares
// about itself. Both methods return "" when the document carries no such
// label, and an error wrapping [ErrUnreadable] when the bytes are not a
// readable document.
type DocumentTextExtractor interface {
	// ExtractDeclaredNumber returns the document number printed next to a
	// known number label, as printed ("12/OF/2025").
	ExtractDeclaredNumber(data []byte) (string, error)

	// ExtractPartyTaxID returns the counter-party NIP as printed.
	ExtractPartyTaxID(data []byte) (string, error)
}

// Docx extracts from .docx packages.
type Docx struct{}

var _ DocumentTextExtractor = Docx{}

// numberLabel matches the labels templates put in front of the document
// number. The value is whatever follows on the same line.
var numberLabel = regexp.MustCompile(`(?i)(?:nr\.?\s+oferty|numer\s+oferty|oferta\s+nr\.?|nr\.?\s+wz|wz\s+nr\.?|numer\s+wz|wydanie\s+zewn[eę]trzne\s+nr\.?)\s*:?(.*)$`)

// taxIDLabel matches "NIP: 123-456-78-90" and "NIP PL1234567890".
var taxIDLabel = regexp.MustCompile(`(?i)\bNIP\b\s*:?(.*)$`)

var taxIDValue = regexp.MustCompile(`^(?i:PL)?\s*([0-9][0-9\- ]*[0-9])`)

// ExtractDeclaredNumber returns the first labeled document number.
func (Docx) ExtractDeclaredNumber(data []byte) (string, error) {
	text, err := Text(data)
	if err != nil {
		return "", err
	}

	return DeclaredNumber(text), nil
}

// ExtractPartyTaxID returns the last labeled NIP in the document.
//
// Templates print the supplier first and the client last, so the last NIP is
// taken to be the client's. A template that prints them the other way round
// makes every audit of it report an alias mismatch.
func (Docx) ExtractPartyTaxID(data []byte) (string, error) {
	text, err := Text(data)
	if err != nil {
		return "", err
	}

	return PartyTaxID(text), nil
}

// DeclaredNumber scans extracted text for the first labeled number.
func DeclaredNumber(text string) string {
	values := labeledValues(text, numberLabel, firstField)
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

// PartyTaxID scans extracted text for the last labeled NIP.
func PartyTaxID(text string) string {
	values := labeledValues(text, taxIDLabel, func(s string) string {
		m := taxIDValue.FindStringSubmatch(s)
		if m == nil {
			return ""
		}

		return strings.TrimSpace(m[1])
	})
	if len(values) == 0 {
		return ""
	}

	return values[len(values)-1]
}

// NormalizeNumber maps a printed number to file name form ("/" -> "_").
func NormalizeNumber(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "/", "_")
}

// labeledValues returns one value per label occurrence. When the label ends
// its line (the value sits in the next table cell) the next non-empty line
// is used.
func labeledValues(text string, label *regexp.Regexp, value func(string) string) []string {
	lines := strings.Split(text, "\n")

	var values []string

	for i, line := range lines {
		m := label.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		rest := strings.TrimSpace(m[1])

		if rest == "" {
			for _, next := range lines[i+1:] {
				if next = strings.TrimSpace(next); next != "" {
					rest = next

					break
				}
			}
		}

		if v := value(rest); v != "" {
			values = append(values, v)
		}
	}

	return values
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}

	return strings.TrimRight(fields[0], ".,;")
}
