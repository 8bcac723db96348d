package docs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// LineBreakMarker is the literal two-character sequence stored in place of a
// newline inside multi-line text fields. The renderer turns it back into a
// line break inside a formatted run.
const LineBreakMarker = `\n`

var multilineEscaper = strings.NewReplacer("\r\n", LineBreakMarker, "\n", LineBreakMarker, "\r", LineBreakMarker)

// EscapeMultiline replaces real newlines with [LineBreakMarker].
func EscapeMultiline(s string) string {
	return multilineEscaper.Replace(s)
}

// UnescapeMultiline turns [LineBreakMarker] back into newlines for display.
func UnescapeMultiline(s string) string {
	return strings.ReplaceAll(s, LineBreakMarker, "\n")
}

// Context is the full input snapshot a document was rendered from.
//
// Known keys are typed fields. Keys the current schema does not know about are
// kept verbatim in Extra so that snapshots written by newer versions survive a
// load/save cycle.
type Context struct {
	Number string `json:"number,omitempty"`
	Date   string `json:"date" validate:"required"`

	SupplierName     string `json:"supplier_name" validate:"required"`
	SupplierAddress1 string `json:"supplier_address_1" validate:"required"`
	SupplierAddress2 string `json:"supplier_address_2"`
	SupplierNip      string `json:"supplier_nip" validate:"required,nip"`

	ClientName     string `json:"client_name" validate:"required"`
	ClientAddress1 string `json:"client_address_1" validate:"required"`
	ClientAddress2 string `json:"client_address_2"`
	ClientNip      string `json:"client_nip" validate:"required,nip"`
	ClientAlias    string `json:"client_alias" validate:"required"`

	Products []Product `json:"products" validate:"required,min=1,dive"`

	Extra map[string]json.RawMessage `json:"-"`
}

// contextFields is the JSON view of the typed part of Context.
type contextFields struct {
	Number           string    `json:"number,omitempty"`
	Date             string    `json:"date"`
	SupplierName     string    `json:"supplier_name"`
	SupplierAddress1 string    `json:"supplier_address_1"`
	SupplierAddress2 string    `json:"supplier_address_2"`
	SupplierNip      string    `json:"supplier_nip"`
	ClientName       string    `json:"client_name"`
	ClientAddress1   string    `json:"client_address_1"`
	ClientAddress2   string    `json:"client_address_2"`
	ClientNip        string    `json:"client_nip"`
	ClientAlias      string    `json:"client_alias"`
	Products         []Product `json:"products"`
}

var knownContextKeys = map[string]struct{}{
	"number": {}, "date": {},
	"supplier_name": {}, "supplier_address_1": {}, "supplier_address_2": {}, "supplier_nip": {},
	"client_name": {}, "client_address_1": {}, "client_address_2": {}, "client_nip": {}, "client_alias": {},
	"products": {},
}

// MarshalJSON writes the typed fields and merges Extra. Typed fields win on
// key collisions.
func (c Context) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(contextFields{
		Number:           c.Number,
		Date:             c.Date,
		SupplierName:     c.SupplierName,
		SupplierAddress1: c.SupplierAddress1,
		SupplierAddress2: c.SupplierAddress2,
		SupplierNip:      c.SupplierNip,
		ClientName:       c.ClientName,
		ClientAddress1:   c.ClientAddress1,
		ClientAddress2:   c.ClientAddress2,
		ClientNip:        c.ClientNip,
		ClientAlias:      c.ClientAlias,
		Products:         c.Products,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}

	if len(c.Extra) == 0 {
		return typed, nil
	}

	merged := make(map[string]json.RawMessage, len(c.Extra)+len(knownContextKeys))
	for k, v := range c.Extra {
		merged[k] = v
	}

	var fields map[string]json.RawMessage

	err = json.Unmarshal(typed, &fields)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}

	for k, v := range fields {
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}

	return out, nil
}

// UnmarshalJSON reads the typed fields and keeps unknown keys in Extra.
func (c *Context) UnmarshalJSON(data []byte) error {
	var fields contextFields

	err := json.Unmarshal(data, &fields)
	if err != nil {
		return err
	}

	var raw map[string]json.RawMessage

	err = json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	var extra map[string]json.RawMessage

	for k, v := range raw {
		if _, known := knownContextKeys[k]; known {
			continue
		}

		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}

		extra[k] = v
	}

	*c = Context{
		Number:           fields.Number,
		Date:             fields.Date,
		SupplierName:     fields.SupplierName,
		SupplierAddress1: fields.SupplierAddress1,
		SupplierAddress2: fields.SupplierAddress2,
		SupplierNip:      fields.SupplierNip,
		ClientName:       fields.ClientName,
		ClientAddress1:   fields.ClientAddress1,
		ClientAddress2:   fields.ClientAddress2,
		ClientNip:        fields.ClientNip,
		ClientAlias:      fields.ClientAlias,
		Products:         fields.Products,
		Extra:            extra,
	}

	return nil
}

// DecodeContext parses a stored snapshot.
func DecodeContext(data []byte) (Context, error) {
	var c Context

	err := json.Unmarshal(bytes.TrimSpace(data), &c)
	if err != nil {
		return Context{}, fmt.Errorf("decode context: %w", err)
	}

	return c, nil
}

// EncodeContext serializes a snapshot for storage.
func EncodeContext(c Context) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// ErrInvalidDate is returned when the business date has no recognizable layout.
var ErrInvalidDate = errors.New("invalid business date")

// dateLayouts are tried in order. The GUI stores either ISO dates or the
// already formatted Polish form.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02.01.2006",
	"02-01-2006",
	"02/01/2006",
	"2006.01.02",
}

// BusinessDate parses the context date.
func (c *Context) BusinessDate() (time.Time, error) {
	value := strings.TrimSpace(c.Date)
	// "15.03.2025 r." is a common hand-typed suffix.
	value = strings.TrimSpace(strings.TrimSuffix(value, "r."))

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, c.Date)
}

// BusinessYear is the year a document's number is scoped to. It comes from the
// business date, never from the wall clock, so back-dated documents land in
// the right sequence.
func (c *Context) BusinessYear() (int, error) {
	t, err := c.BusinessDate()
	if err != nil {
		return 0, err
	}

	return t.Year(), nil
}

// EscapeLineBreaks rewrites real newlines in the party fields as
// [LineBreakMarker]. Contexts typed by hand or exported from other tools
// carry real newlines; stored snapshots never do.
func (c *Context) EscapeLineBreaks() {
	for _, f := range []*string{
		&c.SupplierName, &c.SupplierAddress1, &c.SupplierAddress2,
		&c.ClientName, &c.ClientAddress1, &c.ClientAddress2,
	} {
		*f = EscapeMultiline(*f)
	}
}

// HasMultiline reports whether any party field carries a line break marker.
func (c *Context) HasMultiline() bool {
	for _, v := range []string{
		c.SupplierName, c.SupplierAddress1, c.SupplierAddress2,
		c.ClientName, c.ClientAddress1, c.ClientAddress2,
	} {
		if strings.Contains(v, LineBreakMarker) {
			return true
		}
	}

	return false
}
