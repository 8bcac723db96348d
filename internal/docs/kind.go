// Package docs holds the document domain shared by every docnum component:
// document kinds, the context snapshot a document is rendered from, and the
// record that ties a number to a stored file.
package docs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies one of the supported document kinds.
type Kind int

const (
	// KindOffer is a price quotation ("oferta").
	KindOffer Kind = iota + 1
	// KindWZ is a goods-delivery note ("wydanie zewnętrzne").
	KindWZ
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{KindOffer, KindWZ}

// ErrUnknownKind is returned when a kind name cannot be parsed.
var ErrUnknownKind = errors.New("unknown document kind")

// Code is the short code embedded in file names and declared numbers.
func (k Kind) Code() string {
	switch k {
	case KindOffer:
		return "OF"
	case KindWZ:
		return "WZ"
	default:
		return "??"
	}
}

// String returns the lowercase name used in CLI arguments and log fields.
func (k Kind) String() string {
	switch k {
	case KindOffer:
		return "offer"
	case KindWZ:
		return "wz"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Dir is the directory name a kind is exported under during restore.
func (k Kind) Dir() string {
	switch k {
	case KindOffer:
		return "offers"
	case KindWZ:
		return "wz"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of [Kinds].
func (k Kind) Valid() bool {
	return k == KindOffer || k == KindWZ
}

// MarshalText writes the kind name.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}

	return []byte(k.String()), nil
}

// UnmarshalText accepts anything [ParseKind] does.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// ParseKind accepts the kind name, its code, or the Polish name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "offer", "offers", "of", "oferta":
		return KindOffer, nil
	case "wz", "wuzetka", "delivery", "delivery-note":
		return KindWZ, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// KindFromCode maps a file name code ("OF", "WZ") back to a Kind.
func KindFromCode(code string) (Kind, bool) {
	switch strings.ToUpper(code) {
	case "OF":
		return KindOffer, true
	case "WZ":
		return KindWZ, true
	default:
		return 0, false
	}
}

// FormatNumber renders the human-facing declared number, e.g. "12/OF/2025".
func FormatNumber(kind Kind, number, year int) string {
	return fmt.Sprintf("%d/%s/%d", number, kind.Code(), year)
}

// ErrInvalidNumber is returned when a declared number cannot be parsed.
var ErrInvalidNumber = errors.New("invalid document number")

// ParseDeclaredNumber reads the leading "<number>/<CODE>/<year>" part of a
// declared number. Separators may be "/" or "_"; anything after the year
// (usually "_<alias>") is ignored.
func ParseDeclaredNumber(s string) (number int, year int, err error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), "/", "_")
	parts := strings.Split(normalized, "_")

	if len(parts) < 3 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}

	number, err = strconv.Atoi(parts[0])
	if err != nil || number < 1 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}

	year, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}

	return number, year, nil
}
