package docs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is one line item. On the wire it is a positional array:
//
//	["lp", "name", "unit", "qty"]                        // WZ
//	["lp", "name", "unit", "qty", "unit_price", "total"] // offer
type Product struct {
	LP        string `validate:"required"`
	Name      string `validate:"required"`
	Unit      string `validate:"required"`
	Qty       string `validate:"required,amount"`
	UnitPrice string `validate:"omitempty,amount"`
	Total     string `validate:"omitempty,amount"`
}

const (
	productMinColumns = 4
	productMaxColumns = 6
)

// MarshalJSON writes the positional form. Pricing columns are only written
// when one of them is set.
func (p Product) MarshalJSON() ([]byte, error) {
	row := []string{p.LP, p.Name, p.Unit, p.Qty}
	if p.UnitPrice != "" || p.Total != "" {
		row = append(row, p.UnitPrice, p.Total)
	}

	return json.Marshal(row)
}

// UnmarshalJSON accepts 4 to 6 columns; each column may be a string or a
// JSON number (older snapshots stored quantities as numbers).
func (p *Product) UnmarshalJSON(data []byte) error {
	var cols []json.RawMessage

	err := json.Unmarshal(data, &cols)
	if err != nil {
		return fmt.Errorf("product row: %w", err)
	}

	if len(cols) < productMinColumns || len(cols) > productMaxColumns {
		return fmt.Errorf("product row: want %d-%d columns, got %d", productMinColumns, productMaxColumns, len(cols))
	}

	values := make([]string, productMaxColumns)

	for i, col := range cols {
		v, colErr := columnString(col)
		if colErr != nil {
			return fmt.Errorf("product row column %d: %w", i+1, colErr)
		}

		values[i] = v
	}

	*p = Product{
		LP:        values[0],
		Name:      values[1],
		Unit:      values[2],
		Qty:       values[3],
		UnitPrice: values[4],
		Total:     values[5],
	}

	return nil
}

func columnString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	if string(raw) == "null" {
		return "", nil
	}

	return "", fmt.Errorf("want string or number, got %s", raw)
}

// ParseAmount reads a quantity or price written with either decimal
// separator ("2,5" or "2.5") and optional thousands spaces.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	cleaned = strings.ReplaceAll(cleaned, "\u00a0", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}

	return d, nil
}

// ComputedTotal is unit price times quantity, rounded to grosze.
func (p Product) ComputedTotal() (decimal.Decimal, error) {
	price, err := ParseAmount(p.UnitPrice)
	if err != nil {
		return decimal.Zero, err
	}

	qty, err := ParseAmount(p.Qty)
	if err != nil {
		return decimal.Zero, err
	}

	return price.Mul(qty).Round(2), nil
}

// FormatAmount prints d with two decimals using the separator style of like.
func FormatAmount(d decimal.Decimal, like string) string {
	out := d.StringFixed(2)
	if strings.Contains(like, ",") {
		out = strings.Replace(out, ".", ",", 1)
	}

	return out
}

// FillTotals sets missing offer line totals from price and quantity.
// Lines without a unit price are left untouched.
func (c *Context) FillTotals() error {
	for i := range c.Products {
		p := &c.Products[i]
		if p.UnitPrice == "" || p.Total != "" {
			continue
		}

		total, err := p.ComputedTotal()
		if err != nil {
			return fmt.Errorf("product %s: %w", p.LP, err)
		}

		p.Total = FormatAmount(total, p.UnitPrice)
	}

	return nil
}

// GrandTotal sums the line totals. Lines without a total contribute their
// computed value.
func (c *Context) GrandTotal() (decimal.Decimal, error) {
	sum := decimal.Zero

	for _, p := range c.Products {
		var (
			line decimal.Decimal
			err  error
		)

		switch {
		case p.Total != "":
			line, err = ParseAmount(p.Total)
		case p.UnitPrice != "":
			line, err = p.ComputedTotal()
		default:
			continue
		}

		if err != nil {
			return decimal.Zero, fmt.Errorf("product %s: %w", p.LP, err)
		}

		sum = sum.Add(line)
	}

	return sum, nil
}
