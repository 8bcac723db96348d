// Package render turns a context snapshot into document bytes.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/calvinalkan/docnum/internal/docs"
)

// ErrTemplateNotFound is returned when no template file exists for an id.
var ErrTemplateNotFound = errors.New("template not found")

// Renderer fills the template identified by templateID with values.
type Renderer interface {
	Render(ctx context.Context, templateID string, values map[string]any) ([]byte, error)
}

// Template ids.
const (
	TemplateOffer     = "offer"
	TemplateOfferLong = "offer_long"
	TemplateWZ        = "wz"
	TemplateWZLong    = "wz_long"
)

// LongFieldRunes is the party field length from which the long layout is used.
const LongFieldRunes = 60

// SelectTemplate picks the template variant for a document. It depends on
// the context only, so a restore picks the same variant as the original
// generation did.
func SelectTemplate(kind docs.Kind, c docs.Context) string {
	long := c.HasMultiline()

	for _, v := range []string{
		c.SupplierName, c.SupplierAddress1, c.SupplierAddress2,
		c.ClientName, c.ClientAddress1, c.ClientAddress2,
	} {
		if utf8.RuneCountInString(v) > LongFieldRunes {
			long = true
		}
	}

	switch {
	case kind == docs.KindOffer && long:
		return TemplateOfferLong
	case kind == docs.KindOffer:
		return TemplateOffer
	case long:
		return TemplateWZLong
	default:
		return TemplateWZ
	}
}

// Values flattens a context into template values. Scalar fields use their
// JSON names; line items are under "items" with keys "lp", "name", "unit",
// "qty", "unit_price" and "total". Offers also get "grand_total". Unknown
// string keys kept in Extra are passed through.
func Values(c docs.Context) (map[string]any, error) {
	// FillTotals mutates line items in place.
	c.Products = append([]docs.Product(nil), c.Products...)

	err := c.FillTotals()
	if err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}

	values := map[string]any{}

	for key, raw := range c.Extra {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			values[key] = s
		}
	}

	for key, v := range map[string]string{
		"number":             c.Number,
		"date":               c.Date,
		"supplier_name":      c.SupplierName,
		"supplier_address_1": c.SupplierAddress1,
		"supplier_address_2": c.SupplierAddress2,
		"supplier_nip":       c.SupplierNip,
		"client_name":        c.ClientName,
		"client_address_1":   c.ClientAddress1,
		"client_address_2":   c.ClientAddress2,
		"client_nip":         c.ClientNip,
		"client_alias":       c.ClientAlias,
	} {
		values[key] = v
	}

	items := make([]map[string]string, 0, len(c.Products))
	priced := false

	for _, p := range c.Products {
		items = append(items, map[string]string{
			"lp":         p.LP,
			"name":       p.Name,
			"unit":       p.Unit,
			"qty":        p.Qty,
			"unit_price": p.UnitPrice,
			"total":      p.Total,
		})

		if p.UnitPrice != "" {
			priced = true
		}
	}

	values["items"] = items

	if priced {
		total, err := c.GrandTotal()
		if err != nil {
			return nil, fmt.Errorf("values: %w", err)
		}

		like := ""
		if len(c.Products) > 0 {
			like = c.Products[0].UnitPrice
		}

		values["grand_total"] = docs.FormatAmount(total, like)
	}

	return values, nil
}
