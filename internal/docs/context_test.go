package docs_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/calvinalkan/docnum/internal/docs"
)

func validOffer() docs.Context {
	return docs.Context{
		Date:             "2025-03-14",
		SupplierName:     `Hurtownia "Stal"\nSp. z o.o.`,
		SupplierAddress1: "ul. Kowalska 1",
		SupplierAddress2: "00-001 Warszawa",
		SupplierNip:      "5250001009",
		ClientName:       "ACME S.A.",
		ClientAddress1:   "ul. Polna 7",
		ClientAddress2:   "30-002 Kraków",
		ClientNip:        "1234567890",
		ClientAlias:      "ACME",
		Products: []docs.Product{
			{LP: "1", Name: "Pręt fi 12", Unit: "szt", Qty: "10", UnitPrice: "12,50", Total: "125,00"},
			{LP: "2", Name: "Blacha 2mm", Unit: "m2", Qty: "2,5", UnitPrice: "80.00"},
		},
	}
}

// Contract: unknown keys survive a decode/encode cycle untouched.
func Test_Context_Keeps_Unknown_Keys_When_Round_Tripped(t *testing.T) {
	t.Parallel()

	in := validOffer()
	in.Extra = map[string]json.RawMessage{
		"payment_terms": json.RawMessage(`"14 dni"`),
		"discount":      json.RawMessage(`5`),
	}

	encoded, err := docs.EncodeContext(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := docs.DecodeContext([]byte(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if diff := cmp.Diff(in, out, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// Contract: the two-character line break marker is stored as-is, never as a real newline.
func Test_Context_Stores_Literal_Marker_When_Field_Is_Multiline(t *testing.T) {
	t.Parallel()

	c := validOffer()
	c.ClientName = docs.EscapeMultiline("ACME\nOddział Kraków")

	encoded, err := docs.EncodeContext(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if !strings.Contains(encoded, `ACME\\nOddział`) {
		t.Fatalf("encoded = %s, want escaped marker", encoded)
	}

	decoded, err := docs.DecodeContext([]byte(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.ClientName != `ACME\nOddział Kraków` {
		t.Fatalf("client_name = %q", decoded.ClientName)
	}

	if got := docs.UnescapeMultiline(decoded.ClientName); got != "ACME\nOddział Kraków" {
		t.Fatalf("unescaped = %q", got)
	}
}

func Test_Product_Decodes_Numeric_Columns_When_Snapshot_Is_Old(t *testing.T) {
	t.Parallel()

	var p docs.Product

	err := json.Unmarshal([]byte(`[1, "Śruba", "szt", 40]`), &p)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := docs.Product{LP: "1", Name: "Śruba", Unit: "szt", Qty: "40"}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("product (-want +got):\n%s", diff)
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if string(out) != `["1","Śruba","szt","40"]` {
		t.Fatalf("marshal = %s", out)
	}
}

func Test_Product_Rejects_Row_When_Column_Count_Is_Wrong(t *testing.T) {
	t.Parallel()

	var p docs.Product

	err := json.Unmarshal([]byte(`["1", "x"]`), &p)
	if err == nil {
		t.Fatal("expected error for short row")
	}
}

func Test_BusinessYear_Uses_Context_Date(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"2024-12-31":           2024,
		"2025-01-02T10:00:00Z": 2025,
		"15.03.2023":           2023,
		"15.03.2023 r.":        2023,
	}

	for date, want := range cases {
		c := docs.Context{Date: date}

		got, err := c.BusinessYear()
		if err != nil {
			t.Fatalf("BusinessYear(%q): %v", date, err)
		}

		if got != want {
			t.Fatalf("BusinessYear(%q) = %d, want %d", date, got, want)
		}
	}

	bad := docs.Context{Date: "wczoraj"}

	_, err := bad.BusinessYear()
	if !errors.Is(err, docs.ErrInvalidDate) {
		t.Fatalf("err = %v, want ErrInvalidDate", err)
	}
}

func Test_Validate_Reports_Field_Names_When_Context_Incomplete(t *testing.T) {
	t.Parallel()

	c := validOffer()
	c.ClientNip = "123"
	c.SupplierName = ""

	err := c.Validate(docs.KindOffer)
	if !errors.Is(err, docs.ErrInvalidContext) {
		t.Fatalf("err = %v, want ErrInvalidContext", err)
	}

	msg := err.Error()
	for _, want := range []string{"client_nip: nip", "supplier_name: required"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q does not mention %q", msg, want)
		}
	}
}

func Test_Validate_Requires_Unit_Price_Only_On_Offers(t *testing.T) {
	t.Parallel()

	c := validOffer()
	c.Products[1].UnitPrice = ""

	if err := c.Validate(docs.KindOffer); !errors.Is(err, docs.ErrInvalidContext) {
		t.Fatalf("offer err = %v, want ErrInvalidContext", err)
	}

	if err := c.Validate(docs.KindWZ); err != nil {
		t.Fatalf("wz err = %v, want nil", err)
	}
}

func Test_FillTotals_Computes_Missing_Line_Totals(t *testing.T) {
	t.Parallel()

	c := validOffer()

	err := c.FillTotals()
	if err != nil {
		t.Fatalf("fill totals: %v", err)
	}

	if c.Products[0].Total != "125,00" {
		t.Fatalf("existing total overwritten: %q", c.Products[0].Total)
	}

	if c.Products[1].Total != "200.00" {
		t.Fatalf("computed total = %q, want 200.00", c.Products[1].Total)
	}

	sum, err := c.GrandTotal()
	if err != nil {
		t.Fatalf("grand total: %v", err)
	}

	if sum.StringFixed(2) != "325.00" {
		t.Fatalf("grand total = %s, want 325.00", sum.StringFixed(2))
	}
}

func Test_ParseDeclaredNumber_Accepts_Both_Separators(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"12/OF/2025", "12_OF_2025_ACME", "12/OF/2025_ACME"} {
		n, y, err := docs.ParseDeclaredNumber(in)
		if err != nil {
			t.Fatalf("ParseDeclaredNumber(%q): %v", in, err)
		}

		if n != 12 || y != 2025 {
			t.Fatalf("ParseDeclaredNumber(%q) = %d, %d", in, n, y)
		}
	}

	_, _, err := docs.ParseDeclaredNumber("OF-12")
	if !errors.Is(err, docs.ErrInvalidNumber) {
		t.Fatalf("err = %v, want ErrInvalidNumber", err)
	}
}

func Test_Error_Appends_Document_Context(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	err := docs.WithContext(base, docs.KindWZ, "2025/1_WZ_2025_X.docx")

	if err.Error() != "boom (kind=wz path=2025/1_WZ_2025_X.docx)" {
		t.Fatalf("error = %q", err.Error())
	}

	if !errors.Is(err, base) {
		t.Fatal("errors.Is lost the cause")
	}
}
