package docs

// Record is one generated document: its identity, where its rendered file
// lives and the snapshot it was rendered from.
//
// (Kind, Year, Number) and FilePath are each unique per kind. Only Context
// changes after creation.
type Record struct {
	Kind     Kind
	Year     int
	Number   int
	FilePath string // FilePath is storage-relative ("2025/12_OF_2025_ACME.docx").
	Context  Context
}

// DeclaredNumber is the number as printed on the document.
func (r *Record) DeclaredNumber() string {
	return FormatNumber(r.Kind, r.Number, r.Year)
}
