// Package invoice holds the invoice model built from one spreadsheet row.
package invoice

import (
	"strings"
	"unicode"
)

// Field names a required column of an invoice row.
type Field string

const (
	FieldBillTo        Field = "BillTo"
	FieldShipTo        Field = "ShipTo"
	FieldInvoiceNumber Field = "InvoiceNumber"
	FieldDate          Field = "Date"
	FieldDescription   Field = "Description"
	FieldPrice         Field = "Price"
	FieldGST           Field = "GST"
	FieldTotalPrice    Field = "TotalPrice"
)

// RequiredFields lists every field a row must carry, in the order they are checked.
var RequiredFields = []Field{
	FieldBillTo,
	FieldShipTo,
	FieldInvoiceNumber,
	FieldDate,
	FieldDescription,
	FieldPrice,
	FieldGST,
	FieldTotalPrice,
}

// Label returns the spreadsheet column heading for the field.
func (f Field) Label() string {
	switch f {
	case FieldBillTo:
		return "Bill To"
	case FieldShipTo:
		return "Ship To"
	case FieldInvoiceNumber:
		return "Invoice Number"
	case FieldTotalPrice:
		return "Total Price"
	default:
		return string(f)
	}
}

// String returns the canonical field name
func (f Field) String() string {
	return string(f)
}

// ParseField maps a column heading to its field. Headings match
// case-insensitively and ignore spaces, underscores and dashes, so
// "Bill To", "bill_to" and "BillTo" are the same column.
func ParseField(heading string) (Field, bool) {
	key := normalizeHeading(heading)
	for _, f := range RequiredFields {
		if normalizeHeading(string(f)) == key {
			return f, true
		}
	}
	return "", false
}

func normalizeHeading(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

// RowRecord is one source row. It is read-only once built.
type RowRecord struct {
	// Row is the 1-based line in the source, 0 when unknown
	Row    int
	values map[Field]string
}

// NewRowRecord builds a record from column headings to raw values.
// Unknown headings are ignored.
func NewRowRecord(row int, raw map[string]string) RowRecord {
	values := make(map[Field]string, len(RequiredFields))
	for heading, v := range raw {
		if f, ok := ParseField(heading); ok {
			values[f] = v
		}
	}
	return RowRecord{Row: row, values: values}
}

// Get returns the raw value of a field and whether the column was present.
func (r RowRecord) Get(f Field) (string, bool) {
	v, ok := r.values[f]
	return v, ok
}

// Require returns the trimmed value of a field, or a MissingFieldError when
// the field is absent or blank.
func (r RowRecord) Require(f Field) (string, error) {
	v, ok := r.values[f]
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", &MissingFieldError{Field: f, Row: r.Row}
	}
	return v, nil
}

// InvoiceNumber returns the invoice number or "" when it is missing.
func (r RowRecord) InvoiceNumber() string {
	v, _ := r.Get(FieldInvoiceNumber)
	return strings.TrimSpace(v)
}

// Map returns a copy of the values keyed by canonical field name.
func (r RowRecord) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for f, v := range r.values {
		out[string(f)] = v
	}
	return out
}
