package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

// totalsTolerance is the largest difference between the record total and
// subtotal+tax that still counts as consistent.
var totalsTolerance = decimal.New(5, -3)

// LineItem is one billable row of the item table.
type LineItem struct {
	Description string
	Quantity    int
	Rate        decimal.Decimal
	Amount      decimal.Decimal
}

// NewLineItem creates a line item with amount = rate x quantity, rounded to cents.
func NewLineItem(description string, quantity int, rate decimal.Decimal) LineItem {
	return LineItem{
		Description: description,
		Quantity:    quantity,
		Rate:        rate,
		Amount:      rate.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
	}
}

// Company is the seller block printed at the top-left of every invoice.
type Company struct {
	Name          string
	AddressLines  []string
	TaxID         string
	ContactPerson string
}

// Lines returns the printed lines of the company block.
func (c Company) Lines() []string {
	lines := make([]string, 0, len(c.AddressLines)+3)
	if c.Name != "" {
		lines = append(lines, c.Name)
	}
	for _, l := range c.AddressLines {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if c.TaxID != "" {
		lines = append(lines, "GSTIN - "+c.TaxID)
	}
	if c.ContactPerson != "" {
		lines = append(lines, "Contact Person - "+c.ContactPerson)
	}
	return lines
}

// Invoice is the transient render target built from one row.
type Invoice struct {
	Number   string
	Date     string
	BillTo   string
	ShipTo   string
	Seller   Company
	Items    []LineItem
	TaxRate  decimal.Decimal
	Total    decimal.Decimal
	Currency Currency
}

// FromRecord validates a row and builds its invoice. Every required field
// is checked for presence, in RequiredFields order, before any value is
// parsed.
func FromRecord(rec RowRecord, seller Company, currency Currency) (*Invoice, error) {
	values := make(map[Field]string, len(RequiredFields))
	for _, f := range RequiredFields {
		v, err := rec.Require(f)
		if err != nil {
			return nil, err
		}
		values[f] = v
	}

	price, err := ParseAmount(values[FieldPrice])
	if err != nil {
		return nil, &InvalidFieldError{Field: FieldPrice, Row: rec.Row, Value: values[FieldPrice], Cause: err}
	}
	rate, err := ParseRate(values[FieldGST])
	if err != nil {
		return nil, &InvalidFieldError{Field: FieldGST, Row: rec.Row, Value: values[FieldGST], Cause: err}
	}
	total, err := ParseAmount(values[FieldTotalPrice])
	if err != nil {
		return nil, &InvalidFieldError{Field: FieldTotalPrice, Row: rec.Row, Value: values[FieldTotalPrice], Cause: err}
	}

	return &Invoice{
		Number:   values[FieldInvoiceNumber],
		Date:     values[FieldDate],
		BillTo:   values[FieldBillTo],
		ShipTo:   values[FieldShipTo],
		Seller:   seller,
		Items:    []LineItem{NewLineItem(values[FieldDescription], 1, price)},
		TaxRate:  rate,
		Total:    total,
		Currency: currency,
	}, nil
}

// Subtotal is the sum of the item amounts.
func (inv *Invoice) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range inv.Items {
		sum = sum.Add(item.Amount)
	}
	return sum
}

// Tax is subtotal x tax rate, rounded to cents. It never reads Total.
func (inv *Invoice) Tax() decimal.Decimal {
	return inv.Subtotal().Mul(inv.TaxRate).Round(2)
}

// BalanceDue is the amount shown next to the invoice metadata; it is the
// record total verbatim.
func (inv *Invoice) BalanceDue() decimal.Decimal {
	return inv.Total
}

// ComputedTotal is subtotal + tax.
func (inv *Invoice) ComputedTotal() decimal.Decimal {
	return inv.Subtotal().Add(inv.Tax())
}

// TotalsConsistent reports whether the record total matches subtotal + tax.
// A mismatch is not corrected; the record total is always printed.
func (inv *Invoice) TotalsConsistent() bool {
	return inv.ComputedTotal().Sub(inv.Total).Abs().LessThanOrEqual(totalsTolerance)
}

// TaxLabel returns the label of the tax row, e.g. "Tax (18.0%)".
func (inv *Invoice) TaxLabel() string {
	return "Tax (" + FormatRate(inv.TaxRate) + "%)"
}

// FileName returns the output file name for an invoice number with the
// given extension: invoice_<number>.<ext>. Characters that are unsafe in
// file names are replaced with '_'.
func FileName(number, ext string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		case r < 0x20:
			return '_'
		}
		return r
	}, strings.TrimSpace(number))
	safe = strings.ReplaceAll(safe, "..", "_")
	return "invoice_" + safe + "." + strings.TrimPrefix(ext, ".")
}

// FileName returns the PDF file name of this invoice.
func (inv *Invoice) FileName() string {
	return FileName(inv.Number, "pdf")
}
