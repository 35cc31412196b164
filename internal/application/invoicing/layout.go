package invoicing

import (
	"strconv"
	"strings"

	"github.com/erp/invoicer/internal/domain/invoice"
	"github.com/erp/invoicer/internal/domain/printing"
)

// Block labels of the invoice page
const (
	BlockTitle    = "title"
	BlockCompany  = "company"
	BlockBillTo   = "bill_to"
	BlockShipTo   = "ship_to"
	BlockMetadata = "metadata"
	BlockItems    = "items"
	BlockTotals   = "totals"
)

// Page geometry in millimeters, A4 portrait.
const (
	lineHeight = 10.0
	leftX      = 10.0
	contentW   = 190.0

	titleY    = 10.0
	companyY  = 20.0
	companyW  = 100.0
	billToY   = 90.0
	shipToY   = 115.0
	partyW    = 120.0
	metadataX = 140.0
	metadataY = 45.0
	metadataW = 60.0
	itemsY    = 145.0
	totalsGap = 10.0

	totalsLabelW  = 130.0
	totalsAmountW = 40.0
)

var (
	bodyFont  = printing.Font{Style: printing.FontRegular, Size: 12}
	boldFont  = printing.Font{Style: printing.FontBold, Size: 12}
	titleFont = printing.Font{Style: printing.FontBold, Size: 20}

	itemColumns = []printing.Column{
		{Title: "ITEM", Width: 60, Align: printing.AlignLeft},
		{Title: "QUANTITY", Width: 30, Align: printing.AlignLeft},
		{Title: "RATE", Width: 40, Align: printing.AlignLeft},
		{Title: "AMOUNT", Width: 40, Align: printing.AlignLeft},
	}
)

// Layout places an invoice on a single A4 page. The result is plain data;
// any renderer can draw it.
func Layout(inv *invoice.Invoice) *printing.Document {
	cur := inv.Currency

	doc := &printing.Document{
		Title: "Invoice " + inv.Number,
		Page:  printing.DefaultPage(),
	}

	doc.Blocks = append(doc.Blocks,
		printing.Block{
			Label:      BlockTitle,
			Position:   printing.Position{X: leftX, Y: titleY},
			Width:      contentW,
			LineHeight: lineHeight,
			Lines:      []printing.Line{{Text: "INVOICE", Font: titleFont, Align: printing.AlignRight}},
		},
	)
	// A seller without any details leaves the corner empty
	if lines := inv.Seller.Lines(); len(lines) > 0 {
		doc.Blocks = append(doc.Blocks, printing.Block{
			Label:      BlockCompany,
			Position:   printing.Position{X: leftX, Y: companyY},
			Width:      companyW,
			LineHeight: lineHeight,
			Lines:      textLines(lines, bodyFont),
		})
	}
	doc.Blocks = append(doc.Blocks,
		partyBlock(BlockBillTo, "Bill To", inv.BillTo, billToY),
		partyBlock(BlockShipTo, "Ship To", inv.ShipTo, shipToY),
		printing.Block{
			Label:      BlockMetadata,
			Position:   printing.Position{X: metadataX, Y: metadataY},
			Width:      metadataW,
			LineHeight: lineHeight,
			Lines: textLines([]string{
				"Invoice #: " + inv.Number,
				"Date: " + inv.Date,
				"Balance Due: " + cur.Format(inv.BalanceDue()),
			}, bodyFont),
		},
	)

	rows := make([][]string, 0, len(inv.Items))
	for _, item := range inv.Items {
		rows = append(rows, []string{
			singleLine(item.Description),
			strconv.Itoa(item.Quantity),
			cur.Format(item.Rate),
			cur.Format(item.Amount),
		})
	}
	items := printing.Block{
		Label:      BlockItems,
		Position:   printing.Position{X: leftX, Y: itemsY},
		LineHeight: lineHeight,
		Table: &printing.Table{
			Columns:    itemColumns,
			Rows:       rows,
			ShowHeader: true,
			Bordered:   true,
			HeaderFont: boldFont,
			BodyFont:   bodyFont,
		},
	}
	items.Width = items.Table.Width()
	doc.Blocks = append(doc.Blocks, items)

	totals := printing.Block{
		Label:      BlockTotals,
		Position:   printing.Position{X: leftX, Y: items.Bottom() + totalsGap},
		LineHeight: lineHeight,
		Table: &printing.Table{
			Columns: []printing.Column{
				{Title: "", Width: totalsLabelW, Align: printing.AlignLeft},
				{Title: "", Width: totalsAmountW, Align: printing.AlignRight},
			},
			Rows: [][]string{
				{"Subtotal", cur.Format(inv.Subtotal())},
				{inv.TaxLabel(), cur.Format(inv.Tax())},
				{"Total", cur.Format(inv.Total)},
			},
			BodyFont: bodyFont,
		},
	}
	totals.Width = totals.Table.Width()
	doc.Blocks = append(doc.Blocks, totals)

	return doc
}

func partyBlock(label, heading, value string, y float64) printing.Block {
	return printing.Block{
		Label:      label,
		Position:   printing.Position{X: leftX, Y: y},
		Width:      partyW,
		LineHeight: lineHeight,
		Lines: []printing.Line{
			{Text: heading, Font: boldFont},
			{Text: singleLine(value), Font: bodyFont},
		},
	}
}

func textLines(texts []string, font printing.Font) []printing.Line {
	lines := make([]printing.Line, 0, len(texts))
	for _, t := range texts {
		lines = append(lines, printing.Line{Text: singleLine(t), Font: font})
	}
	return lines
}

// singleLine folds multi-line cell values onto one line.
func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}
