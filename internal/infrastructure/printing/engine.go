package printing

import (
	"github.com/erp/invoicer/internal/domain/printing"
)

// DefaultFont is used for lines and tables that leave their font unset.
var DefaultFont = printing.Font{Style: printing.FontRegular, Size: 12}

// Canvas is a drawing surface addressed in millimeters from the top-left
// corner of the page.
type Canvas interface {
	// SetFont selects the font for subsequent cells
	SetFont(style printing.FontStyle, size float64)
	// Cell draws a single-line text cell of size w x h at (x, y)
	Cell(x, y, w, h float64, text string, align printing.Align, border bool)
}

// Engine draws block lists. It knows nothing about invoices.
type Engine struct{}

// Draw validates the document and draws every block in order.
func (e Engine) Draw(c Canvas, doc *printing.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	for i := range doc.Blocks {
		e.DrawBlock(c, &doc.Blocks[i])
	}
	return nil
}

// DrawBlock draws one block without validating it.
func (e Engine) DrawBlock(c Canvas, b *printing.Block) {
	if b.Table != nil {
		e.drawTable(c, b)
		return
	}
	for i, line := range b.Lines {
		c.SetFont(fontOrDefault(line.Font))
		y := b.Position.Y + float64(i)*b.LineHeight
		c.Cell(b.Position.X, y, b.Width, b.LineHeight, line.Text, alignOrDefault(line.Align), false)
	}
}

func (e Engine) drawTable(c Canvas, b *printing.Block) {
	t := b.Table
	y := b.Position.Y
	if t.ShowHeader {
		c.SetFont(fontOrDefault(t.HeaderFont))
		x := b.Position.X
		for _, col := range t.Columns {
			c.Cell(x, y, col.Width, b.LineHeight, col.Title, alignOrDefault(col.Align), t.Bordered)
			x += col.Width
		}
		y += b.LineHeight
	}

	c.SetFont(fontOrDefault(t.BodyFont))
	for _, row := range t.Rows {
		x := b.Position.X
		for j, col := range t.Columns {
			c.Cell(x, y, col.Width, b.LineHeight, row[j], alignOrDefault(col.Align), t.Bordered)
			x += col.Width
		}
		y += b.LineHeight
	}
}

func fontOrDefault(f printing.Font) (printing.FontStyle, float64) {
	if f.Size <= 0 {
		return f.Style, DefaultFont.Size
	}
	return f.Style, f.Size
}

func alignOrDefault(a printing.Align) printing.Align {
	if a == "" {
		return printing.AlignLeft
	}
	return a
}
