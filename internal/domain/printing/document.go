package printing

import (
	"fmt"
	"strings"

	"github.com/erp/invoicer/internal/domain/shared"
)

// Position is an absolute point on the page, in millimeters from the
// top-left corner.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Font selects style and size (points) for a run of text.
type Font struct {
	Style FontStyle `json:"style"`
	Size  float64   `json:"size"`
}

// Line is one single-line text cell of a text block.
type Line struct {
	Text  string `json:"text"`
	Font  Font   `json:"font"`
	Align Align  `json:"align"`
}

// Column describes one fixed-width column of a table.
type Column struct {
	Title string  `json:"title"`
	Width float64 `json:"width"`
	Align Align   `json:"align"`
}

// Table is a grid of fixed-width cells.
type Table struct {
	Columns    []Column   `json:"columns"`
	Rows       [][]string `json:"rows"`
	ShowHeader bool       `json:"show_header"`
	Bordered   bool       `json:"bordered"`
	HeaderFont Font       `json:"header_font"`
	BodyFont   Font       `json:"body_font"`
}

// Width returns the sum of the column widths.
func (t *Table) Width() float64 {
	var w float64
	for _, c := range t.Columns {
		w += c.Width
	}
	return w
}

// RowCount returns the number of drawn rows, header included.
func (t *Table) RowCount() int {
	n := len(t.Rows)
	if t.ShowHeader {
		n++
	}
	return n
}

// HeaderText joins the column titles with sep.
func (t *Table) HeaderText(sep string) string {
	titles := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		titles[i] = c.Title
	}
	return strings.Join(titles, sep)
}

// RowText joins the cells of body row i with sep. It returns "" when i is out of range.
func (t *Table) RowText(i int, sep string) string {
	if i < 0 || i >= len(t.Rows) {
		return ""
	}
	return strings.Join(t.Rows[i], sep)
}

// Block is one positioned unit of a page. Exactly one of Lines or Table
// is set.
type Block struct {
	Label      string   `json:"label"`
	Position   Position `json:"position"`
	Width      float64  `json:"width"`
	LineHeight float64  `json:"line_height"`
	Lines      []Line   `json:"lines,omitempty"`
	Table      *Table   `json:"table,omitempty"`
}

// IsTable reports whether the block carries a table.
func (b *Block) IsTable() bool {
	return b.Table != nil
}

// Height returns the vertical extent of the block in millimeters.
func (b *Block) Height() float64 {
	if b.Table != nil {
		return float64(b.Table.RowCount()) * b.LineHeight
	}
	return float64(len(b.Lines)) * b.LineHeight
}

// Bottom returns the y coordinate just below the block.
func (b *Block) Bottom() float64 {
	return b.Position.Y + b.Height()
}

// Text returns the text lines of a text block.
func (b *Block) Text() []string {
	out := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		out[i] = l.Text
	}
	return out
}

// Validate checks that the block is drawable.
func (b *Block) Validate() error {
	if b.Label == "" {
		return layoutError("block label is required")
	}
	if b.LineHeight <= 0 {
		return layoutError(fmt.Sprintf("block %q: line height must be positive", b.Label))
	}
	if b.Position.X < 0 || b.Position.Y < 0 {
		return layoutError(fmt.Sprintf("block %q: position cannot be negative", b.Label))
	}
	if b.Table == nil && len(b.Lines) == 0 {
		return layoutError(fmt.Sprintf("block %q: has no content", b.Label))
	}
	if b.Table != nil && len(b.Lines) > 0 {
		return layoutError(fmt.Sprintf("block %q: cannot carry both lines and a table", b.Label))
	}
	if b.Table != nil {
		if len(b.Table.Columns) == 0 {
			return layoutError(fmt.Sprintf("block %q: table has no columns", b.Label))
		}
		for i, row := range b.Table.Rows {
			if len(row) != len(b.Table.Columns) {
				return layoutError(fmt.Sprintf("block %q: row %d has %d cells, want %d",
					b.Label, i, len(row), len(b.Table.Columns)))
			}
		}
		return nil
	}
	if b.Width <= 0 {
		return layoutError(fmt.Sprintf("block %q: width must be positive", b.Label))
	}
	return nil
}

// Document is everything a renderer needs to produce one page.
type Document struct {
	Title  string  `json:"title"`
	Page   Page    `json:"page"`
	Blocks []Block `json:"blocks"`
}

// Block returns the block with the given label.
func (d *Document) Block(label string) (*Block, bool) {
	for i := range d.Blocks {
		if d.Blocks[i].Label == label {
			return &d.Blocks[i], true
		}
	}
	return nil, false
}

// Validate checks the page setup and every block, and that blocks stay
// inside the page.
func (d *Document) Validate() error {
	if err := d.Page.Validate(); err != nil {
		return err
	}
	if len(d.Blocks) == 0 {
		return layoutError("document has no blocks")
	}
	width, height := d.Page.Dimensions()
	seen := make(map[string]bool, len(d.Blocks))
	for i := range d.Blocks {
		b := &d.Blocks[i]
		if err := b.Validate(); err != nil {
			return err
		}
		if seen[b.Label] {
			return layoutError(fmt.Sprintf("duplicate block label %q", b.Label))
		}
		seen[b.Label] = true

		w := b.Width
		if b.Table != nil {
			w = b.Table.Width()
		}
		if b.Position.X+w > width || b.Bottom() > height {
			return layoutError(fmt.Sprintf("block %q does not fit on the page", b.Label))
		}
	}
	return nil
}

func layoutError(msg string) error {
	return shared.NewDomainError(shared.ErrInvalidLayout.Code, msg)
}
