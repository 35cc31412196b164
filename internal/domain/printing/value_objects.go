package printing

import "github.com/erp/invoicer/internal/domain/shared"

// Margins represents the page margins in millimeters
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// NewMargins creates a new Margins value object
func NewMargins(top, right, bottom, left float64) (Margins, error) {
	if top < 0 || right < 0 || bottom < 0 || left < 0 {
		return Margins{}, shared.NewDomainError("INVALID_MARGINS", "Margins cannot be negative")
	}
	if top > 100 || right > 100 || bottom > 100 || left > 100 {
		return Margins{}, shared.NewDomainError("INVALID_MARGINS", "Margins cannot exceed 100mm")
	}
	return Margins{
		Top:    top,
		Right:  right,
		Bottom: bottom,
		Left:   left,
	}, nil
}

// DefaultMargins returns the default page margins for A4 paper
func DefaultMargins() Margins {
	return Margins{
		Top:    10,
		Right:  10,
		Bottom: 10,
		Left:   10,
	}
}

// IsZero returns true if all margins are zero
func (m Margins) IsZero() bool {
	return m.Top == 0 && m.Right == 0 && m.Bottom == 0 && m.Left == 0
}

// Page is the physical setup a document is drawn on.
type Page struct {
	Size        PaperSize   `json:"size"`
	Orientation Orientation `json:"orientation"`
	Margins     Margins     `json:"margins"`
}

// DefaultPage returns an A4 portrait page with 10mm margins.
func DefaultPage() Page {
	return Page{
		Size:        PaperSizeA4,
		Orientation: OrientationPortrait,
		Margins:     DefaultMargins(),
	}
}

// Dimensions returns the page width and height in millimeters, honoring orientation.
func (p Page) Dimensions() (width, height float64) {
	w, h := p.Size.Dimensions()
	if p.Orientation == OrientationLandscape {
		return h, w
	}
	return w, h
}

// Validate checks paper size and orientation
func (p Page) Validate() error {
	if !p.Size.IsValid() {
		return shared.NewDomainError("INVALID_PAPER_SIZE", "invalid paper size: "+string(p.Size))
	}
	if !p.Orientation.IsValid() {
		return shared.NewDomainError("INVALID_ORIENTATION", "invalid orientation: "+string(p.Orientation))
	}
	return nil
}
