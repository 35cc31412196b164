package printing

// PaperSize represents the paper size for printing. Invoice geometry is
// laid out for A4, the only size offered.
type PaperSize string

const (
	PaperSizeA4 PaperSize = "A4" // 210mm x 297mm
)

// IsValid checks if the PaperSize is a valid value
func (p PaperSize) IsValid() bool {
	return p == PaperSizeA4
}

// String returns the string representation of PaperSize
func (p PaperSize) String() string {
	return string(p)
}

// Dimensions returns the portrait paper dimensions in millimeters (width, height)
func (p PaperSize) Dimensions() (width, height float64) {
	return 210, 297
}

// Orientation represents the page orientation for printing
type Orientation string

const (
	OrientationPortrait  Orientation = "PORTRAIT"
	OrientationLandscape Orientation = "LANDSCAPE"
)

// IsValid checks if the Orientation is a valid value
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// String returns the string representation of Orientation
func (o Orientation) String() string {
	return string(o)
}

// Align is the horizontal alignment of text inside a cell.
type Align string

const (
	AlignLeft   Align = "L"
	AlignCenter Align = "C"
	AlignRight  Align = "R"
)

// IsValid checks if the Align is a valid value
func (a Align) IsValid() bool {
	switch a {
	case AlignLeft, AlignCenter, AlignRight:
		return true
	}
	return false
}

// FontStyle is the weight of a run of text.
type FontStyle string

const (
	FontRegular FontStyle = ""
	FontBold    FontStyle = "B"
)

// IsValid checks if the FontStyle is a valid value
func (s FontStyle) IsValid() bool {
	return s == FontRegular || s == FontBold
}
