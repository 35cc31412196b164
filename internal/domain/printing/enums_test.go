package printing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaperSize_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		paperSize PaperSize
		expected  bool
	}{
		{"valid A4", PaperSizeA4, true},
		{"unsupported A5", PaperSize("A5"), false},
		{"unsupported LETTER", PaperSize("LETTER"), false},
		{"invalid empty", PaperSize(""), false},
		{"invalid lowercase", PaperSize("a4"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.paperSize.IsValid())
		})
	}
}

func TestPaperSize_Dimensions(t *testing.T) {
	w, h := PaperSizeA4.Dimensions()
	assert.Equal(t, 210.0, w)
	assert.Equal(t, 297.0, h)
	assert.Equal(t, "A4", PaperSizeA4.String())
}

func TestOrientation_IsValid(t *testing.T) {
	assert.True(t, OrientationPortrait.IsValid())
	assert.True(t, OrientationLandscape.IsValid())
	assert.False(t, Orientation("").IsValid())
	assert.Equal(t, "PORTRAIT", OrientationPortrait.String())
}

func TestAlignAndFontStyle_IsValid(t *testing.T) {
	for _, a := range []Align{AlignLeft, AlignCenter, AlignRight} {
		assert.True(t, a.IsValid(), string(a))
	}
	assert.False(t, Align("J").IsValid())

	assert.True(t, FontRegular.IsValid())
	assert.True(t, FontBold.IsValid())
	assert.False(t, FontStyle("I").IsValid())
}
