package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatJPEG},
		{in: "jpg", want: FormatJPEG},
		{in: "JPEG", want: FormatJPEG},
		{in: ".png", want: FormatPNG},
		{in: "gif", want: FormatGIF},
		{in: "tiff", want: FormatTIFF},
		{in: "bmp", want: FormatBMP},
		{in: "webp", wantErr: true},
		{in: "pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransformations(t *testing.T) {
	ts := Transformations{
		"small":     {Width: 50},
		"banner":    {Width: 1200, Height: 300, Crop: "fill", Extra: map[string]any{"effect": "sepia"}},
		"grayscale": {Extra: map[string]any{"effect": "grayscale"}},
	}

	assert.Equal(t, []string{"banner", "grayscale", "small"}, ts.Names())
	assert.True(t, ts["small"].HasSize())
	assert.False(t, ts["grayscale"].HasSize())

	clone := ts.Clone()
	clone["banner"].Extra["effect"] = "blur"
	delete(clone, "small")

	assert.Equal(t, "sepia", ts["banner"].Extra["effect"])
	assert.Contains(t, ts, "small")
}

func TestDimension(t *testing.T) {
	assert.Nil(t, Dimension(0))
	assert.Nil(t, Dimension(-4))
	if d := Dimension(100); assert.NotNil(t, d) {
		assert.Equal(t, 100, *d)
	}
}

func TestDefaultTransformations(t *testing.T) {
	ts := DefaultTransformations()
	require.Contains(t, ts, "thumbnail")
	assert.Equal(t, 100, ts["thumbnail"].Width)
	assert.Equal(t, "thumb", ts["thumbnail"].Crop)
	assert.Equal(t, "face:center", ts["thumbnail"].Gravity)
}
