package imageproc

import (
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"siteimage/internal/model"
)

// Apply resizes img according to t. Definitions without a width or height return img
// unchanged.
//
// Crop modes follow the remote service's vocabulary: fill, lfill, thumb and crop cut the
// image to the exact box around the gravity anchor; fit, limit, pad and lpad scale it to
// fit inside the box; anything else scales to the box, keeping the aspect ratio when
// only one side is set.
func Apply(img image.Image, t model.Transformation) image.Image {
	if !t.HasSize() {
		return img
	}
	w, h := t.Width, t.Height
	bothSides := w > 0 && h > 0

	switch strings.ToLower(t.Crop) {
	case "fill", "lfill", "thumb", "crop":
		if bothSides {
			return imaging.Fill(img, w, h, Anchor(t.Gravity), imaging.Lanczos)
		}
	case "fit", "limit", "pad", "lpad", "mfit":
		if bothSides {
			return imaging.Fit(img, w, h, imaging.Lanczos)
		}
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

var anchors = map[string]imaging.Anchor{
	"center":     imaging.Center,
	"north":      imaging.Top,
	"south":      imaging.Bottom,
	"east":       imaging.Right,
	"west":       imaging.Left,
	"north_east": imaging.TopRight,
	"north_west": imaging.TopLeft,
	"south_east": imaging.BottomRight,
	"south_west": imaging.BottomLeft,
}

// Anchor maps a gravity string such as "north_west" or "face:center" to a crop anchor.
// Detection-based gravities (face, auto) fall back to their compass qualifier, or center.
func Anchor(gravity string) imaging.Anchor {
	parts := strings.Split(strings.ToLower(gravity), ":")
	for i := len(parts) - 1; i >= 0; i-- {
		if a, ok := anchors[strings.TrimSpace(parts[i])]; ok {
			return a
		}
	}
	return imaging.Center
}
