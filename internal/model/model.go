// Package model contains the image host data structures shared by every backend.
// No I/O here.
package model

import (
	"fmt"
	"strings"
)

// Format is an output encoding, named by its file extension without the dot.
type Format string

const (
	FormatJPEG Format = "jpg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tif"
)

// DefaultFormat is used by Get when the caller does not ask for one.
const DefaultFormat = FormatJPEG

// ParseFormat normalizes an extension ("JPEG", ".png", "tiff") into a Format.
// An empty string yields DefaultFormat.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	switch s {
	case "":
		return DefaultFormat, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "gif":
		return FormatGIF, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", s)
	}
}

func (f Format) String() string { return string(f) }
