package model

import (
	"maps"
	"slices"
)

// Transformation is a named resize/crop recipe from configuration.
// Width and Height of zero mean "not set"; a definition with neither is a
// pass-through (re-encode or crop-only).
type Transformation struct {
	Width        int    `yaml:"width,omitempty" json:"width,omitempty"`
	Height       int    `yaml:"height,omitempty" json:"height,omitempty"`
	Crop         string `yaml:"crop,omitempty" json:"crop,omitempty"`
	Gravity      string `yaml:"gravity,omitempty" json:"gravity,omitempty"`
	DefaultImage string `yaml:"default_image,omitempty" json:"default_image,omitempty"`

	// Extra holds backend-specific keys (effect, quality, radius, ...).
	Extra map[string]any `yaml:",inline" json:"extra,omitempty"`
}

// HasSize reports whether the definition asks for a resize at all.
func (t Transformation) HasSize() bool {
	return t.Width > 0 || t.Height > 0
}

// Transformations maps a transformation name to its definition.
type Transformations map[string]Transformation

// Names returns the transformation names in ascending order.
func (ts Transformations) Names() []string {
	return slices.Sorted(maps.Keys(ts))
}

// Clone returns a copy that shares no maps with ts.
func (ts Transformations) Clone() Transformations {
	if ts == nil {
		return Transformations{}
	}
	out := make(Transformations, len(ts))
	for name, t := range ts {
		t.Extra = maps.Clone(t.Extra)
		out[name] = t
	}
	return out
}

// DefaultTransformations is the table used when no transformation file is configured.
func DefaultTransformations() Transformations {
	return Transformations{
		"thumbnail": {
			Width:        100,
			Height:       100,
			Crop:         "thumb",
			Gravity:      "face:center",
			DefaultImage: "placeholder.png",
		},
	}
}
