package imagehost

import (
	"fmt"
	"path"
	"strings"

	"siteimage/internal/model"
)

// Base holds the configuration every backend shares. Backends embed it.
// It is immutable after NewBase and safe for concurrent use.
type Base struct {
	transformations model.Transformations
	placeholder     string
}

// NewBase copies transformations so later changes to the caller's map are not seen.
// placeholder is a file path for the local backend and a public id for remote ones.
func NewBase(transformations model.Transformations, placeholder string) Base {
	return Base{
		transformations: transformations.Clone(),
		placeholder:     placeholder,
	}
}

// GetTransformations returns a copy of the configured transformation table.
func (b Base) GetTransformations() model.Transformations {
	return b.transformations.Clone()
}

// Transformation looks up a definition by name.
func (b Base) Transformation(name string) (model.Transformation, error) {
	t, ok := b.transformations[name]
	if !ok {
		return model.Transformation{}, fmt.Errorf("%w: unknown transformation %q", ErrBadRequest, name)
	}
	return t, nil
}

// ValidateTransformations checks that every name is configured.
func (b Base) ValidateTransformations(names []string) error {
	for _, name := range names {
		if _, err := b.Transformation(name); err != nil {
			return err
		}
	}
	return nil
}

// Placeholder returns the configured placeholder reference.
func (b Base) Placeholder() string {
	return b.placeholder
}

// ResolvePublicID substitutes the placeholder for a blank id.
func (b Base) ResolvePublicID(publicID string) string {
	if strings.TrimSpace(publicID) == "" {
		return b.placeholder
	}
	return publicID
}

// Sanitize is the canonical public id normalization: lower-case, then drop every
// character outside [a-z0-9.-].
func Sanitize(name string) string {
	name = strings.ToLower(name)
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Basename returns the last element of a path or URL, without query or fragment.
func Basename(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 && strings.Contains(source, "://") {
		source = source[:i]
	}
	source = strings.ReplaceAll(source, "\\", "/")
	base := path.Base(source)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
