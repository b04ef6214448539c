// Package imagehost defines the operation set every image backend implements, plus the
// logic the backends share: public id sanitization, transformation lookup and
// placeholder resolution.
package imagehost

import (
	"context"

	"siteimage/internal/model"
)

// Host stores, transforms, tags and moderates images. An empty publicID means "no image"
// and resolves to the placeholder wherever a URL is produced.
type Host interface {
	// Name identifies the backend ("local", "cloudinary").
	Name() string

	// Get returns a URL for publicID rendered with the named transformation ("" for none).
	// Identifiers that do not resolve fall back to the placeholder. The only error it
	// returns for a well-formed call is ErrBadRequest for an unknown transformation.
	Get(ctx context.Context, publicID, transformation string, format model.Format) (string, error)

	// Upload stores source (a file path, URL, data URI or base64 blob) under a derived
	// public id, records tags and applies eager transformations.
	Upload(ctx context.Context, source string, opts UploadOptions) (*model.UploadResponse, error)

	// UploadForModeration uploads source and marks it as pending review.
	UploadForModeration(ctx context.Context, source string, opts UploadOptions) (*model.UploadResponse, error)

	Approve(ctx context.Context, publicID string) error
	Reject(ctx context.Context, publicID string) error

	// Destroy removes the asset and its derivatives. It reports whether the asset itself
	// was removed; destroying a missing asset is not an error.
	Destroy(ctx context.Context, publicID string) (bool, error)

	// DestroyAll removes every asset carrying tag, or everything when tag is empty.
	DestroyAll(ctx context.Context, tag string) error

	// Tagged lists the public ids carrying tag.
	Tagged(ctx context.Context, tag string) ([]string, error)

	// Rename moves an asset to a new public id. It fails with ErrBadRequest when the source
	// is missing and ErrPreconditionFailed when the destination exists and overwrite is false.
	Rename(ctx context.Context, publicID, newPublicID string, overwrite bool) (*model.UploadResponse, error)

	// AllAssets lists every stored asset. Tags are looked up only when withTags is set.
	AllAssets(ctx context.Context, withTags bool) ([]model.UploadResponse, error)

	// BuildTransformations reconciles server-side named transformations with configuration.
	BuildTransformations(ctx context.Context) error

	// GetTransformations returns the configured transformation table.
	GetTransformations() model.Transformations

	// GetPlaceholder is Get with an empty public id.
	GetPlaceholder(ctx context.Context, transformation string) (string, error)
}

// Pinger is implemented by hosts that can check their backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UploadOptions carries the optional parts of an upload.
type UploadOptions struct {
	// Folder namespaces the public id.
	Folder string
	// Name overrides the basename taken from the source.
	Name string
	Tags []string
	// Transformations are produced eagerly at upload time.
	Transformations []string
	// Overwrite replaces an existing asset with the same public id.
	Overwrite bool
	// Params are passed through to the backend untouched.
	Params map[string]string
}
