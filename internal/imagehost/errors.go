package imagehost

import (
	"errors"

	"siteimage/internal/imageproc"
	"siteimage/internal/remote"
)

// Error kinds. Backends wrap them with context; match with errors.Is.
var (
	// ErrBadRequest: unknown transformation, missing rename source, unusable input.
	ErrBadRequest = errors.New("bad request")
	// ErrPreconditionFailed: rename destination exists, required placeholder missing.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrRemoteService: the remote backend call failed.
	ErrRemoteService = remote.ErrService
	// ErrNotDecodable: the source is not an image.
	ErrNotDecodable = imageproc.ErrNotDecodable
)
