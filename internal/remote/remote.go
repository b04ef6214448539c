// Package remote is the adapter to the cloud asset manager. API mirrors the service's
// upload and admin calls one to one and returns its payloads as they are; the cloud
// host layers pagination, batching and reconciliation on top.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// API is the remote asset manager as seen by the cloud host.
type API interface {
	// Upload API (signed).
	Upload(ctx context.Context, file string, params UploadParams) (*Asset, error)
	UnsignedUpload(ctx context.Context, file, preset string, params UploadParams) (*Asset, error)
	Rename(ctx context.Context, params RenameParams) (*Asset, error)
	Destroy(ctx context.Context, params DestroyParams) (*DestroyResult, error)
	Tags(ctx context.Context, params TagsParams) (*TagsResult, error)
	CreateArchive(ctx context.Context, params ArchiveParams) (*ArchiveResult, error)

	// Admin API.
	Assets(ctx context.Context, params ListParams) (*AssetsPage, error)
	AssetsByTag(ctx context.Context, tag string, params ListParams) (*AssetsPage, error)
	AssetsByModeration(ctx context.Context, kind, status string, params ListParams) (*AssetsPage, error)
	DeleteAssets(ctx context.Context, publicIDs []string) (*DeleteAssetsResult, error)
	UpdateAsset(ctx context.Context, publicID string, params UpdateAssetParams) (*Asset, error)
	Transformations(ctx context.Context, params ListTransformationsParams) (*TransformationsPage, error)
	CreateTransformation(ctx context.Context, name, definition string) error
	UpdateTransformation(ctx context.Context, name string, params UpdateTransformationParams) error
	DeleteTransformation(ctx context.Context, name string) error
	Ping(ctx context.Context) error

	// URL renders a delivery URL. It makes no request.
	URL(publicID string, opts URLOptions) string
}

// MaxDeleteBatch is the largest number of public ids DeleteAssets accepts per call.
const MaxDeleteBatch = 100

// Asset is a resource record as the upload and admin APIs return it.
type Asset struct {
	AssetID          string       `json:"asset_id"`
	PublicID         string       `json:"public_id"`
	Version          int64        `json:"version"`
	VersionID        string       `json:"version_id"`
	Signature        string       `json:"signature"`
	Width            int          `json:"width"`
	Height           int          `json:"height"`
	Format           string       `json:"format"`
	ResourceType     string       `json:"resource_type"`
	CreatedAt        string       `json:"created_at"`
	Tags             []string     `json:"tags"`
	Bytes            int64        `json:"bytes"`
	Type             string       `json:"type"`
	ETag             string       `json:"etag"`
	Placeholder      bool         `json:"placeholder"`
	URL              string       `json:"url"`
	SecureURL        string       `json:"secure_url"`
	Overwritten      bool         `json:"overwritten"`
	Existing         bool         `json:"existing"`
	OriginalFilename string       `json:"original_filename"`
	ModerationStatus string       `json:"moderation_status"`
	Moderation       []Moderation `json:"moderation"`
	Eager            []Derived    `json:"eager"`
}

type Moderation struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

// Derived is an eager derivative reported by an upload.
type Derived struct {
	Transformation string `json:"transformation"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	URL            string `json:"url"`
	SecureURL      string `json:"secure_url"`
}

// Eager asks for a derivative at upload time.
type Eager struct {
	// Transformation is a named transformation.
	Transformation string
	Format         string
}

type UploadParams struct {
	PublicID   string
	Folder     string
	Tags       []string
	Overwrite  *bool
	Invalidate bool
	Eager      []Eager
	EagerAsync bool
	// Moderation requests a moderation queue ("manual").
	Moderation string
	// Extra is sent as-is.
	Extra map[string]string
}

type RenameParams struct {
	FromPublicID string
	ToPublicID   string
	Overwrite    bool
	Invalidate   bool
}

type DestroyParams struct {
	PublicID   string
	Invalidate bool
}

type DestroyResult struct {
	Result string `json:"result"`
}

type TagCommand string

const (
	TagAdd     TagCommand = "add"
	TagRemove  TagCommand = "remove"
	TagReplace TagCommand = "replace"
)

type TagsParams struct {
	Command   TagCommand
	Tag       string
	PublicIDs []string
}

type TagsResult struct {
	PublicIDs []string `json:"public_ids"`
}

type ArchiveParams struct {
	Tags           []string
	PublicIDs      []string
	TargetPublicID string
}

type ArchiveResult struct {
	PublicID      string `json:"public_id"`
	URL           string `json:"url"`
	SecureURL     string `json:"secure_url"`
	Bytes         int64  `json:"bytes"`
	FileCount     int    `json:"file_count"`
	ResourceCount int    `json:"resource_count"`
}

// ListParams are the paging knobs shared by the resource listings.
type ListParams struct {
	MaxResults  int
	NextCursor  string
	Tags        bool
	Moderations bool
}

type AssetsPage struct {
	Resources  []Asset `json:"resources"`
	NextCursor string  `json:"next_cursor"`
}

type DeleteAssetsResult struct {
	Deleted    map[string]string `json:"deleted"`
	Partial    bool              `json:"partial"`
	NextCursor string            `json:"next_cursor"`
}

type UpdateAssetParams struct {
	ModerationStatus string
}

type ListTransformationsParams struct {
	Named      bool
	MaxResults int
	NextCursor string
}

type Transformation struct {
	Name             string `json:"name"`
	AllowedForStrict bool   `json:"allowed_for_strict"`
	Used             bool   `json:"used"`
	Named            bool   `json:"named"`
}

type TransformationsPage struct {
	Transformations []Transformation `json:"transformations"`
	NextCursor      string           `json:"next_cursor"`
}

type UpdateTransformationParams struct {
	// UnsafeUpdate replaces the definition even if derivatives exist.
	UnsafeUpdate     string
	AllowedForStrict bool
}

type URLOptions struct {
	// Transformation is a named transformation, rendered as t_<name>.
	Transformation string
	Format         string
	Secure         bool
}

// ErrService matches every failure reported by the remote service.
var ErrService = errors.New("remote service error")

// APIError is a failure answered by the remote service.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: remote error: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: remote returned %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrService
}

// IsNotFound reports whether err is a remote 404. Without a status it falls back to
// the message.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == 0 {
		return strings.Contains(strings.ToLower(apiErr.Message), "not found")
	}
	return apiErr.StatusCode == http.StatusNotFound
}

// IsAlreadyExists reports whether err says the target public id is taken.
func IsAlreadyExists(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusConflict ||
		strings.Contains(strings.ToLower(apiErr.Message), "already exists")
}
