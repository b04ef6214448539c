package model

// UploadResponse describes a stored image regardless of which host holds it.
// It is a derived view built right after an upload, rename or listing; the file or the
// remote catalog stays the source of truth.
//
// Width, Height and Tags are optional: nil means the value is unknown or was not requested.
type UploadResponse struct {
	AssetID          string   `json:"asset_id,omitempty"`
	PublicID         string   `json:"public_id"`
	Version          int64    `json:"version,omitempty"`
	Width            *int     `json:"width,omitempty"`
	Height           *int     `json:"height,omitempty"`
	Format           string   `json:"format"`
	ResourceType     string   `json:"resource_type"`
	CreatedAt        string   `json:"created_at"`
	Bytes            int64    `json:"bytes"`
	Type             string   `json:"type"`
	ETag             string   `json:"etag,omitempty"`
	URL              string   `json:"url"`
	SecureURL        string   `json:"secure_url"`
	Tags             []string `json:"tags,omitempty"`
	Overwritten      bool     `json:"overwritten,omitempty"`
	OriginalFilename string   `json:"original_filename,omitempty"`
	ModerationStatus string   `json:"moderation_status,omitempty"`
}

const (
	ResourceTypeImage = "image"
	ResourceTypeVideo = "video"

	// DeliveryTypeUpload marks assets stored through an upload call.
	DeliveryTypeUpload = "upload"
)

// Moderation states.
const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationRejected = "rejected"
)

// Dimension returns a pointer to v, or nil when v is not a positive size.
func Dimension(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
