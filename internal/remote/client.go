package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const sharedDeliveryHost = "res.cloudinary.com"

// Config holds the account credentials and endpoints of the remote service.
type Config struct {
	CloudName  string
	APIKey     string
	APISecret  string
	APIBaseURL string
	// DeliveryURL and SecureDeliveryURL replace the shared delivery host when they
	// point anywhere else.
	DeliveryURL       string
	SecureDeliveryURL string
	// HTTPClient overrides the default instrumented client.
	HTTPClient *http.Client
}

// Client talks to Cloudinary through its Go SDK. It is safe for concurrent use.
type Client struct {
	cfg Config
	cld *cloudinary.Cloudinary
}

var _ API = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("remote: cloud name, api key and api secret are required")
	}

	conf, err := config.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	if prefix := uploadPrefix(cfg.APIBaseURL); prefix != "" {
		conf.API.UploadPrefix = prefix
	}
	conf.URL.ForceVersion = false
	conf.URL.Analytics = false
	if host := deliveryHost(cfg.SecureDeliveryURL); host != "" {
		conf.URL.SecureDistribution = host
	}
	if host := deliveryHost(cfg.DeliveryURL); host != "" {
		conf.URL.CName = host
	}

	cld, err := cloudinary.NewFromConfiguration(*conf)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	client := *hc
	client.Transport = statusTransport{next: next}
	cld.Upload.Client = client
	cld.Admin.Client = client

	return &Client{cfg: cfg, cld: cld}, nil
}

// CloudName returns the configured account name.
func (c *Client) CloudName() string { return c.cfg.CloudName }

func (c *Client) Upload(ctx context.Context, file string, params UploadParams) (*Asset, error) {
	up, err := uploadParams(params)
	if err != nil {
		return nil, err
	}
	var out Asset
	err = call(ctx, "upload", func(ctx context.Context) (any, error) {
		return c.cld.Upload.Upload(ctx, uploadSource(file), up)
	}, &out)
	if err != nil {
		return nil, err
	}
	return moderated(&out, params), nil
}

func (c *Client) UnsignedUpload(ctx context.Context, file, preset string, params UploadParams) (*Asset, error) {
	up, err := uploadParams(params)
	if err != nil {
		return nil, err
	}
	var out Asset
	err = call(ctx, "unsigned_upload", func(ctx context.Context) (any, error) {
		return c.cld.Upload.UnsignedUpload(ctx, uploadSource(file), preset, up)
	}, &out)
	if err != nil {
		return nil, err
	}
	return moderated(&out, params), nil
}

func (c *Client) Rename(ctx context.Context, params RenameParams) (*Asset, error) {
	var out Asset
	err := call(ctx, "rename", func(ctx context.Context) (any, error) {
		return c.cld.Upload.Rename(ctx, uploader.RenameParams{
			FromPublicID: params.FromPublicID,
			ToPublicID:   params.ToPublicID,
			Overwrite:    api.Bool(params.Overwrite),
			Invalidate:   api.Bool(params.Invalidate),
		})
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Destroy(ctx context.Context, params DestroyParams) (*DestroyResult, error) {
	var out DestroyResult
	err := call(ctx, "destroy", func(ctx context.Context) (any, error) {
		return c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
			PublicID:   params.PublicID,
			Invalidate: api.Bool(params.Invalidate),
		})
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Tags(ctx context.Context, params TagsParams) (*TagsResult, error) {
	var fn func(context.Context) (any, error)
	switch params.Command {
	case TagAdd:
		fn = func(ctx context.Context) (any, error) {
			return c.cld.Upload.AddTag(ctx, uploader.AddTagParams{Tag: params.Tag, PublicIDs: params.PublicIDs})
		}
	case TagRemove:
		fn = func(ctx context.Context) (any, error) {
			return c.cld.Upload.RemoveTag(ctx, uploader.RemoveTagParams{Tag: params.Tag, PublicIDs: params.PublicIDs})
		}
	case TagReplace:
		fn = func(ctx context.Context) (any, error) {
			return c.cld.Upload.ReplaceTag(ctx, uploader.ReplaceTagParams{Tag: params.Tag, PublicIDs: params.PublicIDs})
		}
	default:
		return nil, fmt.Errorf("tags: unknown command %q", params.Command)
	}

	var out TagsResult
	if err := call(ctx, "tags", fn, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateArchive(ctx context.Context, params ArchiveParams) (*ArchiveResult, error) {
	var out ArchiveResult
	err := call(ctx, "create_archive", func(ctx context.Context) (any, error) {
		return c.cld.Upload.CreateZip(ctx, uploader.CreateArchiveParams{
			Tags:           params.Tags,
			PublicIDs:      params.PublicIDs,
			TargetPublicID: params.TargetPublicID,
		})
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Assets(ctx context.Context, params ListParams) (*AssetsPage, error) {
	var p admin.AssetsParams
	if err := listing(&p, params.knobs()); err != nil {
		return nil, err
	}
	var out AssetsPage
	err := call(ctx, "assets", func(ctx context.Context) (any, error) {
		return c.cld.Admin.Assets(ctx, p)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AssetsByTag(ctx context.Context, tag string, params ListParams) (*AssetsPage, error) {
	var p admin.AssetsByTagParams
	if err := listing(&p, params.knobs()); err != nil {
		return nil, err
	}
	p.Tag = tag
	var out AssetsPage
	err := call(ctx, "assets_by_tag", func(ctx context.Context) (any, error) {
		return c.cld.Admin.AssetsByTag(ctx, p)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AssetsByModeration(ctx context.Context, kind, status string, params ListParams) (*AssetsPage, error) {
	var p admin.AssetsByModerationParams
	if err := listing(&p, params.knobs()); err != nil {
		return nil, err
	}
	p.Kind = kind
	p.Status = api.ModerationStatus(status)
	var out AssetsPage
	err := call(ctx, "assets_by_moderation", func(ctx context.Context) (any, error) {
		return c.cld.Admin.AssetsByModeration(ctx, p)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAssets(ctx context.Context, publicIDs []string) (*DeleteAssetsResult, error) {
	if len(publicIDs) > MaxDeleteBatch {
		return nil, fmt.Errorf("delete_assets: %d public ids exceeds the limit of %d", len(publicIDs), MaxDeleteBatch)
	}
	var out DeleteAssetsResult
	err := call(ctx, "delete_assets", func(ctx context.Context) (any, error) {
		return c.cld.Admin.DeleteAssets(ctx, admin.DeleteAssetsParams{PublicIDs: publicIDs})
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAsset(ctx context.Context, publicID string, params UpdateAssetParams) (*Asset, error) {
	var out Asset
	err := call(ctx, "update", func(ctx context.Context) (any, error) {
		return c.cld.Admin.UpdateAsset(ctx, admin.UpdateAssetParams{
			PublicID:         publicID,
			ModerationStatus: api.ModerationStatus(params.ModerationStatus),
		})
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Transformations(ctx context.Context, params ListTransformationsParams) (*TransformationsPage, error) {
	knobs := ListParams{MaxResults: params.MaxResults, NextCursor: params.NextCursor}.knobs()
	if params.Named {
		knobs["named"] = true
	}
	var p admin.ListTransformationsParams
	if err := listing(&p, knobs); err != nil {
		return nil, err
	}

	var out TransformationsPage
	err := call(ctx, "transformations", func(ctx context.Context) (any, error) {
		return c.cld.Admin.ListTransformations(ctx, p)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTransformation(ctx context.Context, name, definition string) error {
	return call(ctx, "create_transformation", func(ctx context.Context) (any, error) {
		return c.cld.Admin.CreateTransformation(ctx, admin.CreateTransformationParams{
			Name:           name,
			Transformation: definition,
		})
	}, nil)
}

func (c *Client) UpdateTransformation(ctx context.Context, name string, params UpdateTransformationParams) error {
	return call(ctx, "update_transformation", func(ctx context.Context) (any, error) {
		return c.cld.Admin.UpdateTransformation(ctx, admin.UpdateTransformationParams{
			Transformation:   name,
			UnsafeUpdate:     params.UnsafeUpdate,
			AllowedForStrict: api.Bool(params.AllowedForStrict),
		})
	}, nil)
}

func (c *Client) DeleteTransformation(ctx context.Context, name string) error {
	return call(ctx, "delete_transformation", func(ctx context.Context) (any, error) {
		return c.cld.Admin.DeleteTransformation(ctx, admin.DeleteTransformationParams{Transformation: name})
	}, nil)
}

func (c *Client) Ping(ctx context.Context) error {
	return call(ctx, "ping", func(ctx context.Context) (any, error) {
		return c.cld.Admin.Ping(ctx)
	}, nil)
}

// URL renders the delivery URL through the SDK. A public id the SDK refuses renders
// as "".
func (c *Client) URL(publicID string, opts URLOptions) string {
	id := publicID
	if opts.Format != "" {
		id += "." + opts.Format
	}
	img, err := c.cld.Image(id)
	if err != nil {
		return ""
	}
	img.Config.URL.Secure = opts.Secure
	if opts.Transformation != "" {
		img.Transformation = "t_" + opts.Transformation
	}
	out, err := img.String()
	if err != nil {
		return ""
	}
	return out
}

type statusKey struct{}

// statusTransport stores the last response status in the *atomic.Int32 carried by
// the request context. The SDK decodes error bodies without surfacing the status.
type statusTransport struct {
	next http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if rec, ok := req.Context().Value(statusKey{}).(*atomic.Int32); ok && resp != nil {
		rec.Store(int32(resp.StatusCode))
	}
	return resp, err
}

// call runs one SDK request and decodes its result into out, which may be nil.
// The SDK reports API failures as a filled error field on a nil-error result; call
// turns those into *APIError.
func call(ctx context.Context, op string, fn func(context.Context) (any, error), out any) error {
	var status atomic.Int32
	res, err := fn(context.WithValue(ctx, statusKey{}, &status))
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrService, err)
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("%s: encode result: %w", op, err)
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)

	code := int(status.Load())
	if envelope.Error.Message != "" || code >= http.StatusMultipleChoices {
		msg := envelope.Error.Message
		if msg == "" {
			msg = http.StatusText(code)
		}
		return &APIError{Op: op, StatusCode: code, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode result: %w: %w", op, ErrService, err)
	}
	if a, ok := out.(*Asset); ok && strings.HasPrefix(a.CreatedAt, "0001-01-01") {
		a.CreatedAt = ""
	}
	return nil
}

// listing fills SDK listing params by their REST parameter names.
func listing(dst any, knobs map[string]any) error {
	data, err := json.Marshal(knobs)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("listing params: %w", err)
	}
	return nil
}

func (p ListParams) knobs() map[string]any {
	knobs := map[string]any{}
	if p.MaxResults > 0 {
		knobs["max_results"] = p.MaxResults
	}
	if p.NextCursor != "" {
		knobs["next_cursor"] = p.NextCursor
	}
	if p.Tags {
		knobs["tags"] = true
	}
	if p.Moderations {
		knobs["moderations"] = true
	}
	return knobs
}

// uploadParams applies Extra by REST name first, so the typed fields win.
func uploadParams(p UploadParams) (uploader.UploadParams, error) {
	var up uploader.UploadParams
	if len(p.Extra) > 0 {
		extra := make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			switch v {
			case "true":
				extra[k] = true
			case "false":
				extra[k] = false
			default:
				if n, err := strconv.Atoi(v); err == nil {
					extra[k] = n
				} else {
					extra[k] = v
				}
			}
		}
		data, err := json.Marshal(extra)
		if err != nil {
			return up, err
		}
		if err := json.Unmarshal(data, &up); err != nil {
			return up, fmt.Errorf("upload: unsupported parameter: %w", err)
		}
	}

	up.PublicID = p.PublicID
	up.Folder = p.Folder
	if len(p.Tags) > 0 {
		up.Tags = p.Tags
	}
	up.Overwrite = p.Overwrite
	if p.Invalidate {
		up.Invalidate = api.Bool(true)
	}
	if len(p.Eager) > 0 {
		steps := make([]string, 0, len(p.Eager))
		for _, e := range p.Eager {
			step := "t_" + e.Transformation
			if e.Format != "" {
				step += "/" + e.Format
			}
			steps = append(steps, step)
		}
		up.Eager = strings.Join(steps, "|")
	}
	if p.EagerAsync {
		up.EagerAsync = api.Bool(true)
	}
	if p.Moderation != "" {
		up.Moderation = p.Moderation
	}
	return up, nil
}

// moderated records the queue an upload entered when the result does not echo it.
func moderated(a *Asset, p UploadParams) *Asset {
	if p.Moderation != "" && a.ModerationStatus == "" && len(a.Moderation) == 0 {
		a.Moderation = []Moderation{{Kind: p.Moderation, Status: "pending"}}
	}
	return a
}

// uploadSource passes local files, URLs and data URIs through and wraps bare base64
// in a data URI.
func uploadSource(file string) string {
	if strings.Contains(file, "://") || strings.HasPrefix(file, "data:") {
		return file
	}
	if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
		return file
	}
	payload := strings.Join(strings.Fields(file), "")
	contentType := "image/png"
	if raw, err := base64.StdEncoding.DecodeString(payload); err == nil {
		contentType = http.DetectContentType(raw)
	}
	return "data:" + contentType + ";base64," + payload
}

// uploadPrefix strips the API version, which the SDK appends itself.
func uploadPrefix(base string) string {
	return strings.TrimSuffix(strings.TrimRight(base, "/"), "/v1_1")
}

// deliveryHost returns the host of a custom delivery URL, or "" for the shared one.
func deliveryHost(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Host == sharedDeliveryHost {
		return ""
	}
	return u.Host
}
