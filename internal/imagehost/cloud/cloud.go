// Package cloud keeps images in the remote asset manager. Listings are paginated with
// remote.Paginate, bulk deletes are batched, and named transformations are reconciled
// against configuration.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"

	"siteimage/internal/imagehost"
	"siteimage/internal/imageproc"
	"siteimage/internal/model"
	"siteimage/internal/remote"
)

// Name is the provider key of this backend.
const Name = "cloudinary"

const (
	assetPageSize          = 500
	transformationPageSize = 100

	moderationKind = "manual"
)

type Config struct {
	// Placeholder is the public id served for blank ids.
	Placeholder string
	// PlaceholderSource, when set, is uploaded as Placeholder by BuildTransformations.
	PlaceholderSource string
	Transformations   model.Transformations
	// Secure renders https delivery URLs.
	Secure bool
}

// Host is the remote backend.
type Host struct {
	imagehost.Base

	api               remote.API
	placeholderSource string
	secure            bool
	maxPages          int
	log               *slog.Logger
}

var (
	_ imagehost.Host   = (*Host)(nil)
	_ imagehost.Pinger = (*Host)(nil)
)

type Option func(*Host)

func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithMaxPages bounds every listing.
func WithMaxPages(n int) Option {
	return func(h *Host) { h.maxPages = n }
}

func New(api remote.API, cfg Config, opts ...Option) *Host {
	h := &Host{
		Base:              imagehost.NewBase(cfg.Transformations, cfg.Placeholder),
		api:               api,
		placeholderSource: cfg.PlaceholderSource,
		secure:            cfg.Secure,
		maxPages:          remote.DefaultMaxPages,
		log:               slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("component", "cloud_host")
	return h
}

func (h *Host) Name() string { return Name }

func (h *Host) Ping(ctx context.Context) error {
	return h.api.Ping(ctx)
}

// Get renders a delivery URL. Only a blank id is replaced by the placeholder; whether
// the asset exists is left to the remote service.
func (h *Host) Get(ctx context.Context, publicID, transformation string, format model.Format) (string, error) {
	if transformation != "" {
		if _, err := h.Transformation(transformation); err != nil {
			return "", err
		}
	}
	if format == "" {
		format = model.DefaultFormat
	}
	id := h.ResolvePublicID(publicID)
	if id == "" {
		return "", nil
	}
	return h.api.URL(id, remote.URLOptions{
		Transformation: transformation,
		Format:         format.String(),
		Secure:         h.secure,
	}), nil
}

func (h *Host) GetPlaceholder(ctx context.Context, transformation string) (string, error) {
	return h.Get(ctx, "", transformation, model.DefaultFormat)
}

func (h *Host) Upload(ctx context.Context, source string, opts imagehost.UploadOptions) (*model.UploadResponse, error) {
	params, err := h.uploadParams(source, opts)
	if err != nil {
		return nil, err
	}
	return h.upload(ctx, source, params)
}

// UploadForModeration puts the asset in the manual moderation queue.
func (h *Host) UploadForModeration(ctx context.Context, source string, opts imagehost.UploadOptions) (*model.UploadResponse, error) {
	params, err := h.uploadParams(source, opts)
	if err != nil {
		return nil, err
	}
	params.Moderation = moderationKind
	return h.upload(ctx, source, params)
}

func (h *Host) upload(ctx context.Context, source string, params remote.UploadParams) (*model.UploadResponse, error) {
	asset, err := h.api.Upload(ctx, source, params)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	resp := toResponse(asset)
	h.log.Info("image uploaded", "event", "upload", "public_id", resp.PublicID, "eager", len(params.Eager))
	return &resp, nil
}

// uploadParams derives the public id from the name (or the source basename), validates
// eager transformations and always states overwrite explicitly.
func (h *Host) uploadParams(source string, opts imagehost.UploadOptions) (remote.UploadParams, error) {
	if err := h.ValidateTransformations(opts.Transformations); err != nil {
		return remote.UploadParams{}, err
	}

	name := opts.Name
	if name == "" && !imageproc.IsInline(source) {
		name = imagehost.Basename(source)
	}
	base := imagehost.Basename(name)
	publicID := imagehost.Sanitize(strings.TrimSuffix(base, path.Ext(base)))

	overwrite := opts.Overwrite
	params := remote.UploadParams{
		PublicID:  publicID,
		Folder:    opts.Folder,
		Tags:      opts.Tags,
		Overwrite: &overwrite,
		Extra:     opts.Params,
	}
	for _, t := range opts.Transformations {
		params.Eager = append(params.Eager, remote.Eager{Transformation: t})
	}
	params.EagerAsync = len(params.Eager) > 0
	return params, nil
}

func (h *Host) Approve(ctx context.Context, publicID string) error {
	return h.moderate(ctx, publicID, model.ModerationApproved)
}

func (h *Host) Reject(ctx context.Context, publicID string) error {
	return h.moderate(ctx, publicID, model.ModerationRejected)
}

func (h *Host) moderate(ctx context.Context, publicID, status string) error {
	if _, err := h.api.UpdateAsset(ctx, publicID, remote.UpdateAssetParams{ModerationStatus: status}); err != nil {
		return fmt.Errorf("set moderation status of %s to %s: %w", publicID, status, err)
	}
	return nil
}

// Destroy reports false when the remote service had nothing to delete.
func (h *Host) Destroy(ctx context.Context, publicID string) (bool, error) {
	res, err := h.api.Destroy(ctx, remote.DestroyParams{PublicID: publicID, Invalidate: true})
	if err != nil {
		if remote.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("destroy %s: %w", publicID, err)
	}
	return res.Result == "ok", nil
}

// DestroyAll collects the ids first, then deletes them in batches of remote.MaxDeleteBatch.
// The first failing batch stops the run.
func (h *Host) DestroyAll(ctx context.Context, tag string) error {
	ids, err := h.publicIDs(ctx, tag)
	if err != nil {
		return err
	}
	for batch := range slices.Chunk(ids, remote.MaxDeleteBatch) {
		if _, err := h.api.DeleteAssets(ctx, batch); err != nil {
			return fmt.Errorf("delete assets: %w", err)
		}
	}
	h.log.Info("images destroyed", "event", "destroy_all", "tag", tag, "count", len(ids))
	return nil
}

func (h *Host) Tagged(ctx context.Context, tag string) ([]string, error) {
	return h.publicIDs(ctx, tag)
}

func (h *Host) publicIDs(ctx context.Context, tag string) ([]string, error) {
	assets, err := remote.Collect(h.assets(ctx, tag, false))
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	ids := make([]string, 0, len(assets))
	for _, asset := range assets {
		ids = append(ids, asset.PublicID)
	}
	return ids, nil
}

// Rename sanitizes the new id the way uploads do before asking the remote service.
func (h *Host) Rename(ctx context.Context, publicID, newPublicID string, overwrite bool) (*model.UploadResponse, error) {
	target := imagehost.Sanitize(newPublicID)
	if target == "" {
		return nil, fmt.Errorf("%w: invalid public id %q", imagehost.ErrBadRequest, newPublicID)
	}
	asset, err := h.api.Rename(ctx, remote.RenameParams{
		FromPublicID: publicID,
		ToPublicID:   target,
		Overwrite:    overwrite,
		Invalidate:   true,
	})
	switch {
	case err == nil:
	case remote.IsAlreadyExists(err):
		return nil, fmt.Errorf("%w: %w", imagehost.ErrPreconditionFailed, err)
	case remote.IsNotFound(err):
		return nil, fmt.Errorf("%w: %w", imagehost.ErrBadRequest, err)
	default:
		return nil, fmt.Errorf("rename %s: %w", publicID, err)
	}
	resp := toResponse(asset)
	return &resp, nil
}

func (h *Host) AllAssets(ctx context.Context, withTags bool) ([]model.UploadResponse, error) {
	out := make([]model.UploadResponse, 0)
	for asset, err := range h.assets(ctx, "", withTags) {
		if err != nil {
			return nil, fmt.Errorf("list assets: %w", err)
		}
		resp := toResponse(&asset)
		if !withTags {
			resp.Tags = nil
		} else if resp.Tags == nil {
			resp.Tags = []string{}
		}
		out = append(out, resp)
	}
	return out, nil
}

// assets lists every asset, or the ones carrying tag.
func (h *Host) assets(ctx context.Context, tag string, withTags bool) iter.Seq2[remote.Asset, error] {
	fetch := func(ctx context.Context, cursor string) (remote.Page[remote.Asset], error) {
		params := remote.ListParams{MaxResults: assetPageSize, NextCursor: cursor, Tags: withTags}
		var (
			page *remote.AssetsPage
			err  error
		)
		if tag == "" {
			page, err = h.api.Assets(ctx, params)
		} else {
			page, err = h.api.AssetsByTag(ctx, tag, params)
		}
		if err != nil {
			return remote.Page[remote.Asset]{}, err
		}
		return remote.Page[remote.Asset]{Items: page.Resources, NextCursor: page.NextCursor}, nil
	}
	return remote.Paginate(ctx, fetch, remote.MaxPages(h.maxPages))
}

// liveTransformations lists the named transformations stored remotely, without the t_ prefix.
func (h *Host) liveTransformations(ctx context.Context) ([]string, error) {
	fetch := func(ctx context.Context, cursor string) (remote.Page[remote.Transformation], error) {
		page, err := h.api.Transformations(ctx, remote.ListTransformationsParams{
			Named:      true,
			MaxResults: transformationPageSize,
			NextCursor: cursor,
		})
		if err != nil {
			return remote.Page[remote.Transformation]{}, err
		}
		return remote.Page[remote.Transformation]{Items: page.Transformations, NextCursor: page.NextCursor}, nil
	}

	live, err := remote.Collect(remote.Paginate(ctx, fetch, remote.MaxPages(h.maxPages)))
	if err != nil {
		return nil, fmt.Errorf("list transformations: %w", err)
	}
	names := make([]string, 0, len(live))
	for _, t := range live {
		names = append(names, strings.TrimPrefix(t.Name, "t_"))
	}
	return names, nil
}

// BuildTransformations uploads the placeholder source, then makes the remote named
// transformations match configuration: every configured one is updated, or created when
// the update fails, and live ones no longer configured are deleted. Delete failures are
// logged and skipped.
func (h *Host) BuildTransformations(ctx context.Context) error {
	if err := h.uploadPlaceholder(ctx); err != nil {
		return err
	}

	live, err := h.liveTransformations(ctx)
	if err != nil {
		return err
	}

	configured := h.GetTransformations()
	for _, name := range configured.Names() {
		definition := Definition(configured[name])
		err := h.api.UpdateTransformation(ctx, name, remote.UpdateTransformationParams{
			UnsafeUpdate:     definition,
			AllowedForStrict: true,
		})
		if err == nil {
			h.log.Debug("transformation updated", "event", "transformation_update", "name", name)
			continue
		}
		if cerr := h.api.CreateTransformation(ctx, name, definition); cerr != nil {
			return fmt.Errorf("create transformation %s: %w", name, errors.Join(cerr, err))
		}
		h.log.Info("transformation created", "event", "transformation_create", "name", name)
	}

	for _, name := range live {
		if _, ok := configured[name]; ok {
			continue
		}
		if err := h.api.DeleteTransformation(ctx, name); err != nil {
			h.log.Warn("transformation not deleted", "event", "transformation_delete_failed", "name", name, "error", err)
			continue
		}
		h.log.Info("transformation deleted", "event", "transformation_delete", "name", name)
	}
	return nil
}

func (h *Host) uploadPlaceholder(ctx context.Context) error {
	src := h.placeholderSource
	if src == "" || h.Placeholder() == "" {
		return nil
	}
	if !strings.Contains(src, "://") && !imageproc.IsInline(src) {
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("%w: placeholder source %s: %v", imagehost.ErrPreconditionFailed, src, err)
		}
	}

	overwrite := true
	if _, err := h.api.Upload(ctx, src, remote.UploadParams{PublicID: h.Placeholder(), Overwrite: &overwrite, Invalidate: true}); err != nil {
		return fmt.Errorf("upload placeholder: %w", err)
	}
	return nil
}

// toResponse maps a remote asset record field by field.
func toResponse(a *remote.Asset) model.UploadResponse {
	status := a.ModerationStatus
	if status == "" && len(a.Moderation) > 0 {
		status = a.Moderation[len(a.Moderation)-1].Status
	}
	return model.UploadResponse{
		AssetID:          a.AssetID,
		PublicID:         a.PublicID,
		Version:          a.Version,
		Width:            model.Dimension(a.Width),
		Height:           model.Dimension(a.Height),
		Format:           a.Format,
		ResourceType:     a.ResourceType,
		CreatedAt:        a.CreatedAt,
		Bytes:            a.Bytes,
		Type:             a.Type,
		ETag:             a.ETag,
		URL:              a.URL,
		SecureURL:        a.SecureURL,
		Tags:             a.Tags,
		Overwritten:      a.Overwritten,
		OriginalFilename: a.OriginalFilename,
		ModerationStatus: status,
	}
}
