// Package local stores images as files under one root folder. Each transformation gets
// a subfolder holding derivatives named after the source file, and tags live in a JSON
// index next to the images.
package local

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"siteimage/internal/imagehost"
	"siteimage/internal/imageproc"
	"siteimage/internal/model"
	"siteimage/internal/repository"
	"siteimage/internal/repository/jsonfile"
)

// Name is the provider key of this backend.
const Name = "local"

// placeholderDir holds the materialized copy of a placeholder that lives outside root.
const placeholderDir = ".placeholder"

// Config describes one storage root.
type Config struct {
	// Root is the folder holding the images. It is created if missing.
	Root string
	// BaseURL is where Root is served from, e.g. "/uploads" or "https://cdn.example.com/uploads".
	BaseURL string
	// Placeholder is the path of the fallback image file.
	Placeholder     string
	Transformations model.Transformations
}

// Host is the local disk backend.
type Host struct {
	imagehost.Base

	root    string
	baseURL string
	proc    *imageproc.Processor
	tags    repository.TagRepository
	log     *slog.Logger
	now     func() time.Time
}

var (
	_ imagehost.Host   = (*Host)(nil)
	_ imagehost.Pinger = (*Host)(nil)
)

type Option func(*Host)

// WithProcessor replaces the default image processor.
func WithProcessor(p *imageproc.Processor) Option {
	return func(h *Host) { h.proc = p }
}

// WithTagRepository replaces the {root}/tags.json index.
func WithTagRepository(r repository.TagRepository) Option {
	return func(h *Host) { h.tags = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithClock sets the time source used for collision suffixes and timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Host) { h.now = now }
}

// New creates the root folder and returns a host serving it.
func New(cfg Config, opts ...Option) (*Host, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("local: root folder is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("local: resolve root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local: create root: %w", err)
	}

	placeholder := cfg.Placeholder
	if placeholder != "" {
		if placeholder, err = filepath.Abs(placeholder); err != nil {
			return nil, fmt.Errorf("local: resolve placeholder: %w", err)
		}
	}

	h := &Host{
		Base:    imagehost.NewBase(cfg.Transformations, placeholder),
		root:    root,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.proc == nil {
		h.proc = imageproc.New()
	}
	if h.tags == nil {
		h.tags = jsonfile.NewTagRepository(root)
	}
	h.log = h.log.With("component", "local_host")
	return h, nil
}

func (h *Host) Name() string { return Name }

// Root returns the absolute storage root.
func (h *Host) Root() string { return h.root }

// Ping checks that the root folder is still there.
func (h *Host) Ping(ctx context.Context) error {
	info, err := os.Stat(h.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("local: %s is not a directory", h.root)
	}
	return nil
}

func (h *Host) Get(ctx context.Context, publicID, transformation string, format model.Format) (string, error) {
	if format == "" {
		format = model.DefaultFormat
	}
	if transformation != "" {
		if _, err := h.Transformation(transformation); err != nil {
			return "", err
		}
	}

	if src, ok := h.assetPath(publicID); ok {
		u, err := h.transform(ctx, src, transformation, format)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, imageproc.ErrNotDecodable) && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		h.log.Debug("asset unusable, serving placeholder", "event", "placeholder_fallback", "public_id", publicID, "error", err)
	}
	return h.placeholderURL(ctx, transformation, format)
}

func (h *Host) GetPlaceholder(ctx context.Context, transformation string) (string, error) {
	return h.Get(ctx, "", transformation, model.DefaultFormat)
}

func (h *Host) Upload(ctx context.Context, source string, opts imagehost.UploadOptions) (*model.UploadResponse, error) {
	if err := h.ValidateTransformations(opts.Transformations); err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		if imageproc.IsInline(source) {
			return nil, fmt.Errorf("%w: a name is required for inline image data", imagehost.ErrBadRequest)
		}
		name = source
	}
	base := imagehost.Basename(name)
	filename := base
	if opts.Folder != "" {
		filename = opts.Folder + "--" + base
	}
	filename = imagehost.Sanitize(filename)

	ext := path.Ext(filename)
	if ext == "" || ext == "." {
		filename = strings.TrimSuffix(filename, ".") + ".png"
		ext = ".png"
	}
	if !safeID(filename) {
		return nil, fmt.Errorf("%w: cannot derive a file name from %q", imagehost.ErrBadRequest, name)
	}
	format, err := model.ParseFormat(ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", imagehost.ErrBadRequest, err)
	}

	img, err := h.proc.Open(ctx, source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: source %q not found", imagehost.ErrBadRequest, source)
		}
		return nil, err
	}

	overwrite := opts.Overwrite
	if v, err := strconv.ParseBool(opts.Params["overwrite"]); err == nil && v {
		overwrite = true
	}

	overwritten := false
	if exists(h.path(filename)) {
		if overwrite {
			if err := h.purgeDerivatives(filename); err != nil {
				return nil, err
			}
			overwritten = true
		} else {
			filename = h.uniqueName(filename)
		}
	}

	size, err := imageproc.Save(img, h.path(filename), format)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", filename, err)
	}
	if err := h.tags.Add(ctx, filename, opts.Tags); err != nil {
		return nil, fmt.Errorf("tag %s: %w", filename, err)
	}

	for _, tn := range opts.Transformations {
		t, _ := h.Transformation(tn)
		if _, err := h.derive(img, t, tn, filename, format); err != nil {
			return nil, fmt.Errorf("eager %s: %w", tn, err)
		}
	}

	bounds := img.Bounds()
	u := h.url(filename)
	resp := &model.UploadResponse{
		PublicID:         filename,
		Version:          h.now().Unix(),
		Width:            model.Dimension(bounds.Dx()),
		Height:           model.Dimension(bounds.Dy()),
		Format:           format.String(),
		ResourceType:     model.ResourceTypeImage,
		CreatedAt:        h.now().UTC().Format(time.RFC3339),
		Bytes:            size,
		Type:             model.DeliveryTypeUpload,
		URL:              u,
		SecureURL:        u,
		Overwritten:      overwritten,
		OriginalFilename: strings.TrimSuffix(base, path.Ext(base)),
	}
	if len(opts.Tags) > 0 {
		if resp.Tags, err = h.tags.TagsFor(ctx, filename); err != nil {
			return nil, err
		}
	}

	h.log.Info("image uploaded", "event", "upload", "public_id", filename, "bytes", size, "overwritten", overwritten)
	return resp, nil
}

// UploadForModeration stores the image like Upload. Local files have no review gate, so
// the status is only reported.
func (h *Host) UploadForModeration(ctx context.Context, source string, opts imagehost.UploadOptions) (*model.UploadResponse, error) {
	resp, err := h.Upload(ctx, source, opts)
	if err != nil {
		return nil, err
	}
	resp.ModerationStatus = model.ModerationPending
	return resp, nil
}

// Approve is a no-op: the file is already in place.
func (h *Host) Approve(ctx context.Context, publicID string) error {
	return nil
}

func (h *Host) Reject(ctx context.Context, publicID string) error {
	_, err := h.Destroy(ctx, publicID)
	return err
}

func (h *Host) Destroy(ctx context.Context, publicID string) (bool, error) {
	if !safeID(publicID) {
		return false, nil
	}

	removed := true
	if err := os.Remove(h.path(publicID)); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("remove %s: %w", publicID, err)
		}
		removed = false
	}
	if err := h.purgeDerivatives(publicID); err != nil {
		return removed, err
	}
	if err := h.tags.Remove(ctx, publicID); err != nil {
		return removed, fmt.Errorf("untag %s: %w", publicID, err)
	}
	return removed, nil
}

func (h *Host) DestroyAll(ctx context.Context, tag string) error {
	if tag != "" {
		ids, err := h.tags.Tagged(ctx, tag)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := h.Destroy(ctx, id); err != nil {
				return err
			}
		}
		h.log.Info("tagged images destroyed", "event", "destroy_all", "tag", tag, "count", len(ids))
		return nil
	}

	entries, err := os.ReadDir(h.root)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read root: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(h.root, e.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", e.Name(), err)
		}
	}
	if err := h.tags.Clear(ctx); err != nil {
		return err
	}
	h.log.Info("storage root emptied", "event", "destroy_all", "count", len(entries))
	return nil
}

func (h *Host) Tagged(ctx context.Context, tag string) ([]string, error) {
	return h.tags.Tagged(ctx, tag)
}

func (h *Host) Rename(ctx context.Context, publicID, newPublicID string, overwrite bool) (*model.UploadResponse, error) {
	src, ok := h.assetPath(publicID)
	if !ok {
		return nil, fmt.Errorf("%w: image %q not found", imagehost.ErrBadRequest, publicID)
	}
	target := imagehost.Sanitize(newPublicID)
	if !safeID(target) {
		return nil, fmt.Errorf("%w: invalid public id %q", imagehost.ErrBadRequest, newPublicID)
	}

	if _, ok := h.GetTransformations()[target]; ok {
		return nil, fmt.Errorf("%w: public id %q is taken by a transformation", imagehost.ErrBadRequest, target)
	}

	info, err := os.Stat(h.path(target))
	switch {
	case err == nil && !info.Mode().IsRegular():
		return nil, fmt.Errorf("%w: public id %q names a folder", imagehost.ErrBadRequest, target)
	case err == nil:
		if !overwrite {
			return nil, fmt.Errorf("%w: image %q already exists", imagehost.ErrPreconditionFailed, target)
		}
		if target != publicID {
			if _, err := h.Destroy(ctx, target); err != nil {
				return nil, err
			}
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("stat %s: %w", target, err)
	}

	if target != publicID {
		if err := os.Rename(src, h.path(target)); err != nil {
			return nil, fmt.Errorf("rename %s: %w", publicID, err)
		}
	}
	if err := h.purgeDerivatives(publicID); err != nil {
		return nil, err
	}
	if err := h.tags.Rename(ctx, publicID, target); err != nil {
		return nil, fmt.Errorf("move tags of %s: %w", publicID, err)
	}

	h.log.Info("image renamed", "event", "rename", "from", publicID, "to", target)
	return h.describe(ctx, target, false)
}

func (h *Host) AllAssets(ctx context.Context, withTags bool) ([]model.UploadResponse, error) {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.UploadResponse{}, nil
		}
		return nil, fmt.Errorf("read root: %w", err)
	}

	out := make([]model.UploadResponse, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !isImageFile(e.Name()) {
			continue
		}
		resp, err := h.describe(ctx, e.Name(), withTags)
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// BuildTransformations does nothing: derivatives are produced on request.
func (h *Host) BuildTransformations(ctx context.Context) error {
	return nil
}

// transform returns the URL of src rendered with the named transformation. Without a
// transformation src must live under root and is only checked for decodability.
func (h *Host) transform(ctx context.Context, src, name string, format model.Format) (string, error) {
	if name == "" {
		if _, _, err := imageproc.DecodeConfig(src); err != nil {
			return "", err
		}
		rel, err := filepath.Rel(h.root, src)
		if err != nil {
			return "", err
		}
		return h.url(filepath.ToSlash(rel)), nil
	}

	t, err := h.Transformation(name)
	if err != nil {
		return "", err
	}
	img, err := h.proc.Open(ctx, src)
	if err != nil {
		return "", err
	}
	return h.derive(img, t, name, filepath.Base(src), format)
}

// derive writes the derivative of img to {root}/{name}/{basename}. The file keeps the
// source basename whatever format it is encoded in, so a request for another format
// replaces it.
func (h *Host) derive(img image.Image, t model.Transformation, name, basename string, format model.Format) (string, error) {
	out := imageproc.Apply(img, t)
	if _, err := imageproc.Save(out, filepath.Join(h.root, name, basename), format); err != nil {
		return "", err
	}
	return h.url(name + "/" + basename), nil
}

func (h *Host) placeholderURL(ctx context.Context, transformation string, format model.Format) (string, error) {
	src, err := h.placeholderSource()
	if err != nil {
		return "", err
	}
	if src == "" {
		return "", nil
	}
	return h.transform(ctx, src, transformation, format)
}

// placeholderSource returns the placeholder as a file under root, copying it to
// {root}/.placeholder when it lives elsewhere. A missing placeholder yields "".
func (h *Host) placeholderSource() (string, error) {
	p := h.Placeholder()
	if p == "" {
		return "", nil
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		h.log.Warn("placeholder missing", "event", "placeholder_missing", "path", p)
		return "", nil
	}
	if rel, err := filepath.Rel(h.root, p); err == nil && !strings.HasPrefix(rel, "..") {
		return p, nil
	}

	dst := filepath.Join(h.root, placeholderDir, filepath.Base(p))
	if cur, err := os.Stat(dst); err == nil && !cur.ModTime().Before(info.ModTime()) && cur.Size() == info.Size() {
		return dst, nil
	}
	if err := copyFile(p, dst); err != nil {
		return "", fmt.Errorf("materialize placeholder: %w", err)
	}
	return dst, nil
}

func (h *Host) describe(ctx context.Context, publicID string, withTags bool) (*model.UploadResponse, error) {
	p := h.path(publicID)
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", publicID, err)
	}

	ext := path.Ext(publicID)
	u := h.url(publicID)
	resp := &model.UploadResponse{
		PublicID:         publicID,
		Version:          info.ModTime().Unix(),
		Format:           strings.TrimPrefix(ext, "."),
		ResourceType:     model.ResourceTypeImage,
		CreatedAt:        info.ModTime().UTC().Format(time.RFC3339),
		Bytes:            info.Size(),
		Type:             model.DeliveryTypeUpload,
		URL:              u,
		SecureURL:        u,
		OriginalFilename: strings.TrimSuffix(publicID, ext),
	}
	if w, hh, err := imageproc.DecodeConfig(p); err == nil {
		resp.Width, resp.Height = model.Dimension(w), model.Dimension(hh)
	}
	if withTags {
		if resp.Tags, err = h.tags.TagsFor(ctx, publicID); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
