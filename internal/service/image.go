package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"siteimage/internal/imagehost"
	"siteimage/internal/model"
	"siteimage/internal/storage"
)

var (
	ErrIDRequired     = errors.New("public id is required")
	ErrReaderNil      = errors.New("reader is nil")
	ErrTooLarge       = errors.New("upload exceeds size limit")
	ErrNoObjectStore  = errors.New("object storage is not configured")
	ErrBackupNotLocal = errors.New("backup needs a host that stores files on disk")
)

const defaultMaxUploadBytes = 20 << 20

// AssetListResult is the service-level DTO for asset listings.
type AssetListResult struct {
	Items []model.UploadResponse `json:"data"`
	Total int                    `json:"total"`
}

// BackupResult lists the objects written by Backup.
type BackupResult struct {
	Objects []storage.ObjectInfo `json:"objects"`
	Total   int                  `json:"total"`
}

// ImageService defines the image use cases exposed over HTTP and the CLI.
type ImageService interface {
	// Upload spools r to a temporary file and stores it through the host.
	// - filename is used as the upload name unless opts.Name is set.
	// - moderate marks the asset as pending review.
	Upload(ctx context.Context, r io.Reader, filename string, opts imagehost.UploadOptions, moderate bool) (*model.UploadResponse, error)

	// UploadSource stores source (a path, URL, s3:// object, data URI or base64 blob) as is.
	UploadSource(ctx context.Context, source string, opts imagehost.UploadOptions, moderate bool) (*model.UploadResponse, error)

	// List returns every stored asset.
	List(ctx context.Context, withTags bool) (*AssetListResult, error)

	// URL resolves a public id to a delivery URL. format is an extension ("" for the default).
	URL(ctx context.Context, publicID, transformation, format string) (string, error)

	Placeholder(ctx context.Context, transformation string) (string, error)
	Tagged(ctx context.Context, tag string) ([]string, error)

	// Delete removes one asset and reports whether it existed.
	Delete(ctx context.Context, publicID string) (bool, error)

	// DeleteAll removes the assets carrying tag, or everything for an empty tag.
	DeleteAll(ctx context.Context, tag string) error

	Rename(ctx context.Context, publicID, newPublicID string, overwrite bool) (*model.UploadResponse, error)
	Approve(ctx context.Context, publicID string) error
	Reject(ctx context.Context, publicID string) error

	Transformations() model.Transformations
	BuildTransformations(ctx context.Context) error

	// Backup copies every locally stored asset into the object store under prefix.
	Backup(ctx context.Context, prefix string) (*BackupResult, error)

	// Ping checks the backing store of the host, when it has one.
	Ping(ctx context.Context) error
}

// imageService is a concrete implementation of ImageService.
type imageService struct {
	host     imagehost.Host
	store    storage.Storage
	tmpDir   string
	maxBytes int64
	log      *slog.Logger
}

type Option func(*imageService)

// WithObjectStorage enables Backup.
func WithObjectStorage(s storage.Storage) Option {
	return func(svc *imageService) { svc.store = s }
}

// WithTempDir sets where uploads are spooled. Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(svc *imageService) { svc.tmpDir = dir }
}

// WithMaxUploadBytes bounds the size of a spooled upload.
func WithMaxUploadBytes(n int64) Option {
	return func(svc *imageService) { svc.maxBytes = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(svc *imageService) { svc.log = l }
}

// NewImageService constructs a new ImageService.
func NewImageService(host imagehost.Host, opts ...Option) ImageService {
	svc := &imageService{host: host, maxBytes: defaultMaxUploadBytes, log: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	svc.log = svc.log.With("component", "image_service")
	return svc
}

func (s *imageService) Upload(ctx context.Context, r io.Reader, filename string, opts imagehost.UploadOptions, moderate bool) (*model.UploadResponse, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if opts.Name == "" && filename != "" {
		opts.Name = filepath.Base(filename)
	}

	path, err := s.spool(r, filepath.Ext(filename))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("spool cleanup failed", "event", "spool_cleanup_failed", "path", path, "error", err.Error())
		}
	}()

	return s.UploadSource(ctx, path, opts, moderate)
}

func (s *imageService) UploadSource(ctx context.Context, source string, opts imagehost.UploadOptions, moderate bool) (*model.UploadResponse, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: source is required", imagehost.ErrBadRequest)
	}
	if moderate {
		return s.host.UploadForModeration(ctx, source, opts)
	}
	return s.host.Upload(ctx, source, opts)
}

// spool copies r into a uuid-named temp file and returns its path.
func (s *imageService) spool(r io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp(s.tmpDir, "upload-"+uuid.NewString()+"-*"+strings.ToLower(ext))
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = fmt.Errorf("%w: %w (%d bytes)", imagehost.ErrBadRequest, ErrTooLarge, s.maxBytes)
	}
	if err != nil {
		os.Remove(f.Name())
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write spool file: %w", err)
	}
	return f.Name(), nil
}

func (s *imageService) List(ctx context.Context, withTags bool) (*AssetListResult, error) {
	items, err := s.host.AllAssets(ctx, withTags)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.UploadResponse{}
	}
	return &AssetListResult{Items: items, Total: len(items)}, nil
}

func (s *imageService) URL(ctx context.Context, publicID, transformation, format string) (string, error) {
	f, err := model.ParseFormat(format)
	if err != nil {
		return "", fmt.Errorf("%w: %w", imagehost.ErrBadRequest, err)
	}
	return s.host.Get(ctx, publicID, transformation, f)
}

func (s *imageService) Placeholder(ctx context.Context, transformation string) (string, error) {
	return s.host.GetPlaceholder(ctx, transformation)
}

func (s *imageService) Tagged(ctx context.Context, tag string) ([]string, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, fmt.Errorf("%w: tag is required", imagehost.ErrBadRequest)
	}
	ids, err := s.host.Tagged(ctx, tag)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *imageService) Delete(ctx context.Context, publicID string) (bool, error) {
	if publicID == "" {
		return false, ErrIDRequired
	}
	return s.host.Destroy(ctx, publicID)
}

func (s *imageService) DeleteAll(ctx context.Context, tag string) error {
	return s.host.DestroyAll(ctx, tag)
}

func (s *imageService) Rename(ctx context.Context, publicID, newPublicID string, overwrite bool) (*model.UploadResponse, error) {
	if publicID == "" || newPublicID == "" {
		return nil, ErrIDRequired
	}
	return s.host.Rename(ctx, publicID, newPublicID, overwrite)
}

func (s *imageService) Approve(ctx context.Context, publicID string) error {
	if publicID == "" {
		return ErrIDRequired
	}
	return s.host.Approve(ctx, publicID)
}

func (s *imageService) Reject(ctx context.Context, publicID string) error {
	if publicID == "" {
		return ErrIDRequired
	}
	return s.host.Reject(ctx, publicID)
}

func (s *imageService) Transformations() model.Transformations {
	return s.host.GetTransformations()
}

func (s *imageService) BuildTransformations(ctx context.Context) error {
	return s.host.BuildTransformations(ctx)
}

func (s *imageService) Ping(ctx context.Context) error {
	if p, ok := s.host.(imagehost.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// rooted is implemented by hosts keeping files under a folder.
type rooted interface {
	Root() string
}

func rootOf(h imagehost.Host) (string, bool) {
	for {
		if r, ok := h.(rooted); ok {
			return r.Root(), true
		}
		u, ok := h.(interface{ Unwrap() imagehost.Host })
		if !ok {
			return "", false
		}
		h = u.Unwrap()
	}
}

func (s *imageService) Backup(ctx context.Context, prefix string) (*BackupResult, error) {
	if s.store == nil {
		return nil, ErrNoObjectStore
	}
	root, ok := rootOf(s.host)
	if !ok {
		return nil, ErrBackupNotLocal
	}
	assets, err := s.host.AllAssets(ctx, false)
	if err != nil {
		return nil, err
	}

	prefix = strings.Trim(prefix, "/")
	res := &BackupResult{Objects: make([]storage.ObjectInfo, 0, len(assets))}
	for _, a := range assets {
		info, err := s.backupOne(ctx, root, prefix, a)
		if err != nil {
			return res, err
		}
		res.Objects = append(res.Objects, info)
	}
	res.Total = len(res.Objects)
	s.log.Info("backup complete", "event", "backup_done", "bucket", s.store.Bucket(), "prefix", prefix, "objects", res.Total)
	return res, nil
}

func (s *imageService) backupOne(ctx context.Context, root, prefix string, a model.UploadResponse) (storage.ObjectInfo, error) {
	f, err := os.Open(filepath.Join(root, a.PublicID))
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("backup %s: %w", a.PublicID, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("backup %s: %w", a.PublicID, err)
	}

	key := a.PublicID
	if prefix != "" {
		key = prefix + "/" + key
	}
	ct := mime.TypeByExtension(filepath.Ext(a.PublicID))
	if ct == "" {
		ct = "application/octet-stream"
	}

	info, err := s.store.Put(ctx, key, f, storage.PutObjectOptions{
		Size:        fi.Size(),
		ContentType: ct,
		Metadata:    map[string]string{"public-id": a.PublicID},
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("backup %s: %w", a.PublicID, err)
	}
	return info, nil
}
