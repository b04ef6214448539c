// Package imageproc decodes image sources, applies transformation recipes and
// encodes the result to disk.
package imageproc

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"siteimage/internal/model"
	"siteimage/internal/storage"
)

var (
	// ErrNotDecodable is returned when source bytes are not an image.
	ErrNotDecodable = errors.New("image not decodable")
	// ErrSourceTooLarge is returned when a remote source exceeds the configured limit.
	ErrSourceTooLarge = errors.New("image source too large")
)

const defaultMaxBytes = 32 << 20

// Processor turns sources (file paths, base64 blobs, data URIs, http(s) and s3 URLs)
// into decoded images and writes derivatives. It is safe for concurrent use.
type Processor struct {
	client   *http.Client
	objects  storage.Storage
	maxBytes int64
}

type Option func(*Processor)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Processor) { p.client = c }
}

// WithObjectStorage enables s3://bucket/key sources.
func WithObjectStorage(s storage.Storage) Option {
	return func(p *Processor) { p.objects = s }
}

// WithMaxBytes caps the size of remote and inline sources.
func WithMaxBytes(n int64) Option {
	return func(p *Processor) { p.maxBytes = n }
}

func New(opts ...Option) *Processor {
	p := &Processor{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsInline reports whether source carries the image bytes itself rather than
// pointing at them.
func IsInline(source string) bool {
	if strings.HasPrefix(source, "data:") {
		return true
	}
	if hasScheme(source) {
		return false
	}
	if _, err := os.Stat(source); err == nil {
		return false
	}
	_, err := decodeBase64(source)
	return err == nil
}

// Open decodes source into an image. A file path that does not exist and is not valid
// base64 fails with fs.ErrNotExist; undecodable bytes fail with ErrNotDecodable.
func (p *Processor) Open(ctx context.Context, source string) (image.Image, error) {
	switch {
	case strings.HasPrefix(source, "data:"):
		raw, err := decodeDataURI(source)
		if err != nil {
			return nil, err
		}
		return p.decodeBytes(raw)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return p.fetch(ctx, source)
	case strings.HasPrefix(source, "s3://"):
		return p.object(ctx, source)
	}

	f, err := os.Open(source)
	if err == nil {
		defer f.Close()
		return decode(f)
	}
	// Long base64 payloads can fail with ENAMETOOLONG rather than ENOENT.
	raw, b64err := decodeBase64(source)
	if b64err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	return p.decodeBytes(raw)
}

func (p *Processor) decodeBytes(raw []byte) (image.Image, error) {
	if int64(len(raw)) > p.maxBytes {
		return nil, ErrSourceTooLarge
	}
	return decode(bytes.NewReader(raw))
}

func (p *Processor) fetch(ctx context.Context, source string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch source: unexpected status %d", resp.StatusCode)
	}
	return p.readLimited(resp.Body)
}

func (p *Processor) object(ctx context.Context, source string) (image.Image, error) {
	if p.objects == nil {
		return nil, fmt.Errorf("s3 sources are not configured")
	}
	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	if u.Host != p.objects.Bucket() {
		return nil, fmt.Errorf("bucket %q is not configured", u.Host)
	}
	key := strings.TrimPrefix(u.Path, "/")
	rc, _, err := p.objects.Get(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("%s: %w", source, fs.ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return p.readLimited(rc)
}

func (p *Processor) readLimited(r io.Reader) (image.Image, error) {
	raw, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return p.decodeBytes(raw)
}

func decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDecodable, err)
	}
	return img, nil
}

func decodeDataURI(source string) ([]byte, error) {
	meta, data, ok := strings.Cut(strings.TrimPrefix(source, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data uri", ErrNotDecodable)
	}
	if !strings.HasSuffix(meta, ";base64") {
		unescaped, err := url.PathUnescape(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotDecodable, err)
		}
		return []byte(unescaped), nil
	}
	raw, err := decodeBase64(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDecodable, err)
	}
	return raw, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, errors.New("empty base64 payload")
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func hasScheme(source string) bool {
	u, err := url.Parse(source)
	return err == nil && len(u.Scheme) > 1
}

// DecodeConfig reads only the header of the image at path.
func DecodeConfig(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrNotDecodable, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Save encodes img into path in the given format. The file is written to a temporary
// name in the same directory and renamed into place. It returns the encoded size.
func Save(img image.Image, path string, format model.Format) (int64, error) {
	f, err := imagingFormat(format)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := imaging.Encode(tmp, img, f, imaging.JPEGQuality(90)); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("encode %s: %w", format, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("stat temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("move into place: %w", err)
	}
	return info.Size(), nil
}

func imagingFormat(format model.Format) (imaging.Format, error) {
	switch format {
	case model.FormatJPEG:
		return imaging.JPEG, nil
	case model.FormatPNG:
		return imaging.PNG, nil
	case model.FormatGIF:
		return imaging.GIF, nil
	case model.FormatBMP:
		return imaging.BMP, nil
	case model.FormatTIFF:
		return imaging.TIFF, nil
	default:
		return 0, fmt.Errorf("unsupported image format %q", format)
	}
}
