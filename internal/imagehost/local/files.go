package local

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"siteimage/internal/repository/jsonfile"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

func isImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// safeID reports whether publicID names a plain file directly under root.
func safeID(publicID string) bool {
	return publicID != "" &&
		!strings.ContainsAny(publicID, `/\`) &&
		!strings.HasPrefix(publicID, ".") &&
		publicID != jsonfile.FileName
}

func (h *Host) path(publicID string) string {
	return filepath.Join(h.root, publicID)
}

// assetPath resolves publicID to an existing regular file under root.
func (h *Host) assetPath(publicID string) (string, bool) {
	if !safeID(publicID) {
		return "", false
	}
	p := h.path(publicID)
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}

// url maps a slash-separated path relative to root onto BaseURL.
func (h *Host) url(rel string) string {
	segments := strings.Split(rel, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return h.baseURL + "/" + strings.Join(segments, "/")
}

// uniqueName appends -YYYYMMDDhhmmss before the extension, then a counter if that is
// taken too.
func (h *Host) uniqueName(filename string) string {
	ext := path.Ext(filename)
	stem := strings.TrimSuffix(filename, ext) + "-" + h.now().Format("20060102150405")

	candidate := stem + ext
	for i := 2; exists(h.path(candidate)); i++ {
		candidate = stem + "-" + strconv.Itoa(i) + ext
	}
	return candidate
}

// purgeDerivatives removes {root}/*/{basename}.
func (h *Host) purgeDerivatives(basename string) error {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		err := os.Remove(filepath.Join(h.root, e.Name(), basename))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s derivative of %s: %w", e.Name(), basename, err)
		}
	}
	return nil
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
