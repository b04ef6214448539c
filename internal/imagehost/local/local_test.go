package local

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/color"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteimage/internal/imagehost"
	"siteimage/internal/imageproc"
	"siteimage/internal/model"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testTransformations() model.Transformations {
	return model.Transformations{
		"thumbnail": {Width: 100, Height: 100, Crop: "thumb", Gravity: "face:center"},
		"narrow":    {Width: 50},
		"original":  {},
	}
}

func writeImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, imaging.Save(imaging.New(w, h, color.NRGBA{R: 200, G: 80, B: 40, A: 255}), p))
	return p
}

func dims(t *testing.T, p string) (int, int) {
	t.Helper()
	w, h, err := imageproc.DecodeConfig(p)
	require.NoError(t, err)
	return w, h
}

func sniff(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return http.DetectContentType(data)
}

type fixture struct {
	host        *Host
	root        string
	src         string
	placeholder string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "uploads")
	src := filepath.Join(base, "src")
	placeholder := writeImage(t, filepath.Join(base, "static"), "placeholder.png", 300, 300)
	writeImage(t, src, "cat.png", 200, 100)
	writeImage(t, src, "dog.png", 120, 80)

	h, err := New(Config{
		Root:            root,
		BaseURL:         "/uploads/",
		Placeholder:     placeholder,
		Transformations: testTransformations(),
	}, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return fixture{host: h, root: root, src: src, placeholder: placeholder}
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	root := filepath.Join(t.TempDir(), "a", "b")
	h, err := New(Config{Root: root})
	require.NoError(t, err)
	assert.DirExists(t, root)
	assert.Equal(t, Name, h.Name())
	assert.NoError(t, h.Ping(context.Background()))
}

func TestHost_UploadScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.host.Upload(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{
		Folder:          "pets",
		Tags:            []string{"pets"},
		Transformations: []string{"thumbnail"},
	})
	require.NoError(t, err)

	assert.Equal(t, "pets--cat.png", resp.PublicID)
	assert.Equal(t, "png", resp.Format)
	assert.Equal(t, model.ResourceTypeImage, resp.ResourceType)
	assert.Equal(t, model.DeliveryTypeUpload, resp.Type)
	assert.Equal(t, "/uploads/pets--cat.png", resp.URL)
	assert.Equal(t, resp.URL, resp.SecureURL)
	assert.Equal(t, "2024-01-02T03:04:05Z", resp.CreatedAt)
	assert.Equal(t, []string{"pets"}, resp.Tags)
	assert.Equal(t, "cat", resp.OriginalFilename)
	require.NotNil(t, resp.Width)
	require.NotNil(t, resp.Height)
	assert.Equal(t, 200, *resp.Width)
	assert.Equal(t, 100, *resp.Height)
	assert.Positive(t, resp.Bytes)

	w, h := dims(t, filepath.Join(f.root, "thumbnail", "pets--cat.png"))
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)

	tagged, err := f.host.Tagged(ctx, "pets")
	require.NoError(t, err)
	assert.Equal(t, []string{"pets--cat.png"}, tagged)
}

func TestHost_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("same source twice yields distinct ids", func(t *testing.T) {
		f := newFixture(t)
		src := filepath.Join(f.src, "cat.png")

		var ids []string
		for range 3 {
			resp, err := f.host.Upload(ctx, src, imagehost.UploadOptions{})
			require.NoError(t, err)
			ids = append(ids, resp.PublicID)
		}
		assert.Equal(t, []string{"cat.png", "cat-20240102030405.png", "cat-20240102030405-2.png"}, ids)
		for _, id := range ids {
			assert.FileExists(t, filepath.Join(f.root, id))
		}
	})

	t.Run("overwrite replaces the file and drops derivatives", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.host.Upload(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{Transformations: []string{"thumbnail"}})
		require.NoError(t, err)
		require.FileExists(t, filepath.Join(f.root, "thumbnail", "cat.png"))

		resp, err := f.host.Upload(ctx, filepath.Join(f.src, "dog.png"), imagehost.UploadOptions{Name: "cat.png", Overwrite: true})
		require.NoError(t, err)
		assert.Equal(t, "cat.png", resp.PublicID)
		assert.True(t, resp.Overwritten)
		assert.NoFileExists(t, filepath.Join(f.root, "thumbnail", "cat.png"))

		w, h := dims(t, filepath.Join(f.root, "cat.png"))
		assert.Equal(t, 120, w)
		assert.Equal(t, 80, h)
	})

	t.Run("name is sanitized and defaults to png", func(t *testing.T) {
		f := newFixture(t)
		resp, err := f.host.Upload(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{Name: "My Cat_Photo"})
		require.NoError(t, err)
		assert.Equal(t, "mycatphoto.png", resp.PublicID)
	})

	t.Run("inline data needs a name", func(t *testing.T) {
		f := newFixture(t)
		var buf bytes.Buffer
		require.NoError(t, imaging.Encode(&buf, imaging.New(10, 20, color.White), imaging.PNG))
		blob := base64.StdEncoding.EncodeToString(buf.Bytes())

		_, err := f.host.Upload(ctx, blob, imagehost.UploadOptions{})
		assert.ErrorIs(t, err, imagehost.ErrBadRequest)

		resp, err := f.host.Upload(ctx, blob, imagehost.UploadOptions{Name: "inline.png"})
		require.NoError(t, err)
		assert.Equal(t, "inline.png", resp.PublicID)
		assert.Equal(t, 10, *resp.Width)
		assert.Equal(t, 20, *resp.Height)
	})

	t.Run("unknown eager transformation writes nothing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.host.Upload(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{Transformations: []string{"nope"}})
		assert.ErrorIs(t, err, imagehost.ErrBadRequest)
		assert.NoFileExists(t, filepath.Join(f.root, "cat.png"))
	})

	t.Run("undecodable source propagates", func(t *testing.T) {
		f := newFixture(t)
		bad := filepath.Join(f.src, "notes.png")
		require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
		_, err := f.host.Upload(ctx, bad, imagehost.UploadOptions{})
		assert.ErrorIs(t, err, imagehost.ErrNotDecodable)
	})

	t.Run("missing source", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.host.Upload(ctx, filepath.Join(f.src, "ghost.png"), imagehost.UploadOptions{})
		assert.ErrorIs(t, err, imagehost.ErrBadRequest)
	})
}

func TestHost_Get(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.host.Upload(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "broken.png"), []byte("junk"), 0o644))

	tests := []struct {
		name           string
		publicID       string
		transformation string
		wantURL        string
		wantFile       string
		wantW, wantH   int
	}{
		{name: "original", publicID: "cat.png", wantURL: "/uploads/cat.png"},
		{name: "thumbnail", publicID: "cat.png", transformation: "thumbnail", wantURL: "/uploads/thumbnail/cat.png", wantFile: "thumbnail/cat.png", wantW: 100, wantH: 100},
		{name: "width only keeps aspect", publicID: "cat.png", transformation: "narrow", wantURL: "/uploads/narrow/cat.png", wantFile: "narrow/cat.png", wantW: 50, wantH: 25},
		{name: "no size re-encodes", publicID: "cat.png", transformation: "original", wantURL: "/uploads/original/cat.png", wantFile: "original/cat.png", wantW: 200, wantH: 100},
		{name: "empty id", publicID: "", wantURL: "/uploads/.placeholder/placeholder.png"},
		{name: "missing id", publicID: "ghost.png", transformation: "thumbnail", wantURL: "/uploads/thumbnail/placeholder.png", wantFile: "thumbnail/placeholder.png", wantW: 100, wantH: 100},
		{name: "undecodable file", publicID: "broken.png", wantURL: "/uploads/.placeholder/placeholder.png"},
		{name: "path traversal", publicID: "../static/placeholder.png", wantURL: "/uploads/.placeholder/placeholder.png"},
		{name: "index file", publicID: "tags.json", wantURL: "/uploads/.placeholder/placeholder.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := f.host.Get(ctx, tt.publicID, tt.transformation, "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, u)
			if tt.wantFile != "" {
				w, h := dims(t, filepath.Join(f.root, filepath.FromSlash(tt.wantFile)))
				assert.Equal(t, tt.wantW, w)
				assert.Equal(t, tt.wantH, h)
			}
		})
	}

	t.Run("unknown transformation", func(t *testing.T) {
		_, err := f.host.Get(ctx, "cat.png", "nope", model.FormatPNG)
		assert.ErrorIs(t, err, imagehost.ErrBadRequest)

		_, err = f.host.GetPlaceholder(ctx, "nope")
		assert.ErrorIs(t, err, imagehost.ErrBadRequest)
	})

	t.Run("derivative keeps the source name across formats", func(t *testing.T) {
		u, err := f.host.Get(ctx, "cat.png", "narrow", model.FormatJPEG)
		require.NoError(t, err)
		assert.Equal(t, "/uploads/narrow/cat.png", u)
		assert.Equal(t, "image/jpeg", sniff(t, filepath.Join(f.root, "narrow", "cat.png")))

		u, err = f.host.Get(ctx, "cat.png", "narrow", model.FormatPNG)
		require.NoError(t, err)
		assert.Equal(t, "/uploads/narrow/cat.png", u)
		assert.Equal(t, "image/png", sniff(t, filepath.Join(f.root, "narrow", "cat.png")))
	})

	t.Run("placeholder helper", func(t *testing.T) {
		u, err := f.host.GetPlaceholder(ctx, "thumbnail")
		require.NoError(t, err)
		assert.Equal(t, "/uploads/thumbnail/placeholder.png", u)
	})
}

func TestHost_GetWithoutPlaceholder(t *testing.T) {
	ctx := context.Background()
	h, err := New(Config{
		Root:            t.TempDir(),
		BaseURL:         "/uploads",
		Placeholder:     filepath.Join(t.TempDir(), "missing.png"),
		Transformations: testTransformations(),
	})
	require.NoError(t, err)

	u, err := h.Get(ctx, "ghost.png", "thumbnail", model.FormatJPEG)
	require.NoError(t, err)
	assert.Empty(t, u)
}

func TestHost_Destroy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.host.Upload(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{
		Tags:            []string{"pets"},
		Transformations: []string{"thumbnail", "narrow"},
	})
	require.NoError(t, err)

	ok, err := f.host.Destroy(ctx, "cat.png")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, filepath.Join(f.root, "cat.png"))
	assert.NoFileExists(t, filepath.Join(f.root, "thumbnail", "cat.png"))
	assert.NoFileExists(t, filepath.Join(f.root, "narrow", "cat.png"))

	tagged, err := f.host.Tagged(ctx, "pets")
	require.NoError(t, err)
	assert.Empty(t, tagged)

	u, err := f.host.Get(ctx, "cat.png", "", "")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/.placeholder/placeholder.png", u)

	ok, err = f.host.Destroy(ctx, "cat.png")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.host.Destroy(ctx, "../static/placeholder.png")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.FileExists(t, f.placeholder)
}

func TestHost_DestroyAll(t *testing.T) {
	ctx := context.Background()

	t.Run("by tag", func(t *testing.T) {
		f := newFixture(t)
		cat, err := f.host.Upload(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{Tags: []string{"pets", "cats"}})
		require.NoError(t, err)
		dog, err := f.host.Upload(ctx, filepath.Join(f.src, "dog.png"), imagehost.UploadOptions{Tags: []string{"dogs"}})
		require.NoError(t, err)

		require.NoError(t, f.host.DestroyAll(ctx, "cats"))
		assert.NoFileExists(t, filepath.Join(f.root, cat.PublicID))
		assert.FileExists(t, filepath.Join(f.root, dog.PublicID))

		pets, err := f.host.Tagged(ctx, "pets")
		require.NoError(t, err)
		assert.Empty(t, pets)
	})

	t.Run("everything", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.host.Upload(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{Tags: []string{"pets"}, Transformations: []string{"thumbnail"}})
		require.NoError(t, err)

		require.NoError(t, f.host.DestroyAll(ctx, ""))
		entries, err := os.ReadDir(f.root)
		require.NoError(t, err)
		assert.Empty(t, entries)

		require.NoError(t, f.host.DestroyAll(ctx, ""))
		require.NoError(t, f.host.DestroyAll(ctx, "pets"))
	})
}

func TestHost_TaggedPartitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	groups := map[string][]string{"red": {"a.png", "b.png"}, "blue": {"c.png"}}
	for tag, names := range groups {
		for _, name := range names {
			_, err := f.host.Upload(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{Name: name, Tags: []string{tag}})
			require.NoError(t, err)
		}
	}
	_, err := f.host.Upload(ctx, filepath.Join(f.src, "dog.png"), imagehost.UploadOptions{})
	require.NoError(t, err)

	for tag, names := range groups {
		got, err := f.host.Tagged(ctx, tag)
		require.NoError(t, err)
		assert.Equal(t, names, got, tag)
	}
}

func TestHost_Rename(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) fixture {
		f := newFixture(t)
		_, err := f.host.Upload(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{Tags: []string{"pets"}, Transformations: []string{"thumbnail"}})
		require.NoError(t, err)
		_, err = f.host.Upload(ctx, filepath.Join(f.src, "dog.png"), imagehost.UploadOptions{})
		require.NoError(t, err)
		return f
	}

	t.Run("missing source", func(t *testing.T) {
		f := setup(t)
		_, err := f.host.Rename(ctx, "ghost.png", "other.png", false)
		assert.ErrorIs(t, err, imagehost.ErrBadRequest)
	})

	t.Run("existing destination without overwrite", func(t *testing.T) {
		f := setup(t)
		_, err := f.host.Rename(ctx, "cat.png", "dog.png", false)
		assert.ErrorIs(t, err, imagehost.ErrPreconditionFailed)
		assert.FileExists(t, filepath.Join(f.root, "cat.png"))
	})

	t.Run("overwrite", func(t *testing.T) {
		f := setup(t)
		resp, err := f.host.Rename(ctx, "cat.png", "dog.png", true)
		require.NoError(t, err)
		assert.Equal(t, "dog.png", resp.PublicID)
		assert.Equal(t, 200, *resp.Width)

		assert.NoFileExists(t, filepath.Join(f.root, "cat.png"))
		assert.NoFileExists(t, filepath.Join(f.root, "thumbnail", "cat.png"))
		w, h := dims(t, filepath.Join(f.root, "dog.png"))
		assert.Equal(t, 200, w)
		assert.Equal(t, 100, h)

		tagged, err := f.host.Tagged(ctx, "pets")
		require.NoError(t, err)
		assert.Equal(t, []string{"dog.png"}, tagged)
	})

	t.Run("destination is sanitized", func(t *testing.T) {
		f := setup(t)
		resp, err := f.host.Rename(ctx, "cat.png", "Kitty Cat.PNG", false)
		require.NoError(t, err)
		assert.Equal(t, "kittycat.png", resp.PublicID)
		assert.FileExists(t, filepath.Join(f.root, "kittycat.png"))
	})

	t.Run("destination is a transformation folder", func(t *testing.T) {
		f := setup(t)
		require.DirExists(t, filepath.Join(f.root, "thumbnail"))

		for _, overwrite := range []bool{false, true} {
			_, err := f.host.Rename(ctx, "cat.png", "thumbnail", overwrite)
			assert.ErrorIs(t, err, imagehost.ErrBadRequest, "overwrite=%v", overwrite)
		}
		assert.FileExists(t, filepath.Join(f.root, "cat.png"))
		assert.FileExists(t, filepath.Join(f.root, "thumbnail", "cat.png"))
	})

	t.Run("destination is a configured transformation without a folder", func(t *testing.T) {
		f := setup(t)
		_, err := f.host.Rename(ctx, "dog.png", "narrow", true)
		assert.ErrorIs(t, err, imagehost.ErrBadRequest)
		assert.NoDirExists(t, filepath.Join(f.root, "narrow"))
	})

	t.Run("destination is an unrelated folder", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, os.MkdirAll(filepath.Join(f.root, "stray", "inner"), 0o755))

		_, err := f.host.Rename(ctx, "dog.png", "stray", true)
		assert.ErrorIs(t, err, imagehost.ErrBadRequest)
		assert.DirExists(t, filepath.Join(f.root, "stray", "inner"))
		assert.FileExists(t, filepath.Join(f.root, "dog.png"))
	})
}

func TestHost_AllAssets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for range 3 {
		_, err := f.host.Upload(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{Tags: []string{"pets"}, Transformations: []string{"thumbnail"}})
		require.NoError(t, err)
	}

	assets, err := f.host.AllAssets(ctx, false)
	require.NoError(t, err)
	require.Len(t, assets, 3)
	seen := map[string]bool{}
	for _, a := range assets {
		assert.False(t, seen[a.PublicID])
		seen[a.PublicID] = true
		assert.Nil(t, a.Tags)
		assert.Equal(t, 200, *a.Width)
	}

	withTags, err := f.host.AllAssets(ctx, true)
	require.NoError(t, err)
	for _, a := range withTags {
		assert.Equal(t, []string{"pets"}, a.Tags)
	}

	require.NoError(t, os.WriteFile(filepath.Join(f.root, "zz-broken.png"), []byte("junk"), 0o644))
	assets, err = f.host.AllAssets(ctx, false)
	require.NoError(t, err)
	require.Len(t, assets, 4)
	last := assets[3]
	assert.Equal(t, "zz-broken.png", last.PublicID)
	assert.Nil(t, last.Width)
	assert.Nil(t, last.Height)
}

func TestHost_Moderation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.host.UploadForModeration(ctx, filepath.Join(f.src, "cat.png"), imagehost.UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.ModerationPending, resp.ModerationStatus)

	require.NoError(t, f.host.Approve(ctx, resp.PublicID))
	assert.FileExists(t, filepath.Join(f.root, resp.PublicID))

	require.NoError(t, f.host.Reject(ctx, resp.PublicID))
	assert.NoFileExists(t, filepath.Join(f.root, resp.PublicID))
}

func TestHost_Transformations(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.host.BuildTransformations(context.Background()))

	got := f.host.GetTransformations()
	assert.Equal(t, testTransformations(), got)

	delete(got, "thumbnail")
	assert.Contains(t, f.host.GetTransformations(), "thumbnail")
}
