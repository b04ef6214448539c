package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"siteimage/internal/imagehost"
	hostMocks "siteimage/internal/imagehost/mocks"
	"siteimage/internal/instrument"
	"siteimage/internal/model"
	"siteimage/internal/storage"
	storeMocks "siteimage/internal/storage/mocks"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestImageService_Upload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		reader     io.Reader
		filename   string
		opts       imagehost.UploadOptions
		moderate   bool
		maxBytes   int64
		setupMocks func(mHost *hostMocks.MockHost, seen *string)
		wantErr    error
		wantName   string
	}{
		{
			name:     "happy path",
			reader:   strings.NewReader("png-bytes"),
			filename: "Cat.PNG",
			opts:     imagehost.UploadOptions{Folder: "pets", Tags: []string{"animals"}},
			setupMocks: func(mHost *hostMocks.MockHost, seen *string) {
				mHost.On("Upload", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(o imagehost.UploadOptions) bool {
					return o.Name == "Cat.PNG" && o.Folder == "pets"
				})).Run(func(args mock.Arguments) {
					path := args.String(1)
					*seen = path
					data, err := os.ReadFile(path)
					if assert.NoError(t, err) {
						assert.Equal(t, "png-bytes", string(data))
					}
					assert.True(t, strings.HasSuffix(path, ".png"))
				}).Return(&model.UploadResponse{PublicID: "pets--cat.png"}, nil).Once()
			},
			wantName: "pets--cat.png",
		},
		{
			name:     "explicit name wins",
			reader:   strings.NewReader("x"),
			filename: "upload.bin",
			opts:     imagehost.UploadOptions{Name: "banner.jpg"},
			setupMocks: func(mHost *hostMocks.MockHost, seen *string) {
				mHost.On("Upload", ctx, mock.AnythingOfType("string"), imagehost.UploadOptions{Name: "banner.jpg"}).
					Run(func(args mock.Arguments) { *seen = args.String(1) }).
					Return(&model.UploadResponse{PublicID: "banner.jpg"}, nil).Once()
			},
			wantName: "banner.jpg",
		},
		{
			name:     "moderated",
			reader:   strings.NewReader("x"),
			filename: "cat.png",
			moderate: true,
			setupMocks: func(mHost *hostMocks.MockHost, seen *string) {
				mHost.On("UploadForModeration", ctx, mock.AnythingOfType("string"), imagehost.UploadOptions{Name: "cat.png"}).
					Run(func(args mock.Arguments) { *seen = args.String(1) }).
					Return(&model.UploadResponse{PublicID: "cat.png", ModerationStatus: model.ModerationPending}, nil).Once()
			},
			wantName: "cat.png",
		},
		{
			name:       "validation error - nil reader",
			filename:   "cat.png",
			setupMocks: func(mHost *hostMocks.MockHost, seen *string) {},
			wantErr:    ErrReaderNil,
		},
		{
			name:       "too large",
			reader:     strings.NewReader("0123456789"),
			filename:   "cat.png",
			maxBytes:   4,
			setupMocks: func(mHost *hostMocks.MockHost, seen *string) {},
			wantErr:    ErrTooLarge,
		},
		{
			name:     "host error",
			reader:   strings.NewReader("x"),
			filename: "cat.png",
			setupMocks: func(mHost *hostMocks.MockHost, seen *string) {
				mHost.On("Upload", ctx, mock.Anything, mock.Anything).
					Run(func(args mock.Arguments) { *seen = args.String(1) }).
					Return(nil, imagehost.ErrNotDecodable).Once()
			},
			wantErr: imagehost.ErrNotDecodable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := t.TempDir()
			mHost := new(hostMocks.MockHost)
			var seen string
			tt.setupMocks(mHost, &seen)

			opts := []Option{WithTempDir(tmp), quiet()}
			if tt.maxBytes > 0 {
				opts = append(opts, WithMaxUploadBytes(tt.maxBytes))
			}
			svc := NewImageService(mHost, opts...)

			res, err := svc.Upload(ctx, tt.reader, tt.filename, tt.opts, tt.moderate)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantName, res.PublicID)
			}

			if seen != "" {
				assert.Equal(t, tmp, filepath.Dir(seen))
			}
			entries, err := os.ReadDir(tmp)
			require.NoError(t, err)
			assert.Empty(t, entries, "spool files are removed")
			mHost.AssertExpectations(t)
		})
	}
}

func TestImageService_UploadSource(t *testing.T) {
	ctx := context.Background()
	mHost := new(hostMocks.MockHost)
	opts := imagehost.UploadOptions{Folder: "banners"}
	mHost.On("Upload", ctx, "https://example.com/a.png", opts).Return(&model.UploadResponse{PublicID: "banners--a.png"}, nil).Once()
	mHost.On("UploadForModeration", ctx, "s3://images/b.png", opts).Return(&model.UploadResponse{PublicID: "banners--b.png"}, nil).Once()
	svc := NewImageService(mHost, quiet())

	res, err := svc.UploadSource(ctx, "https://example.com/a.png", opts, false)
	require.NoError(t, err)
	assert.Equal(t, "banners--a.png", res.PublicID)

	res, err = svc.UploadSource(ctx, "s3://images/b.png", opts, true)
	require.NoError(t, err)
	assert.Equal(t, "banners--b.png", res.PublicID)

	_, err = svc.UploadSource(ctx, " ", opts, false)
	assert.ErrorIs(t, err, imagehost.ErrBadRequest)
	mHost.AssertExpectations(t)
}

func TestImageService_TooLargeIsBadRequest(t *testing.T) {
	svc := NewImageService(new(hostMocks.MockHost), WithTempDir(t.TempDir()), WithMaxUploadBytes(1), quiet())
	_, err := svc.Upload(context.Background(), strings.NewReader("abc"), "a.png", imagehost.UploadOptions{}, false)
	assert.ErrorIs(t, err, imagehost.ErrBadRequest)
}

func TestImageService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mHost := new(hostMocks.MockHost)
		mHost.On("AllAssets", ctx, true).Return([]model.UploadResponse{{PublicID: "a.png"}, {PublicID: "b.png"}}, nil)

		res, err := NewImageService(mHost, quiet()).List(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
		assert.Len(t, res.Items, 2)
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		mHost := new(hostMocks.MockHost)
		mHost.On("AllAssets", ctx, false).Return(nil, nil)

		res, err := NewImageService(mHost, quiet()).List(ctx, false)
		require.NoError(t, err)
		assert.NotNil(t, res.Items)
		assert.Zero(t, res.Total)
	})

	t.Run("host error", func(t *testing.T) {
		mHost := new(hostMocks.MockHost)
		mHost.On("AllAssets", ctx, false).Return(nil, errors.New("disk gone"))

		_, err := NewImageService(mHost, quiet()).List(ctx, false)
		assert.EqualError(t, err, "disk gone")
	})
}

func TestImageService_URL(t *testing.T) {
	ctx := context.Background()
	mHost := new(hostMocks.MockHost)
	mHost.On("Get", ctx, "cat.png", "thumbnail", model.FormatPNG).Return("/uploads/thumbnail/cat.png", nil).Once()
	mHost.On("Get", ctx, "cat.png", "", model.DefaultFormat).Return("/uploads/cat.png", nil).Once()
	svc := NewImageService(mHost, quiet())

	u, err := svc.URL(ctx, "cat.png", "thumbnail", "PNG")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/thumbnail/cat.png", u)

	u, err = svc.URL(ctx, "cat.png", "", "")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/cat.png", u)

	_, err = svc.URL(ctx, "cat.png", "", "svg")
	assert.ErrorIs(t, err, imagehost.ErrBadRequest)
	mHost.AssertExpectations(t)
}

func TestImageService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewImageService(new(hostMocks.MockHost), quiet())

	_, err := svc.Delete(ctx, "")
	assert.ErrorIs(t, err, ErrIDRequired)
	_, err = svc.Rename(ctx, "a.png", "", false)
	assert.ErrorIs(t, err, ErrIDRequired)
	assert.ErrorIs(t, svc.Approve(ctx, ""), ErrIDRequired)
	assert.ErrorIs(t, svc.Reject(ctx, ""), ErrIDRequired)
	_, err = svc.Tagged(ctx, "  ")
	assert.ErrorIs(t, err, imagehost.ErrBadRequest)
}

func TestImageService_Delegates(t *testing.T) {
	ctx := context.Background()
	mHost := new(hostMocks.MockHost)
	ts := model.DefaultTransformations()
	mHost.On("Destroy", ctx, "cat.png").Return(true, nil).Once()
	mHost.On("DestroyAll", ctx, "pets").Return(nil).Once()
	mHost.On("Rename", ctx, "cat.png", "dog.png", true).Return(&model.UploadResponse{PublicID: "dog.png"}, nil).Once()
	mHost.On("Approve", ctx, "dog.png").Return(nil).Once()
	mHost.On("Reject", ctx, "dog.png").Return(nil).Once()
	mHost.On("Tagged", ctx, "pets").Return(nil, nil).Once()
	mHost.On("GetPlaceholder", ctx, "thumbnail").Return("/uploads/thumbnail/placeholder.png", nil).Once()
	mHost.On("GetTransformations").Return(ts).Once()
	mHost.On("BuildTransformations", ctx).Return(nil).Once()
	svc := NewImageService(mHost, quiet())

	ok, err := svc.Delete(ctx, "cat.png")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, svc.DeleteAll(ctx, "pets"))

	res, err := svc.Rename(ctx, "cat.png", "dog.png", true)
	require.NoError(t, err)
	assert.Equal(t, "dog.png", res.PublicID)

	require.NoError(t, svc.Approve(ctx, "dog.png"))
	require.NoError(t, svc.Reject(ctx, "dog.png"))

	ids, err := svc.Tagged(ctx, "pets")
	require.NoError(t, err)
	assert.Equal(t, []string{}, ids)

	u, err := svc.Placeholder(ctx, "thumbnail")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/thumbnail/placeholder.png", u)

	assert.Equal(t, ts, svc.Transformations())
	require.NoError(t, svc.BuildTransformations(ctx))
	mHost.AssertExpectations(t)
}

func TestImageService_Ping(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewImageService(new(hostMocks.MockHost), quiet()).Ping(ctx))

	pinger := new(hostMocks.MockPingHost)
	pinger.On("Ping", ctx).Return(errors.New("down")).Once()
	assert.EqualError(t, NewImageService(pinger, quiet()).Ping(ctx), "down")
	pinger.AssertExpectations(t)
}

type rootedHost struct {
	*hostMocks.MockHost
	root string
}

func (h rootedHost) Root() string { return h.root }

func TestImageService_Backup(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "cat.png"), []byte("cat"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pets--dog.jpg"), []byte("doggo"), 0o644))

	newHost := func() rootedHost {
		mHost := new(hostMocks.MockHost)
		mHost.On("Name").Return("local")
		mHost.On("AllAssets", mock.Anything, false).
			Return([]model.UploadResponse{{PublicID: "cat.png"}, {PublicID: "pets--dog.jpg"}}, nil)
		return rootedHost{MockHost: mHost, root: root}
	}

	t.Run("copies every asset", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Bucket").Return("backups")
		mStore.On("Put", mock.Anything, "nightly/cat.png", mock.Anything, storage.PutObjectOptions{
			Size: 3, ContentType: "image/png", Metadata: map[string]string{"public-id": "cat.png"},
		}).Return(storage.ObjectInfo{Key: "nightly/cat.png", Size: 3}, nil).Once()
		mStore.On("Put", mock.Anything, "nightly/pets--dog.jpg", mock.Anything, storage.PutObjectOptions{
			Size: 5, ContentType: "image/jpeg", Metadata: map[string]string{"public-id": "pets--dog.jpg"},
		}).Return(storage.ObjectInfo{Key: "nightly/pets--dog.jpg", Size: 5}, nil).Once()

		// Wrapped hosts are unwrapped to find the root.
		host := instrument.Wrap(newHost(), nil)
		svc := NewImageService(host, WithObjectStorage(mStore), quiet())

		res, err := svc.Backup(ctx, "/nightly/")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
		assert.Equal(t, "nightly/pets--dog.jpg", res.Objects[1].Key)
		mStore.AssertExpectations(t)
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Put", mock.Anything, "cat.png", mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{}, errors.New("bucket full")).Once()

		svc := NewImageService(newHost(), WithObjectStorage(mStore), quiet())
		res, err := svc.Backup(ctx, "")
		assert.ErrorContains(t, err, "backup cat.png: bucket full")
		assert.Empty(t, res.Objects)
		mStore.AssertExpectations(t)
	})

	t.Run("needs object storage", func(t *testing.T) {
		_, err := NewImageService(newHost(), quiet()).Backup(ctx, "")
		assert.ErrorIs(t, err, ErrNoObjectStore)
	})

	t.Run("needs a local host", func(t *testing.T) {
		svc := NewImageService(new(hostMocks.MockHost), WithObjectStorage(new(storeMocks.MockStorage)), quiet())
		_, err := svc.Backup(ctx, "")
		assert.ErrorIs(t, err, ErrBackupNotLocal)
	})
}
