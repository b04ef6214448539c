package mocks

import (
	"context"

	"siteimage/internal/remote"

	"github.com/stretchr/testify/mock"
)

type MockAPI struct {
	mock.Mock
}

var _ remote.API = (*MockAPI)(nil)

func (m *MockAPI) Upload(ctx context.Context, file string, params remote.UploadParams) (*remote.Asset, error) {
	args := m.Called(ctx, file, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.Asset), args.Error(1)
}

func (m *MockAPI) UnsignedUpload(ctx context.Context, file, preset string, params remote.UploadParams) (*remote.Asset, error) {
	args := m.Called(ctx, file, preset, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.Asset), args.Error(1)
}

func (m *MockAPI) Rename(ctx context.Context, params remote.RenameParams) (*remote.Asset, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.Asset), args.Error(1)
}

func (m *MockAPI) Destroy(ctx context.Context, params remote.DestroyParams) (*remote.DestroyResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.DestroyResult), args.Error(1)
}

func (m *MockAPI) Tags(ctx context.Context, params remote.TagsParams) (*remote.TagsResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.TagsResult), args.Error(1)
}

func (m *MockAPI) CreateArchive(ctx context.Context, params remote.ArchiveParams) (*remote.ArchiveResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.ArchiveResult), args.Error(1)
}

func (m *MockAPI) Assets(ctx context.Context, params remote.ListParams) (*remote.AssetsPage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.AssetsPage), args.Error(1)
}

func (m *MockAPI) AssetsByTag(ctx context.Context, tag string, params remote.ListParams) (*remote.AssetsPage, error) {
	args := m.Called(ctx, tag, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.AssetsPage), args.Error(1)
}

func (m *MockAPI) AssetsByModeration(ctx context.Context, kind, status string, params remote.ListParams) (*remote.AssetsPage, error) {
	args := m.Called(ctx, kind, status, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.AssetsPage), args.Error(1)
}

func (m *MockAPI) DeleteAssets(ctx context.Context, publicIDs []string) (*remote.DeleteAssetsResult, error) {
	args := m.Called(ctx, publicIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.DeleteAssetsResult), args.Error(1)
}

func (m *MockAPI) UpdateAsset(ctx context.Context, publicID string, params remote.UpdateAssetParams) (*remote.Asset, error) {
	args := m.Called(ctx, publicID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.Asset), args.Error(1)
}

func (m *MockAPI) Transformations(ctx context.Context, params remote.ListTransformationsParams) (*remote.TransformationsPage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.TransformationsPage), args.Error(1)
}

func (m *MockAPI) CreateTransformation(ctx context.Context, name, definition string) error {
	args := m.Called(ctx, name, definition)
	return args.Error(0)
}

func (m *MockAPI) UpdateTransformation(ctx context.Context, name string, params remote.UpdateTransformationParams) error {
	args := m.Called(ctx, name, params)
	return args.Error(0)
}

func (m *MockAPI) DeleteTransformation(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockAPI) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAPI) URL(publicID string, opts remote.URLOptions) string {
	args := m.Called(publicID, opts)
	return args.String(0)
}
