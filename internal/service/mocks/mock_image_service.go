package mocks

import (
	"context"
	"io"

	"siteimage/internal/imagehost"
	"siteimage/internal/model"
	"siteimage/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockImageService struct {
	mock.Mock
}

var _ service.ImageService = (*MockImageService)(nil)

func (m *MockImageService) Upload(ctx context.Context, r io.Reader, filename string, opts imagehost.UploadOptions, moderate bool) (*model.UploadResponse, error) {
	args := m.Called(ctx, r, filename, opts, moderate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadResponse), args.Error(1)
}

func (m *MockImageService) UploadSource(ctx context.Context, source string, opts imagehost.UploadOptions, moderate bool) (*model.UploadResponse, error) {
	args := m.Called(ctx, source, opts, moderate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadResponse), args.Error(1)
}

func (m *MockImageService) List(ctx context.Context, withTags bool) (*service.AssetListResult, error) {
	args := m.Called(ctx, withTags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AssetListResult), args.Error(1)
}

func (m *MockImageService) URL(ctx context.Context, publicID, transformation, format string) (string, error) {
	args := m.Called(ctx, publicID, transformation, format)
	return args.String(0), args.Error(1)
}

func (m *MockImageService) Placeholder(ctx context.Context, transformation string) (string, error) {
	args := m.Called(ctx, transformation)
	return args.String(0), args.Error(1)
}

func (m *MockImageService) Tagged(ctx context.Context, tag string) ([]string, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockImageService) Delete(ctx context.Context, publicID string) (bool, error) {
	args := m.Called(ctx, publicID)
	return args.Bool(0), args.Error(1)
}

func (m *MockImageService) DeleteAll(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *MockImageService) Rename(ctx context.Context, publicID, newPublicID string, overwrite bool) (*model.UploadResponse, error) {
	args := m.Called(ctx, publicID, newPublicID, overwrite)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadResponse), args.Error(1)
}

func (m *MockImageService) Approve(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

func (m *MockImageService) Reject(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

func (m *MockImageService) Transformations() model.Transformations {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(model.Transformations)
}

func (m *MockImageService) BuildTransformations(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockImageService) Backup(ctx context.Context, prefix string) (*service.BackupResult, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BackupResult), args.Error(1)
}

func (m *MockImageService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
