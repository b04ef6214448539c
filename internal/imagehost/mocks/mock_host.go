package mocks

import (
	"context"

	"siteimage/internal/imagehost"
	"siteimage/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockHost struct {
	mock.Mock
}

var _ imagehost.Host = (*MockHost)(nil)

func (m *MockHost) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockHost) Get(ctx context.Context, publicID, transformation string, format model.Format) (string, error) {
	args := m.Called(ctx, publicID, transformation, format)
	return args.String(0), args.Error(1)
}

func (m *MockHost) Upload(ctx context.Context, source string, opts imagehost.UploadOptions) (*model.UploadResponse, error) {
	args := m.Called(ctx, source, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadResponse), args.Error(1)
}

func (m *MockHost) UploadForModeration(ctx context.Context, source string, opts imagehost.UploadOptions) (*model.UploadResponse, error) {
	args := m.Called(ctx, source, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadResponse), args.Error(1)
}

func (m *MockHost) Approve(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

func (m *MockHost) Reject(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

func (m *MockHost) Destroy(ctx context.Context, publicID string) (bool, error) {
	args := m.Called(ctx, publicID)
	return args.Bool(0), args.Error(1)
}

func (m *MockHost) DestroyAll(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *MockHost) Tagged(ctx context.Context, tag string) ([]string, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockHost) Rename(ctx context.Context, publicID, newPublicID string, overwrite bool) (*model.UploadResponse, error) {
	args := m.Called(ctx, publicID, newPublicID, overwrite)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadResponse), args.Error(1)
}

func (m *MockHost) AllAssets(ctx context.Context, withTags bool) ([]model.UploadResponse, error) {
	args := m.Called(ctx, withTags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UploadResponse), args.Error(1)
}

func (m *MockHost) BuildTransformations(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockHost) GetTransformations() model.Transformations {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(model.Transformations)
}

func (m *MockHost) GetPlaceholder(ctx context.Context, transformation string) (string, error) {
	args := m.Called(ctx, transformation)
	return args.String(0), args.Error(1)
}

// MockPingHost is a MockHost that also implements imagehost.Pinger.
type MockPingHost struct {
	MockHost
}

func (m *MockPingHost) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
