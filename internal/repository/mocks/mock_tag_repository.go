package mocks

import (
	"context"

	"siteimage/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockTagRepository struct {
	mock.Mock
}

var _ repository.TagRepository = (*MockTagRepository)(nil)

func (m *MockTagRepository) Add(ctx context.Context, publicID string, tags []string) error {
	args := m.Called(ctx, publicID, tags)
	return args.Error(0)
}

func (m *MockTagRepository) Tagged(ctx context.Context, tag string) ([]string, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTagRepository) TagsFor(ctx context.Context, publicID string) ([]string, error) {
	args := m.Called(ctx, publicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTagRepository) Remove(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

func (m *MockTagRepository) Rename(ctx context.Context, from, to string) error {
	args := m.Called(ctx, from, to)
	return args.Error(0)
}

func (m *MockTagRepository) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
