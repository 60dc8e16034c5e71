package blob

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upload(ctx context.Context, folder, name string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, folder, name, data, contentType)
	return args.String(0), args.Error(1)
}
