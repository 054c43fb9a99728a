package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/util"
)

type mockCreatorRepo struct {
	mock.Mock
}

func (m *mockCreatorRepo) FindByID(ctx context.Context, id string) (*model.Creator, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Creator), args.Error(1)
}

func (m *mockCreatorRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Creator, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Creator), args.Error(1)
}

func (m *mockCreatorRepo) FindByEmail(ctx context.Context, email string) (*model.Creator, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Creator), args.Error(1)
}

func (m *mockCreatorRepo) Create(ctx context.Context, params model.CreateCreatorParams) (*model.Creator, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Creator), args.Error(1)
}

func (m *mockCreatorRepo) Disable(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("resolves creator by token hash", func(t *testing.T) {
		repo := new(mockCreatorRepo)
		repo.On("FindByTokenHash", mock.Anything, util.HashToken("api-token")).
			Return(&model.Creator{ID: "creator-1", Name: "Alex"}, nil)

		var got *model.Creator
		handler := NewAuthMiddleware(repo).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = GetCreator(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("GET", "/v1/deals", nil)
		req.Header.Set("Authorization", "Bearer api-token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "creator-1", got.ID)
	})

	t.Run("rejects missing header", func(t *testing.T) {
		repo := new(mockCreatorRepo)
		handler := NewAuthMiddleware(repo).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/v1/deals", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		repo.AssertNotCalled(t, "FindByTokenHash", mock.Anything, mock.Anything)
	})

	t.Run("rejects non-bearer scheme", func(t *testing.T) {
		repo := new(mockCreatorRepo)
		handler := NewAuthMiddleware(repo).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/v1/deals", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		repo := new(mockCreatorRepo)
		repo.On("FindByTokenHash", mock.Anything, mock.Anything).Return(nil, nil)

		handler := NewAuthMiddleware(repo).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/v1/deals", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetCreator(t *testing.T) {
	t.Run("returns nil on empty context", func(t *testing.T) {
		assert.Nil(t, GetCreator(context.Background()))
	})
}
